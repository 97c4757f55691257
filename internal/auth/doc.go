// Package auth provides authentication and authorization for the API.
//
// Sessions are stateless: a successful register or login issues an HS256
// token that carries the user id and role, and the same token is set as the
// httpOnly "token" cookie. Requests may present it either as that cookie or as
// an "Authorization: Bearer" header; the cookie wins when both are present.
//
// # Configuration
//
//	JWT_SECRET=<random string>   # required, startup fails without it
//	JWT_EXPIRE=168h              # token and cookie lifetime
//	ADMIN_SECRET=<string>        # registrations presenting it become super-admin
//	BCRYPT_COST=10
//	AUTH_CSRF_ENABLED=false      # double-submit protection for cookie sessions
//
// # Usage
//
//	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
//	mw := auth.NewMiddleware(tokens, userRepo, transport, m, logger)
//	router.Use(mw.Handler())
//	mw.AllowPublic(http.MethodPost, "/api/auth/login")
//	admin.Use(auth.RequireRoles(entities.RoleSuperAdmin))
//
// Every route requires a session unless it is registered with AllowPublic.
// The middleware reloads the user on every request, so deleted accounts lose
// access at once, but a token stays valid until it expires even after logout.
package auth
