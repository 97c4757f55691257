package config

const (
	DefaultPort         = 5000
	DefaultDatabasePath = "./herbal-garden.db"
	// DefaultTokenTTL is seven days, in a form viper's GetDuration accepts.
	DefaultTokenTTL = "168h"
)
