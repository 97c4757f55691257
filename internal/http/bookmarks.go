package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mrlokans/herbalgarden/internal/apperr"
	"github.com/mrlokans/herbalgarden/internal/database/bookmarks"
	"github.com/mrlokans/herbalgarden/internal/entities"
)

const (
	MessageInvalidBookmarkKind = "Invalid bookmark kind"
	MessagePlantIDRequired     = "Plant ID is required"
	MessageAlreadyBookmarked   = "Already bookmarked"
	MessageBookmarkNotFound    = "Bookmark not found"
	MessagePlantNotFound       = "Plant not found"
)

// BookmarksController manages the signed-in user's bookmarks.
type BookmarksController struct {
	bookmarks BookmarkStore
	plants    PlantStore
}

func NewBookmarksController(bookmarks BookmarkStore, plants PlantStore) *BookmarksController {
	return &BookmarksController{bookmarks: bookmarks, plants: plants}
}

// addBookmarkRequest accepts either a tagged reference {kind, id} or the
// untagged {plantId} older clients send.
type addBookmarkRequest struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	PlantID string `json:"plantId"`
}

func (r addBookmarkRequest) ref() (entities.BookmarkRef, error) {
	if r.Kind == "" {
		id := strings.TrimSpace(r.PlantID)
		if id == "" {
			id = strings.TrimSpace(r.ID)
		}
		if id == "" {
			return entities.BookmarkRef{}, apperr.Validation(MessagePlantIDRequired)
		}
		return entities.ClassifyPlantID(id), nil
	}

	kind, err := entities.ParseBookmarkKind(r.Kind)
	if err != nil {
		return entities.BookmarkRef{}, apperr.Validation(MessageInvalidBookmarkKind)
	}
	return parseRef(kind, r.ID)
}

func parseRef(kind entities.BookmarkKind, id string) (entities.BookmarkRef, error) {
	ref := entities.BookmarkRef{Kind: kind, ID: strings.TrimSpace(id)}
	if ref.ID == "" {
		return ref, apperr.Validation(MessagePlantIDRequired)
	}
	if kind == entities.BookmarkInternal {
		if _, err := uuid.Parse(ref.ID); err != nil {
			return ref, apperr.InvalidID("plantId")
		}
	}
	return ref, nil
}

// List handles GET /api/bookmarks
func (bc *BookmarksController) List(c *gin.Context) {
	self, ok := currentUser(c)
	if !ok {
		return
	}

	list, err := bc.bookmarks.List(c.Request.Context(), self.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "bookmarks": list})
}

// Add handles POST /api/bookmarks
func (bc *BookmarksController) Add(c *gin.Context) {
	self, ok := currentUser(c)
	if !ok {
		return
	}

	var req addBookmarkRequest
	if !bindJSON(c, &req) {
		return
	}
	ref, err := req.ref()
	if err != nil {
		abortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	if ref.Kind == entities.BookmarkInternal {
		exists, err := bc.plants.Exists(ctx, ref.ID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if !exists {
			abortWithError(c, apperr.NotFound(MessagePlantNotFound))
			return
		}
	}

	if _, err := bc.bookmarks.Add(ctx, self.ID, ref); err != nil {
		if errors.Is(err, bookmarks.ErrAlreadyExists) {
			err = apperr.Validation(MessageAlreadyBookmarked)
		}
		abortWithError(c, err)
		return
	}

	list, err := bc.bookmarks.List(ctx, self.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":   true,
		"message":   "Bookmark added",
		"bookmarks": list,
	})
}

// Remove handles DELETE /api/bookmarks/:kind/:id
func (bc *BookmarksController) Remove(c *gin.Context) {
	self, ok := currentUser(c)
	if !ok {
		return
	}

	kind, err := entities.ParseBookmarkKind(c.Param("kind"))
	if err != nil {
		abortWithError(c, apperr.Validation(MessageInvalidBookmarkKind))
		return
	}
	ref, err := parseRef(kind, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := bc.bookmarks.Remove(ctx, self.ID, ref); err != nil {
		if errors.Is(err, bookmarks.ErrNotFound) {
			err = apperr.NotFound(MessageBookmarkNotFound)
		}
		abortWithError(c, err)
		return
	}

	list, err := bc.bookmarks.List(ctx, self.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Bookmark removed",
		"bookmarks": list,
	})
}
