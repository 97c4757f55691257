package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/herbalgarden/internal/apperr"
	"github.com/mrlokans/herbalgarden/internal/database/plants"
)

const (
	MessagePlantNameRequired = "Plant name is required"
	MessagePlantNameExists   = "Plant with this name already exists"
)

// PlantsController serves the public catalog and its admin maintenance.
type PlantsController struct {
	plants  PlantStore
	auditor Auditor
}

func NewPlantsController(plants PlantStore, auditor Auditor) *PlantsController {
	return &PlantsController{plants: plants, auditor: auditor}
}

type plantRequest struct {
	Name           string `json:"name"`
	ScientificName string `json:"scientificName"`
	Description    string `json:"description"`
	Image          string `json:"image"`
}

func (r plantRequest) fields() plants.Fields {
	return plants.Fields{
		Name:           r.Name,
		ScientificName: r.ScientificName,
		Description:    r.Description,
		Image:          r.Image,
	}
}

// List handles GET /api/plants
func (pc *PlantsController) List(c *gin.Context) {
	q := plants.ListQuery{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", plants.DefaultPageSize),
		Search: c.Query("search"),
	}.Normalize()

	list, total, err := pc.plants.List(c.Request.Context(), q)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"plants":     list,
		"pagination": newPagination(total, q.Page, q.Limit),
	})
}

// Get handles GET /api/plants/:id
func (pc *PlantsController) Get(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id", "plantId")
	if !ok {
		return
	}

	plant, err := pc.plants.FindByID(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, plantError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "plant": plant})
}

// Create handles POST /api/plants
func (pc *PlantsController) Create(c *gin.Context) {
	var req plantRequest
	if !bindJSON(c, &req) {
		return
	}
	if !pc.checkName(c, req.Name, "") {
		return
	}

	plant, err := pc.plants.Create(c.Request.Context(), req.fields())
	if err != nil {
		abortWithError(c, plantError(err))
		return
	}

	pc.auditor.LogPlant(requestInfo(c), "plant_create", plant.ID, plant.Name)
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Plant created successfully",
		"plant":   plant,
	})
}

// Update handles PUT /api/plants/:id
func (pc *PlantsController) Update(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id", "plantId")
	if !ok {
		return
	}

	var req plantRequest
	if !bindJSON(c, &req) {
		return
	}
	if !pc.checkName(c, req.Name, id) {
		return
	}

	plant, err := pc.plants.Update(c.Request.Context(), id, req.fields())
	if err != nil {
		abortWithError(c, plantError(err))
		return
	}

	pc.auditor.LogPlant(requestInfo(c), "plant_update", plant.ID, plant.Name)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Plant updated successfully",
		"plant":   plant,
	})
}

// Delete handles DELETE /api/plants/:id
func (pc *PlantsController) Delete(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id", "plantId")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	plant, err := pc.plants.FindByID(ctx, id)
	if err != nil {
		abortWithError(c, plantError(err))
		return
	}
	if err := pc.plants.Delete(ctx, id); err != nil {
		abortWithError(c, plantError(err))
		return
	}

	pc.auditor.LogPlant(requestInfo(c), "plant_delete", plant.ID, plant.Name)
	respondSuccess(c, "Plant deleted successfully")
}

func (pc *PlantsController) checkName(c *gin.Context, name, excludeID string) bool {
	if strings.TrimSpace(name) == "" {
		abortWithError(c, apperr.Validation(MessagePlantNameRequired))
		return false
	}
	taken, err := pc.plants.NameTaken(c.Request.Context(), name, excludeID)
	if err != nil {
		abortWithError(c, err)
		return false
	}
	if taken {
		abortWithError(c, apperr.Validation(MessagePlantNameExists))
		return false
	}
	return true
}

func plantError(err error) error {
	if errors.Is(err, plants.ErrNotFound) {
		return apperr.NotFound(MessagePlantNotFound)
	}
	if apperr.KindOf(err) == apperr.KindDuplicate {
		return apperr.Validation(MessagePlantNameExists)
	}
	return err
}
