package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plant is an entry of the medicinal plant catalog.
type Plant struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Name           string    `gorm:"uniqueIndex;size:200;not null" json:"name"`
	ScientificName string    `gorm:"size:200" json:"scientificName,omitempty"`
	Description    string    `gorm:"type:text" json:"description,omitempty"`
	Image          string    `gorm:"size:1024" json:"image,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (Plant) TableName() string {
	return "plants"
}

func (p *Plant) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
