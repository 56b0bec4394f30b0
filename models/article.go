package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Article is a catalog item referenced by invoice lines. UnitPrice is in
// minor units.
type Article struct {
	Id          string `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"not null"`
	Description string `json:"description"`
	UnitPrice   int64  `json:"unit_price" gorm:"type:bigint"`
	Active      bool   `json:"-"`
}

func (article *Article) BeforeCreate(tx *gorm.DB) (err error) {
	// UUID version 4
	article.Id = uuid.NewString()
	return
}
