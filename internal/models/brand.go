package models

import "time"

// Brand and BrandModel hold the seed catalogue of vehicle makes
// common on the Tunisian market, used by clients to populate pickers.
type Brand struct {
	ID     uint         `gorm:"primaryKey" json:"id"`
	Name   string       `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Models []BrandModel `gorm:"foreignKey:BrandID;constraint:OnDelete:CASCADE" json:"models,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BrandModel struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	BrandID uint   `gorm:"index;not null" json:"brand_id"`
	Name    string `gorm:"size:100;not null" json:"name"`
	// Production year range offered in pickers.
	FromYear int `json:"from_year"`
	ToYear   int `json:"to_year"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
