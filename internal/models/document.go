package models

import "time"

// Document records a stored PDF attachment. One row per invoice;
// regeneration overwrites the file and updates the row in place.
type Document struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	InvoiceID uint    `gorm:"uniqueIndex;not null" json:"invoice_id"`
	Invoice   Invoice `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"-"`

	Name     string `gorm:"size:255;not null" json:"name"` // stored filename
	Path     string `gorm:"size:500;not null" json:"path"`
	MimeType string `gorm:"size:100;not null;default:'application/pdf'" json:"mime_type"`
	Size     int64  `json:"size"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Notification is an outbound message queued for a customer
// (invoice created, payment updated). Dispatch is best-effort.
type Notification struct {
	ID         uint     `gorm:"primaryKey" json:"id"`
	CustomerID uint     `gorm:"index;not null" json:"customer_id"`
	Customer   Customer `gorm:"foreignKey:CustomerID" json:"-"`

	Kind    string `gorm:"size:50;not null" json:"kind"` // invoice_created, payment_updated
	Subject string `gorm:"size:255;not null" json:"subject"`
	Body    string `gorm:"type:text" json:"body"`

	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
