package models

import "time"

// RepairStatus values form a closed set; persisted as short strings.
type RepairStatus string

const (
	RepairStatusScheduled  RepairStatus = "scheduled"
	RepairStatusInProgress RepairStatus = "in_progress"
	RepairStatusCompleted  RepairStatus = "completed"
	RepairStatusCancelled  RepairStatus = "cancelled"
)

// RepairStatuses lists the accepted wire values.
func RepairStatuses() []string {
	return []string{
		string(RepairStatusScheduled), string(RepairStatusInProgress),
		string(RepairStatusCompleted), string(RepairStatusCancelled),
	}
}

// Repair belongs to exactly one vehicle and has at most one invoice.
type Repair struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	VehicleID uint    `gorm:"index;not null" json:"vehicle_id"`
	Vehicle   Vehicle `gorm:"foreignKey:VehicleID" json:"-"`

	Description    string       `gorm:"type:text;not null" json:"description"`
	StartDate      time.Time    `gorm:"not null" json:"start_date"`
	CompletionDate *time.Time   `json:"completion_date,omitempty"`
	Cost           float64      `gorm:"default:0" json:"cost"`
	Status         RepairStatus `gorm:"size:20;not null;default:'scheduled'" json:"status"`
	Mechanic       string       `gorm:"size:255" json:"mechanic,omitempty"`
	// TechnicianID links the repair to the staff account working on it,
	// used by the access policy to scope a technician's invoice list.
	TechnicianID        *uint      `gorm:"index" json:"technician_id,omitempty"`
	PartsUsed           string     `gorm:"type:text" json:"parts_used,omitempty"`
	LaborHours          float64    `gorm:"default:0" json:"labor_hours"`
	NextServiceEstimate *time.Time `json:"next_service_estimate,omitempty"`

	Invoice *Invoice `gorm:"foreignKey:RepairID;constraint:OnDelete:CASCADE" json:"invoice,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TotalDays returns the repair duration in days, or nil while incomplete.
func (r *Repair) TotalDays() *int {
	if r.CompletionDate == nil {
		return nil
	}
	days := int(r.CompletionDate.Sub(r.StartDate).Hours() / 24)
	return &days
}
