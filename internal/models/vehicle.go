package models

import "time"

// Vehicle belongs to exactly one customer.
type Vehicle struct {
	ID         uint     `gorm:"primaryKey" json:"id"`
	CustomerID uint     `gorm:"index;not null" json:"customer_id"`
	Customer   Customer `gorm:"foreignKey:CustomerID" json:"-"`

	Brand           string  `gorm:"size:100;not null" json:"brand"`
	Model           string  `gorm:"size:100;not null" json:"model"`
	Year            int     `gorm:"not null" json:"year"`
	LicensePlate    string  `gorm:"size:30;uniqueIndex;not null" json:"license_plate"`
	VIN             *string `gorm:"size:50;uniqueIndex" json:"vin,omitempty"`
	CurrentMileage  int     `gorm:"default:0" json:"current_mileage"`
	AvgDailyUsageKM float64 `gorm:"column:avg_daily_usage_km;default:0" json:"average_daily_usage"`

	Repairs []Repair `gorm:"foreignKey:VehicleID;constraint:OnDelete:CASCADE" json:"repairs,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NextServiceDueDate returns the next_service_estimate of the most recently
// completed repair that carries one, or nil when none is scheduled.
// Repairs must be preloaded.
func (v *Vehicle) NextServiceDueDate() *time.Time {
	var due *time.Time
	var latest time.Time
	for i := range v.Repairs {
		r := &v.Repairs[i]
		if r.NextServiceEstimate == nil {
			continue
		}
		if r.CompletionDate != nil && r.CompletionDate.After(latest) {
			latest = *r.CompletionDate
			due = r.NextServiceEstimate
		} else if due == nil {
			due = r.NextServiceEstimate
		}
	}
	return due
}

// DaysUntilNextService returns the number of days until the next service
// estimate, negative when overdue, or nil when unknown.
func (v *Vehicle) DaysUntilNextService(now time.Time) *int {
	due := v.NextServiceDueDate()
	if due == nil {
		return nil
	}
	days := int(due.Sub(now).Hours() / 24)
	return &days
}
