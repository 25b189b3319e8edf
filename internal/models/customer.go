package models

import "time"

// Role of a principal in the back office.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleTechnician Role = "technician"
	RoleCustomer   Role = "customer"
)

// Staff reports whether the role may see every invoice.
func (r Role) Staff() bool { return r == RoleAdmin || r == RoleManager }

// Customer is both a garage client and a login principal.
// Staff accounts (admin/manager/technician) are customers with an elevated role.
type Customer struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"size:255;not null" json:"name"`
	Email        string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Phone        string `gorm:"size:50;not null" json:"phone"`
	Address      string `gorm:"size:500" json:"address,omitempty"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	Role         Role   `gorm:"size:20;not null;default:'customer'" json:"role"`

	Vehicles []Vehicle `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"vehicles,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
