package policy

import (
	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/models"
)

// CustomerPolicy: staff manage every account, a customer manages only
// their own record. Registration happens before authentication and is
// not gated here.
type CustomerPolicy struct{}

func (CustomerPolicy) Can(p Principal, action Action, resource any) bool {
	if p.Role.Staff() {
		return true
	}
	if action == ActionList || action == ActionCreate {
		return false
	}
	c, ok := resource.(*models.Customer)
	return ok && c.ID == p.ID
}

// VehiclePolicy: staff see everything; a customer only their own vehicles.
type VehiclePolicy struct{}

func (VehiclePolicy) Can(p Principal, action Action, resource any) bool {
	if p.Role.Staff() || p.Role == models.RoleTechnician {
		return true
	}
	if resource == nil {
		// list/create scoped to the caller's own garage record
		return true
	}
	v, ok := resource.(*models.Vehicle)
	return ok && v.CustomerID == p.ID
}

// RepairPolicy: staff and technicians manage repairs; a customer may
// only view repairs on their own vehicles.
type RepairPolicy struct{}

func (RepairPolicy) Can(p Principal, action Action, resource any) bool {
	if p.Role.Staff() || p.Role == models.RoleTechnician {
		return true
	}
	if action != ActionView && action != ActionList {
		return false
	}
	if resource == nil {
		return true
	}
	r, ok := resource.(*models.Repair)
	return ok && r.Vehicle.CustomerID == p.ID
}

// InvoicePolicy: only admin/manager create, update, delete invoices or
// record payments. Customers view their own; technicians view invoices
// attached to their repairs.
type InvoicePolicy struct{}

func (InvoicePolicy) Can(p Principal, action Action, resource any) bool {
	if p.Role.Staff() {
		return true
	}
	if action != ActionView && action != ActionList {
		return false
	}
	if resource == nil {
		return true // list is scoped by VisibleInvoices
	}
	inv, ok := resource.(*models.Invoice)
	if !ok {
		return false
	}
	switch p.Role {
	case models.RoleCustomer:
		return inv.CustomerID == p.ID
	case models.RoleTechnician:
		return inv.Repair.TechnicianID != nil && *inv.Repair.TechnicianID == p.ID
	}
	return false
}

// VisibleInvoices returns a gorm scope restricting an invoice query to
// what the principal may see: staff see all, customers their own,
// technicians the invoices of repairs assigned to them.
func VisibleInvoices(p Principal) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch {
		case p.Role.Staff():
			return db
		case p.Role == models.RoleTechnician:
			return db.Joins("JOIN repairs ON repairs.id = invoices.repair_id").
				Where("repairs.technician_id = ?", p.ID)
		default:
			return db.Where("invoices.customer_id = ?", p.ID)
		}
	}
}
