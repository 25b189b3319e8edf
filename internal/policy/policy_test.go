package policy

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/models"
)

func TestInvoicePolicyRoles(t *testing.T) {
	techID := uint(3)
	inv := &models.Invoice{
		CustomerID: 2,
		Repair:     models.Repair{TechnicianID: &techID},
	}
	g := Default()

	admin := Principal{ID: 1, Role: models.RoleAdmin}
	owner := Principal{ID: 2, Role: models.RoleCustomer}
	tech := Principal{ID: 3, Role: models.RoleTechnician}
	other := Principal{ID: 9, Role: models.RoleCustomer}

	if !g.Can(admin, ActionCreate, "invoice", nil) {
		t.Fatal("admin should create invoices")
	}
	if g.Can(owner, ActionCreate, "invoice", nil) {
		t.Fatal("customer must not create invoices")
	}
	if g.Can(tech, ActionDelete, "invoice", inv) {
		t.Fatal("technician must not delete invoices")
	}
	if !g.Can(owner, ActionView, "invoice", inv) {
		t.Fatal("customer should view own invoice")
	}
	if g.Can(other, ActionView, "invoice", inv) {
		t.Fatal("customer must not view another customer's invoice")
	}
	if !g.Can(tech, ActionView, "invoice", inv) {
		t.Fatal("technician should view invoice of assigned repair")
	}
}

func TestGateRejectsZeroPrincipal(t *testing.T) {
	g := Default()
	if err := g.Authorize(Principal{}, ActionList, "invoice", nil); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := g.Authorize(Principal{ID: 1, Role: models.RoleAdmin}, ActionList, "unknown", nil); err != ErrNoPolicyDefined {
		t.Fatalf("expected ErrNoPolicyDefined, got %v", err)
	}
}

func TestVisibleInvoicesScope(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Customer{}, &models.Vehicle{}, &models.Repair{}, &models.Invoice{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	alice := models.Customer{Name: "Alice", Email: "alice@test", Phone: "1", PasswordHash: "x"}
	bob := models.Customer{Name: "Bob", Email: "bob@test", Phone: "2", PasswordHash: "x"}
	tech := models.Customer{Name: "Tech", Email: "tech@test", Phone: "3", PasswordHash: "x", Role: models.RoleTechnician}
	for _, c := range []*models.Customer{&alice, &bob, &tech} {
		if err := db.Create(c).Error; err != nil {
			t.Fatalf("customer: %v", err)
		}
	}
	mkInvoice := func(owner models.Customer, plate, number string, techID *uint) {
		t.Helper()
		v := models.Vehicle{CustomerID: owner.ID, Brand: "Toyota", Model: "Yaris", Year: 2020, LicensePlate: plate}
		if err := db.Create(&v).Error; err != nil {
			t.Fatalf("vehicle: %v", err)
		}
		r := models.Repair{VehicleID: v.ID, Description: "work", StartDate: v.CreatedAt, TechnicianID: techID}
		if err := db.Create(&r).Error; err != nil {
			t.Fatalf("repair: %v", err)
		}
		inv := models.Invoice{RepairID: r.ID, CustomerID: owner.ID, InvoiceNumber: number, IssueDate: r.StartDate}
		if err := db.Create(&inv).Error; err != nil {
			t.Fatalf("invoice: %v", err)
		}
	}
	mkInvoice(alice, "100TUN100", "ECAR/2025/010001", &tech.ID)
	mkInvoice(bob, "200TUN200", "ECAR/2025/010002", nil)

	count := func(p Principal) int64 {
		var n int64
		db.Model(&models.Invoice{}).Scopes(VisibleInvoices(p)).Count(&n)
		return n
	}
	if n := count(Principal{ID: 99, Role: models.RoleAdmin}); n != 2 {
		t.Fatalf("admin sees %d invoices, want 2", n)
	}
	if n := count(Principal{ID: alice.ID, Role: models.RoleCustomer}); n != 1 {
		t.Fatalf("alice sees %d invoices, want 1", n)
	}
	if n := count(Principal{ID: tech.ID, Role: models.RoleTechnician}); n != 1 {
		t.Fatalf("technician sees %d invoices, want 1", n)
	}
}
