package services

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/models"
)

func setupNumberingDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Customer{}, &models.Vehicle{}, &models.Repair{}, &models.Invoice{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func insertInvoice(t *testing.T, db *gorm.DB, number string, issue time.Time) {
	t.Helper()
	c := models.Customer{Name: "N", Email: number + "@test", Phone: "1", PasswordHash: "x"}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("customer: %v", err)
	}
	v := models.Vehicle{CustomerID: c.ID, Brand: "B", Model: "M", Year: 2020, LicensePlate: "PL-" + number}
	if err := db.Create(&v).Error; err != nil {
		t.Fatalf("vehicle: %v", err)
	}
	r := models.Repair{VehicleID: v.ID, Description: "d", StartDate: issue}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("repair: %v", err)
	}
	inv := models.Invoice{RepairID: r.ID, CustomerID: c.ID, InvoiceNumber: number, IssueDate: issue}
	if err := db.Create(&inv).Error; err != nil {
		t.Fatalf("invoice: %v", err)
	}
}

func TestNextInvoiceNumberFirstOfMonth(t *testing.T) {
	db := setupNumberingDB(t)
	asOf := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	number, err := NextInvoiceNumber(db, asOf)
	if err != nil {
		t.Fatalf("next number: %v", err)
	}
	if number != "ECAR/2025/030001" {
		t.Fatalf("number = %s, want ECAR/2025/030001", number)
	}
}

func TestNextInvoiceNumberIncrements(t *testing.T) {
	db := setupNumberingDB(t)
	asOf := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	insertInvoice(t, db, "ECAR/2025/030006", asOf)

	number, err := NextInvoiceNumber(db, asOf)
	if err != nil {
		t.Fatalf("next number: %v", err)
	}
	if number != "ECAR/2025/030007" {
		t.Fatalf("number = %s, want ECAR/2025/030007", number)
	}
}

func TestNextInvoiceNumberMonthScoping(t *testing.T) {
	db := setupNumberingDB(t)
	march := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	april := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	insertInvoice(t, db, "ECAR/2025/030003", march)

	number, err := NextInvoiceNumber(db, april)
	if err != nil {
		t.Fatalf("next number: %v", err)
	}
	if number != "ECAR/2025/040001" {
		t.Fatalf("april restarts at 0001, got %s", number)
	}
}

func TestNextInvoiceNumberMonotonic(t *testing.T) {
	db := setupNumberingDB(t)
	asOf := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
	seen := map[string]bool{}
	for i := 1; i <= 12; i++ {
		number, err := NextInvoiceNumber(db, asOf)
		if err != nil {
			t.Fatalf("next number: %v", err)
		}
		want := fmt.Sprintf("ECAR/2025/07%04d", i)
		if number != want {
			t.Fatalf("iteration %d: number = %s, want %s", i, number, want)
		}
		if seen[number] {
			t.Fatalf("duplicate number %s", number)
		}
		seen[number] = true
		insertInvoice(t, db, number, asOf)
	}
}

func TestNextInvoiceNumberLexicographicOrdering(t *testing.T) {
	db := setupNumberingDB(t)
	asOf := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	// out-of-order inserts must not confuse the max lookup
	insertInvoice(t, db, "ECAR/2025/120002", asOf)
	insertInvoice(t, db, "ECAR/2025/120010", asOf)
	insertInvoice(t, db, "ECAR/2025/120009", asOf)

	number, err := NextInvoiceNumber(db, asOf)
	if err != nil {
		t.Fatalf("next number: %v", err)
	}
	if number != "ECAR/2025/120011" {
		t.Fatalf("number = %s, want ECAR/2025/120011", number)
	}
}
