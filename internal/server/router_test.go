package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/auth"
	"github.com/phara0n/ecarv1/internal/config"
	"github.com/phara0n/ecarv1/internal/db"
	"github.com/phara0n/ecarv1/internal/models"
	"github.com/phara0n/ecarv1/internal/pdf"
	"github.com/phara0n/ecarv1/internal/policy"
	"github.com/phara0n/ecarv1/internal/services"
	"github.com/phara0n/ecarv1/internal/storage"
)

type testEnv struct {
	handler http.Handler
	db      *gorm.DB
	tokens  *auth.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store, err := storage.New(t.TempDir(), gdb)
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	fiscal := config.DefaultFiscal()
	calc := services.NewCalculator(fiscal)
	renderer := pdf.NewRenderer(fiscal)
	svc := services.NewInvoiceService(gdb, calc, nil, store)
	render := func(invoiceID uint) error {
		inv, err := svc.Get(context.Background(), invoiceID)
		if err != nil {
			return err
		}
		snap := pdf.NewSnapshot(inv)
		data, err := renderer.Render(snap)
		if err != nil {
			return err
		}
		_, err = store.Put(inv.ID, snap.FileName(), data)
		return err
	}

	tokens := auth.NewTokenIssuer("router-test-secret")
	handler := New(Deps{
		DB:          gdb,
		Tokens:      tokens,
		Gate:        policy.Default(),
		Invoices:    svc,
		Documents:   store,
		Attachments: store,
		RenderPDF:   render,
	})
	return &testEnv{handler: handler, db: gdb, tokens: tokens}
}

// seedAccount creates a customer row with the given role and returns
// a valid bearer token for it.
func (e *testEnv) seedAccount(t *testing.T, name, email string, role models.Role) (models.Customer, string) {
	t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	c := models.Customer{Name: name, Email: email, Phone: "20123456", PasswordHash: string(hash), Role: role}
	if err := e.db.Create(&c).Error; err != nil {
		t.Fatalf("seed %s: %v", email, err)
	}
	token, err := e.tokens.Issue(c.ID, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return c, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %s: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)
	if rec := e.do(t, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Errorf("/health = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/v1/vehicles", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["error"] != "Token missing" {
		t.Errorf("error = %v, want Token missing", body["error"])
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec2 := httptest.NewRecorder()
	e.handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec2.Code)
	}
	body2 := decode[map[string]any](t, rec2)
	if body2["error"] != "Invalid token" {
		t.Errorf("error = %v, want Invalid token", body2["error"])
	}
}

func TestRegistrationAndLogin(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/customers", "", map[string]any{
		"name": "Alice Ben Salah", "email": "alice@example.tn",
		"phone": "20123456", "password": "secret123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[models.Customer](t, rec)
	if created.Role != models.RoleCustomer {
		t.Errorf("role = %s, want customer", created.Role)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{
		"email": "alice@example.tn", "password": "secret123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rec.Code, rec.Body.String())
	}
	login := decode[map[string]any](t, rec)
	if login["token"] == nil || login["token"] == "" {
		t.Error("no token in login response")
	}

	rec = e.do(t, http.MethodPost, "/api/v1/login", "", map[string]string{
		"email": "alice@example.tn", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d, want 401", rec.Code)
	}
}

func TestInvoiceLifecycleThroughAPI(t *testing.T) {
	e := newTestEnv(t)
	_, adminToken := e.seedAccount(t, "Garage Admin", "admin@ecar.tn", models.RoleAdmin)
	alice, aliceToken := e.seedAccount(t, "Alice", "alice@ecar.tn", models.RoleCustomer)
	_, bobToken := e.seedAccount(t, "Bob", "bob@ecar.tn", models.RoleCustomer)

	// admin registers Alice's vehicle
	rec := e.do(t, http.MethodPost, "/api/v1/vehicles", adminToken, map[string]any{
		"customer_id": alice.ID, "brand": "Toyota", "model": "Yaris",
		"year": 2020, "license_plate": "123TUN456", "current_mileage": 45000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create vehicle = %d: %s", rec.Code, rec.Body.String())
	}
	vehicle := decode[models.Vehicle](t, rec)

	rec = e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/vehicles/%d/repairs", vehicle.ID), adminToken, map[string]any{
		"description": "Brake change", "cost": 150, "status": "completed",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create repair = %d: %s", rec.Code, rec.Body.String())
	}
	repair := decode[models.Repair](t, rec)

	// a customer may not issue invoices
	rec = e.do(t, http.MethodPost, "/api/v1/invoices", aliceToken, map[string]any{
		"repair_id": repair.ID, "amount": "150.000",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("customer create invoice = %d, want 403", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/invoices", adminToken, map[string]any{
		"repair_id": repair.ID, "amount": "150.000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invoice = %d: %s", rec.Code, rec.Body.String())
	}
	invoice := decode[struct {
		ID            uint        `json:"id"`
		InvoiceNumber string      `json:"invoice_number"`
		TaxAmount     json.Number `json:"tax_amount"`
		TotalAmount   json.Number `json:"total_amount"`
		PaymentStatus string      `json:"payment_status"`
	}](t, rec)
	if !strings.HasPrefix(invoice.InvoiceNumber, "ECAR/") {
		t.Errorf("invoice number = %s", invoice.InvoiceNumber)
	}
	if invoice.TaxAmount.String() != "28.5" {
		t.Errorf("tax = %s, want 28.5", invoice.TaxAmount)
	}
	if invoice.TotalAmount.String() != "178.5" {
		t.Errorf("total = %s, want 178.5", invoice.TotalAmount)
	}
	if invoice.PaymentStatus != "unpaid" {
		t.Errorf("status = %s", invoice.PaymentStatus)
	}

	// Alice sees her invoice, Bob does not
	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/invoices/%d", invoice.ID), aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("owner get = %d", rec.Code)
	}
	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/invoices/%d", invoice.ID), bobToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("stranger get = %d, want 403", rec.Code)
	}
	rec = e.do(t, http.MethodGet, "/api/v1/invoices", bobToken, nil)
	list := decode[struct {
		Invoices []any `json:"invoices"`
	}](t, rec)
	if len(list.Invoices) != 0 {
		t.Errorf("stranger list sees %d invoices", len(list.Invoices))
	}

	// partial then full payment
	rec = e.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/invoices/%d/payment", invoice.ID), adminToken, map[string]any{
		"payment_method": "cash", "paid_amount": "89.250",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("partial payment = %d: %s", rec.Code, rec.Body.String())
	}
	paid := decode[map[string]any](t, rec)
	if paid["payment_status"] != "partial" {
		t.Errorf("status = %v, want partial", paid["payment_status"])
	}

	rec = e.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/invoices/%d/payment", invoice.ID), adminToken, map[string]any{
		"payment_method": "cash", "paid_amount": "178.500",
	})
	paid = decode[map[string]any](t, rec)
	if paid["payment_status"] != "paid" {
		t.Errorf("status = %v, want paid", paid["payment_status"])
	}

	// download renders on demand and serves a PDF
	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/invoices/%d/download", invoice.ID), aliceToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %s", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("download body is not a PDF")
	}
}

// Deleting a repair cascades its invoice and documents rows, so the
// stored PDF must be cleaned up on the way out.
func TestRepairDeleteRemovesInvoiceAttachment(t *testing.T) {
	e := newTestEnv(t)
	_, adminToken := e.seedAccount(t, "Garage Admin", "admin@ecar.tn", models.RoleAdmin)
	alice, _ := e.seedAccount(t, "Alice", "alice@ecar.tn", models.RoleCustomer)

	rec := e.do(t, http.MethodPost, "/api/v1/vehicles", adminToken, map[string]any{
		"customer_id": alice.ID, "brand": "Peugeot", "model": "208",
		"year": 2021, "license_plate": "300TUN300",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create vehicle = %d: %s", rec.Code, rec.Body.String())
	}
	vehicle := decode[models.Vehicle](t, rec)

	rec = e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/vehicles/%d/repairs", vehicle.ID), adminToken, map[string]any{
		"description": "Oil change", "status": "completed",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create repair = %d: %s", rec.Code, rec.Body.String())
	}
	repair := decode[models.Repair](t, rec)

	rec = e.do(t, http.MethodPost, "/api/v1/invoices", adminToken, map[string]any{
		"repair_id": repair.ID, "amount": "80.000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invoice = %d: %s", rec.Code, rec.Body.String())
	}
	invoice := decode[models.Invoice](t, rec)

	// materialize the PDF
	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/invoices/%d/download", invoice.ID), adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download = %d: %s", rec.Code, rec.Body.String())
	}
	var doc models.Document
	if err := e.db.Where("invoice_id = ?", invoice.ID).First(&doc).Error; err != nil {
		t.Fatalf("document row: %v", err)
	}

	rec = e.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/repairs/%d", repair.ID), adminToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete repair = %d: %s", rec.Code, rec.Body.String())
	}

	if _, err := os.Stat(doc.Path); !os.IsNotExist(err) {
		t.Fatalf("attachment %s still on disk after repair delete", doc.Path)
	}
	var docs int64
	e.db.Model(&models.Document{}).Where("invoice_id = ?", invoice.ID).Count(&docs)
	if docs != 0 {
		t.Fatalf("documents rows = %d, want 0", docs)
	}
}

func TestVehicleMileageUpdate(t *testing.T) {
	e := newTestEnv(t)
	alice, aliceToken := e.seedAccount(t, "Alice", "alice@ecar.tn", models.RoleCustomer)

	rec := e.do(t, http.MethodPost, "/api/v1/vehicles", aliceToken, map[string]any{
		"brand": "Kia", "model": "Picanto", "year": 2022,
		"license_plate": "200TUN100", "current_mileage": 1000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create vehicle = %d: %s", rec.Code, rec.Body.String())
	}
	vehicle := decode[models.Vehicle](t, rec)
	if vehicle.CustomerID != alice.ID {
		t.Errorf("vehicle owner = %d, want %d", vehicle.CustomerID, alice.ID)
	}

	rec = e.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/vehicles/%d/mileage", vehicle.ID), aliceToken, map[string]any{
		"current_mileage": 1500,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("mileage = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[models.Vehicle](t, rec)
	if updated.CurrentMileage != 1500 {
		t.Errorf("mileage = %d, want 1500", updated.CurrentMileage)
	}

	rec = e.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/vehicles/%d/mileage", vehicle.ID), aliceToken, map[string]any{
		"current_mileage": -5,
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative mileage = %d, want 422", rec.Code)
	}
}
