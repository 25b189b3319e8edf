package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/httpx"
	"github.com/phara0n/ecarv1/internal/models"
	"github.com/phara0n/ecarv1/internal/policy"
	"github.com/phara0n/ecarv1/internal/services"
	"github.com/phara0n/ecarv1/internal/storage"
)

// DocumentStore serves stored invoice PDFs.
type DocumentStore interface {
	Get(invoiceID uint) (*models.Document, []byte, error)
}

// RenderFn renders and stores the PDF of one invoice synchronously.
// Download falls back to it when no document exists yet.
type RenderFn func(invoiceID uint) error

type InvoiceHandler struct {
	db     *gorm.DB
	gate   *policy.Gate
	svc    *services.InvoiceService
	docs   DocumentStore
	render RenderFn
}

func NewInvoiceHandler(db *gorm.DB, gate *policy.Gate, svc *services.InvoiceService, docs DocumentStore, render RenderFn) *InvoiceHandler {
	return &InvoiceHandler{db: db, gate: gate, svc: svc, docs: docs, render: render}
}

// invoiceView adds the derived money fields to the model.
type invoiceView struct {
	models.Invoice
	TotalAmount      decimal.Decimal `json:"total_amount"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

func newInvoiceView(inv models.Invoice) invoiceView {
	return invoiceView{
		Invoice:          inv,
		TotalAmount:      inv.TotalAmount(),
		RemainingBalance: inv.RemainingBalance(),
	}
}

// List returns the invoices visible to the caller, filtered by
// payment_status, customer_id and issue-date range, newest first.
func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	if err := h.gate.Authorize(p, policy.ActionList, "invoice", nil); err != nil {
		writeError(w, err)
		return
	}

	page, perPage := pagination(r)
	q := r.URL.Query()

	db := h.db.WithContext(r.Context()).Model(&models.Invoice{}).
		Scopes(policy.VisibleInvoices(p))
	if s := q.Get("payment_status"); s != "" {
		db = db.Where("invoices.payment_status = ?", s)
	}
	if cid := q.Get("customer_id"); cid != "" && p.Role.Staff() {
		db = db.Where("invoices.customer_id = ?", cid)
	}
	if from := q.Get("start_date"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			db = db.Where("invoices.issue_date >= ?", t)
		}
	}
	if to := q.Get("end_date"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			db = db.Where("invoices.issue_date < ?", t.AddDate(0, 0, 1))
		}
	}

	var total int64
	db.Count(&total)

	var invoices []models.Invoice
	err := db.Preload("Repair").Preload("Repair.Vehicle").Preload("Customer").
		Order("invoices.issue_date DESC, invoices.id DESC").
		Limit(perPage).Offset((page - 1) * perPage).
		Find(&invoices).Error
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]invoiceView, 0, len(invoices))
	for _, inv := range invoices {
		views = append(views, newInvoiceView(inv))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"invoices": views,
		"meta":     meta(total, page, perPage),
	})
}

func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	if err := h.gate.Authorize(p, policy.ActionCreate, "invoice", nil); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		RepairID  uint             `json:"repair_id"`
		Amount    decimal.Decimal  `json:"amount"`
		TaxAmount *decimal.Decimal `json:"tax_amount"`
		IssueDate *time.Time       `json:"issue_date"`
		DueDate   *time.Time       `json:"due_date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	invoice, err := h.svc.Create(r.Context(), services.CreateInvoiceInput{
		RepairID:  req.RepairID,
		Amount:    req.Amount,
		TaxAmount: req.TaxAmount,
		IssueDate: req.IssueDate,
		DueDate:   req.DueDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newInvoiceView(*invoice))
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	invoice, err := h.svc.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionView, "invoice", invoice); err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newInvoiceView(*invoice))
}

func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	id := pathID(r, "id")
	invoice, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionUpdate, "invoice", invoice); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		Amount    *decimal.Decimal `json:"amount"`
		TaxAmount *decimal.Decimal `json:"tax_amount"`
		IssueDate *time.Time       `json:"issue_date"`
		DueDate   *time.Time       `json:"due_date"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.svc.Update(r.Context(), id, services.UpdateInvoiceInput{
		Amount:    req.Amount,
		TaxAmount: req.TaxAmount,
		IssueDate: req.IssueDate,
		DueDate:   req.DueDate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newInvoiceView(*updated))
}

// Payment records a cumulative payment against the invoice.
func (h *InvoiceHandler) Payment(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	id := pathID(r, "id")
	invoice, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionUpdate, "invoice", invoice); err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		PaymentMethod string           `json:"payment_method"`
		PaidAmount    *decimal.Decimal `json:"paid_amount"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := h.svc.RecordPayment(r.Context(), id, req.PaymentMethod, req.PaidAmount)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newInvoiceView(*updated))
}

func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	invoice, err := h.svc.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionDelete, "invoice", invoice); err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Destroy(r.Context(), invoice.ID); err != nil {
		writeError(w, err)
		return
	}
	httpx.NoContent(w)
}

// Download serves the stored Facture Normalisée PDF, rendering it on
// demand when the invoice has never been rendered.
func (h *InvoiceHandler) Download(w http.ResponseWriter, r *http.Request) {
	p, _, ok := principal(h.db, w, r)
	if !ok {
		return
	}
	invoice, err := h.svc.Get(r.Context(), pathID(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.gate.Authorize(p, policy.ActionView, "invoice", invoice); err != nil {
		writeError(w, err)
		return
	}

	doc, data, err := h.docs.Get(invoice.ID)
	if errors.Is(err, storage.ErrNotStored) && h.render != nil {
		if err := h.render(invoice.ID); err != nil {
			writeError(w, err)
			return
		}
		doc, data, err = h.docs.Get(invoice.ID)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
