package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/logger"
	"github.com/phara0n/ecarv1/internal/models"
	"github.com/phara0n/ecarv1/internal/validation"
)

// Job kinds dispatched by the invoice lifecycle. Rendering and
// notification run outside the request; their failures never roll back
// the invoice mutation that triggered them.
const (
	JobRenderPDF     = "invoice.render_pdf"
	JobNotifyCreated = "invoice.notify_created"
	JobNotifyPayment = "invoice.notify_payment"
)

// Dispatcher hands deferred work to the background queue.
type Dispatcher interface {
	Dispatch(kind string, invoiceID uint)
}

// AttachmentStore removes a stored PDF when its invoice goes away.
type AttachmentStore interface {
	Remove(invoiceID uint) error
}

// InvoiceService orchestrates the invoice lifecycle: numbering, tax
// computation, persistence, and deferred side effects.
type InvoiceService struct {
	db         *gorm.DB
	calc       *Calculator
	dispatcher Dispatcher
	store      AttachmentStore
	log        zerolog.Logger
}

func NewInvoiceService(db *gorm.DB, calc *Calculator, dispatcher Dispatcher, store AttachmentStore) *InvoiceService {
	return &InvoiceService{
		db:         db,
		calc:       calc,
		dispatcher: dispatcher,
		store:      store,
		log:        logger.WithComponent("invoices"),
	}
}

// CreateInvoiceInput carries the caller-supplied fields for creation.
// TaxAmount nil means "compute from the VAT rate".
type CreateInvoiceInput struct {
	RepairID  uint
	Amount    decimal.Decimal
	TaxAmount *decimal.Decimal
	IssueDate *time.Time
	DueDate   *time.Time
}

// Create validates the repair, fills derived fields, assigns the fiscal
// number inside the insert transaction, and schedules the PDF render and
// creation notification. A duplicate-number race is retried once with a
// freshly computed number.
func (s *InvoiceService) Create(ctx context.Context, in CreateInvoiceInput) (*models.Invoice, error) {
	v := make(validation.Violations)
	validation.PositiveAmount("amount", in.Amount, v)
	if in.RepairID == 0 {
		v["repair_id"] = "required"
	}
	if in.TaxAmount != nil {
		validation.NonNegativeAmount("tax_amount", *in.TaxAmount, v)
	}
	if !v.Empty() {
		return nil, NewValidationError(v)
	}

	var repair models.Repair
	if err := s.db.WithContext(ctx).Preload("Vehicle").First(&repair, in.RepairID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("repair %d: %w", in.RepairID, ErrNotFound)
		}
		return nil, err
	}
	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("repair_id = ?", repair.ID).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, fmt.Errorf("repair %d already has an invoice: %w", repair.ID, ErrConflict)
	}

	issueDate := time.Now()
	if in.IssueDate != nil {
		issueDate = *in.IssueDate
	}
	taxAmount := s.calc.ComputeTax(in.Amount)
	if in.TaxAmount != nil {
		taxAmount = *in.TaxAmount
	}

	invoice := models.Invoice{
		RepairID: repair.ID,
		// ownership is always derived from repair→vehicle→customer
		CustomerID:    repair.Vehicle.CustomerID,
		Amount:        in.Amount,
		TaxAmount:     taxAmount,
		IssueDate:     issueDate,
		DueDate:       in.DueDate,
		PaymentStatus: models.PaymentStatusUnpaid,
		PaidAmount:    decimal.Zero,
	}

	insert := func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := NextInvoiceNumber(tx, issueDate)
			if err != nil {
				return err
			}
			invoice.ID = 0
			invoice.InvoiceNumber = number
			return tx.Create(&invoice).Error
		})
	}
	if err := insert(); err != nil {
		if !isUniqueViolation(err) {
			return nil, err
		}
		// a concurrent creation took our number; recompute once
		s.log.Warn().Str("invoice_number", invoice.InvoiceNumber).Msg("invoice number collision, retrying")
		if err := insert(); err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("invoice number collision persisted: %w", ErrConflict)
			}
			return nil, err
		}
	}

	s.dispatch(JobRenderPDF, invoice.ID)
	s.dispatch(JobNotifyCreated, invoice.ID)
	return &invoice, nil
}

// UpdateInvoiceInput lists the mutable fields; nil means unchanged.
// The invoice number is never regenerated.
type UpdateInvoiceInput struct {
	Amount    *decimal.Decimal
	TaxAmount *decimal.Decimal
	IssueDate *time.Time
	DueDate   *time.Time
}

// Update applies changed fields and regenerates the PDF when a financial
// field moved.
func (s *InvoiceService) Update(ctx context.Context, id uint, in UpdateInvoiceInput) (*models.Invoice, error) {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	v := make(validation.Violations)
	if in.Amount != nil {
		validation.PositiveAmount("amount", *in.Amount, v)
	}
	if in.TaxAmount != nil {
		validation.NonNegativeAmount("tax_amount", *in.TaxAmount, v)
	}
	if !v.Empty() {
		return nil, NewValidationError(v)
	}

	financialChange := false
	if in.Amount != nil && !in.Amount.Equal(invoice.Amount) {
		invoice.Amount = *in.Amount
		financialChange = true
	}
	if in.TaxAmount != nil && !in.TaxAmount.Equal(invoice.TaxAmount) {
		invoice.TaxAmount = *in.TaxAmount
		financialChange = true
	}
	if in.IssueDate != nil {
		invoice.IssueDate = *in.IssueDate
	}
	if in.DueDate != nil {
		invoice.DueDate = in.DueDate
	}
	if err := s.db.WithContext(ctx).Save(invoice).Error; err != nil {
		return nil, err
	}
	if financialChange {
		s.dispatch(JobRenderPDF, invoice.ID)
	}
	return invoice, nil
}

// RecordPayment sets the cumulative paid amount, stamps method and date,
// and recomputes the payment status. Both method and amount are required.
func (s *InvoiceService) RecordPayment(ctx context.Context, id uint, method string, paidAmount *decimal.Decimal) (*models.Invoice, error) {
	v := make(validation.Violations)
	validation.Required("payment_method", method, v)
	validation.OneOf("payment_method", method, models.PaymentMethods(), v)
	if paidAmount == nil {
		v["paid_amount"] = "required"
	} else {
		validation.NonNegativeAmount("paid_amount", *paidAmount, v)
	}
	if !v.Empty() {
		return nil, NewValidationError(v)
	}

	invoice, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	pm := models.PaymentMethod(method)
	invoice.PaidAmount = *paidAmount
	invoice.PaymentMethod = &pm
	invoice.PaymentDate = &now
	invoice.PaymentStatus = ClassifyPayment(*paidAmount, invoice.TotalAmount())
	if err := s.db.WithContext(ctx).Save(invoice).Error; err != nil {
		return nil, err
	}
	s.dispatch(JobNotifyPayment, invoice.ID)
	return invoice, nil
}

// Destroy removes the invoice and its attached PDF. The attachment goes
// first: the documents row cascades with the invoice, so removing it
// afterwards would find nothing and leave the file on disk.
func (s *InvoiceService) Destroy(ctx context.Context, id uint) error {
	invoice, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.store != nil {
		if err := s.store.Remove(invoice.ID); err != nil {
			s.log.Warn().Err(err).Uint("invoice_id", invoice.ID).Msg("remove attachment")
		}
	}
	return s.db.WithContext(ctx).Delete(invoice).Error
}

// Get loads an invoice with its repair, vehicle and customer.
func (s *InvoiceService) Get(ctx context.Context, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Repair").Preload("Repair.Vehicle").Preload("Customer").
		First(&invoice, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &invoice, nil
}

func (s *InvoiceService) dispatch(kind string, invoiceID uint) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Dispatch(kind, invoiceID)
}

// isUniqueViolation matches duplicate-key errors across postgres and
// sqlite without depending on driver error types.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
