package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is a pure function of paid_amount vs total_amount,
// recomputed only by the payment-recording operation.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// PaymentMethods lists the accepted wire values.
func PaymentMethods() []string {
	return []string{string(PaymentMethodCash), string(PaymentMethodCreditCard), string(PaymentMethodBankTransfer)}
}

// Invoice is created only as a byproduct of an existing repair (1:1).
// CustomerID is stored directly for query efficiency and must stay
// consistent with repair.vehicle.customer.
type Invoice struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	RepairID uint   `gorm:"uniqueIndex;not null" json:"repair_id"`
	Repair   Repair `gorm:"foreignKey:RepairID" json:"-"`

	CustomerID uint     `gorm:"index;not null" json:"customer_id"`
	Customer   Customer `gorm:"foreignKey:CustomerID" json:"-"`

	// InvoiceNumber follows the Tunisian "Facturation Normalisée" scheme:
	// ECAR/YYYY/MM#### with a 4-digit sequence per (year, month) bucket.
	// Assigned once at creation, immutable afterwards.
	InvoiceNumber string `gorm:"size:50;uniqueIndex;not null" json:"invoice_number"`

	Amount    decimal.Decimal `gorm:"type:decimal(10,3);not null" json:"amount"`
	TaxAmount decimal.Decimal `gorm:"type:decimal(10,3);not null" json:"tax_amount"`

	IssueDate time.Time  `gorm:"not null" json:"issue_date"`
	DueDate   *time.Time `json:"due_date,omitempty"`

	PaymentStatus PaymentStatus   `gorm:"size:20;not null;default:'unpaid'" json:"payment_status"`
	PaymentMethod *PaymentMethod  `gorm:"size:20" json:"payment_method,omitempty"`
	PaidAmount    decimal.Decimal `gorm:"type:decimal(10,3);not null;default:0" json:"paid_amount"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TotalAmount is amount + tax_amount.
func (i *Invoice) TotalAmount() decimal.Decimal {
	return i.Amount.Add(i.TaxAmount)
}

// RemainingBalance is the unpaid part of the total, never negative.
func (i *Invoice) RemainingBalance() decimal.Decimal {
	rest := i.TotalAmount().Sub(i.PaidAmount)
	if rest.Sign() < 0 {
		return decimal.Zero
	}
	return rest
}

func (i *Invoice) Unpaid() bool  { return i.PaymentStatus == PaymentStatusUnpaid }
func (i *Invoice) Partial() bool { return i.PaymentStatus == PaymentStatusPartial }
func (i *Invoice) Paid() bool    { return i.PaymentStatus == PaymentStatusPaid }
