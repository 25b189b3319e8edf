package services

import (
	"github.com/shopspring/decimal"

	"github.com/phara0n/ecarv1/internal/config"
	"github.com/phara0n/ecarv1/internal/models"
)

// moneyPlaces is the Tunisian fraction precision (millimes).
const moneyPlaces = 3

// Calculator computes tax and payment classifications. All arithmetic
// is fixed-point decimal; the VAT rate comes from the fiscal config,
// never from ambient state.
type Calculator struct {
	rate decimal.Decimal
}

func NewCalculator(fiscal config.Fiscal) *Calculator {
	return &Calculator{rate: fiscal.VATRate}
}

// ComputeTax returns amount × rate rounded to 3 decimal places.
func (c *Calculator) ComputeTax(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(c.rate).Round(moneyPlaces)
}

// ComputeTotal returns amount + taxAmount.
func (c *Calculator) ComputeTotal(amount, taxAmount decimal.Decimal) decimal.Decimal {
	return amount.Add(taxAmount)
}

// ClassifyPayment maps a cumulative paid amount against the invoice
// total: paid ≥ total → paid; 0 < paid < total → partial; else unpaid.
func ClassifyPayment(paidAmount, totalAmount decimal.Decimal) models.PaymentStatus {
	switch {
	case paidAmount.Sign() <= 0:
		return models.PaymentStatusUnpaid
	case paidAmount.Cmp(totalAmount) >= 0:
		return models.PaymentStatusPaid
	default:
		return models.PaymentStatusPartial
	}
}
