package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/models"
)

// invoiceNumberPrefix is the fiscal series mandated for the garage.
const invoiceNumberPrefix = "ECAR"

// NextInvoiceNumber computes the next number in the (year, month) bucket
// derived from asOf: ECAR/YYYY/MM#### with a 4-digit zero-padded suffix
// starting at 0001. The 4-digit suffix is fixed width, so the descending
// string sort equals numeric ordering.
//
// It must run inside the same transaction as the insert that uses the
// number; the unique index on invoice_number is the backstop against two
// concurrent creations racing to the same value.
func NextInvoiceNumber(tx *gorm.DB, asOf time.Time) (string, error) {
	prefix := fmt.Sprintf("%s/%d/%02d", invoiceNumberPrefix, asOf.Year(), int(asOf.Month()))

	var latest models.Invoice
	err := tx.Where("invoice_number LIKE ?", prefix+"%").
		Order("invoice_number DESC").
		First(&latest).Error
	seq := 1
	switch {
	case err == nil:
		suffix := strings.TrimPrefix(latest.InvoiceNumber, prefix)
		n, convErr := strconv.Atoi(suffix)
		if convErr != nil {
			return "", fmt.Errorf("malformed invoice number %q: %w", latest.InvoiceNumber, convErr)
		}
		seq = n + 1
	case err == gorm.ErrRecordNotFound:
		// first invoice of the month
	default:
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}
