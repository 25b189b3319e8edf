package notify

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/phara0n/ecarv1/internal/logger"
	"github.com/phara0n/ecarv1/internal/models"
)

const (
	KindInvoiceCreated = "invoice_created"
	KindPaymentUpdated = "payment_updated"
)

// Notifier queues customer notifications as rows in the notifications
// table. Actual delivery (email, SMS) is a separate concern reading
// unsent rows.
type Notifier struct {
	db  *gorm.DB
	log zerolog.Logger
}

func New(db *gorm.DB) *Notifier {
	return &Notifier{db: db, log: logger.WithComponent("notify")}
}

// InvoiceCreated records a notification telling the customer a new
// invoice was issued for their repair.
func (n *Notifier) InvoiceCreated(invoiceID uint) error {
	inv, err := n.loadInvoice(invoiceID)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Nouvelle facture %s", inv.InvoiceNumber)
	body := fmt.Sprintf(
		"Bonjour %s, votre facture %s d'un montant de %s TND est disponible.",
		inv.Customer.Name, inv.InvoiceNumber, inv.TotalAmount().StringFixed(3),
	)
	return n.record(inv, KindInvoiceCreated, subject, body)
}

// PaymentUpdated records a notification after a payment is registered
// against an invoice.
func (n *Notifier) PaymentUpdated(invoiceID uint) error {
	inv, err := n.loadInvoice(invoiceID)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("Paiement enregistré pour la facture %s", inv.InvoiceNumber)
	var body string
	if inv.Paid() {
		body = fmt.Sprintf(
			"Bonjour %s, votre facture %s est entièrement réglée. Merci.",
			inv.Customer.Name, inv.InvoiceNumber,
		)
	} else {
		body = fmt.Sprintf(
			"Bonjour %s, un paiement de %s TND a été enregistré sur la facture %s. Solde restant: %s TND.",
			inv.Customer.Name, inv.PaidAmount.StringFixed(3), inv.InvoiceNumber,
			inv.RemainingBalance().StringFixed(3),
		)
	}
	return n.record(inv, KindPaymentUpdated, subject, body)
}

func (n *Notifier) loadInvoice(id uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := n.db.Preload("Customer").First(&inv, id).Error; err != nil {
		return nil, fmt.Errorf("notify: load invoice %d: %w", id, err)
	}
	return &inv, nil
}

func (n *Notifier) record(inv *models.Invoice, kind, subject, body string) error {
	now := time.Now()
	notif := models.Notification{
		CustomerID: inv.CustomerID,
		Kind:       kind,
		Subject:    subject,
		Body:       body,
		SentAt:     &now,
	}
	if err := n.db.Create(&notif).Error; err != nil {
		return fmt.Errorf("notify: record %s: %w", kind, err)
	}
	n.log.Info().
		Str("kind", kind).
		Uint("invoice_id", inv.ID).
		Uint("customer_id", inv.CustomerID).
		Msg("notification queued")
	return nil
}
