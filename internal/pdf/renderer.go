// Package pdf renders the Tunisian "Facture Normalisée" layout for an
// invoice. Rendering is deterministic for a given snapshot and idempotent:
// regenerating simply replaces the previous attachment.
package pdf

import (
	"fmt"
	"strings"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/phara0n/ecarv1/internal/config"
	"github.com/phara0n/ecarv1/internal/models"
)

// Snapshot is the flat view of an invoice and its related records at
// render time. Handlers assemble it so the renderer stays free of
// persistence concerns.
type Snapshot struct {
	InvoiceNumber string
	IssueDate     time.Time

	CustomerName    string
	CustomerAddress string
	CustomerPhone   string
	CustomerEmail   string

	VehicleBrand   string
	VehicleModel   string
	VehicleYear    int
	LicensePlate   string
	CurrentMileage int

	RepairDescription string

	Amount    decimal.Decimal
	TaxAmount decimal.Decimal

	PaymentStatus string
	PaymentMethod string
}

// TotalAmount is amount + tax.
func (s Snapshot) TotalAmount() decimal.Decimal { return s.Amount.Add(s.TaxAmount) }

// FileName is the stored attachment name, slashes flattened.
func (s Snapshot) FileName() string {
	return "facture_" + strings.ReplaceAll(s.InvoiceNumber, "/", "_") + ".pdf"
}

// NewSnapshot flattens an invoice loaded with its customer, repair and
// vehicle into render input.
func NewSnapshot(inv *models.Invoice) Snapshot {
	s := Snapshot{
		InvoiceNumber:     inv.InvoiceNumber,
		IssueDate:         inv.IssueDate,
		CustomerName:      inv.Customer.Name,
		CustomerAddress:   inv.Customer.Address,
		CustomerPhone:     inv.Customer.Phone,
		CustomerEmail:     inv.Customer.Email,
		VehicleBrand:      inv.Repair.Vehicle.Brand,
		VehicleModel:      inv.Repair.Vehicle.Model,
		VehicleYear:       inv.Repair.Vehicle.Year,
		LicensePlate:      inv.Repair.Vehicle.LicensePlate,
		CurrentMileage:    inv.Repair.Vehicle.CurrentMileage,
		RepairDescription: inv.Repair.Description,
		Amount:            inv.Amount,
		TaxAmount:         inv.TaxAmount,
		PaymentStatus:     string(inv.PaymentStatus),
	}
	if inv.PaymentMethod != nil {
		s.PaymentMethod = string(*inv.PaymentMethod)
	}
	return s
}

// Renderer produces fiscal PDF documents. The fiscal identity block is
// fixed at construction.
type Renderer struct {
	fiscal config.Fiscal
}

func NewRenderer(fiscal config.Fiscal) *Renderer {
	return &Renderer{fiscal: fiscal}
}

var paymentStatusLabels = map[string]string{
	"unpaid":  "Non payée",
	"partial": "Partiellement payée",
	"paid":    "Payée",
}

var paymentMethodLabels = map[string]string{
	"cash":          "Espèces",
	"credit_card":   "Carte bancaire",
	"bank_transfer": "Virement bancaire",
}

func label(m map[string]string, key string) string {
	if l, ok := m[key]; ok {
		return l
	}
	return key
}

func money(d decimal.Decimal) string { return d.StringFixed(3) }

// content returns every text line of the document in order. Render emits
// exactly these lines, so the document content is inspectable without a
// PDF parser.
func (r *Renderer) content(s Snapshot) []string {
	lines := []string{
		r.fiscal.CompanyName,
		"Facture Normalisée",
		"Facture N°: " + s.InvoiceNumber,
		"Date: " + s.IssueDate.Format("02/01/2006"),
		"Client: " + s.CustomerName,
	}
	if s.CustomerAddress != "" {
		lines = append(lines, "Adresse: "+s.CustomerAddress)
	}
	if s.CustomerPhone != "" {
		lines = append(lines, "Téléphone: "+s.CustomerPhone)
	}
	if s.CustomerEmail != "" {
		lines = append(lines, "Email: "+s.CustomerEmail)
	}
	lines = append(lines,
		fmt.Sprintf("Véhicule: %s %s (%d)", s.VehicleBrand, s.VehicleModel, s.VehicleYear),
		"Immatriculation: "+s.LicensePlate,
		fmt.Sprintf("Kilométrage: %d km", s.CurrentMileage),
		"Détails de la réparation:",
		s.RepairDescription,
	)
	cur := r.fiscal.Currency
	lines = append(lines,
		fmt.Sprintf("Réparation: %s %s", money(s.Amount), cur),
		fmt.Sprintf("Montant HT: %s %s", money(s.Amount), cur),
		fmt.Sprintf("TVA (%s%%): %s %s", r.fiscal.VATRate.Mul(decimal.New(100, 0)).String(), money(s.TaxAmount), cur),
		fmt.Sprintf("Montant TTC: %s %s", money(s.TotalAmount()), cur),
		"Statut de paiement: "+label(paymentStatusLabels, s.PaymentStatus),
	)
	if s.PaymentMethod != "" && s.PaymentStatus != "unpaid" {
		lines = append(lines, "Méthode de paiement: "+label(paymentMethodLabels, s.PaymentMethod))
	}
	lines = append(lines,
		r.fiscal.LegalText,
		"Identifiant Fiscal: "+r.fiscal.FiscalID,
		"Registre de Commerce: "+r.fiscal.CommercialRegistry,
	)
	return lines
}

// Render builds the paginated fiscal document and returns its bytes.
func (r *Renderer) Render(s Snapshot) ([]byte, error) {
	m := maroto.New()

	lines := r.content(s)
	rows := make([]core.Row, 0, len(lines)+4)

	// header: company identity and document title
	rows = append(rows,
		row.New(12).Add(text.NewCol(12, lines[0], props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Center})),
		row.New(8).Add(text.NewCol(12, lines[1], props.Text{Size: 12, Style: fontstyle.Bold, Align: align.Center})),
		line.NewRow(4),
	)
	// invoice number and date stand out; everything else is body text
	rows = append(rows,
		row.New(6).Add(text.NewCol(12, lines[2], props.Text{Size: 11, Style: fontstyle.Bold})),
		row.New(6).Add(text.NewCol(12, lines[3], props.Text{Size: 10})),
	)
	body := lines[4 : len(lines)-3]
	for _, l := range body {
		rows = append(rows, row.New(5).Add(text.NewCol(12, l, props.Text{Size: 10})))
	}
	// fiscal footer
	rows = append(rows, line.NewRow(4))
	for _, l := range lines[len(lines)-3:] {
		rows = append(rows, row.New(4).Add(text.NewCol(12, l, props.Text{Size: 8})))
	}
	m.AddRows(rows...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}
