// Package documents renders receipts, invoices and quotations to PDF and
// publishes them to object storage.
package documents

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"whatsapp-assistant/internal/models"
)

var (
	ErrNotFound       = errors.New("documents: document not found")
	ErrInvalidRequest = errors.New("documents: invalid request")
)

type Type string

const (
	Receipt   Type = "receipt"
	Invoice   Type = "invoice"
	Quotation Type = "quotation"
)

func (t Type) Valid() bool {
	return t == Receipt || t == Invoice || t == Quotation
}

func (t Type) title() string {
	switch t {
	case Invoice:
		return "INVOICE"
	case Quotation:
		return "QUOTATION"
	default:
		return "RECEIPT"
	}
}

// Request selects one document. With neither DocumentID nor DocumentNumber
// the tenant's most recent document of the type is used.
type Request struct {
	Type           Type
	TenantID       string
	DocumentID     string
	DocumentNumber string
}

// Artifact is a rendered and stored document. Every call produces a new one.
type Artifact struct {
	Type           Type
	DocumentNumber string
	Filename       string
	StorageKey     string
	URL            string
	Data           []byte
}

// Document is the renderer's view of a receipt, invoice or quotation.
type Document struct {
	Type          Type
	Number        string
	Date          time.Time
	Tenant        models.Tenant
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	PaymentMethod string
	Items         []models.LineItem
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	ImpactUnits   int
	Notes         string
	Status        string
	DueDate       *time.Time
	ValidUntil    *time.Time

	// Synthetic is set when a receipt was rebuilt from sales transactions.
	Synthetic bool
}
