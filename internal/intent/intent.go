// Package intent turns free-text WhatsApp messages into structured intents.
//
// The language model only proposes an intent and an entity bag. Numeric
// coercion, payment-method canonicalisation and the confirmation policy are
// applied afterwards, in Go, so the result does not depend on the model
// following instructions.
package intent

import (
	"encoding/json"
	"fmt"
	"strconv"
)

type Intent string

const (
	RecordSale      Intent = "record_sale"
	CheckStock      Intent = "check_stock"
	ListProducts    Intent = "list_products"
	GenerateInvoice Intent = "generate_invoice"
	RecordExpense   Intent = "record_expense"
	GetSalesSummary Intent = "get_sales_summary"
	CheckCustomer   Intent = "check_customer"
	SendReceipt     Intent = "send_receipt"
	SendInvoice     Intent = "send_invoice"
	SendQuotation   Intent = "send_quotation"
	Help            Intent = "help"
)

// All is the closed taxonomy, in prompt order.
var All = []Intent{
	RecordSale, CheckStock, ListProducts, GenerateInvoice, RecordExpense,
	GetSalesSummary, CheckCustomer, SendReceipt, SendInvoice, SendQuotation, Help,
}

func (i Intent) Valid() bool {
	for _, known := range All {
		if i == known {
			return true
		}
	}
	return false
}

// Mutating reports whether executing the intent changes business data.
// These always go through a YES/NO confirmation.
func (i Intent) Mutating() bool {
	switch i {
	case RecordSale, RecordExpense, GenerateInvoice:
		return true
	}
	return false
}

type Confidence string

const (
	High   Confidence = "high"
	Medium Confidence = "medium"
	Low    Confidence = "low"
)

// Entities is the sparse parameter bag extracted from a message.
type Entities struct {
	Product        string   `json:"product,omitempty"`
	Quantity       *float64 `json:"quantity,omitempty"`
	Amount         *float64 `json:"amount,omitempty"`
	CustomerName   string   `json:"customer_name,omitempty"`
	CustomerPhone  string   `json:"customer_phone,omitempty"`
	PaymentMethod  string   `json:"payment_method,omitempty"`
	Category       string   `json:"category,omitempty"`
	Description    string   `json:"description,omitempty"`
	Period         string   `json:"period,omitempty"`
	DocumentNumber string   `json:"document_number,omitempty"`
	Notes          string   `json:"notes,omitempty"`
}

// Merge returns e with every field set in newer overriding it. The parser
// never merges; follow-up callers use this to union the two bags.
func (e Entities) Merge(newer Entities) Entities {
	out := e
	if newer.Product != "" {
		out.Product = newer.Product
	}
	if newer.Quantity != nil {
		out.Quantity = newer.Quantity
	}
	if newer.Amount != nil {
		out.Amount = newer.Amount
	}
	if newer.CustomerName != "" {
		out.CustomerName = newer.CustomerName
	}
	if newer.CustomerPhone != "" {
		out.CustomerPhone = newer.CustomerPhone
	}
	if newer.PaymentMethod != "" {
		out.PaymentMethod = newer.PaymentMethod
	}
	if newer.Category != "" {
		out.Category = newer.Category
	}
	if newer.Description != "" {
		out.Description = newer.Description
	}
	if newer.Period != "" {
		out.Period = newer.Period
	}
	if newer.DocumentNumber != "" {
		out.DocumentNumber = newer.DocumentNumber
	}
	if newer.Notes != "" {
		out.Notes = newer.Notes
	}
	return out
}

// IsZero reports whether no entity is set.
func (e Entities) IsZero() bool {
	return e == Entities{}
}

// FormatNumber prints a quantity or amount without trailing zeros.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Context carries the caller's view of the conversation into a parse.
type Context struct {
	Role             string   `json:"role,omitempty"`
	IsFollowup       bool     `json:"is_followup,omitempty"`
	ExistingIntent   Intent   `json:"existing_intent,omitempty"`
	ExistingEntities Entities `json:"existing_entities,omitempty"`
}

func (c *Context) followup() bool {
	return c != nil && c.IsFollowup && c.ExistingIntent != ""
}

// Result is the normalised outcome of one parse.
type Result struct {
	Intent               Intent     `json:"intent"`
	Confidence           Confidence `json:"confidence"`
	Entities             Entities   `json:"entities"`
	RequiresConfirmation bool       `json:"requires_confirmation"`
	ClarificationNeeded  *string    `json:"clarification_needed"`
}

func (r *Result) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf("%s (%s)", r.Intent, r.Confidence)
	}
	return string(b)
}
