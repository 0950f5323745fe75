package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"whatsapp-assistant/internal/intent"
)

// Tenant is a business using the assistant
type Tenant struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name          string    `gorm:"type:varchar(255);not null" json:"name"`
	Address       string    `gorm:"type:text" json:"address"`
	Phone         string    `gorm:"type:varchar(50)" json:"phone"`
	Email         string    `gorm:"type:varchar(255)" json:"email"`
	ImpactEnabled bool      `json:"impact_enabled"`
	ImpactLabel   string    `gorm:"type:varchar(100)" json:"impact_label"` // e.g. "trees planted"
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Tenant) TableName() string {
	return "tenants"
}

func (t *Tenant) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// SenderMapping binds a WhatsApp phone number to a tenant user
type SenderMapping struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID    string     `gorm:"type:varchar(36);not null;index" json:"tenant_id"`
	UserID      string     `gorm:"type:varchar(36);not null" json:"user_id"`
	PhoneNumber string     `gorm:"type:varchar(32);not null;index" json:"phone_number"` // E.164, no whatsapp: prefix
	Role        string     `gorm:"type:varchar(32);not null" json:"role"`
	DisplayName string     `gorm:"type:varchar(255)" json:"display_name"`
	IsActive    bool       `gorm:"not null" json:"is_active"`
	EmployeeID  *string    `gorm:"type:varchar(36)" json:"employee_id,omitempty"`
	BranchID    *string    `gorm:"type:varchar(36)" json:"branch_id,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SenderMapping) TableName() string {
	return "sender_mappings"
}

func (m *SenderMapping) BeforeCreate(*gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// PendingAction is a parsed intent waiting for a YES/NO reply
type PendingAction struct {
	ID               string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID         string          `gorm:"type:varchar(36);not null;index" json:"tenant_id"`
	PhoneNumber      string          `gorm:"type:varchar(32);not null;index" json:"phone_number"`
	UserID           string          `gorm:"type:varchar(36)" json:"user_id"`
	MessageSID       string          `gorm:"column:message_sid;type:varchar(64)" json:"message_sid"`
	Intent           intent.Intent   `gorm:"type:varchar(50);not null" json:"intent"`
	Entities         intent.Entities `gorm:"type:text;serializer:json" json:"entities"`
	ConfirmationText string          `gorm:"type:text" json:"confirmation_text"`
	CreatedAt        time.Time       `json:"created_at"`
	ExpiresAt        time.Time       `gorm:"not null;index" json:"expires_at"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
}

func (PendingAction) TableName() string {
	return "pending_actions"
}

func (p *PendingAction) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// AuditLog is one immutable record per inbound message
type AuditLog struct {
	ID              string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID        *string   `gorm:"type:varchar(36);index" json:"tenant_id"`
	PhoneNumber     string    `gorm:"type:varchar(32);index" json:"phone_number"`
	UserID          *string   `gorm:"type:varchar(36)" json:"user_id"`
	DisplayName     string    `gorm:"type:varchar(255)" json:"display_name"`
	Intent          *string   `gorm:"type:varchar(50)" json:"intent"`
	MessageText     string    `gorm:"type:text" json:"message_text"`
	ResponseText    string    `gorm:"type:text" json:"response_text"`
	Success         bool      `json:"success"`
	ErrorMessage    *string   `gorm:"type:text" json:"error_message"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}

type Product struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID      string          `gorm:"type:varchar(36);not null;index" json:"tenant_id"`
	Name          string          `gorm:"type:varchar(255);not null" json:"name"`
	SKU           string          `gorm:"column:sku;type:varchar(64)" json:"sku"`
	Unit          string          `gorm:"type:varchar(32)" json:"unit"`
	Price         decimal.Decimal `gorm:"type:numeric(14,2)" json:"price"`
	StockQuantity float64         `json:"stock_quantity"`
	TrackStock    bool            `json:"track_stock"`
	ImpactPerUnit int             `json:"impact_per_unit"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

type Customer struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID  string    `gorm:"type:varchar(36);not null;index" json:"tenant_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Phone     string    `gorm:"type:varchar(50)" json:"phone"`
	Email     string    `gorm:"type:varchar(255)" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Customer) TableName() string {
	return "customers"
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// SalesTransaction is one line of a sale. Several rows share a receipt number
// when a sale covers more than one product.
type SalesTransaction struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID      string          `gorm:"type:varchar(36);not null;index" json:"tenant_id"`
	ReceiptNumber string          `gorm:"type:varchar(32);index" json:"receipt_number"`
	ProductID     *string         `gorm:"type:varchar(36)" json:"product_id,omitempty"`
	ProductName   string          `gorm:"type:varchar(255)" json:"product_name"`
	Quantity      float64         `json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:numeric(14,2)" json:"unit_price"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(14,2)" json:"total_amount"`
	PaymentMethod string          `gorm:"type:varchar(32)" json:"payment_method"`
	CustomerName  string          `gorm:"type:varchar(255)" json:"customer_name"`
	ImpactUnits   int             `json:"impact_units"`
	MessageSID    string          `gorm:"column:message_sid;type:varchar(64)" json:"message_sid"`
	RecordedBy    string          `gorm:"type:varchar(36)" json:"recorded_by"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}

func (SalesTransaction) TableName() string {
	return "sales_transactions"
}

func (s *SalesTransaction) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// LineItem is stored as JSON inside receipts, invoices and quotations
type LineItem struct {
	Description string          `json:"description"`
	Quantity    float64         `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

type Receipt struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID      string          `gorm:"type:varchar(36);not null;index" json:"tenant_id"`
	ReceiptNumber string          `gorm:"type:varchar(32);index" json:"receipt_number"`
	CustomerName  string          `gorm:"type:varchar(255)" json:"customer_name"`
	PaymentMethod string          `gorm:"type:varchar(32)" json:"payment_method"`
	Items         []LineItem      `gorm:"type:text;serializer:json" json:"items"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(14,2)" json:"total_amount"`
	ImpactUnits   int             `json:"impact_units"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}

func (Receipt) TableName() string {
	return "receipts"
}

func (r *Receipt) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}

type Invoice struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID      string          `gorm:"type:varchar(36);not null;index" json:"tenant_id"`
	InvoiceNumber string          `gorm:"type:varchar(32);index" json:"invoice_number"`
	CustomerName  string          `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerPhone string          `gorm:"type:varchar(50)" json:"customer_phone"`
	CustomerEmail string          `gorm:"type:varchar(255)" json:"customer_email"`
	Items         []LineItem      `gorm:"type:text;serializer:json" json:"items"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(14,2)" json:"subtotal"`
	Tax           decimal.Decimal `gorm:"type:numeric(14,2)" json:"tax"`
	Total         decimal.Decimal `gorm:"type:numeric(14,2)" json:"total"`
	Notes         string          `gorm:"type:text" json:"notes"`
	Status        string          `gorm:"type:varchar(20)" json:"status"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

type Quotation struct {
	ID              string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID        string          `gorm:"type:varchar(36);not null;index" json:"tenant_id"`
	QuotationNumber string          `gorm:"type:varchar(32);index" json:"quotation_number"`
	CustomerName    string          `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerPhone   string          `gorm:"type:varchar(50)" json:"customer_phone"`
	CustomerEmail   string          `gorm:"type:varchar(255)" json:"customer_email"`
	Items           []LineItem      `gorm:"type:text;serializer:json" json:"items"`
	Subtotal        decimal.Decimal `gorm:"type:numeric(14,2)" json:"subtotal"`
	Tax             decimal.Decimal `gorm:"type:numeric(14,2)" json:"tax"`
	Total           decimal.Decimal `gorm:"type:numeric(14,2)" json:"total"`
	Notes           string          `gorm:"type:text" json:"notes"`
	Status          string          `gorm:"type:varchar(20)" json:"status"`
	ValidUntil      *time.Time      `json:"valid_until,omitempty"`
	CreatedAt       time.Time       `gorm:"index" json:"created_at"`
}

func (Quotation) TableName() string {
	return "quotations"
}

func (q *Quotation) BeforeCreate(*gorm.DB) error {
	assignID(&q.ID)
	return nil
}

type Expense struct {
	ID            string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	TenantID      string          `gorm:"type:varchar(36);not null;index" json:"tenant_id"`
	Category      string          `gorm:"type:varchar(100)" json:"category"`
	Description   string          `gorm:"type:text" json:"description"`
	Amount        decimal.Decimal `gorm:"type:numeric(14,2)" json:"amount"`
	PaymentMethod string          `gorm:"type:varchar(32)" json:"payment_method"`
	MessageSID    string          `gorm:"column:message_sid;type:varchar(64)" json:"message_sid"`
	RecordedBy    string          `gorm:"type:varchar(36)" json:"recorded_by"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}

func (Expense) TableName() string {
	return "expenses"
}

func (e *Expense) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}

func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Tenant{},
		&SenderMapping{},
		&PendingAction{},
		&AuditLog{},
		&Product{},
		&Customer{},
		&SalesTransaction{},
		&Receipt{},
		&Invoice{},
		&Quotation{},
		&Expense{},
	}
}
