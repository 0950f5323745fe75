// Package bridge executes parsed intents against the business tables.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"whatsapp-assistant/internal/cache"
	"whatsapp-assistant/internal/documents"
	"whatsapp-assistant/internal/intent"
)

const HelpText = "I can help you with:\n" +
	"- Record a sale: \"Sold 5 bags of cement to John for K2500 cash\"\n" +
	"- Record an expense: \"Paid K300 for transport\"\n" +
	"- Check stock: \"How many bags of cement left?\"\n" +
	"- List products: \"Show my products\"\n" +
	"- Sales summary: \"Sales today\" / \"this week\" / \"this month\"\n" +
	"- Customers: \"Check customer John\"\n" +
	"- Invoices: \"Invoice John for 10 bags of cement\"\n" +
	"- Documents: \"Send receipt R2025-0042\""

// Context identifies who is acting.
type Context struct {
	TenantID    string `json:"tenant_id"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

type Request struct {
	Intent   intent.Intent   `json:"intent"`
	Entities intent.Entities `json:"entities"`
	Context  Context         `json:"context"`
	// MessageSID is the provider id of the message that proposed the action.
	// Mutations with the same tenant and MessageSID run at most once.
	MessageSID string `json:"message_sid,omitempty"`
}

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func failed(message, detail string) *Result {
	return &Result{Success: false, Message: message, Error: detail}
}

// Executor is what the conversation router calls.
type Executor interface {
	Execute(ctx context.Context, req Request) (*Result, error)
}

type DocumentGenerator interface {
	Generate(ctx context.Context, req documents.Request) (*documents.Artifact, error)
}

// MediaSender pushes a generated document to the requester's chat.
type MediaSender interface {
	SendDocument(ctx context.Context, to, caption, documentURL string) error
}

type Bridge struct {
	db       *gorm.DB
	docs     DocumentGenerator
	media    MediaSender
	idem     cache.IdempotencyStore
	idemTTL  time.Duration
	currency string
	logger   *zap.Logger
	now      func() time.Time
	handlers map[intent.Intent]handlerFunc
}

type handlerFunc func(ctx context.Context, req Request) (*Result, error)

var _ Executor = (*Bridge)(nil)

type Option func(*Bridge)

func WithMediaSender(m MediaSender) Option {
	return func(b *Bridge) { b.media = m }
}

func WithIdempotency(store cache.IdempotencyStore, ttl time.Duration) Option {
	return func(b *Bridge) {
		b.idem = store
		b.idemTTL = ttl
	}
}

func WithCurrency(symbol string) Option {
	return func(b *Bridge) { b.currency = symbol }
}

func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

func New(db *gorm.DB, docs DocumentGenerator, logger *zap.Logger, opts ...Option) *Bridge {
	b := &Bridge{
		db:       db,
		docs:     docs,
		currency: "K",
		idemTTL:  24 * time.Hour,
		logger:   logger.Named("bridge"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.handlers = map[intent.Intent]handlerFunc{
		intent.RecordSale:      b.recordSale,
		intent.RecordExpense:   b.recordExpense,
		intent.CheckStock:      b.checkStock,
		intent.ListProducts:    b.listProducts,
		intent.GenerateInvoice: b.generateInvoice,
		intent.GetSalesSummary: b.salesSummary,
		intent.CheckCustomer:   b.checkCustomer,
		intent.SendReceipt:     b.sendDocument(documents.Receipt),
		intent.SendInvoice:     b.sendDocument(documents.Invoice),
		intent.SendQuotation:   b.sendDocument(documents.Quotation),
		intent.Help: func(context.Context, Request) (*Result, error) {
			return &Result{Success: true, Message: HelpText}, nil
		},
	}
	return b
}

// Execute authorises and runs one intent. A returned error means the bridge
// could not reach its own dependencies; business refusals come back as a
// Result with Success false.
func (b *Bridge) Execute(ctx context.Context, req Request) (*Result, error) {
	handler, ok := b.handlers[req.Intent]
	if !ok {
		return failed("Sorry, I can't do that yet.", fmt.Sprintf("unsupported intent %q", req.Intent)), nil
	}
	if req.Context.TenantID == "" {
		return failed("Sorry, your number is not linked to a business.", "missing tenant_id"), nil
	}
	if !Allowed(req.Context.Role, req.Intent) {
		return failed("Sorry, your role is not allowed to do that.",
			fmt.Sprintf("role %q may not %s", req.Context.Role, req.Intent)), nil
	}

	log := b.logger.With(
		zap.String("intent", string(req.Intent)),
		zap.String("tenant_id", req.Context.TenantID),
		zap.String("message_sid", req.MessageSID),
	)

	if !req.Intent.Mutating() || b.idem == nil || req.MessageSID == "" {
		return handler(ctx, req)
	}

	key := req.Context.TenantID + ":" + req.MessageSID
	first, err := b.idem.MarkProcessed(ctx, key, b.idemTTL)
	if err != nil {
		return nil, fmt.Errorf("idempotency check: %w", err)
	}
	if !first {
		log.Warn("Duplicate mutation ignored")
		return failed("This request was already processed.", "duplicate message_sid"), nil
	}

	res, err := handler(ctx, req)
	if err != nil || !res.Success {
		if relErr := b.idem.Release(ctx, key); relErr != nil {
			log.Error("Failed to release idempotency key", zap.Error(relErr))
		}
	}
	return res, err
}

func (b *Bridge) money(d decimal.Decimal) string {
	return documents.FormatMoney(b.currency, d)
}

func cleanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
