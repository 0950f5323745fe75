package documents

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/storage"
)

const tenantID = "tenant-1"

var day = time.Date(2025, 6, 3, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db    *gorm.DB
	store *storage.MemoryStorage
	gen   *Generator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.Tenant{
		ID: tenantID, Name: "Chanda Hardware", Phone: "+260971234567",
		ImpactEnabled: true, ImpactLabel: "trees planted",
	}).Error)

	store := storage.NewMemoryStorage("http://files.test")
	gen := NewGenerator(db, store, NewRenderer("K"), zap.NewNop())
	tick := day
	gen.now = func() time.Time {
		tick = tick.Add(time.Millisecond)
		return tick
	}
	return &fixture{db: db, store: store, gen: gen}
}

func (f *fixture) addTransactions(t *testing.T, number string, amounts ...int64) {
	t.Helper()
	for i, a := range amounts {
		require.NoError(t, f.db.Create(&models.SalesTransaction{
			TenantID:      tenantID,
			ReceiptNumber: number,
			ProductName:   "Item " + string(rune('A'+i)),
			Quantity:      1,
			UnitPrice:     decimal.NewFromInt(a),
			TotalAmount:   decimal.NewFromInt(a),
			PaymentMethod: "Cash",
			CustomerName:  "John",
			ImpactUnits:   2,
			CreatedAt:     day.Add(time.Duration(i) * time.Minute),
		}).Error)
	}
}

func TestReceipt_FallsBackToSalesTransactions(t *testing.T) {
	f := newFixture(t)
	f.addTransactions(t, "R2025-0042", 1200, 800, 500)
	f.addTransactions(t, "R2025-0043", 999)

	doc, err := f.gen.loader.load(context.Background(), Request{Type: Receipt, TenantID: tenantID, DocumentNumber: "R2025-0042"})
	require.NoError(t, err)

	assert.True(t, doc.Synthetic)
	assert.Equal(t, "R2025-0042", doc.Number)
	assert.Len(t, doc.Items, 3)
	assert.True(t, decimal.NewFromInt(2500).Equal(doc.Total), "total %s", doc.Total)
	assert.Equal(t, 6, doc.ImpactUnits)
	assert.Equal(t, "John", doc.CustomerName)
}

func TestReceipt_PrefersReceiptsTable(t *testing.T) {
	f := newFixture(t)
	f.addTransactions(t, "R2025-0001", 100, 200)
	require.NoError(t, f.db.Create(&models.Receipt{
		TenantID:      tenantID,
		ReceiptNumber: "R2025-0001",
		CustomerName:  "Mary",
		Items:         []models.LineItem{{Description: "Cement", Quantity: 1, UnitPrice: decimal.NewFromInt(300), Total: decimal.NewFromInt(300)}},
		TotalAmount:   decimal.NewFromInt(300),
		CreatedAt:     day,
	}).Error)

	doc, err := f.gen.loader.load(context.Background(), Request{Type: Receipt, TenantID: tenantID, DocumentNumber: "R2025-0001"})
	require.NoError(t, err)

	assert.False(t, doc.Synthetic)
	assert.Equal(t, "Mary", doc.CustomerName)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "Cement", doc.Items[0].Description)
}

func TestReceipt_MostRecentAndByTransactionID(t *testing.T) {
	f := newFixture(t)
	f.addTransactions(t, "R2025-0001", 100)
	f.addTransactions(t, "R2025-0002", 200, 300)
	ctx := context.Background()

	doc, err := f.gen.loader.load(ctx, Request{Type: Receipt, TenantID: tenantID})
	require.NoError(t, err)
	assert.Equal(t, "R2025-0002", doc.Number)
	assert.Len(t, doc.Items, 2)

	var tx models.SalesTransaction
	require.NoError(t, f.db.Where("receipt_number = ?", "R2025-0001").First(&tx).Error)
	doc, err = f.gen.loader.load(ctx, Request{Type: Receipt, TenantID: tenantID, DocumentID: tx.ID})
	require.NoError(t, err)
	assert.Equal(t, "R2025-0001", doc.Number)
}

func TestReceipt_NotFoundAnywhere(t *testing.T) {
	f := newFixture(t)
	_, err := f.gen.Generate(context.Background(), Request{Type: Receipt, TenantID: tenantID, DocumentNumber: "R1999-0001"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvoiceAndQuotation_NoFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addTransactions(t, "INV-2025-0001", 100)

	_, err := f.gen.Generate(ctx, Request{Type: Invoice, TenantID: tenantID, DocumentNumber: "INV-2025-0001"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.db.Create(&models.Quotation{
		TenantID:        tenantID,
		QuotationNumber: "Q-2025-0007",
		CustomerName:    "Builders Ltd",
		Items:           []models.LineItem{{Description: "Roofing sheets", Quantity: 40, UnitPrice: decimal.NewFromInt(150), Total: decimal.NewFromInt(6000)}},
		Subtotal:        decimal.NewFromInt(6000),
		Tax:             decimal.NewFromInt(960),
		Total:           decimal.NewFromInt(6960),
		Status:          "sent",
		CreatedAt:       day,
	}).Error)

	art, err := f.gen.Generate(ctx, Request{Type: Quotation, TenantID: tenantID, DocumentNumber: "Q-2025-0007"})
	require.NoError(t, err)
	assert.Equal(t, "Q-2025-0007", art.DocumentNumber)
	assert.True(t, strings.HasPrefix(art.StorageKey, tenantID+"/quotations/quotation_Q-2025-0007_"))
}

func TestGenerate_StoresFreshArtifactEachTime(t *testing.T) {
	f := newFixture(t)
	f.addTransactions(t, "R2025-0042", 1200, 800, 500)
	ctx := context.Background()
	req := Request{Type: "Receipt", TenantID: tenantID, DocumentNumber: "R2025-0042"}

	first, err := f.gen.Generate(ctx, req)
	require.NoError(t, err)
	second, err := f.gen.Generate(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, first.StorageKey, second.StorageKey)
	assert.Len(t, f.store.Keys(), 2)

	obj, ok := f.store.Get(first.StorageKey)
	require.True(t, ok)
	assert.Equal(t, "application/pdf", obj.ContentType)
	assert.True(t, bytes.HasPrefix(obj.Data, []byte("%PDF-")))
	assert.Equal(t, "http://files.test/files/"+first.StorageKey, first.URL)
	assert.Equal(t, receiptFilename(day.Add(time.Millisecond)), first.Filename)
}

func receiptFilename(at time.Time) string {
	return Filename(Receipt, "R2025-0042", at)
}

func TestGenerate_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.gen.Generate(ctx, Request{Type: "delivery_note", TenantID: tenantID})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.gen.Generate(ctx, Request{Type: Receipt})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFilenameAndKey(t *testing.T) {
	at := time.UnixMilli(1717408800123)
	name := Filename(Invoice, "INV/2025 01", at)
	assert.Equal(t, "invoice_INV-2025-01_1717408800123.pdf", name)
	assert.Equal(t, "t1/invoices/"+name, StorageKey("t1", Invoice, name))
}
