package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"whatsapp-assistant/internal/models"
)

// loader reads documents for one tenant.
type loader struct {
	db *gorm.DB
}

func (l *loader) load(ctx context.Context, req Request) (*Document, error) {
	switch req.Type {
	case Receipt:
		return l.receipt(ctx, req)
	case Invoice:
		return l.invoice(ctx, req)
	case Quotation:
		return l.quotation(ctx, req)
	default:
		return nil, fmt.Errorf("%w: unknown document type %q", ErrInvalidRequest, req.Type)
	}
}

// selectOne applies the id / number / most-recent selection rule.
func selectOne(q *gorm.DB, req Request, numberColumn string) *gorm.DB {
	switch {
	case req.DocumentID != "":
		return q.Where("id = ?", req.DocumentID)
	case req.DocumentNumber != "":
		return q.Where(numberColumn+" = ?", req.DocumentNumber)
	default:
		return q.Order("created_at DESC")
	}
}

// receipt looks in the receipts table first. Receipts and sales
// transactions can drift apart, so a miss falls back to rebuilding the
// receipt from the transaction rows that share its number.
func (l *loader) receipt(ctx context.Context, req Request) (*Document, error) {
	var r models.Receipt
	q := l.db.WithContext(ctx).Where("tenant_id = ?", req.TenantID)
	err := selectOne(q, req, "receipt_number").First(&r).Error
	switch {
	case err == nil:
		return &Document{
			Type:          Receipt,
			Number:        r.ReceiptNumber,
			Date:          r.CreatedAt,
			CustomerName:  r.CustomerName,
			PaymentMethod: r.PaymentMethod,
			Items:         r.Items,
			Subtotal:      r.TotalAmount,
			Total:         r.TotalAmount,
			ImpactUnits:   r.ImpactUnits,
			Notes:         r.Notes,
		}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("load receipt: %w", err)
	}

	return l.receiptFromTransactions(ctx, req)
}

func (l *loader) receiptFromTransactions(ctx context.Context, req Request) (*Document, error) {
	number := req.DocumentNumber
	if number == "" {
		var anchor models.SalesTransaction
		q := l.db.WithContext(ctx).Where("tenant_id = ?", req.TenantID)
		if req.DocumentID != "" {
			q = q.Where("id = ?", req.DocumentID)
		} else {
			q = q.Where("receipt_number <> ''").Order("created_at DESC")
		}
		err := q.First(&anchor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load sales transaction: %w", err)
		}
		if anchor.ReceiptNumber == "" {
			return synthesizeReceipt(anchor.ID, []models.SalesTransaction{anchor}), nil
		}
		number = anchor.ReceiptNumber
	}

	var rows []models.SalesTransaction
	err := l.db.WithContext(ctx).
		Where("tenant_id = ? AND receipt_number = ?", req.TenantID, number).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load sales transactions: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return synthesizeReceipt(number, rows), nil
}

// synthesizeReceipt groups transaction rows into one logical receipt.
func synthesizeReceipt(number string, rows []models.SalesTransaction) *Document {
	doc := &Document{
		Type:          Receipt,
		Number:        number,
		Date:          rows[0].CreatedAt,
		CustomerName:  rows[0].CustomerName,
		PaymentMethod: rows[0].PaymentMethod,
		Synthetic:     true,
	}

	total := decimal.Zero
	for _, row := range rows {
		doc.Items = append(doc.Items, models.LineItem{
			Description: row.ProductName,
			Quantity:    row.Quantity,
			UnitPrice:   row.UnitPrice,
			Total:       row.TotalAmount,
		})
		total = total.Add(row.TotalAmount)
		doc.ImpactUnits += row.ImpactUnits
		if doc.CustomerName == "" {
			doc.CustomerName = row.CustomerName
		}
	}
	doc.Subtotal = total
	doc.Total = total
	return doc
}

func (l *loader) invoice(ctx context.Context, req Request) (*Document, error) {
	var inv models.Invoice
	q := l.db.WithContext(ctx).Where("tenant_id = ?", req.TenantID)
	err := selectOne(q, req, "invoice_number").First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load invoice: %w", err)
	}
	return &Document{
		Type:          Invoice,
		Number:        inv.InvoiceNumber,
		Date:          inv.CreatedAt,
		CustomerName:  inv.CustomerName,
		CustomerPhone: inv.CustomerPhone,
		CustomerEmail: inv.CustomerEmail,
		Items:         inv.Items,
		Subtotal:      inv.Subtotal,
		Tax:           inv.Tax,
		Total:         inv.Total,
		Notes:         inv.Notes,
		Status:        inv.Status,
		DueDate:       inv.DueDate,
	}, nil
}

func (l *loader) quotation(ctx context.Context, req Request) (*Document, error) {
	var quo models.Quotation
	q := l.db.WithContext(ctx).Where("tenant_id = ?", req.TenantID)
	err := selectOne(q, req, "quotation_number").First(&quo).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quotation: %w", err)
	}
	return &Document{
		Type:          Quotation,
		Number:        quo.QuotationNumber,
		Date:          quo.CreatedAt,
		CustomerName:  quo.CustomerName,
		CustomerPhone: quo.CustomerPhone,
		CustomerEmail: quo.CustomerEmail,
		Items:         quo.Items,
		Subtotal:      quo.Subtotal,
		Tax:           quo.Tax,
		Total:         quo.Total,
		Notes:         quo.Notes,
		Status:        quo.Status,
		ValidUntil:    quo.ValidUntil,
	}, nil
}

// tenant loads branding details. A missing tenant row is not fatal.
func (l *loader) tenant(ctx context.Context, id string) (models.Tenant, error) {
	var t models.Tenant
	err := l.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Tenant{ID: id, Name: "Your Business"}, nil
	}
	if err != nil {
		return models.Tenant{}, fmt.Errorf("load tenant: %w", err)
	}
	return t, nil
}
