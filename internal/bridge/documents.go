package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"whatsapp-assistant/internal/documents"
	"whatsapp-assistant/internal/models"
)

const invoiceDueDays = 30

func (b *Bridge) generateInvoice(ctx context.Context, req Request) (*Result, error) {
	e := req.Entities
	customer := cleanName(e.CustomerName)
	if customer == "" {
		return failed("Who is the invoice for?", "missing customer"), nil
	}
	name := cleanName(firstNonEmpty(e.Product, e.Description))
	if name == "" {
		return failed("What should the invoice be for?", "missing product"), nil
	}
	qty := 1.0
	if e.Quantity != nil && *e.Quantity > 0 {
		qty = *e.Quantity
	}

	product, err := b.findProduct(ctx, req.Context.TenantID, name)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	var total decimal.Decimal
	switch {
	case e.Amount != nil:
		total = decimal.NewFromFloat(*e.Amount)
	case product != nil:
		total = product.Price.Mul(decimal.NewFromFloat(qty))
		name = product.Name
	default:
		return failed(fmt.Sprintf("How much should I invoice for %s?", name), "unknown product without amount"), nil
	}

	now := b.now().UTC()
	due := now.AddDate(0, 0, invoiceDueDays)
	inv := models.Invoice{
		TenantID:      req.Context.TenantID,
		CustomerName:  customer,
		CustomerPhone: e.CustomerPhone,
		Items: []models.LineItem{{
			Description: name,
			Quantity:    qty,
			UnitPrice:   total.Div(decimal.NewFromFloat(qty)).Round(2),
			Total:       total,
		}},
		Subtotal:  total,
		Tax:       decimal.Zero,
		Total:     total,
		Notes:     e.Notes,
		Status:    "issued",
		DueDate:   &due,
		CreatedAt: now,
	}
	inv.InvoiceNumber, err = b.nextNumber(b.db.WithContext(ctx), &models.Invoice{}, "invoice_number", inv.TenantID, fmt.Sprintf("INV-%d-", now.Year()))
	if err != nil {
		return nil, err
	}
	if err := b.db.WithContext(ctx).Create(&inv).Error; err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}

	msg := fmt.Sprintf("Done! Invoice %s for %s, total %s.", inv.InvoiceNumber, customer, b.money(total))

	// The invoice exists from here on; a rendering failure only loses the link.
	art, err := b.docs.Generate(ctx, documents.Request{
		Type:       documents.Invoice,
		TenantID:   inv.TenantID,
		DocumentID: inv.ID,
	})
	if err != nil {
		b.logger.Warn("Invoice created but not rendered", zap.String("invoice_number", inv.InvoiceNumber), zap.Error(err))
		msg += " Send \"send invoice " + inv.InvoiceNumber + "\" to get the PDF."
		return &Result{Success: true, Message: msg}, nil
	}
	b.deliver(ctx, req.Context.PhoneNumber, "Invoice "+inv.InvoiceNumber, art.URL)
	return &Result{Success: true, Message: msg + "\n" + art.URL}, nil
}

func (b *Bridge) sendDocument(t documents.Type) handlerFunc {
	return func(ctx context.Context, req Request) (*Result, error) {
		art, err := b.docs.Generate(ctx, documents.Request{
			Type:           t,
			TenantID:       req.Context.TenantID,
			DocumentNumber: req.Entities.DocumentNumber,
		})
		switch {
		case errors.Is(err, documents.ErrNotFound):
			what := string(t)
			if req.Entities.DocumentNumber != "" {
				what += " " + req.Entities.DocumentNumber
			}
			return failed(fmt.Sprintf("I couldn't find that %s.", what), err.Error()), nil
		case err != nil:
			return failed(fmt.Sprintf("Sorry, I couldn't create the %s right now.", t), err.Error()), nil
		}

		caption := fmt.Sprintf("%s %s", titleCase(string(t)), art.DocumentNumber)
		b.deliver(ctx, req.Context.PhoneNumber, caption, art.URL)
		return &Result{Success: true, Message: fmt.Sprintf("Here is your %s %s:\n%s", t, art.DocumentNumber, art.URL)}, nil
	}
}

// deliver pushes the PDF as a media message. The link is already in the
// reply, so failures are only logged.
func (b *Bridge) deliver(ctx context.Context, phone, caption, url string) {
	if b.media == nil || phone == "" {
		return
	}
	if err := b.media.SendDocument(ctx, phone, caption, url); err != nil {
		b.logger.Warn("Document push failed", zap.String("phone", phone), zap.Error(err))
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
