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

	"whatsapp-assistant/internal/intent"
	"whatsapp-assistant/internal/models"
)

var errInsufficientStock = errors.New("insufficient stock")

func (b *Bridge) recordSale(ctx context.Context, req Request) (*Result, error) {
	e := req.Entities
	name := cleanName(e.Product)
	if name == "" {
		return failed("Which product did you sell?", "missing product"), nil
	}
	qty := 1.0
	if e.Quantity != nil {
		qty = *e.Quantity
	}
	if qty <= 0 {
		return failed("The quantity must be more than zero.", "non-positive quantity"), nil
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
	default:
		return failed(fmt.Sprintf("I couldn't find %s in your products. How much was the sale?", name),
			"unknown product without amount"), nil
	}
	if total.IsNegative() {
		return failed("The amount can't be negative.", "negative amount"), nil
	}

	now := b.now().UTC()
	payment := intent.PaymentCash
	if e.PaymentMethod != "" {
		payment = intent.CanonicalPaymentMethod(e.PaymentMethod)
	}
	tx := models.SalesTransaction{
		TenantID:      req.Context.TenantID,
		ProductName:   name,
		Quantity:      qty,
		UnitPrice:     total.Div(decimal.NewFromFloat(qty)).Round(2),
		TotalAmount:   total,
		PaymentMethod: payment,
		CustomerName:  cleanName(e.CustomerName),
		MessageSID:    req.MessageSID,
		RecordedBy:    req.Context.UserID,
		CreatedAt:     now,
	}
	if product != nil {
		tx.ProductID = &product.ID
		tx.ProductName = product.Name
		tx.ImpactUnits = product.ImpactPerUnit * int(qty)
	}

	err = b.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		if product != nil && product.TrackStock {
			res := db.Model(&models.Product{}).
				Where("id = ? AND stock_quantity >= ?", product.ID, qty).
				Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errInsufficientStock
			}
		}

		number, err := b.nextNumber(db, &models.Receipt{}, "receipt_number", req.Context.TenantID, fmt.Sprintf("R%d-", now.Year()))
		if err != nil {
			return err
		}
		tx.ReceiptNumber = number
		if err := db.Create(&tx).Error; err != nil {
			return err
		}
		return db.Create(&models.Receipt{
			TenantID:      tx.TenantID,
			ReceiptNumber: number,
			CustomerName:  tx.CustomerName,
			PaymentMethod: tx.PaymentMethod,
			Items: []models.LineItem{{
				Description: tx.ProductName,
				Quantity:    qty,
				UnitPrice:   tx.UnitPrice,
				Total:       total,
			}},
			TotalAmount: total,
			ImpactUnits: tx.ImpactUnits,
			CreatedAt:   now,
		}).Error
	})
	if errors.Is(err, errInsufficientStock) {
		return failed(fmt.Sprintf("Not enough stock: only %s %s left.",
			intent.FormatNumber(product.StockQuantity), unitOf(product)), err.Error()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("record sale: %w", err)
	}

	b.logger.Info("Sale recorded",
		zap.String("tenant_id", tx.TenantID),
		zap.String("receipt_number", tx.ReceiptNumber),
		zap.String("total", total.StringFixed(2)),
	)

	msg := fmt.Sprintf("Done! Recorded sale of %sx %s for %s", intent.FormatNumber(qty), tx.ProductName, b.money(total))
	if tx.CustomerName != "" {
		msg += " to " + tx.CustomerName
	}
	msg += fmt.Sprintf(" (%s). Receipt %s.", payment, tx.ReceiptNumber)
	return &Result{Success: true, Message: msg}, nil
}

func (b *Bridge) recordExpense(ctx context.Context, req Request) (*Result, error) {
	e := req.Entities
	if e.Amount == nil {
		return failed("How much was the expense?", "missing amount"), nil
	}
	amount := decimal.NewFromFloat(*e.Amount)
	if !amount.IsPositive() {
		return failed("The amount must be more than zero.", "non-positive amount"), nil
	}

	category := cleanName(e.Category)
	if category == "" {
		category = "General"
	}
	description := firstNonEmpty(e.Description, e.Product, e.Notes, category)
	payment := intent.PaymentCash
	if e.PaymentMethod != "" {
		payment = intent.CanonicalPaymentMethod(e.PaymentMethod)
	}

	expense := models.Expense{
		TenantID:      req.Context.TenantID,
		Category:      category,
		Description:   description,
		Amount:        amount,
		PaymentMethod: payment,
		MessageSID:    req.MessageSID,
		RecordedBy:    req.Context.UserID,
		CreatedAt:     b.now().UTC(),
	}
	if err := b.db.WithContext(ctx).Create(&expense).Error; err != nil {
		return nil, fmt.Errorf("record expense: %w", err)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Done! Recorded expense of %s for %s (%s).", b.money(amount), description, category),
	}, nil
}

func (b *Bridge) salesSummary(ctx context.Context, req Request) (*Result, error) {
	period, since := periodStart(req.Entities.Period, b.now().UTC())

	var sales []models.SalesTransaction
	if err := b.db.WithContext(ctx).
		Where("tenant_id = ? AND created_at >= ?", req.Context.TenantID, since).
		Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("load sales: %w", err)
	}
	var expenses []models.Expense
	if err := b.db.WithContext(ctx).
		Where("tenant_id = ? AND created_at >= ?", req.Context.TenantID, since).
		Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}

	salesTotal := decimal.Zero
	receipts := make(map[string]struct{})
	for _, s := range sales {
		salesTotal = salesTotal.Add(s.TotalAmount)
		receipts[s.ReceiptNumber] = struct{}{}
	}
	expenseTotal := decimal.Zero
	for _, e := range expenses {
		expenseTotal = expenseTotal.Add(e.Amount)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Sales %s: %d sale(s), total %s.", period, len(receipts), b.money(salesTotal))
	if len(expenses) > 0 {
		fmt.Fprintf(&sb, "\nExpenses: %s.\nNet: %s.", b.money(expenseTotal), b.money(salesTotal.Sub(expenseTotal)))
	}
	return &Result{Success: true, Message: sb.String()}, nil
}

// periodStart maps a period entity to a label and a UTC start time. Weeks
// start on Monday.
func periodStart(period string, now time.Time) (string, time.Time) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	p := strings.ToLower(period)
	switch {
	case strings.Contains(p, "week"):
		offset := (int(midnight.Weekday()) + 6) % 7
		return "this week", midnight.AddDate(0, 0, -offset)
	case strings.Contains(p, "month"):
		return "this month", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return "today", midnight
	}
}

// nextNumber returns prefix followed by the next four digit sequence for
// the tenant. Numbers are unique per tenant and year in practice; two
// concurrent sales may race for the same sequence.
func (b *Bridge) nextNumber(db *gorm.DB, model interface{}, column, tenantID, prefix string) (string, error) {
	var count int64
	if err := db.Model(model).
		Where("tenant_id = ? AND "+column+" LIKE ?", tenantID, prefix+"%").
		Count(&count).Error; err != nil {
		return "", fmt.Errorf("next %s: %w", column, err)
	}
	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

func unitOf(p *models.Product) string {
	if p.Unit == "" {
		return "units"
	}
	return p.Unit
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = cleanName(v); v != "" {
			return v
		}
	}
	return ""
}
