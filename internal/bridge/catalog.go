package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"whatsapp-assistant/internal/intent"
	"whatsapp-assistant/internal/models"
)

const listLimit = 20

func (b *Bridge) scoped(ctx context.Context, tenantID string) *gorm.DB {
	return b.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
}

// findProduct matches by exact name, then by either name containing the
// other ("cement bags" finds "Cement").
func (b *Bridge) findProduct(ctx context.Context, tenantID, name string) (*models.Product, error) {
	needle := strings.ToLower(cleanName(name))

	var p models.Product
	err := b.scoped(ctx, tenantID).Where("LOWER(name) = ?", needle).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	err = b.scoped(ctx, tenantID).
		Where("LOWER(name) LIKE ? OR ? LIKE '%' || LOWER(name) || '%'", "%"+needle+"%", needle).
		Order("LENGTH(name) DESC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (b *Bridge) checkStock(ctx context.Context, req Request) (*Result, error) {
	name := cleanName(req.Entities.Product)
	if name == "" {
		return b.listProducts(ctx, req)
	}

	p, err := b.findProduct(ctx, req.Context.TenantID, name)
	if isNotFound(err) {
		return failed(fmt.Sprintf("I couldn't find a product called %s.", name), "product not found"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("check stock: %w", err)
	}

	if !p.TrackStock {
		return &Result{Success: true, Message: fmt.Sprintf("%s is not stock-tracked. Price: %s.", p.Name, b.money(p.Price))}, nil
	}
	msg := fmt.Sprintf("%s: %s %s in stock (%s each).", p.Name, intent.FormatNumber(p.StockQuantity), unitOf(p), b.money(p.Price))
	if p.StockQuantity <= 0 {
		msg = fmt.Sprintf("%s is out of stock.", p.Name)
	}
	return &Result{Success: true, Message: msg}, nil
}

func (b *Bridge) listProducts(ctx context.Context, req Request) (*Result, error) {
	var products []models.Product
	if err := b.scoped(ctx, req.Context.TenantID).
		Order("name").
		Limit(listLimit + 1).
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if len(products) == 0 {
		return &Result{Success: true, Message: "You have no products yet."}, nil
	}

	var sb strings.Builder
	sb.WriteString("Your products:")
	for i, p := range products {
		if i == listLimit {
			sb.WriteString("\n...and more")
			break
		}
		fmt.Fprintf(&sb, "\n- %s: %s", p.Name, b.money(p.Price))
		if p.TrackStock {
			fmt.Fprintf(&sb, " (%s in stock)", intent.FormatNumber(p.StockQuantity))
		}
	}
	return &Result{Success: true, Message: sb.String()}, nil
}

func (b *Bridge) checkCustomer(ctx context.Context, req Request) (*Result, error) {
	name := cleanName(req.Entities.CustomerName)
	phone := strings.TrimSpace(req.Entities.CustomerPhone)
	if name == "" && phone == "" {
		return failed("Which customer should I look up?", "missing customer"), nil
	}

	var c models.Customer
	q := b.scoped(ctx, req.Context.TenantID)
	if phone != "" {
		q = q.Where("phone = ?", phone)
	} else {
		q = q.Where("LOWER(name) = ?", strings.ToLower(name))
	}
	err := q.First(&c).Error
	found := err == nil
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("find customer: %w", err)
	}
	if found {
		name = c.Name
	}

	var sales []models.SalesTransaction
	if name != "" {
		if err := b.scoped(ctx, req.Context.TenantID).
			Where("LOWER(customer_name) = ?", strings.ToLower(name)).
			Order("created_at DESC").
			Find(&sales).Error; err != nil {
			return nil, fmt.Errorf("customer sales: %w", err)
		}
	}
	if !found && len(sales) == 0 {
		who := name
		if who == "" {
			who = phone
		}
		return failed(fmt.Sprintf("I couldn't find a customer called %s.", who), "customer not found"), nil
	}

	total := decimal.Zero
	for _, s := range sales {
		total = total.Add(s.TotalAmount)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d purchase(s), total %s.", name, len(sales), b.money(total))
	if len(sales) > 0 {
		fmt.Fprintf(&sb, "\nLast purchase: %s on %s.", sales[0].ProductName, sales[0].CreatedAt.Format("2 Jan 2006"))
	}
	if found && c.Phone != "" {
		fmt.Fprintf(&sb, "\nPhone: %s", c.Phone)
	}
	return &Result{Success: true, Message: sb.String()}, nil
}
