package documents

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// Page geometry, in millimetres on A4 portrait.
const (
	pageMargin   = 15.0
	contentWidth = 180.0
	headerHeight = 38.0
	rowHeight    = 8.0
	footerY      = -22.0

	colDescription = 90.0
	colQuantity    = 25.0
	colUnitPrice   = 32.5
	colTotal       = 32.5
)

type rgb struct{ r, g, b int }

var (
	colorPrimary  = rgb{31, 78, 121}
	colorStripe   = rgb{240, 244, 248}
	colorText     = rgb{33, 33, 33}
	colorMuted    = rgb{117, 117, 117}
	colorImpact   = rgb{46, 125, 50}
	colorImpactBg = rgb{232, 245, 233}
	colorWhite    = rgb{255, 255, 255}
)

// Renderer lays documents out with a fixed geometry and palette. The same
// Document always renders to the same bytes.
type Renderer struct {
	currency string
	compress bool
}

func NewRenderer(currency string) *Renderer {
	return &Renderer{currency: currency, compress: true}
}

func (r *Renderer) Render(doc *Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(doc.Date)
	pdf.SetModificationDate(doc.Date)
	pdf.SetTitle(fmt.Sprintf("%s %s", doc.Type.title(), doc.Number), true)
	pdf.SetAuthor(doc.Tenant.Name, true)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, 28)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(footerY)
		setText(pdf, colorMuted)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(contentWidth, 5, tr("Thank you for your business."), "", 1, "C", false, 0, "")
		pdf.CellFormat(contentWidth, 5, tr(fmt.Sprintf("%s  |  Page %d", doc.Tenant.Name, pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	r.header(pdf, tr, doc)
	r.parties(pdf, tr, doc)
	r.items(pdf, tr, doc)
	r.totals(pdf, tr, doc)
	if showImpact(doc) {
		r.impact(pdf, tr, doc)
	}
	r.notes(pdf, tr, doc)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render %s %s: %w", doc.Type, doc.Number, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) header(pdf *fpdf.Fpdf, tr func(string) string, doc *Document) {
	setFill(pdf, colorPrimary)
	pdf.Rect(0, 0, 210, headerHeight, "F")

	setText(pdf, colorWhite)
	pdf.SetXY(pageMargin, 10)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(110, 9, tr(Truncate(doc.Tenant.Name, 36)), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(70, 9, doc.Type.title(), "", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	contact := strings.Join(nonEmpty(doc.Tenant.Address, doc.Tenant.Phone, doc.Tenant.Email), "  |  ")
	pdf.SetX(pageMargin)
	pdf.CellFormat(110, 5, tr(Truncate(contact, 70)), "", 0, "L", false, 0, "")
	pdf.CellFormat(70, 5, tr("No. "+doc.Number), "", 1, "R", false, 0, "")
	pdf.SetX(pageMargin + 110)
	pdf.CellFormat(70, 5, doc.Date.Format("02 Jan 2006"), "", 1, "R", false, 0, "")

	pdf.SetY(headerHeight + 8)
}

func (r *Renderer) parties(pdf *fpdf.Fpdf, tr func(string) string, doc *Document) {
	setText(pdf, colorMuted)
	pdf.SetFont("Helvetica", "B", 9)
	label := "BILLED TO"
	if doc.Type == Receipt {
		label = "CUSTOMER"
	}
	pdf.CellFormat(110, 5, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(70, 5, "DETAILS", "", 1, "R", false, 0, "")

	setText(pdf, colorText)
	pdf.SetFont("Helvetica", "", 10)
	customer := doc.CustomerName
	if customer == "" {
		customer = "Walk-in customer"
	}

	left := append([]string{customer}, nonEmpty(doc.CustomerPhone, doc.CustomerEmail)...)
	var right []string
	if doc.PaymentMethod != "" {
		right = append(right, "Paid by "+doc.PaymentMethod)
	}
	if doc.Status != "" {
		right = append(right, "Status: "+strings.ToUpper(doc.Status))
	}
	if doc.DueDate != nil {
		right = append(right, "Due "+doc.DueDate.Format("02 Jan 2006"))
	}
	if doc.ValidUntil != nil {
		right = append(right, "Valid until "+doc.ValidUntil.Format("02 Jan 2006"))
	}

	lines := len(left)
	if len(right) > lines {
		lines = len(right)
	}
	for i := 0; i < lines; i++ {
		var l, rt string
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			rt = right[i]
		}
		pdf.CellFormat(110, 5.5, tr(Truncate(l, 50)), "", 0, "L", false, 0, "")
		pdf.CellFormat(70, 5.5, tr(rt), "", 1, "R", false, 0, "")
	}
	pdf.Ln(6)
}

func (r *Renderer) items(pdf *fpdf.Fpdf, tr func(string) string, doc *Document) {
	setFill(pdf, colorPrimary)
	setText(pdf, colorWhite)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(colDescription, rowHeight, "  Description", "", 0, "L", true, 0, "")
	pdf.CellFormat(colQuantity, rowHeight, "Qty", "", 0, "C", true, 0, "")
	pdf.CellFormat(colUnitPrice, rowHeight, "Unit price", "", 0, "R", true, 0, "")
	pdf.CellFormat(colTotal, rowHeight, "Amount  ", "", 1, "R", true, 0, "")

	setText(pdf, colorText)
	pdf.SetFont("Helvetica", "", 10)
	for i, item := range doc.Items {
		setFill(pdf, colorWhite)
		if i%2 == 1 {
			setFill(pdf, colorStripe)
		}
		pdf.CellFormat(colDescription, rowHeight, tr("  "+Truncate(item.Description, descriptionLimit)), "", 0, "L", true, 0, "")
		pdf.CellFormat(colQuantity, rowHeight, formatQuantity(item.Quantity), "", 0, "C", true, 0, "")
		pdf.CellFormat(colUnitPrice, rowHeight, tr(r.money(item.UnitPrice)), "", 0, "R", true, 0, "")
		pdf.CellFormat(colTotal, rowHeight, tr(r.money(item.Total)+"  "), "", 1, "R", true, 0, "")
	}

	setDraw(pdf, colorPrimary)
	pdf.SetLineWidth(0.4)
	y := pdf.GetY()
	pdf.Line(pageMargin, y, pageMargin+contentWidth, y)
	pdf.Ln(3)
}

func (r *Renderer) totals(pdf *fpdf.Fpdf, tr func(string) string, doc *Document) {
	labelX := pageMargin + colDescription + colQuantity
	row := func(label string, amount decimal.Decimal, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetX(labelX)
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(colUnitPrice, 6.5, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(colTotal, 6.5, tr(r.money(amount)+"  "), "", 1, "R", false, 0, "")
	}

	setText(pdf, colorText)
	if !doc.Tax.IsZero() {
		row("Subtotal", doc.Subtotal, false)
		row("Tax", doc.Tax, false)
	}
	setText(pdf, colorPrimary)
	row("TOTAL", doc.Total, true)
	pdf.Ln(4)
}

func (r *Renderer) impact(pdf *fpdf.Fpdf, tr func(string) string, doc *Document) {
	setFill(pdf, colorImpactBg)
	setDraw(pdf, colorImpact)
	setText(pdf, colorImpact)
	pdf.SetLineWidth(0.3)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentWidth, 12, tr(impactText(doc)), "1", 1, "C", true, 0, "")
	pdf.Ln(4)
}

func (r *Renderer) notes(pdf *fpdf.Fpdf, tr func(string) string, doc *Document) {
	if doc.Notes == "" {
		return
	}
	setText(pdf, colorMuted)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentWidth, 5, "NOTES", "", 1, "L", false, 0, "")
	setText(pdf, colorText)
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(contentWidth, 5, tr(Truncate(doc.Notes, notesLimit)), "", "L", false)
}

// showImpact reports whether the impact banner is drawn.
func showImpact(doc *Document) bool {
	return doc.Tenant.ImpactEnabled && doc.ImpactUnits > 0
}

func impactText(doc *Document) string {
	label := doc.Tenant.ImpactLabel
	if label == "" {
		label = "units of impact"
	}
	return fmt.Sprintf("This purchase contributed %d %s", doc.ImpactUnits, label)
}

func (r *Renderer) money(d decimal.Decimal) string {
	return FormatMoney(r.currency, d)
}

// FormatMoney prints d with two decimals and thousands separators,
// e.g. K12,500.00.
func FormatMoney(currency string, d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + currency + b.String() + "." + frac
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func setFill(pdf *fpdf.Fpdf, c rgb) { pdf.SetFillColor(c.r, c.g, c.b) }
func setText(pdf *fpdf.Fpdf, c rgb) { pdf.SetTextColor(c.r, c.g, c.b) }
func setDraw(pdf *fpdf.Fpdf, c rgb) { pdf.SetDrawColor(c.r, c.g, c.b) }
