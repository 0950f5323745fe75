package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"whatsapp-assistant/internal/storage"
)

const pdfContentType = "application/pdf"

// Generator resolves, renders and publishes documents.
type Generator struct {
	loader   *loader
	renderer *Renderer
	storage  storage.ObjectStorage
	logger   *zap.Logger
	now      func() time.Time
}

func NewGenerator(db *gorm.DB, store storage.ObjectStorage, renderer *Renderer, logger *zap.Logger) *Generator {
	return &Generator{
		loader:   &loader{db: db},
		renderer: renderer,
		storage:  store,
		logger:   logger.Named("documents"),
		now:      time.Now,
	}
}

// Generate renders a fresh artifact on every call, even for a document that
// was generated before.
func (g *Generator) Generate(ctx context.Context, req Request) (*Artifact, error) {
	req.Type = Type(strings.ToLower(strings.TrimSpace(string(req.Type))))
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: document_type must be receipt, invoice or quotation", ErrInvalidRequest)
	}
	if req.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidRequest)
	}

	doc, err := g.loader.load(ctx, req)
	if err != nil {
		return nil, err
	}
	tenant, err := g.loader.tenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	doc.Tenant = tenant

	data, err := g.renderer.Render(doc)
	if err != nil {
		return nil, err
	}

	filename := Filename(doc.Type, doc.Number, g.now())
	key := StorageKey(req.TenantID, doc.Type, filename)
	if err := g.storage.Upload(ctx, key, data, pdfContentType); err != nil {
		return nil, fmt.Errorf("store %s: %w", filename, err)
	}
	url, err := g.storage.URL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("link %s: %w", filename, err)
	}

	g.logger.Info("Document generated",
		zap.String("type", string(doc.Type)),
		zap.String("number", doc.Number),
		zap.String("key", key),
		zap.Bool("synthetic", doc.Synthetic),
		zap.Int("bytes", len(data)),
	)

	return &Artifact{
		Type:           doc.Type,
		DocumentNumber: doc.Number,
		Filename:       filename,
		StorageKey:     key,
		URL:            url,
		Data:           data,
	}, nil
}

// Filename is {type}_{number}_{unix millis}.pdf.
func Filename(t Type, number string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d.pdf", t, safeSegment(number), at.UnixMilli())
}

// StorageKey namespaces a file by tenant and type, e.g. t1/receipts/x.pdf.
func StorageKey(tenantID string, t Type, filename string) string {
	return fmt.Sprintf("%s/%ss/%s", safeSegment(tenantID), t, filename)
}

func safeSegment(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', '?', '#', '%':
			return '-'
		}
		return r
	}, s)
}
