package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whatsapp-assistant/internal/documents"
	"whatsapp-assistant/internal/logger"
	"whatsapp-assistant/internal/storage"
	apimodels "whatsapp-assistant/pkg/models"
)

type DocumentGenerator interface {
	Generate(ctx context.Context, req documents.Request) (*documents.Artifact, error)
}

type DocumentHandler struct {
	Generator DocumentGenerator
	// Files is set when documents are kept in process and served by the API.
	Files *storage.MemoryStorage
}

func NewDocumentHandler(generator DocumentGenerator, files *storage.MemoryStorage) *DocumentHandler {
	return &DocumentHandler{Generator: generator, Files: files}
}

func (h *DocumentHandler) Generate(c *gin.Context) {
	var req apimodels.GenerateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apimodels.ErrorResponse{Error: "document_type and tenant_id are required", Details: err.Error()})
		return
	}

	art, err := h.Generator.Generate(c.Request.Context(), documents.Request{
		Type:           documents.Type(req.DocumentType),
		TenantID:       req.TenantID,
		DocumentID:     req.DocumentID,
		DocumentNumber: req.DocumentNumber,
	})
	switch {
	case errors.Is(err, documents.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, apimodels.ErrorResponse{Error: "Invalid document request", Details: err.Error()})
		return
	case errors.Is(err, documents.ErrNotFound):
		c.JSON(http.StatusNotFound, apimodels.ErrorResponse{Error: "Document not found"})
		return
	case err != nil:
		logger.FromGin(c).Error("Document generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, apimodels.ErrorResponse{Error: "Failed to generate document", Details: err.Error()})
		return
	}

	c.JSON(http.StatusOK, apimodels.GenerateDocumentResponse{
		Success:        true,
		DocumentType:   string(art.Type),
		DocumentNumber: art.DocumentNumber,
		URL:            art.URL,
		Filename:       art.Filename,
	})
}

// ServeFile returns a document from in-process storage.
func (h *DocumentHandler) ServeFile(c *gin.Context) {
	if h.Files == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	key := strings.TrimPrefix(c.Param("key"), "/")
	obj, ok := h.Files.Get(key)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}
