package api

import (
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whatsapp-assistant/internal/logger"
	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/senders"
	apimodels "whatsapp-assistant/pkg/models"
)

type SenderHandler struct {
	Store *senders.Store
}

func NewSenderHandler(store *senders.Store) *SenderHandler {
	return &SenderHandler{Store: store}
}

func (h *SenderHandler) GetMappings(c *gin.Context) {
	mappings, err := h.Store.List(c.Request.Context(), c.Query("tenant_id"))
	if err != nil {
		logger.FromGin(c).Error("List sender mappings failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sender mappings"})
		return
	}

	// Return empty array instead of null
	if mappings == nil {
		mappings = []models.SenderMapping{}
	}
	c.JSON(http.StatusOK, mappings)
}

func (h *SenderHandler) GetMapping(c *gin.Context) {
	m, err := h.Store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, senders.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sender mapping not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load sender mapping"})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *SenderHandler) CreateMapping(c *gin.Context) {
	var req apimodels.SenderMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m := &models.SenderMapping{
		TenantID:    req.TenantID,
		UserID:      req.UserID,
		PhoneNumber: req.PhoneNumber,
		Role:        req.Role,
		DisplayName: req.DisplayName,
		IsActive:    req.IsActive == nil || *req.IsActive,
		EmployeeID:  req.EmployeeID,
		BranchID:    req.BranchID,
	}
	err := h.Store.Create(c.Request.Context(), m)
	if errors.Is(err, senders.ErrDuplicate) {
		c.JSON(http.StatusConflict, gin.H{"error": "Phone number already has an active mapping for this tenant"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("Create sender mapping failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create sender mapping"})
		return
	}

	c.JSON(http.StatusCreated, m)
}

func (h *SenderHandler) UpdateMapping(c *gin.Context) {
	var req apimodels.SenderMappingUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.Store.Update(c.Request.Context(), c.Param("id"), senders.Update{
		Role:        req.Role,
		DisplayName: req.DisplayName,
		IsActive:    req.IsActive,
		EmployeeID:  req.EmployeeID,
		BranchID:    req.BranchID,
	})
	switch {
	case errors.Is(err, senders.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Sender mapping not found"})
	case errors.Is(err, senders.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "Phone number already has an active mapping for this tenant"})
	case err != nil:
		logger.FromGin(c).Error("Update sender mapping failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update sender mapping"})
	default:
		c.JSON(http.StatusOK, m)
	}
}

func (h *SenderHandler) DeleteMapping(c *gin.Context) {
	err := h.Store.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, senders.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sender mapping not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete sender mapping"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Sender mapping deleted"})
}

func (h *SenderHandler) ExportMappings(c *gin.Context) {
	mappings, err := h.Store.List(c.Request.Context(), c.Query("tenant_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sender mappings"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=sender_mappings.csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"Tenant ID", "Phone Number", "Display Name", "Role", "Active", "Last Used At"})
	for _, m := range mappings {
		lastUsed := ""
		if m.LastUsedAt != nil {
			lastUsed = m.LastUsedAt.UTC().Format(time.RFC3339)
		}
		_ = w.Write([]string{m.TenantID, m.PhoneNumber, m.DisplayName, m.Role, strconv.FormatBool(m.IsActive), lastUsed})
	}
	w.Flush()
}
