package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whatsapp-assistant/internal/audit"
	"whatsapp-assistant/internal/logger"
	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/pending"
	"whatsapp-assistant/internal/ws"
	apimodels "whatsapp-assistant/pkg/models"
)

type AuditHandler struct {
	Audit   *audit.Logger
	Pending *pending.Store
	Hub     *ws.Hub
}

func NewAuditHandler(auditLogger *audit.Logger, pendingStore *pending.Store, hub *ws.Hub) *AuditHandler {
	return &AuditHandler{Audit: auditLogger, Pending: pendingStore, Hub: hub}
}

// GetLogs lists audit rows, newest first.
// Query: tenant_id, phone, success (true|false), limit, offset.
func (h *AuditHandler) GetLogs(c *gin.Context) {
	f := audit.Filter{
		TenantID:    c.Query("tenant_id"),
		PhoneNumber: c.Query("phone"),
		Limit:       queryInt(c, "limit", 100),
		Offset:      queryInt(c, "offset", 0),
	}
	if f.Limit == 0 || f.Limit > 500 {
		f.Limit = 100
	}
	if s := c.Query("success"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "success must be true or false"})
			return
		}
		f.Success = &b
	}

	rows, total, err := h.Audit.List(c.Request.Context(), f)
	if err != nil {
		logger.FromGin(c).Error("List audit logs failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audit logs"})
		return
	}
	if rows == nil {
		rows = []models.AuditLog{}
	}
	c.JSON(http.StatusOK, apimodels.Page{Data: rows, Total: total, Limit: f.Limit, Offset: f.Offset})
}

// StreamLogs upgrades to a websocket that receives every new audit row.
func (h *AuditHandler) StreamLogs(c *gin.Context) {
	h.Hub.ServeWs(c)
}

func (h *AuditHandler) GetPendingActions(c *gin.Context) {
	actions, err := h.Pending.ListRecent(c.Request.Context(), c.Query("tenant_id"), queryInt(c, "limit", 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list pending actions"})
		return
	}
	if actions == nil {
		actions = []models.PendingAction{}
	}
	c.JSON(http.StatusOK, actions)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
