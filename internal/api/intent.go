package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whatsapp-assistant/internal/intent"
	"whatsapp-assistant/internal/logger"
	apimodels "whatsapp-assistant/pkg/models"
)

type IntentParser interface {
	Parse(ctx context.Context, message string, pctx *intent.Context) (*intent.Result, error)
}

type IntentHandler struct {
	Parser IntentParser
}

func NewIntentHandler(parser IntentParser) *IntentHandler {
	return &IntentHandler{Parser: parser}
}

func (h *IntentHandler) Parse(c *gin.Context) {
	start := time.Now()

	var req apimodels.ParseIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apimodels.ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	result, err := h.Parser.Parse(c.Request.Context(), req.Message, req.Context)
	if err != nil {
		status, msg := parseErrorStatus(err)
		if status >= http.StatusInternalServerError {
			logger.FromGin(c).Error("Intent parse failed", zap.Error(err))
		}
		c.JSON(status, apimodels.ErrorResponse{Error: msg})
		return
	}

	c.JSON(http.StatusOK, apimodels.ParseIntentResponse{
		Result:          result,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
	})
}

func parseErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, intent.ErrMissingInput):
		return http.StatusBadRequest, "Message is required"
	case errors.Is(err, intent.ErrQuotaExceeded):
		return http.StatusPaymentRequired, "AI quota exhausted"
	case errors.Is(err, intent.ErrRateLimited):
		return http.StatusTooManyRequests, "Rate limited, please retry shortly"
	case errors.Is(err, intent.ErrMissingCredential):
		return http.StatusInternalServerError, "AI service is not configured"
	default:
		return http.StatusInternalServerError, "Intent parsing failed"
	}
}
