package webhook

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/conversation"
	"whatsapp-assistant/internal/logger"
	"whatsapp-assistant/internal/whatsapp"
	"whatsapp-assistant/pkg/models"
)

const signatureHeader = "X-Twilio-Signature"

// MessageRouter turns one inbound message into one reply.
type MessageRouter interface {
	Handle(ctx context.Context, in conversation.Inbound) string
}

type Handler struct {
	Config *config.Config
	Router MessageRouter
}

func NewHandler(cfg *config.Config, router MessageRouter) *Handler {
	return &Handler{
		Config: cfg,
		Router: router,
	}
}

// HandleMessage answers a Twilio WhatsApp webhook with a TwiML reply.
func (h *Handler) HandleMessage(c *gin.Context) {
	log := logger.FromGin(c)

	if err := c.Request.ParseForm(); err != nil {
		log.Warn("Invalid webhook form", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	if h.Config.WebhookValidateSignature {
		sig := c.GetHeader(signatureHeader)
		if !whatsapp.ValidSignature(h.Config.TwilioAuthToken, h.Config.WebhookPublicURL, c.Request.PostForm, sig) {
			log.Warn("Rejected webhook with invalid signature")
			c.Status(http.StatusForbidden)
			return
		}
	}

	var payload models.TwilioWebhook
	if err := c.ShouldBind(&payload); err != nil {
		log.Warn("Webhook missing sender", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	log.Info("Received message",
		zap.String("from", payload.From),
		zap.String("message_sid", payload.MessageSid),
	)

	// Keep going if Twilio gives up waiting; the audit row and any mutation
	// must still complete.
	ctx := context.WithoutCancel(c.Request.Context())
	reply := h.Router.Handle(ctx, conversation.Inbound{
		From:       payload.From,
		Body:       payload.Body,
		MessageSID: payload.MessageSid,
	})

	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(TwiML(reply)))
}

// HandleStatus logs Twilio delivery callbacks for outbound messages.
func (h *Handler) HandleStatus(c *gin.Context) {
	logger.FromGin(c).Info("Message status",
		zap.String("message_sid", c.PostForm("MessageSid")),
		zap.String("status", c.PostForm("MessageStatus")),
		zap.String("error_code", c.PostForm("ErrorCode")),
	)
	c.Status(http.StatusNoContent)
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// TwiML wraps a reply in a single <Message> element.
func TwiML(reply string) string {
	return `<?xml version="1.0" encoding="UTF-8"?><Response><Message>` +
		xmlEscaper.Replace(reply) +
		`</Message></Response>`
}
