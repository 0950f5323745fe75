// Package whatsapp talks to Twilio's WhatsApp channel: outbound messages
// through the REST API and signature checks for inbound webhooks.
package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://api.twilio.com"

var ErrNotConfigured = errors.New("whatsapp: twilio credentials are not configured")

type Config struct {
	AccountSID string
	AuthToken  string
	From       string // sender number, with or without the whatsapp: prefix
	BaseURL    string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.Named("whatsapp"),
	}
}

func (c *Client) Configured() bool {
	return c.cfg.AccountSID != "" && c.cfg.AuthToken != "" && c.cfg.From != ""
}

// MessageResponse is the subset of Twilio's message resource we use
type MessageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) sendRequest(ctx context.Context, method, endpoint string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return body, fmt.Errorf("twilio API error %d: %s (code %d)", resp.StatusCode, apiErr.Message, apiErr.Code)
		}
		return body, fmt.Errorf("twilio API error: %s - %s", resp.Status, string(body))
	}
	return body, nil
}

// SendMessage sends text, and optionally one media attachment, to a phone
// number.
func (c *Client) SendMessage(ctx context.Context, to, body, mediaURL string) (*MessageResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("From", withPrefix(c.cfg.From))
	form.Set("To", withPrefix(to))
	if body != "" {
		form.Set("Body", body)
	}
	if mediaURL != "" {
		form.Set("MediaUrl", mediaURL)
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.AccountSID))
	raw, err := c.sendRequest(ctx, http.MethodPost, endpoint, form)
	if err != nil {
		return nil, err
	}

	var out MessageResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode twilio response: %w", err)
	}
	c.logger.Info("Message sent", zap.String("to", to), zap.String("sid", out.SID), zap.Bool("media", mediaURL != ""))
	return &out, nil
}

// SendDocument delivers a stored document as a media message.
func (c *Client) SendDocument(ctx context.Context, to, caption, documentURL string) error {
	_, err := c.SendMessage(ctx, to, caption, documentURL)
	return err
}

func withPrefix(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}
