package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSendMessage(t *testing.T) {
	var got url.Values
	var user, pass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{AccountSID: "AC123", AuthToken: "tok", From: "+14155238886", BaseURL: srv.URL}, zap.NewNop())
	resp, err := c.SendMessage(context.Background(), "+260971234567", "Your receipt", "https://files.test/r.pdf")
	require.NoError(t, err)

	assert.Equal(t, "SM1", resp.SID)
	assert.Equal(t, "AC123", user)
	assert.Equal(t, "tok", pass)
	assert.Equal(t, "whatsapp:+14155238886", got.Get("From"))
	assert.Equal(t, "whatsapp:+260971234567", got.Get("To"))
	assert.Equal(t, "Your receipt", got.Get("Body"))
	assert.Equal(t, "https://files.test/r.pdf", got.Get("MediaUrl"))
}

func TestSendMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{AccountSID: "AC123", AuthToken: "tok", From: "whatsapp:+1", BaseURL: srv.URL}, zap.NewNop())
	err := c.SendDocument(context.Background(), "bogus", "", "https://files.test/r.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "21211")
}

func TestSendMessage_NotConfigured(t *testing.T) {
	c := NewClient(Config{}, zap.NewNop())
	assert.False(t, c.Configured())
	_, err := c.SendMessage(context.Background(), "+1", "hi", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSignature(t *testing.T) {
	// Example from Twilio's webhook security documentation.
	params := url.Values{
		"CallSid": {"CA1234567890ABCDE"},
		"Caller":  {"+12349013030"},
		"Digits":  {"1234"},
		"From":    {"+12349013030"},
		"To":      {"+18005551212"},
	}
	const token = "12345"
	const fullURL = "https://mycompany.com/myapp.php?foo=1&bar=2"

	sig := ComputeSignature(token, fullURL, params)
	assert.Equal(t, "0/KCTR6DLpKmkAf8muzZqo1nDgQ=", sig)
	assert.True(t, ValidSignature(token, fullURL, params, sig))
	assert.False(t, ValidSignature(token, fullURL, params, ""))
	assert.False(t, ValidSignature("other", fullURL, params, sig))
}
