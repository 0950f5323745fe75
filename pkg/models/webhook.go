package models

// TwilioWebhook is the form body Twilio posts for an inbound WhatsApp message
type TwilioWebhook struct {
	From        string `form:"From" binding:"required"`
	To          string `form:"To"`
	Body        string `form:"Body"`
	MessageSid  string `form:"MessageSid"`
	AccountSid  string `form:"AccountSid"`
	ProfileName string `form:"ProfileName"`
	NumMedia    string `form:"NumMedia"`
}
