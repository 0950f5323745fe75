package conversation

import (
	"fmt"
	"strings"

	"whatsapp-assistant/internal/intent"
)

// Fixed user-facing texts. None of them carry technical detail.
const (
	UnregisteredText = "This number is not registered with any business. " +
		"Ask your business owner to add your WhatsApp number in the dashboard."
	InactiveText = "Your WhatsApp access has been deactivated. " +
		"Please contact your business administrator."
	AmbiguousText = "This number is linked to more than one business. " +
		"Please ask your administrator to keep only one active."
	NotUnderstoodText = "Sorry, I could not understand that. " +
		"Please rephrase, or send HELP to see what I can do."
	ErrorText     = "Sorry, an error occurred. Please try again."
	CancelledText = "Cancelled. Nothing was recorded."
	RephraseText  = "Could you give me a bit more detail? " +
		"For example: \"Sold 5 bags of cement to John for K2500 cash\"."
	ConfirmSuffix = "Reply YES to confirm or NO to cancel"
	bridgeFailed  = "Sorry, that didn't work. Please try again."
)

var (
	helpWords = map[string]bool{"help": true, "hi": true, "hello": true}
	yesWords  = map[string]bool{"yes": true, "y": true}
	noWords   = map[string]bool{"no": true, "n": true}
)

func normalizeWord(body string) string {
	return strings.ToLower(strings.TrimSpace(body))
}

func isHelp(body string) bool  { return helpWords[normalizeWord(body)] }
func isYes(body string) bool   { return yesWords[normalizeWord(body)] }
func isNo(body string) bool    { return noWords[normalizeWord(body)] }
func isYesNo(body string) bool { return isYes(body) || isNo(body) }

// Restate describes a proposed action as a question, e.g.
// "Record sale of 5x cement bags for K2500 to John?".
func Restate(i intent.Intent, e intent.Entities, currency string) string {
	switch i {
	case intent.RecordSale:
		var sb strings.Builder
		sb.WriteString("Record sale of ")
		sb.WriteString(quantity(e) + "x " + orDefault(e.Product, "item"))
		if e.Amount != nil {
			sb.WriteString(" for " + currency + intent.FormatNumber(*e.Amount))
		}
		if e.CustomerName != "" {
			sb.WriteString(" to " + e.CustomerName)
		}
		return sb.String() + "?"
	case intent.RecordExpense:
		s := "Record expense"
		if e.Amount != nil {
			s += " of " + currency + intent.FormatNumber(*e.Amount)
		}
		if what := firstSet(e.Description, e.Category, e.Product); what != "" {
			s += " for " + what
		}
		return s + "?"
	case intent.GenerateInvoice:
		s := "Create invoice for " + orDefault(e.CustomerName, "customer")
		if e.Product != "" {
			s += ": " + quantity(e) + "x " + e.Product
		}
		if e.Amount != nil {
			s += " for " + currency + intent.FormatNumber(*e.Amount)
		}
		return s + "?"
	default:
		return fmt.Sprintf("Proceed with %s?", i)
	}
}

func confirmationPrompt(i intent.Intent, e intent.Entities, currency string) string {
	return Restate(i, e, currency) + "\n\n" + ConfirmSuffix
}

func quantity(e intent.Entities) string {
	if e.Quantity == nil {
		return "1"
	}
	return intent.FormatNumber(*e.Quantity)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
