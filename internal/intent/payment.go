package intent

import "strings"

const (
	PaymentCash        = "Cash"
	PaymentMobileMoney = "Mobile Money"
	PaymentCard        = "Card"
)

var (
	mobileMoneyMarkers = []string{"mobile", "momo", "airtel", "mtn", "zamtel", "money"}
	cardMarkers        = []string{"card", "visa", "mastercard", "debit", "credit"}
)

// CanonicalPaymentMethod maps free text onto Cash, Mobile Money or Card.
// Anything unrecognised is Cash.
func CanonicalPaymentMethod(s string) string {
	lower := strings.ToLower(s)
	for _, m := range mobileMoneyMarkers {
		if strings.Contains(lower, m) {
			return PaymentMobileMoney
		}
	}
	for _, m := range cardMarkers {
		if strings.Contains(lower, m) {
			return PaymentCard
		}
	}
	return PaymentCash
}
