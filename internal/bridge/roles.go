package bridge

import (
	"strings"

	"whatsapp-assistant/internal/intent"
)

var readOnly = []intent.Intent{
	intent.CheckStock, intent.ListProducts, intent.GetSalesSummary,
	intent.CheckCustomer, intent.Help,
}

// permissions lists what each role may do. Owners and admins may do
// everything; unknown roles get the viewer set.
var permissions = map[string][]intent.Intent{
	"manager": intent.All,
	"cashier": cashier,
	"staff":   cashier,
	"viewer":  readOnly,
}

var cashier = append([]intent.Intent{
	intent.RecordSale, intent.SendReceipt, intent.SendQuotation,
}, readOnly...)

func Allowed(role string, i intent.Intent) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "owner" || role == "admin" {
		return true
	}
	allowed, ok := permissions[role]
	if !ok {
		allowed = permissions["viewer"]
	}
	for _, a := range allowed {
		if a == i {
			return true
		}
	}
	return false
}
