// internal/workers/notification/send-loan-notification/templates.go
package sendloannotification

import (
	"fmt"
	"strconv"
	"strings"

	"p2p-lending-workers/internal/common/money"
	"p2p-lending-workers/internal/models"
)

var templates = map[string]models.NotificationTemplate{
	TypeLoanOffer: {
		Type:    TypeLoanOffer,
		Subject: "Your loan offer is ready",
		Body: "Hello {{fullName}}, your application {{applicationId}} was approved in tier {{riskTier}}. " +
			"You would receive {{netAmount}} and repay {{blendedMonthlyPayment}} a month over {{termMonths}} months " +
			"at {{borrowerRatePct}}% interest. Total cost of credit: {{totalCreditCost}}.",
		SMS: "Loan offer for {{applicationId}}: {{blendedMonthlyPayment}}/month over {{termMonths}} months.",
	},
	TypeLoanRejected: {
		Type:    TypeLoanRejected,
		Subject: "Update on your loan application",
		Body: "Hello {{fullName}}, we are unable to offer a loan for application {{applicationId}} at this time. " +
			"Reason: {{rejectReason}}.",
		SMS: "Your loan application {{applicationId}} was not approved.",
	},
	TypeListingPublished: {
		Type:    TypeListingPublished,
		Subject: "New loan listed on the marketplace",
		Body: "Hello {{fullName}}, loan {{loanId}} ({{riskTier}}) is now open for funding: " +
			"{{grossPrincipal}} over {{termMonths}} months yielding {{investorYieldPct}}%.",
		SMS: "Loan {{loanId}} is open for funding at {{investorYieldPct}}%.",
	},
	TypeFundingReserved: {
		Type:    TypeFundingReserved,
		Subject: "Your funding reservation is confirmed",
		Body: "Hello {{fullName}}, you reserved {{amount}} of loan {{loanId}}. " +
			"The reservation {{reservationId}} holds until {{expiresAt}}.",
		SMS: "Reserved {{amount}} of loan {{loanId}} until {{expiresAt}}.",
	},
}

func lookupTemplate(notificationType string) (models.NotificationTemplate, bool) {
	t, ok := templates[notificationType]
	return t, ok
}

// renderTemplate replaces {{key}} placeholders from data and drops any left unresolved.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", formatValue(v))
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}

// formatValue prints whole numbers without decimals and everything else to the cent.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return money.String(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
