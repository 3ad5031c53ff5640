// internal/workers/notification/send-loan-notification/models.go
package sendloannotification

type Input struct {
	RecipientID      string                 `json:"recipientId"`
	RecipientType    string                 `json:"recipientType"` // "borrower" or "investor"
	NotificationType string                 `json:"notificationType"`
	LoanID           string                 `json:"loanId,omitempty"`
	ApplicationID    string                 `json:"applicationId,omitempty"`
	Priority         string                 `json:"priority,omitempty"`
	// MustDeliver fails the job for retry instead of completing with status "failed".
	MustDeliver bool                   `json:"mustDeliver,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type Output struct {
	NotificationID   string   `json:"notificationId"`
	NotificationType string   `json:"notificationType"`
	Status           string   `json:"status"` // "sent", "failed", "disabled"
	Channels         []string `json:"channels"`
	SentAt           string   `json:"sentAt"` // ISO 8601
}

// Notification types
const (
	TypeLoanOffer        = "loan_offer"
	TypeLoanRejected     = "loan_rejected"
	TypeListingPublished = "listing_published"
	TypeFundingReserved  = "funding_reserved"
)

// Statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

// Channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Recipient types
const (
	RecipientTypeBorrower = "borrower"
	RecipientTypeInvestor = "investor"
)

// Priorities, lowest first.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)
