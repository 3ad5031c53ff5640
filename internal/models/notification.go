// internal/models/notification.go
package models

type NotificationTemplate struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	SMS     string `json:"sms"`
}

// Contact is a row of the users table.
type Contact struct {
	ID       string `json:"id" db:"id"`
	Email    string `json:"email" db:"email"`
	Phone    string `json:"phone" db:"phone"`
	FullName string `json:"fullName" db:"full_name"`
}
