// internal/workers/notification/send-loan-notification/config.go
package sendloannotification

import "time"

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	// SMS goes out only for notifications at or above this priority.
	SMSPriorityThreshold string
	Timeout              time.Duration
}

func LoadConfig() *Config {
	return &Config{
		SMSPriorityThreshold: PriorityHigh,
		Timeout:              30 * time.Second,
	}
}
