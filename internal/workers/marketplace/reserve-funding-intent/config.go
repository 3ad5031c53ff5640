// internal/workers/marketplace/reserve-funding-intent/config.go
package reservefundingintent

import "time"

type Config struct {
	Timeout        time.Duration
	ReservationTTL time.Duration
}

func LoadConfig(reservationTTL time.Duration) *Config {
	if reservationTTL <= 0 {
		reservationTTL = 15 * time.Minute
	}
	return &Config{
		Timeout:        10 * time.Second,
		ReservationTTL: reservationTTL,
	}
}
