// internal/workers/underwriting/compute-gross-up/config.go
package computegrossup

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
