// internal/workers/underwriting/classify-applicant-risk/config.go
package classifyapplicantrisk

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
