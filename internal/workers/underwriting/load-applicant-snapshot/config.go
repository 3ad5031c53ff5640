// internal/workers/underwriting/load-applicant-snapshot/config.go
package loadapplicantsnapshot

import "time"

type Config struct {
	Timeout  time.Duration
	CacheTTL time.Duration
}

func LoadConfig(cacheTTL time.Duration) *Config {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &Config{
		Timeout:  10 * time.Second,
		CacheTTL: cacheTTL,
	}
}
