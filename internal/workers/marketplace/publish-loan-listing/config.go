// internal/workers/marketplace/publish-loan-listing/config.go
package publishloanlisting

import "time"

type Config struct {
	Timeout time.Duration
	Index   string
	// Refresh is passed to the index API ("true", "false" or "wait_for").
	Refresh string
}

func LoadConfig(index string) *Config {
	if index == "" {
		index = "loan-listings"
	}
	return &Config{
		Timeout: 15 * time.Second,
		Index:   index,
		Refresh: "wait_for",
	}
}
