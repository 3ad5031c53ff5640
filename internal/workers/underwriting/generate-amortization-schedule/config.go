// internal/workers/underwriting/generate-amortization-schedule/config.go
package generateamortizationschedule

import "time"

type Config struct {
	Timeout time.Duration
	// IncludeLinesByDefault controls whether the per-installment table is returned
	// when the job does not say.
	IncludeLinesByDefault bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:               10 * time.Second,
		IncludeLinesByDefault: true,
	}
}
