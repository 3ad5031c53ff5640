// internal/common/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"p2p-lending-workers/internal/pricing"
)

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Pricing       PricingConfig           `mapstructure:"pricing"`
	Marketplace   MarketplaceConfig       `mapstructure:"marketplace"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	RegistryPath  string                  `mapstructure:"registry_path"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HTTPPort    int    `mapstructure:"http_port"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Domain sections ---

// PricingConfig is the operator-tunable pricing regime. Tier keys are case-insensitive.
type PricingConfig struct {
	Tiers            map[string]pricing.TierPricing `mapstructure:"tiers"`
	FlatFeeThreshold float64                        `mapstructure:"flat_fee_threshold"`
	FlatFee          float64                        `mapstructure:"flat_fee"`
	ServiceFeeRate   float64                        `mapstructure:"service_fee_rate"`
	ServiceFeeFloor  float64                        `mapstructure:"service_fee_floor"`
}

// Policy builds the immutable pricing policy handed to the underwriting workers.
func (p PricingConfig) Policy() (pricing.Policy, error) {
	entries := make(map[pricing.RiskTier]pricing.TierPricing, len(p.Tiers))
	for key, tp := range p.Tiers {
		entries[pricing.RiskTier(strings.ToUpper(key))] = tp
	}

	table, err := pricing.NewTable(entries)
	if err != nil {
		return pricing.Policy{}, err
	}

	return pricing.NewPolicy(table, pricing.FeeSchedule{
		FlatFeeThreshold: p.FlatFeeThreshold,
		FlatFee:          p.FlatFee,
		ServiceFeeRate:   p.ServiceFeeRate,
		ServiceFeeFloor:  p.ServiceFeeFloor,
	})
}

// MarketplaceConfig holds settings for listings, reservations and the snapshot cache.
type MarketplaceConfig struct {
	ListingIndex          string `mapstructure:"listing_index"`
	ReservationTTLSeconds int    `mapstructure:"reservation_ttl_seconds"`
	SnapshotCacheTTL      int    `mapstructure:"snapshot_cache_ttl_seconds"`
}

func (m MarketplaceConfig) ReservationTTL() time.Duration {
	return time.Duration(m.ReservationTTLSeconds) * time.Second
}

func (m MarketplaceConfig) SnapshotTTL() time.Duration {
	return time.Duration(m.SnapshotCacheTTL) * time.Second
}

// NotificationConfig holds settings for the send-loan-notification worker.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled           bool   `mapstructure:"enabled"`
		PriorityThreshold string `mapstructure:"priority_threshold"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

type ObservabilityConfig struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
