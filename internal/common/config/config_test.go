package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p2p-lending-workers/internal/pricing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    database: lending
    user: lending
    password: ${TEST_LENDING_DB_PASSWORD}
  elasticsearch:
    addresses:
      - http://localhost:9200
  redis:
    address: localhost:6379
workers:
  classify-applicant-risk:
    enabled: true
  publish-loan-listing:
    enabled: false
    timeout: 5000
`

func TestLoadFromFile_DefaultsAndExpansion(t *testing.T) {
	t.Setenv("TEST_LENDING_DB_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "http://localhost:9200", cfg.Database.Elasticsearch.URL)
	assert.Equal(t, 8080, cfg.App.HTTPPort)

	assert.Equal(t, "loan-listings", cfg.Marketplace.ListingIndex)
	assert.Equal(t, 900, cfg.Marketplace.ReservationTTLSeconds)
	assert.Equal(t, 1.0, cfg.Observability.SampleRatio)

	classify := cfg.Workers["classify-applicant-risk"]
	assert.True(t, classify.Enabled)
	assert.Equal(t, 5, classify.MaxJobsActive)
	assert.Equal(t, 30000, classify.Timeout)
	assert.Equal(t, 3, classify.MaxRetries)

	assert.False(t, IsWorkerEnabled(cfg, "publish-loan-listing"))
	assert.Equal(t, 5000, GetWorkerConfig(cfg, "publish-loan-listing").Timeout)
	assert.True(t, IsWorkerEnabled(cfg, "unknown-worker"))

	policy, err := cfg.Pricing.Policy()
	require.NoError(t, err)
	assert.Equal(t, pricing.DefaultTable().Lookup(pricing.TierB), policy.Table.Lookup(pricing.TierB))
	assert.Equal(t, pricing.DefaultFeeSchedule(), policy.Fees)
}

func TestLoadFromFile_CustomPricing(t *testing.T) {
	body := minimalConfig + `
pricing:
  tiers:
    a:
      borrower_rate_pct: 12
      investor_yield_pct: 8
      origination_pct: 2
    b:
      borrower_rate_pct: 16.5
      investor_yield_pct: 11
      origination_pct: 3.5
  flat_fee_threshold: 5000
  flat_fee: 250
  service_fee_rate: 0.001
  service_fee_floor: 5
`
	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)

	policy, err := cfg.Pricing.Policy()
	require.NoError(t, err)

	assert.Equal(t, []pricing.RiskTier{pricing.TierA, pricing.TierB}, policy.Table.Tiers())
	assert.Equal(t, 16.5, policy.Table.Lookup(pricing.TierB).BorrowerRatePct)
	assert.False(t, policy.Table.Has(pricing.TierC))
	assert.Equal(t, 250.0, policy.Fees.FlatFee)
	assert.Equal(t, 5.0, policy.Fees.ServiceFeeFloor)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{
			name: "missing broker",
			body: `
database:
  postgres: {host: localhost, database: lending, user: lending}
  elasticsearch: {url: http://localhost:9200}
  redis: {address: localhost:6379}
`,
			msg: "camunda.broker_address is required",
		},
		{
			name: "rejected tier priced",
			body: minimalConfig + `
pricing:
  tiers:
    rejected: {borrower_rate_pct: 30, investor_yield_pct: 20, origination_pct: 5}
`,
			msg: "pricing",
		},
		{
			name: "origination percentage of one hundred",
			body: minimalConfig + `
pricing:
  tiers:
    a: {borrower_rate_pct: 15, investor_yield_pct: 10, origination_pct: 100}
`,
			msg: "origination percentage",
		},
		{
			name: "sample ratio out of range",
			body: minimalConfig + `
observability:
  sample_ratio: 2
`,
			msg: "sample_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "lending", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=lending sslmode=disable", p.GetDSN())
}
