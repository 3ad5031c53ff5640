// internal/workers/underwriting/load-applicant-snapshot/models.go
package loadapplicantsnapshot

type Input struct {
	ApplicationID string `json:"applicationId"`
}

// Snapshot mirrors applicant_profiles. A NULL column stays nil so the
// classifier can reject the applicant for a missing attribute.
type Snapshot struct {
	MonthlyIncome *float64 `json:"monthlyIncome,omitempty"`
	CardBalance   *float64 `json:"cardBalance,omitempty"`
	CardRatePct   *float64 `json:"cardRatePct,omitempty"`
	TenureMonths  *float64 `json:"tenureMonths,omitempty"`
}

type Output struct {
	ApplicationID string `json:"applicationId"`
	Snapshot
	SnapshotSource string `json:"snapshotSource"`
}

const (
	SourceCache    = "cache"
	SourceDatabase = "database"
)
