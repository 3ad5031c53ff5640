package loadapplicantsnapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p2p-lending-workers/internal/common/camunda/zeebetest"
	"p2p-lending-workers/internal/common/logger"
)

const snapshotPattern = `SELECT monthly_income, card_balance, card_rate_pct, tenure_months FROM applicant_profiles WHERE application_id = \$1`

func f(v float64) *float64 {
	return &v
}

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second, CacheTTL: 5 * time.Minute}
}

func createTestHandler(t *testing.T, db *sql.DB, redisClient *redis.Client) *Handler {
	return NewHandler(createTestConfig(), db, redisClient, logger.NewTestLogger(t))
}

func profileRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"monthly_income", "card_balance", "card_rate_pct", "tenure_months"})
}

// ============================================================================
// Execute
// ============================================================================

func TestExecute_CacheMissLoadsFromDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	redisClient, redisMock := redismock.NewClientMock()

	redisMock.ExpectGet("applicant:snapshot:app-001").RedisNil()
	mock.ExpectQuery(snapshotPattern).
		WithArgs("app-001").
		WillReturnRows(profileRows().AddRow(12000.0, 5500.0, 24.0, 30))

	expected := Snapshot{MonthlyIncome: f(12000), CardBalance: f(5500), CardRatePct: f(24), TenureMonths: f(30)}
	cached, _ := json.Marshal(&expected)
	redisMock.ExpectSet("applicant:snapshot:app-001", cached, 5*time.Minute).SetVal("OK")

	handler := createTestHandler(t, db, redisClient)
	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-001"})
	require.NoError(t, err)

	assert.Equal(t, "app-001", output.ApplicationID)
	assert.Equal(t, SourceDatabase, output.SnapshotSource)
	assert.Equal(t, expected, output.Snapshot)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestExecute_CacheHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	redisClient, redisMock := redismock.NewClientMock()

	redisMock.ExpectGet("applicant:snapshot:app-002").
		SetVal(`{"monthlyIncome":9000,"cardBalance":1200,"cardRatePct":18,"tenureMonths":14}`)

	handler := createTestHandler(t, db, redisClient)
	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-002"})
	require.NoError(t, err)

	assert.Equal(t, SourceCache, output.SnapshotSource)
	assert.Equal(t, 9000.0, *output.MonthlyIncome)
	assert.Equal(t, 14.0, *output.TenureMonths)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestExecute_NullColumnsStayAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(snapshotPattern).
		WithArgs("app-003").
		WillReturnRows(profileRows().AddRow(7000.0, nil, nil, 8))

	handler := createTestHandler(t, db, nil)
	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-003"})
	require.NoError(t, err)

	assert.Equal(t, 7000.0, *output.MonthlyIncome)
	assert.Nil(t, output.CardBalance)
	assert.Nil(t, output.CardRatePct)
	assert.Equal(t, 8.0, *output.TenureMonths)

	data, err := json.Marshal(output)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "cardBalance")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_RedisFailureFallsBackToDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	redisClient, redisMock := redismock.NewClientMock()

	redisMock.ExpectGet("applicant:snapshot:app-004").SetErr(errors.New("connection refused"))
	mock.ExpectQuery(snapshotPattern).
		WithArgs("app-004").
		WillReturnRows(profileRows().AddRow(5000.0, 0.0, 0.0, 12))

	handler := createTestHandler(t, db, redisClient)
	output, err := handler.Execute(context.Background(), &Input{ApplicationID: "app-004"})
	require.NoError(t, err)
	assert.Equal(t, SourceDatabase, output.SnapshotSource)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name         string
		dbErr        error
		expectedErr  error
		expectedCode string
	}{
		{"applicant not found", sql.ErrNoRows, ErrApplicantNotFound, "APPLICANT_NOT_FOUND"},
		{"query failure", errors.New("connection reset"), ErrQueryFailed, "DATABASE_QUERY_FAILED"},
		{"query timeout", context.DeadlineExceeded, ErrQueryTimeout, "QUERY_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery(snapshotPattern).WithArgs("app-404").WillReturnError(tt.dbErr)

			handler := createTestHandler(t, db, nil)
			_, err = handler.Execute(context.Background(), &Input{ApplicationID: "app-404"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.expectedCode, string(toStandardError("app-404", err).Code))
		})
	}
}

func TestExecute_MissingApplicationID(t *testing.T) {
	handler := createTestHandler(t, nil, nil)
	_, err := handler.Execute(context.Background(), &Input{ApplicationID: "  "})
	assert.ErrorIs(t, err, ErrMissingApplicationID)
}

// ============================================================================
// Handle
// ============================================================================

func TestHandle_NotFoundThrows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(snapshotPattern).WithArgs("app-404").WillReturnError(sql.ErrNoRows)

	client := zeebetest.NewJobClient()
	createTestHandler(t, db, nil).Handle(client, zeebetest.NewJob(1, TaskType, 3, `{"applicationId":"app-404"}`))

	assert.Empty(t, client.Gateway.Completed)
	require.Len(t, client.Gateway.Thrown, 1)
	assert.Equal(t, "APPLICANT_NOT_FOUND", client.Gateway.Thrown[0].ErrorCode)
}

func TestHandle_QueryFailureIsRetried(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(snapshotPattern).WithArgs("app-500").WillReturnError(errors.New("connection reset"))

	client := zeebetest.NewJobClient()
	createTestHandler(t, db, nil).Handle(client, zeebetest.NewJob(2, TaskType, 3, `{"applicationId":"app-500"}`))

	assert.Empty(t, client.Gateway.Thrown)
	require.Len(t, client.Gateway.Failed, 1)
	assert.Equal(t, int32(2), client.Gateway.Failed[0].Retries)
}

func TestHandle_CompletesWithSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(snapshotPattern).
		WithArgs("app-001").
		WillReturnRows(profileRows().AddRow(12000.0, 5500.0, 24.0, 30))

	client := zeebetest.NewJobClient()
	createTestHandler(t, db, nil).Handle(client, zeebetest.NewJob(3, TaskType, 3, `{"applicationId":"app-001"}`))

	require.Len(t, client.Gateway.Completed, 1)
	vars, err := client.Gateway.CompletedVariables(0)
	require.NoError(t, err)
	assert.Equal(t, 12000.0, vars["monthlyIncome"])
	assert.Equal(t, "database", vars["snapshotSource"])
}
