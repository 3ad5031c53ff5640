package createloanrecord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"p2p-lending-workers/internal/common/camunda/zeebetest"
	"p2p-lending-workers/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

func createTestInput() *Input {
	return &Input{
		ApplicationID:         "app-001",
		ApplicantID:           "user-001",
		RiskTier:              "B",
		BorrowerRatePct:       17,
		InvestorYieldPct:      12,
		NetAmount:             15000,
		OriginationFee:        625,
		GrossPrincipal:        15625,
		TermMonths:            24,
		AnnuityPayment:        772.535376,
		BlendedMonthlyPayment: 787.084897,
		TotalCreditCost:       3890.037537,
	}
}

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl.WithFields(map[string]interface{}{"error": err})
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

func newTestLogger(t *testing.T) logger.Logger {
	return &testLogger{t: t}
}

func expectDuplicateCheck(mock sqlmock.Sqlmock, exists bool) {
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("app-001").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func expectLoanInsert(mock sqlmock.Sqlmock) *sqlmock.ExpectedExec {
	return mock.ExpectExec(`INSERT INTO loans`).
		WithArgs(
			sqlmock.AnyArg(), // loan id
			"app-001",
			"user-001",
			"B",
			17.0,
			12.0,
			15000.0,
			625.0,
			15625.0,
			24,
			772.54,
			787.08,
			3890.04,
			"PENDING_FUNDING",
			sqlmock.AnyArg(), // created_at
		)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectDuplicateCheck(mock, false)
	expectLoanInsert(mock).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("loan_created", "loan", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	handler := NewHandler(createTestConfig(), db, newTestLogger(t))
	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)

	_, parseErr := uuid.Parse(output.LoanID)
	assert.NoError(t, parseErr)
	assert.Equal(t, "PENDING_FUNDING", output.LoanStatus)
	_, parseErr = time.Parse(time.RFC3339, output.CreatedAt)
	assert.NoError(t, parseErr)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_AuditFailureIsNotFatal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectDuplicateCheck(mock, false)
	expectLoanInsert(mock).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnError(errors.New("audit table locked"))

	handler := NewHandler(createTestConfig(), db, newTestLogger(t))
	output, err := handler.Execute(context.Background(), createTestInput())
	require.NoError(t, err)
	assert.NotEmpty(t, output.LoanID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name         string
		setupMock    func(mock sqlmock.Sqlmock)
		expectedErr  error
		expectedCode string
	}{
		{
			name:         "existing loan for application",
			setupMock:    func(mock sqlmock.Sqlmock) { expectDuplicateCheck(mock, true) },
			expectedErr:  ErrDuplicateLoan,
			expectedCode: "DUPLICATE_LOAN",
		},
		{
			name: "duplicate check fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT EXISTS`).WillReturnError(errors.New("connection refused"))
			},
			expectedErr:  ErrDatabaseInsertFailed,
			expectedCode: "DATABASE_INSERT_FAILED",
		},
		{
			name: "insert fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				expectDuplicateCheck(mock, false)
				expectLoanInsert(mock).WillReturnError(errors.New("disk full"))
			},
			expectedErr:  ErrDatabaseInsertFailed,
			expectedCode: "DATABASE_INSERT_FAILED",
		},
		{
			name: "concurrent insert hits unique constraint",
			setupMock: func(mock sqlmock.Sqlmock) {
				expectDuplicateCheck(mock, false)
				expectLoanInsert(mock).WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})
			},
			expectedErr:  ErrDuplicateLoan,
			expectedCode: "DUPLICATE_LOAN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.setupMock(mock)

			handler := NewHandler(createTestConfig(), db, newTestLogger(t))
			_, err = handler.Execute(context.Background(), createTestInput())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expectedErr)
			assert.Equal(t, tt.expectedCode, string(toStandardError("app-001", err).Code))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *Input)
	}{
		{"missing application", func(in *Input) { in.ApplicationID = "" }},
		{"missing applicant", func(in *Input) { in.ApplicantID = " " }},
		{"rejected tier", func(in *Input) { in.RiskTier = "REJECTED" }},
		{"unknown tier", func(in *Input) { in.RiskTier = "AAA" }},
		{"gross below net", func(in *Input) { in.GrossPrincipal = 14000 }},
		{"zero term", func(in *Input) { in.TermMonths = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			input := createTestInput()
			tt.mutate(input)

			handler := NewHandler(createTestConfig(), db, newTestLogger(t))
			_, err = handler.Execute(context.Background(), input)
			assert.ErrorIs(t, err, ErrInvalidLoan)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

// ==========================
// Job Handling Tests
// ==========================

func TestHandler_Handle_DuplicateThrows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	expectDuplicateCheck(mock, true)

	client := zeebetest.NewJobClient()
	NewHandler(createTestConfig(), db, newTestLogger(t)).Handle(client, zeebetest.NewJob(1, TaskType, 3,
		`{"applicationId":"app-001","applicantId":"user-001","riskTier":"B","netAmount":15000,"grossPrincipal":15625,"termMonths":24}`))

	assert.Empty(t, client.Gateway.Completed)
	require.Len(t, client.Gateway.Thrown, 1)
	assert.Equal(t, "DUPLICATE_LOAN", client.Gateway.Thrown[0].ErrorCode)
}

func TestHandler_Handle_InsertFailureRetries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	expectDuplicateCheck(mock, false)
	mock.ExpectExec(`INSERT INTO loans`).WillReturnError(errors.New("connection reset"))

	client := zeebetest.NewJobClient()
	NewHandler(createTestConfig(), db, newTestLogger(t)).Handle(client, zeebetest.NewJob(2, TaskType, 5,
		`{"applicationId":"app-001","applicantId":"user-001","riskTier":"B","netAmount":15000,"grossPrincipal":15625,"termMonths":24}`))

	assert.Empty(t, client.Gateway.Thrown)
	require.Len(t, client.Gateway.Failed, 1)
	assert.Equal(t, int32(3), client.Gateway.Failed[0].Retries)
}
