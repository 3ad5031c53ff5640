package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Error(string, map[string]interface{}) {}

func jobWithRetries(retries int32) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 42, Type: "create-loan-record", Retries: retries}}
}

func TestNew_UsesDefaultMessageAndRetryability(t *testing.T) {
	err := New(ErrCodeDatabaseInsertFailed, "connection reset")
	assert.Equal(t, "Failed to insert record", err.Message)
	assert.True(t, err.Retryable)
	assert.Equal(t, "StandardError[DATABASE_INSERT_FAILED]: Failed to insert record", err.Error())

	biz := New(ErrCodeDuplicateLoan, "")
	assert.False(t, biz.Retryable)

	unknown := New(ErrorCode("SOMETHING_ELSE"), "")
	assert.Equal(t, "SOMETHING_ELSE", unknown.Message)
}

func TestWrap_KeepsExistingStandardError(t *testing.T) {
	original := NewDuplicateLoanError("app-1")
	wrapped := fmt.Errorf("create loan: %w", original)

	assert.Same(t, original, Wrap(ErrCodeInternalError, wrapped))

	plain := Wrap(ErrCodeDatabaseQueryFailed, stderrors.New("timeout"))
	assert.Equal(t, ErrCodeDatabaseQueryFailed, plain.Code)
	assert.Equal(t, "timeout", plain.Details)
}

func TestConvertToBPMNError(t *testing.T) {
	stdErr := NewFundingLimitExceededError("loan-1", 125.5)
	bpmn := ConvertToBPMNError(stdErr)

	assert.Equal(t, "FUNDING_LIMIT_EXCEEDED", bpmn.Code)
	assert.Equal(t, 0, bpmn.Retries)

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "FUNDING_LIMIT_EXCEEDED", vars["errorCode"])
	assert.Equal(t, "FUNDING_LIMIT_EXCEEDED", vars["originalErrorCode"])
	assert.Equal(t, 125.5, vars["remaining"])
	assert.Equal(t, false, vars["retryable"])

	timeout := ConvertToBPMNError(New(ErrCodeQueryTimeout, ""))
	assert.Equal(t, "DATABASE_QUERY_FAILED", timeout.Code)
	assert.Equal(t, 2, timeout.Retries)
}

func TestGetRetryCount(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeDatabaseQueryFailed, 3},
		{ErrCodeDatabaseInsertFailed, 3},
		{ErrCodeElasticsearchConnectionFailed, 3},
		{ErrCodeListingIndexFailed, 2},
		{ErrCodeApplicantNotFound, 0},
		{ErrCodeInvalidPricingInput, 0},
		{ErrCodeScheduleNotComputable, 0},
		{ErrCodeReservationExists, 0},
		{ErrCodeInternalError, 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, GetRetryCount(tt.code))
			assert.Equal(t, tt.expected > 0, IsRetryableErrorCode(tt.code))
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeApplicantNotFound))
	assert.Equal(t, "SEARCH", GetErrorCategory(ErrCodeListingIndexFailed))
	assert.Equal(t, "MARKETPLACE", GetErrorCategory(ErrCodeReservationExists))
	assert.Equal(t, "PRICING", GetErrorCategory(ErrCodeInvalidPricingInput))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeLoanApplicationInvalid))
	assert.Equal(t, "NOTIFICATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternalError))
}

func TestErrorHandler_Resolve(t *testing.T) {
	h := NewErrorHandler(nopLogger{})

	tests := []struct {
		name            string
		jobRetries      int32
		err             error
		expectedThrow   bool
		expectedRetries int32
		expectedCode    string
	}{
		{
			name:            "retryable error with retries left",
			jobRetries:      5,
			err:             NewDatabaseInsertFailedError(stderrors.New("conn refused")),
			expectedRetries: 3,
			expectedCode:    "DATABASE_INSERT_FAILED",
		},
		{
			name:            "retryable error counts down",
			jobRetries:      2,
			err:             NewDatabaseInsertFailedError(stderrors.New("conn refused")),
			expectedRetries: 1,
			expectedCode:    "DATABASE_INSERT_FAILED",
		},
		{
			name:          "retryable error on last attempt is thrown",
			jobRetries:    1,
			err:           NewDatabaseInsertFailedError(stderrors.New("conn refused")),
			expectedThrow: true,
			expectedCode:  "DATABASE_INSERT_FAILED",
		},
		{
			name:          "business error is thrown",
			jobRetries:    3,
			err:           NewInvalidPricingInputError("tier REJECTED"),
			expectedThrow: true,
			expectedCode:  "INVALID_PRICING_INPUT",
		},
		{
			name:          "plain error becomes internal error",
			jobRetries:    3,
			err:           stderrors.New("boom"),
			expectedThrow: true,
			expectedCode:  "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.Resolve(jobWithRetries(tt.jobRetries), tt.err)
			require.NotNil(t, res.BPMN)
			assert.Equal(t, tt.expectedThrow, res.Throw)
			assert.Equal(t, tt.expectedRetries, res.Retries)
			assert.Equal(t, tt.expectedCode, res.BPMN.Code)
		})
	}
}
