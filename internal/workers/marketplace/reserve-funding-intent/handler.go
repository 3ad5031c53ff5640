// internal/workers/marketplace/reserve-funding-intent/handler.go
package reservefundingintent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "p2p-lending-workers/internal/common/errors"
	"p2p-lending-workers/internal/common/logger"
	"p2p-lending-workers/internal/common/metrics"
	"p2p-lending-workers/internal/common/money"
)

const TaskType = "reserve-funding-intent"

var (
	ErrInvalidReservation = errors.New("INVALID_RESERVATION")
	ErrReservationExists  = errors.New("RESERVATION_EXISTS")
	ErrLimitExceeded      = errors.New("FUNDING_LIMIT_EXCEEDED")
	ErrCacheFailed        = errors.New("CACHE_OPERATION_FAILED")
)

// LimitExceededError reports how much of the loan was still open.
type LimitExceededError struct {
	LoanID    string
	Remaining float64
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("%s: loan %s has %s left", ErrLimitExceeded, e.LoanID, money.String(e.Remaining))
}

func (e *LimitExceededError) Unwrap() error {
	return ErrLimitExceeded
}

func ReservationKey(loanID, investorID string) string {
	return reservationPrefix(loanID) + investorID
}

func reservationPrefix(loanID string) string {
	return "funding:reservation:" + loanID + ":"
}

// ReservedTotalKey is a hash of investor id to reserved cents.
func ReservedTotalKey(loanID string) string {
	return "funding:reserved:" + loanID
}

const (
	claimExists    = 0
	claimOverLimit = -1
)

// reserveScript prunes holds whose reservation key has expired, claims the
// investor's key with SET NX and releases it again when the live total would
// pass the limit. Amounts are whole cents.
//
// KEYS[1] reservation key, KEYS[2] holds hash
// ARGV[1] reservation key prefix, ARGV[2] investor, ARGV[3] amount,
// ARGV[4] payload, ARGV[5] ttl ms, ARGV[6] limit
var reserveScript = redis.NewScript(`
local holds = redis.call('HGETALL', KEYS[2])
local live = 0
for i = 1, #holds, 2 do
  if redis.call('EXISTS', ARGV[1] .. holds[i]) == 1 then
    live = live + tonumber(holds[i + 1])
  else
    redis.call('HDEL', KEYS[2], holds[i])
  end
end

if not redis.call('SET', KEYS[1], ARGV[4], 'NX', 'PX', ARGV[5]) then
  return {0, live}
end

local amount = tonumber(ARGV[3])
if live + amount > tonumber(ARGV[6]) then
  redis.call('DEL', KEYS[1])
  return {-1, live}
end

redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
redis.call('PEXPIRE', KEYS[2], ARGV[5])
return {1, live + amount}
`)

type Handler struct {
	config *Config
	redis  *redis.Client
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, redis *redis.Client, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		redis:  redis,
		errors: apperrors.NewErrorHandler(scoped),
		logger: scoped,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, apperrors.NewParseError(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		metrics.FundingReservations.WithLabelValues(outcome(err)).Inc()
		h.failJob(client, job, toStandardError(&input, err))
		return
	}

	metrics.FundingReservations.WithLabelValues("reserved").Inc()
	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if err := validate(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	res := reservation{
		ReservationID: uuid.New().String(),
		InvestorID:    input.InvestorID,
		Amount:        money.Round(input.Amount),
		CreatedAt:     now.Format(time.RFC3339),
	}
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheFailed, err)
	}

	amountCents := toCents(res.Amount)
	limitCents := toCents(input.GrossPrincipal)

	reply, err := reserveScript.Run(ctx, h.redis,
		[]string{ReservationKey(input.LoanID, input.InvestorID), ReservedTotalKey(input.LoanID)},
		reservationPrefix(input.LoanID),
		input.InvestorID,
		strconv.FormatInt(amountCents, 10),
		string(payload),
		strconv.FormatInt(h.config.ReservationTTL.Milliseconds(), 10),
		strconv.FormatInt(limitCents, 10),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: reserve: %v", ErrCacheFailed, err)
	}
	if len(reply) != 2 {
		return nil, fmt.Errorf("%w: unexpected reply %v", ErrCacheFailed, reply)
	}

	switch reply[0] {
	case claimExists:
		return nil, fmt.Errorf("%w: investor %s already holds a reservation on loan %s",
			ErrReservationExists, input.InvestorID, input.LoanID)
	case claimOverLimit:
		return nil, &LimitExceededError{
			LoanID:    input.LoanID,
			Remaining: fromCents(limitCents - reply[1]),
		}
	}

	total := fromCents(reply[1])
	remaining := fromCents(limitCents - reply[1])
	if remaining < 0 {
		remaining = 0
	}

	h.logger.Info("funding reserved", map[string]interface{}{
		"loanId":        input.LoanID,
		"investorId":    input.InvestorID,
		"reservationId": res.ReservationID,
		"amount":        money.String(res.Amount),
		"reservedTotal": money.String(total),
	})

	return &Output{
		ReservationID: res.ReservationID,
		ExpiresAt:     now.Add(h.config.ReservationTTL).Format(time.RFC3339),
		ReservedTotal: total,
		Remaining:     remaining,
		FullyReserved: remaining == 0,
	}, nil
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fromCents(cents int64) float64 {
	return float64(cents) / 100
}

func validate(input *Input) error {
	switch {
	case strings.TrimSpace(input.LoanID) == "":
		return fmt.Errorf("%w: loanId is required", ErrInvalidReservation)
	case strings.TrimSpace(input.InvestorID) == "":
		return fmt.Errorf("%w: investorId is required", ErrInvalidReservation)
	case !(input.Amount > 0):
		return fmt.Errorf("%w: amount must be positive", ErrInvalidReservation)
	case !(input.GrossPrincipal > 0):
		return fmt.Errorf("%w: grossPrincipal must be positive", ErrInvalidReservation)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrReservationExists):
		return "duplicate"
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, ErrInvalidReservation):
		return "invalid"
	default:
		return "error"
	}
}

func toStandardError(input *Input, err error) *apperrors.StandardError {
	var limit *LimitExceededError
	switch {
	case errors.As(err, &limit):
		return apperrors.NewFundingLimitExceededError(limit.LoanID, limit.Remaining)
	case errors.Is(err, ErrReservationExists):
		return apperrors.NewReservationExistsError(input.LoanID, input.InvestorID)
	case errors.Is(err, ErrCacheFailed):
		return apperrors.Wrap(apperrors.ErrCodeCacheOperationFailed, err)
	case errors.Is(err, ErrInvalidReservation):
		return apperrors.New(apperrors.ErrCodeInvalidPricingInput, err.Error())
	default:
		return apperrors.Wrap(apperrors.ErrCodeInternalError, err)
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, stdErr *apperrors.StandardError) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
