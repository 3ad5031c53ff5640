// internal/workers/underwriting/load-applicant-snapshot/handler.go
package loadapplicantsnapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"

	apperrors "p2p-lending-workers/internal/common/errors"
	"p2p-lending-workers/internal/common/logger"
	"p2p-lending-workers/internal/common/metrics"
)

const (
	TaskType = "load-applicant-snapshot"

	cacheKeyPrefix = "applicant:snapshot:"
)

var (
	ErrMissingApplicationID = errors.New("MISSING_APPLICATION_ID")
	ErrApplicantNotFound    = errors.New("APPLICANT_NOT_FOUND")
	ErrQueryFailed          = errors.New("DATABASE_QUERY_FAILED")
	ErrQueryTimeout         = errors.New("QUERY_TIMEOUT")
)

const snapshotQuery = `SELECT monthly_income, card_balance, card_rate_pct, tenure_months
	FROM applicant_profiles WHERE application_id = $1`

type Handler struct {
	config *Config
	db     *sql.DB
	redis  *redis.Client
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, redis *redis.Client, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		db:     db,
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
		h.failJob(client, job, toStandardError(input.ApplicationID, err))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.ApplicationID) == "" {
		return nil, ErrMissingApplicationID
	}

	cacheKey := cacheKeyPrefix + input.ApplicationID
	if snap, ok := h.readCache(ctx, cacheKey); ok {
		return &Output{ApplicationID: input.ApplicationID, Snapshot: *snap, SnapshotSource: SourceCache}, nil
	}

	snap, err := h.querySnapshot(ctx, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	h.writeCache(ctx, cacheKey, snap)

	h.logger.Info("applicant snapshot loaded", map[string]interface{}{
		"applicationId": input.ApplicationID,
		"source":        SourceDatabase,
	})

	return &Output{ApplicationID: input.ApplicationID, Snapshot: *snap, SnapshotSource: SourceDatabase}, nil
}

func (h *Handler) querySnapshot(ctx context.Context, applicationID string) (*Snapshot, error) {
	var income, balance, rate, tenure sql.NullFloat64
	err := h.db.QueryRowContext(ctx, snapshotQuery, applicationID).Scan(&income, &balance, &rate, &tenure)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("%w: %s", ErrApplicantNotFound, applicationID)
		case errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %v", ErrQueryTimeout, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
		}
	}

	return &Snapshot{
		MonthlyIncome: nullable(income),
		CardBalance:   nullable(balance),
		CardRatePct:   nullable(rate),
		TenureMonths:  nullable(tenure),
	}, nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// readCache treats any Redis problem as a miss.
func (h *Handler) readCache(ctx context.Context, key string) (*Snapshot, bool) {
	if h.redis == nil {
		return nil, false
	}
	val, err := h.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			h.logger.Warn("snapshot cache read failed", map[string]interface{}{
				"key":   key,
				"error": err,
			})
		}
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		h.logger.Warn("discarding unreadable cached snapshot", map[string]interface{}{
			"key":   key,
			"error": err,
		})
		return nil, false
	}
	return &snap, true
}

func (h *Handler) writeCache(ctx context.Context, key string, snap *Snapshot) {
	if h.redis == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := h.redis.Set(ctx, key, data, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("snapshot cache write failed", map[string]interface{}{
			"key":   key,
			"error": err,
		})
	}
}

func toStandardError(applicationID string, err error) *apperrors.StandardError {
	switch {
	case errors.Is(err, ErrApplicantNotFound):
		return apperrors.NewApplicantNotFoundError(applicationID)
	case errors.Is(err, ErrQueryTimeout):
		return apperrors.New(apperrors.ErrCodeQueryTimeout, err.Error())
	case errors.Is(err, ErrQueryFailed):
		return apperrors.NewDatabaseQueryFailedError(err)
	case errors.Is(err, ErrMissingApplicationID):
		return apperrors.New(apperrors.ErrCodeLoanApplicationInvalid, "applicationId is required")
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
