// internal/workers/underwriting/compute-gross-up/handler.go
package computegrossup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "p2p-lending-workers/internal/common/errors"
	"p2p-lending-workers/internal/common/logger"
	"p2p-lending-workers/internal/common/metrics"
	"p2p-lending-workers/internal/common/money"
	"p2p-lending-workers/internal/pricing"
)

const (
	TaskType = "compute-gross-up"
)

var (
	ErrInvalidNetAmount = errors.New("INVALID_NET_AMOUNT")
	ErrRejectedTier     = errors.New("REJECTED_TIER")
	ErrUnknownTier      = errors.New("UNKNOWN_TIER")
	ErrInvalidPct       = errors.New("INVALID_ORIGINATION_PCT")
)

type Handler struct {
	config *Config
	policy pricing.Policy
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, policy pricing.Policy, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		policy: policy,
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
		h.failJob(client, job, apperrors.NewInvalidPricingInputError(err.Error()))
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	net := input.NetAmount
	override := input.VerifiedNetAmount != nil && *input.VerifiedNetAmount > 0
	if override {
		net = *input.VerifiedNetAmount
	}
	if !(net > 0) {
		return nil, fmt.Errorf("%w: net amount must be positive, got %v", ErrInvalidNetAmount, net)
	}

	pct, err := h.resolvePct(input)
	if err != nil {
		return nil, err
	}

	result := h.policy.GrossUp(net, pct)
	metrics.LoanGrossPrincipal.Observe(result.GrossPrincipal)

	h.logger.Info("gross-up computed", map[string]interface{}{
		"applicationId":  input.ApplicationID,
		"netAmount":      net,
		"grossPrincipal": money.String(result.GrossPrincipal),
		"minFeeApplied":  result.MinFeeApplied,
	})

	return &Output{
		NetAmount:      money.Round(result.NetAmount),
		OriginationPct: pct,
		OriginationFee: money.Round(result.OriginationFee),
		GrossPrincipal: money.Round(result.GrossPrincipal),
		MinFeeApplied:  result.MinFeeApplied,

		VerifiedOverrideApplied: override,
	}, nil
}

// resolvePct prefers an explicit percentage and falls back to the tier's table entry.
func (h *Handler) resolvePct(input *Input) (float64, error) {
	if input.OriginationPct != nil {
		if err := pricing.ValidateOriginationPct(*input.OriginationPct); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidPct, err)
		}
		return *input.OriginationPct, nil
	}

	tier, err := pricing.ParseRiskTier(input.RiskTier)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnknownTier, err)
	}
	if tier.IsRejected() {
		return 0, fmt.Errorf("%w: rejected applicants cannot be priced", ErrRejectedTier)
	}
	if !h.policy.Table.Has(tier) {
		return 0, fmt.Errorf("%w: tier %s has no pricing entry", ErrUnknownTier, tier)
	}
	return h.policy.Table.Lookup(tier).OriginationPct, nil
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
