// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"

	"p2p-lending-workers/internal/common/config"
	"p2p-lending-workers/internal/common/errors"
	"p2p-lending-workers/internal/common/logger"
	"p2p-lending-workers/internal/common/metrics"
	"p2p-lending-workers/internal/common/observability"
)

// Instrumentation wraps job handlers with the active gauge, duration histogram,
// a span per job and panic recovery.
type Instrumentation struct {
	Logger logger.Logger
	Errors *errors.ErrorHandler
	Obs    *observability.Observability
}

func NewInstrumentation(log logger.Logger, obs *observability.Observability) *Instrumentation {
	return &Instrumentation{
		Logger: log,
		Errors: errors.NewErrorHandler(log),
		Obs:    obs,
	}
}

// Instrument returns handler wrapped for taskType. A panicking handler fails the
// job with INTERNAL_ERROR and the worker keeps polling.
func (i *Instrumentation) Instrument(taskType string, handler worker.JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		defer metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()

		ctx, span := i.Obs.StartSpan(context.Background(), taskType,
			attribute.Int64("job.key", job.Key),
			attribute.Int64("process.instance.key", job.ProcessInstanceKey),
			attribute.Int64("job.retries", int64(job.Retries)),
		)

		status := "handled"
		var jobErr error
		defer func() {
			if r := recover(); r != nil {
				status = "panicked"
				jobErr = fmt.Errorf("handler panic: %v", r)
				metrics.WorkerJobsFailed.WithLabelValues(taskType, string(errors.ErrCodeInternalError)).Inc()
				i.Logger.Error("job handler panicked", map[string]interface{}{
					"taskType": taskType,
					"jobKey":   job.Key,
					"panic":    fmt.Sprint(r),
					"stack":    string(debug.Stack()),
				})
				i.Errors.HandleJobError(ctx, client, job, errors.NewInternalError(jobErr.Error()))
			}

			elapsed := time.Since(start)
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
			i.Obs.RecordJobProcessed(ctx, taskType, status)
			i.Obs.RecordJobDuration(ctx, taskType, elapsed, status)
			observability.EndSpan(span, jobErr)
		}()

		handler(client, job)
	}
}

// Start opens a job worker for taskType with the instrumented handler.
// It returns nil when the worker is disabled.
func (i *Instrumentation) Start(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler worker.JobHandler) worker.JobWorker {
	if !wcfg.Enabled {
		i.Logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(i.Instrument(taskType, handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	i.Logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return jobWorker
}
