// internal/common/errors/handler.go
package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler reports a failed job to the broker, either as a retryable failure
// or as a BPMN error the process can catch.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Resolution is what the handler decided to do with a failed job.
type Resolution struct {
	Throw   bool
	Retries int32
	BPMN    *BPMNError
}

// Resolve normalizes err and picks retry or throw. Retries count down from the
// job's remaining retries and never exceed the code's budget.
func (h *ErrorHandler) Resolve(job entities.Job, err error) Resolution {
	stdErr := Wrap(ErrCodeInternalError, err)
	bpmnErr := ConvertToBPMNError(stdErr)

	remaining := job.Retries - 1
	budget := int32(GetRetryCount(stdErr.Code))
	if !stdErr.Retryable || budget == 0 || remaining <= 0 {
		return Resolution{Throw: true, BPMN: bpmnErr}
	}
	if remaining > budget {
		remaining = budget
	}
	return Resolution{Retries: remaining, BPMN: bpmnErr}
}

// HandleJobError handles any error in a worker job
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) Resolution {
	res := h.Resolve(job, err)
	h.logError(job, res)

	if res.Throw {
		h.throwBPMNError(ctx, client, job, res.BPMN)
	} else {
		h.failJobWithRetries(ctx, client, job, res.BPMN, res.Retries)
	}
	return res
}

func (h *ErrorHandler) failJobWithRetries(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError, retries int32) {
	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(retries).
		ErrorMessage(bpmnErr.Message)

	if varsJSON, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if withVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
			if _, err := withVars.Send(ctx); err != nil {
				h.logSendFailure(job, "fail", err)
			}
			return
		}
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logSendFailure(job, "fail", err)
	}
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	if varsJSON, err := json.Marshal(bpmnErr.ToErrorVariables()); err == nil {
		if withVars, err := cmd.VariablesFromString(string(varsJSON)); err == nil {
			if _, err := withVars.Send(ctx); err != nil {
				h.logSendFailure(job, "throw", err)
			}
			return
		}
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logSendFailure(job, "throw", err)
	}
}

func (h *ErrorHandler) logError(job entities.Job, res Resolution) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        res.BPMN.ErrorVariables["originalErrorCode"],
		"bpmnErrorCode":    res.BPMN.Code,
		"message":          res.BPMN.Message,
		"details":          res.BPMN.Details,
		"retryable":        res.BPMN.Retryable,
		"thrown":           res.Throw,
		"retries":          res.Retries,
		"errorCategory":    GetErrorCategory(ErrorCode(res.BPMN.Code)),
		"workflowInstance": job.ProcessInstanceKey,
	})
}

func (h *ErrorHandler) logSendFailure(job entities.Job, command string, err error) {
	h.logger.Error("failed to report job failure", map[string]interface{}{
		"jobKey":  job.Key,
		"command": command,
		"error":   err,
	})
}
