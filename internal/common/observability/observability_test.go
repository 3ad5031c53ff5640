package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_RecordsAttributesAndErrors(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs, err := NewWithOptions(Options{
		ServiceName:   "p2p-lending-workers-test",
		Registerer:    prometheus.NewRegistry(),
		SpanProcessor: recorder,
	})
	require.NoError(t, err)
	t.Cleanup(obs.Shutdown)

	_, span := obs.StartSpan(context.Background(), "compute-gross-up", attribute.Int64("jobKey", 7))
	EndSpan(span, nil)

	_, failed := obs.StartSpan(context.Background(), "create-loan-record")
	EndSpan(failed, errors.New("DATABASE_INSERT_FAILED"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "compute-gross-up", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int64("jobKey", 7))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "DATABASE_INSERT_FAILED", spans[1].Status().Description)
}

func TestRecordJob_NilSafe(t *testing.T) {
	var obs *Observability
	assert.NotPanics(t, func() {
		obs.RecordJobProcessed(context.Background(), "classify-applicant-risk", "completed")
		obs.RecordJobDuration(context.Background(), "classify-applicant-risk", time.Second, "completed")
		obs.Shutdown()
	})
}

func TestNew_MetricsOnly(t *testing.T) {
	obs, err := NewWithOptions(Options{ServiceName: "metrics-only", Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	t.Cleanup(obs.Shutdown)

	assert.Nil(t, obs.tracerProvider)
	obs.RecordJobProcessed(context.Background(), "publish-loan-listing", "completed")

	_, span := obs.StartSpan(context.Background(), "noop")
	assert.NotNil(t, span)
	span.End()
}
