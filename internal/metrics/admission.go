package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Decision labels the terminal outcome of an admission check.
type Decision string

const (
	// DecisionForwarded counts requests that passed every check.
	DecisionForwarded Decision = "forwarded"

	// DecisionRateLimited counts requests rejected by the sliding window.
	DecisionRateLimited Decision = "rate_limited"

	// DecisionUnauthenticated counts requests with a missing or invalid credential.
	DecisionUnauthenticated Decision = "unauthenticated"

	// DecisionForbidden counts authenticated requests with an insufficient role.
	DecisionForbidden Decision = "forbidden"
)

// AdmissionRecorder records admission-control decision counts.
// A nil recorder is valid and records nothing, so tests can omit it.
type AdmissionRecorder struct {
	decisionCounter metric.Int64Counter
}

// NewAdmissionRecorder creates an AdmissionRecorder using the provided meter provider.
// Returns error if the counter cannot be initialized.
func NewAdmissionRecorder(meterProvider metric.MeterProvider, namespace string) (*AdmissionRecorder, error) {
	meter := meterProvider.Meter(namespace)

	decisionCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_admission_decisions_total", namespace),
		metric.WithDescription("Total number of admission-control decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision counter: %w", err)
	}

	return &AdmissionRecorder{decisionCounter: decisionCounter}, nil
}

// Record increments the decision counter with the decision label.
func (r *AdmissionRecorder) Record(ctx context.Context, decision Decision) {
	if r == nil || r.decisionCounter == nil {
		return
	}
	r.decisionCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("decision", string(decision))),
	)
}
