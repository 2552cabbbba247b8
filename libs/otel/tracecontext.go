package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext is a W3C trace context flattened to strings, so it can be stored next to an
// outbox row and resumed by the relay that publishes it later.
type TraceContext struct {
	Parent string // traceparent
	State  string // tracestate
}

// CaptureTraceContext returns the trace context of the span active in ctx, if any.
func CaptureTraceContext(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Parent: carrier["traceparent"], State: carrier["tracestate"]}
}

func (tc TraceContext) IsZero() bool {
	return tc.Parent == "" && tc.State == ""
}

// Resume returns ctx carrying tc as its remote parent. A zero tc returns ctx unchanged.
func (tc TraceContext) Resume(ctx context.Context) context.Context {
	if tc.IsZero() {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": tc.Parent}
	if tc.State != "" {
		carrier["tracestate"] = tc.State
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
