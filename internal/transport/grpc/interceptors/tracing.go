package interceptors

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/stats"
)

// TracingOptions customises how gRPC traffic is traced.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	Additional     []otelgrpc.Option
}

// ServerTracing carries the OpenTelemetry stats handler that spans every
// inbound RPC, including the health probes.
type ServerTracing struct {
	handler stats.Handler
}

// NewServerTracing builds a stats handler with the supplied options.
func NewServerTracing(opts TracingOptions) *ServerTracing {
	options := make([]otelgrpc.Option, 0, len(opts.Additional)+2)
	if opts.TracerProvider != nil {
		options = append(options, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgrpc.WithPropagators(opts.Propagators))
	}
	options = append(options, opts.Additional...)

	return &ServerTracing{handler: otelgrpc.NewServerHandler(options...)}
}

// Handler returns the stats handler to register on the server.
func (t *ServerTracing) Handler() stats.Handler {
	if t == nil {
		return nil
	}
	return t.handler
}
