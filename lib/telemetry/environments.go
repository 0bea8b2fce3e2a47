package telemetry

import (
	"context"
	"easymap-backend/lib/configutil"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	testRecorderOnce sync.Once
	testRecorder     *tracetest.SpanRecorder
)

// SetupForTesting installs an in-memory tracer provider, it is only ever
// installed once per test binary since the otel global delegates to the
// first provider it is given.
//
// the returned recorder collects every span ended by any test in the
// binary, so assertions should filter by span name or attributes.
func SetupForTesting() *tracetest.SpanRecorder {
	testRecorderOnce.Do(func() {
		InitSlog(true)
		testRecorder = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(trace.NewTracerProvider(
			trace.WithSpanProcessor(testRecorder),
		))
	})
	return testRecorder
}

// searches up the filesystem from the cwd to find a file
// called telemetry.json5, once found it will then use it
// as a config to setup telemetry
func SetupFromEnv(ctx context.Context, serviceName string) error {
	config, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if err != nil {
		return err
	}
	return Setup(ctx, serviceName, config)
}
