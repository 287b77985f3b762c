package telemetry

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	// Global tracer for the application
	Tracer trace.Tracer

	// Global meter for custom metrics
	Meter metric.Meter

	// Custom metrics
	TasksQueued       metric.Int64Counter
	TasksAssigned     metric.Int64Counter
	TasksCompleted    metric.Int64Counter
	TasksFailed       metric.Int64Counter
	ActiveAssignments metric.Int64UpDownCounter
	DispatchLatency   metric.Float64Histogram
	TaskExecutionTime metric.Float64Histogram
)

// InitTelemetry initializes OpenTelemetry tracing and metrics
func InitTelemetry(ctx context.Context, serviceName, otelEndpoint string) (func(context.Context) error, error) {
	// Create resource with service information
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
			attribute.String("environment", "development"),
		),
	)
	if err != nil {
		return nil, err
	}

	// Create OTLP trace exporter
	traceExporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(otelEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	// Create trace provider
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	// Set global trace provider and propagator
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	Tracer = otel.Tracer(serviceName)
	Meter = otel.Meter(serviceName)

	if err := initMetrics(); err != nil {
		return nil, err
	}

	log.Printf("[Telemetry] Initialized with endpoint %s", otelEndpoint)

	// Return shutdown function
	return func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return traceProvider.Shutdown(shutdownCtx)
	}, nil
}

// initMetrics creates all custom metrics
func initMetrics() error {
	var err error

	TasksQueued, err = Meter.Int64Counter(
		"agency.tasks.queued",
		metric.WithDescription("Number of tasks enqueued"),
	)
	if err != nil {
		return err
	}

	TasksAssigned, err = Meter.Int64Counter(
		"agency.tasks.assigned",
		metric.WithDescription("Number of tasks assigned to agents"),
	)
	if err != nil {
		return err
	}

	TasksCompleted, err = Meter.Int64Counter(
		"agency.tasks.completed",
		metric.WithDescription("Number of tasks completed successfully"),
	)
	if err != nil {
		return err
	}

	TasksFailed, err = Meter.Int64Counter(
		"agency.tasks.failed",
		metric.WithDescription("Number of tasks that failed"),
	)
	if err != nil {
		return err
	}

	ActiveAssignments, err = Meter.Int64UpDownCounter(
		"agency.assignments.active",
		metric.WithDescription("Number of assignments currently in flight"),
	)
	if err != nil {
		return err
	}

	DispatchLatency, err = Meter.Float64Histogram(
		"agency.dispatch.latency",
		metric.WithDescription("Distribution pass latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	TaskExecutionTime, err = Meter.Float64Histogram(
		"agency.task.execution_time",
		metric.WithDescription("Task execution time in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Recording helpers. The instruments are nil until InitTelemetry runs, and
// telemetry is optional in the daemon, so callers go through these.

func RecordTaskQueued(ctx context.Context) {
	if TasksQueued != nil {
		TasksQueued.Add(ctx, 1)
	}
}

func RecordTaskAssigned(ctx context.Context) {
	if TasksAssigned != nil {
		TasksAssigned.Add(ctx, 1)
	}
	if ActiveAssignments != nil {
		ActiveAssignments.Add(ctx, 1)
	}
}

// RecordTaskFinished records a terminal task outcome and releases the
// in-flight assignment.
func RecordTaskFinished(ctx context.Context, success bool, duration time.Duration) {
	if success {
		if TasksCompleted != nil {
			TasksCompleted.Add(ctx, 1)
		}
	} else {
		if TasksFailed != nil {
			TasksFailed.Add(ctx, 1)
		}
	}
	if ActiveAssignments != nil {
		ActiveAssignments.Add(ctx, -1)
	}
	if TaskExecutionTime != nil {
		TaskExecutionTime.Record(ctx, float64(duration.Milliseconds()))
	}
}

func RecordDispatchLatency(ctx context.Context, duration time.Duration) {
	if DispatchLatency != nil {
		DispatchLatency.Record(ctx, float64(duration.Milliseconds()))
	}
}
