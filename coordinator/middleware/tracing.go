package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hospinet/fedtrain/coordinator"
	"github.com/hospinet/fedtrain/node"
	"github.com/hospinet/fedtrain/pkg/ledger"
	"github.com/hospinet/fedtrain/round"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) ConfigureFit(ctx context.Context, roundNum int) (round.FitConfig, []node.Node, error) {
	ctx, span := tm.tracer.Start(ctx, "configure-fit", trace.WithAttributes(
		attribute.Int("round", roundNum),
	))
	defer span.End()

	return tm.svc.ConfigureFit(ctx, roundNum)
}

func (tm *tracing) AggregateFit(ctx context.Context, roundNum int, results []round.FitResult) (*round.ParameterVector, error) {
	ctx, span := tm.tracer.Start(ctx, "aggregate-fit", trace.WithAttributes(
		attribute.Int("round", roundNum),
		attribute.Int("results", len(results)),
	))
	defer span.End()

	return tm.svc.AggregateFit(ctx, roundNum, results)
}

func (tm *tracing) ConfigureEvaluate(ctx context.Context, roundNum int) ([]node.Node, error) {
	ctx, span := tm.tracer.Start(ctx, "configure-evaluate", trace.WithAttributes(
		attribute.Int("round", roundNum),
	))
	defer span.End()

	return tm.svc.ConfigureEvaluate(ctx, roundNum)
}

func (tm *tracing) AggregateEvaluate(ctx context.Context, roundNum int, results []round.EvaluateResult) (map[string]float64, error) {
	ctx, span := tm.tracer.Start(ctx, "aggregate-evaluate", trace.WithAttributes(
		attribute.Int("round", roundNum),
		attribute.Int("results", len(results)),
	))
	defer span.End()

	return tm.svc.AggregateEvaluate(ctx, roundNum, results)
}

func (tm *tracing) RunSession(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "run-session")
	defer span.End()

	return tm.svc.RunSession(ctx)
}

func (tm *tracing) Status(ctx context.Context) (round.Status, error) {
	ctx, span := tm.tracer.Start(ctx, "get-status")
	defer span.End()

	return tm.svc.Status(ctx)
}

func (tm *tracing) PublicContext(ctx context.Context) ([]byte, error) {
	ctx, span := tm.tracer.Start(ctx, "get-public-context")
	defer span.End()

	return tm.svc.PublicContext(ctx)
}

func (tm *tracing) ListNodes(ctx context.Context, offset, limit uint64) (node.Page, error) {
	ctx, span := tm.tracer.Start(ctx, "list-nodes", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListNodes(ctx, offset, limit)
}

func (tm *tracing) ListRoundMetrics(ctx context.Context, offset, limit uint64) (coordinator.RoundMetricPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-round-metrics", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListRoundMetrics(ctx, offset, limit)
}

func (tm *tracing) ListModelVersions(ctx context.Context, offset, limit uint64) (coordinator.ModelVersionPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-model-versions", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListModelVersions(ctx, offset, limit)
}

func (tm *tracing) GetModelVersion(ctx context.Context, version int) (ledger.ModelVersion, error) {
	ctx, span := tm.tracer.Start(ctx, "get-model-version", trace.WithAttributes(
		attribute.Int("version", version),
	))
	defer span.End()

	return tm.svc.GetModelVersion(ctx, version)
}

func (tm *tracing) Subscribe(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "subscribe")
	defer span.End()

	return tm.svc.Subscribe(ctx)
}

func (tm *tracing) Shutdown(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "shutdown")
	defer span.End()

	return tm.svc.Shutdown(ctx)
}
