package middleware

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"

	"github.com/hospinet/fedtrain/coordinator"
	"github.com/hospinet/fedtrain/node"
	"github.com/hospinet/fedtrain/pkg/ledger"
	"github.com/hospinet/fedtrain/round"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) instrument(method string) func() {
	begin := time.Now()

	return func() {
		mm.counter.With("method", method).Add(1)
		mm.latency.With("method", method).Observe(time.Since(begin).Seconds())
	}
}

func (mm *metricsMiddleware) ConfigureFit(ctx context.Context, roundNum int) (round.FitConfig, []node.Node, error) {
	defer mm.instrument("configure-fit")()

	return mm.svc.ConfigureFit(ctx, roundNum)
}

func (mm *metricsMiddleware) AggregateFit(ctx context.Context, roundNum int, results []round.FitResult) (*round.ParameterVector, error) {
	defer mm.instrument("aggregate-fit")()

	return mm.svc.AggregateFit(ctx, roundNum, results)
}

func (mm *metricsMiddleware) ConfigureEvaluate(ctx context.Context, roundNum int) ([]node.Node, error) {
	defer mm.instrument("configure-evaluate")()

	return mm.svc.ConfigureEvaluate(ctx, roundNum)
}

func (mm *metricsMiddleware) AggregateEvaluate(ctx context.Context, roundNum int, results []round.EvaluateResult) (map[string]float64, error) {
	defer mm.instrument("aggregate-evaluate")()

	return mm.svc.AggregateEvaluate(ctx, roundNum, results)
}

func (mm *metricsMiddleware) RunSession(ctx context.Context) error {
	defer mm.instrument("run-session")()

	return mm.svc.RunSession(ctx)
}

func (mm *metricsMiddleware) Status(ctx context.Context) (round.Status, error) {
	defer mm.instrument("get-status")()

	return mm.svc.Status(ctx)
}

func (mm *metricsMiddleware) PublicContext(ctx context.Context) ([]byte, error) {
	defer mm.instrument("get-public-context")()

	return mm.svc.PublicContext(ctx)
}

func (mm *metricsMiddleware) ListNodes(ctx context.Context, offset, limit uint64) (node.Page, error) {
	defer mm.instrument("list-nodes")()

	return mm.svc.ListNodes(ctx, offset, limit)
}

func (mm *metricsMiddleware) ListRoundMetrics(ctx context.Context, offset, limit uint64) (coordinator.RoundMetricPage, error) {
	defer mm.instrument("list-round-metrics")()

	return mm.svc.ListRoundMetrics(ctx, offset, limit)
}

func (mm *metricsMiddleware) ListModelVersions(ctx context.Context, offset, limit uint64) (coordinator.ModelVersionPage, error) {
	defer mm.instrument("list-model-versions")()

	return mm.svc.ListModelVersions(ctx, offset, limit)
}

func (mm *metricsMiddleware) GetModelVersion(ctx context.Context, version int) (ledger.ModelVersion, error) {
	defer mm.instrument("get-model-version")()

	return mm.svc.GetModelVersion(ctx, version)
}

func (mm *metricsMiddleware) Subscribe(ctx context.Context) error {
	defer mm.instrument("subscribe")()

	return mm.svc.Subscribe(ctx)
}

func (mm *metricsMiddleware) Shutdown(ctx context.Context) error {
	defer mm.instrument("shutdown")()

	return mm.svc.Shutdown(ctx)
}
