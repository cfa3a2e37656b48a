package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/hospinet/fedtrain/coordinator"
	"github.com/hospinet/fedtrain/node"
	"github.com/hospinet/fedtrain/pkg/ledger"
	"github.com/hospinet/fedtrain/round"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) ConfigureFit(ctx context.Context, roundNum int) (cfg round.FitConfig, picked []node.Node, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Int("number", roundNum),
				slog.Int("clients", len(picked)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Configure fit failed", args...)

			return
		}
		lm.logger.Info("Configure fit completed successfully", args...)
	}(time.Now())

	return lm.svc.ConfigureFit(ctx, roundNum)
}

func (lm *loggingMiddleware) AggregateFit(ctx context.Context, roundNum int, results []round.FitResult) (params *round.ParameterVector, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Int("number", roundNum),
				slog.Int("results", len(results)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Aggregate fit failed", args...)

			return
		}
		lm.logger.Info("Aggregate fit completed successfully", args...)
	}(time.Now())

	return lm.svc.AggregateFit(ctx, roundNum, results)
}

func (lm *loggingMiddleware) ConfigureEvaluate(ctx context.Context, roundNum int) (picked []node.Node, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Int("number", roundNum),
				slog.Int("clients", len(picked)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Configure evaluate failed", args...)

			return
		}
		lm.logger.Info("Configure evaluate completed successfully", args...)
	}(time.Now())

	return lm.svc.ConfigureEvaluate(ctx, roundNum)
}

func (lm *loggingMiddleware) AggregateEvaluate(ctx context.Context, roundNum int, results []round.EvaluateResult) (metrics map[string]float64, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Int("number", roundNum),
				slog.Int("results", len(results)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Aggregate evaluate failed", args...)

			return
		}
		lm.logger.Info("Aggregate evaluate completed successfully", args...)
	}(time.Now())

	return lm.svc.AggregateEvaluate(ctx, roundNum, results)
}

func (lm *loggingMiddleware) RunSession(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Training session failed", args...)

			return
		}
		lm.logger.Info("Training session completed successfully", args...)
	}(time.Now())

	return lm.svc.RunSession(ctx)
}

func (lm *loggingMiddleware) Status(ctx context.Context) (status round.Status, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("phase", status.Phase),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get status failed", args...)

			return
		}
		lm.logger.Info("Get status completed successfully", args...)
	}(time.Now())

	return lm.svc.Status(ctx)
}

func (lm *loggingMiddleware) PublicContext(ctx context.Context) (blob []byte, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("size", len(blob)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get public context failed", args...)

			return
		}
		lm.logger.Info("Get public context completed successfully", args...)
	}(time.Now())

	return lm.svc.PublicContext(ctx)
}

func (lm *loggingMiddleware) ListNodes(ctx context.Context, offset, limit uint64) (page node.Page, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List nodes failed", args...)

			return
		}
		lm.logger.Info("List nodes completed successfully", args...)
	}(time.Now())

	return lm.svc.ListNodes(ctx, offset, limit)
}

func (lm *loggingMiddleware) ListRoundMetrics(ctx context.Context, offset, limit uint64) (page coordinator.RoundMetricPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List round metrics failed", args...)

			return
		}
		lm.logger.Info("List round metrics completed successfully", args...)
	}(time.Now())

	return lm.svc.ListRoundMetrics(ctx, offset, limit)
}

func (lm *loggingMiddleware) ListModelVersions(ctx context.Context, offset, limit uint64) (page coordinator.ModelVersionPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List model versions failed", args...)

			return
		}
		lm.logger.Info("List model versions completed successfully", args...)
	}(time.Now())

	return lm.svc.ListModelVersions(ctx, offset, limit)
}

func (lm *loggingMiddleware) GetModelVersion(ctx context.Context, version int) (v ledger.ModelVersion, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("version", version),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get model version failed", args...)

			return
		}
		lm.logger.Info("Get model version completed successfully", args...)
	}(time.Now())

	return lm.svc.GetModelVersion(ctx, version)
}

func (lm *loggingMiddleware) Subscribe(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Subscribe failed", args...)

			return
		}
		lm.logger.Info("Subscribe completed successfully", args...)
	}(time.Now())

	return lm.svc.Subscribe(ctx)
}

func (lm *loggingMiddleware) Shutdown(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Shutdown failed", args...)

			return
		}
		lm.logger.Info("Shutdown completed successfully", args...)
	}(time.Now())

	return lm.svc.Shutdown(ctx)
}
