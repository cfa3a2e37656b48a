package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/hospinet/fedtrain/node"
	"github.com/hospinet/fedtrain/pkg/aggregate"
	"github.com/hospinet/fedtrain/pkg/sampler"
	"github.com/hospinet/fedtrain/round"
)

// RunSession drives the full training session. Rounds are strictly
// ordered: a round only starts once the previous one completed, and an
// abandoned round carries the global model forward unchanged.
func (svc *service) RunSession(ctx context.Context) error {
	for r := 1; r <= svc.cfg.Rounds; r++ {
		cfg, picked, err := svc.awaitFitQuorum(ctx, r)
		if err != nil {
			return err
		}

		svc.mu.RLock()
		global := svc.global
		svc.mu.RUnlock()

		task := round.FitTask{Round: r, Config: cfg, Params: global, Clients: clientIDs(picked)}
		if err := svc.publishCBOR(ctx, svc.topic("rounds/fit/start"), task); err != nil {
			return err
		}
		svc.logger.InfoContext(ctx, "fit round started",
			slog.Int("round", r), slog.Int("clients", len(picked)))

		results := svc.collectFit(ctx, r, len(picked))
		svc.setPhase(round.FitCollected)

		next, err := svc.AggregateFit(ctx, r, results)
		if err != nil {
			return err
		}
		if next == nil {
			svc.logger.WarnContext(ctx, "round abandoned, global model unchanged", slog.Int("round", r))
			svc.setPhase(round.RoundComplete)

			continue
		}

		evalNodes, err := svc.ConfigureEvaluate(ctx, r)
		if err != nil {
			return err
		}

		evalTask := round.EvaluateTask{Round: r, Params: *next, Clients: clientIDs(evalNodes)}
		if err := svc.publishCBOR(ctx, svc.topic("rounds/evaluate/start"), evalTask); err != nil {
			return err
		}

		evals := svc.collectEvaluate(ctx, r, len(evalNodes))
		svc.setPhase(round.EvaluateCollected)

		metrics, err := svc.AggregateEvaluate(ctx, r, evals)
		switch {
		case errors.Is(err, aggregate.ErrNoExamples):
			svc.logger.WarnContext(ctx, "no evaluation results for round", slog.Int("round", r))
			metrics = map[string]float64{}
		case err != nil:
			return err
		}

		if r == svc.cfg.Rounds {
			if err := svc.finalize(ctx, r, metrics); err != nil {
				// The trained model still lives in memory; losing the
				// ledger row is reported, not fatal.
				svc.logger.ErrorContext(ctx, "failed to finalize session",
					slog.Int("round", r), slog.Any("error", err))
			}
		}
	}

	return nil
}

// awaitFitQuorum retries participant sampling until enough nodes are
// alive. Too few clients is a wait-and-see condition, never a crash.
func (svc *service) awaitFitQuorum(ctx context.Context, roundNum int) (round.FitConfig, []node.Node, error) {
	for {
		cfg, picked, err := svc.ConfigureFit(ctx, roundNum)
		switch {
		case err == nil:
			return cfg, picked, nil
		case errors.Is(err, sampler.ErrNoNodes),
			errors.Is(err, sampler.ErrDeadNodes),
			errors.Is(err, sampler.ErrBelowMinimum):
			svc.logger.InfoContext(ctx, "waiting for nodes to join",
				slog.Int("round", roundNum), slog.Any("cause", err))
		default:
			return round.FitConfig{}, nil, err
		}

		select {
		case <-ctx.Done():
			return round.FitConfig{}, nil, ctx.Err()
		case <-time.After(svc.cfg.WaitInterval):
		}
	}
}

func (svc *service) publishCBOR(ctx context.Context, topic string, msg any) error {
	payload, err := cbor.Marshal(msg)
	if err != nil {
		return err
	}

	return svc.pubsub.Publish(ctx, topic, payload)
}

func clientIDs(nodes []node.Node) []string {
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}

	return ids
}

func (svc *service) collectFit(ctx context.Context, roundNum, expected int) []round.FitResult {
	deadline := time.NewTimer(svc.cfg.QuorumTimeout)
	defer deadline.Stop()

	results := make([]round.FitResult, 0, expected)
	seen := make(map[string]bool, expected)
	for {
		select {
		case res := <-svc.fitCh:
			if res.Round != roundNum {
				svc.logger.WarnContext(ctx, "discarding stale fit result",
					slog.String("node_id", res.NodeID), slog.Int("round", res.Round))

				continue
			}
			// One update per node per round; a repeat would double the
			// sender's example-count weight.
			if seen[res.NodeID] {
				svc.logger.WarnContext(ctx, "discarding duplicate fit result",
					slog.String("node_id", res.NodeID), slog.Int("round", roundNum))

				continue
			}
			seen[res.NodeID] = true
			results = append(results, res)
			if len(results) >= expected {
				return results
			}
		case <-deadline.C:
			svc.logger.WarnContext(ctx, "quorum timeout, proceeding with partial results",
				slog.Int("round", roundNum),
				slog.Int("received", len(results)),
				slog.Int("expected", expected))

			return results
		case <-ctx.Done():
			return results
		}
	}
}

func (svc *service) collectEvaluate(ctx context.Context, roundNum, expected int) []round.EvaluateResult {
	deadline := time.NewTimer(svc.cfg.QuorumTimeout)
	defer deadline.Stop()

	results := make([]round.EvaluateResult, 0, expected)
	seen := make(map[string]bool, expected)
	for {
		select {
		case res := <-svc.evalCh:
			if res.Round != roundNum {
				svc.logger.WarnContext(ctx, "discarding stale evaluate result",
					slog.String("node_id", res.NodeID), slog.Int("round", res.Round))

				continue
			}
			if seen[res.NodeID] {
				svc.logger.WarnContext(ctx, "discarding duplicate evaluate result",
					slog.String("node_id", res.NodeID), slog.Int("round", roundNum))

				continue
			}
			seen[res.NodeID] = true
			results = append(results, res)
			if len(results) >= expected {
				return results
			}
		case <-deadline.C:
			svc.logger.WarnContext(ctx, "evaluate timeout, proceeding with partial results",
				slog.Int("round", roundNum),
				slog.Int("received", len(results)),
				slog.Int("expected", expected))

			return results
		case <-ctx.Done():
			return results
		}
	}
}
