package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hospinet/fedtrain/node"
	"github.com/hospinet/fedtrain/pkg/aggregate"
	pkgerrors "github.com/hospinet/fedtrain/pkg/errors"
	"github.com/hospinet/fedtrain/pkg/hecrypt"
	"github.com/hospinet/fedtrain/pkg/ledger"
	"github.com/hospinet/fedtrain/pkg/mqtt"
	"github.com/hospinet/fedtrain/pkg/outlier"
	"github.com/hospinet/fedtrain/pkg/sampler"
	"github.com/hospinet/fedtrain/round"
)

const resultBuffer = 128

type service struct {
	cfg          SessionConfig
	crypto       *hecrypt.Context
	ledger       ledger.Store
	sampler      sampler.Sampler
	detector     *outlier.Detector
	pubsub       mqtt.PubSub
	federationID string
	logger       *slog.Logger

	publicCtx []byte

	mu      sync.RWMutex
	nodes   map[string]node.Node
	current *round.Round
	global  round.ParameterVector

	fitCh  chan round.FitResult
	evalCh chan round.EvaluateResult
}

// NewService builds the coordinator. The crypto context and the ledger
// are explicit dependencies held for the lifetime of the session; the
// initial vector is the starting global model every node trains from.
func NewService(cfg SessionConfig, crypto *hecrypt.Context, store ledger.Store, smp sampler.Sampler, pubsub mqtt.PubSub, federationID string, initial round.ParameterVector, logger *slog.Logger) (Service, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	if initial.Type != round.TensorPlaintext {
		return nil, round.ErrManifestMismatch
	}
	publicCtx, err := crypto.Public().MarshalBinary()
	if err != nil {
		return nil, err
	}

	return &service{
		cfg:          cfg,
		crypto:       crypto,
		ledger:       store,
		sampler:      smp,
		detector:     outlier.NewDetector(cfg.OutlierZScore),
		pubsub:       pubsub,
		federationID: federationID,
		logger:       logger,
		publicCtx:    publicCtx,
		nodes:        make(map[string]node.Node),
		global:       initial,
		fitCh:        make(chan round.FitResult, resultBuffer),
		evalCh:       make(chan round.EvaluateResult, resultBuffer),
	}, nil
}

func (svc *service) ConfigureFit(ctx context.Context, roundNum int) (round.FitConfig, []node.Node, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	registry := make([]node.Node, 0, len(svc.nodes))
	for _, n := range svc.nodes {
		registry = append(registry, n)
	}

	picked, err := svc.sampler.Sample(uint64(roundNum), registry)
	if err != nil {
		return round.FitConfig{}, nil, err
	}

	clients := make([]string, 0, len(picked))
	for _, n := range picked {
		clients = append(clients, n.ID)
	}

	svc.current = &round.Round{
		Number:      roundNum,
		TotalRounds: svc.cfg.Rounds,
		Phase:       round.FitConfigured,
		Clients:     clients,
		StartedAt:   time.Now(),
	}

	return round.FitConfig{Epochs: svc.cfg.Epochs, ServerRound: roundNum}, picked, nil
}

// AggregateFit is the heart of the protocol. Every usable update stays
// encrypted end to end: ciphertexts are weighted by example count,
// summed, divided by the total while still encrypted, and only the
// aggregate is ever decrypted.
func (svc *service) AggregateFit(ctx context.Context, roundNum int, results []round.FitResult) (*round.ParameterVector, error) {
	svc.setPhase(round.Aggregating)

	usable := make([]round.FitResult, 0, len(results))
	for _, res := range results {
		if !res.OK() {
			svc.logger.WarnContext(ctx, "node reported a failed fit",
				slog.String("node_id", res.NodeID),
				slog.Int("round", roundNum),
				slog.String("reason", res.FailReason))

			continue
		}
		usable = append(usable, res)
	}
	if len(usable) == 0 {
		svc.logger.WarnContext(ctx, "aggregation abandoned, no usable results", slog.Int("round", roundNum))

		return nil, nil
	}

	samples := make([]outlier.Sample, 0, len(usable))
	for _, res := range usable {
		samples = append(samples, outlier.Sample{ClientID: res.NodeID, Loss: res.Metrics["loss"]})
	}
	flagged := svc.detector.Detect(samples)

	survivors := make([]round.FitResult, 0, len(usable))
	for _, res := range usable {
		if flagged[res.NodeID] {
			svc.logger.WarnContext(ctx, "update excluded as loss outlier",
				slog.String("node_id", res.NodeID),
				slog.Int("round", roundNum),
				slog.Float64("loss", res.Metrics["loss"]))

			continue
		}
		survivors = append(survivors, res)
	}
	if len(survivors) == 0 {
		svc.logger.WarnContext(ctx, "aggregation abandoned, every update flagged as outlier", slog.Int("round", roundNum))

		return nil, nil
	}

	if err := svc.crypto.Config().ValidateHeadroom(); err != nil {
		return nil, err
	}

	manifest := svc.global.Manifest
	pub := svc.crypto.Public()

	// A defective payload is the sender's fault alone: the update is
	// dropped and the rest of the cohort is aggregated without it. Only
	// errors in the coordinator's own crypto stay fatal.
	acc := make([]*hecrypt.EncryptedTensor, len(manifest))
	total := 0
	aggregated := 0
	for _, res := range survivors {
		tensors, err := svc.weightedTensors(pub, res, manifest)
		if err != nil {
			svc.logger.WarnContext(ctx, "update excluded, unusable payload",
				slog.String("node_id", res.NodeID),
				slog.Int("round", roundNum),
				slog.Any("cause", err))

			continue
		}
		if mismatched(acc, tensors) {
			svc.logger.WarnContext(ctx, "update excluded, ciphertext chunking differs from cohort",
				slog.String("node_id", res.NodeID),
				slog.Int("round", roundNum))

			continue
		}
		for i, t := range tensors {
			if acc[i] == nil {
				acc[i] = t

				continue
			}
			if err := pub.Add(acc[i], t); err != nil {
				return nil, err
			}
		}
		total += res.NumExamples
		aggregated++
	}
	if aggregated == 0 {
		svc.logger.WarnContext(ctx, "aggregation abandoned, no structurally valid updates", slog.Int("round", roundNum))

		return nil, nil
	}

	reciprocal := 1 / float64(total)
	tensors := make([][]float64, len(manifest))
	for i, t := range acc {
		if err := pub.MulScalar(t, reciprocal); err != nil {
			return nil, err
		}
		values, err := svc.crypto.DecryptTensor(t, manifest[i].Elements())
		if err != nil {
			return nil, err
		}
		tensors[i] = values
	}

	next := round.PlaintextVector(tensors, manifest)

	svc.mu.Lock()
	svc.global = next
	if svc.current != nil {
		svc.current.FitResults = results
	}
	svc.mu.Unlock()

	svc.logger.InfoContext(ctx, "aggregated encrypted updates",
		slog.Int("round", roundNum),
		slog.Int("updates", aggregated),
		slog.Int("total_examples", total))

	return &next, nil
}

// weightedTensors validates one client's encrypted update against the
// canonical manifest and scales every tensor by the client's example
// count. Errors here describe the client's payload, not the round.
func (svc *service) weightedTensors(pub *hecrypt.PublicContext, res round.FitResult, manifest []round.TensorSpec) ([]*hecrypt.EncryptedTensor, error) {
	if res.Params.Type != round.TensorEncrypted {
		return nil, pkgerrors.ErrInvalidData
	}
	if err := res.Params.MatchesManifest(manifest); err != nil {
		return nil, err
	}

	weight := float64(res.NumExamples)
	tensors := make([]*hecrypt.EncryptedTensor, len(res.Params.Tensors))
	for i, blob := range res.Params.Tensors {
		t, err := pub.DeserializeTensor(blob)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", manifest[i].Name, err)
		}
		if err := pub.MulScalar(t, weight); err != nil {
			return nil, fmt.Errorf("tensor %q: %w", manifest[i].Name, err)
		}
		tensors[i] = t
	}

	return tensors, nil
}

// mismatched reports whether an update's ciphertext chunk counts disagree
// with the accumulator built from earlier updates.
func mismatched(acc, tensors []*hecrypt.EncryptedTensor) bool {
	for i := range tensors {
		if acc[i] != nil && acc[i].Chunks() != tensors[i].Chunks() {
			return true
		}
	}

	return false
}

func (svc *service) ConfigureEvaluate(ctx context.Context, roundNum int) ([]node.Node, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.current == nil || svc.current.Number != roundNum {
		return nil, pkgerrors.ErrNotFound
	}
	svc.current.Phase = round.EvaluateConfigured

	picked := make([]node.Node, 0, len(svc.current.Clients))
	for _, id := range svc.current.Clients {
		if n, ok := svc.nodes[id]; ok && n.Alive {
			picked = append(picked, n)
		}
	}

	return picked, nil
}

func (svc *service) AggregateEvaluate(ctx context.Context, roundNum int, results []round.EvaluateResult) (map[string]float64, error) {
	weighted := make([]aggregate.Weighted, 0, len(results))
	for _, res := range results {
		if !res.OK() {
			svc.logger.WarnContext(ctx, "node reported a failed evaluation",
				slog.String("node_id", res.NodeID),
				slog.Int("round", roundNum),
				slog.String("reason", res.FailReason))

			continue
		}
		weighted = append(weighted, aggregate.Weighted{
			NumExamples: res.NumExamples,
			Metrics: map[string]float64{
				"loss":        res.Loss,
				"accuracy":    res.Accuracy,
				"uncertainty": res.Uncertainty,
			},
		})
	}

	metrics, err := aggregate.WeightedMean(weighted)
	if err != nil {
		return nil, err
	}

	metric := ledger.RoundMetric{
		RoundNumber:    roundNum,
		AvgAccuracy:    metrics["accuracy"],
		AvgLoss:        metrics["loss"],
		AvgUncertainty: metrics["uncertainty"],
		NumClients:     len(weighted),
	}
	if err := svc.ledger.RecordRoundMetric(ctx, metric); err != nil {
		// Bookkeeping failures never abort a training session.
		svc.logger.ErrorContext(ctx, "failed to record round metric",
			slog.Int("round", roundNum), slog.Any("error", err))
	}

	svc.mu.Lock()
	if svc.current != nil && svc.current.Number == roundNum {
		svc.current.EvalResults = results
		svc.current.Phase = round.RoundComplete
	}
	svc.mu.Unlock()

	return metrics, nil
}

func (svc *service) Status(ctx context.Context) (round.Status, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	if svc.current == nil {
		return round.Status{
			TotalRounds: svc.cfg.Rounds,
			Phase:       round.AwaitingClients.String(),
			NumClients:  len(svc.nodes),
		}, nil
	}

	return svc.current.Status(), nil
}

func (svc *service) PublicContext(ctx context.Context) ([]byte, error) {
	return svc.publicCtx, nil
}

func (svc *service) ListNodes(ctx context.Context, offset, limit uint64) (node.Page, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	all := make([]node.Node, 0, len(svc.nodes))
	for _, n := range svc.nodes {
		all = append(all, n)
	}

	total := uint64(len(all))
	if offset >= total {
		return node.Page{Offset: offset, Limit: limit, Total: total}, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return node.Page{Offset: offset, Limit: limit, Total: total, Nodes: all[offset:end]}, nil
}

func (svc *service) ListRoundMetrics(ctx context.Context, offset, limit uint64) (RoundMetricPage, error) {
	metrics, total, err := svc.ledger.ListRoundMetrics(ctx, offset, limit)
	if err != nil {
		return RoundMetricPage{}, err
	}

	return RoundMetricPage{Offset: offset, Limit: limit, Total: total, Metrics: metrics}, nil
}

func (svc *service) ListModelVersions(ctx context.Context, offset, limit uint64) (ModelVersionPage, error) {
	versions, total, err := svc.ledger.ListModelVersions(ctx, offset, limit)
	if err != nil {
		return ModelVersionPage{}, err
	}

	return ModelVersionPage{Offset: offset, Limit: limit, Total: total, Versions: versions}, nil
}

func (svc *service) GetModelVersion(ctx context.Context, version int) (ledger.ModelVersion, error) {
	return svc.ledger.GetModelVersion(ctx, version)
}

func (svc *service) Shutdown(ctx context.Context) error {
	return svc.pubsub.Disconnect(ctx)
}

func (svc *service) setPhase(p round.Phase) {
	svc.mu.Lock()
	if svc.current != nil {
		svc.current.Phase = p
	}
	svc.mu.Unlock()
}

// finalize persists the final global model and publishes exactly one
// model version for the session.
func (svc *service) finalize(ctx context.Context, roundNum int, metrics map[string]float64) error {
	svc.mu.RLock()
	global := svc.global
	svc.mu.RUnlock()

	if err := os.MkdirAll(svc.cfg.WeightsDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(svc.cfg.WeightsDir, fmt.Sprintf("model_round_%d.bin", roundNum))
	blob, err := global.MarshalBinary()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return err
	}

	version := ledger.ModelVersion{
		VersionNumber: roundNum,
		AvgAccuracy:   metrics["accuracy"],
		AvgLoss:       metrics["loss"],
		Description:   fmt.Sprintf("federated session final model after %d rounds", roundNum),
		FilePath:      path,
	}
	if err := svc.ledger.CreateModelVersion(ctx, version); err != nil {
		return err
	}

	svc.setPhase(round.Finalized)
	svc.logger.InfoContext(ctx, "session finalized",
		slog.Int("version", roundNum), slog.String("weights", path))

	return nil
}
