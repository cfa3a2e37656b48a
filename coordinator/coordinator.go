// Package coordinator runs the secure-aggregation round protocol. It
// samples participants, distributes the global model, combines the
// encrypted client updates and records the outcome of every round in
// the ledger.
package coordinator

import (
	"context"
	"time"

	"github.com/hospinet/fedtrain/node"
	"github.com/hospinet/fedtrain/pkg/ledger"
	"github.com/hospinet/fedtrain/round"
)

// SessionConfig drives one federated training session.
type SessionConfig struct {
	Rounds        int           `toml:"rounds"          json:"rounds"`
	Epochs        int           `toml:"epochs"          json:"epochs"`
	MinClients    int           `toml:"min_clients"     json:"min_clients"`
	Fraction      float64       `toml:"fraction"        json:"fraction"`
	QuorumTimeout time.Duration `toml:"quorum_timeout"  json:"quorum_timeout"`
	WaitInterval  time.Duration `toml:"wait_interval"   json:"wait_interval"`
	OutlierZScore float64       `toml:"outlier_zscore"  json:"outlier_zscore"`
	WeightsDir    string        `toml:"weights_dir"     json:"weights_dir"`
	SamplerSeed   uint64        `toml:"sampler_seed"    json:"sampler_seed"`
}

// DefaultSessionConfig mirrors the defaults the provisioning CLI writes.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Rounds:        10,
		Epochs:        1,
		MinClients:    2,
		Fraction:      1.0,
		QuorumTimeout: 2 * time.Minute,
		WaitInterval:  5 * time.Second,
		OutlierZScore: 2.5,
		WeightsDir:    "versions",
		SamplerSeed:   1,
	}
}

// RoundMetricPage is a paginated slice of the ledger's round history.
type RoundMetricPage struct {
	Offset  uint64               `json:"offset"`
	Limit   uint64               `json:"limit"`
	Total   uint64               `json:"total"`
	Metrics []ledger.RoundMetric `json:"metrics"`
}

// ModelVersionPage is a paginated slice of published model versions.
type ModelVersionPage struct {
	Offset   uint64                `json:"offset"`
	Limit    uint64                `json:"limit"`
	Total    uint64                `json:"total"`
	Versions []ledger.ModelVersion `json:"versions"`
}

type Service interface {
	// ConfigureFit samples the participants for one round and freezes
	// the per-round training configuration. It fails when fewer than
	// the configured minimum of nodes are alive.
	ConfigureFit(ctx context.Context, roundNum int) (round.FitConfig, []node.Node, error)

	// AggregateFit combines the encrypted client updates into the next
	// global model. A nil vector means the round was abandoned and the
	// previous global model carries forward unchanged.
	AggregateFit(ctx context.Context, roundNum int, results []round.FitResult) (*round.ParameterVector, error)

	// ConfigureEvaluate selects the nodes asked to evaluate the fresh
	// global model.
	ConfigureEvaluate(ctx context.Context, roundNum int) ([]node.Node, error)

	// AggregateEvaluate reduces the evaluation reports into weighted
	// session metrics and records them in the ledger.
	AggregateEvaluate(ctx context.Context, roundNum int, results []round.EvaluateResult) (map[string]float64, error)

	// RunSession drives the configured number of rounds to completion,
	// then publishes the final model version.
	RunSession(ctx context.Context) error

	Status(ctx context.Context) (round.Status, error)
	PublicContext(ctx context.Context) ([]byte, error)
	ListNodes(ctx context.Context, offset, limit uint64) (node.Page, error)
	ListRoundMetrics(ctx context.Context, offset, limit uint64) (RoundMetricPage, error)
	ListModelVersions(ctx context.Context, offset, limit uint64) (ModelVersionPage, error)
	GetModelVersion(ctx context.Context, version int) (ledger.ModelVersion, error)

	Subscribe(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
