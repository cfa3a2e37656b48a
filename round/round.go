package round

import (
	"time"
)

// Phase tracks where a round is in its lifecycle. Transitions are strictly
// ordered within a round; rounds themselves are strictly ordered across the
// session.
type Phase uint8

const (
	AwaitingClients Phase = iota
	FitConfigured
	FitCollected
	Aggregating
	EvaluateConfigured
	EvaluateCollected
	RoundComplete
	Finalized
)

func (p Phase) String() string {
	switch p {
	case AwaitingClients:
		return "awaiting_clients"
	case FitConfigured:
		return "fit_configured"
	case FitCollected:
		return "fit_collected"
	case Aggregating:
		return "aggregating"
	case EvaluateConfigured:
		return "evaluate_configured"
	case EvaluateCollected:
		return "evaluate_collected"
	case RoundComplete:
		return "round_complete"
	case Finalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// FitConfig is the per-round configuration distributed to each sampled node.
// ServerRound feeds the node's differential-privacy accountant.
type FitConfig struct {
	Epochs      int `json:"epochs"       cbor:"epochs"`
	ServerRound int `json:"server_round" cbor:"server_round"`
}

// Round is the unit of coordination. It is created by ConfigureFit, mutated
// as node results arrive and summarized into global state once aggregation
// completes.
type Round struct {
	Number      int              `json:"number"`
	TotalRounds int              `json:"total_rounds"`
	Phase       Phase            `json:"phase"`
	Clients     []string         `json:"clients"`
	FitResults  []FitResult      `json:"fit_results,omitempty"`
	EvalResults []EvaluateResult `json:"eval_results,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
}

// Status is the externally visible summary of a round.
type Status struct {
	Round       int    `json:"round"`
	TotalRounds int    `json:"total_rounds"`
	Phase       string `json:"phase"`
	NumClients  int    `json:"num_clients"`
	NumResults  int    `json:"num_results"`
}

func (r *Round) Status() Status {
	return Status{
		Round:       r.Number,
		TotalRounds: r.TotalRounds,
		Phase:       r.Phase.String(),
		NumClients:  len(r.Clients),
		NumResults:  len(r.FitResults),
	}
}
