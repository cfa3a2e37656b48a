package round

import "time"

// FitResult carries either a node's encrypted update or a tagged failure
// reason. Failed results participate in failure reporting but never in
// aggregation; a zero-example result with an error tag is how a node reports
// "I was sampled but my local training failed" without crashing the round.
type FitResult struct {
	NodeID      string             `json:"node_id"      cbor:"node_id"`
	Round       int                `json:"round"        cbor:"round"`
	Params      ParameterVector    `json:"params"       cbor:"params"`
	NumExamples int                `json:"num_examples" cbor:"num_examples"`
	Metrics     map[string]float64 `json:"metrics"      cbor:"metrics"`
	FailReason  string             `json:"fail_reason,omitempty" cbor:"fail_reason,omitempty"`
	ReceivedAt  time.Time          `json:"received_at"  cbor:"-"`
}

// OK reports whether the result is a usable update.
func (r FitResult) OK() bool {
	return r.FailReason == "" && r.NumExamples > 0
}

// FitFailure builds the error-tagged result a node reports when local
// training fails.
func FitFailure(nodeID string, roundNum int, reason error) FitResult {
	return FitResult{
		NodeID:     nodeID,
		Round:      roundNum,
		FailReason: reason.Error(),
	}
}

// EvaluateResult carries a node's plaintext evaluation of the current global
// model. Evaluation results are not encrypted in this design.
type EvaluateResult struct {
	NodeID      string    `json:"node_id"      cbor:"node_id"`
	Round       int       `json:"round"        cbor:"round"`
	Loss        float64   `json:"loss"         cbor:"loss"`
	Accuracy    float64   `json:"accuracy"     cbor:"accuracy"`
	Uncertainty float64   `json:"uncertainty"  cbor:"uncertainty"`
	NumExamples int       `json:"num_examples" cbor:"num_examples"`
	FailReason  string    `json:"fail_reason,omitempty" cbor:"fail_reason,omitempty"`
	ReceivedAt  time.Time `json:"received_at"  cbor:"-"`
}

// OK reports whether the evaluation is usable for aggregation.
func (r EvaluateResult) OK() bool {
	return r.FailReason == "" && r.NumExamples > 0
}
