package round

import "github.com/fxamacker/cbor/v2"

// parameterVector strips the BinaryMarshaler methods so cbor encodes the
// struct fields instead of re-entering MarshalBinary.
type parameterVector ParameterVector

// MarshalBinary encodes the vector for persistence and transport.
func (v ParameterVector) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(parameterVector(v))
}

// UnmarshalBinary restores a vector produced by MarshalBinary.
func (v *ParameterVector) UnmarshalBinary(data []byte) error {
	return cbor.Unmarshal(data, (*parameterVector)(v))
}

// FitTask is the message broadcast to sampled nodes at the start of a
// training round. Params carries the plaintext global model.
type FitTask struct {
	Round   int             `json:"round"   cbor:"round"`
	Config  FitConfig       `json:"config"  cbor:"config"`
	Params  ParameterVector `json:"params"  cbor:"params"`
	Clients []string        `json:"clients" cbor:"clients"`
}

// EvaluateTask asks nodes to score the freshly aggregated global model.
type EvaluateTask struct {
	Round   int             `json:"round"   cbor:"round"`
	Params  ParameterVector `json:"params"  cbor:"params"`
	Clients []string        `json:"clients" cbor:"clients"`
}
