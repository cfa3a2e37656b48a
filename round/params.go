package round

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// TensorType marks how the opaque tensor blobs of a ParameterVector are
// encoded on the wire.
type TensorType string

const (
	// TensorPlaintext marks little-endian float64 tensors, used when the
	// coordinator distributes global parameters.
	TensorPlaintext TensorType = "plaintext_f64"
	// TensorEncrypted marks CKKS ciphertext tensors, used when a node
	// uploads its fit result.
	TensorEncrypted TensorType = "encrypted_ckks"
)

var (
	ErrTensorCount      = errors.New("tensor count does not match manifest")
	ErrManifestMismatch = errors.New("tensor manifest mismatch")
	ErrTensorSize       = errors.New("tensor byte length does not match manifest shape")
)

// TensorSpec names one model tensor and its shape. The ordered list of specs
// is the canonical tensor order every participant must follow: aggregation
// is index-aligned, so a reordering between client and server silently
// corrupts the aggregate unless caught by manifest comparison.
type TensorSpec struct {
	Name  string `json:"name"  cbor:"name"`
	Shape []int  `json:"shape" cbor:"shape"`
}

// Elements returns the number of scalar elements the shape describes.
func (s TensorSpec) Elements() int {
	n := 1
	for _, d := range s.Shape {
		n *= d
	}

	return n
}

// ParameterVector is an ordered sequence of opaque tensor blobs plus the
// manifest describing them.
type ParameterVector struct {
	Type     TensorType   `json:"type"     cbor:"type"`
	Tensors  [][]byte     `json:"tensors"  cbor:"tensors"`
	Manifest []TensorSpec `json:"manifest" cbor:"manifest"`
}

// Validate checks internal consistency. Plaintext tensors must additionally
// match the element counts declared by the manifest; ciphertext sizes are
// scheme-dependent and only counted.
func (v ParameterVector) Validate() error {
	if len(v.Tensors) != len(v.Manifest) {
		return fmt.Errorf("%w: %d tensors, %d manifest entries", ErrTensorCount, len(v.Tensors), len(v.Manifest))
	}
	if v.Type != TensorPlaintext {
		return nil
	}
	for i, spec := range v.Manifest {
		if want := spec.Elements() * 8; len(v.Tensors[i]) != want {
			return fmt.Errorf("%w: tensor %q has %d bytes, want %d", ErrTensorSize, spec.Name, len(v.Tensors[i]), want)
		}
	}

	return nil
}

// MatchesManifest verifies that another manifest lists the same tensors in
// the same order with the same shapes.
func (v ParameterVector) MatchesManifest(other []TensorSpec) error {
	if len(v.Manifest) != len(other) {
		return fmt.Errorf("%w: %d vs %d entries", ErrManifestMismatch, len(v.Manifest), len(other))
	}
	for i := range other {
		if v.Manifest[i].Name != other[i].Name {
			return fmt.Errorf("%w: position %d is %q, want %q", ErrManifestMismatch, i, v.Manifest[i].Name, other[i].Name)
		}
		if len(v.Manifest[i].Shape) != len(other[i].Shape) {
			return fmt.Errorf("%w: tensor %q rank differs", ErrManifestMismatch, other[i].Name)
		}
		for j := range other[i].Shape {
			if v.Manifest[i].Shape[j] != other[i].Shape[j] {
				return fmt.Errorf("%w: tensor %q shape differs", ErrManifestMismatch, other[i].Name)
			}
		}
	}

	return nil
}

// PlaintextVector encodes float64 tensors into a plaintext ParameterVector.
func PlaintextVector(tensors [][]float64, manifest []TensorSpec) ParameterVector {
	blobs := make([][]byte, len(tensors))
	for i, t := range tensors {
		b := make([]byte, len(t)*8)
		for j, f := range t {
			binary.LittleEndian.PutUint64(b[j*8:], math.Float64bits(f))
		}
		blobs[i] = b
	}

	return ParameterVector{
		Type:     TensorPlaintext,
		Tensors:  blobs,
		Manifest: manifest,
	}
}

// Float64Tensors decodes a plaintext vector back into float64 tensors.
func (v ParameterVector) Float64Tensors() ([][]float64, error) {
	if v.Type != TensorPlaintext {
		return nil, fmt.Errorf("cannot decode %q tensors as plaintext", v.Type)
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	out := make([][]float64, len(v.Tensors))
	for i, b := range v.Tensors {
		t := make([]float64, len(b)/8)
		for j := range t {
			t[j] = math.Float64frombits(binary.LittleEndian.Uint64(b[j*8:]))
		}
		out[i] = t
	}

	return out, nil
}
