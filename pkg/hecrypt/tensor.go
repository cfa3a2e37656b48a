package hecrypt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/ckks"
)

var (
	ErrEmptyTensor   = errors.New("empty tensor")
	ErrChunkMismatch = errors.New("ciphertext chunk counts differ")
	ErrTruncatedBlob = errors.New("truncated ciphertext blob")
)

// EncryptedTensor is one flattened model tensor under CKKS, split into as
// many ciphertexts as the slot count requires.
type EncryptedTensor struct {
	chunks []*rlwe.Ciphertext
}

// Chunks returns the number of ciphertexts backing the tensor.
func (t *EncryptedTensor) Chunks() int { return len(t.chunks) }

// EncryptTensor encodes and encrypts a flattened tensor, returning the wire
// blob: a chunk count followed by length-framed ciphertexts.
func (p *PublicContext) EncryptTensor(values []float64) ([]byte, error) {
	if len(values) == 0 {
		return nil, ErrEmptyTensor
	}

	slots := p.Slots()
	numChunks := (len(values) + slots - 1) / slots

	var out []byte
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(numChunks))
	out = append(out, hdr[:]...)

	for i := 0; i < numChunks; i++ {
		lo, hi := i*slots, (i+1)*slots
		if hi > len(values) {
			hi = len(values)
		}

		pt := ckks.NewPlaintext(p.params, p.params.MaxLevel())
		if err := p.ecd.Encode(values[lo:hi], pt); err != nil {
			return nil, fmt.Errorf("encoding chunk %d: %w", i, err)
		}
		ct, err := p.enc.EncryptNew(pt)
		if err != nil {
			return nil, fmt.Errorf("encrypting chunk %d: %w", i, err)
		}
		b, err := ct.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshaling chunk %d: %w", i, err)
		}

		binary.BigEndian.PutUint32(hdr[:], uint32(len(b)))
		out = append(out, hdr[:]...)
		out = append(out, b...)
	}

	return out, nil
}

// DeserializeTensor parses a wire blob produced by EncryptTensor.
func (p *PublicContext) DeserializeTensor(blob []byte) (*EncryptedTensor, error) {
	if len(blob) < 4 {
		return nil, ErrTruncatedBlob
	}
	numChunks := binary.BigEndian.Uint32(blob[:4])
	blob = blob[4:]

	chunks := make([]*rlwe.Ciphertext, 0, numChunks)
	for i := uint32(0); i < numChunks; i++ {
		if len(blob) < 4 {
			return nil, ErrTruncatedBlob
		}
		n := binary.BigEndian.Uint32(blob[:4])
		blob = blob[4:]
		if uint32(len(blob)) < n {
			return nil, ErrTruncatedBlob
		}
		ct := &rlwe.Ciphertext{}
		if err := ct.UnmarshalBinary(blob[:n]); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk %d: %w", i, err)
		}
		chunks = append(chunks, ct)
		blob = blob[n:]
	}

	return &EncryptedTensor{chunks: chunks}, nil
}

// MulScalar multiplies every chunk of the tensor by a plaintext scalar in
// place. Used for example-count weighting and the reciprocal division.
func (p *PublicContext) MulScalar(t *EncryptedTensor, k float64) error {
	for i, ct := range t.chunks {
		if err := p.eval.Mul(ct, k, ct); err != nil {
			return fmt.Errorf("scaling chunk %d: %w", i, err)
		}
	}

	return nil
}

// Add accumulates other into acc chunk by chunk. Homomorphic addition is
// commutative, so arrival order does not affect the result.
func (p *PublicContext) Add(acc, other *EncryptedTensor) error {
	if len(acc.chunks) != len(other.chunks) {
		return fmt.Errorf("%w: %d vs %d", ErrChunkMismatch, len(acc.chunks), len(other.chunks))
	}
	for i := range acc.chunks {
		if err := p.eval.Add(acc.chunks[i], other.chunks[i], acc.chunks[i]); err != nil {
			return fmt.Errorf("adding chunk %d: %w", i, err)
		}
	}

	return nil
}

// DecryptTensor decrypts an aggregate back into a flattened tensor of the
// given element count. A NaN, Inf or magnitude above the configured weight
// bound means the ciphertext ran out of headroom, which is fatal for the
// session configuration.
func (c *Context) DecryptTensor(t *EncryptedTensor, elements int) ([]float64, error) {
	slots := c.params.MaxSlots()
	out := make([]float64, 0, elements)
	buf := make([]float64, slots)

	for i, ct := range t.chunks {
		pt := c.dec.DecryptNew(ct)
		if err := c.ecd.Decode(pt, buf); err != nil {
			return nil, fmt.Errorf("decoding chunk %d: %w", i, err)
		}
		remaining := elements - len(out)
		if remaining > slots {
			remaining = slots
		}
		out = append(out, buf[:remaining]...)
	}

	if len(out) != elements {
		return nil, fmt.Errorf("decrypted %d elements, want %d", len(out), elements)
	}

	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > c.cfg.MaxWeightMagnitude*2 {
			return nil, ErrCiphertextExhausted
		}
	}

	return out, nil
}
