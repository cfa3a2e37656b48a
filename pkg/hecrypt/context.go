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
	ErrHeadroomExceeded = errors.New("aggregation would exceed ciphertext noise headroom")
	// ErrCiphertextExhausted signals garbage after decryption, which means
	// the CKKS parameters were insufficient for the performed arithmetic.
	// This is a fatal configuration error, not a per-round retry.
	ErrCiphertextExhausted = errors.New("decrypted aggregate out of range: ciphertext headroom exhausted")
	ErrTruncatedContext    = errors.New("truncated public context payload")
)

// Config holds the CKKS parameter set plus the aggregation bounds the
// parameters were sized for. The defaults mirror a ring degree of 2^13 with
// a 60/40/40/60 modulus chain and a 2^40 scale, which leaves 2^20 of integer
// headroom above the scale for the weighted sum before division.
type Config struct {
	LogN            int   `toml:"log_n"`
	LogQ            []int `toml:"log_q"`
	LogP            []int `toml:"log_p"`
	LogDefaultScale int   `toml:"log_default_scale"`

	// MaxClients and MaxWeightMagnitude bound the weighted sum
	// sum_i(n_i * w_i) that the scheme must represent without wrapping.
	MaxClients           int     `toml:"max_clients"`
	MaxExamplesPerClient int     `toml:"max_examples_per_client"`
	MaxWeightMagnitude   float64 `toml:"max_weight_magnitude"`
}

// DefaultConfig returns the parameter set the platform ships with.
func DefaultConfig() Config {
	return Config{
		LogN:                 13,
		LogQ:                 []int{60, 40, 40, 60},
		LogP:                 []int{61},
		LogDefaultScale:      40,
		MaxClients:           32,
		MaxExamplesPerClient: 10000,
		MaxWeightMagnitude:   100,
	}
}

// aggregationDepth is the multiplicative depth one aggregation consumes:
// one ciphertext-scalar product for example-count weighting and one for the
// reciprocal division by the total example count.
const aggregationDepth = 2

// Headroom returns the largest plaintext magnitude the modulus chain can
// carry through a full aggregation: total modulus bits minus the scale bits
// consumed by the aggregation depth plus the final encoding.
func (c Config) Headroom() float64 {
	totalQ := 0
	for _, q := range c.LogQ {
		totalQ += q
	}

	return math.Exp2(float64(totalQ - (aggregationDepth+1)*c.LogDefaultScale))
}

// ValidateHeadroom checks that the worst-case weighted sum
// sum_i(n_i * w_i) <= MaxClients * MaxExamplesPerClient * MaxWeightMagnitude
// stays inside the headroom. Decryption after an overflowing aggregation
// silently returns garbage, so this must be verified before a session starts.
func (c Config) ValidateHeadroom() error {
	worst := float64(c.MaxClients) * float64(c.MaxExamplesPerClient) * c.MaxWeightMagnitude
	if worst >= c.Headroom() {
		return fmt.Errorf("%w: %d clients x %d examples x %.0f magnitude", ErrHeadroomExceeded,
			c.MaxClients, c.MaxExamplesPerClient, c.MaxWeightMagnitude)
	}

	return nil
}

// Context is the server-side encryption context. It owns the secret key and
// is the only place ciphertexts are ever decrypted.
type Context struct {
	cfg    Config
	params ckks.Parameters
	sk     *rlwe.SecretKey
	dec    *rlwe.Decryptor
	ecd    *ckks.Encoder
	public *PublicContext
}

// PublicContext carries only public material: parameters, the public key and
// the relinearization key. It can encrypt and operate on ciphertexts but
// never decrypt.
type PublicContext struct {
	params ckks.Parameters
	pk     *rlwe.PublicKey
	rlk    *rlwe.RelinearizationKey
	ecd    *ckks.Encoder
	enc    *rlwe.Encryptor
	eval   *ckks.Evaluator
}

// NewContext builds the CKKS context and key pair. Called once per server
// process; the context is never rotated mid-training.
func NewContext(cfg Config) (*Context, error) {
	if err := cfg.ValidateHeadroom(); err != nil {
		return nil, err
	}

	params, err := ckks.NewParametersFromLiteral(ckks.ParametersLiteral{
		LogN:            cfg.LogN,
		LogQ:            cfg.LogQ,
		LogP:            cfg.LogP,
		LogDefaultScale: cfg.LogDefaultScale,
	})
	if err != nil {
		return nil, fmt.Errorf("building CKKS parameters: %w", err)
	}

	kgen := rlwe.NewKeyGenerator(params)
	sk := kgen.GenSecretKeyNew()
	pk := kgen.GenPublicKeyNew(sk)
	rlk := kgen.GenRelinearizationKeyNew(sk)

	pub := newPublicContext(params, pk, rlk)

	return &Context{
		cfg:    cfg,
		params: params,
		sk:     sk,
		dec:    rlwe.NewDecryptor(params, sk),
		ecd:    ckks.NewEncoder(params),
		public: pub,
	}, nil
}

func newPublicContext(params ckks.Parameters, pk *rlwe.PublicKey, rlk *rlwe.RelinearizationKey) *PublicContext {
	return &PublicContext{
		params: params,
		pk:     pk,
		rlk:    rlk,
		ecd:    ckks.NewEncoder(params),
		enc:    rlwe.NewEncryptor(params, pk),
		eval:   ckks.NewEvaluator(params, rlwe.NewMemEvaluationKeySet(rlk)),
	}
}

// Config returns the configuration the context was built with.
func (c *Context) Config() Config { return c.cfg }

// Public returns the shareable portion of the context.
func (c *Context) Public() *PublicContext { return c.public }

// Slots returns the number of plaintext slots per ciphertext.
func (p *PublicContext) Slots() int { return p.params.MaxSlots() }

// MarshalBinary serializes the public material only. The secret key never
// leaves the Context.
func (p *PublicContext) MarshalBinary() ([]byte, error) {
	pb, err := p.params.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshaling parameters: %w", err)
	}
	kb, err := p.pk.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshaling public key: %w", err)
	}
	rb, err := p.rlk.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshaling relinearization key: %w", err)
	}

	out := make([]byte, 0, 12+len(pb)+len(kb)+len(rb))
	for _, b := range [][]byte{pb, kb, rb} {
		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], uint32(len(b)))
		out = append(out, hdr[:]...)
		out = append(out, b...)
	}

	return out, nil
}

// LoadPublicContext restores a PublicContext serialized by MarshalBinary.
func LoadPublicContext(data []byte) (*PublicContext, error) {
	frames := make([][]byte, 0, 3)
	for i := 0; i < 3; i++ {
		if len(data) < 4 {
			return nil, ErrTruncatedContext
		}
		n := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint32(len(data)) < n {
			return nil, ErrTruncatedContext
		}
		frames = append(frames, data[:n])
		data = data[n:]
	}

	var params ckks.Parameters
	if err := params.UnmarshalBinary(frames[0]); err != nil {
		return nil, fmt.Errorf("unmarshaling parameters: %w", err)
	}
	pk := &rlwe.PublicKey{}
	if err := pk.UnmarshalBinary(frames[1]); err != nil {
		return nil, fmt.Errorf("unmarshaling public key: %w", err)
	}
	rlk := &rlwe.RelinearizationKey{}
	if err := rlk.UnmarshalBinary(frames[2]); err != nil {
		return nil, fmt.Errorf("unmarshaling relinearization key: %w", err)
	}

	return newPublicContext(params, pk, rlk), nil
}
