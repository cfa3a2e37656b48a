package hecrypt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospinet/fedtrain/pkg/hecrypt"
)

// CKKS is approximate; this tolerance is generous against the 2^40 scale.
const epsilon = 1e-4

func testContext(t *testing.T) *hecrypt.Context {
	t.Helper()
	ctx, err := hecrypt.NewContext(hecrypt.DefaultConfig())
	require.NoError(t, err)

	return ctx
}

func TestValidateHeadroom(t *testing.T) {
	cfg := hecrypt.DefaultConfig()
	require.NoError(t, cfg.ValidateHeadroom())

	cfg.MaxWeightMagnitude = 1e30
	assert.ErrorIs(t, cfg.ValidateHeadroom(), hecrypt.ErrHeadroomExceeded)

	_, err := hecrypt.NewContext(cfg)
	assert.ErrorIs(t, err, hecrypt.ErrHeadroomExceeded)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	ctx := testContext(t)
	pub := ctx.Public()

	values := []float64{0.5, -1.25, 3.75, 0, 42.0}
	blob, err := pub.EncryptTensor(values)
	require.NoError(t, err)

	tensor, err := pub.DeserializeTensor(blob)
	require.NoError(t, err)
	assert.Equal(t, 1, tensor.Chunks())

	got, err := ctx.DecryptTensor(tensor, len(values))
	require.NoError(t, err)
	require.Len(t, got, len(values))
	for i, want := range values {
		assert.InDelta(t, want, got[i], epsilon, "element %d", i)
	}
}

func TestEncryptTensorEmpty(t *testing.T) {
	pub := testContext(t).Public()
	_, err := pub.EncryptTensor(nil)
	assert.ErrorIs(t, err, hecrypt.ErrEmptyTensor)
}

func TestEncryptTensorChunking(t *testing.T) {
	ctx := testContext(t)
	pub := ctx.Public()

	// One element past the slot boundary forces a second ciphertext.
	values := make([]float64, pub.Slots()+1)
	for i := range values {
		values[i] = float64(i%7) / 10
	}

	blob, err := pub.EncryptTensor(values)
	require.NoError(t, err)
	tensor, err := pub.DeserializeTensor(blob)
	require.NoError(t, err)
	assert.Equal(t, 2, tensor.Chunks())

	got, err := ctx.DecryptTensor(tensor, len(values))
	require.NoError(t, err)
	assert.InDelta(t, values[0], got[0], epsilon)
	assert.InDelta(t, values[len(values)-1], got[len(got)-1], epsilon)
}

func TestWeightedAggregation(t *testing.T) {
	ctx := testContext(t)
	pub := ctx.Public()

	a := []float64{1.0, 2.0, 3.0}
	b := []float64{4.0, 5.0, 6.0}
	wa, wb := 10.0, 5.0

	encrypt := func(v []float64) *hecrypt.EncryptedTensor {
		blob, err := pub.EncryptTensor(v)
		require.NoError(t, err)
		tensor, err := pub.DeserializeTensor(blob)
		require.NoError(t, err)

		return tensor
	}

	acc := encrypt(a)
	require.NoError(t, pub.MulScalar(acc, wa))
	other := encrypt(b)
	require.NoError(t, pub.MulScalar(other, wb))
	require.NoError(t, pub.Add(acc, other))
	require.NoError(t, pub.MulScalar(acc, 1/(wa+wb)))

	got, err := ctx.DecryptTensor(acc, len(a))
	require.NoError(t, err)
	for i := range a {
		want := (wa*a[i] + wb*b[i]) / (wa + wb)
		assert.InDelta(t, want, got[i], epsilon, "element %d", i)
	}
}

func TestAddChunkMismatch(t *testing.T) {
	pub := testContext(t).Public()

	short, err := pub.EncryptTensor([]float64{1})
	require.NoError(t, err)
	long, err := pub.EncryptTensor(make([]float64, pub.Slots()+1))
	require.NoError(t, err)

	a, err := pub.DeserializeTensor(short)
	require.NoError(t, err)
	b, err := pub.DeserializeTensor(long)
	require.NoError(t, err)

	assert.ErrorIs(t, pub.Add(a, b), hecrypt.ErrChunkMismatch)
}

func TestDeserializeTensorTruncated(t *testing.T) {
	pub := testContext(t).Public()

	blob, err := pub.EncryptTensor([]float64{1, 2, 3})
	require.NoError(t, err)

	cases := []struct {
		desc string
		blob []byte
	}{
		{desc: "empty", blob: nil},
		{desc: "header only", blob: blob[:4]},
		{desc: "cut ciphertext", blob: blob[:len(blob)/2]},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := pub.DeserializeTensor(tc.blob)
			assert.Error(t, err)
		})
	}
}

func TestPublicContextRoundTrip(t *testing.T) {
	ctx := testContext(t)

	data, err := ctx.Public().MarshalBinary()
	require.NoError(t, err)

	// A restored context can encrypt for the key holder.
	restored, err := hecrypt.LoadPublicContext(data)
	require.NoError(t, err)
	assert.Equal(t, ctx.Public().Slots(), restored.Slots())

	values := []float64{7.5, -2.5}
	blob, err := restored.EncryptTensor(values)
	require.NoError(t, err)
	tensor, err := ctx.Public().DeserializeTensor(blob)
	require.NoError(t, err)
	got, err := ctx.DecryptTensor(tensor, len(values))
	require.NoError(t, err)
	assert.InDelta(t, values[0], got[0], epsilon)
	assert.InDelta(t, values[1], got[1], epsilon)
}

func TestLoadPublicContextTruncated(t *testing.T) {
	ctx := testContext(t)
	data, err := ctx.Public().MarshalBinary()
	require.NoError(t, err)

	_, err = hecrypt.LoadPublicContext(data[:len(data)/3])
	assert.ErrorIs(t, err, hecrypt.ErrTruncatedContext)

	_, err = hecrypt.LoadPublicContext(nil)
	assert.ErrorIs(t, err, hecrypt.ErrTruncatedContext)
}

func TestHeadroom(t *testing.T) {
	cfg := hecrypt.DefaultConfig()
	// 60+40+40+60 modulus bits minus three 40-bit scale consumptions.
	assert.InDelta(t, 1.0, cfg.Headroom()/1.2089258196146292e24, 1e-9)
}
