package sampler_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospinet/fedtrain/node"
	"github.com/hospinet/fedtrain/pkg/sampler"
)

func TestNewFraction(t *testing.T) {
	cases := []struct {
		desc     string
		fraction float64
		err      error
	}{
		{desc: "full participation", fraction: 1.0},
		{desc: "half participation", fraction: 0.5},
		{desc: "zero fraction", fraction: 0, err: sampler.ErrInvalidFraction},
		{desc: "negative fraction", fraction: -0.3, err: sampler.ErrInvalidFraction},
		{desc: "above one", fraction: 1.5, err: sampler.ErrInvalidFraction},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			s, err := sampler.NewFraction(tc.fraction, 2, 42)
			assert.ErrorIs(t, err, tc.err)
			if tc.err == nil {
				assert.NotNil(t, s)
			}
		})
	}
}

func TestFractionSample(t *testing.T) {
	nodes := func(alive, dead int) []node.Node {
		ns := make([]node.Node, 0, alive+dead)
		for i := 0; i < alive; i++ {
			ns = append(ns, node.Node{ID: fmt.Sprintf("alive-%d", i), Alive: true})
		}
		for i := 0; i < dead; i++ {
			ns = append(ns, node.Node{ID: fmt.Sprintf("dead-%d", i)})
		}

		return ns
	}

	cases := []struct {
		desc     string
		fraction float64
		minNodes int
		nodes    []node.Node
		want     int
		err      error
	}{
		{desc: "all alive full fraction", fraction: 1.0, minNodes: 2, nodes: nodes(4, 0), want: 4},
		{desc: "half fraction rounds up", fraction: 0.5, minNodes: 2, nodes: nodes(5, 0), want: 3},
		{desc: "dead nodes excluded", fraction: 1.0, minNodes: 2, nodes: nodes(3, 2), want: 3},
		{desc: "empty registry", fraction: 1.0, minNodes: 2, nodes: nil, err: sampler.ErrNoNodes},
		{desc: "all dead", fraction: 1.0, minNodes: 2, nodes: nodes(0, 3), err: sampler.ErrDeadNodes},
		{desc: "below minimum", fraction: 1.0, minNodes: 4, nodes: nodes(3, 0), err: sampler.ErrBelowMinimum},
		{desc: "fraction bumped to minimum", fraction: 0.1, minNodes: 3, nodes: nodes(6, 0), want: 3},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			s, err := sampler.NewFraction(tc.fraction, tc.minNodes, 7)
			require.NoError(t, err)

			picked, err := s.Sample(1, tc.nodes)
			assert.ErrorIs(t, err, tc.err)
			if tc.err != nil {
				return
			}

			assert.Len(t, picked, tc.want)
			for _, n := range picked {
				assert.True(t, n.Alive)
			}
		})
	}
}

func TestFractionSampleDeterministic(t *testing.T) {
	ns := make([]node.Node, 10)
	for i := range ns {
		ns[i] = node.Node{ID: fmt.Sprintf("node-%d", i), Alive: true}
	}

	a, err := sampler.NewFraction(0.5, 2, 99)
	require.NoError(t, err)
	b, err := sampler.NewFraction(0.5, 2, 99)
	require.NoError(t, err)

	first, err := a.Sample(1, ns)
	require.NoError(t, err)
	second, err := b.Sample(1, ns)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFractionSampleIgnoresRegistryOrder(t *testing.T) {
	forward := make([]node.Node, 10)
	for i := range forward {
		forward[i] = node.Node{ID: fmt.Sprintf("node-%d", i), Alive: true}
	}
	reversed := make([]node.Node, len(forward))
	for i := range forward {
		reversed[len(forward)-1-i] = forward[i]
	}

	s, err := sampler.NewFraction(0.5, 2, 99)
	require.NoError(t, err)

	first, err := s.Sample(3, forward)
	require.NoError(t, err)
	second, err := s.Sample(3, reversed)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
