package sampler

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/hospinet/fedtrain/node"
)

type fraction struct {
	fraction float64
	minNodes int
	seed     uint64
}

// NewFraction samples ceil(fraction * alive) nodes per round, uniformly
// at random, and refuses to sample when fewer than minNodes are alive.
// Selection is a pure function of the seed, the round number and the
// alive set, so restarts and reordered registries resample identically.
func NewFraction(frac float64, minNodes int, seed uint64) (Sampler, error) {
	if frac <= 0 || frac > 1 {
		return nil, ErrInvalidFraction
	}
	if minNodes < 1 {
		minNodes = 1
	}

	return &fraction{
		fraction: frac,
		minNodes: minNodes,
		seed:     seed,
	}, nil
}

func (f *fraction) Sample(round uint64, nodes []node.Node) ([]node.Node, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}

	alive := make([]node.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Alive {
			alive = append(alive, n)
		}
	}
	if len(alive) == 0 {
		return nil, ErrDeadNodes
	}
	if len(alive) < f.minNodes {
		return nil, ErrBelowMinimum
	}

	// The registry arrives in map-iteration order; canonical ordering
	// keeps the shuffle reproducible.
	sort.Slice(alive, func(i, j int) bool { return alive[i].ID < alive[j].ID })

	want := int(math.Ceil(f.fraction * float64(len(alive))))
	if want < f.minNodes {
		want = f.minNodes
	}
	if want >= len(alive) {
		return alive, nil
	}

	rng := rand.New(rand.NewPCG(f.seed, round))
	rng.Shuffle(len(alive), func(i, j int) {
		alive[i], alive[j] = alive[j], alive[i]
	})

	return alive[:want], nil
}
