// Package sampler selects which hospital nodes participate in a
// training round.
package sampler

import (
	"errors"

	"github.com/hospinet/fedtrain/node"
)

var (
	ErrNoNodes         = errors.New("no nodes were provided")
	ErrDeadNodes       = errors.New("no alive nodes were found")
	ErrBelowMinimum    = errors.New("alive nodes are below the configured minimum")
	ErrInvalidFraction = errors.New("sampling fraction must be in (0, 1]")
)

// Sampler picks the participants for one round from the registry of
// known nodes. Implementations must never return dead nodes.
type Sampler interface {
	Sample(round uint64, nodes []node.Node) ([]node.Node, error)
}
