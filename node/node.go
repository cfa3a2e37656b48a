// Package node describes a hospital node participating in the federation.
package node

import "time"

// Node is the coordinator's view of one registered hospital client.
type Node struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Alive    bool      `json:"alive"`
	LastSeen time.Time `json:"last_seen"`
	Rounds   int       `json:"rounds"`
}

// SetAlive marks the node live if it reported within the liveness window.
func (n *Node) SetAlive(window time.Duration) {
	n.Alive = time.Since(n.LastSeen) <= window
}

// Page is a paginated node listing.
type Page struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
	Total  uint64 `json:"total"`
	Nodes  []Node `json:"nodes"`
}
