// Package errors holds the sentinel errors shared by the coordinator
// service and its HTTP surface.
package errors

import "errors"

var (
	// ErrNotFound indicates the requested entity is not registered
	// with the coordinator.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidData indicates a malformed request or payload.
	ErrInvalidData = errors.New("invalid data")

	// ErrEntityExists indicates a uniqueness conflict in the ledger.
	ErrEntityExists = errors.New("entity already exists")
)
