package graph

import "errors"

var (
	// ErrStoreRequired is returned when a graph store is not provided.
	ErrStoreRequired = errors.New("graph store required")

	// ErrUnresolved is returned when a mention matches no entity.
	ErrUnresolved = errors.New("entity mention could not be resolved")

	// ErrInvalidOption is returned when an option value is out of range.
	ErrInvalidOption = errors.New("invalid graph retriever option")
)
