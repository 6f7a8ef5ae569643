package quests

import "errors"

var (
	// ErrUnknownQuest is returned when a quest id is not in the registry.
	ErrUnknownQuest = errors.New("unknown quest")

	// ErrInvalidInput is returned for malformed user or quest identifiers,
	// before any store is touched.
	ErrInvalidInput = errors.New("invalid input")
)
