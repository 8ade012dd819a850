package models

import "errors"

var (
	// ErrImmutableRecommendation is returned when a stored recommendation snapshot would be modified
	ErrImmutableRecommendation = errors.New("recommendation snapshots are immutable")
)
