package rack

import (
	"errors"

	"racksum/internal/placement"
)

var (
	// ErrPlacementConflict is returned when a slot is out of bounds or already occupied
	ErrPlacementConflict = placement.ErrConflict

	ErrInvalidConfiguration = errors.New("invalid configuration structure")
	ErrInvalidImport        = errors.New("invalid import data")
	ErrInvalidSettings      = errors.New("invalid settings")

	ErrRackNotFound     = errors.New("rack not found")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrProviderNotFound = errors.New("provider not found")

	// ErrNotRackable is returned when a provider with no RU size is given a rack position
	ErrNotRackable = errors.New("provider does not occupy rack space")
)
