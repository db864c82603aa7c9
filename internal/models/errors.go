package models

import "errors"

var (
	// ErrInsufficientGeometry means too few lines or intersections; callers
	// treat it as "no table".
	ErrInsufficientGeometry = errors.New("insufficient geometry")
	// ErrAmbiguousColumnLayout rejects a band whose separators fall short.
	ErrAmbiguousColumnLayout = errors.New("ambiguous column layout")
	ErrPlacementConflict     = errors.New("word overlaps no column")
	ErrMalformedInput        = errors.New("malformed input")
	ErrNoGrid                = errors.New("no ruling grid in region")
)
