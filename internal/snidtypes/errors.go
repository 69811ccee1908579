package snidtypes

import "errors"

// Sentinel errors matching the taxonomy used across every pipeline stage.
// Callers use errors.Is/errors.As to branch on failure class.
var (
	ErrInvalidGrid            = errors.New("snid: invalid grid parameters")
	ErrGridUninitialized      = errors.New("snid: grid not initialized")
	ErrGridMismatch           = errors.New("snid: grid mismatch between run and templates")
	ErrInvalidSpectrum        = errors.New("snid: invalid spectrum")
	ErrInvalidParameter       = errors.New("snid: invalid parameter")
	ErrTemplatesNotFound      = errors.New("snid: templates not found")
	ErrCorruptTemplateLibrary = errors.New("snid: corrupt template library")
	ErrNumericFailure         = errors.New("snid: numeric failure")
	ErrNoMatches              = errors.New("snid: no good matches")
	ErrClusteringFailed       = errors.New("snid: clustering failed")
	ErrCancelled              = errors.New("snid: cancelled")
	ErrIOFailure              = errors.New("snid: io failure")
)
