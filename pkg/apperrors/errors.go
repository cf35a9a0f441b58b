package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidReference  = errors.New("invalid entity reference")
	ErrInvalidTransition = errors.New("invalid status transition")
)
