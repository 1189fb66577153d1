// Package apperr defines the error taxonomy shared by the store, the
// validator and the command surface.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrMalformedMetadata = errors.New("malformed metadata")
	ErrInvalidDocument   = errors.New("invalid document")
)
