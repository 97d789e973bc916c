package shared

import "errors"

var (
	// ErrNotFound indicates a document, item, or account does not exist.
	ErrNotFound = errors.New("not found")
)
