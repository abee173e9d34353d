package store

import "errors"

var (
	ErrNotFound     = errors.New("state entry not found")
	ErrInvalidScope = errors.New("invalid scope")
	ErrInvalidKey   = errors.New("invalid key")
)
