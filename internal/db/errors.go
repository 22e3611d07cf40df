package db

import "errors"

// ErrNotFound is returned (wrapped) when a lookup by id matches no row.
var ErrNotFound = errors.New("not found")
