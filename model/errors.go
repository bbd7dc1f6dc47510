package model

import "errors"

// ErrCompoundNotFound is returned by a provider when a compound simply does
// not exist in its database. It is an expected, recoverable per-compound
// condition: callers log it, count it, and continue.
//
// Any other provider error is unit-fatal.
var ErrCompoundNotFound = errors.New("compound not found")
