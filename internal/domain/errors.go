// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates the entity is not in a state that allows the
// operation (already reserved, insufficient coins, concurrent update).
var ErrConflict = errors.New("conflict")

// ErrValidation indicates the request failed input validation.
var ErrValidation = errors.New("validation")

// ErrForbidden indicates the caller does not own the entity it tries to modify.
var ErrForbidden = errors.New("forbidden")
