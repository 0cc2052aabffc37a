// Package store defines sentinel errors shared by store implementations.
// Business-rule failures (quota, exhausted inventory, active loans) are
// reported as domain errors by the implementation; the sentinels here cover
// the plain CRUD outcomes.
package store

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned on unique constraint violations
	// (duplicate username or ISBN).
	ErrAlreadyExists = errors.New("already exists")
)
