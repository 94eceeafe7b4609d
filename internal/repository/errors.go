// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// session coordinator to distinguish between different failure
// scenarios. For example, ErrTrackNotFound indicates that a vote or
// lookup referenced a track that does not exist, while ErrConflict
// signals that a concurrent writer got there first (e.g. two advances
// racing for the same unplayed track).
package repository

import "errors"

// ErrJamNotFound is returned when an operation references a jam id
// with no matching row.
var ErrJamNotFound = errors.New("jam not found")

// ErrTrackNotFound is returned when an operation references a track id
// with no matching row.
var ErrTrackNotFound = errors.New("track not found")

// ErrUserNotFound is returned when an operation references a user id
// with no matching row.
var ErrUserNotFound = errors.New("user not found")

// ErrConflict is returned when a mutation lost a race against a
// concurrent writer, such as marking a track played that another
// advance already consumed. The caller may retry after re-reading.
var ErrConflict = errors.New("conflict")
