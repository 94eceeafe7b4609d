// Package service contains the session coordinator: the transport-agnostic
// orchestration of votes, submissions and queue advances.  Handlers call
// into it; it calls into the stores, the cache and the notifier.
package service

import (
    "errors"
    "fmt"

    "github.com/iliyamo/jam-queue/internal/repository"
)

// Error taxonomy exposed to the transport layer.  Handlers translate these
// with errors.Is into status codes; nothing below the handler ever sees an
// HTTP concept.  Cache failures have no sentinel here on purpose: they are
// logged and swallowed inside the coordinator and never surface.
var (
    // ErrValidation marks malformed input; no mutation was attempted.
    ErrValidation = errors.New("invalid input")
    // ErrAuthentication marks an unknown acting principal; no mutation.
    ErrAuthentication = errors.New("unknown user")
    // ErrAuthorization marks a known principal acting outside its rights.
    ErrAuthorization = errors.New("forbidden")
    // ErrNotFound marks a missing jam, track or user reference.
    ErrNotFound = errors.New("not found")
    // ErrConflict marks a lost race; the caller may re-read and retry.
    ErrConflict = errors.New("conflict")
    // ErrStorage marks a transient infrastructure failure.  Operations are
    // retry-safe: casting the same vote again settles on the same state.
    ErrStorage = errors.New("storage failure")
)

// mapStoreError lifts repository errors into the service taxonomy.
// Anything unrecognized is a transient storage failure.
func mapStoreError(err error) error {
    switch {
    case err == nil:
        return nil
    case errors.Is(err, repository.ErrJamNotFound),
        errors.Is(err, repository.ErrTrackNotFound),
        errors.Is(err, repository.ErrUserNotFound):
        return fmt.Errorf("%w: %v", ErrNotFound, err)
    case errors.Is(err, repository.ErrConflict):
        return fmt.Errorf("%w: %v", ErrConflict, err)
    default:
        return fmt.Errorf("%w: %v", ErrStorage, err)
    }
}
