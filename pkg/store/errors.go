package store

import "errors"

var (
	// ErrNoState is returned by New when Options.State is missing or does
	// not produce an observable object.
	ErrNoState = errors.New("store: state is not an observable object")

	// ErrUnknownMutation is returned by Commit for an unregistered mutation.
	ErrUnknownMutation = errors.New("store: unknown mutation")

	// ErrUnknownAction is returned by Dispatch for an unregistered action.
	ErrUnknownAction = errors.New("store: unknown action")

	// ErrUnknownGetter is returned by Getter for an unregistered getter.
	ErrUnknownGetter = errors.New("store: unknown getter")

	// ErrInvalidPayload is returned by the built-in mutations for payloads
	// of the wrong shape.
	ErrInvalidPayload = errors.New("store: invalid payload")

	// ErrSnapshotNotFound is returned by a Persister when no snapshot exists
	// under the requested name.
	ErrSnapshotNotFound = errors.New("store: snapshot not found")
)
