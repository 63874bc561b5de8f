package mirror

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned for entity kinds the engine does not mirror.
var ErrUnknownKind = errors.New("unknown entity kind")

// TypeNotConfiguredError means the CMS has no collection for the kind. It
// is reported as a skipped result, never returned.
type TypeNotConfiguredError struct {
	Kind       Kind
	RemoteType string
}

func (e *TypeNotConfiguredError) Error() string {
	return fmt.Sprintf("strapi type %s for %s is not configured", e.RemoteType, e.Kind)
}

// DomainFetchError wraps a failed read of the canonical entity. It is always
// returned to the caller.
type DomainFetchError struct {
	Kind Kind
	ID   string
	Err  error
}

func (e *DomainFetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *DomainFetchError) Unwrap() error {
	return e.Err
}
