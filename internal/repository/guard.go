package repository

import (
	"errors"
	"fmt"
)

// Kind selects which failure a guard raises.
type Kind int

const (
	KindNotFound Kind = iota
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels matched by GuardError.Is.
var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document already exists")
)

// GuardError is raised by NeedDocument, NeedDocumentState and DontNeedDocument.
type GuardError struct {
	Kind       Kind
	Collection string
	ID         string
	Message    string
}

func (e *GuardError) Error() string {
	return e.Message
}

// Is reports whether target is the sentinel for the error's kind.
func (e *GuardError) Is(target error) bool {
	switch e.Kind {
	case KindNotFound:
		return target == ErrNotFound
	case KindConflict:
		return target == ErrConflict
	}
	return false
}

// GuardOption customizes a guard failure.
type GuardOption func(*guardConfig)

type guardConfig struct {
	message string
	kind    Kind
	failure func(message string) error
}

// WithMessage replaces the default message.
func WithMessage(msg string) GuardOption {
	return func(c *guardConfig) { c.message = msg }
}

// WithKind changes the kind of the raised GuardError.
func WithKind(kind Kind) GuardOption {
	return func(c *guardConfig) { c.kind = kind }
}

// WithFailure builds the returned error from the message instead of a GuardError.
func WithFailure(fn func(message string) error) GuardOption {
	return func(c *guardConfig) { c.failure = fn }
}

func notFoundMessage(collection, id string) string {
	return fmt.Sprintf("Resource with id '%s' not found in document store '%s'", id, collection)
}

func conflictMessage(collection, id string) string {
	return fmt.Sprintf("Resource with id '%s' already exists in document store '%s'", id, collection)
}

func guardFailure(collection, id string, kind Kind, defaultMessage string, opts []GuardOption) error {
	cfg := guardConfig{message: defaultMessage, kind: kind}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.failure != nil {
		return cfg.failure(cfg.message)
	}
	return &GuardError{Kind: cfg.kind, Collection: collection, ID: id, Message: cfg.message}
}
