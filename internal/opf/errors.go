package opf

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingArguments is returned by Manifest.Lookup when neither a path
	// nor an id is given.
	ErrMissingArguments = errors.New("opf: item lookup needs a path or an id")

	// ErrDanglingReference indicates a reference that matches no manifest entry.
	ErrDanglingReference = errors.New("opf: dangling reference")
)

// AmbiguousReferenceError reports a manifest id shared by more than one
// entry. The document is corrupt; the lookup cannot pick an entry.
type AmbiguousReferenceError struct {
	ID    string
	Count int
}

func (e *AmbiguousReferenceError) Error() string {
	return fmt.Sprintf("opf: manifest id %q matches %d entries", e.ID, e.Count)
}

// ReferenceError reports an href in a section of the package document that
// does not resolve to a manifest entry.
type ReferenceError struct {
	Section string
	Href    string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("opf: %s reference %q does not resolve to a manifest item", e.Section, e.Href)
}

func (e *ReferenceError) Unwrap() error {
	return ErrDanglingReference
}

// Normalization phases reported by PhaseError.
const (
	PhaseContent  = "content"
	PhaseRewrite  = "rewrite"
	PhaseRelocate = "relocate"
)

// PhaseError wraps a failure of one manifest normalization phase. Earlier
// phases have already been applied to the package when it is returned.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("opf: manifest %s phase failed: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}
