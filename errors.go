package osmnode

import (
	"fmt"
)

// ErrInput indicates a malformed or unreadable source dataset. It aborts
// the whole build before any output is published.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrInput struct {
	cause error
}

func (e *ErrInput) Error() string {
	return fmt.Sprintf("input error: %v", e.cause)
}

func (e *ErrInput) Unwrap() error { return e.cause }

// ErrMissingFeature indicates that a requested feature has no index file
// of an acceptable format in the directory. It is reported to the caller
// rather than treated as an empty set, so "not indexed" is never mistaken
// for "no matches".
type ErrMissingFeature struct {
	Feature string
	Dir     string
}

func (e *ErrMissingFeature) Error() string {
	return fmt.Sprintf("no index for feature %q in %s", e.Feature, e.Dir)
}
