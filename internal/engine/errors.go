package engine

import (
	"errors"
	"fmt"

	"github.com/continuum-sec/continuum/internal/fusion"
)

// ErrUnenrolled is returned when authentication is requested for a user with
// no profile and auto-enrollment is disabled. No tier runs.
var ErrUnenrolled = errors.New("engine: user not enrolled")

// ValidationError rejects a malformed request before any tier runs. No state
// is mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("engine: invalid request: %s: %s", e.Field, e.Reason)
}

// ScorerFault reports that an external scorer errored or returned an
// out-of-range value during the named tier. It is never coerced into a
// decision; the caller must treat it as a failure distinct from PASS or
// BLOCK.
type ScorerFault struct {
	Tier fusion.Tier
	Err  error
}

func (e *ScorerFault) Error() string {
	return fmt.Sprintf("engine: scorer fault in %s: %v", e.Tier, e.Err)
}

func (e *ScorerFault) Unwrap() error { return e.Err }
