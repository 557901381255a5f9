package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound               = errors.New("organization not found")
	ErrAlreadyExists          = errors.New("organization already exists")
	ErrAmbiguousMatch         = errors.New("ambiguous match")
	ErrInvalidStage           = errors.New("invalid stage")
	ErrInvalidDate            = errors.New("invalid date")
	ErrStageLocked            = errors.New("stage is locked")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrPartialCommit          = errors.New("partial commit: record updated but activity log write failed")
)

// AmbiguousMatchError carries the candidate list so callers can re-prompt
// instead of guessing. errors.Is(err, ErrAmbiguousMatch) holds for it.
type AmbiguousMatchError struct {
	Query      string
	Candidates []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("query %q matches %d organizations", e.Query, len(e.Candidates))
}

func (e *AmbiguousMatchError) Is(target error) bool {
	return target == ErrAmbiguousMatch
}
