package types

import (
	"errors"
	"fmt"
)

// Path accessor errors.
var (
	ErrInvalidPath  = errors.New("invalid path")
	ErrPathNotFound = errors.New("path not found")
)

// Registry errors. Identity errors are returned to the caller; they never
// abort the process.
var (
	ErrDuplicateModule   = errors.New("module already registered")
	ErrModuleNotFound    = errors.New("module not found")
	ErrAlreadyApplied    = errors.New("module already applied")
	ErrApplyInProgress   = errors.New("another module apply is in progress")
	ErrInvalidDescriptor = errors.New("invalid module descriptor")
	ErrMergeTypeMismatch = errors.New("merge type mismatch")
)

// Ingestion errors. Malformed line errors are reported per line and the
// line is skipped; ErrUnsupportedFormat and ErrMalformedXML fail the call.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrMalformedXML      = errors.New("malformed xml")
	ErrMalformedTable    = errors.New("malformed table")
	ErrMalformedCSV      = errors.New("malformed csv")
)

// Value errors.
var (
	ErrInvalidData  = errors.New("invalid data")
	ErrTypeMismatch = errors.New("type mismatch")
)

// Issue describes a recoverable problem on one input line. The line was
// skipped; ingestion continued.
type Issue struct {
	Line int    // 1-based line number in the source text.
	Text string // The offending line, trimmed.
	Err  error  // One of the sentinel errors, possibly wrapped.
}

func (i Issue) Error() string {
	return fmt.Sprintf("line %d: %v", i.Line, i.Err)
}

func (i Issue) Unwrap() error { return i.Err }

// Store errors.
var (
	ErrAlreadyAttached = errors.New("store already attached")
	ErrDetached        = errors.New("store is detached")
	ErrNoSnapshot      = errors.New("no snapshot saved")
)
