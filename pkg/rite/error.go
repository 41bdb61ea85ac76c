package rite

import "fmt"

// Phase identifies which stage of loading failed, packed into the
// spec's host-level error code as (phase<<16)|detail (spec.md §7).
type Phase int32

const (
	PhaseFileHeader Phase = iota + 1
	PhaseIREPSection
	PhasePoolLiteral
	PhaseBytecodeVersion
	PhaseNoMemory
)

func (p Phase) String() string {
	switch p {
	case PhaseFileHeader:
		return "FILE_HEADER"
	case PhaseIREPSection:
		return "IREP_SECTION"
	case PhasePoolLiteral:
		return "POOL_LITERAL"
	case PhaseBytecodeVersion:
		return "BYTECODE_VERSION"
	case PhaseNoMemory:
		return "NO_MEMORY"
	default:
		return "UNKNOWN"
	}
}

// LoadError is the loader's packed host-level failure code.
type LoadError struct {
	Phase  Phase
	Detail int32
	Err    error // underlying cause, if any; Unwrap exposes it
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rite: %s (detail %d): %v", e.Phase, e.Detail, e.Err)
	}
	return fmt.Sprintf("rite: %s (detail %d)", e.Phase, e.Detail)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Code packs the error as (phase<<16)|detail, matching spec.md §7's wire
// representation for host-level failures.
func (e *LoadError) Code() int32 { return int32(e.Phase)<<16 | e.Detail }

func newLoadError(phase Phase, detail int32, err error) *LoadError {
	return &LoadError{Phase: phase, Detail: detail, Err: err}
}
