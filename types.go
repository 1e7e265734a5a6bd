package aprconf

import (
	"errors"
	"fmt"
	"strconv"
)

// ResultKind discriminates the payload carried by a [Result].
type ResultKind int

const (
	// KindFailed means the probe could not establish the capability.
	KindFailed ResultKind = iota
	// KindBool carries a yes/no answer.
	KindBool
	// KindInt carries an integer, typically a size in bytes.
	KindInt
	// KindText carries a symbolic constant such as "big" or "little".
	KindText
)

func (k ResultKind) String() string {
	switch k {
	case KindFailed:
		return "failed"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("ResultKind(%d)", k)
	}
}

// Result represents the outcome of a single probe.
type Result struct {
	Kind ResultKind
	Bool bool
	Int  int
	Text string

	// Err is the failure reason when Kind is KindFailed.
	Err error
	// ExitCode is the exit status of the test program for failed run probes.
	// It is zero when the payload never ran.
	ExitCode int
	// Host is true when the value was derived on the build host instead of
	// through the target toolchain.
	Host bool
}

// BoolResult returns a boolean result.
func BoolResult(b bool) Result { return Result{Kind: KindBool, Bool: b} }

// IntResult returns an integer result.
func IntResult(n int) Result { return Result{Kind: KindInt, Int: n} }

// TextResult returns a symbolic result.
func TextResult(s string) Result { return Result{Kind: KindText, Text: s} }

// Failed returns a failed result with the given reason.
func Failed(err error) Result { return Result{Kind: KindFailed, Err: err} }

// FailedExit returns a failed result preserving the exit code of the test program.
func FailedExit(code int, err error) Result {
	return Result{Kind: KindFailed, Err: err, ExitCode: code}
}

// OK reports whether the probe produced a value.
func (r Result) OK() bool {
	return r.Kind != KindFailed
}

// Truthy folds the result into a feature flag. Failed probes are false.
func (r Result) Truthy() bool {
	switch r.Kind {
	case KindBool:
		return r.Bool
	case KindInt:
		return r.Int != 0
	case KindText:
		return r.Text != ""
	default:
		return false
	}
}

// String renders the result the way it appears in the configure transcript.
func (r Result) String() string {
	switch r.Kind {
	case KindBool:
		if r.Bool {
			return "yes"
		}
		return "no"
	case KindInt:
		return strconv.Itoa(r.Int)
	case KindText:
		return r.Text
	default:
		if r.ExitCode != 0 {
			return fmt.Sprintf("no (exit %d)", r.ExitCode)
		}
		return "no"
	}
}

// CriticalError is returned when a probe marked critical fails.
// Configuration cannot continue past it.
type CriticalError struct {
	Probe  string
	Reason string
	Err    error
}

func (e *CriticalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("critical test %s failed: %s: %v", e.Probe, e.Reason, e.Err)
	}
	return fmt.Sprintf("critical test %s failed: %s", e.Probe, e.Reason)
}

func (e *CriticalError) Unwrap() error {
	return e.Err
}

// BuildError describes a toolchain step that did not succeed.
type BuildError struct {
	// Stage is one of "compile", "link" or "run".
	Stage  string
	Output string
	Err    error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
	}
	return e.Stage + " failed"
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

var (
	// ErrNo64BitType is returned when none of the candidate types is 8 bytes wide.
	ErrNo64BitType = errors.New("could not detect a 64-bit integer type")
	// ErrOffTSize is returned when off_t matches none of the measured scalar sizes.
	ErrOffTSize = errors.New("could not determine the size of off_t")
	// ErrScratch is returned when a probe cannot acquire its scratch directory.
	ErrScratch = errors.New("scratch directory unavailable")
	// ErrNotFound marks a type, header, symbol or function the toolchain does not know.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedPlatform is returned for host facilities missing on this platform.
	ErrUnsupportedPlatform = errors.New("not supported on this platform")
)
