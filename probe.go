package aprconf

import (
	"context"
	"errors"
	"fmt"
)

// Mode selects how far a probe's payload is taken through the toolchain.
type Mode int

const (
	// ModeCompile only compiles the payload.
	ModeCompile Mode = iota
	// ModeLink compiles and links the payload.
	ModeLink
	// ModeRun builds and executes the payload; exit status 0 is success.
	ModeRun
	// ModeHost evaluates the probe in Go on the build host.
	ModeHost
)

func (m Mode) String() string {
	switch m {
	case ModeCompile:
		return "compile"
	case ModeLink:
		return "link"
	case ModeRun:
		return "run"
	case ModeHost:
		return "host"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// Env is what a probe may use while executing.
type Env struct {
	// Dir is the probe's private scratch directory.
	Dir string
	// CPPFlags are preprocessor flags established by earlier configuration steps.
	CPPFlags []string
}

// Probe is a single capability test.
type Probe struct {
	ID          string
	Description string
	Mode        Mode
	Source      string

	// Critical probes abort configuration when they fail or when Expect rejects them.
	Critical bool
	// Expect validates the value of a critical probe.
	Expect func(Result) error

	// Codes maps exit codes of run probes to diagnostic reasons.
	Codes map[int]string

	// Exec replaces the default single-job evaluation of Source.
	Exec func(ctx context.Context, tc Toolchain, env Env) Result
}

// Execute runs the probe once against the toolchain. It never panics on
// toolchain failures; they are reported through a failed [Result].
func (p Probe) Execute(ctx context.Context, tc Toolchain, env Env) Result {
	if p.Exec != nil {
		return p.Exec(ctx, tc, env)
	}

	job := Job{Probe: p.ID, Dir: env.Dir, Source: p.Source, CPPFlags: env.CPPFlags}
	switch p.Mode {
	case ModeCompile:
		if err := tc.TryCompile(ctx, job); err != nil {
			return Failed(err)
		}
		return BoolResult(true)
	case ModeLink:
		if err := tc.TryLink(ctx, job); err != nil {
			return Failed(err)
		}
		return BoolResult(true)
	case ModeRun:
		code, err := tc.TryRun(ctx, job)
		if err != nil {
			return Failed(err)
		}
		if code != 0 {
			return FailedExit(code, p.exitReason(code))
		}
		return BoolResult(true)
	default:
		return Failed(fmt.Errorf("probe %s: mode %s needs an evaluator", p.ID, p.Mode))
	}
}

// check validates the result of a critical probe.
func (p Probe) check(r Result) error {
	if !r.OK() {
		if r.Err != nil {
			return r.Err
		}
		return errors.New("probe failed")
	}
	if p.Expect != nil {
		return p.Expect(r)
	}
	return nil
}

func (p Probe) exitReason(code int) error {
	if reason, ok := p.Codes[code]; ok {
		return &ExitError{Code: code, Reason: reason}
	}
	return &ExitError{Code: code}
}

// ExitError is the failure reason of a run probe whose program exited non-zero.
type ExitError struct {
	Code   int
	Reason string
}

func (e *ExitError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("exit status %d: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExpectInt returns an Expect function requiring the integer value want.
func ExpectInt(want int) func(Result) error {
	return func(r Result) error {
		if r.Kind != KindInt || r.Int != want {
			return fmt.Errorf("got %s, want %d", r, want)
		}
		return nil
	}
}
