package aprconf

import (
	"errors"
	"strings"
	"testing"
)

func TestResult(t *testing.T) {
	tests := []struct {
		name   string
		res    Result
		ok     bool
		truthy bool
		str    string
	}{
		{"true", BoolResult(true), true, true, "yes"},
		{"false", BoolResult(false), true, false, "no"},
		{"int", IntResult(8), true, true, "8"},
		{"zero int", IntResult(0), true, false, "0"},
		{"text", TextResult(BigEndian), true, true, "big"},
		{"failed", Failed(errors.New("x")), false, false, "no"},
		{"failed exit", FailedExit(3, errors.New("x")), false, false, "no (exit 3)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.OK(); got != tt.ok {
				t.Errorf("OK() = %v, want %v", got, tt.ok)
			}
			if got := tt.res.Truthy(); got != tt.truthy {
				t.Errorf("Truthy() = %v, want %v", got, tt.truthy)
			}
			if got := tt.res.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
		})
	}
}

func TestResultKind_String(t *testing.T) {
	if got := KindInt.String(); got != "int" {
		t.Errorf("KindInt.String() = %q", got)
	}
	if got := ResultKind(99).String(); !strings.Contains(got, "99") {
		t.Errorf("ResultKind(99).String() = %q", got)
	}
}

func TestCriticalError(t *testing.T) {
	inner := errors.New("exit status 1")
	err := &CriticalError{Probe: ProbeCompilerWorks, Reason: "C compiler cannot create executables", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("errors.Is(CriticalError, inner) = false")
	}
	want := "critical test cc_works failed: C compiler cannot create executables: exit status 1"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	noInner := &CriticalError{Probe: ProbeSizeofInt, Reason: "got 8, want 4"}
	if got := noInner.Error(); got != "critical test sizeof_int failed: got 8, want 4" {
		t.Errorf("Error() = %q", got)
	}
}

func TestBuildError(t *testing.T) {
	inner := errors.New("signal: killed")
	err := &BuildError{Stage: "run", Output: "partial", Err: inner}
	if !errors.Is(err, inner) {
		t.Error("errors.Is(BuildError, inner) = false")
	}
	if got := err.Error(); got != "run failed: signal: killed" {
		t.Errorf("Error() = %q", got)
	}
}
