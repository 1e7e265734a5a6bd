package aprconf

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Diagnose returns a reason explaining why a probe did not succeed and,
// where possible, what to look at.
func Diagnose(p Probe, r Result) string {
	if r.OK() {
		if p.Expect != nil {
			if err := p.Expect(r); err != nil {
				return fmt.Sprintf("%s: unexpected value: %v", p.Description, err)
			}
		}
		return "supported"
	}

	var exitErr *ExitError
	if errors.As(r.Err, &exitErr) {
		if exitErr.Reason != "" {
			return fmt.Sprintf("test program exited %d: %s", exitErr.Code, exitErr.Reason)
		}
		return fmt.Sprintf("test program exited %d", exitErr.Code)
	}

	if errors.Is(r.Err, ErrScratch) {
		return "cannot create scratch directory; check TMPDIR permissions and free space"
	}
	if errors.Is(r.Err, context.DeadlineExceeded) {
		return "timed out; raise --timeout or check the compiler"
	}
	if errors.Is(r.Err, ErrNotFound) {
		return "not found by the toolchain"
	}

	var buildErr *BuildError
	if errors.As(r.Err, &buildErr) {
		line := firstLine(buildErr.Output)
		switch {
		case p.ID == ProbeCompilerWorks && line != "":
			return "C compiler cannot create executables: " + line
		case p.ID == ProbeCompilerWorks:
			return "C compiler cannot create executables; check --cc and CFLAGS"
		case line != "":
			return fmt.Sprintf("%s failed: %s", buildErr.Stage, line)
		default:
			return buildErr.Stage + " failed"
		}
	}

	if r.Err != nil {
		return r.Err.Error()
	}
	return "not supported"
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
