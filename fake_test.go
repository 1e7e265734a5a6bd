package aprconf

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

// fakeToolchain answers jobs from canned data instead of running a compiler.
type fakeToolchain struct {
	// sizes maps size probe identifiers to the size of their type.
	// A size probe missing from the map reports an unknown type.
	sizes map[string]int
	// endian is the byte order the compiler advertises, "" for none.
	endian string
	// fail lists probes whose compile and link jobs fail.
	fail map[string]bool
	// exit maps run probes to the exit code of their program.
	exit map[string]int
	// onRun is called before a run job exits.
	onRun func(Job)

	jobs []Job
}

var errFakeBuild = errors.New("fake build failure")

// newFakeToolchain returns a toolchain describing a little-endian LP64 target.
func newFakeToolchain() *fakeToolchain {
	return &fakeToolchain{
		sizes: map[string]int{
			ProbeSizeofChar:     1,
			ProbeSizeofShort:    2,
			ProbeSizeofInt:      4,
			ProbeSizeofLong:     8,
			ProbeSizeofLongLong: 8,
			ProbeSizeofPidT:     4,
			ProbeSizeofOffT:     8,
			ProbeSizeofSizeT:    8,
			ProbeSizeofSsizeT:   8,
			ProbeSizeofVoidP:    8,
		},
		endian: LittleEndian,
		fail:   map[string]bool{},
		exit:   map[string]int{},
	}
}

func (f *fakeToolchain) TryCompile(_ context.Context, job Job) error {
	f.jobs = append(f.jobs, job)

	if strings.HasPrefix(job.Probe, "sizeof_") {
		size, ok := f.sizes[job.Probe]
		if !ok {
			return &BuildError{Stage: "compile", Output: "error: unknown type name", Err: errFakeBuild}
		}
		if job.Variant == 0 || job.Variant == size {
			return nil
		}
		return &BuildError{Stage: "compile", Output: "error: size of array is negative", Err: errFakeBuild}
	}

	if job.Probe == ProbeEndianness {
		switch {
		case job.Variant == 1 && f.endian == BigEndian:
			return nil
		case job.Variant == 2 && f.endian == LittleEndian:
			return nil
		default:
			return &BuildError{Stage: "compile", Err: errFakeBuild}
		}
	}

	if f.fail[job.Probe] {
		return &BuildError{Stage: "compile", Output: "conftest.c:1: error", Err: errFakeBuild}
	}
	return nil
}

func (f *fakeToolchain) TryLink(ctx context.Context, job Job) error {
	if f.fail[job.Probe] {
		f.jobs = append(f.jobs, job)
		return &BuildError{Stage: "link", Output: "undefined reference", Err: errFakeBuild}
	}
	return f.TryCompile(ctx, job)
}

func (f *fakeToolchain) TryRun(ctx context.Context, job Job) (int, error) {
	if err := f.TryLink(ctx, job); err != nil {
		return 0, err
	}
	if f.onRun != nil {
		f.onRun(job)
	}
	return f.exit[job.Probe], nil
}

// probesSeen returns the distinct probe identifiers of the recorded jobs, in order.
func (f *fakeToolchain) probesSeen() []string {
	var out []string
	seen := map[string]bool{}
	for _, j := range f.jobs {
		if !seen[j.Probe] {
			seen[j.Probe] = true
			out = append(out, j.Probe)
		}
	}
	return out
}

// jobsFor returns the recorded jobs of one probe.
func (f *fakeToolchain) jobsFor(probe string) []Job {
	var out []Job
	for _, j := range f.jobs {
		if j.Probe == probe {
			out = append(out, j)
		}
	}
	return out
}

// captureLogs registers an arbor channel for the rest of the test. The
// returned function waits for the first event with the given message.
func captureLogs(t *testing.T) (arbor.ILogger, func(msg string) models.LogEvent) {
	t.Helper()
	ch := make(chan []models.LogEvent, 1024)
	logger := arbor.NewLogger()
	logger.SetChannelWithBuffer(t.Name(), ch, 1, 10*time.Millisecond)
	t.Cleanup(func() { logger.UnregisterChannel(t.Name()) })

	wait := func(msg string) models.LogEvent {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case batch := <-ch:
				for _, e := range batch {
					if e.Message == msg {
						return e
					}
				}
			case <-timeout:
				t.Fatalf("no %q log event", msg)
				return models.LogEvent{}
			}
		}
	}
	return logger, wait
}
