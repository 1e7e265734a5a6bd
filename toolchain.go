package aprconf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Job is a single unit of work handed to a [Toolchain].
type Job struct {
	// Probe is the identifier of the probe that owns the job.
	Probe string
	// Variant distinguishes several jobs of the same probe, e.g. the
	// candidate size tested by a size probe. Zero when unused.
	Variant int
	// Dir is the probe's private scratch directory. Test programs run
	// with Dir as their working directory.
	Dir string
	// Source is the C translation unit.
	Source string
	// CPPFlags are extra preprocessor flags for this job only.
	CPPFlags []string
}

// Toolchain compiles, links and executes C test programs.
type Toolchain interface {
	// TryCompile compiles the job's source to an object file.
	TryCompile(ctx context.Context, job Job) error
	// TryLink compiles and links the job's source to an executable.
	TryLink(ctx context.Context, job Job) error
	// TryRun builds and executes the job's source and returns its exit code.
	// A non-nil error means the program could not be built or started.
	TryRun(ctx context.Context, job Job) (int, error)
}

// Identifier is implemented by toolchains able to report which compiler they drive.
type Identifier interface {
	Identify(ctx context.Context) (Compiler, error)
}

// CC drives a POSIX/GCC compatible C compiler driver.
type CC struct {
	// Path is the compiler driver, "cc" when empty.
	Path     string
	CPPFlags []string
	CFlags   []string
	LDFlags  []string
	// Env overrides entries of the process environment.
	Env map[string]string
	// Timeout bounds every compiler and test program invocation. Zero means no limit.
	Timeout time.Duration
}

var _ Toolchain = (*CC)(nil)

// NewCC returns a toolchain for the given compiler driver.
func NewCC(path string) *CC {
	if path == "" {
		path = "cc"
	}
	return &CC{Path: path, Timeout: DefaultTimeout}
}

// DefaultTimeout is the per-invocation limit applied by [NewCC].
const DefaultTimeout = 60 * time.Second

const (
	sourceFile = "conftest.c"
	objectFile = "conftest.o"
	binaryFile = "conftest"
)

func (c *CC) TryCompile(ctx context.Context, job Job) error {
	src, err := writeSource(job)
	if err != nil {
		return err
	}
	args := c.args(job, "-c", src, "-o", filepath.Join(job.Dir, objectFile))
	return c.build(ctx, "compile", job.Dir, args)
}

func (c *CC) TryLink(ctx context.Context, job Job) error {
	src, err := writeSource(job)
	if err != nil {
		return err
	}
	args := c.args(job, src, "-o", filepath.Join(job.Dir, binaryFile))
	args = append(args, c.LDFlags...)
	return c.build(ctx, "link", job.Dir, args)
}

func (c *CC) TryRun(ctx context.Context, job Job) (int, error) {
	if err := c.TryLink(ctx, job); err != nil {
		return 0, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, filepath.Join(job.Dir, binaryFile))
	cmd.Dir = job.Dir
	cmd.Env = mergeEnv(os.Environ(), c.Env)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	killGroup(cmd)

	err := cmd.Run()
	if ctx.Err() != nil {
		return 0, &BuildError{Stage: "run", Output: out.String(), Err: ctx.Err()}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	if err != nil {
		return 0, &BuildError{Stage: "run", Output: out.String(), Err: err}
	}
	return 0, nil
}

// Identify reports the compiler behind the driver from its predefined macros.
func (c *CC) Identify(ctx context.Context) (Compiler, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	args := append(append([]string{"-dM", "-E"}, c.CPPFlags...), "-x", "c", os.DevNull)
	cmd := exec.CommandContext(ctx, c.driver(), args...)
	cmd.Env = mergeEnv(os.Environ(), c.Env)
	out, err := cmd.Output()
	if err != nil {
		return Compiler{}, fmt.Errorf("query predefined macros: %w", err)
	}
	return compilerFromMacros(string(out)), nil
}

func (c *CC) driver() string {
	if c.Path == "" {
		return "cc"
	}
	return c.Path
}

func (c *CC) args(job Job, rest ...string) []string {
	args := make([]string, 0, len(c.CPPFlags)+len(job.CPPFlags)+len(c.CFlags)+len(rest))
	args = append(args, c.CPPFlags...)
	args = append(args, job.CPPFlags...)
	args = append(args, c.CFlags...)
	return append(args, rest...)
}

func (c *CC) build(ctx context.Context, stage, dir string, args []string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.driver(), args...)
	cmd.Dir = dir
	cmd.Env = mergeEnv(os.Environ(), c.Env)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	killGroup(cmd)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return &BuildError{Stage: stage, Output: out.String(), Err: err}
	}
	return nil
}

func (c *CC) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

func writeSource(job Job) (string, error) {
	path := filepath.Join(job.Dir, sourceFile)
	if err := os.WriteFile(path, []byte(job.Source), 0o644); err != nil {
		return "", fmt.Errorf("%w: %w", ErrScratch, err)
	}
	return path, nil
}

func mergeEnv(base []string, override map[string]string) []string {
	if len(override) == 0 {
		return base
	}
	envMap := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			envMap[k] = v
		}
	}
	for k, v := range override {
		envMap[k] = v
	}
	keys := make([]string, 0, len(envMap))
	for k := range envMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+envMap[k])
	}
	return out
}
