package aprconf

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
)

// Facts are the results collected by a [Runner], keyed by probe identifier.
type Facts map[string]Result

// Result returns the result recorded for id.
func (f Facts) Result(id string) (Result, bool) {
	r, ok := f[id]
	return r, ok
}

// Has folds the result of id into a flag. Missing and failed probes are false.
func (f Facts) Has(id string) bool {
	return f[id].Truthy()
}

// Size returns the integer result of id, or 0 when the probe failed or never ran.
func (f Facts) Size(id string) int {
	r := f[id]
	if r.Kind != KindInt {
		return 0
	}
	return r.Int
}

// Text returns the symbolic result of id.
func (f Facts) Text(id string) string {
	r := f[id]
	if r.Kind != KindText {
		return ""
	}
	return r.Text
}

// runnerConfig holds the configuration of a [Runner].
type runnerConfig struct {
	out         io.Writer
	logger      arbor.ILogger
	preset      Facts
	scratchRoot string
}

// RunnerOption configures a [Runner].
type RunnerOption func(*runnerConfig)

// WithTranscript sets where the "Checking ..." progress lines are written.
func WithTranscript(w io.Writer) RunnerOption {
	return func(c *runnerConfig) {
		c.out = w
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l arbor.ILogger) RunnerOption {
	return func(c *runnerConfig) {
		c.logger = l
	}
}

// WithPreset supplies results that are used instead of executing the
// matching probes, e.g. values measured on the real target of a cross build.
func WithPreset(results map[string]Result) RunnerOption {
	return func(c *runnerConfig) {
		if c.preset == nil {
			c.preset = Facts{}
		}
		maps.Copy(c.preset, results)
	}
}

// WithScratchRoot sets the directory below which per-probe scratch
// directories are created. The default is the system temporary directory.
func WithScratchRoot(dir string) RunnerOption {
	return func(c *runnerConfig) {
		c.scratchRoot = dir
	}
}

// Runner executes probes one at a time against a toolchain and caches
// their results. A Runner is not safe for concurrent use.
type Runner struct {
	tc     Toolchain
	cfg    runnerConfig
	runID  string
	cache  Facts
	order  []string
	logger arbor.ILogger
}

// NewRunner returns a runner for the toolchain.
func NewRunner(tc Toolchain, opts ...RunnerOption) *Runner {
	cfg := runnerConfig{out: io.Discard}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = defaultLogger()
	}
	return &Runner{
		tc:     tc,
		cfg:    cfg,
		runID:  uuid.NewString(),
		cache:  Facts{},
		logger: logger,
	}
}

func defaultLogger() arbor.ILogger {
	return arbor.NewLogger().WithLevelFromString("warn")
}

// Run executes p unless its result is already known, reports progress,
// and returns the result. The error is non-nil only when p is critical and
// its result is unacceptable; the caller must stop configuring then.
func (r *Runner) Run(ctx context.Context, p Probe, cppflags ...string) (Result, error) {
	fmt.Fprintf(r.cfg.out, "Checking %s... ", p.Description)

	res, note := r.resolve(ctx, p, cppflags)
	if note != "" {
		fmt.Fprintf(r.cfg.out, "(%s) %s\n", note, res)
	} else {
		fmt.Fprintln(r.cfg.out, res)
	}

	if !p.Critical {
		return res, nil
	}
	if err := p.check(res); err != nil {
		fmt.Fprintln(r.cfg.out, "Critical test failed.")
		r.logger.Error().
			Str("run_id", r.runID).
			Str("probe", p.ID).
			Err(err).
			Msg("Critical probe failed")
		return res, &CriticalError{Probe: p.ID, Reason: Diagnose(p, res), Err: err}
	}
	return res, nil
}

// RunAll runs the probes in order and stops at the first critical failure.
func (r *Runner) RunAll(ctx context.Context, probes []Probe) (Facts, error) {
	for _, p := range probes {
		if _, err := r.Run(ctx, p); err != nil {
			return r.Facts(), err
		}
	}
	return r.Facts(), nil
}

// Facts returns a copy of every result known to the runner.
func (r *Runner) Facts() Facts {
	return maps.Clone(r.cache)
}

// Executed lists the identifiers of the probes that were evaluated, in order.
// Cache hits are not repeated.
func (r *Runner) Executed() []string {
	return append([]string(nil), r.order...)
}

func (r *Runner) resolve(ctx context.Context, p Probe, cppflags []string) (Result, string) {
	if res, ok := r.cache[p.ID]; ok {
		return res, "cached"
	}
	if res, ok := r.cfg.preset[p.ID]; ok {
		r.store(p.ID, res)
		return res, "preset"
	}

	start := time.Now()
	res := r.execute(ctx, p, cppflags)
	r.store(p.ID, res)

	event := r.logger.Debug().
		Str("run_id", r.runID).
		Str("probe", p.ID).
		Str("mode", p.Mode.String()).
		Str("result", res.String()).
		Dur("elapsed", time.Since(start))
	if res.Err != nil {
		event = event.Err(res.Err)
	}
	event.Msg("Probe finished")
	return res, ""
}

// execute runs p in a private scratch directory that is removed on every path.
func (r *Runner) execute(ctx context.Context, p Probe, cppflags []string) Result {
	dir, err := os.MkdirTemp(r.cfg.scratchRoot, "aprconf-"+p.ID+"-")
	if err != nil {
		return Failed(fmt.Errorf("%w: %w", ErrScratch, err))
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warn().Str("dir", dir).Err(err).Msg("Failed to remove scratch directory")
		}
	}()

	env := Env{Dir: dir, CPPFlags: append([]string(nil), cppflags...)}
	return p.Execute(ctx, r.tc, env)
}

func (r *Runner) store(id string, res Result) {
	r.cache[id] = res
	r.order = append(r.order, id)
}
