package aprconf

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
)

// Configuration is the outcome of a configure run.
type Configuration struct {
	Platform Platform
	Table    Table
	// CPPFlags are the preprocessor flags the configure run established,
	// e.g. -D_LARGEFILE64_SOURCE. Consumers building against the generated
	// headers must pass them too.
	CPPFlags []string
	// Results holds every probe result, keyed by probe identifier.
	Results Facts
	// Executed lists probe identifiers in evaluation order.
	Executed []string
}

// configureConfig holds the configuration of a configure run.
type configureConfig struct {
	lfs      bool
	ipv6     bool
	platform string
	prefix   string
	runner   []RunnerOption
}

// ConfigureOption configures [Configure].
type ConfigureOption func(*configureConfig)

// WithLargeFiles requests the transitional large-file API on platforms
// where off_t is 32 bits wide.
func WithLargeFiles(enabled bool) ConfigureOption {
	return func(c *configureConfig) {
		c.lfs = enabled
	}
}

// WithIPv6 enables IPv6 support when the platform provides it.
func WithIPv6(enabled bool) ConfigureOption {
	return func(c *configureConfig) {
		c.ipv6 = enabled
	}
}

// WithPlatform sets the target platform name. The default is the build host.
func WithPlatform(name string) ConfigureOption {
	return func(c *configureConfig) {
		c.platform = name
	}
}

// WithPrefix sets the installation prefix used for the library path.
func WithPrefix(prefix string) ConfigureOption {
	return func(c *configureConfig) {
		c.prefix = prefix
	}
}

// WithRunnerOptions passes options to the probe runner.
func WithRunnerOptions(opts ...RunnerOption) ConfigureOption {
	return func(c *configureConfig) {
		c.runner = append(c.runner, opts...)
	}
}

// DefaultPrefix is the installation prefix used when none is given.
const DefaultPrefix = "/usr/local"

// Configure probes the toolchain in a fixed order and derives the
// configuration table. It stops at the first critical probe failure or
// fatal derivation error.
func Configure(ctx context.Context, tc Toolchain, opts ...ConfigureOption) (*Configuration, error) {
	cfg := configureConfig{platform: HostPlatform(), prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := NewRunner(tc, cfg.runner...)
	s := &sequence{ctx: ctx, r: r}

	s.run(CompilerWorksProbe())
	for _, h := range FlagHeaders {
		s.run(HeaderProbe(h))
	}
	for _, p := range sizeProbes() {
		s.run(p)
	}
	s.run(EndiannessProbe())
	for _, d := range declChecks {
		s.run(DeclProbe(d.Symbol, d.Includes))
	}

	if cfg.lfs && s.facts().Size(ProbeSizeofOffT) == 4 {
		if s.run(LargeFileProbe()).Truthy() {
			s.cppflags = append(s.cppflags, LargeFile64Flag)
		}
		for _, fn := range lfsFunctions {
			s.run(FuncProbe(fn))
		}
	}

	s.run(AtomicBuiltinsProbe())
	for _, t := range typeChecks {
		s.run(TypeProbe(t.Type, t.Includes))
	}
	s.run(TypesCompatibleProbe("ino_t", "unsigned long", sysTypes))

	for _, fn := range mmapFunctions {
		s.run(FuncProbe(fn))
	}
	if s.run(DevZeroProbe()).Truthy() {
		s.run(MmapZeroProbe())
	}
	s.run(SemaphoresProbe())
	s.run(SemunProbe())

	for _, fn := range otherFunctions {
		s.run(FuncProbe(fn))
	}
	for _, fn := range FlagFunctions {
		s.run(FuncProbe(fn))
	}

	if s.facts().Has("decl_IPPROTO_SCTP") {
		s.run(SCTPProbe())
	}
	s.run(TCPNodelayInheritedProbe())
	s.run(NonblockInheritedProbe())
	s.run(EBCDICProbe())

	if s.err != nil {
		return nil, s.err
	}

	facts := r.Facts()
	var cc Compiler
	if id, ok := tc.(Identifier); ok {
		// Identification only labels the result; an unknown compiler is fine.
		cc, _ = id.Identify(ctx)
	}
	platform := newPlatform(cfg.platform, cc, facts)

	table, err := Derive(facts, Steps(platform, cfg.lfs, cfg.ipv6, cfg.prefix)...)
	if err != nil {
		return nil, fmt.Errorf("deriving configuration for %s: %w", platform.Name, err)
	}
	logDerivation(r.logger, platform, table, s.cppflags)

	return &Configuration{
		Platform: platform,
		Table:    table,
		CPPFlags: append([]string(nil), s.cppflags...),
		Results:  facts,
		Executed: r.Executed(),
	}, nil
}

// The derivation sets at most one flag of each group.
var (
	lockFlags       = []string{"flockser", "posixser", "sysvser", "fcntlser", "procpthreadser"}
	anonShmemFlags  = []string{"useshmgetanon", "usemmapzero", "usemmapanon", "usebeosarea"}
	namedShmemFlags = []string{"usemmaptmp", "usemmapshm", "useshmget", "usebeosarea"}
)

func firstFlag(t Table, flags []string) string {
	for _, f := range flags {
		if t.Flag(f) {
			return f
		}
	}
	return "none"
}

func logDerivation(logger arbor.ILogger, p Platform, t Table, cppflags []string) {
	vals := t.Strings()
	logger.Info().
		Str("platform", p.Name).
		Str("compiler", p.Compiler.Name).
		Str("int64", vals["int64_value"]).
		Str("off_t", vals["off_t_value"]).
		Str("off_t_strfn", vals["off_t_strfn"]).
		Str("lock", firstFlag(t, lockFlags)).
		Str("shm_anon", firstFlag(t, anonShmemFlags)).
		Str("shm_named", firstFlag(t, namedShmemFlags)).
		Strs("cppflags", cppflags).
		Int("keys", t.Len()).
		Msg("Derived configuration")
}

// Steps returns the derivation rules in the order they apply.
func Steps(p Platform, lfs, ipv6 bool, prefix string) []Step {
	return []Step{
		ScalarStep,
		Int64Step,
		StdintStep,
		PidFormatStep,
		OffTStep(lfs),
		SizeTStep,
		SocklenStep(p.Name),
		InoTStep,
		HeadersStep(FlagHeaders),
		FunctionsStep(FlagFunctions),
		FeaturesStep,
		NetworkStep(ipv6),
		ResourceStep,
		SharedMemoryStep(p.Family),
		LockStep(p.Family, p.Name),
		PathsStep(p.Family, prefix),
		UtilStep,
		PrivateDefinesStep(p.Name),
	}
}

// sequence runs probes until the first critical failure. After a failure
// every further run is skipped and yields a failed result.
type sequence struct {
	ctx      context.Context
	r        *Runner
	cppflags []string
	err      error
}

func (s *sequence) run(p Probe) Result {
	if s.err != nil {
		return Failed(s.err)
	}
	if err := s.ctx.Err(); err != nil {
		s.err = err
		return Failed(err)
	}
	res, err := s.r.Run(s.ctx, p, s.cppflags...)
	if err != nil {
		s.err = err
	}
	return res
}

func (s *sequence) facts() Facts {
	return s.r.Facts()
}
