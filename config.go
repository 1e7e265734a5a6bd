package aprconf

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Settings is the configure run's configuration as read from TOML files.
// Priority: defaults, then each file in order, then APRCONF_* environment
// variables. Command line flags are applied by the caller on top.
type Settings struct {
	Platform   string            `toml:"platform"`
	LargeFiles bool              `toml:"lfs"`
	IPv6       bool              `toml:"ipv6"`
	Prefix     string            `toml:"prefix"`
	Toolchain  ToolchainSettings `toml:"toolchain"`
	Output     OutputSettings    `toml:"output"`
	Logging    LoggingSettings   `toml:"logging"`
	// Results is a TOML file of precomputed probe results, see [LoadResults].
	Results string `toml:"results"`
}

// ToolchainSettings configures the C compiler driver.
type ToolchainSettings struct {
	CC       string   `toml:"cc"`
	CPPFlags []string `toml:"cppflags"`
	CFlags   []string `toml:"cflags"`
	LDFlags  []string `toml:"ldflags"`
	// Timeout bounds each compiler and test program invocation, e.g. "60s".
	Timeout string `toml:"timeout"`
}

// OutputSettings configures where generated headers are written.
type OutputSettings struct {
	Dir       string `toml:"dir"`
	Templates string `toml:"templates"`
}

// LoggingSettings configures diagnostics.
type LoggingSettings struct {
	Level string `toml:"level"`
}

// NewDefaultSettings returns the settings used when nothing is configured.
func NewDefaultSettings() *Settings {
	return &Settings{
		Platform: HostPlatform(),
		Prefix:   DefaultPrefix,
		Toolchain: ToolchainSettings{
			CC:      "cc",
			Timeout: DefaultTimeout.String(),
		},
		Output: OutputSettings{
			Dir: ".",
		},
		Logging: LoggingSettings{
			Level: "warn",
		},
	}
}

// LoadSettings loads settings from the given files. Later files override
// earlier ones; empty paths are skipped.
func LoadSettings(paths ...string) (*Settings, error) {
	s := NewDefaultSettings()

	for i, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse settings file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	if err := applyEnvOverrides(s); err != nil {
		return nil, err
	}
	return s, nil
}

// applyEnvOverrides applies APRCONF_* environment variables.
func applyEnvOverrides(s *Settings) error {
	if v := os.Getenv("APRCONF_PLATFORM"); v != "" {
		s.Platform = v
	}
	if v := os.Getenv("APRCONF_PREFIX"); v != "" {
		s.Prefix = v
	}
	if v := os.Getenv("APRCONF_LFS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("APRCONF_LFS: %w", err)
		}
		s.LargeFiles = b
	}
	if v := os.Getenv("APRCONF_IPV6"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("APRCONF_IPV6: %w", err)
		}
		s.IPv6 = b
	}

	// Toolchain
	if v := os.Getenv("APRCONF_CC"); v != "" {
		s.Toolchain.CC = v
	}
	if v := os.Getenv("APRCONF_CPPFLAGS"); v != "" {
		s.Toolchain.CPPFlags = strings.Fields(v)
	}
	if v := os.Getenv("APRCONF_CFLAGS"); v != "" {
		s.Toolchain.CFlags = strings.Fields(v)
	}
	if v := os.Getenv("APRCONF_LDFLAGS"); v != "" {
		s.Toolchain.LDFlags = strings.Fields(v)
	}
	if v := os.Getenv("APRCONF_TIMEOUT"); v != "" {
		s.Toolchain.Timeout = v
	}

	if v := os.Getenv("APRCONF_OUT"); v != "" {
		s.Output.Dir = v
	}
	if v := os.Getenv("APRCONF_TEMPLATES"); v != "" {
		s.Output.Templates = v
	}
	if v := os.Getenv("APRCONF_RESULTS"); v != "" {
		s.Results = v
	}
	if v := os.Getenv("APRCONF_LOG_LEVEL"); v != "" {
		s.Logging.Level = v
	}
	return nil
}

// Timeout parses the toolchain timeout. An empty value means [DefaultTimeout].
func (s *Settings) Timeout() (time.Duration, error) {
	if s.Toolchain.Timeout == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(s.Toolchain.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid toolchain timeout %q: %w", s.Toolchain.Timeout, err)
	}
	return d, nil
}

// CC returns the compiler driver described by the settings.
func (s *Settings) CC() (*CC, error) {
	timeout, err := s.Timeout()
	if err != nil {
		return nil, err
	}
	cc := NewCC(s.Toolchain.CC)
	cc.CPPFlags = append([]string(nil), s.Toolchain.CPPFlags...)
	cc.CFlags = append([]string(nil), s.Toolchain.CFlags...)
	cc.LDFlags = append([]string(nil), s.Toolchain.LDFlags...)
	cc.Timeout = timeout
	return cc, nil
}

// resultsFile is the layout of a precomputed results file:
//
//	[results]
//	sizeof_long = 4
//	endianness = "big"
//	func_mmap = true
type resultsFile struct {
	Results map[string]any `toml:"results"`
}

// LoadResults reads precomputed probe results. Booleans, integers and
// strings map to the matching [Result] kinds.
func LoadResults(path string) (map[string]Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file %s: %w", path, err)
	}
	var rf resultsFile
	if err := toml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse results file %s: %w", path, err)
	}

	out := make(map[string]Result, len(rf.Results))
	for _, id := range sortedAnyKeys(rf.Results) {
		switch v := rf.Results[id].(type) {
		case bool:
			out[id] = BoolResult(v)
		case int64:
			out[id] = IntResult(int(v))
		case string:
			out[id] = TextResult(v)
		default:
			return nil, fmt.Errorf("results file %s: %s: unsupported value %v (%T)", path, id, v, v)
		}
	}
	return out, nil
}

// LoadTable reads a flat TOML document of key/value pairs into a table.
// Booleans become flags, integers ints, and strings literals.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read table file %s: %w", path, err)
	}
	raw := map[string]any{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Table{}, fmt.Errorf("failed to parse table file %s: %w", path, err)
	}

	vs := make(map[string]Value, len(raw))
	for _, k := range sortedAnyKeys(raw) {
		switch v := raw[k].(type) {
		case bool:
			vs[k] = Flag(v)
		case int64:
			vs[k] = Int(int(v))
		case string:
			vs[k] = Literal(v)
		default:
			return Table{}, fmt.Errorf("table file %s: %s: unsupported value %v (%T)", path, k, v, v)
		}
	}
	return NewTable(vs), nil
}

func sortedAnyKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
