package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"reflect"
	"strings"

	"github.com/leodido/aprconf"
	"github.com/leodido/structcli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/thediveo/enumflag/v2"
)

// Build metadata injected via ldflags.
// When built without ldflags (e.g., plain `go build`), these remain
// at their zero values and the version command omits them gracefully.
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "aprconf",
		Short: "Feature probing and header generation for the Apache Portable Runtime",
		Long: `aprconf probes a C toolchain for the headers, functions, type sizes and
run-time behaviours the Apache Portable Runtime depends on, derives the
configuration values, and writes apr.h, apu.h and the private headers.`,
		SilenceUsage: true,
	}

	root.AddCommand(configureCmd())
	root.AddCommand(probesCmd())
	root.AddCommand(expandCmd())
	root.AddCommand(versionCmd())
	return root
}

// ConfigureOptions defines flags for the configure subcommand.
type ConfigureOptions struct {
	Config    string       `flag:"config" flagshort:"c" flagdescr:"TOML settings file"`
	CC        string       `flag:"cc" flagdescr:"C compiler driver"`
	CPPFlags  string       `flag:"cppflags" flagdescr:"Preprocessor flags, space separated"`
	CFlags    string       `flag:"cflags" flagdescr:"Compiler flags, space separated"`
	LDFlags   string       `flag:"ldflags" flagdescr:"Linker flags, space separated"`
	Platform  platformFlag `flag:"platform" flagshort:"p" flagdescr:"Target platform" flagcustom:"true"`
	LFS       bool         `flag:"lfs" flagdescr:"Use the transitional large file API when off_t is 32 bits"`
	IPv6      bool         `flag:"ipv6" flagdescr:"Enable IPv6 when the platform supports it"`
	Prefix    string       `flag:"prefix" flagdescr:"Installation prefix"`
	Out       string       `flag:"out" flagshort:"o" flagdescr:"Directory the headers are written to"`
	Templates string       `flag:"templates" flagdescr:"Directory with templates overriding the built-in ones"`
	Results   string       `flag:"results" flagdescr:"TOML file with precomputed probe results"`
	Timeout   string       `flag:"timeout" flagdescr:"Limit for each compiler and test program run"`
	JSON      bool         `flag:"json" flagshort:"j" flagdescr:"Output the configuration summary in JSON format"`
	LogLevel  string       `flag:"log-level" flagdescr:"Log level (debug, info, warn, error)"`
}

func (o *ConfigureOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func (o *ConfigureOptions) DefinePlatform(name, short, descr string, structField reflect.StructField, fieldValue reflect.Value) (pflag.Value, string) {
	fieldPtr := fieldValue.Addr().Interface().(*platformFlag)
	*fieldPtr = platformFlag(aprconf.HostPlatform())
	return fieldPtr, fmt.Sprintf("%s (%s)", descr, strings.Join(aprconf.PlatformNames(), ", "))
}

func (o *ConfigureOptions) DecodePlatform(input any) (any, error) {
	s, ok := input.(string)
	if !ok {
		return input, nil
	}
	return parsePlatform(s)
}

// settings loads the settings file and applies the flags that were set explicitly.
func (o *ConfigureOptions) settings(flags *pflag.FlagSet) (*aprconf.Settings, error) {
	s, err := aprconf.LoadSettings(o.Config)
	if err != nil {
		return nil, err
	}

	changed := flags.Changed
	if changed("cc") {
		s.Toolchain.CC = o.CC
	}
	if changed("cppflags") {
		s.Toolchain.CPPFlags = strings.Fields(o.CPPFlags)
	}
	if changed("cflags") {
		s.Toolchain.CFlags = strings.Fields(o.CFlags)
	}
	if changed("ldflags") {
		s.Toolchain.LDFlags = strings.Fields(o.LDFlags)
	}
	if changed("timeout") {
		s.Toolchain.Timeout = o.Timeout
	}
	if changed("platform") {
		s.Platform = o.Platform.String()
	}
	if changed("lfs") {
		s.LargeFiles = o.LFS
	}
	if changed("ipv6") {
		s.IPv6 = o.IPv6
	}
	if changed("prefix") {
		s.Prefix = o.Prefix
	}
	if changed("out") {
		s.Output.Dir = o.Out
	}
	if changed("templates") {
		s.Output.Templates = o.Templates
	}
	if changed("results") {
		s.Results = o.Results
	}
	if changed("log-level") {
		s.Logging.Level = o.LogLevel
	}

	level, err := parseLogLevel(s.Logging.Level)
	if err != nil {
		return nil, err
	}
	s.Logging.Level = level
	return s, nil
}

func configureCmd() *cobra.Command {
	opts := &ConfigureOptions{}

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Probe the toolchain and generate the APR headers",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			s, err := opts.settings(c.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt)
			defer stop()

			transcript := c.OutOrStdout()
			if opts.JSON {
				transcript = c.ErrOrStderr()
			}
			cfg, err := runConfigure(ctx, s, transcript)
			if err != nil {
				var ce *aprconf.CriticalError
				if errors.As(err, &ce) {
					if opts.JSON {
						_ = printJSON(c.OutOrStdout(), map[string]any{
							"ok":     false,
							"probe":  ce.Probe,
							"reason": ce.Reason,
						})
					}
					fmt.Fprintf(c.ErrOrStderr(), "FAIL: %s: %s\n", ce.Probe, ce.Reason)
				}
				return err
			}

			if opts.JSON {
				return printJSON(c.OutOrStdout(), configurationJSON(cfg))
			}
			fmt.Fprintln(c.OutOrStdout())
			fmt.Fprint(c.OutOrStdout(), cfg)
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// runConfigure runs the probes, derives the table and writes every output.
func runConfigure(ctx context.Context, s *aprconf.Settings, transcript io.Writer) (*aprconf.Configuration, error) {
	logger := newLogger(s.Logging.Level)

	cc, err := s.CC()
	if err != nil {
		return nil, err
	}

	runnerOpts := []aprconf.RunnerOption{
		aprconf.WithTranscript(transcript),
		aprconf.WithLogger(logger),
	}
	if s.Results != "" {
		preset, err := aprconf.LoadResults(s.Results)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("file", s.Results).Int("results", len(preset)).Msg("Loaded precomputed results")
		runnerOpts = append(runnerOpts, aprconf.WithPreset(preset))
	}

	cfg, err := aprconf.Configure(ctx, cc,
		aprconf.WithPlatform(s.Platform),
		aprconf.WithLargeFiles(s.LargeFiles),
		aprconf.WithIPv6(s.IPv6),
		aprconf.WithPrefix(s.Prefix),
		aprconf.WithRunnerOptions(runnerOpts...),
	)
	if err != nil {
		return nil, err
	}

	outputs, err := aprconf.Outputs(s.Output.Dir, s.Output.Templates, cfg.Platform.Family)
	if err != nil {
		return nil, err
	}
	if err := aprconf.Generate(outputs, cfg.Table, aprconf.WithGenerateLogger(logger)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configurationJSON(cfg *aprconf.Configuration) map[string]any {
	return map[string]any{
		"ok":       true,
		"platform": cfg.Platform.Name,
		"family":   string(cfg.Platform.Family),
		"compiler": cfg.Platform.Compiler.String(),
		"cppflags": cfg.CPPFlags,
		"probes":   len(cfg.Executed),
		"table":    cfg.Table.Strings(),
	}
}

// ProbesOptions defines flags for the probes subcommand.
type ProbesOptions struct {
	JSON bool `flag:"json" flagshort:"j" flagdescr:"Output in JSON format"`
}

func (o *ProbesOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func probesCmd() *cobra.Command {
	opts := &ProbesOptions{}

	cmd := &cobra.Command{
		Use:   "probes",
		Short: "List the probes a configure run may execute",
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			catalog := aprconf.Catalog()

			if opts.JSON {
				rows := make([]map[string]any, 0, len(catalog))
				for _, p := range catalog {
					rows = append(rows, map[string]any{
						"id":          p.ID,
						"mode":        p.Mode.String(),
						"critical":    p.Critical,
						"description": p.Description,
					})
				}
				return printJSON(c.OutOrStdout(), rows)
			}

			for _, p := range catalog {
				marker := ""
				if p.Critical {
					marker = " (critical)"
				}
				fmt.Fprintf(c.OutOrStdout(), "%-40s %-8s %s%s\n", p.ID, p.Mode, p.Description, marker)
			}
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

// ExpandOptions defines flags for the expand subcommand.
type ExpandOptions struct {
	Template string `flag:"template" flagshort:"t" flagdescr:"Template file with @key@ placeholders" flagrequired:"true"`
	Table    string `flag:"table" flagdescr:"TOML file of key/value pairs" flagrequired:"true"`
	Out      string `flag:"out" flagshort:"o" flagdescr:"Output file, standard output when empty"`
}

func (o *ExpandOptions) Attach(c *cobra.Command) error {
	return structcli.Define(c, o)
}

func expandCmd() *cobra.Command {
	opts := &ExpandOptions{}

	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Expand a template against a key/value table",
		Long: `Expand replaces every @key@ placeholder of a template with the value bound
to key in a flat TOML table. Booleans expand to 0 or 1. Any placeholder
without a binding is an error and nothing is written.`,
		PreRunE: func(c *cobra.Command, args []string) error {
			return structcli.Unmarshal(c, opts)
		},
		RunE: func(c *cobra.Command, args []string) error {
			tpl, err := aprconf.LoadTemplate(opts.Template)
			if err != nil {
				return err
			}
			table, err := aprconf.LoadTable(opts.Table)
			if err != nil {
				return err
			}

			if opts.Out != "" {
				return aprconf.Generate([]aprconf.Output{{Template: tpl, Path: opts.Out}}, table)
			}
			text, err := aprconf.Expand(tpl, table)
			if err != nil {
				return err
			}
			fmt.Fprint(c.OutOrStdout(), text)
			return nil
		},
	}

	if err := opts.Attach(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show tool version and host platform",
		RunE: func(c *cobra.Command, args []string) error {
			out := c.OutOrStdout()
			if version != "" {
				fmt.Fprintf(out, "aprconf %s", version)
				if commit != "" {
					fmt.Fprintf(out, " (%s)", commit)
				}
				if date != "" {
					fmt.Fprintf(out, " built %s", date)
				}
				fmt.Fprintln(out)
			} else {
				fmt.Fprintln(out, "aprconf (dev)")
			}
			fmt.Fprintf(out, "Host platform: %s\n", aprconf.HostPlatform())
			return nil
		},
	}
}

func newLogger(level string) arbor.ILogger {
	if level == "" {
		level = "warn"
	}
	return arbor.NewLogger().WithConsoleWriter(models.WriterConfiguration{
		Type:             models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString(level)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// platformFlag is a platform name accepted by --platform.
type platformFlag string

type platformID int

var platformIdentifierMap = func() map[platformID][]string {
	ids := make(map[platformID][]string, len(aprconf.PlatformNames()))
	for i, name := range aprconf.PlatformNames() {
		ids[platformID(i)] = []string{name}
	}
	return ids
}()

func (p *platformFlag) String() string {
	return string(*p)
}

func (p *platformFlag) Set(input string) error {
	name, err := parsePlatform(input)
	if err != nil {
		return err
	}
	*p = name
	return nil
}

func (p *platformFlag) Type() string {
	return "platform"
}

type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarn
	levelError
)

var logLevelIdentifierMap = map[logLevel][]string{
	levelDebug: {"debug"},
	levelInfo:  {"info"},
	levelWarn:  {"warn", "warning"},
	levelError: {"error"},
}

// parseLogLevel normalizes a log level name. Empty means warn.
func parseLogLevel(input string) (string, error) {
	name := strings.TrimSpace(input)
	if name == "" {
		return "warn", nil
	}
	var lvl logLevel
	enumValue := enumflag.New(&lvl, "level", logLevelIdentifierMap, enumflag.EnumCaseInsensitive)
	if err := enumValue.Set(name); err != nil {
		return "", fmt.Errorf("unknown log level: %q (available: debug, info, warn, error)", name)
	}
	return logLevelIdentifierMap[lvl][0], nil
}

func parsePlatform(input string) (platformFlag, error) {
	name := strings.TrimSpace(input)
	var id platformID
	enumValue := enumflag.New(&id, "platform", platformIdentifierMap, enumflag.EnumCaseInsensitive)
	if err := enumValue.Set(name); err != nil {
		return "", fmt.Errorf("unknown platform: %q (available: %s)", name, strings.Join(aprconf.PlatformNames(), ", "))
	}
	return platformFlag(aprconf.PlatformNames()[id]), nil
}
