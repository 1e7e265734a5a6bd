package aprconf

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
)

// placeholderPattern matches @key@ where key is a C identifier.
var placeholderPattern = regexp.MustCompile(`@([A-Za-z_][A-Za-z0-9_]*)@`)

// Template is a text file with @key@ placeholders.
type Template struct {
	// Name identifies the template in errors, e.g. "apr.h.in".
	Name string
	Text string
}

// Output pairs a template with the file it is expanded into.
type Output struct {
	Template Template
	Path     string
}

// MissingKeysError is returned when a template references keys the table
// does not bind. Keys are sorted and unique.
type MissingKeysError struct {
	Template string
	Keys     []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("template %s: unresolved placeholders: @%s@", e.Template, strings.Join(e.Keys, "@, @"))
}

// Placeholders returns the sorted, unique keys referenced by the template.
func (tpl Template) Placeholders() []string {
	seen := map[string]struct{}{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(tpl.Text, -1) {
		seen[m[1]] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Expand replaces every @key@ placeholder of tpl with the rendered value of
// key. Substituted text is not scanned again. When any key is unbound the
// result is empty and the error is a [*MissingKeysError].
func Expand(tpl Template, t Table) (string, error) {
	var missing []string
	seen := map[string]struct{}{}

	out := placeholderPattern.ReplaceAllStringFunc(tpl.Text, func(match string) string {
		key := match[1 : len(match)-1]
		if v, ok := t.Get(key); ok {
			return v.Render()
		}
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			missing = append(missing, key)
		}
		return match
	})

	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &MissingKeysError{Template: tpl.Name, Keys: missing}
	}
	return out, nil
}

// GenerateOption configures [Generate].
type GenerateOption func(*generateConfig)

type generateConfig struct {
	logger arbor.ILogger
}

// WithGenerateLogger sets the logger that reports each written file and
// the template that stopped generation.
func WithGenerateLogger(l arbor.ILogger) GenerateOption {
	return func(c *generateConfig) {
		c.logger = l
	}
}

// Generate expands every output in memory and writes them only when all
// expansions succeed. The first template with unbound keys is reported and
// no file is written. Each file is replaced atomically.
func Generate(outputs []Output, t Table, opts ...GenerateOption) error {
	cfg := generateConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}

	expanded := make([]string, len(outputs))
	for i, o := range outputs {
		text, err := Expand(o.Template, t)
		if err != nil {
			cfg.logger.Warn().Str("template", o.Template.Name).Err(err).Msg("Template not expanded, no file written")
			return err
		}
		expanded[i] = text
	}

	for i, o := range outputs {
		if err := writeFile(o.Path, expanded[i]); err != nil {
			return fmt.Errorf("writing %s: %w", o.Path, err)
		}
		cfg.logger.Info().Str("template", o.Template.Name).Str("path", o.Path).Msg("Generated header")
	}
	return nil
}

// writeFile writes text to a temporary sibling of path and renames it into place.
func writeFile(path, text string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
