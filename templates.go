package aprconf

import (
	"embed"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed templates
var embedded embed.FS

// templateTargets maps embedded template files to their output paths
// relative to the output directory. %s is replaced by the platform family.
var templateTargets = []struct{ source, target string }{
	{"apr.h.in", "include/apr.h"},
	{"apu.h.in", "include/apu.h"},
	{"apu_want.h.in", "include/apu_want.h"},
	{"private/apu_select_dbm.h.in", "include/private/apu_select_dbm.h"},
	{"private/apr_private.h.in", "include/arch/%s/apr_private.h"},
}

// DefaultTemplates returns the embedded templates keyed by their name.
func DefaultTemplates() (map[string]Template, error) {
	out := make(map[string]Template, len(templateTargets))
	for _, tt := range templateTargets {
		b, err := embedded.ReadFile(path.Join("templates", tt.source))
		if err != nil {
			return nil, err
		}
		out[tt.source] = Template{Name: tt.source, Text: string(b)}
	}
	return out, nil
}

// Outputs returns the files a configure run generates below outDir.
// A template found under overrideDir replaces the embedded one with the
// same name; an empty overrideDir uses the embedded set only.
func Outputs(outDir, overrideDir string, family Family) ([]Output, error) {
	defaults, err := DefaultTemplates()
	if err != nil {
		return nil, err
	}

	outputs := make([]Output, 0, len(templateTargets))
	for _, tt := range templateTargets {
		tpl := defaults[tt.source]
		if overrideDir != "" {
			custom, err := LoadTemplate(filepath.Join(overrideDir, filepath.FromSlash(tt.source)))
			switch {
			case err == nil:
				tpl = custom
			case !errors.Is(err, fs.ErrNotExist):
				return nil, err
			}
		}
		target := strings.ReplaceAll(tt.target, "%s", string(family))
		outputs = append(outputs, Output{
			Template: tpl,
			Path:     filepath.Join(outDir, filepath.FromSlash(target)),
		})
	}
	return outputs, nil
}

// LoadTemplate reads a template from disk.
func LoadTemplate(path string) (Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Template{}, err
	}
	return Template{Name: filepath.Base(path), Text: string(b)}, nil
}
