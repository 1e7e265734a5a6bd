package aprconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplates(t *testing.T) {
	tpls, err := DefaultTemplates()
	require.NoError(t, err)
	require.Len(t, tpls, len(templateTargets))

	apr := tpls["apr.h.in"]
	assert.Contains(t, apr.Placeholders(), "int64_value")
	assert.Contains(t, apr.Placeholders(), HeaderKey("sys/types.h"))
	private := tpls["private/apr_private.h.in"]
	assert.Contains(t, private.Placeholders(), PrivateDefinesKey)
	assert.Contains(t, private.Text, "#include \"arch/apr_private_common.h\"\n\n#endif")
}

func TestOutputs(t *testing.T) {
	out := t.TempDir()

	outputs, err := Outputs(out, "", FamilyWin32)
	require.NoError(t, err)

	var paths []string
	for _, o := range outputs {
		paths = append(paths, o.Path)
	}
	assert.Equal(t, []string{
		filepath.Join(out, "include", "apr.h"),
		filepath.Join(out, "include", "apu.h"),
		filepath.Join(out, "include", "apu_want.h"),
		filepath.Join(out, "include", "private", "apu_select_dbm.h"),
		filepath.Join(out, "include", "arch", "win32", "apr_private.h"),
	}, paths)
}

func TestOutputs_Override(t *testing.T) {
	override := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(override, "private"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(override, "apu.h.in"), []byte("#define X @x@\n"), 0o644))

	outputs, err := Outputs(t.TempDir(), override, FamilyUnix)
	require.NoError(t, err)

	defaults, err := DefaultTemplates()
	require.NoError(t, err)

	assert.Equal(t, "#define X @x@\n", outputs[1].Template.Text)
	assert.Equal(t, defaults["apr.h.in"].Text, outputs[0].Template.Text)
}

func TestOutputs_UnreadableOverride(t *testing.T) {
	override := t.TempDir()
	// A directory where a template is expected cannot be read as a file.
	require.NoError(t, os.Mkdir(filepath.Join(override, "apr.h.in"), 0o755))

	_, err := Outputs(t.TempDir(), override, FamilyUnix)
	require.Error(t, err)
}
