//go:build !unix

package aprconf

import "os/exec"

// killGroup relies on the default CommandContext behaviour, which kills
// only the direct child.
func killGroup(_ *exec.Cmd) {}
