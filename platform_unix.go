//go:build unix

package aprconf

import (
	"golang.org/x/sys/unix"
)

// hostRelease returns the kernel release string (e.g., "6.1.0-generic").
func hostRelease() string {
	var uname unix.Utsname
	if err := unix.Uname(&uname); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uname.Release[:])
}

// deviceUsable reports whether the device node exists and is readable
// and writable by this process.
func deviceUsable(path string) (bool, error) {
	err := unix.Access(path, unix.R_OK|unix.W_OK)
	if err == nil {
		return true, nil
	}
	if err == unix.ENOENT || err == unix.EACCES {
		return false, nil
	}
	return false, err
}
