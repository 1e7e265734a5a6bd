//go:build !unix

package aprconf

func hostRelease() string { return "" }

func deviceUsable(_ string) (bool, error) {
	return false, ErrUnsupportedPlatform
}
