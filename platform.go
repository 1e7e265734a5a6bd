package aprconf

import (
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"
)

// Family is the platform directory a build selects sources and private headers from.
type Family string

const (
	FamilyAIX     Family = "aix"
	FamilyBeOS    Family = "beos"
	FamilyNetWare Family = "netware"
	FamilyOS2     Family = "os2"
	FamilyOS390   Family = "os390"
	FamilyUnix    Family = "unix"
	FamilyWin32   Family = "win32"
)

var allFamilies = []Family{
	FamilyAIX, FamilyBeOS, FamilyNetWare, FamilyOS2, FamilyOS390, FamilyUnix, FamilyWin32,
}

// FamilyOf maps a platform name to its family. Unknown names fall back to unix.
func FamilyOf(name string) Family {
	f := Family(name)
	if slices.Contains(allFamilies, f) {
		return f
	}
	return FamilyUnix
}

// PlatformNames lists the platform names understood by [WithPlatform].
func PlatformNames() []string {
	return []string{
		"aix", "beos", "cygwin", "darwin", "hpux", "irix", "netware",
		"os2", "os390", "posix", "sunos", "win32",
	}
}

// HostPlatform returns the platform name of the build host.
func HostPlatform() string {
	return platformFromGOOS(runtime.GOOS)
}

func platformFromGOOS(goos string) string {
	switch goos {
	case "windows":
		return "win32"
	case "solaris", "illumos":
		return "sunos"
	case "darwin", "ios":
		return "darwin"
	case "aix":
		return "aix"
	default:
		return "posix"
	}
}

// Compiler identifies the C compiler behind a toolchain.
type Compiler struct {
	// Name is "gcc", "clang" or "unknown".
	Name    string
	Version string
}

func (c Compiler) String() string {
	if c.Version == "" {
		return c.Name
	}
	return c.Name + " " + c.Version
}

// IsGCC reports whether the compiler accepts GNU C extensions.
func (c Compiler) IsGCC() bool {
	return c.Name == "gcc" || c.Name == "clang"
}

// compilerFromMacros identifies a compiler from `cc -dM -E` output.
func compilerFromMacros(out string) Compiler {
	defs := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, "#define ")
		if !ok {
			continue
		}
		name, value, _ := strings.Cut(rest, " ")
		defs[name] = strings.TrimSpace(value)
	}

	version := func(major, minor, patch string) string {
		parts := []string{defs[major], defs[minor], defs[patch]}
		for i, p := range parts {
			if _, err := strconv.Atoi(p); err != nil {
				parts[i] = "0"
			}
		}
		return strings.Join(parts, ".")
	}

	switch {
	case defs["__clang__"] != "":
		return Compiler{Name: "clang", Version: version("__clang_major__", "__clang_minor__", "__clang_patchlevel__")}
	case defs["__GNUC__"] != "":
		return Compiler{Name: "gcc", Version: version("__GNUC__", "__GNUC_MINOR__", "__GNUC_PATCHLEVEL__")}
	default:
		return Compiler{Name: "unknown"}
	}
}

// Sizes holds the measured sizes of the C scalar types. Zero means the
// type does not exist on the target.
type Sizes struct {
	Char        int
	Short       int
	Int         int
	Long        int
	LongLong    int
	LongLongAlt int // __int64
	PidT        int
	OffT        int
	SizeT       int
	SsizeT      int
	VoidP       int
}

// Platform is the resolved identity of the configuration target.
// It is built once and not modified afterwards.
type Platform struct {
	Name     string
	Family   Family
	Compiler Compiler
	Sizes    Sizes
	// Release is the host kernel release when the target is the host.
	Release string
}

func (p Platform) String() string {
	return fmt.Sprintf("%s (%s) %s", p.Name, p.Family, p.Compiler)
}

// newPlatform builds the platform descriptor from the measured sizes.
func newPlatform(name string, cc Compiler, f Facts) Platform {
	return Platform{
		Name:     name,
		Family:   FamilyOf(name),
		Compiler: cc,
		Release:  hostRelease(),
		Sizes: Sizes{
			Char:        f.Size(ProbeSizeofChar),
			Short:       f.Size(ProbeSizeofShort),
			Int:         f.Size(ProbeSizeofInt),
			Long:        f.Size(ProbeSizeofLong),
			LongLong:    f.Size(ProbeSizeofLongLong),
			LongLongAlt: f.Size(ProbeSizeofLongLongAlt),
			PidT:        f.Size(ProbeSizeofPidT),
			OffT:        f.Size(ProbeSizeofOffT),
			SizeT:       f.Size(ProbeSizeofSizeT),
			SsizeT:      f.Size(ProbeSizeofSsizeT),
			VoidP:       f.Size(ProbeSizeofVoidP),
		},
	}
}
