package aprconf

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/sys/cpu"
)

// HeaderKey turns a header path into its placeholder stem, e.g.
// "sys/types.h" becomes "sys_typesh".
func HeaderKey(name string) string {
	s := strings.ReplaceAll(name, "/", "_")
	s = strings.ReplaceAll(s, ".", "")
	return strings.ReplaceAll(s, "-", "")
}

// identKey turns a C type or symbol into an identifier fragment.
func identKey(s string) string {
	s = strings.ReplaceAll(s, "*", "p")
	return strings.Join(strings.Fields(s), "_")
}

// HeaderProbe checks that a translation unit including only name compiles.
func HeaderProbe(name string) Probe {
	return Probe{
		ID:          "header_" + HeaderKey(name),
		Description: "for C header file " + name,
		Mode:        ModeCompile,
		Source:      fmt.Sprintf("#include <%s>\n\nint main(void)\n{\n    return 0;\n}\n", name),
	}
}

// FuncProbe checks that the function can be linked.
func FuncProbe(name string) Probe {
	return Probe{
		ID:          "func_" + name,
		Description: "for function " + name + "()",
		Mode:        ModeLink,
		Source: fmt.Sprintf(`#include <assert.h>
#ifdef __cplusplus
extern "C"
#endif
char %[1]s(void);

int main(void)
{
#if defined (__stub_%[1]s) || defined (__stub___%[1]s)
    fail fail fail
#else
    %[1]s();
#endif
    return 0;
}
`, name),
	}
}

// DeclProbe checks that symbol is declared, as a macro or otherwise, after includes.
func DeclProbe(symbol, includes string) Probe {
	return Probe{
		ID:          "decl_" + identKey(symbol),
		Description: "whether " + symbol + " is declared",
		Mode:        ModeCompile,
		Source: fmt.Sprintf(`%s

int main(void)
{
#ifndef %[2]s
    (void) %[2]s;
#endif
    return 0;
}
`, includes, symbol),
	}
}

func typeExistsSource(typ, includes string) string {
	return fmt.Sprintf(`%s

int main(void)
{
    if ((%[2]s *) 0)
        return 0;
    if (sizeof (%[2]s))
        return 0;
    return 0;
}
`, includes, typ)
}

// TypeProbe checks that typ names a complete type after includes.
func TypeProbe(typ, includes string) Probe {
	return Probe{
		ID:          "type_" + identKey(typ),
		Description: "for " + typ,
		Mode:        ModeCompile,
		Source:      typeExistsSource(typ, includes),
	}
}

// sizeCandidates is the order in which sizes are asserted. Common widths go first.
var sizeCandidates = func() []int {
	out := []int{1, 2, 4, 8, 16}
	for n := 3; n <= 32; n++ {
		switch n {
		case 4, 8, 16:
			continue
		}
		out = append(out, n)
	}
	return out
}()

// SizeofProbe measures sizeof(typ) at compile time. Every job is compile
// only, so the probe works when the target cannot execute on the build host.
// A type the compiler rejects fails with [ErrNotFound] wrapping the
// [BuildError]; scratch, start-up and timeout failures keep their own cause.
func SizeofProbe(id, typ, includes string) Probe {
	exists := typeExistsSource(typ, includes)
	return Probe{
		ID:          id,
		Description: "size of " + typ,
		Mode:        ModeCompile,
		Exec: func(ctx context.Context, tc Toolchain, env Env) Result {
			job := Job{Probe: id, Dir: env.Dir, Source: exists, CPPFlags: env.CPPFlags}
			if err := tc.TryCompile(ctx, job); err != nil {
				if rejectedByCompiler(err) {
					return Failed(fmt.Errorf("type %s: %w: %w", typ, ErrNotFound, err))
				}
				return Failed(fmt.Errorf("type %s: %w", typ, err))
			}
			for _, n := range sizeCandidates {
				job.Variant = n
				job.Source = fmt.Sprintf(`%s

int main(void)
{
    static int probe_size[(sizeof (%s) == %d) ? 1 : -1];
    probe_size[0] = 0;
    return probe_size[0];
}
`, includes, typ, n)
				err := tc.TryCompile(ctx, job)
				if err == nil {
					return IntResult(n)
				}
				if !rejectedByCompiler(err) {
					return Failed(fmt.Errorf("size of %s: %w", typ, err))
				}
			}
			return Failed(fmt.Errorf("size of %s is outside the candidate range", typ))
		},
	}
}

// rejectedByCompiler reports whether err comes from a compiler that ran and
// refused the source, as opposed to a scratch, start-up or timeout failure.
func rejectedByCompiler(err error) bool {
	var be *BuildError
	if !errors.As(err, &be) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var execErr *exec.Error
	return !errors.As(err, &execErr)
}

// TypesCompatibleProbe checks whether t1 and t2 denote the same type.
func TypesCompatibleProbe(t1, t2, includes string) Probe {
	return Probe{
		ID:          "compatible_" + identKey(t1) + "_" + identKey(t2),
		Description: fmt.Sprintf("%s is the same as %s", t1, t2),
		Mode:        ModeCompile,
		Source: fmt.Sprintf(`%s

int main(void)
{
    int foo[1 - 2 * !__builtin_types_compatible_p(%s, %s)];
    (void) foo;
    return 0;
}
`, includes, t1, t2),
	}
}

// CompilerWorksProbe is the critical check that the C compiler is usable at all.
func CompilerWorksProbe() Probe {
	return Probe{
		ID:          ProbeCompilerWorks,
		Description: "whether the C compiler works",
		Mode:        ModeCompile,
		Source:      compilerWorksSource,
		Critical:    true,
	}
}

// AtomicBuiltinsProbe executes the __sync builtin sequence. Any violated
// postcondition makes the program exit 1.
func AtomicBuiltinsProbe() Probe {
	return Probe{
		ID:          ProbeAtomicBuiltins,
		Description: "whether the compiler provides atomic builtins",
		Mode:        ModeRun,
		Source:      atomicBuiltinsSource,
		Codes:       map[int]string{1: "atomic builtin postcondition violated"},
	}
}

// LargeFileProbe exercises the transitional 64-bit file API. The scratch
// file is created in the probe's scratch directory.
func LargeFileProbe() Probe {
	p := Probe{
		ID:          ProbeLargeFile64,
		Description: "whether to enable -D_LARGEFILE64_SOURCE",
		Mode:        ModeRun,
		Source:      largeFileSource,
		Codes:       largeFileCodes,
	}
	p.Exec = func(ctx context.Context, tc Toolchain, env Env) Result {
		env.CPPFlags = append(append([]string(nil), env.CPPFlags...), LargeFile64Flag)
		inner := p
		inner.Exec = nil
		return inner.Execute(ctx, tc, env)
	}
	return p
}

// LargeFile64Flag enables the transitional large-file API.
const LargeFile64Flag = "-D_LARGEFILE64_SOURCE"

// MmapZeroProbe maps a pointer-sized region of /dev/zero.
func MmapZeroProbe() Probe {
	return Probe{
		ID:          ProbeMmapZero,
		Description: "for mmap that can map /dev/zero",
		Mode:        ModeRun,
		Source:      mmapZeroSource,
		Codes:       mmapZeroCodes,
	}
}

// DevZeroProbe checks the zero-fill device on the build host.
func DevZeroProbe() Probe {
	return Probe{
		ID:          ProbeDevZero,
		Description: "for /dev/zero",
		Mode:        ModeHost,
		Exec: func(ctx context.Context, tc Toolchain, env Env) Result {
			ok, err := deviceUsable("/dev/zero")
			if err != nil {
				return Failed(err)
			}
			r := BoolResult(ok)
			r.Host = true
			return r
		},
	}
}

// SemaphoresProbe links the named semaphore lifecycle. Linking is enough
// to prove sem_open, sem_close and sem_unlink exist; the program is not run.
func SemaphoresProbe() Probe {
	return Probe{
		ID:          ProbeSemaphores,
		Description: "for sem_open, sem_close, sem_unlink",
		Mode:        ModeLink,
		Source:      semaphoresSource,
	}
}

// SemunProbe checks whether the system headers define union semun.
func SemunProbe() Probe {
	return Probe{
		ID:          ProbeSemun,
		Description: "for union semun in sys/sem.h",
		Mode:        ModeCompile,
		Source:      semunSource,
	}
}

// TCPNodelayInheritedProbe checks whether accepted sockets inherit TCP_NODELAY.
func TCPNodelayInheritedProbe() Probe {
	return Probe{
		ID:          ProbeTCPNodelayInherited,
		Description: "if TCP_NODELAY setting is inherited from listening sockets",
		Mode:        ModeRun,
		Source:      tcpNodelayInheritedSource,
		Codes:       loopbackCodes,
	}
}

// NonblockInheritedProbe checks whether accepted sockets inherit O_NONBLOCK.
func NonblockInheritedProbe() Probe {
	return Probe{
		ID:          ProbeNonblockInherited,
		Description: "whether O_NONBLOCK setting is inherited from listening sockets",
		Mode:        ModeRun,
		Source:      nonblockInheritedSource,
		Codes:       loopbackCodes,
	}
}

// SCTPProbe checks that an SCTP loopback association can be established.
func SCTPProbe() Probe {
	return Probe{
		ID:          ProbeSCTP,
		Description: "whether SCTP is supported",
		Mode:        ModeRun,
		Source:      sctpSource,
		Codes:       loopbackCodes,
	}
}

// EBCDICProbe checks whether the execution character set is EBCDIC.
func EBCDICProbe() Probe {
	return Probe{
		ID:          ProbeEBCDIC,
		Description: "whether system uses EBCDIC",
		Mode:        ModeRun,
		Source:      ebcdicSource,
	}
}

// Byte orders reported by [EndiannessProbe].
const (
	BigEndian    = "big"
	LittleEndian = "little"
)

// EndiannessProbe asks the compiler for the target byte order. Compilers
// that do not advertise __BYTE_ORDER__ fall back to the build host's byte
// order, which is only correct for native builds; such results are marked
// Host and should be preset for cross builds.
func EndiannessProbe() Probe {
	return Probe{
		ID:          ProbeEndianness,
		Description: "for big endianess",
		Mode:        ModeCompile,
		Exec: func(ctx context.Context, tc Toolchain, env Env) Result {
			for variant, order := range []string{BigEndian, LittleEndian} {
				job := Job{
					Probe:    ProbeEndianness,
					Variant:  variant + 1,
					Dir:      env.Dir,
					Source:   fmt.Sprintf(endianSource, strings.ToUpper(order)),
					CPPFlags: env.CPPFlags,
				}
				if err := tc.TryCompile(ctx, job); err == nil {
					return TextResult(order)
				}
			}
			order := LittleEndian
			if cpu.IsBigEndian {
				order = BigEndian
			}
			r := TextResult(order)
			r.Host = true
			return r
		},
	}
}
