package aprconf

// Identifiers of the probes other code refers to directly.
const (
	ProbeCompilerWorks       = "cc_works"
	ProbeSizeofChar          = "sizeof_char"
	ProbeSizeofInt           = "sizeof_int"
	ProbeSizeofLong          = "sizeof_long"
	ProbeSizeofShort         = "sizeof_short"
	ProbeSizeofLongLong      = "sizeof_long_long"
	ProbeSizeofLongLongAlt   = "sizeof_longlong"
	ProbeSizeofPidT          = "sizeof_pid_t"
	ProbeSizeofOffT          = "sizeof_off_t"
	ProbeSizeofSizeT         = "sizeof_size_t"
	ProbeSizeofSsizeT        = "sizeof_ssize_t"
	ProbeSizeofVoidP         = "sizeof_voidp"
	ProbeEndianness          = "endianness"
	ProbeAtomicBuiltins      = "atomic_builtins"
	ProbeLargeFile64         = "largefile64"
	ProbeMmapZero            = "mmap_dev_zero"
	ProbeDevZero             = "dev_zero"
	ProbeSemaphores          = "sem_open"
	ProbeSemun               = "union_semun"
	ProbeTCPNodelayInherited = "tcp_nodelay_inherited"
	ProbeNonblockInherited   = "o_nonblock_inherited"
	ProbeSCTP                = "sctp"
	ProbeEBCDIC              = "ebcdic"
	ProbeInoTUnsignedLong    = "compatible_ino_t_unsigned_long"
)

const sysTypes = "#include <sys/types.h>"

// FlagHeaders are the headers whose presence becomes an APR_HAVE_* flag.
var FlagHeaders = []string{
	"ByteOrder.h", "conio.h", "crypt.h", "ctype.h", "dir.h", "dirent.h",
	"dl.h", "dlfcn.h", "errno.h", "fcntl.h", "grp.h", "io.h", "limits.h",
	"mach-o/dyld.h", "malloc.h", "memory.h", "netdb.h", "osreldate.h",
	"poll.h", "process.h", "pwd.h", "semaphore.h", "signal.h", "stdarg.h",
	"stddef.h", "stdio.h", "stdlib.h", "string.h", "strings.h", "sysapi.h",
	"sysgtime.h", "termios.h", "time.h", "tpfeq.h", "tpfio.h", "unistd.h",
	"unix.h", "windows.h", "winsock2.h", "arpa/inet.h", "kernel/OS.h",
	"net/errno.h", "netinet/in.h", "netinet/sctp.h", "netinet/tcp.h",
	"netinet/sctp_uio.h", "sys/file.h", "sys/ioctl.h", "sys/mman.h",
	"sys/param.h", "sys/poll.h", "sys/resource.h", "sys/select.h",
	"sys/sem.h", "sys/sendfile.h", "sys/signal.h", "sys/socket.h",
	"sys/sockio.h", "sys/stat.h", "sys/sysctl.h", "sys/syslimits.h",
	"sys/time.h", "sys/types.h", "sys/uio.h", "sys/un.h", "sys/wait.h",
	"pthread.h", "stdint.h",
}

// FlagFunctions are the functions whose presence becomes a have_<name> flag.
var FlagFunctions = []string{
	"inet_addr", "inet_network", "memmove", "sigaction", "sigsuspend",
	"sigwait", "strdup", "stricmp", "strcasecmp", "strncasecmp", "strnicmp",
	"strstr", "memchr", "fork", "mmap", "uuid_create", "uuid_generate",
	"waitpid",
}

// mmapFunctions feed the shared memory method selection.
var mmapFunctions = []string{
	"mmap", "munmap", "shm_open", "shm_unlink", "shmget", "shmat", "shmdt", "shmctl",
}

// lfsFunctions are the transitional LFS functions checked when large
// file support is requested and off_t is 32 bits wide.
var lfsFunctions = []string{
	"mmap64", "sendfile64", "sendfilev64", "mkstemp64", "readdir64_r",
}

// sizeProbes measure the scalar types in the order the runner checks
// them. int and short are critical: the format derivation assumes a
// 4-byte int and a 2-byte short.
func sizeProbes() []Probe {
	intProbe := SizeofProbe(ProbeSizeofInt, "int", "")
	intProbe.Critical = true
	intProbe.Expect = ExpectInt(4)

	shortProbe := SizeofProbe(ProbeSizeofShort, "short", "")
	shortProbe.Critical = true
	shortProbe.Expect = ExpectInt(2)

	return []Probe{
		SizeofProbe(ProbeSizeofChar, "char", ""),
		intProbe,
		SizeofProbe(ProbeSizeofLong, "long", ""),
		shortProbe,
		SizeofProbe(ProbeSizeofLongLong, "long long", ""),
		SizeofProbe(ProbeSizeofLongLongAlt, "__int64", ""),
		SizeofProbe(ProbeSizeofPidT, "pid_t", sysTypes),
		SizeofProbe(ProbeSizeofOffT, "off_t", sysTypes),
		SizeofProbe(ProbeSizeofSizeT, "size_t", sysTypes),
		SizeofProbe(ProbeSizeofSsizeT, "ssize_t", sysTypes),
		SizeofProbe(ProbeSizeofVoidP, "void*", ""),
	}
}

// declChecks are the symbols whose declaration is probed, with their includes.
var declChecks = []struct{ Symbol, Includes string }{
	{"INT64_C", "#include <stdint.h>"},
	{"F_SETLK", "#include <fcntl.h>"},
	{"LOCK_EX", "#include <sys/file.h>"},
	{"SEM_UNDO", sysTypes + "\n#include <sys/ipc.h>\n#include <sys/sem.h>"},
	{"MAP_ANON", sysTypes + "\n#include <sys/mman.h>"},
	{"IPC_PRIVATE", sysTypes + "\n#include <sys/ipc.h>"},
	{"TCP_CORK", "#include <netinet/tcp.h>"},
	{"TCP_NOPUSH", "#include <netinet/tcp.h>"},
	{"SO_ACCEPTFILTER", "#include <sys/socket.h>"},
	{"IPPROTO_SCTP", "#include <netinet/in.h>"},
	{"PTHREAD_PROCESS_SHARED", "#include <pthread.h>"},
}

// typeChecks are the types whose existence is probed, with their includes.
var typeChecks = []struct{ Type, Includes string }{
	{"size_t", sysTypes},
	{"ssize_t", sysTypes},
	{"socklen_t", "#include <sys/socket.h>"},
	{"struct in_addr", "#include <netinet/in.h>"},
	{"struct sockaddr_storage", "#include <netinet/in.h>"},
	{"struct sockaddr_in6", "#include <netinet/in.h>"},
	{"struct rlimit", "#include <sys/resource.h>"},
	{"struct iovec", sysTypes + "\n#include <sys/uio.h>"},
	{"struct sockaddr_un", "#include <sys/un.h>"},
}

// otherFunctions are probed by the configuration sequence besides FlagFunctions.
var otherFunctions = []string{
	"flock", "getrlimit", "setrlimit", "getaddrinfo", "getnameinfo",
	"semget", "semctl", "fcntl", "pthread_mutexattr_setpshared",
}

// Catalog returns the canonical probe set: every probe the configuration
// sequence may run, once, in a stable order.
func Catalog() []Probe {
	cs := newProbeSet()
	cs.add(CompilerWorksProbe())
	for _, h := range FlagHeaders {
		cs.add(HeaderProbe(h))
	}
	for _, p := range sizeProbes() {
		cs.add(p)
	}
	cs.add(EndiannessProbe())
	for _, d := range declChecks {
		cs.add(DeclProbe(d.Symbol, d.Includes))
	}
	cs.add(LargeFileProbe())
	for _, f := range lfsFunctions {
		cs.add(FuncProbe(f))
	}
	cs.add(AtomicBuiltinsProbe())
	for _, t := range typeChecks {
		cs.add(TypeProbe(t.Type, t.Includes))
	}
	cs.add(TypesCompatibleProbe("ino_t", "unsigned long", sysTypes))
	for _, f := range mmapFunctions {
		cs.add(FuncProbe(f))
	}
	cs.add(DevZeroProbe())
	cs.add(MmapZeroProbe())
	cs.add(SemaphoresProbe())
	cs.add(SemunProbe())
	for _, f := range otherFunctions {
		cs.add(FuncProbe(f))
	}
	for _, f := range FlagFunctions {
		cs.add(FuncProbe(f))
	}
	cs.add(SCTPProbe())
	cs.add(TCPNodelayInheritedProbe())
	cs.add(NonblockInheritedProbe())
	cs.add(EBCDICProbe())
	return cs.probes
}

// probeSet keeps the first probe registered under each identifier.
type probeSet struct {
	probes []Probe
	seen   map[string]struct{}
}

func newProbeSet() *probeSet {
	return &probeSet{seen: map[string]struct{}{}}
}

func (ps *probeSet) add(p Probe) {
	if _, ok := ps.seen[p.ID]; ok {
		return
	}
	ps.seen[p.ID] = struct{}{}
	ps.probes = append(ps.probes, p)
}
