package aprconf

import (
	"fmt"
	"sort"
	"strings"
)

// Int64Choice is the set of values fixed by the C type chosen for apr_int64_t.
type Int64Choice struct {
	// Probe is the size probe that selected the type.
	Probe    string
	Type     string
	Literal  string
	ULiteral string
	Fmt      string
	UFmt     string
	HexFmt   string
	StrFn    string
}

// int64Candidates are tried in order; the first one 8 bytes wide wins.
var int64Candidates = []Int64Choice{
	{
		Probe: ProbeSizeofInt, Type: "int",
		Literal: "(val)", ULiteral: "(val##U)",
		Fmt: "d", UFmt: "u", HexFmt: "x", StrFn: "strtoi",
	},
	{
		Probe: ProbeSizeofLong, Type: "long",
		Literal: "(val##L)", ULiteral: "(val##UL)",
		Fmt: "ld", UFmt: "lu", HexFmt: "lx", StrFn: "strtol",
	},
	{
		// Linux, Solaris and FreeBSD printf all understand ll; 4.4BSD's q is
		// kept for the __int64 spelling only.
		Probe: ProbeSizeofLongLong, Type: "long long",
		Literal: "(val##LL)", ULiteral: "(val##ULL)",
		Fmt: "lld", UFmt: "llu", HexFmt: "llx", StrFn: "strtoll",
	},
	{
		Probe: ProbeSizeofLongLongAlt, Type: "__int64",
		Literal: "(val##LL)", ULiteral: "(val##ULL)",
		Fmt: "qd", UFmt: "qu", HexFmt: "qx", StrFn: "strtoll",
	},
}

// SelectInt64 picks the first candidate type whose measured size is 8.
func SelectInt64(f Facts) (Int64Choice, error) {
	for _, c := range int64Candidates {
		if f.Size(c.Probe) == 8 {
			return c, nil
		}
	}
	return Int64Choice{}, ErrNo64BitType
}

// Int64Step binds apr_int64_t and its literal and format macros.
func Int64Step(t Table, f Facts) (Table, error) {
	c, err := SelectInt64(f)
	if err != nil {
		return t, err
	}
	return t.WithAll(map[string]Value{
		"int64_literal":    Code("#define APR_INT64_C(val) " + c.Literal),
		"uint64_literal":   Code("#define APR_UINT64_C(val) " + c.ULiteral),
		"int64_t_fmt":      Format("APR_INT64_T_FMT", c.Fmt),
		"uint64_t_fmt":     Format("APR_UINT64_T_FMT", c.UFmt),
		"uint64_t_hex_fmt": Format("APR_UINT64_T_HEX_FMT", c.HexFmt),
		"int64_value":      TypeName(c.Type),
		"long_value":       TypeName(c.Type),
		"int64_strfn":      Literal(c.StrFn),
		"stdint":           Flag(false),
	}), nil
}

// StdintStep prefers the standard INT64_C/UINT64_C macros when <stdint.h> declares them.
func StdintStep(t Table, f Facts) (Table, error) {
	if !f.Has("decl_INT64_C") {
		return t, nil
	}
	return t.WithAll(map[string]Value{
		"int64_literal":  Code("#define APR_INT64_C(val) INT64_C(val)"),
		"uint64_literal": Code("#define APR_UINT64_C(val) UINT64_C(val)"),
		"stdint":         Flag(true),
	}), nil
}

// PidFormatStep matches sizeof(pid_t) against short, int, long and long long.
func PidFormatStep(t Table, f Facts) (Table, error) {
	pid := f.Size(ProbeSizeofPidT)
	var v Value
	switch {
	case pid != 0 && pid == f.Size(ProbeSizeofShort):
		v = Format("APR_PID_T_FMT", "hd")
	case pid != 0 && pid == f.Size(ProbeSizeofInt):
		v = Format("APR_PID_T_FMT", "d")
	case pid != 0 && pid == f.Size(ProbeSizeofLong):
		v = Format("APR_PID_T_FMT", "ld")
	case pid != 0 && pid == f.Size(ProbeSizeofLongLong):
		v = FormatAlias("APR_PID_T_FMT", "APR_INT64_T_FMT")
	default:
		v = Code("#error Can not determine the proper size for pid_t")
	}
	return t.With("pid_t_fmt", v), nil
}

// OffTBranch identifies which off_t rule fired.
type OffTBranch int

const (
	// OffTLargeFile maps apr_off_t to off64_t.
	OffTLargeFile OffTBranch = iota + 1
	// OffTLong hard-codes apr_off_t to long so that consumers defining
	// _FILE_OFFSET_BITS see the same ABI.
	OffTLong
	// OffTNative keeps off_t.
	OffTNative
	// OffTFallback is used when off_t does not exist.
	OffTFallback
)

func (b OffTBranch) String() string {
	switch b {
	case OffTLargeFile:
		return "off64_t"
	case OffTLong:
		return "long"
	case OffTNative:
		return "off_t"
	case OffTFallback:
		return "apr_int32_t"
	default:
		return fmt.Sprintf("OffTBranch(%d)", b)
	}
}

// SelectOffT returns the off_t rule that applies. lfs is the user's
// request for large file support.
func SelectOffT(f Facts, lfs bool) OffTBranch {
	off := f.Size(ProbeSizeofOffT)
	switch {
	case lfs && off == 4:
		return OffTLargeFile
	case off == 4 && f.Size(ProbeSizeofLong) == 4:
		return OffTLong
	case off != 0:
		return OffTNative
	default:
		return OffTFallback
	}
}

// OffTStep binds apr_off_t, its format and its string conversion function.
func OffTStep(lfs bool) Step {
	return func(t Table, f Facts) (Table, error) {
		off := f.Size(ProbeSizeofOffT)
		branch := SelectOffT(f, lfs)
		vs := map[string]Value{}
		switch branch {
		case OffTLargeFile:
			vs["off_t_fmt"] = FormatAlias("APR_OFF_T_FMT", "APR_INT64_T_FMT")
			vs["off_t_value"] = TypeName("off64_t")
			vs["off_t_strfn"] = Literal("apr_strtoi64")
		case OffTLong:
			vs["off_t_fmt"] = Format("APR_OFF_T_FMT", "ld")
			vs["off_t_value"] = TypeName("long")
			vs["off_t_strfn"] = Literal("strtol")
		case OffTNative:
			vs["off_t_value"] = TypeName("off_t")
			switch off {
			case f.Size(ProbeSizeofLong):
				vs["off_t_fmt"] = Format("APR_OFF_T_FMT", "ld")
				vs["off_t_strfn"] = Literal("strtol")
			case f.Size(ProbeSizeofInt):
				vs["off_t_fmt"] = Format("APR_OFF_T_FMT", "d")
				vs["off_t_strfn"] = Literal("strtoi")
			case f.Size(ProbeSizeofLongLong):
				vs["off_t_fmt"] = FormatAlias("APR_OFF_T_FMT", "APR_INT64_T_FMT")
				vs["off_t_strfn"] = Literal("apr_strtoi64")
			default:
				return t, fmt.Errorf("%w: %d bytes", ErrOffTSize, off)
			}
		default:
			vs["off_t_fmt"] = Format("APR_OFF_T_FMT", "d")
			vs["off_t_value"] = TypeName("apr_int32_t")
			vs["off_t_strfn"] = Literal("strtoi")
		}
		vs["aprlfs"] = Flag(branch == OffTLargeFile)
		return t.WithAll(vs), nil
	}
}

// SizeTStep prefers the native size_t and ssize_t; when a type is absent
// it falls back to apr_int32_t with the matching format.
func SizeTStep(t Table, f Facts) (Table, error) {
	vs := map[string]Value{}
	if f.Size(ProbeSizeofSizeT) != 0 && f.Has("type_size_t") {
		vs["size_t_value"] = TypeName("size_t")
		vs["size_t_fmt"] = Format("APR_SIZE_T_FMT", "lu")
	} else {
		vs["size_t_value"] = TypeName("apr_int32_t")
		vs["size_t_fmt"] = Format("APR_SIZE_T_FMT", "u")
	}
	if f.Size(ProbeSizeofSsizeT) != 0 && f.Has("type_ssize_t") {
		vs["ssize_t_value"] = TypeName("ssize_t")
		vs["ssize_t_fmt"] = Format("APR_SSIZE_T_FMT", "ld")
	} else {
		vs["ssize_t_value"] = TypeName("apr_int32_t")
		vs["ssize_t_fmt"] = Format("APR_SSIZE_T_FMT", "d")
	}
	return t.WithAll(vs), nil
}

// ScalarStep binds the fixed scalar aliases, the pointer size and the byte order.
func ScalarStep(t Table, f Facts) (Table, error) {
	return t.WithAll(map[string]Value{
		"int_value":   TypeName("int"),
		"short_value": TypeName("short"),
		"voidp_size":  Int(f.Size(ProbeSizeofVoidP)),
		"bigendian":   Flag(f.Text(ProbeEndianness) == BigEndian),
	}), nil
}

// HeadersStep binds one flag per probed header.
func HeadersStep(headers []string) Step {
	return func(t Table, f Facts) (Table, error) {
		vs := make(map[string]Value, len(headers))
		for _, h := range headers {
			vs[HeaderKey(h)] = Flag(f.Has(HeaderProbe(h).ID))
		}
		return t.WithAll(vs), nil
	}
}

// FunctionsStep binds have_<name> for every function.
func FunctionsStep(funcs []string) Step {
	return func(t Table, f Facts) (Table, error) {
		vs := make(map[string]Value, len(funcs))
		for _, fn := range funcs {
			vs["have_"+fn] = Flag(f.Has("func_" + fn))
		}
		return t.WithAll(vs), nil
	}
}

// SocklenStep binds apr_socklen_t. 64-bit HP-UX declares a 64-bit
// socklen_t in user space while the kernel expects 32 bits.
func SocklenStep(platform string) Step {
	return func(t Table, f Facts) (Table, error) {
		v := TypeName("socklen_t")
		if !f.Has("type_socklen_t") || (platform == "hpux" && f.Size(ProbeSizeofLong) == 8) {
			v = TypeName("int")
		}
		return t.With("socklen_t_value", v), nil
	}
}

// InoTStep hard-codes apr_ino_t to unsigned long when long is 32 bits and
// ino_t is exactly that type, so that _FILE_OFFSET_BITS cannot change the ABI.
func InoTStep(t Table, f Facts) (Table, error) {
	v := TypeName("ino_t")
	if f.Size(ProbeSizeofLong) == 4 && f.Has(ProbeInoTUnsignedLong) {
		v = TypeName("unsigned long")
	}
	return t.With("ino_t_value", v), nil
}

// NetworkStep binds the socket related flags.
func NetworkStep(ipv6 bool) Step {
	return func(t Table, f Facts) (Table, error) {
		nopush := "0"
		switch {
		case f.Has("decl_TCP_CORK"):
			nopush = "TCP_CORK"
		case f.Has("decl_TCP_NOPUSH"):
			nopush = "TCP_NOPUSH"
		}
		return t.WithAll(map[string]Value{
			"have_corkable_tcp":     Flag(nopush != "0"),
			"apr_tcp_nopush_flag":   Literal(nopush),
			"have_in_addr":          Flag(f.Has("type_struct_in_addr")),
			"have_sa_storage":       Flag(f.Has("type_struct_sockaddr_storage")),
			"have_ipv6":             Flag(ipv6 && f.Has("type_struct_sockaddr_in6") && f.Has("func_getaddrinfo") && f.Has("func_getnameinfo")),
			"acceptfilter":          Flag(f.Has("decl_SO_ACCEPTFILTER")),
			"have_sctp":             Flag(f.Has("decl_IPPROTO_SCTP") && f.Has(ProbeSCTP)),
			"tcp_nodelay_inherited": Flag(f.Has(ProbeTCPNodelayInherited)),
			"o_nonblock_inherited":  Flag(f.Has(ProbeNonblockInherited)),
			"have_iovec":            Flag(f.Has("type_struct_iovec")),
			"have_sockaddr_un":      Flag(f.Has("type_struct_sockaddr_un")),
		}), nil
	}
}

// ResourceStep binds the rlimit and charset flags.
func ResourceStep(t Table, f Facts) (Table, error) {
	return t.WithAll(map[string]Value{
		"have_getrlimit":     Flag(f.Has("func_getrlimit")),
		"have_setrlimit":     Flag(f.Has("func_setrlimit")),
		"struct_rlimit":      Flag(f.Has("type_struct_rlimit")),
		"apr_charset_ebcdic": Flag(f.Has(ProbeEBCDIC)),
	}), nil
}

// FeaturesStep binds the APR_HAS_* features. It must run after FunctionsStep.
func FeaturesStep(t Table, f Facts) (Table, error) {
	return t.WithAll(map[string]Value{
		"sharedmem":         Flag(true),
		"threads":           Flag(true),
		"sendfile":          Flag(false),
		"mmap":              Flag(t.Flag("have_mmap")),
		"fork":              Flag(t.Flag("have_fork")),
		"rand":              Flag(false),
		"oc":                Flag(false),
		"aprdso":            Flag(false),
		"have_unicode_fs":   Flag(false),
		"have_proc_invoked": Flag(false),
		"osuuid":            Flag(t.Flag("have_uuid_generate") || t.Flag("have_uuid_create")),
		"file_as_socket":    Flag(true),
		"have_iconv":        Flag(false),
	}), nil
}

// SharedMemoryStep decides the anonymous and named shared memory methods.
// Within each group the last available method wins.
func SharedMemoryStep(family Family) Step {
	return func(t Table, f Facts) (Table, error) {
		mmap := f.Has("func_mmap") && f.Has("func_munmap")
		shmget := f.Has("func_shmget") && f.Has("func_shmat") && f.Has("func_shmdt") && f.Has("func_shmctl")
		beos := family == FamilyBeOS

		have := map[string]bool{
			"havemmaptmp":    mmap,
			"havemmapshm":    mmap && f.Has("func_shm_open") && f.Has("func_shm_unlink"),
			"havemmapzero":   mmap && f.Has(ProbeDevZero) && f.Has(ProbeMmapZero),
			"havemmapanon":   mmap && f.Has("decl_MAP_ANON"),
			"haveshmgetanon": shmget && f.Has("decl_IPC_PRIVATE"),
			"haveshmget":     shmget,
			"havebeosarea":   beos,
		}

		anon := decide(have, []string{"haveshmgetanon", "havemmapzero", "havemmapanon", "havebeosarea"})
		named := decide(have, []string{"havemmaptmp", "havemmapshm", "haveshmget", "havebeosarea"})

		vs := make(map[string]Value, 2*len(have))
		for k, ok := range have {
			vs[k] = Flag(ok)
		}
		use := func(key string) bool { return anon == key || named == key }
		vs["usemmaptmp"] = Flag(use("havemmaptmp"))
		vs["usemmapshm"] = Flag(use("havemmapshm"))
		vs["usemmapzero"] = Flag(use("havemmapzero"))
		vs["useshmgetanon"] = Flag(use("haveshmgetanon"))
		vs["useshmget"] = Flag(use("haveshmget"))
		vs["usemmapanon"] = Flag(use("havemmapanon"))
		vs["usebeosarea"] = Flag(use("havebeosarea"))
		return t.WithAll(vs), nil
	}
}

// LockStep decides the cross-process lock method. The last available
// method in flock, POSIX semaphore, SysV semaphore, fcntl, process-shared
// pthread order wins.
func LockStep(family Family, platform string) Step {
	return func(t Table, f Facts) (Table, error) {
		have := map[string]bool{
			"hasflockser":       f.Has("func_flock") && f.Has("decl_LOCK_EX"),
			"hasposixser":       f.Has(ProbeSemaphores),
			"hassysvser":        f.Has("func_semget") && f.Has("func_semctl") && f.Has("decl_SEM_UNDO"),
			"hasfcntlser":       f.Has("decl_F_SETLK"),
			"hasprocpthreadser": f.Has(ProbeDevZero) && f.Has("decl_PTHREAD_PROCESS_SHARED") && f.Has("func_pthread_mutexattr_setpshared"),
		}
		chosen := decide(have, []string{"hasflockser", "hasposixser", "hassysvser", "hasfcntlser", "hasprocpthreadser"})

		global := false
		switch platform {
		case "os2", "beos", "win32", "cygwin":
			global = true
		}
		if family == FamilyOS2 || family == FamilyBeOS || family == FamilyWin32 {
			global = true
		}

		vs := make(map[string]Value, 2*len(have)+4)
		for k, ok := range have {
			vs[k] = Flag(ok)
		}
		vs["flockser"] = Flag(chosen == "hasflockser")
		vs["posixser"] = Flag(chosen == "hasposixser")
		vs["sysvser"] = Flag(chosen == "hassysvser")
		vs["fcntlser"] = Flag(chosen == "hasfcntlser")
		vs["procpthreadser"] = Flag(chosen == "hasprocpthreadser")
		vs["pthreadser"] = Flag(t.Flag("threads") && f.Has(HeaderProbe("pthread.h").ID))
		vs["proc_mutex_is_global"] = Flag(global)
		vs["proclockglobal"] = Flag(global)
		vs["have_union_semun"] = Flag(f.Has(ProbeSemun))
		return t.WithAll(vs), nil
	}
}

// decide returns the last key of order that is available, or "".
func decide(have map[string]bool, order []string) string {
	chosen := ""
	for _, k := range order {
		if have[k] {
			chosen = k
		}
	}
	return chosen
}

// PathsStep binds the platform line terminator and library path.
func PathsStep(family Family, prefix string) Step {
	return func(t Table, f Facts) (Table, error) {
		eol := `\n`
		if family == FamilyWin32 {
			eol = `\r\n`
		}
		lib := strings.TrimSuffix(prefix, "/") + "/lib"
		return t.WithAll(map[string]Value{
			"eolstr":        Literal(eol),
			"shlibpath_var": Literal(lib),
		}), nil
	}
}

// UtilStep binds the apr-util selections. Only the bundled SDBM backend
// is configured; every optional driver is off.
func UtilStep(t Table, f Facts) (Table, error) {
	vs := map[string]Value{
		"apu_have_sdbm":  Flag(true),
		"apu_use_sdbm":   Flag(true),
		"apu_db_version": Int(0),
	}
	for _, k := range []string{
		"apu_have_gdbm", "apu_have_ndbm", "apu_have_db",
		"apu_use_ndbm", "apu_use_gdbm", "apu_use_db",
		"apu_have_pgsql", "apu_have_mysql", "apu_have_sqlite3",
		"apu_have_sqlite2", "apu_have_oracle", "apu_have_odbc",
		"apu_have_crypto", "apu_have_openssl", "apu_have_nss",
	} {
		vs[k] = Flag(false)
	}
	return t.WithAll(vs), nil
}

// Define is a line of the private configuration header.
type Define struct {
	Name  string
	Value string
}

func (d Define) String() string {
	return fmt.Sprintf("#define %s %s", d.Name, d.Value)
}

// headerDefine spells the HAVE_ macro for a header the way autoconf does:
// mach-o/dyld.h becomes HAVE_MACH_O_DYLD_H.
func headerDefine(header string) string {
	return "HAVE_" + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return '_'
	}, header)
}

// PrivateDefinesKey is the table key holding the private header's defines.
const PrivateDefinesKey = "private_defines"

// PrivateDefinesStep renders the defines of the private configuration
// header from the results and the table built so far.
func PrivateDefinesStep(platform string) Step {
	return func(t Table, f Facts) (Table, error) {
		var defs []Define
		add := func(name, value string) { defs = append(defs, Define{Name: name, Value: value}) }

		ids := make([]string, 0, len(f))
		for id := range f {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		headers := make(map[string]string, len(FlagHeaders))
		for _, h := range FlagHeaders {
			headers["header_"+HeaderKey(h)] = h
		}
		for _, id := range ids {
			if !f.Has(id) {
				continue
			}
			if h, ok := headers[id]; ok {
				add(headerDefine(h), "1")
			} else if h, ok := strings.CutPrefix(id, "header_"); ok {
				add("HAVE_"+strings.ToUpper(h[:len(h)-1])+"_H", "1")
			}
			if fn, ok := strings.CutPrefix(id, "func_"); ok {
				add("HAVE_"+strings.ToUpper(fn), "1")
			}
		}

		if f.Has(ProbeAtomicBuiltins) {
			add("HAVE_ATOMIC_BUILTINS", "1")
		}
		if f.Has("decl_LOCK_EX") {
			add("HAVE_LOCK_EX", "1")
		}
		if f.Has("decl_F_SETLK") {
			add("HAVE_F_SETLK", "1")
		}
		if f.Has("decl_PTHREAD_PROCESS_SHARED") {
			add("HAVE_PTHREAD_PROCESS_SHARED", "1")
		}
		if platform == "sunos" {
			add("SIGWAIT_TAKES_ONE_ARG", "1")
		}
		for flag, name := range map[string]string{
			"flockser":       "USE_FLOCK_SERIALIZE",
			"sysvser":        "USE_SYSVSEM_SERIALIZE",
			"posixser":       "USE_POSIXSEM_SERIALIZE",
			"fcntlser":       "USE_FCNTL_SERIALIZE",
			"procpthreadser": "USE_PROC_PTHREAD_SERIALIZE",
			"usemmapanon":    "USE_SHMEM_MMAP_ANON",
			"usemmapzero":    "USE_SHMEM_MMAP_ZERO",
			"useshmgetanon":  "USE_SHMEM_SHMGET_ANON",
			"usemmapshm":     "USE_SHMEM_MMAP_SHM",
			"usemmaptmp":     "USE_SHMEM_MMAP_TMP",
			"useshmget":      "USE_SHMEM_SHMGET",
		} {
			if t.Flag(flag) {
				add(name, "1")
			}
		}
		if v, ok := t.Get("off_t_strfn"); ok {
			add("APR_OFF_T_STRFN", v.Render())
		}

		sort.SliceStable(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
		lines := make([]string, len(defs))
		for i, d := range defs {
			lines[i] = d.String()
		}
		return t.With(PrivateDefinesKey, Code(strings.Join(lines, "\n"))), nil
	}
}
