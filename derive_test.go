package aprconf

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sizes(kv ...any) Facts {
	f := Facts{}
	for i := 0; i < len(kv); i += 2 {
		f[kv[i].(string)] = IntResult(kv[i+1].(int))
	}
	return f
}

func TestSelectInt64(t *testing.T) {
	tests := []struct {
		name    string
		facts   Facts
		want    string
		wantFmt string
	}{
		{"int", sizes(ProbeSizeofInt, 8, ProbeSizeofLong, 8), "int", "d"},
		{"long", sizes(ProbeSizeofInt, 4, ProbeSizeofLong, 8, ProbeSizeofLongLong, 8), "long", "ld"},
		{"long long", sizes(ProbeSizeofInt, 4, ProbeSizeofLong, 4, ProbeSizeofLongLong, 8), "long long", "lld"},
		{"__int64", sizes(ProbeSizeofInt, 4, ProbeSizeofLong, 4, ProbeSizeofLongLongAlt, 8), "__int64", "qd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectInt64(tt.facts)
			if err != nil {
				t.Fatalf("SelectInt64() error = %v", err)
			}
			if got.Type != tt.want || got.Fmt != tt.wantFmt {
				t.Errorf("SelectInt64() = %s/%s, want %s/%s", got.Type, got.Fmt, tt.want, tt.wantFmt)
			}
		})
	}

	if _, err := SelectInt64(sizes(ProbeSizeofInt, 4, ProbeSizeofLong, 4)); !errors.Is(err, ErrNo64BitType) {
		t.Errorf("SelectInt64() without 8-byte type error = %v, want ErrNo64BitType", err)
	}
}

// Every size combination either selects the first 8-byte candidate or fails.
func TestSelectInt64_Total(t *testing.T) {
	ids := []string{ProbeSizeofInt, ProbeSizeofLong, ProbeSizeofLongLong, ProbeSizeofLongLongAlt}
	widths := []int{0, 4, 8}

	for n := 0; n < 81; n++ {
		f := Facts{}
		first := -1
		k := n
		for i, id := range ids {
			w := widths[k%3]
			k /= 3
			if w != 0 {
				f[id] = IntResult(w)
			}
			if w == 8 && first < 0 {
				first = i
			}
		}

		got, err := SelectInt64(f)
		switch {
		case first < 0 && !errors.Is(err, ErrNo64BitType):
			t.Errorf("combination %d: error = %v, want ErrNo64BitType", n, err)
		case first >= 0 && err != nil:
			t.Errorf("combination %d: error = %v", n, err)
		case first >= 0 && got.Probe != ids[first]:
			t.Errorf("combination %d: selected %s, want %s", n, got.Probe, ids[first])
		}
	}
}

func TestInt64Step_Stdint(t *testing.T) {
	f := sizes(ProbeSizeofInt, 4, ProbeSizeofLong, 8)

	tbl, err := Derive(f, Int64Step, StdintStep)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if got := tbl.Strings()["int64_literal"]; got != "#define APR_INT64_C(val) (val##L)" {
		t.Errorf("int64_literal = %q", got)
	}
	if tbl.Flag("stdint") {
		t.Error("stdint = 1 without INT64_C")
	}

	f["decl_INT64_C"] = BoolResult(true)
	tbl, err = Derive(f, Int64Step, StdintStep)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	want := map[string]string{
		"int64_literal":  "#define APR_INT64_C(val) INT64_C(val)",
		"uint64_literal": "#define APR_UINT64_C(val) UINT64_C(val)",
		"stdint":         "1",
		"int64_value":    "long",
	}
	got := tbl.Strings()
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestPidFormatStep(t *testing.T) {
	base := []any{ProbeSizeofShort, 2, ProbeSizeofInt, 4, ProbeSizeofLong, 8, ProbeSizeofLongLong, 16}
	tests := []struct {
		pid  int
		want string
	}{
		{2, `#define APR_PID_T_FMT "hd"`},
		{4, `#define APR_PID_T_FMT "d"`},
		{8, `#define APR_PID_T_FMT "ld"`},
		{16, "#define APR_PID_T_FMT APR_INT64_T_FMT"},
		{3, "#error Can not determine the proper size for pid_t"},
		{0, "#error Can not determine the proper size for pid_t"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.pid), func(t *testing.T) {
			f := sizes(base...)
			if tt.pid != 0 {
				f[ProbeSizeofPidT] = IntResult(tt.pid)
			}
			tbl, err := Derive(f, PidFormatStep)
			if err != nil {
				t.Fatalf("Derive() error = %v", err)
			}
			if got := tbl.Strings()["pid_t_fmt"]; got != tt.want {
				t.Errorf("pid_t_fmt = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOffTStep(t *testing.T) {
	tests := []struct {
		name   string
		lfs    bool
		facts  Facts
		branch OffTBranch
		want   map[string]string
	}{
		{
			name:   "large files on 32-bit off_t",
			lfs:    true,
			facts:  sizes(ProbeSizeofInt, 4, ProbeSizeofLong, 4, ProbeSizeofOffT, 4, ProbeSizeofSizeT, 4),
			branch: OffTLargeFile,
			want: map[string]string{
				"off_t_value": "off64_t",
				"off_t_fmt":   "#define APR_OFF_T_FMT APR_INT64_T_FMT",
				"off_t_strfn": "apr_strtoi64",
				"aprlfs":      "1",
			},
		},
		{
			name:   "hard-coded to long",
			facts:  sizes(ProbeSizeofInt, 4, ProbeSizeofLong, 4, ProbeSizeofOffT, 4, ProbeSizeofSizeT, 4),
			branch: OffTLong,
			want: map[string]string{
				"off_t_value": "long",
				"off_t_fmt":   `#define APR_OFF_T_FMT "ld"`,
				"off_t_strfn": "strtol",
				"aprlfs":      "0",
			},
		},
		{
			name:   "native off_t matching long",
			lfs:    true,
			facts:  sizes(ProbeSizeofInt, 4, ProbeSizeofLong, 8, ProbeSizeofOffT, 8, ProbeSizeofSizeT, 8),
			branch: OffTNative,
			want: map[string]string{
				"off_t_value": "off_t",
				"off_t_fmt":   `#define APR_OFF_T_FMT "ld"`,
				"off_t_strfn": "strtol",
				"aprlfs":      "0",
			},
		},
		{
			name:   "native off_t matching int",
			facts:  sizes(ProbeSizeofInt, 4, ProbeSizeofLong, 8, ProbeSizeofOffT, 4),
			branch: OffTNative,
			want: map[string]string{
				"off_t_value": "off_t",
				"off_t_fmt":   `#define APR_OFF_T_FMT "d"`,
				"off_t_strfn": "strtoi",
			},
		},
		{
			name:   "native off_t matching long long",
			facts:  sizes(ProbeSizeofInt, 4, ProbeSizeofLong, 4, ProbeSizeofLongLong, 8, ProbeSizeofOffT, 8),
			branch: OffTNative,
			want: map[string]string{
				"off_t_value": "off_t",
				"off_t_fmt":   "#define APR_OFF_T_FMT APR_INT64_T_FMT",
				"off_t_strfn": "apr_strtoi64",
			},
		},
		{
			name:   "no off_t",
			facts:  sizes(ProbeSizeofInt, 4, ProbeSizeofLong, 4),
			branch: OffTFallback,
			want: map[string]string{
				"off_t_value": "apr_int32_t",
				"off_t_fmt":   `#define APR_OFF_T_FMT "d"`,
				"off_t_strfn": "strtoi",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectOffT(tt.facts, tt.lfs); got != tt.branch {
				t.Errorf("SelectOffT() = %v, want %v", got, tt.branch)
			}
			tbl, err := Derive(tt.facts, OffTStep(tt.lfs))
			if err != nil {
				t.Fatalf("Derive() error = %v", err)
			}
			got := tbl.Strings()
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestOffTStep_Unmatched(t *testing.T) {
	f := sizes(ProbeSizeofInt, 4, ProbeSizeofLong, 8, ProbeSizeofLongLong, 8, ProbeSizeofOffT, 2)
	_, err := Derive(f, OffTStep(false))
	if !errors.Is(err, ErrOffTSize) {
		t.Fatalf("Derive() error = %v, want ErrOffTSize", err)
	}
}

func TestSizeTStep(t *testing.T) {
	present := sizes(ProbeSizeofSizeT, 8, ProbeSizeofSsizeT, 8)
	present["type_size_t"] = BoolResult(true)
	present["type_ssize_t"] = BoolResult(true)

	tests := []struct {
		name  string
		facts Facts
		want  map[string]string
	}{
		{
			name:  "native",
			facts: present,
			want: map[string]string{
				"size_t_value":  "size_t",
				"size_t_fmt":    `#define APR_SIZE_T_FMT "lu"`,
				"ssize_t_value": "ssize_t",
				"ssize_t_fmt":   `#define APR_SSIZE_T_FMT "ld"`,
			},
		},
		{
			name:  "absent",
			facts: Facts{},
			want: map[string]string{
				"size_t_value":  "apr_int32_t",
				"size_t_fmt":    `#define APR_SIZE_T_FMT "u"`,
				"ssize_t_value": "apr_int32_t",
				"ssize_t_fmt":   `#define APR_SSIZE_T_FMT "d"`,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Derive(tt.facts, SizeTStep)
			if err != nil {
				t.Fatalf("Derive() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, tbl.Strings()); diff != "" {
				t.Errorf("SizeTStep mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNetworkStep_Nopush(t *testing.T) {
	tests := []struct {
		decls []string
		want  string
	}{
		{[]string{"decl_TCP_CORK", "decl_TCP_NOPUSH"}, "TCP_CORK"},
		{[]string{"decl_TCP_CORK"}, "TCP_CORK"},
		{[]string{"decl_TCP_NOPUSH"}, "TCP_NOPUSH"},
		{nil, "0"},
	}
	for _, tt := range tests {
		f := Facts{}
		for _, d := range tt.decls {
			f[d] = BoolResult(true)
		}
		tbl, err := Derive(f, NetworkStep(false))
		if err != nil {
			t.Fatalf("Derive() error = %v", err)
		}
		if got := tbl.Strings()["apr_tcp_nopush_flag"]; got != tt.want {
			t.Errorf("decls %v: apr_tcp_nopush_flag = %q, want %q", tt.decls, got, tt.want)
		}
		if got := tbl.Flag("have_corkable_tcp"); got != (tt.want != "0") {
			t.Errorf("decls %v: have_corkable_tcp = %v", tt.decls, got)
		}
	}
}

func TestNetworkStep_IPv6OptIn(t *testing.T) {
	f := Facts{
		"type_struct_sockaddr_in6": BoolResult(true),
		"func_getaddrinfo":         BoolResult(true),
		"func_getnameinfo":         BoolResult(true),
	}
	for _, enabled := range []bool{false, true} {
		tbl, err := Derive(f, NetworkStep(enabled))
		if err != nil {
			t.Fatalf("Derive() error = %v", err)
		}
		if got := tbl.Flag("have_ipv6"); got != enabled {
			t.Errorf("ipv6 %v: have_ipv6 = %v", enabled, got)
		}
	}
}

func TestFeaturesStep_OSUUID(t *testing.T) {
	tests := []struct {
		generate, create, want bool
	}{
		{false, false, false},
		{true, false, true},
		{false, true, true},
		{true, true, true},
	}
	for _, tt := range tests {
		f := Facts{
			"func_uuid_generate": BoolResult(tt.generate),
			"func_uuid_create":   BoolResult(tt.create),
		}
		tbl, err := Derive(f, FunctionsStep(FlagFunctions), FeaturesStep)
		if err != nil {
			t.Fatalf("Derive() error = %v", err)
		}
		if got := tbl.Flag("osuuid"); got != tt.want {
			t.Errorf("uuid_generate=%v uuid_create=%v: osuuid = %v, want %v", tt.generate, tt.create, got, tt.want)
		}
	}
}

func TestLockStep(t *testing.T) {
	tests := []struct {
		name  string
		facts []string
		want  string
	}{
		{"flock only", []string{"func_flock", "decl_LOCK_EX"}, "flockser"},
		{"sysv wins over posix", []string{ProbeSemaphores, "func_semget", "func_semctl", "decl_SEM_UNDO"}, "sysvser"},
		{"fcntl wins over sysv", []string{"func_semget", "func_semctl", "decl_SEM_UNDO", "decl_F_SETLK"}, "fcntlser"},
		{"posix only", []string{ProbeSemaphores}, "posixser"},
		{"process-shared pthread last", []string{"decl_F_SETLK", ProbeDevZero, "decl_PTHREAD_PROCESS_SHARED", "func_pthread_mutexattr_setpshared"}, "procpthreadser"},
		{"nothing", nil, ""},
	}
	methods := []string{"flockser", "posixser", "sysvser", "fcntlser", "procpthreadser"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Facts{}
			for _, id := range tt.facts {
				f[id] = BoolResult(true)
			}
			tbl, err := Derive(f, LockStep(FamilyUnix, "posix"))
			if err != nil {
				t.Fatalf("Derive() error = %v", err)
			}
			for _, m := range methods {
				if got := tbl.Flag(m); got != (m == tt.want) {
					t.Errorf("%s = %v", m, got)
				}
			}
			if tbl.Flag("proc_mutex_is_global") {
				t.Error("proc_mutex_is_global set on posix")
			}
		})
	}
}

func TestLockStep_GlobalMutexPlatforms(t *testing.T) {
	for _, name := range []string{"os2", "beos", "win32", "cygwin"} {
		tbl, err := Derive(Facts{}, LockStep(FamilyOf(name), name))
		if err != nil {
			t.Fatalf("Derive() error = %v", err)
		}
		if !tbl.Flag("proc_mutex_is_global") {
			t.Errorf("%s: proc_mutex_is_global = 0", name)
		}
	}
}

func TestSharedMemoryStep(t *testing.T) {
	mmap := []string{"func_mmap", "func_munmap"}
	shm := []string{"func_shmget", "func_shmat", "func_shmdt", "func_shmctl"}

	tests := []struct {
		name        string
		facts       []string
		anon, named string
	}{
		{"mmap only", mmap, "", "usemmaptmp"},
		{"anonymous mmap", append([]string{"decl_MAP_ANON"}, mmap...), "usemmapanon", "usemmaptmp"},
		{"dev zero", append([]string{ProbeDevZero, ProbeMmapZero}, mmap...), "usemmapzero", "usemmaptmp"},
		{"sysv", append([]string{"decl_IPC_PRIVATE"}, shm...), "useshmgetanon", "useshmget"},
		{"shm_open", append([]string{"func_shm_open", "func_shm_unlink"}, mmap...), "", "usemmapshm"},
	}
	anonKeys := []string{"usemmapanon", "usemmapzero", "useshmgetanon"}
	namedKeys := []string{"usemmaptmp", "usemmapshm", "useshmget"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Facts{}
			for _, id := range tt.facts {
				f[id] = BoolResult(true)
			}
			tbl, err := Derive(f, SharedMemoryStep(FamilyUnix))
			if err != nil {
				t.Fatalf("Derive() error = %v", err)
			}
			for _, k := range anonKeys {
				if got := tbl.Flag(k); got != (k == tt.anon) {
					t.Errorf("%s = %v", k, got)
				}
			}
			for _, k := range namedKeys {
				if got := tbl.Flag(k); got != (k == tt.named) {
					t.Errorf("%s = %v", k, got)
				}
			}
		})
	}
}

func TestSocklenStep(t *testing.T) {
	f := sizes(ProbeSizeofLong, 8)
	f["type_socklen_t"] = BoolResult(true)

	tests := []struct {
		platform string
		facts    Facts
		want     string
	}{
		{"posix", f, "socklen_t"},
		{"hpux", f, "int"},
		{"posix", Facts{}, "int"},
	}
	for _, tt := range tests {
		tbl, err := Derive(tt.facts, SocklenStep(tt.platform))
		if err != nil {
			t.Fatalf("Derive() error = %v", err)
		}
		if got := tbl.Strings()["socklen_t_value"]; got != tt.want {
			t.Errorf("%s: socklen_t_value = %q, want %q", tt.platform, got, tt.want)
		}
	}
}

func TestInoTStep(t *testing.T) {
	f := sizes(ProbeSizeofLong, 4)
	f[ProbeInoTUnsignedLong] = BoolResult(true)
	tbl, err := Derive(f, InoTStep)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if got := tbl.Strings()["ino_t_value"]; got != "unsigned long" {
		t.Errorf("ino_t_value = %q, want unsigned long", got)
	}

	f[ProbeSizeofLong] = IntResult(8)
	tbl, _ = Derive(f, InoTStep)
	if got := tbl.Strings()["ino_t_value"]; got != "ino_t" {
		t.Errorf("ino_t_value = %q, want ino_t", got)
	}
}

func TestPathsStep(t *testing.T) {
	tests := []struct {
		family Family
		prefix string
		eol    string
		lib    string
	}{
		{FamilyUnix, "/usr/local", `\n`, "/usr/local/lib"},
		{FamilyUnix, "/opt/apr/", `\n`, "/opt/apr/lib"},
		{FamilyWin32, "/apr", `\r\n`, "/apr/lib"},
	}
	for _, tt := range tests {
		tbl, err := Derive(Facts{}, PathsStep(tt.family, tt.prefix))
		if err != nil {
			t.Fatalf("Derive() error = %v", err)
		}
		got := tbl.Strings()
		if got["eolstr"] != tt.eol || got["shlibpath_var"] != tt.lib {
			t.Errorf("%s %s: eolstr = %q, shlibpath_var = %q", tt.family, tt.prefix, got["eolstr"], got["shlibpath_var"])
		}
	}
}

func TestPrivateDefinesStep(t *testing.T) {
	f := Facts{
		"header_sys_typesh":  BoolResult(true),
		"header_macho_dyldh": BoolResult(true),
		"header_windowsh":    Failed(errFakeBuild),
		"func_strdup":        BoolResult(true),
		ProbeAtomicBuiltins:  BoolResult(true),
		"decl_F_SETLK":       BoolResult(true),
	}
	tbl, err := Derive(f, OffTStep(false), PrivateDefinesStep("sunos"))
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}

	want := "#define APR_OFF_T_STRFN strtoi\n" +
		"#define HAVE_ATOMIC_BUILTINS 1\n" +
		"#define HAVE_F_SETLK 1\n" +
		"#define HAVE_MACH_O_DYLD_H 1\n" +
		"#define HAVE_STRDUP 1\n" +
		"#define HAVE_SYS_TYPES_H 1\n" +
		"#define SIGWAIT_TAKES_ONE_ARG 1"
	if diff := cmp.Diff(want, tbl.Strings()[PrivateDefinesKey]); diff != "" {
		t.Errorf("private defines mismatch (-want +got):\n%s", diff)
	}
}

func TestHeaderDefine(t *testing.T) {
	tests := map[string]string{
		"stdio.h":       "HAVE_STDIO_H",
		"sys/types.h":   "HAVE_SYS_TYPES_H",
		"mach-o/dyld.h": "HAVE_MACH_O_DYLD_H",
		"ByteOrder.h":   "HAVE_BYTEORDER_H",
	}
	for in, want := range tests {
		if got := headerDefine(in); got != want {
			t.Errorf("headerDefine(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDerive_StopsAtError(t *testing.T) {
	called := false
	after := func(tbl Table, _ Facts) (Table, error) {
		called = true
		return tbl, nil
	}
	tbl, err := Derive(Facts{}, ScalarStep, Int64Step, after)
	if !errors.Is(err, ErrNo64BitType) {
		t.Fatalf("Derive() error = %v, want ErrNo64BitType", err)
	}
	if called {
		t.Error("step after the failing one ran")
	}
	if !tbl.Has("int_value") {
		t.Error("table built before the failure was dropped")
	}
}
