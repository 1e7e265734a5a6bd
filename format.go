package aprconf

import (
	"fmt"
	"sort"
	"strings"
)

// String returns a human-readable summary of the configuration.
func (c *Configuration) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Platform: %s\n", c.Platform)
	if c.Platform.Release != "" {
		fmt.Fprintf(&b, "Release: %s\n", c.Platform.Release)
	}
	b.WriteString("\n")

	b.WriteString("Types:\n")
	writeValue(&b, "  apr_int64_t", c.Table, "int64_value")
	writeValue(&b, "  apr_off_t", c.Table, "off_t_value")
	writeValue(&b, "  apr_size_t", c.Table, "size_t_value")
	writeValue(&b, "  apr_ssize_t", c.Table, "ssize_t_value")
	writeValue(&b, "  apr_socklen_t", c.Table, "socklen_t_value")
	writeValue(&b, "  apr_ino_t", c.Table, "ino_t_value")
	writeValue(&b, "  pointer size", c.Table, "voidp_size")
	b.WriteString("\n")

	b.WriteString("Features:\n")
	writeFlag(&b, "  big endian", c.Table, "bigendian")
	writeFlag(&b, "  large files", c.Table, "aprlfs")
	writeFlag(&b, "  IPv6", c.Table, "have_ipv6")
	writeFlag(&b, "  SCTP", c.Table, "have_sctp")
	writeFlag(&b, "  mmap", c.Table, "mmap")
	writeFlag(&b, "  fork", c.Table, "fork")
	writeFlag(&b, "  OS uuid", c.Table, "osuuid")
	writeFlag(&b, "  corkable TCP", c.Table, "have_corkable_tcp")
	writeResult(&b, "  atomic builtins", c.Results[ProbeAtomicBuiltins])
	b.WriteString("\n")

	b.WriteString("Methods:\n")
	fmt.Fprintf(&b, "  process lock: %s\n", chosen(c.Table, map[string]string{
		"flockser":       "flock",
		"posixser":       "posix semaphore",
		"sysvser":        "sysv semaphore",
		"fcntlser":       "fcntl",
		"procpthreadser": "process-shared pthread mutex",
	}))
	fmt.Fprintf(&b, "  anonymous shm: %s\n", chosen(c.Table, map[string]string{
		"usemmapanon":   "mmap MAP_ANON",
		"usemmapzero":   "mmap /dev/zero",
		"useshmgetanon": "shmget IPC_PRIVATE",
		"usebeosarea":   "beos area",
	}))
	fmt.Fprintf(&b, "  named shm: %s\n", chosen(c.Table, map[string]string{
		"usemmapshm": "mmap shm_open",
		"useshmget":  "shmget",
		"usemmaptmp": "mmap temporary file",
	}))

	if len(c.CPPFlags) > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, "CPPFLAGS: %s\n", strings.Join(c.CPPFlags, " "))
	}

	return b.String()
}

func writeResult(b *strings.Builder, name string, r Result) {
	status := "no"
	if r.Truthy() {
		status = "yes"
	}
	if r.Err != nil {
		fmt.Fprintf(b, "%s: %s (error: %v)\n", name, status, r.Err)
	} else {
		fmt.Fprintf(b, "%s: %s\n", name, status)
	}
}

func writeFlag(b *strings.Builder, name string, t Table, key string) {
	status := "no"
	if t.Flag(key) {
		status = "yes"
	}
	fmt.Fprintf(b, "%s: %s\n", name, status)
}

func writeValue(b *strings.Builder, name string, t Table, key string) {
	v, ok := t.Get(key)
	if !ok {
		fmt.Fprintf(b, "%s: unknown\n", name)
		return
	}
	fmt.Fprintf(b, "%s: %s\n", name, v.Render())
}

// chosen returns the label of the first set flag in the table, "none" otherwise.
func chosen(t Table, labels map[string]string) string {
	for _, k := range sortedKeys(labels) {
		if t.Flag(k) {
			return labels[k]
		}
	}
	return "none"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
