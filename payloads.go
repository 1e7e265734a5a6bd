package aprconf

// C payloads of the custom probes. They are executed by the toolchain
// and must stay valid C89 with the usual POSIX headers.

const compilerWorksSource = `
int main(void)
{
    return 0;
}
`

const atomicBuiltinsSource = `
int main(void)
{
    unsigned long val = 1010, tmp, *mem = &val;

    if (__sync_fetch_and_add(&val, 1010) != 1010 || val != 2020)
        return 1;

    tmp = val;

    if (__sync_fetch_and_sub(mem, 1010) != tmp || val != 1010)
        return 1;

    if (__sync_sub_and_fetch(&val, 1010) != 0 || val != 0)
        return 1;

    tmp = 3030;

    if (__sync_val_compare_and_swap(mem, 0, tmp) != 0 || val != tmp)
        return 1;

    if (__sync_lock_test_and_set(&val, 4040) != 3030)
        return 1;

    mem = &tmp;

    if (__sync_val_compare_and_swap(&mem, &tmp, &val) != &tmp)
        return 1;

    __sync_synchronize();

    if (mem != &val)
        return 1;

    return 0;
}
`

const largeFileSource = `
#include <sys/types.h>
#include <sys/stat.h>
#include <fcntl.h>
#include <stdlib.h>
#include <stdio.h>
#include <unistd.h>

int main(void)
{
    int fd, ret = 0;
    struct stat64 st;
    off64_t off = 4242;

    if (sizeof(off64_t) != 8 || sizeof(off_t) != 4)
        exit(1);
    if ((fd = open("conftest.lfs", O_LARGEFILE|O_CREAT|O_WRONLY, 0644)) < 0)
        exit(2);
    if (ftruncate64(fd, off) != 0)
        ret = 3;
    else if (fstat64(fd, &st) != 0 || st.st_size != off)
        ret = 4;
    else if (lseek64(fd, off, SEEK_SET) != off)
        ret = 5;
    else if (close(fd) != 0)
        ret = 6;
    else if (lstat64("conftest.lfs", &st) != 0 || st.st_size != off)
        ret = 7;
    else if (stat64("conftest.lfs", &st) != 0 || st.st_size != off)
        ret = 8;
    unlink("conftest.lfs");

    exit(ret);
}
`

// largeFileCodes are the exit codes of largeFileSource.
var largeFileCodes = map[int]string{
	1: "off64_t is not 8 bytes or off_t is not 4 bytes",
	2: "open with O_LARGEFILE failed",
	3: "ftruncate64 failed",
	4: "fstat64 size mismatch",
	5: "lseek64 offset mismatch",
	6: "close failed",
	7: "lstat64 size mismatch",
	8: "stat64 size mismatch",
}

const mmapZeroSource = `
#include <sys/types.h>
#include <sys/stat.h>
#include <fcntl.h>
#include <sys/mman.h>

int main(void)
{
    int fd;
    void *m;
    fd = open("/dev/zero", O_RDWR);
    if (fd < 0) {
        return 1;
    }
    m = mmap(0, sizeof(void*), PROT_READ|PROT_WRITE, MAP_SHARED, fd, 0);
    if (m == (void *)-1) {
        return 2;
    }
    if (munmap(m, sizeof(void*)) < 0) {
        return 3;
    }
    return 0;
}
`

var mmapZeroCodes = map[int]string{
	1: "cannot open /dev/zero",
	2: "mmap of /dev/zero failed",
	3: "munmap failed",
}

// semaphoresSource is linked, not executed.
const semaphoresSource = `
#include <errno.h>
#include <stdlib.h>
#include <fcntl.h>
#include <semaphore.h>
#ifndef SEM_FAILED
#define SEM_FAILED (-1)
#endif

int main(void)
{
    sem_t *psem;
    const char *sem_name = "/apr_autoconf";

    psem = sem_open(sem_name, O_CREAT, 0644, 1);
    if (psem == (sem_t *)SEM_FAILED) {
        exit(1);
    }
    sem_close(psem);
    psem = sem_open(sem_name, O_CREAT | O_EXCL, 0644, 1);
    if (psem != (sem_t *)SEM_FAILED) {
        sem_close(psem);
        exit(1);
    }
    sem_unlink(sem_name);
    exit(0);
}
`

const semunSource = `
#include <sys/types.h>
#include <sys/ipc.h>
#include <sys/sem.h>

int main(void)
{
    union semun arg;
    semctl(0, 0, 0, arg);
    return 0;
}
`

// loopbackPrelude builds a connected loopback pair. setup() runs on the
// listening socket before accept; the accepted descriptor is returned
// through *acc.
const loopbackPrelude = `
#include <stdlib.h>
#include <string.h>
#include <unistd.h>
#include <fcntl.h>
#include <sys/types.h>
#include <sys/socket.h>
#include <netinet/in.h>
#include <netinet/tcp.h>
#include <arpa/inet.h>

static int loopback_pair(int proto, int (*setup)(int), int *acc, int *conn)
{
    struct sockaddr_in sa;
    socklen_t len = sizeof(sa);
    int listener;

    listener = socket(AF_INET, SOCK_STREAM, proto);
    if (listener < 0)
        return 1;
    memset(&sa, 0, sizeof(sa));
    sa.sin_family = AF_INET;
    sa.sin_addr.s_addr = htonl(INADDR_LOOPBACK);
    sa.sin_port = 0;
    if (bind(listener, (struct sockaddr *)&sa, sizeof(sa)) < 0)
        return 2;
    if (getsockname(listener, (struct sockaddr *)&sa, &len) < 0)
        return 3;
    if (setup(listener) != 0)
        return 4;
    if (listen(listener, 5) < 0)
        return 5;
    *conn = socket(AF_INET, SOCK_STREAM, proto);
    if (*conn < 0)
        return 6;
    if (connect(*conn, (struct sockaddr *)&sa, sizeof(sa)) < 0)
        return 7;
    *acc = accept(listener, NULL, NULL);
    if (*acc < 0)
        return 8;
    close(listener);
    return 0;
}
`

var loopbackCodes = map[int]string{
	1:  "socket failed",
	2:  "bind to loopback failed",
	3:  "getsockname failed",
	4:  "setting the option on the listener failed",
	5:  "listen failed",
	6:  "connector socket failed",
	7:  "connect to loopback failed",
	8:  "accept failed",
	9:  "option not inherited by the accepted socket",
	10: "reading the option from the accepted socket failed",
}

const tcpNodelayInheritedSource = loopbackPrelude + `
static int set_nodelay(int fd)
{
    int on = 1;
    return setsockopt(fd, IPPROTO_TCP, TCP_NODELAY, (void *)&on, sizeof(on));
}

int main(void)
{
    int acc, conn, rc, on = 0;
    socklen_t len = sizeof(on);

    if ((rc = loopback_pair(0, set_nodelay, &acc, &conn)) != 0)
        return rc;
    if (getsockopt(acc, IPPROTO_TCP, TCP_NODELAY, (void *)&on, &len) < 0)
        return 10;
    close(acc);
    close(conn);
    return on ? 0 : 9;
}
`

const nonblockInheritedSource = loopbackPrelude + `
static int set_nonblock(int fd)
{
    int flags = fcntl(fd, F_GETFL, 0);
    if (flags < 0)
        return -1;
    return fcntl(fd, F_SETFL, flags | O_NONBLOCK) < 0 ? -1 : 0;
}

int main(void)
{
    int acc, conn, rc, flags;

    if ((rc = loopback_pair(0, set_nonblock, &acc, &conn)) != 0)
        return rc;
    flags = fcntl(acc, F_GETFL, 0);
    if (flags < 0)
        return 10;
    close(acc);
    close(conn);
    return (flags & O_NONBLOCK) ? 0 : 9;
}
`

const sctpSource = loopbackPrelude + `
#include <netinet/sctp.h>

static int set_sctp_nodelay(int fd)
{
    int on = 1;
    return setsockopt(fd, IPPROTO_SCTP, SCTP_NODELAY, (void *)&on, sizeof(on));
}

int main(void)
{
    int acc, conn, rc;

    if ((rc = loopback_pair(IPPROTO_SCTP, set_sctp_nodelay, &acc, &conn)) != 0)
        return rc;
    close(acc);
    close(conn);
    return 0;
}
`

const ebcdicSource = `
int main(void)
{
    /* '+' is 0x4E in EBCDIC and 0x2B in ASCII */
    return '+' == 0x4E ? 0 : 1;
}
`

// endianSource fails to compile unless the target byte order is %s.
const endianSource = `
#if !defined(__BYTE_ORDER__) || !defined(__ORDER_%[1]s_ENDIAN__)
# error byte order not advertised
#endif
#if __BYTE_ORDER__ != __ORDER_%[1]s_ENDIAN__
# error not %[1]s endian
#endif
int main(void)
{
    return 0;
}
`
