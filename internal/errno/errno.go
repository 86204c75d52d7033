// Package errno defines the kernel's user-reportable error codes.
//
// Every fallible syscall handler returns an Errno instead of a bare error so
// the dispatcher can encode it as a negated return value in a0. The numeric
// space is not invented: it is golang.org/x/sys/unix's Linux errno table,
// the same source of truth the host-side tooling this kernel was adapted
// from treats as ground truth for Linux numbering.
package errno

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Errno is a POSIX-flavored error code in [0, 133]. EUNDEF (0) is a sentinel
// for "no error code assigned", never returned to userland.
type Errno int

const (
	EUNDEF Errno = 0
	EPERM  Errno = Errno(unix.EPERM)
	ENOENT Errno = Errno(unix.ENOENT)
	ESRCH  Errno = Errno(unix.ESRCH)
	EINTR  Errno = Errno(unix.EINTR)
	EIO    Errno = Errno(unix.EIO)
	ENXIO  Errno = Errno(unix.ENXIO)
	E2BIG  Errno = Errno(unix.E2BIG)
	ENOEXEC Errno = Errno(unix.ENOEXEC)
	EBADF   Errno = Errno(unix.EBADF)
	ECHILD  Errno = Errno(unix.ECHILD)
	EAGAIN  Errno = Errno(unix.EAGAIN)
	ENOMEM  Errno = Errno(unix.ENOMEM)
	EACCES  Errno = Errno(unix.EACCES)
	EFAULT  Errno = Errno(unix.EFAULT)
	ENOTBLK Errno = Errno(unix.ENOTBLK)
	EBUSY   Errno = Errno(unix.EBUSY)
	EEXIST  Errno = Errno(unix.EEXIST)
	EXDEV   Errno = Errno(unix.EXDEV)
	ENODEV  Errno = Errno(unix.ENODEV)
	ENOTDIR Errno = Errno(unix.ENOTDIR)
	EISDIR  Errno = Errno(unix.EISDIR)
	EINVAL  Errno = Errno(unix.EINVAL)
	ENFILE  Errno = Errno(unix.ENFILE)
	EMFILE  Errno = Errno(unix.EMFILE)
	ENOTTY  Errno = Errno(unix.ENOTTY)
	EFBIG   Errno = Errno(unix.EFBIG)
	ENOSPC  Errno = Errno(unix.ENOSPC)
	ESPIPE  Errno = Errno(unix.ESPIPE)
	EROFS   Errno = Errno(unix.EROFS)
	EMLINK  Errno = Errno(unix.EMLINK)
	EPIPE   Errno = Errno(unix.EPIPE)
	ENAMETOOLONG Errno = Errno(unix.ENAMETOOLONG)
	ENOSYS       Errno = Errno(unix.ENOSYS)
	ENOTEMPTY    Errno = Errno(unix.ENOTEMPTY)
	ELOOP        Errno = Errno(unix.ELOOP)
	ETIMEDOUT    Errno = Errno(unix.ETIMEDOUT)
	ENOTSOCK     Errno = Errno(unix.ENOTSOCK)
	ECONNREFUSED Errno = Errno(unix.ECONNREFUSED)
	EHWPOISON    Errno = Errno(unix.EHWPOISON)
	ERANGE       Errno = Errno(unix.ERANGE)
)

// Error implements the error interface so an Errno can be returned directly
// from helpers that can surface multiple errno values (spec.md 7).
func (e Errno) Error() string {
	if e == EUNDEF {
		return "errno: undefined"
	}
	return fmt.Sprintf("errno %d: %s", int(e), unix.Errno(e).Error())
}

// Encode turns a syscall result into the a0 convention: non-negative return
// on success, negated errno on failure.
func Encode(ret uint64, err error) uint64 {
	if err == nil {
		return ret
	}
	var e Errno
	if as, ok := err.(Errno); ok {
		e = as
	} else {
		e = EIO
	}
	return uint64(-int64(e))
}

// From adapts a generic error into an Errno, defaulting to EIO when the
// error does not already carry a kernel errno.
func From(err error) Errno {
	if err == nil {
		return EUNDEF
	}
	if e, ok := err.(Errno); ok {
		return e
	}
	return EIO
}
