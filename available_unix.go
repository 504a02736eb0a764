//go:build linux || darwin || freebsd || netbsd || openbsd

package tcpsub

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// pendingBytes reports how many bytes sit in the socket's receive queue.
func pendingBytes(c syscall.Conn) (int, error) {
	rc, err := c.SyscallConn()
	if err != nil {
		return 0, err
	}

	var n int
	var ioctlErr error
	err = rc.Control(func(fd uintptr) {
		n, ioctlErr = unix.IoctlGetInt(int(fd), ioctlInQueue)
	})
	if err != nil {
		return 0, err
	}
	return n, ioctlErr
}
