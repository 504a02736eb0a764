//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package tcpsub

import (
	"syscall"

	"github.com/pkg/errors"
)

// pendingBytes is not supported here; Available reports buffered bytes only.
func pendingBytes(syscall.Conn) (int, error) {
	return 0, errors.New("receive queue size not supported on this platform")
}
