//go:build linux

package tcpsub

import "golang.org/x/sys/unix"

const ioctlInQueue = unix.SIOCINQ
