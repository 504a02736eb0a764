//go:build darwin || freebsd || netbsd || openbsd

package tcpsub

// FIONREAD, _IOR('f', 127, int). x/sys/unix does not export it for these platforms.
const ioctlInQueue = 0x4004667f
