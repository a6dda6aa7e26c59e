//go:build linux || darwin

package netutil

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// listenConfigControl sets SO_REUSEADDR and SO_REUSEPORT on the raw
// file descriptor before bind, so the same local port can be reused
// for both the listening and the outbound dialing side of a hole-punch
// attempt. Grounded on
// original_source/gday_hole_punch/src/hole_puncher.rs's
// get_local_socket (socket2's set_reuse_address/set_reuse_port).
func listenConfigControl(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); opErr != nil {
			return
		}
		opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
