//go:build !linux && !darwin

package netutil

import "syscall"

// listenConfigControl is a no-op on platforms without SO_REUSEPORT
// support; hole punching still works there, just without the local
// port being reusable between the listen and dial legs.
func listenConfigControl(network, address string, c syscall.RawConn) error {
	return nil
}
