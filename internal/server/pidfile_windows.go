//go:build windows

package server

import (
	"syscall"
)

// signalProcessExists uses OpenProcess as the Windows equivalent of the
// POSIX null-signal check, since Windows has no /proc and no signal 0.
func signalProcessExists(pid int) bool {
	const processQueryLimitedInformation = 0x1000
	handle, err := syscall.OpenProcess(processQueryLimitedInformation, false, uint32(pid))
	if err != nil {
		return false
	}
	defer syscall.CloseHandle(handle)
	return true
}
