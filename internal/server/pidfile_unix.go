//go:build !windows

package server

import "syscall"

// signalProcessExists sends the null signal to pid; on POSIX systems this
// succeeds (possibly with EPERM, which still proves the process exists) iff
// the process is alive, used as the fallback when /proc is unavailable.
func signalProcessExists(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}
