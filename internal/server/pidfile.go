package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PidfilePath returns "<cacheDir>/server-<port>.pid", the naming convention
// this daemon uses so that multiple instances on the same cache directory
// (different ports) don't collide.
func PidfilePath(cacheDir string, port int) string {
	return filepath.Join(cacheDir, fmt.Sprintf("server-%d.pid", port))
}

// writePidfile writes the current process's decimal PID to path as its
// entire contents, creating the parent directory if needed. A file already
// at path is overwritten; nothing here checks whether another instance
// owns it.
func writePidfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("server: creating pidfile directory: %w", err)
	}
	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(path, []byte(pid), 0o644); err != nil {
		return fmt.Errorf("server: writing pidfile %s: %w", path, err)
	}
	return nil
}

// removePidfile deletes path, ignoring a not-exist error since teardown is
// idempotent and may run after the file is already gone.
func removePidfile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("server: removing pidfile %s: %w", path, err)
	}
	return nil
}

// readPidfile reads and parses the PID stored at path.
func readPidfile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("server: malformed pidfile %s: %w", path, err)
	}
	return pid, nil
}

// IsRunning reports whether the pidfile for port under cacheDir exists AND
// names a PID with a live OS-level process entry. A stale pidfile (process
// gone) reads as false, never true.
func IsRunning(cacheDir string, port int) bool {
	path := PidfilePath(cacheDir, port)
	pid, err := readPidfile(path)
	if err != nil {
		return false
	}
	return processAlive(pid)
}

// processAlive checks /proc/<pid> on systems that expose it. Elsewhere
// (notably non-Linux), it falls back to sending signal 0 to the process,
// which the OS accepts only if the process exists and is signalable.
func processAlive(pid int) bool {
	if _, err := os.Stat("/proc/self"); err == nil {
		if _, err := os.Stat(fmt.Sprintf("/proc/%d", pid)); err == nil {
			return true
		} else if os.IsNotExist(err) {
			return false
		}
	}
	// /proc not mounted, or a stat failure we can't interpret: fall through
	// to the signal-based check rather than guessing either way.
	return signalProcessExists(pid)
}
