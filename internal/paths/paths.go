// Package paths resolves the directories meshd reads and writes, following
// the XDG Base Directory layout via github.com/adrg/xdg rather than the
// hand-rolled directory lookups the original tooling used.
package paths

import (
	"path/filepath"
	"strconv"

	"github.com/adrg/xdg"
)

// appName namespaces every directory this package resolves.
const appName = "meshd"

// DataDir returns the directory meshd persists its peer registry under:
// $XDG_DATA_HOME/meshd (falling back to ~/.local/share/meshd).
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// CacheDir returns the directory meshd keeps transient runtime state in —
// currently just the pidfile: $XDG_CACHE_HOME/meshd (falling back to
// ~/.cache/meshd).
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, appName)
}

// LogDir returns the directory meshd would write log files under, were it
// not logging to stderr via the standard log package: <DataDir>/logs.
func LogDir() string {
	return filepath.Join(DataDir(), "logs")
}

// ConfigFilePath returns the default location meshd looks for its YAML
// config file when --config is not given: $XDG_CONFIG_HOME/meshd/meshd.yaml
// (falling back to ~/.config/meshd/meshd.yaml).
func ConfigFilePath() string {
	return filepath.Join(xdg.ConfigHome, appName, "meshd.yaml")
}

// PidfilePath returns the path to the pidfile for a server listening on
// port, under CacheDir. It defers to server.PidfilePath's naming
// convention so both packages agree on the same path without internal/paths
// importing internal/server.
func PidfilePath(port int) string {
	return filepath.Join(CacheDir(), "server-"+strconv.Itoa(port)+".pid")
}
