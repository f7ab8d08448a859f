// Package peer implements the persistent registry of known peer addresses:
// a plain record type plus a Store interface exposing the operations the
// core server and node paradigm need, re-architected from the original's
// database-table-as-base-class design into a repository interface with a
// swappable backing implementation.
package peer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Peer is one entry in the registry. Address is "host:port" and unique.
type Peer struct {
	ID         string    `json:"id"`
	Address    string    `json:"address"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Store is the abstract peer registry the core depends on. Implementations
// must make Exists and address normalization safe for concurrent callers;
// the core never opens more than one operation at a time per address, but
// different addresses may be touched concurrently by different workers.
type Store interface {
	// List returns every known peer.
	List() ([]Peer, error)
	// Exists reports whether address (already normalized) is known.
	Exists(address string) (bool, error)
	// Create inserts address, failing if it already exists. Callers are
	// responsible for normalization, pinging, and any sync side effect;
	// Create itself is a pure insert.
	Create(address string) (Peer, error)
	// Touch bumps LastSeenAt for address to now. A no-op if address is
	// unknown (callers that need "must exist" semantics should Exists
	// first).
	Touch(address string) error
}

// DefaultPort is appended to an address with no explicit port.
const DefaultPort = 5555

// Normalize appends ":<DefaultPort>" to address if it has no ":<digits>"
// suffix, matching the peer store's address normalization rule.
func Normalize(address string) string {
	idx := strings.LastIndex(address, ":")
	if idx == -1 {
		return fmt.Sprintf("%s:%d", address, DefaultPort)
	}
	if _, err := strconv.Atoi(address[idx+1:]); err != nil {
		return fmt.Sprintf("%s:%d", address, DefaultPort)
	}
	return address
}
