// Package node implements the node paradigm: ping (liveness) and sync
// (gossip-style membership convergence), the only paradigm this daemon
// ships with today. Both methods are handlers closing over a peer.Store so
// the registry stays free of any node-specific knowledge.
package node

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/tenzoki/meshd/internal/envelope"
	"github.com/tenzoki/meshd/internal/paradigm"
	"github.com/tenzoki/meshd/internal/peer"
)

// Name is this paradigm's explicit, registered name (no longer derived from
// a type name, per the registry's redesign).
const Name = "node"

// Method names within the node paradigm.
const (
	MethodPing = "ping"
	MethodSync = "sync"
)

// Ping status codes carried in a ping response.
const (
	CodeOK     = "OK"
	CodeFailed = "FAILED"
)

type pingResponse struct {
	Code string `json:"code"`
}

type syncBody struct {
	Nodes []string `json:"nodes"`
}

// Creator is the subset of peer-creation behavior the sync handler needs:
// create an address the remote sent that this node doesn't know yet. The
// sync argument says whether the new peer is synced with in turn; the sync
// handler always passes true.
type Creator interface {
	Create(address string, sync bool) error
}

// New builds the node paradigm's registry entry. store backs both ping's
// last-seen bump for a known sender and sync's membership comparison.
// creator is used by the sync handler to recursively create the addresses
// the remote knows that this node doesn't yet.
func New(store peer.Store, creator Creator) *paradigm.Paradigm {
	return &paradigm.Paradigm{
		Name: Name,
		Methods: map[string]*paradigm.Method{
			MethodPing: {
				Name:             MethodPing,
				RequestFragment:  paradigm.Fragment{},
				ResponseFragment: paradigm.Fragment{
					Properties: map[string]interface{}{
						"code": map[string]interface{}{
							"type": "string",
							"enum": []interface{}{CodeOK, CodeFailed},
						},
					},
					Required: []string{"code"},
				},
				BuildRequest: func(data interface{}) (map[string]json.RawMessage, error) {
					return envelope.FieldsOf(struct{}{})
				},
				Handle: makePingHandler(store),
			},
			MethodSync: {
				Name: MethodSync,
				RequestFragment: paradigm.Fragment{
					Properties: map[string]interface{}{
						"nodes": map[string]interface{}{
							"type":  "array",
							"items": map[string]interface{}{"type": "string"},
						},
					},
					Required: []string{"nodes"},
				},
				ResponseFragment: paradigm.Fragment{
					Properties: map[string]interface{}{
						"nodes": map[string]interface{}{
							"type":  "array",
							"items": map[string]interface{}{"type": "string"},
						},
					},
					Required: []string{"nodes"},
				},
				BuildRequest: func(data interface{}) (map[string]json.RawMessage, error) {
					return envelope.FieldsOf(data)
				},
				Handle: makeSyncHandler(store, creator),
			},
		},
	}
}

// makePingHandler returns a ping handler closing over store so a
// successful liveness check bumps the requester's last-seen timestamp —
// the operation the original's Node.create/ping flow performed that
// spec.md's Peer.last_seen_at field otherwise names but never updates.
// Touch is a no-op for a sender store doesn't already know, so this never
// creates a peer record on its own.
func makePingHandler(store peer.Store) paradigm.HandlerFunc {
	return func(env *envelope.Envelope) (map[string]json.RawMessage, error) {
		if env != nil && env.ID.From != "" {
			if err := store.Touch(env.ID.From); err != nil {
				log.Printf("Node: touching %s after ping failed: %v", env.ID.From, err)
			}
		}
		return envelope.FieldsOf(pingResponse{Code: CodeOK})
	}
}

// BuildPingRequest returns a fully stamped ping request envelope, the
// method's public request builder for the peer client and CLI to use.
func BuildPingRequest(id envelope.ID) *envelope.Envelope {
	env := envelope.New(id, nil)
	paradigm.Stamp(env, Name, MethodPing)
	return env
}

// BuildSyncRequest returns a fully stamped sync request envelope carrying
// the caller's known peer addresses.
func BuildSyncRequest(id envelope.ID, nodes []string) (*envelope.Envelope, error) {
	env := envelope.New(id, nil)
	paradigm.Stamp(env, Name, MethodSync)
	if err := env.Set(syncBody{Nodes: nodes}); err != nil {
		return nil, fmt.Errorf("node: building sync request: %w", err)
	}
	return env, nil
}

func makeSyncHandler(store peer.Store, creator Creator) paradigm.HandlerFunc {
	return func(env *envelope.Envelope) (map[string]json.RawMessage, error) {
		var body syncBody
		if err := env.Decode(&body); err != nil {
			return nil, fmt.Errorf("node: decoding sync request: %w", err)
		}

		local, err := store.List()
		if err != nil {
			return nil, fmt.Errorf("node: listing local peers: %w", err)
		}
		localSet := make(map[string]bool, len(local))
		for _, p := range local {
			localSet[p.Address] = true
		}

		incomingSet := make(map[string]bool, len(body.Nodes))
		for _, addr := range body.Nodes {
			incomingSet[addr] = true
		}

		// Side effect: create locally every address the remote knows that
		// we don't, recursively triggering their own sync to accelerate
		// convergence.
		for addr := range incomingSet {
			if localSet[addr] {
				continue
			}
			if err := creator.Create(addr, true); err != nil {
				log.Printf("Node: sync could not create %s: %v", addr, err)
			}
		}

		// Response: addresses we know that the remote doesn't.
		var missing []string
		for addr := range localSet {
			if !incomingSet[addr] {
				missing = append(missing, addr)
			}
		}
		sort.Strings(missing)

		return envelope.FieldsOf(syncBody{Nodes: missing})
	}
}
