// Package mesh wires the peer store and the node paradigm's request
// builders and client together into the one orchestration spec.md §4.3
// describes for "create": normalise, ping, insert, optionally sync. It
// exists to break the cyclic coupling the original design had between the
// peer store and the node paradigm's own wire format — the store itself
// stays a plain repository (see internal/peer), and this package is the
// only thing that knows how to turn an address into a live, synced peer.
package mesh

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/tenzoki/meshd/internal/envelope"
	"github.com/tenzoki/meshd/internal/paradigms/node"
	"github.com/tenzoki/meshd/internal/peer"
	"github.com/tenzoki/meshd/internal/reply"
	"github.com/tenzoki/meshd/public/client"
)

// Sender is the subset of public/client's behavior PeerService depends on,
// narrowed to a function type so tests can substitute a fake without a
// real socket. uuid identifies the exchange so the caller's listener can
// correlate the eventual reply.
type Sender func(uuid, address string, envelope interface{}) (map[string]json.RawMessage, error)

// PeerService implements node.Creator on top of a peer.Store, and is the
// concrete collaborator the server hands to node.New.
type PeerService struct {
	Store peer.Store
	Self  string
	Send  Sender
}

// NewPeerService returns a PeerService using public/client.Send as its
// transport, correlating replies through registry — the same one the
// server's listener delivers inbound replies into.
func NewPeerService(store peer.Store, self string, registry *reply.Registry) *PeerService {
	return &PeerService{
		Store: store,
		Self:  self,
		Send: func(uuid, address string, env interface{}) (map[string]json.RawMessage, error) {
			return client.Send(registry, uuid, address, env)
		},
	}
}

// Create normalises address, no-ops if it already exists or is the local
// address, pings it, and on success inserts it. If sync is true it then
// performs a gossip sync with the new peer. A failed ping is fatal to
// insertion but is returned to the caller rather than panicking the server.
func (s *PeerService) Create(address string, sync bool) error {
	addr := peer.Normalize(address)
	if addr == s.Self {
		return nil
	}

	exists, err := s.Store.Exists(addr)
	if err != nil {
		return fmt.Errorf("mesh: checking existing peer %s: %w", addr, err)
	}
	if exists {
		log.Printf("Mesh: peer %s already known, skipping create", addr)
		return nil
	}

	ok, err := s.ping(addr)
	if err != nil {
		return fmt.Errorf("mesh: ping %s failed: %w", addr, err)
	}
	if !ok {
		return fmt.Errorf("mesh: ping %s returned non-OK status", addr)
	}

	if _, err := s.Store.Create(addr); err != nil {
		return fmt.Errorf("mesh: inserting peer %s: %w", addr, err)
	}

	if sync {
		if err := s.syncWith(addr); err != nil {
			log.Printf("Mesh: sync with %s failed: %v", addr, err)
		}
	}
	return nil
}

func (s *PeerService) ping(address string) (bool, error) {
	id := envelope.ID{UUID: uuid.New().String(), From: s.Self, To: address, Kind: envelope.KindRequest}
	req := node.BuildPingRequest(id)

	resp, err := s.Send(id.UUID, address, req)
	if err != nil {
		return false, err
	}

	var code string
	if raw, ok := resp["code"]; ok {
		if err := json.Unmarshal(raw, &code); err != nil {
			return false, fmt.Errorf("decoding ping reply: %w", err)
		}
	}
	return code == node.CodeOK, nil
}

// syncWith sends our local peer set to address and creates, without
// further recursion, every address its response carries that we don't
// already know about.
func (s *PeerService) syncWith(address string) error {
	local, err := s.Store.List()
	if err != nil {
		return fmt.Errorf("listing local peers: %w", err)
	}
	nodes := make([]string, 0, len(local))
	for _, p := range local {
		nodes = append(nodes, p.Address)
	}

	id := envelope.ID{UUID: uuid.New().String(), From: s.Self, To: address, Kind: envelope.KindRequest}
	req, err := node.BuildSyncRequest(id, nodes)
	if err != nil {
		return fmt.Errorf("building sync request: %w", err)
	}

	resp, err := s.Send(id.UUID, address, req)
	if err != nil {
		return fmt.Errorf("sending sync to %s: %w", address, err)
	}

	var body struct {
		Nodes []string `json:"nodes"`
	}
	if raw, ok := resp["nodes"]; ok {
		if err := json.Unmarshal(raw, &body.Nodes); err != nil {
			return fmt.Errorf("decoding sync reply: %w", err)
		}
	}

	for _, addr := range body.Nodes {
		if err := s.Create(addr, false); err != nil {
			log.Printf("Mesh: could not create peer %s discovered via sync: %v", addr, err)
		}
	}
	return nil
}
