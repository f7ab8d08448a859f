// Package client implements the outbound peer connection: one freshly
// dialed socket per exchange, a send, and a bounded poll for the reply.
//
// The connection this opens only ever carries the immediate {ack:true} the
// remote's listener returns the instant it enqueues the request — the real
// business response is delivered later, on a fresh connection the remote
// worker dials back to this node's own listener (internal/server). Send
// registers the exchange's uuid with a reply.Registry before dialing so
// that listener can hand the eventual reply back to it.
package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tenzoki/meshd/internal/reply"
	"github.com/tenzoki/meshd/internal/wire"
)

// PollTimeout is how long Send waits for the real reply once the initial
// ack has been exchanged, per the peer client's documented 2000 ms poll
// timeout.
const PollTimeout = 2000 * time.Millisecond

// TimeoutError is returned by Send when no reply arrives within
// PollTimeout.
type TimeoutError struct {
	Address string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("client: timeout waiting for reply from %s", e.Address)
}

// Send delivers envelope — which must carry id.uuid — to address, confirms
// the remote accepted it, and then waits up to PollTimeout for the
// correlated reply to surface via registry. The dialed connection is
// closed as soon as the ack is in; it plays no further part in the
// exchange.
func Send(registry *reply.Registry, uuid, address string, envelope interface{}) (map[string]json.RawMessage, error) {
	replyCh, cancel := registry.Register(uuid)
	defer cancel()

	conn, err := wire.Dial(address)
	if err != nil {
		return nil, fmt.Errorf("client: send to %s: %w", address, err)
	}

	if err := conn.Send(envelope); err != nil {
		conn.Close()
		return nil, fmt.Errorf("client: send to %s: %w", address, err)
	}

	var ack map[string]json.RawMessage
	recvErr := conn.Recv(&ack)
	conn.Close()
	if recvErr != nil {
		return nil, fmt.Errorf("client: ack from %s: %w", address, recvErr)
	}

	select {
	case raw := <-replyCh:
		return raw, nil
	case <-time.After(PollTimeout):
		return nil, &TimeoutError{Address: address}
	}
}
