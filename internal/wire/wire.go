// Package wire implements the JSON object framing used by both the
// inbound, long-lived listener socket and the short-lived outbound sockets
// the worker pool and peer client dial per exchange. It stands in for the
// original's ZMTP REQ/REP sockets: plain net.Conn plus one JSON value per
// message, which is exactly the wire shape the envelope schema describes.
package wire

import (
	"encoding/json"
	"fmt"
	"net"
)

// Conn wraps a net.Conn with the encoder/decoder pair used to exchange one
// JSON object per Send/Recv call, mirroring the broker's own Connection
// type but scoped to this package's narrower req/rep framing.
type Conn struct {
	net.Conn
	enc *json.Encoder
	dec *json.Decoder
}

// NewConn adopts an already-established net.Conn.
func NewConn(c net.Conn) *Conn {
	return &Conn{Conn: c, enc: json.NewEncoder(c), dec: json.NewDecoder(c)}
}

// Dial opens a fresh outbound connection to address, used for exactly one
// exchange and closed by the caller afterward.
func Dial(address string) (*Conn, error) {
	c, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("wire: dial %s: %w", address, err)
	}
	return NewConn(c), nil
}

// Send encodes v as one JSON object onto the connection.
func (c *Conn) Send(v interface{}) error {
	if err := c.enc.Encode(v); err != nil {
		return fmt.Errorf("wire: send: %w", err)
	}
	return nil
}

// Recv decodes the next JSON object on the connection into v.
func (c *Conn) Recv(v interface{}) error {
	if err := c.dec.Decode(v); err != nil {
		return fmt.Errorf("wire: recv: %w", err)
	}
	return nil
}

// RecvRaw decodes the next JSON object as a generic top-level field map,
// used by the listener before the envelope's shape is known to be valid.
func (c *Conn) RecvRaw() (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := c.dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("wire: recv: %w", err)
	}
	return raw, nil
}
