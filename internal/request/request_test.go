package request

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenzoki/meshd/internal/envelope"
	"github.com/tenzoki/meshd/internal/paradigm"
	"github.com/tenzoki/meshd/internal/schema"
	"github.com/tenzoki/meshd/internal/wire"
)

func pingRegistry() (*paradigm.Registry, *schema.Validator) {
	reg := paradigm.NewRegistry()
	reg.Register(&paradigm.Paradigm{
		Name: "node",
		Methods: map[string]*paradigm.Method{
			"ping": {
				Name: "ping",
				ResponseFragment: paradigm.Fragment{
					Properties: map[string]interface{}{
						"code": map[string]interface{}{"type": "string", "enum": []interface{}{"OK", "FAILED"}},
					},
					Required: []string{"code"},
				},
				Handle: func(env *envelope.Envelope) (map[string]json.RawMessage, error) {
					return envelope.FieldsOf(struct {
						Code string `json:"code"`
					}{Code: "OK"})
				},
			},
		},
	})
	return reg, schema.NewValidator(reg)
}

func rawOf(t *testing.T, v interface{}) map[string]json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestProcessPingHappyPath(t *testing.T) {
	reg, validator := pingRegistry()

	raw := rawOf(t, map[string]interface{}{
		"id":       map[string]interface{}{"uuid": "u1", "from": "localhost:9001", "to": "localhost:9002", "kind": "req"},
		"paradigm": "node",
		"method":   "ping",
	})

	req := New(raw)
	assert.Equal(t, "tcp://localhost:9001", req.Host)

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	serverConn := wire.NewConn(server)
	clientConn := wire.NewConn(client)

	done := make(chan error, 1)
	go func() { done <- req.Process(serverConn, reg, validator) }()

	var resp map[string]json.RawMessage
	require.NoError(t, clientConn.Recv(&resp))
	require.NoError(t, clientConn.Send(envelope.Ack{Ack: true}))
	require.NoError(t, <-done)

	var code string
	require.NoError(t, json.Unmarshal(resp["code"], &code))
	assert.Equal(t, "OK", code)

	var method string
	require.NoError(t, json.Unmarshal(resp["method"], &method))
	assert.Equal(t, "ping", method)
}

func TestProcessInvalidEnvelopePreservesUnknownFields(t *testing.T) {
	reg, validator := pingRegistry()

	raw := rawOf(t, map[string]interface{}{"hehe": "fail"})
	req := New(raw)
	assert.Equal(t, "", req.Host)

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	serverConn := wire.NewConn(server)
	clientConn := wire.NewConn(client)

	done := make(chan error, 1)
	go func() { done <- req.Process(serverConn, reg, validator) }()

	var resp map[string]json.RawMessage
	require.NoError(t, clientConn.Recv(&resp))
	require.NoError(t, clientConn.Send(envelope.Ack{Ack: true}))
	require.NoError(t, <-done)

	var code, hehe string
	require.NoError(t, json.Unmarshal(resp["code"], &code))
	require.NoError(t, json.Unmarshal(resp["hehe"], &hehe))
	assert.Equal(t, CodeValidationError, code)
	assert.Equal(t, "fail", hehe)
	_, hasMessage := resp["message"]
	assert.True(t, hasMessage)
}

func TestEqualComparesEnvelopesNotBytes(t *testing.T) {
	a := New(rawOf(t, map[string]interface{}{"id": map[string]interface{}{"uuid": "u1", "from": "a:1", "to": "b:2", "kind": "req"}, "paradigm": "node", "method": "ping"}))
	b := New(rawOf(t, map[string]interface{}{"paradigm": "node", "method": "ping", "id": map[string]interface{}{"uuid": "u1", "from": "a:1", "to": "b:2", "kind": "req"}}))
	assert.True(t, a.Equal(b))
}
