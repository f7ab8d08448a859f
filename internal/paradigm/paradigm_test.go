package paradigm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenzoki/meshd/internal/envelope"
)

func TestLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Paradigm{
		Name: "node",
		Methods: map[string]*Method{
			"ping": {
				Name: "ping",
				Handle: func(env *envelope.Envelope) (map[string]json.RawMessage, error) {
					return envelope.FieldsOf(struct {
						Code string `json:"code"`
					}{Code: "OK"})
				},
			},
		},
	})

	m, ok := reg.Lookup("node", "ping")
	require.True(t, ok)
	fields, err := m.Handle(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"OK"}`, string(mustMarshal(fields)))
}

func TestUnknownMessageListsChoicesAlphabetically(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Paradigm{
		Name: "node",
		Methods: map[string]*Method{
			"sync": {Name: "sync"},
			"ping": {Name: "ping"},
		},
	})

	msg := reg.UnknownMessage("node", "bogus")
	assert.Contains(t, msg, `unknown method "bogus"`)
	assert.Contains(t, msg, "ping, sync")

	msg = reg.UnknownMessage("bogus", "whatever")
	assert.Contains(t, msg, `unknown paradigm "bogus"`)
	assert.Contains(t, msg, "node")
}

func TestRegisterDuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Paradigm{Name: "node", Methods: map[string]*Method{}})
	assert.Panics(t, func() {
		reg.Register(&Paradigm{Name: "node", Methods: map[string]*Method{}})
	})
}

func TestStamp(t *testing.T) {
	env := envelope.New(envelope.ID{UUID: "u1"}, nil)
	Stamp(env, "node", "ping")
	assert.Equal(t, "node", env.Paradigm)
	assert.Equal(t, "ping", env.Method)
}

func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
