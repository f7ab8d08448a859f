package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	env := New(ID{UUID: "u1", From: "localhost:9001", To: "localhost:9002", Kind: KindRequest}, nil)
	env.Paradigm = "node"
	env.Method = "ping"
	require.NoError(t, env.Set(struct{}{}))

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "u1", decoded.ID.UUID)
	assert.Equal(t, "localhost:9001", decoded.ID.From)
	assert.Equal(t, "localhost:9002", decoded.ID.To)
	assert.Equal(t, KindRequest, decoded.ID.Kind)
	assert.Equal(t, "node", decoded.Paradigm)
	assert.Equal(t, "ping", decoded.Method)
}

func TestFromRawRejectsMissingID(t *testing.T) {
	raw := map[string]json.RawMessage{
		"hehe": json.RawMessage(`"fail"`),
	}
	env, err := FromRaw(raw)
	require.Error(t, err)
	assert.Nil(t, env)
}

func TestSetMergesFields(t *testing.T) {
	env := New(ID{UUID: "u1", From: "a:1", To: "b:2", Kind: KindRequest}, nil)
	require.NoError(t, env.Set(struct {
		Nodes []string `json:"nodes"`
	}{Nodes: []string{"a:1", "b:2"}}))

	var out struct {
		Nodes []string `json:"nodes"`
	}
	require.NoError(t, env.Decode(&out))
	assert.Equal(t, []string{"a:1", "b:2"}, out.Nodes)
}
