package node

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenzoki/meshd/internal/envelope"
	"github.com/tenzoki/meshd/internal/peer"
)

type fakeCreator struct {
	created []string
	synced  []bool
}

func (f *fakeCreator) Create(address string, sync bool) error {
	f.created = append(f.created, address)
	f.synced = append(f.synced, sync)
	return nil
}

func TestPingHandlerAlwaysOK(t *testing.T) {
	store := peer.NewMemoryStore()
	p := New(store, &fakeCreator{})
	ping := p.Methods[MethodPing]

	env := envelope.New(envelope.ID{UUID: "u1", From: "a:1", To: "b:1", Kind: envelope.KindRequest}, nil)
	fields, err := ping.Handle(env)
	require.NoError(t, err)

	var body pingResponse
	b, _ := json.Marshal(fields)
	require.NoError(t, json.Unmarshal(b, &body))
	assert.Equal(t, CodeOK, body.Code)
}

func TestPingHandlerTouchesKnownSender(t *testing.T) {
	store := peer.NewMemoryStore()
	_, _ = store.Create("a:1")
	p := New(store, &fakeCreator{})
	ping := p.Methods[MethodPing]

	env := envelope.New(envelope.ID{UUID: "u1", From: "a:1", To: "b:1", Kind: envelope.KindRequest}, nil)
	before, err := store.List()
	require.NoError(t, err)
	require.Len(t, before, 1)
	lastSeen := before[0].LastSeenAt

	_, err = ping.Handle(env)
	require.NoError(t, err)

	after, err := store.List()
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.True(t, !after[0].LastSeenAt.Before(lastSeen))
}

func TestBuildPingRequestStampsParadigmAndMethod(t *testing.T) {
	env := BuildPingRequest(envelope.ID{UUID: "u1", From: "a:1", To: "b:2", Kind: envelope.KindRequest})
	assert.Equal(t, Name, env.Paradigm)
	assert.Equal(t, MethodPing, env.Method)
}

func TestSyncHandlerReturnsLocalMinusIncomingSorted(t *testing.T) {
	store := peer.NewMemoryStore()
	_, _ = store.Create("b:1")
	_, _ = store.Create("c:1")

	creator := &fakeCreator{}
	p := New(store, creator)
	sync := p.Methods[MethodSync]

	env := envelope.New(envelope.ID{UUID: "u1", From: "a:1", To: "b:1", Kind: envelope.KindRequest}, nil)
	require.NoError(t, env.Set(syncBody{Nodes: []string{"a:1", "d:1"}}))

	fields, err := sync.Handle(env)
	require.NoError(t, err)

	var body syncBody
	b, _ := json.Marshal(fields)
	require.NoError(t, json.Unmarshal(b, &body))
	assert.Equal(t, []string{"b:1", "c:1"}, body.Nodes)

	assert.ElementsMatch(t, []string{"a:1", "d:1"}, creator.created)
	for _, sync := range creator.synced {
		assert.True(t, sync)
	}
}

func TestSyncHandlerSkipsAlreadyKnownAddresses(t *testing.T) {
	store := peer.NewMemoryStore()
	_, _ = store.Create("b:1")

	creator := &fakeCreator{}
	p := New(store, creator)
	sync := p.Methods[MethodSync]

	env := envelope.New(envelope.ID{UUID: "u1", From: "a:1", To: "b:1", Kind: envelope.KindRequest}, nil)
	require.NoError(t, env.Set(syncBody{Nodes: []string{"b:1"}}))

	_, err := sync.Handle(env)
	require.NoError(t, err)
	assert.Empty(t, creator.created)
}
