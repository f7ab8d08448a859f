package reply

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeliverWakesWaiter(t *testing.T) {
	r := NewRegistry()
	ch, cancel := r.Register("u1")
	defer cancel()

	raw := map[string]json.RawMessage{"code": json.RawMessage(`"OK"`)}
	assert.True(t, r.Deliver("u1", raw))

	select {
	case got := <-ch:
		assert.Equal(t, raw, got)
	case <-time.After(time.Second):
		t.Fatal("did not receive delivered reply")
	}
}

func TestDeliverToUnknownUUIDReportsFalse(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Deliver("missing", nil))
}

func TestCancelRemovesWaiter(t *testing.T) {
	r := NewRegistry()
	_, cancel := r.Register("u1")
	cancel()
	assert.False(t, r.Deliver("u1", nil))
}
