package displayname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForIsStableForTheSameAddress(t *testing.T) {
	assert.Equal(t, For("10.0.0.1:5555"), For("10.0.0.1:5555"))
}

func TestForVariesAcrossAddresses(t *testing.T) {
	assert.NotEqual(t, For("10.0.0.1:5555"), For("10.0.0.2:5555"))
}
