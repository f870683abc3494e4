package lockscreen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyber-rangers/cratec/internal/cratecerr"
)

func TestGate_LockUnlockSequence(t *testing.T) {
	var g Gate

	err := g.Lock("123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, cratecerr.ErrInvalidPIN))
	assert.False(t, g.Locked())

	require.NoError(t, g.Lock("1234"))
	assert.True(t, g.Locked())

	err = g.Unlock("1235")
	require.Error(t, err)
	assert.True(t, errors.Is(err, cratecerr.ErrPINMismatch))
	assert.True(t, g.Locked())

	require.NoError(t, g.Unlock("1234"))
	assert.False(t, g.Locked())
}
