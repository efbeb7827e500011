package flagfile

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisarmed(t *testing.T) {
	assert.Equal(t, filepath.Join("Config", "Trade_ExitNO.txt"), Disarmed(filepath.Join("Config", "Trade_Exit.txt")))
	assert.Equal(t, "STOPNO", Disarmed("STOP"))
}

func TestArmDisarmCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Trade_Exit.txt")

	renamed, err := Disarm(path)
	require.NoError(t, err)
	assert.False(t, renamed)

	require.NoError(t, Arm(path))
	assert.True(t, Exists(path))

	renamed, err = Disarm(path)
	require.NoError(t, err)
	assert.True(t, renamed)
	assert.False(t, Exists(path))
	assert.True(t, Exists(Disarmed(path)))

	require.NoError(t, Arm(path))
	assert.True(t, Exists(path))
	assert.False(t, Exists(Disarmed(path)))
}

func TestCreateRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "PlaceBuyOrders.txt")
	require.NoError(t, Create(path))
	assert.True(t, Exists(path))
	require.NoError(t, Remove(path))
	assert.False(t, Exists(path))
	assert.NoError(t, Remove(path))
}
