package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/firmgate/devstore"
)

func TestStore_RoundTrip(t *testing.T) {
	s := NewStore()

	_, err := s.Load()
	assert.ErrorIs(t, err, devstore.ErrNotFound)

	cfg, err := devstore.NewConfig("bench device")
	require.NoError(t, err)
	require.NoError(t, s.Save(cfg))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.DeviceID, got.DeviceID)
	assert.Equal(t, "bench device", got.Label)
	assert.Equal(t, cfg.Entropy, got.Entropy)

	// Loaded config is a copy; mutating it does not affect the store.
	got.Label = "changed"
	again, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "bench device", again.Label)
}

func TestStore_Wipe(t *testing.T) {
	s := NewStore()
	cfg, err := devstore.NewConfig("x")
	require.NoError(t, err)
	require.NoError(t, s.Save(cfg))

	require.NoError(t, s.Wipe())
	_, err = s.Load()
	assert.ErrorIs(t, err, devstore.ErrNotFound)

	// Wiping an empty store is fine.
	require.NoError(t, s.Wipe())
}
