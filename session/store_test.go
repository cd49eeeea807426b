package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/firmgate/internal/util"
)

func TestStore_NoActiveSession(t *testing.T) {
	s := NewStore()

	_, _, err := s.Get(SlotAuthorization)
	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.ErrorIs(t, s.Set(SlotAuthorization, []byte("x")), ErrNoActiveSession)
	assert.ErrorIs(t, s.Delete(SlotAuthorization), ErrNoActiveSession)
	_, err = s.IsSet(SlotAuthorization)
	assert.ErrorIs(t, err, ErrNoActiveSession)
	_, err = s.Seed()
	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.Nil(t, s.ActiveID())
}

func TestStore_StartAndResume(t *testing.T) {
	s := NewStore()

	id1, err := s.StartSession(nil)
	require.NoError(t, err)
	require.Len(t, id1, IDLength)
	require.NoError(t, s.Set(SlotAuthorization, []byte("alpha")))

	id2, err := s.StartSession(nil)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	// Fresh session sees nothing.
	set, err := s.IsSet(SlotAuthorization)
	require.NoError(t, err)
	assert.False(t, set)

	// Resuming swaps the full slot mapping back.
	resumed, err := s.StartSession(id1)
	require.NoError(t, err)
	assert.Equal(t, id1, resumed)
	v, ok, err := s.Get(SlotAuthorization)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("alpha"), v)
}

func TestStore_IsolationAcrossAlternateResumes(t *testing.T) {
	s := NewStore()

	idA, err := s.StartSession(nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(SlotAuthorization, []byte("A")))

	idB, err := s.StartSession(nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(SlotAuthorization, []byte("B")))

	for i := 0; i < 3; i++ {
		_, err = s.StartSession(idA)
		require.NoError(t, err)
		v, _, err := s.Get(SlotAuthorization)
		require.NoError(t, err)
		assert.Equal(t, []byte("A"), v)

		_, err = s.StartSession(idB)
		require.NoError(t, err)
		v, _, err = s.Get(SlotAuthorization)
		require.NoError(t, err)
		assert.Equal(t, []byte("B"), v)
	}
}

func TestStore_EndCurrentSession(t *testing.T) {
	s := NewStore()

	id, err := s.StartSession(nil)
	require.NoError(t, err)
	s.EndCurrentSession()

	_, _, err = s.Get(SlotAuthorization)
	assert.ErrorIs(t, err, ErrNoActiveSession)

	// Ended sessions are not resumable; the identifier allocates fresh.
	id2, err := s.StartSession(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)

	// Ending twice is harmless.
	s.EndCurrentSession()
	s.EndCurrentSession()
}

func TestStore_EvictsOldestNonActive(t *testing.T) {
	s := NewStore()

	ids := make([][]byte, 0, MaxSessions)
	for i := 0; i < MaxSessions; i++ {
		id, err := s.StartSession(nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// The table is full; the next start evicts the oldest parked session.
	_, err := s.StartSession(nil)
	require.NoError(t, err)

	evicted, err := s.StartSession(ids[0])
	require.NoError(t, err)
	assert.NotEqual(t, ids[0], evicted, "oldest session should have been evicted")

	// ids[1] onward survive. The resume above consumed one more slot, so
	// check survival before churning further.
	s2 := NewStore()
	ids2 := make([][]byte, 0, MaxSessions)
	for i := 0; i < MaxSessions; i++ {
		id, err := s2.StartSession(nil)
		require.NoError(t, err)
		ids2 = append(ids2, id)
	}
	_, err = s2.StartSession(nil)
	require.NoError(t, err)
	resumed, err := s2.StartSession(ids2[1])
	require.NoError(t, err)
	assert.Equal(t, ids2[1], resumed)
}

func TestStore_SeedWriteOnce(t *testing.T) {
	s := NewStore()
	_, err := s.StartSession(nil)
	require.NoError(t, err)

	_, err = s.Seed()
	assert.ErrorIs(t, err, ErrSeedNotSet)

	seed := []byte{1, 2, 3, 4}
	require.NoError(t, s.SetSeed(util.CopyBytes(seed)))

	got, err := s.Seed()
	require.NoError(t, err)
	assert.Equal(t, seed, got)

	// Reading twice works; the enclave is reusable.
	got2, err := s.Seed()
	require.NoError(t, err)
	assert.Equal(t, seed, got2)

	assert.ErrorIs(t, s.SetSeed([]byte{9}), ErrSeedSet)
	assert.ErrorIs(t, s.Set(SlotSeed, []byte{9}), ErrSeedSet)

	set, err := s.IsSet(SlotSeed)
	require.NoError(t, err)
	assert.True(t, set)
}

func TestStore_DeriveCardanoFixedAfterSeed(t *testing.T) {
	s := NewStore()
	_, err := s.StartSession(nil)
	require.NoError(t, err)

	require.NoError(t, s.SetDeriveCardano(true))
	derive, set, err := s.DeriveCardano()
	require.NoError(t, err)
	assert.True(t, set)
	assert.True(t, derive)

	require.NoError(t, s.SetSeed([]byte{1}))
	assert.ErrorIs(t, s.SetDeriveCardano(false), ErrDerivationFixed)

	// Still the old value.
	derive, set, err = s.DeriveCardano()
	require.NoError(t, err)
	assert.True(t, set)
	assert.True(t, derive)
}

func TestStore_BusyDeadlineRoundTrip(t *testing.T) {
	s := NewStore()
	_, err := s.StartSession(nil)
	require.NoError(t, err)

	_, set, err := s.BusyDeadline()
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, s.SetBusyDeadline(123456))
	got, set, err := s.BusyDeadline()
	require.NoError(t, err)
	require.True(t, set)
	assert.Equal(t, uint32(123456), got)

	require.NoError(t, s.Delete(SlotBusyDeadline))
	_, set, err = s.BusyDeadline()
	require.NoError(t, err)
	assert.False(t, set)
}

func TestStore_DeleteIdempotent(t *testing.T) {
	s := NewStore()
	_, err := s.StartSession(nil)
	require.NoError(t, err)

	require.NoError(t, s.Set(SlotAuthorization, []byte("x")))
	require.NoError(t, s.Delete(SlotAuthorization))
	require.NoError(t, s.Delete(SlotAuthorization))
	set, err := s.IsSet(SlotAuthorization)
	require.NoError(t, err)
	assert.False(t, set)
}

func TestStore_Reset(t *testing.T) {
	s := NewStore()
	id, err := s.StartSession(nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(SlotAuthorization, []byte("x")))

	s.Reset()
	assert.Nil(t, s.ActiveID())

	id2, err := s.StartSession(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)
}
