package session

import "encoding/binary"

// Typed accessors over the byte slots. These keep the endianness and flag
// encoding bookkeeping in one place instead of at every call site.

// SetDeriveCardano records the seed-derivation variant for this session.
// Fails with ErrDerivationFixed once a seed has been derived.
func (s *Store) SetDeriveCardano(derive bool) error {
	v := []byte{}
	if derive {
		v = []byte{1}
	}
	return s.Set(SlotDeriveCardano, v)
}

// DeriveCardano reports the recorded derivation variant and whether one was
// recorded at all.
func (s *Store) DeriveCardano() (derive, set bool, err error) {
	v, ok, err := s.Get(SlotDeriveCardano)
	if err != nil {
		return false, false, err
	}
	if !ok {
		return false, false, nil
	}
	return len(v) > 0 && v[0] != 0, true, nil
}

// SetBusyDeadline stores the absolute busy deadline in milliseconds since
// boot as 4 bytes big-endian.
func (s *Store) SetBusyDeadline(deadlineMs uint32) error {
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], deadlineMs)
	return s.Set(SlotBusyDeadline, v[:])
}

// BusyDeadline returns the stored busy deadline, if any.
func (s *Store) BusyDeadline() (deadlineMs uint32, set bool, err error) {
	v, ok, err := s.Get(SlotBusyDeadline)
	if err != nil || !ok {
		return 0, false, err
	}
	if len(v) != 4 {
		return 0, false, nil
	}
	return binary.BigEndian.Uint32(v), true, nil
}
