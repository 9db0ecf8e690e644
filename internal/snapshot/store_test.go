package snapshot

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStoreRoundTrips(t *testing.T) {
	s := NewMemStore()
	_, ok, err := s.Load()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Save([]byte("hello")))
	data, ok, err := s.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), data)
}

func TestNoopStoreNeverHasData(t *testing.T) {
	s := NewNoopStore()
	require.NoError(t, s.Save([]byte("anything")))
	_, ok, err := s.Load()
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, s.Close())
}

func TestBoltStoreRoundTripsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.db")

	s1, err := NewBoltStore(nil, path)
	require.NoError(t, err)
	require.NoError(t, s1.Save([]byte("snapshot-bytes")))
	require.NoError(t, s1.Close())

	s2, err := NewBoltStore(nil, path)
	require.NoError(t, err)
	defer s2.Close()
	data, ok, err := s2.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("snapshot-bytes"), data)
}

func TestBoltStoreLoadOnEmptyDBReportsAbsent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBoltStore(nil, filepath.Join(dir, "empty.db"))
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Load()
	require.NoError(t, err)
	require.False(t, ok)
}
