package buildartifact

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryRecordAndLookup(t *testing.T) {
	dir := t.TempDir()
	reg, err := OpenRegistry(nil, filepath.Join(dir, "registry.db"))
	require.NoError(t, err)
	defer reg.Close()

	_, found, err := reg.Lookup("abc123")
	require.NoError(t, err)
	require.False(t, found)

	rec := Record{Hash: "abc123", OutputPath: "/tmp/out", SourceLen: 42, CreatedAt: 1700000000}
	require.NoError(t, reg.Record(rec))

	got, found, err := reg.Lookup("abc123")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rec, got)
}

func TestRegistryRecordOverwritesSameHash(t *testing.T) {
	dir := t.TempDir()
	reg, err := OpenRegistry(nil, filepath.Join(dir, "registry.db"))
	require.NoError(t, err)
	defer reg.Close()

	require.NoError(t, reg.Record(Record{Hash: "h", OutputPath: "/a", SourceLen: 1, CreatedAt: 1}))
	require.NoError(t, reg.Record(Record{Hash: "h", OutputPath: "/b", SourceLen: 2, CreatedAt: 2}))

	got, found, err := reg.Lookup("h")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "/b", got.OutputPath)
}

func TestRegistryList(t *testing.T) {
	dir := t.TempDir()
	reg, err := OpenRegistry(nil, filepath.Join(dir, "registry.db"))
	require.NoError(t, err)
	defer reg.Close()

	require.NoError(t, reg.Record(Record{Hash: "one", SourceLen: 1}))
	require.NoError(t, reg.Record(Record{Hash: "two", SourceLen: 2}))

	all, err := reg.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestRegistryPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.db")

	reg1, err := OpenRegistry(nil, path)
	require.NoError(t, err)
	require.NoError(t, reg1.Record(Record{Hash: "persisted", SourceLen: 7}))
	require.NoError(t, reg1.Close())

	reg2, err := OpenRegistry(nil, path)
	require.NoError(t, err)
	defer reg2.Close()

	got, found, err := reg2.Lookup("persisted")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(7), got.SourceLen)
}
