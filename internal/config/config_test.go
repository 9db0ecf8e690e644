package config

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	c := New()
	require.Equal(t, int64(DefaultGCThreshold), c.GCThreshold)
	require.Equal(t, DefaultSTMRetryLimit, c.STMRetryLimit)
	require.Empty(t, c.SnapshotPath)
	require.False(t, c.TreeWalk)
	require.False(t, c.DumpBytecode)
	require.NotNil(t, c.Log)
}

func TestOptionsOverrideDefaults(t *testing.T) {
	log := hclog.NewNullLogger()
	c := New(
		WithGCThreshold(1<<10),
		WithSTMRetryLimit(5),
		WithSnapshotPath("/tmp/lumen.snapshot"),
		WithTreeWalk(),
		WithDumpBytecode(),
		WithLogger(log),
	)
	require.Equal(t, int64(1<<10), c.GCThreshold)
	require.Equal(t, 5, c.STMRetryLimit)
	require.Equal(t, "/tmp/lumen.snapshot", c.SnapshotPath)
	require.True(t, c.TreeWalk)
	require.True(t, c.DumpBytecode)
	require.Same(t, log, c.Log)
}

func TestLaterOptionWins(t *testing.T) {
	c := New(WithSTMRetryLimit(5), WithSTMRetryLimit(50))
	require.Equal(t, 50, c.STMRetryLimit)
}
