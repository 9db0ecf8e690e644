package buildartifact

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmbedThenReadRoundTrips(t *testing.T) {
	host := strings.NewReader("fake-host-binary-bytes")
	source := []byte("(println \"hello from embedded source\")")

	var out bytes.Buffer
	require.NoError(t, Embed(&out, host, source))

	dir := t.TempDir()
	path := filepath.Join(dir, "artifact")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o755))

	got, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, source, got)
}

func TestReadOnOrdinaryBinaryReportsNoTrailer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(path, []byte("just an ordinary executable, no trailer here"), 0o755))

	_, err := Read(path)
	require.ErrorIs(t, err, ErrNoTrailer)
}

func TestReadOnTinyFileReportsNoTrailer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o755))

	_, err := Read(path)
	require.ErrorIs(t, err, ErrNoTrailer)
}

func TestEmbedWithEmptySourceRoundTrips(t *testing.T) {
	host := strings.NewReader("host")
	var out bytes.Buffer
	require.NoError(t, Embed(&out, host, nil))

	dir := t.TempDir()
	path := filepath.Join(dir, "artifact")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o755))

	got, err := Read(path)
	require.NoError(t, err)
	require.Empty(t, got)
}
