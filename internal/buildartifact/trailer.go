// Package buildartifact implements the persisted build artifact format from
// spec §6.2: a `build`-produced binary is the host binary's bytes followed
// by a trailer holding the embedded Lumen source. On startup the runtime
// reads the trailer off its own executable and, if present, runs the
// embedded source directly instead of parsing CLI arguments.
package buildartifact

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// magic identifies a Lumen trailer at the tail of an otherwise-ordinary
// executable. Picked to be vanishingly unlikely to occur by chance in the
// last bytes of a linked binary.
var magic = [8]byte{'L', 'U', 'M', 'N', 'T', 'R', 'L', 'R'}

// formatVersion lets a future runtime refuse a trailer written by an older
// (or newer) build subcommand instead of misreading its footer.
const formatVersion uint32 = 1

// footerSize is the fixed-size record at the very end of the file: magic
// number, embedded source length, and format version. Everything between
// the end of the host binary and the start of the footer is the source.
const footerSize = len(magic) + 8 + 4

var (
	// ErrNoTrailer is returned when the file has no recognizable trailer —
	// the ordinary case for a binary that was never produced by `build`.
	ErrNoTrailer = errors.New("buildartifact: no trailer present")
	// ErrVersionMismatch is returned when the trailer's format version is
	// not one this runtime knows how to read.
	ErrVersionMismatch = errors.New("buildartifact: trailer format version mismatch")
)

// Embed writes host's bytes followed by a trailer embedding source, to w.
// The packaging of host itself (producing a self-contained executable via
// `go build` plus this trailer) is the `build` subcommand's concern and is
// out of scope here; Embed only implements the trailer format.
func Embed(w io.Writer, host io.Reader, source []byte) error {
	if _, err := io.Copy(w, host); err != nil {
		return fmt.Errorf("buildartifact: copying host binary: %w", err)
	}
	if _, err := w.Write(source); err != nil {
		return fmt.Errorf("buildartifact: writing embedded source: %w", err)
	}
	var footer bytes.Buffer
	footer.Write(magic[:])
	binary.Write(&footer, binary.BigEndian, uint64(len(source)))
	binary.Write(&footer, binary.BigEndian, formatVersion)
	if _, err := w.Write(footer.Bytes()); err != nil {
		return fmt.Errorf("buildartifact: writing trailer footer: %w", err)
	}
	return nil
}

// Read opens path and extracts its embedded source, if any. ErrNoTrailer
// means path is an ordinary binary: the runtime should fall back to normal
// CLI argument parsing, not treat this as fatal.
func Read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("buildartifact: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("buildartifact: stat %s: %w", path, err)
	}
	if info.Size() < int64(footerSize) {
		return nil, ErrNoTrailer
	}

	footer := make([]byte, footerSize)
	if _, err := f.ReadAt(footer, info.Size()-int64(footerSize)); err != nil {
		return nil, fmt.Errorf("buildartifact: reading footer: %w", err)
	}
	if !bytes.Equal(footer[:len(magic)], magic[:]) {
		return nil, ErrNoTrailer
	}

	sourceLen := binary.BigEndian.Uint64(footer[len(magic) : len(magic)+8])
	version := binary.BigEndian.Uint32(footer[len(magic)+8:])
	if version != formatVersion {
		return nil, ErrVersionMismatch
	}

	sourceStart := info.Size() - int64(footerSize) - int64(sourceLen)
	if sourceStart < 0 {
		return nil, fmt.Errorf("buildartifact: %w: source length %d exceeds file size", ErrNoTrailer, sourceLen)
	}

	source := make([]byte, sourceLen)
	if sourceLen > 0 {
		if _, err := f.ReadAt(source, sourceStart); err != nil {
			return nil, fmt.Errorf("buildartifact: reading embedded source: %w", err)
		}
	}
	return source, nil
}

// ReadSelf reads the trailer off the currently running executable — the
// path cmd/lumen actually takes at startup.
func ReadSelf() ([]byte, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("buildartifact: locating self: %w", err)
	}
	return Read(exe)
}
