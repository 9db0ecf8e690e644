package snapshot

import (
	"fmt"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

var msgpackHandle = &codec.MsgpackHandle{}

// Save encodes snap and writes it to store, overwriting any prior blob.
func Save(store Store, snap *Snapshot) error {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, msgpackHandle)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("snapshot: encoding: %w", err)
	}
	return store.Save(buf)
}

// Load reads store's blob, if any, and decodes it into a Snapshot. ok is
// false when the store holds nothing yet (a cold cache, or a NoopStore),
// which a caller should treat exactly like ErrFormatMismatch: fall back to
// a normal bootstrap compile.
func Load(store Store) (snap *Snapshot, ok bool, err error) {
	data, ok, err := store.Load()
	if err != nil || !ok {
		return nil, ok, err
	}
	var s Snapshot
	dec := codec.NewDecoderBytes(data, msgpackHandle)
	if err := dec.Decode(&s); err != nil {
		return nil, false, fmt.Errorf("snapshot: decoding: %w", err)
	}
	return &s, true, nil
}
