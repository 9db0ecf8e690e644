package buildartifact

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-msgpack/v2/codec"
	"go.etcd.io/bbolt"
)

var artifactBucket = []byte("lumen-build-artifacts")

// Record is one row of the build artifact side table: metadata about a
// source tree that was embedded into an output binary via Embed, keyed by
// a content hash of that source so a repeat `build` of unchanged source can
// be recognized without re-reading the output binary's trailer.
type Record struct {
	Hash       string // content hash of the embedded source
	OutputPath string
	SourceLen  int64
	CreatedAt  int64 // unix seconds, stamped by the caller
}

// Registry is a bbolt-backed side table recording Records, grounded on the
// same nomad client/state.BoltStateDB shape internal/snapshot.BoltStore
// uses: one bucket, opened once, reused across calls. It is deliberately
// separate from the trailer itself — the trailer is the single source of
// truth read back at startup; the registry is bookkeeping for tooling
// (`lumen build --list`, skip-if-unchanged) that never needs to touch the
// produced binaries to answer "have I built this before".
type Registry struct {
	db  *bbolt.DB
	log hclog.Logger
}

func OpenRegistry(log hclog.Logger, path string) (*Registry, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("buildartifact: opening registry at %s: %w", path, err)
	}
	return &Registry{db: db, log: log.Named("buildartifact.registry")}, nil
}

func (r *Registry) Close() error { return r.db.Close() }

// Record upserts rec under its Hash key.
func (r *Registry) Record(rec Record) error {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, msgpackHandle)
	if err := enc.Encode(rec); err != nil {
		return fmt.Errorf("buildartifact: encoding record: %w", err)
	}
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(artifactBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(rec.Hash), buf)
	})
	if err != nil {
		return fmt.Errorf("buildartifact: writing registry: %w", err)
	}
	return nil
}

// Lookup returns the Record stored for hash, if any.
func (r *Registry) Lookup(hash string) (Record, bool, error) {
	var rec Record
	var found bool
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(artifactBucket)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(hash))
		if v == nil {
			return nil
		}
		dec := codec.NewDecoderBytes(v, msgpackHandle)
		if err := dec.Decode(&rec); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("buildartifact: reading registry: %w", err)
	}
	return rec, found, nil
}

// List returns every recorded Record, in no particular order.
func (r *Registry) List() ([]Record, error) {
	var out []Record
	err := r.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(artifactBucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var rec Record
			dec := codec.NewDecoderBytes(v, msgpackHandle)
			if err := dec.Decode(&rec); err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("buildartifact: listing registry: %w", err)
	}
	return out, nil
}

var msgpackHandle = &codec.MsgpackHandle{}
