// Package snapshot implements the optional precompiled bootstrap cache
// described in spec §6.3: a tool-mode binary serializes the post-bootstrap
// environment into a flat, versioned byte sequence, and a later run can
// restore it instead of re-parsing and recompiling bootstrap sources.
package snapshot

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	"go.etcd.io/bbolt"
)

var (
	snapshotBucket = []byte("lumen-snapshot")
	snapshotKey    = []byte("cache")
)

// Store persists and retrieves the single encoded snapshot blob. Several
// concrete backends satisfy the same small contract, grounded directly on
// nomad's client/state.StateDB interface (BoltStateDB/MemDB/NoopDB all
// implement one shared surface so callers and tests don't care which
// backend they're handed).
type Store interface {
	// Name identifies the backend, for logging (mirrors StateDB.Name).
	Name() string
	// Load returns the stored blob and true, or nil and false if no
	// snapshot has ever been saved.
	Load() ([]byte, bool, error)
	Save(data []byte) error
	Close() error
}

// BoltStore is the on-disk Store, grounded on nomad's client/state.BoltStateDB:
// one bucket, a single key, opened once and reused across Load/Save calls.
type BoltStore struct {
	db  *bbolt.DB
	log hclog.Logger
}

// NewBoltStore opens (creating if absent) a bbolt database at path to back
// the snapshot cache.
func NewBoltStore(log hclog.Logger, path string) (*BoltStore, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot: opening bolt store at %s: %w", path, err)
	}
	return &BoltStore{db: db, log: log.Named("snapshot.bolt")}, nil
}

func (s *BoltStore) Name() string { return "bolt" }

func (s *BoltStore) Load() ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(snapshotBucket)
		if b == nil {
			return nil
		}
		if v := b.Get(snapshotKey); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("snapshot: reading bolt store: %w", err)
	}
	return data, data != nil, nil
}

func (s *BoltStore) Save(data []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(snapshotBucket)
		if err != nil {
			return err
		}
		return b.Put(snapshotKey, data)
	})
	if err != nil {
		return fmt.Errorf("snapshot: writing bolt store: %w", err)
	}
	return nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

// MemStore is an in-process Store for tests, mirroring nomad's MemDB: no
// disk I/O, state lives only as long as the process does.
type MemStore struct {
	data []byte
}

func NewMemStore() *MemStore { return &MemStore{} }

func (s *MemStore) Name() string { return "memory" }

func (s *MemStore) Load() ([]byte, bool, error) { return s.data, s.data != nil, nil }

func (s *MemStore) Save(data []byte) error {
	s.data = append([]byte(nil), data...)
	return nil
}

func (s *MemStore) Close() error { return nil }

// NoopStore discards every write and never has anything to restore,
// mirroring nomad's NoopDB. Used when the runtime is configured with no
// snapshot path: bootstrap always parses and compiles from source.
type NoopStore struct{}

func NewNoopStore() NoopStore { return NoopStore{} }

func (NoopStore) Name() string                   { return "noop" }
func (NoopStore) Load() ([]byte, bool, error)    { return nil, false, nil }
func (NoopStore) Save([]byte) error              { return nil }
func (NoopStore) Close() error                   { return nil }
