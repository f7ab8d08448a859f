package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces peer records within the database so the same Badger
// instance could, in principle, host other key families alongside peers.
const keyPrefix = "peer:"

// BadgerStore persists peers in an embedded BadgerDB, grounded on the same
// key/value wrapping pattern used elsewhere in this codebase's storage
// layer: one JSON-encoded record per key, transactions scoped to a single
// call, no session held across a yield point.
type BadgerStore struct {
	db *badger.DB
}

// BadgerConfig mirrors the handful of tuning knobs this daemon cares about;
// most callers should use DefaultBadgerConfig and only override Dir.
type BadgerConfig struct {
	Dir        string
	SyncWrites bool
}

// DefaultBadgerConfig returns sane defaults for dir, a small embedded
// registry that need not survive a crash mid-write.
func DefaultBadgerConfig(dir string) *BadgerConfig {
	return &BadgerConfig{Dir: dir, SyncWrites: false}
}

// NewBadgerStore opens (creating if absent) a BadgerDB at config.Dir.
func NewBadgerStore(config *BadgerConfig) (*BadgerStore, error) {
	if config == nil {
		return nil, fmt.Errorf("peer: badger config cannot be nil")
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("peer: creating data dir: %w", err)
	}

	opts := badger.DefaultOptions(config.Dir)
	opts.SyncWrites = config.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("peer: opening badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) List() ([]Peer, error) {
	var peers []Peer
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			item := it.Item()
			var p Peer
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return fmt.Errorf("decoding peer %s: %w", item.Key(), err)
			}
			peers = append(peers, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("peer: list: %w", err)
	}
	return peers, nil
}

func (s *BadgerStore) Exists(address string) (bool, error) {
	var exists bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyPrefix + address))
		if errors.Is(err, badger.ErrKeyNotFound) {
			exists = false
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("peer: exists: %w", err)
	}
	return exists, nil
}

func (s *BadgerStore) Create(address string) (Peer, error) {
	now := time.Now().UTC()
	p := Peer{ID: address, Address: address, CreatedAt: now, LastSeenAt: now}

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyPrefix + address))
		if err == nil {
			return fmt.Errorf("peer %s already exists", address)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return txn.Set([]byte(keyPrefix+address), data)
	})
	if err != nil {
		return Peer{}, fmt.Errorf("peer: create: %w", err)
	}
	return p, nil
}

func (s *BadgerStore) Touch(address string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + address))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var p Peer
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		}); err != nil {
			return err
		}

		p.LastSeenAt = time.Now().UTC()
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return txn.Set([]byte(keyPrefix+address), data)
	})
	if err != nil {
		return fmt.Errorf("peer: touch: %w", err)
	}
	return nil
}
