// ABOUTME: BoltDB-backed implementation of the kv.Store contract.
// ABOUTME: Keeps every key in a single bucket of one database file.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const boltBucket = "afterwod"

// BoltStore stores keys in a bbolt database file.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time check that BoltStore implements Store.
var _ Store = (*BoltStore)(nil)

// OpenBolt opens (or creates) a bbolt database at path.
func OpenBolt(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("kv path is required")
	}

	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0750); err != nil {
		return nil, fmt.Errorf("create kv directory: %w", err)
	}

	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(boltBucket)); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Get returns the value stored under key.
func (s *BoltStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if s == nil || s.db == nil {
		return "", false, ErrClosed
	}

	var (
		value string
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		value, found, err = boltTxn{tx: tx}.Get(key)
		return err
	})
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, found, nil
}

// Set stores value under key.
func (s *BoltStore) Set(ctx context.Context, key, value string) error {
	return s.Update(ctx, func(tx Txn) error {
		return tx.Set(key, value)
	})
}

// Delete removes key.
func (s *BoltStore) Delete(ctx context.Context, key string) error {
	return s.Update(ctx, func(tx Txn) error {
		return tx.Delete(key)
	})
}

// Update runs fn in a bbolt read-write transaction. bbolt serialises writers,
// so there is nothing to retry.
func (s *BoltStore) Update(ctx context.Context, fn func(tx Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return ErrClosed
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return fn(boltTxn{tx: tx})
	})
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return ErrClosed
	}
	return err
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return nil
	}
	return err
}

type boltTxn struct {
	tx *bbolt.Tx
}

func (t boltTxn) bucket() (*bbolt.Bucket, error) {
	b := t.tx.Bucket([]byte(boltBucket))
	if b == nil {
		return nil, fmt.Errorf("bucket %s is missing", boltBucket)
	}
	return b, nil
}

func (t boltTxn) Get(key string) (string, bool, error) {
	b, err := t.bucket()
	if err != nil {
		return "", false, err
	}
	// Bolt values are only valid for the life of the transaction;
	// the string conversion copies them out.
	v := b.Get([]byte(key))
	if v == nil {
		return "", false, nil
	}
	return string(v), true, nil
}

func (t boltTxn) Set(key, value string) error {
	b, err := t.bucket()
	if err != nil {
		return err
	}
	if err := b.Put([]byte(key), []byte(value)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (t boltTxn) Delete(key string) error {
	b, err := t.bucket()
	if err != nil {
		return err
	}
	if err := b.Delete([]byte(key)); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
