// Package sandbox implements a local stand-in for the bank API: a mutual-TLS
// token endpoint plus balance and statement resources backed by bbolt.
package sandbox

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = errors.New("record not found")

// Bucket names.
const (
	BucketTokens   = "tokens"
	BucketAccounts = "accounts"
)

// Store represents the bbolt database wrapper.
// Entries live in one nested bucket per account under BucketAccounts.
type Store struct {
	db *bolt.DB
}

// OpenStore creates a new Store instance and initializes buckets.
func OpenStore(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{BucketTokens, BucketAccounts} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddEntry books a statement line on an account, creating the account on first use.
func (s *Store) AddEntry(account string, req CreateEntryRequest) (*Entry, error) {
	var entry *Entry

	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket([]byte(BucketAccounts)).CreateBucketIfNotExists([]byte(account))
		if err != nil {
			return fmt.Errorf("failed to create account bucket: %w", err)
		}

		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		entry = &Entry{
			ID:            int64(seq),
			PostingDate:   req.PostingDate,
			Amount:        req.Amount,
			Description:   req.Description,
			TransactionID: req.TransactionID,
			CreatedAt:     time.Now(),
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		return b.Put(itob(entry.ID), data)
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// ListEntries returns an account's entries in booking order.
// An unknown account returns ErrNotFound.
func (s *Store) ListEntries(account string) ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketAccounts)).Bucket([]byte(account))
		if b == nil {
			return ErrNotFound
		}

		return b.ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("failed to unmarshal entry: %w", err)
			}
			entries = append(entries, e)
			return nil
		})
	})

	return entries, err
}

// PutString stores a string value with a string key.
func (s *Store) PutString(bucketName, key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		return b.Put([]byte(key), []byte(value))
	})
}

// GetString retrieves a string value with a string key.
func (s *Store) GetString(bucketName, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}

		value = string(data)
		return nil
	})
	return value, err
}

// DeleteString removes a value with a string key.
func (s *Store) DeleteString(bucketName, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		return b.Delete([]byte(key))
	})
}

// itob converts an int64 to a byte slice for use as a bbolt key.
func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
