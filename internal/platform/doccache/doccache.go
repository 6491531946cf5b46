// Package doccache persists encoded note documents in a bbolt file keyed by
// note row id.
package doccache

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var bucketDocuments = []byte("documents")

type Store struct {
	db *bbolt.DB
}

// Open opens or creates the cache file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open document cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDocuments)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create document bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func rowKey(rowID int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(rowID))
	return k
}

func (s *Store) Get(rowID int64) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketDocuments).Get(rowKey(rowID)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return data, data != nil, nil
}

func (s *Store) Put(rowID int64, data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).Put(rowKey(rowID), data)
	})
}

// Delete removes the documents of the given rows.
func (s *Store) Delete(rowIDs ...int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		for _, id := range rowIDs {
			if err := b.Delete(rowKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len returns the number of cached documents.
func (s *Store) Len() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketDocuments).Stats().KeyN
		return nil
	})
	return n, err
}

// Clear removes every cached document.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketDocuments); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketDocuments)
		return err
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
