// Package store persiste el catálogo de la tienda (juegos, categorías,
// usuarios, imágenes) en una base bbolt embebida.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketGames      = []byte("games")
	bucketCategories = []byte("categories")
	bucketUsers      = []byte("users")
	bucketUserEmails = []byte("user_emails") // email -> userID
	bucketImages     = []byte("images")
	bucketMeta       = []byte("meta")
)

var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyOwned = errors.New("game already owned")
	ErrEmailTaken   = errors.New("email already registered")
)

// Store wraps the bbolt database holding the whole catalog.
type Store struct {
	db   *bolt.DB
	path string
}

// Open opens (or creates) the catalog database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketGames, bucketCategories, bucketUsers, bucketUserEmails, bucketImages, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure buckets: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Stats returns entity counts for the health endpoint.
func (s *Store) Stats() (games, categories, users int) {
	_ = s.db.View(func(tx *bolt.Tx) error {
		games = tx.Bucket(bucketGames).Stats().KeyN
		categories = tx.Bucket(bucketCategories).Stats().KeyN
		users = tx.Bucket(bucketUsers).Stats().KeyN
		return nil
	})
	return games, categories, users
}

// itob encodes a bucket sequence id as a big-endian key.
func itob(id int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id)) //nolint:gosec
	return b
}

func putJSON(b *bolt.Bucket, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(key, data)
}

func getJSON(b *bolt.Bucket, key []byte, v any) error {
	data := b.Get(key)
	if data == nil {
		return ErrNotFound
	}
	return json.Unmarshal(data, v)
}
