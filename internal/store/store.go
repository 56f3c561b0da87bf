package store

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-git/go-git/v5/plumbing"
	bolt "go.etcd.io/bbolt"

	"github.com/cratewatch/cratewatch/internal/model"
)

var (
	bucketIndex     = []byte("index")
	bucketExtra     = []byte("extra")
	bucketHTTPCache = []byte("http_cache")
)

// keyLastTree is the only defined key of the extra bucket: the raw id
// bytes of the last fully ingested index tree.
var keyLastTree = []byte("last_loaded_tree_id")

// Store is the durable keyed package database. The index bucket maps a
// package name to the CBOR-encoded ordered list of its version
// records; the extra bucket holds small metadata keys.
type Store struct {
	db *bolt.DB
}

// Open creates or opens the database at the given path and ensures all
// required buckets exist. The HTTP body cache does not survive
// restarts and is cleared on open.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketHTTPCache) != nil {
			if err := tx.DeleteBucket(bucketHTTPCache); err != nil {
				return err
			}
		}
		for _, b := range [][]byte{bucketIndex, bucketExtra, bucketHTTPCache} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// PutVersions overwrites the stored version list of a package. The
// records must be nonempty and share one name; that name is the key.
func (s *Store) PutVersions(records []model.VersionRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("empty version record list")
	}
	name := records[0].Name
	for _, r := range records[1:] {
		if r.Name != name {
			return fmt.Errorf("version records mix packages %q and %q", name, r.Name)
		}
	}

	value, err := cbor.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode versions of %s: %w", name, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndex).Put([]byte(name), value)
	})
}

// GetVersions returns the stored version list of a package, or
// (nil, nil) when the package is unknown. Order is the registry's
// native publication order.
func (s *Store) GetVersions(name string) ([]model.VersionRecord, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketIndex).Get([]byte(name))
		if v != nil {
			raw = make([]byte, len(v))
			copy(raw, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var records []model.VersionRecord
	if err := cbor.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode versions of %s: %w", name, err)
	}
	return records, nil
}

// SetLastTree records the id of the last fully ingested index tree.
func (s *Store) SetLastTree(id plumbing.Hash) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketExtra).Put(keyLastTree, id[:])
	})
}

// LastTree returns the last ingested tree id, if one is recorded. A
// malformed value is an invariant violation and is reported as an
// error.
func (s *Store) LastTree() (plumbing.Hash, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketExtra).Get(keyLastTree)
		if v != nil {
			raw = make([]byte, len(v))
			copy(raw, v)
		}
		return nil
	})
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	if raw == nil {
		return plumbing.ZeroHash, false, nil
	}
	if len(raw) != len(plumbing.ZeroHash) {
		return plumbing.ZeroHash, false, fmt.Errorf("malformed last_loaded_tree_id: %d bytes", len(raw))
	}
	var id plumbing.Hash
	copy(id[:], raw)
	return id, true, nil
}

// CacheGet reads an HTTP body from the on-disk cache by ETag.
func (s *Store) CacheGet(etag string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHTTPCache).Get([]byte(etag))
		if v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	return data, err
}

// CachePut stores an HTTP body under its ETag.
func (s *Store) CachePut(etag string, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHTTPCache).Put([]byte(etag), data)
	})
}

// CacheDelete drops one cached HTTP body.
func (s *Store) CacheDelete(etag string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketHTTPCache).Delete([]byte(etag))
	})
}
