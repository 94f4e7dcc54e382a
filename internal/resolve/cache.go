package resolve

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"sort"

	"github.com/jmank88/nuts"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	resultsBucket = []byte("resolve-results")
	activeBucket  = []byte("active-ids") // sub-bucket per cache key: nuts.Key(id) -> nil
)

// Cache memoizes resolve outcomes keyed by a hash of the effective
// enablement set, mirroring the teacher's Lock.InputHash solve-skip
// logic (hash.go): unchanged intent should not re-invoke the solver. It
// is backed by bbolt, the same embedded store the teacher's gps package
// reaches for in its source-analysis cache (gps/source_cache_bolt_test.go).
//
// Active module ids are additionally indexed in a per-key sub-bucket
// using github.com/jmank88/nuts' fixed-width integer key encoding, so
// IsActive can do a direct point lookup instead of decoding and scanning
// the whole cached result. (Container.IsModuleActive does not use it: it
// reads the active set kept in memory from the last Resolve.)
type Cache struct {
	db *bolt.DB
}

// OpenCache opens (creating if absent) a bbolt-backed resolve cache at path.
func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0644, nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening resolve cache")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(resultsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing resolve cache bucket")
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// InputHash hashes the sorted effective enablement set plus the debug
// flag, so two resolves over the same intent share a cache entry
// regardless of the order the container happened to compose them in.
func InputHash(effective []NameStream, debug bool) [32]byte {
	sorted := append([]NameStream(nil), effective...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Stream < sorted[j].Stream
	})

	var buf bytes.Buffer
	for _, ns := range sorted {
		buf.WriteString(ns.Name)
		buf.WriteByte(':')
		buf.WriteString(ns.Stream)
		buf.WriteByte(';')
	}
	if debug {
		buf.WriteString("debug=1")
	}
	return sha256.Sum256(buf.Bytes())
}

func idKey(id int64) []byte {
	k := make(nuts.Key, 8)
	k.Put(uint64(id))
	return []byte(k)
}

// Get returns a cached Result for key, if present.
func (c *Cache) Get(key [32]byte) (Result, bool) {
	if c == nil {
		return Result{}, false
	}
	var res Result
	var found bool
	_ = c.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(resultsBucket)
		sub := root.Bucket(key[:])
		if sub == nil {
			return nil
		}
		meta := sub.Get([]byte("meta"))
		if meta == nil {
			return nil
		}
		if err := gob.NewDecoder(bytes.NewReader(meta)).Decode(&res); err != nil {
			return nil
		}
		found = true
		return nil
	})
	return res, found
}

// IsActive reports whether id is a member of the cached result for key,
// via a direct bucket lookup rather than decoding Result.ActiveIDs.
func (c *Cache) IsActive(key [32]byte, id int64) bool {
	if c == nil {
		return false
	}
	var active bool
	_ = c.db.View(func(tx *bolt.Tx) error {
		root := tx.Bucket(resultsBucket)
		sub := root.Bucket(key[:])
		if sub == nil {
			return nil
		}
		ids := sub.Bucket(activeBucket)
		if ids == nil {
			return nil
		}
		active = ids.Get(idKey(id)) != nil
		return nil
	})
	return active
}

// Put stores res under key, meta-encoded plus the id index described above.
func (c *Cache) Put(key [32]byte, res Result) error {
	if c == nil {
		return nil
	}
	var meta bytes.Buffer
	if err := gob.NewEncoder(&meta).Encode(res); err != nil {
		return errors.Wrap(err, "encoding resolve result")
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket(resultsBucket)
		_ = root.DeleteBucket(key[:])
		sub, err := root.CreateBucket(key[:])
		if err != nil {
			return err
		}
		if err := sub.Put([]byte("meta"), meta.Bytes()); err != nil {
			return err
		}
		ids, err := sub.CreateBucketIfNotExists(activeBucket)
		if err != nil {
			return err
		}
		for _, id := range res.ActiveIDs {
			if err := ids.Put(idKey(id), nil); err != nil {
				return err
			}
		}
		return nil
	})
}
