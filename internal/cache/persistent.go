package cache

import (
	"fmt"
	"os"
	"strings"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/memvra/branchmind/internal/db"
	"github.com/memvra/branchmind/internal/errs"
)

// embeddingPrefix namespaces embedding entries inside the key-value store.
const embeddingPrefix = "emb:"

// KV is the load/save interface the persistent map sits on.
type KV interface {
	LoadAll(prefix string) (map[string][]byte, error)
	SaveAll(entries map[string][]byte) error
	DropPrefix(prefix string) error
	Close() error
}

// BadgerKV is a KV backed by a badger database directory.
type BadgerKV struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a badger database in dir. An empty dir
// opens an in-memory database.
func OpenBadger(dir string) (*BadgerKV, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create embedding dir: %w", err)
	}
	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cache: open badger: %w", err)
	}
	return &BadgerKV{db: bdb}, nil
}

func (k *BadgerKV) LoadAll(prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := k.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[strings.TrimPrefix(string(item.Key()), prefix)] = val
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cache: load %q: %w", prefix, err)
	}
	return out, nil
}

func (k *BadgerKV) SaveAll(entries map[string][]byte) error {
	wb := k.db.NewWriteBatch()
	defer wb.Cancel()
	for key, val := range entries {
		if err := wb.Set([]byte(key), val); err != nil {
			return fmt.Errorf("cache: save %q: %w", key, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("cache: flush batch: %w", err)
	}
	return nil
}

func (k *BadgerKV) DropPrefix(prefix string) error {
	return k.db.DropPrefix([]byte(prefix))
}

func (k *BadgerKV) Close() error {
	return k.db.Close()
}

// PersistentMap is the second embedding tier: content hash to vector,
// loaded lazily from a KV on first use and written back by Flush. Every
// KV failure is swallowed; the map then behaves as an empty cache.
type PersistentMap struct {
	kv  KV
	log *zap.Logger

	mu      sync.Mutex
	loaded  bool
	entries map[string][]float32
	dirty   map[string][]float32
}

// NewPersistentMap wraps kv. A nil kv yields a memory-only map.
func NewPersistentMap(kv KV, log *zap.Logger) *PersistentMap {
	if log == nil {
		log = zap.NewNop()
	}
	return &PersistentMap{
		kv:      kv,
		log:     log,
		entries: make(map[string][]float32),
		dirty:   make(map[string][]float32),
	}
}

func (p *PersistentMap) ensureLoadedLocked() {
	if p.loaded {
		return
	}
	p.loaded = true
	if p.kv == nil {
		return
	}
	raw := errs.OrEmpty(p.log, "cache.persistent.load", func() (map[string][]byte, error) {
		return p.kv.LoadAll(embeddingPrefix)
	})
	for hash, blob := range raw {
		if _, ok := p.entries[hash]; !ok {
			p.entries[hash] = db.DecodeVector(blob)
		}
	}
	p.log.Debug("persistent embeddings loaded", zap.Int("entries", len(raw)))
}

// Get returns the stored vector for hash.
func (p *PersistentMap) Get(hash string) ([]float32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensureLoadedLocked()
	v, ok := p.entries[hash]
	return v, ok
}

// Put stores a vector; it is written to disk on the next Flush.
func (p *PersistentMap) Put(hash string, vec []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensureLoadedLocked()
	p.entries[hash] = vec
	p.dirty[hash] = vec
}

// Flush writes pending entries. Entries stay pending if the write fails.
func (p *PersistentMap) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.kv == nil || len(p.dirty) == 0 {
		return
	}
	batch := make(map[string][]byte, len(p.dirty))
	for hash, vec := range p.dirty {
		batch[embeddingPrefix+hash] = db.EncodeVector(vec)
	}
	ok := errs.OrEmpty(p.log, "cache.persistent.flush", func() (bool, error) {
		if err := p.kv.SaveAll(batch); err != nil {
			return false, err
		}
		return true, nil
	})
	if ok {
		p.dirty = make(map[string][]float32)
	}
}

// Len returns the number of known entries.
func (p *PersistentMap) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ensureLoadedLocked()
	return len(p.entries)
}

// Clear drops every entry, in memory and on disk.
func (p *PersistentMap) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string][]float32)
	p.dirty = make(map[string][]float32)
	p.loaded = true
	if p.kv != nil {
		errs.Try(p.log, "cache.persistent.clear", func() error { return p.kv.DropPrefix(embeddingPrefix) })
	}
}

// Close flushes and closes the underlying store.
func (p *PersistentMap) Close() error {
	p.Flush()
	if p.kv == nil {
		return nil
	}
	if err := p.kv.Close(); err != nil {
		return fmt.Errorf("cache: close persistent map: %w", err)
	}
	return nil
}
