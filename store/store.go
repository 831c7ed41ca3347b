// Package store persists depletion snapshots in an embedded badger database,
// one entry per run keyed by a random run ID.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"

	isodep "github.com/DanKotlyar/PYTHON-ISOTOPIC-DEPLETION-PACKAGE"
)

const runPrefix = "run/"

// Config configures a Store.
type Config struct {
	// Path is the database directory, ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     kitlog.Logger
}

// Store is a run store. It is safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger kitlog.Logger
}

// Entry describes a stored run.
type Entry struct {
	ID      string
	Name    string
	Mode    isodep.Mode
	Created time.Time
}

// badgerLogger sends badger's own messages to a go-kit logger.
type badgerLogger struct {
	logger kitlog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	level.Error(l.logger).Log("msg", fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	level.Warn(l.logger).Log("msg", fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	level.Debug(l.logger).Log("msg", fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	level.Debug(l.logger).Log("msg", fmt.Sprintf(format, args...))
}

// Open opens the store described by cfg. An empty Path opens an in-memory store.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = isodep.Logger()
	}
	logger = kitlog.With(logger, "subsys", "store")

	var opts badger.Options
	if cfg.InMemory || cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	level.Debug(logger).Log("message", "opened", "path", cfg.Path, "in_memory", opts.InMemory)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func runKey(id string) []byte {
	return []byte(runPrefix + id)
}

// Save stores the snapshot under a new run ID and returns it.
func (s *Store) Save(ctx context.Context, snap *isodep.Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := snap.WriteJSON(&buf); err != nil {
		return "", fmt.Errorf("encode run: %w", err)
	}
	id := uuid.NewString()
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(id), buf.Bytes())
	})
	if err != nil {
		return "", fmt.Errorf("save run: %w", err)
	}
	level.Info(s.logger).Log("message", "saved", "run", id, "name", snap.Name, "bytes", buf.Len())
	return id, nil
}

// Load returns the snapshot of the run.
func (s *Store) Load(ctx context.Context, id string) (*isodep.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("run %q: %w", id, isodep.ErrNotFound)
	}
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(id))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("run %s: %w", id, isodep.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	return isodep.ReadJSON(bytes.NewReader(val))
}

// List returns every stored run, oldest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(runPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var snap *isodep.Snapshot
			err := item.Value(func(val []byte) error {
				var err error
				snap, err = isodep.ReadJSON(bytes.NewReader(val))
				return err
			})
			if err != nil {
				return fmt.Errorf("run %s: %w", item.Key(), err)
			}
			entries = append(entries, Entry{
				ID:      string(item.Key()[len(runPrefix):]),
				Name:    snap.Name,
				Mode:    snap.Mode,
				Created: snap.Created,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Created.Before(entries[j].Created) })
	return entries, nil
}

// Delete removes the run.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(runKey(id)); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("run %s: %w", id, isodep.ErrNotFound)
		} else if err != nil {
			return err
		}
		return txn.Delete(runKey(id))
	})
}
