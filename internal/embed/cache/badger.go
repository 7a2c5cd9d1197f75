package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/alnah/go-vidindex/internal/embed"
)

// Badger persists vectors in a local Badger database.
type Badger struct {
	db *badger.DB
}

// slogAdapter routes Badger's logs to slog.
type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Errorf(msg string, args ...any)   { a.logger.Error(fmt.Sprintf(msg, args...)) }
func (a *slogAdapter) Warningf(msg string, args ...any) { a.logger.Warn(fmt.Sprintf(msg, args...)) }
func (a *slogAdapter) Infof(msg string, args ...any)    { a.logger.Debug(fmt.Sprintf(msg, args...)) }
func (a *slogAdapter) Debugf(msg string, args ...any)   { a.logger.Debug(fmt.Sprintf(msg, args...)) }

// OpenBadger opens (creating if needed) a Badger cache in dir.
// An empty dir opens an in-memory database.
func OpenBadger(dir string) (*Badger, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &slogAdapter{logger: slog.Default().With("component", "badger")}
	// Vectors are high-entropy floats.
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	return &Badger{db: db}, nil
}

// Get implements embed.Cache.
func (c *Badger) Get(_ context.Context, key string) ([]float32, bool, error) {
	var vec []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var derr error
			vec, derr = embed.DecodeVector(val)
			return derr
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Set implements embed.Cache. Entries have no TTL.
func (c *Badger) Set(_ context.Context, key string, vec []float32) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), embed.EncodeVector(vec))
	})
}

// Close flushes and closes the database.
func (c *Badger) Close() error {
	return c.db.Close()
}
