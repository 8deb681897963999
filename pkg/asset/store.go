package asset

import (
	"context"
	"strings"

	"github.com/cockroachdb/pebble"

	"github.com/ajitpratap0/prefabpool/pkg/compression"
	"github.com/ajitpratap0/prefabpool/pkg/errors"
)

const storeKeyPrefix = "template/"

// StoreLoader serves templates kept as zstd-compressed JSON blobs in a pebble store.
type StoreLoader struct {
	db   *pebble.DB
	comp compression.Compressor
}

// OpenStore opens (creating if needed) the store at dir. A nil opts uses pebble defaults.
func OpenStore(dir string, opts *pebble.Options) (*StoreLoader, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "open template store").WithDetail("dir", dir)
	}
	comp, err := compression.Get(compression.Zstd)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &StoreLoader{db: db, comp: comp}, nil
}

func storeKey(path string) []byte {
	return []byte(storeKeyPrefix + path)
}

// Put writes t under path.
func (s *StoreLoader) Put(path string, t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	raw, err := Encode(t, FormatJSON)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInvalidTemplate, "encode template").WithDetail("path", path)
	}
	blob, err := s.comp.Compress(raw)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "compress template").WithDetail("path", path)
	}
	if err := s.db.Set(storeKey(path), blob, pebble.Sync); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "write template").WithDetail("path", path)
	}
	return nil
}

// Load implements Loader.
func (s *StoreLoader) Load(path string) (*Template, error) {
	value, closer, err := s.db.Get(storeKey(path))
	if err == pebble.ErrNotFound {
		return nil, NotFound(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "read template").WithDetail("path", path)
	}
	blob := make([]byte, len(value))
	copy(blob, value)
	_ = closer.Close()

	raw, err := s.comp.Decompress(blob)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "decompress template").WithDetail("path", path)
	}
	return Decode(raw, FormatJSON, path)
}

// LoadAsync implements Loader.
func (s *StoreLoader) LoadAsync(ctx context.Context, path string) Request {
	return Go(ctx, func() (*Template, error) { return s.Load(path) })
}

// List returns every stored template path in key order.
func (s *StoreLoader) List() ([]string, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(storeKeyPrefix),
		UpperBound: []byte("template0"), // '0' follows '/'
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "iterate template store")
	}
	var out []string
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, strings.TrimPrefix(string(iter.Key()), storeKeyPrefix))
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "iterate template store")
	}
	return out, nil
}

// Close closes the underlying store.
func (s *StoreLoader) Close() error {
	return s.db.Close()
}
