package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// CorruptSuffix is appended to a state file that failed to decode.
const CorruptSuffix = ".corrupt"

// FileStorage keeps every key in one JSON document on disk. Each write
// replaces the document atomically through a temp file and rename.
type FileStorage struct {
	mu     sync.Mutex
	path   string
	values map[string]string
	closed bool
}

// NewFileStorage loads the document at path. A document that is not valid
// JSON is moved aside to path+".corrupt" and the store starts empty.
func NewFileStorage(path string, log zerolog.Logger) (*FileStorage, error) {
	fs := &FileStorage{
		path:   path,
		values: make(map[string]string),
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fs, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fs.values); err != nil {
			fs.values = make(map[string]string)
			aside := path + CorruptSuffix
			log.Warn().Err(err).Str("path", path).Str("moved_to", aside).Msg("discarding unreadable state file")
			if err := os.Rename(path, aside); err != nil {
				log.Error().Err(err).Str("path", path).Msg("move unreadable state file failed")
			}
		}
	}
	return fs, nil
}

func (f *FileStorage) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrStoreClosed
	}
	v, ok := f.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return []byte(v), nil
}

func (f *FileStorage) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	prev, had := f.values[key]
	f.values[key] = string(value)
	if err := f.flush(); err != nil {
		if had {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}
		return err
	}
	return nil
}

func (f *FileStorage) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}
	changed := false
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.flush()
}

func (f *FileStorage) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *FileStorage) flush() error {
	raw, err := json.MarshalIndent(f.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".storefront-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
