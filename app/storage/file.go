package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// File keeps all keys in a single YAML document that is rewritten atomically
// on every change.
type File struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

func NewFile(path string) (*File, error) {
	f := &File{
		path:   path,
		values: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, nil
		}

		return nil, oops.Errorf("failed to read storage file: %w", err)
	}

	if err = yaml.Unmarshal(data, &f.values); err != nil {
		return nil, oops.Errorf("failed to parse storage file %s: %w", path, err)
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}

	return f, nil
}

func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	value, ok := f.values[key]

	return value, ok, nil
}

func (f *File) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, existed := f.values[key]
	f.values[key] = value

	if err := f.flush(); err != nil {
		if existed {
			f.values[key] = prev
		} else {
			delete(f.values, key)
		}

		return err
	}

	return nil
}

func (f *File) Delete(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

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

func (f *File) Close() error {
	return nil
}

func (f *File) flush() error {
	data, err := yaml.Marshal(f.values)
	if err != nil {
		return oops.Errorf("yaml.Marshal: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return oops.Errorf("failed to create storage dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".storage-*")
	if err != nil {
		return oops.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return oops.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return oops.Errorf("failed to close temp file: %w", err)
	}

	if err = os.Rename(tmp.Name(), f.path); err != nil {
		return oops.Errorf("failed to replace storage file: %w", err)
	}

	return nil
}
