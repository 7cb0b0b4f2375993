package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File stores credentials as a JSON object in a single file with 0600
// permissions. This is the ordinary persistent backing for hosts without a
// secure enclave; use Encrypted where one is warranted.
type File struct {
	mu   sync.Mutex
	path string
}

func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &File{path: path}, nil
}

func (f *File) Get(_ context.Context, key string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.read()
	if err != nil {
		return "", false
	}
	v, ok := kv[key]
	return v, ok
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.read()
	if err != nil {
		kv = map[string]string{}
	}
	kv[key] = value
	return f.write(kv)
}

func (f *File) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.read()
	if err != nil {
		return nil
	}
	delete(kv, key)
	return f.write(kv)
}

func (f *File) SetMany(_ context.Context, set map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kv, err := f.read()
	if err != nil {
		kv = map[string]string{}
	}
	for k, v := range set {
		kv[k] = v
	}
	return f.write(kv)
}

func (f *File) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	var kv map[string]string
	if err := json.Unmarshal(data, &kv); err != nil {
		return nil, err
	}
	return kv, nil
}

// write replaces the file through a rename so a crash mid-write never leaves
// a half-written pair behind.
func (f *File) write(kv map[string]string) error {
	data, err := json.Marshal(kv)
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
