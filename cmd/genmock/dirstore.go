package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
)

// dirStore is a domain.BlobStore over a local directory. Blob names are
// slash-separated paths relative to root.
type dirStore struct {
	root string
}

func (d dirStore) path(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(name))
}

func (d dirStore) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var blobs []domain.BlobInfo
	err := filepath.WalkDir(d.root, func(p string, e fs.DirEntry, err error) error {
		if err != nil || e.IsDir() {
			return err
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		blobs = append(blobs, domain.BlobInfo{Name: name, Created: info.ModTime()})
		return nil
	})
	return blobs, err
}

func (d dirStore) Read(_ context.Context, name string) (string, error) {
	b, err := os.ReadFile(d.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", domain.ErrBlobNotFound
	}
	return string(b), err
}

func (d dirStore) Write(_ context.Context, name, content, _ string) error {
	p := d.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(content), 0o600)
}

func (d dirStore) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(d.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}
