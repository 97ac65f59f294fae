package objectstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore keeps blobs under a root directory, one file per key.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed.
func NewDiskStore(root string) (*DiskStore, error) {
	if root == "" {
		return nil, fmt.Errorf("disk object store requires a root directory")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create object store root: %w", err)
	}
	return &DiskStore{root: abs}, nil
}

// pathFor maps a key to a file path, rejecting traversal outside root.
func (d *DiskStore) pathFor(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	full := filepath.Join(d.root, clean)
	if !strings.HasPrefix(full, d.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return full, nil
}

// Put writes through a temp file and renames, so readers never observe
// a partial object.
func (d *DiskStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	path, err := d.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tempPath := path + ".temp"
	f, err := os.Create(tempPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tempPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, path)
}

func (d *DiskStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := d.pathFor(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	return f, err
}

func (d *DiskStore) Delete(ctx context.Context, key string) error {
	path, err := d.pathFor(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	return err
}

func (d *DiskStore) Exists(ctx context.Context, key string) (bool, error) {
	path, err := d.pathFor(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}
