package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileSystemStore keeps evidence documents on local disk under a single
// root directory, preserving the full key as the relative path so
// distinct keys never collide. Served URLs are {baseURL}/uploads/{key}.
type FileSystemStore struct {
	root    string
	baseURL string
}

func NewFileSystemStore(root, baseURL string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &FileSystemStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// cleanKey normalizes a key to a relative path that cannot escape the
// root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return k, nil
}

func (s *FileSystemStore) Put(_ context.Context, key string, r io.Reader, size int64) (string, error) {
	rel, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	destPath := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("creating directory for %s: %w", key, err)
	}

	// Temp file + rename keeps partially written documents invisible.
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", key, err)
	}
	if size >= 0 && written != size {
		return "", fmt.Errorf("size mismatch for %s: expected %d bytes, got %d", key, size, written)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return "", fmt.Errorf("renaming %s: %w", key, err)
	}
	success = true
	return s.baseURL + "/uploads/" + rel, nil
}

func (s *FileSystemStore) Get(_ context.Context, key string, w io.Writer) error {
	rel, err := cleanKey(key)
	if err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("document not found: %s", key)
		}
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
