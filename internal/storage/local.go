package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"

	"github.com/spf13/afero"
)

// tmpDir holds in-flight uploads. Keys never contain a separator, so nothing
// inside it is reachable through Open.
const tmpDir = "/.tmp"

const copyBufferSize = 32 * 1024

// LocalStorage implements Storage on a flat directory of files.
type LocalStorage struct {
	fs afero.Fs
}

// NewLocalStorage creates dir if needed and returns a LocalStorage rooted at it.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %q: %w", dir, err)
	}
	return NewLocalStorageFs(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// NewLocalStorageFs returns a LocalStorage over an arbitrary afero filesystem.
// Keys are stored at the filesystem root.
func NewLocalStorageFs(fsys afero.Fs) *LocalStorage {
	return &LocalStorage{fs: fsys}
}

// Save writes reader to a temporary file and renames it into place once complete,
// so a concurrent Open never observes a partial file.
func (s *LocalStorage) Save(ctx context.Context, key string, reader io.Reader, _ int64, _ string) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if err := s.fs.MkdirAll(tmpDir, 0o755); err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}

	tmp, err := afero.TempFile(s.fs, tmpDir, "upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := path.Join(tmpDir, path.Base(tmp.Name()))

	n, err := io.CopyBuffer(tmp, ctxReader{ctx: ctx, r: reader}, make([]byte, copyBufferSize))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(tmpName)
		return 0, fmt.Errorf("write %q: %w", key, err)
	}

	if err := s.fs.Rename(tmpName, objectPath(key)); err != nil {
		_ = s.fs.Remove(tmpName)
		return 0, fmt.Errorf("rename %q: %w", key, err)
	}
	return n, nil
}

// Open returns the stored file. Missing, unreadable or non-regular entries are ErrNotFound.
func (s *LocalStorage) Open(ctx context.Context, key string) (*Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := s.fs.Stat(objectPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat %q: %w", key, err)
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotFound
	}

	f, err := s.fs.Open(objectPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open %q: %w", key, err)
	}
	return &Object{ReadCloser: f, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Delete removes the file at key.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := s.fs.Remove(objectPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Ping checks that the storage root is an accessible directory.
func (s *LocalStorage) Ping(_ context.Context) error {
	ok, err := afero.IsDir(s.fs, "/")
	if err != nil {
		return fmt.Errorf("stat storage root: %w", err)
	}
	if !ok {
		return errors.New("storage root is not a directory")
	}
	return nil
}

func objectPath(key string) string {
	return "/" + key
}
