package artifact

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hpungsan/xstats/internal/errors"
)

// FSStore keeps each artifact as a file in one directory.
type FSStore struct {
	dir string
}

// NewFSStore returns a store rooted at dir. The directory is created on first write.
func NewFSStore(dir string) *FSStore {
	return &FSStore{dir: dir}
}

func (s *FSStore) path(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// Location returns the store directory.
func (s *FSStore) Location() string { return s.dir }

// Close is a no-op.
func (s *FSStore) Close() error { return nil }

// Exists reports whether the artifact file is present.
func (s *FSStore) Exists(ctx context.Context, name string) (bool, error) {
	info, err := s.Stat(ctx, name)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

// Read returns the artifact file's contents.
func (s *FSStore) Read(_ context.Context, name string) ([]byte, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := openFileNoFollowRead(p)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFound(name)
		}
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("read %s: %w", p, err))
	}
	return data, nil
}

// Write replaces the artifact file via temp file and rename.
func (s *FSStore) Write(ctx context.Context, name string, data []byte) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return errors.NewCancelled("write " + name)
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create artifact directory: %w", err))
	}
	return WriteFileAtomic(p, data)
}

// Remove deletes the artifact file.
func (s *FSStore) Remove(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.NewInternal(err)
	}
	return nil
}

// Stat returns file metadata, or nil if the file is absent.
func (s *FSStore) Stat(ctx context.Context, name string) (*Info, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	fi, err := os.Lstat(p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.NewInternal(err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("artifact %s is a symlink", p))
	}
	if !fi.Mode().IsRegular() {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("artifact %s is not a regular file", p))
	}

	data, err := s.Read(ctx, name)
	if err != nil {
		return nil, err
	}
	return &Info{
		Name:      name,
		Size:      fi.Size(),
		SHA256:    checksum(data),
		UpdatedAt: fi.ModTime().Unix(),
	}, nil
}

// WriteFileAtomic writes data to a temp file beside path, syncs it, and
// renames it into place. On failure the previous file, if any, is untouched.
func WriteFileAtomic(path string, data []byte) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidRequest) {
			return err
		}
		return errors.NewInternal(fmt.Errorf("failed to create temp file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close temp file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink at the destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest(fmt.Sprintf("%s is a symlink", path))
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				// Rename can't replace on Windows; remove then retry.
				if rmErr := os.Remove(path); rmErr == nil {
					if err = os.Rename(tempPath, path); err == nil {
						success = true
						return nil
					}
				}
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize %s: %w", path, err))
	}

	success = true
	return nil
}
