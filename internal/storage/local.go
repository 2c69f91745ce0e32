package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// LocalService keeps objects on a filesystem rooted at a base directory.
type LocalService struct {
	fs afero.Fs
}

// NewLocalService stores objects under root on the OS filesystem.
func NewLocalService(root string) (*LocalService, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return NewFsService(afero.NewBasePathFs(osFs, root)), nil
}

// NewFsService wraps an arbitrary afero filesystem (tests use afero.NewMemMapFs).
func NewFsService(fsys afero.Fs) *LocalService {
	return &LocalService{fs: fsys}
}

func (s *LocalService) Put(_ context.Context, key string, body io.Reader, _ string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if dir := path.Dir(name); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := afero.WriteReader(s.fs, name, body); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (s *LocalService) Open(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	name, err := cleanKey(key)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	info, err := s.fs.Stat(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		return nil, ObjectInfo{}, ErrNotFound
	}
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("open %s: %w", name, err)
	}
	return f, ObjectInfo{Key: name, Size: info.Size(), LastModified: info.ModTime()}, nil
}

func (s *LocalService) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	dir := strings.Trim(prefix, "/")
	if dir == "" {
		dir = "."
	}
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var objects []ObjectInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		objects = append(objects, ObjectInfo{
			Key:          path.Join(strings.Trim(prefix, "/"), entry.Name()),
			Size:         entry.Size(),
			LastModified: entry.ModTime(),
		})
	}
	return objects, nil
}

var _ Service = (*LocalService)(nil)

func cleanKey(key string) (string, error) {
	name := path.Clean("/" + strings.TrimSpace(key))
	name = strings.TrimPrefix(name, "/")
	if name == "" || name == "." {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return name, nil
}
