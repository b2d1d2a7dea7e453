package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const fileExt = ".json"

// FileStore stores snapshots as JSON files in one directory.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore creates a FileStore rooted at dir on fs. Use
// afero.NewOsFs() for the local disk and afero.NewMemMapFs() in tests.
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	if dir == "" {
		dir = filepath.Join(".derive", "snapshots")
	}
	return &FileStore{fs: fs, dir: dir}
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+fileExt)
}

// Save writes the snapshot atomically: to a temporary file first, then
// renamed over the destination.
func (s *FileStore) Save(ctx context.Context, key string, snap *Snapshot) error {
	if err := validKey(key); err != nil {
		return err
	}
	data, err := encode(snap)
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(s.dir, 0755); err != nil {
		return ioError("save", key, err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, "tmp-"+key+"-*"+fileExt)
	if err != nil {
		return ioError("save", key, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpPath)
	}()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		return ioError("save", key, err)
	}
	if err := tmp.Sync(); err != nil {
		return ioError("save", key, err)
	}
	if err := tmp.Close(); err != nil {
		return ioError("save", key, err)
	}

	// Rename does not replace existing files on every platform.
	if exists, _ := afero.Exists(s.fs, s.path(key)); exists {
		if err := s.fs.Remove(s.path(key)); err != nil {
			return ioError("save", key, err)
		}
	}
	if err := s.fs.Rename(tmpPath, s.path(key)); err != nil {
		return ioError("save", key, err)
	}
	return nil
}

// Load reads the snapshot stored under key.
func (s *FileStore) Load(ctx context.Context, key string) (*Snapshot, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(key)
		}
		return nil, ioError("load", key, err)
	}
	return decode(key, data)
}

// Delete removes the snapshot file.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := s.fs.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return ioError("delete", key, err)
	}
	return nil
}

// List returns the keys of the snapshot files in the directory.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioError("list", s.dir, err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, "tmp-") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, fileExt))
	}
	return keys, nil
}
