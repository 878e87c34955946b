package bytestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// BillyStore keeps payloads on a billy filesystem.
type BillyStore struct {
	uri string
	fs  billy.Filesystem
}

func NewBillyStore(uri string, fs billy.Filesystem) *BillyStore {
	return &BillyStore{uri: uri, fs: fs}
}

func (s *BillyStore) URI() string { return s.uri }

// Filesystem exposes the underlying filesystem.
func (s *BillyStore) Filesystem() billy.Filesystem { return s.fs }

func notFound(name string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, common.ErrorNotFound)
	}
	return err
}

func (s *BillyStore) Exists(_ context.Context, name string) (bool, error) {
	_, err := s.fs.Stat(name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *BillyStore) Create(_ context.Context, name string, r io.Reader) (int64, error) {
	if dir := path.Dir(name); dir != "." && dir != "/" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}
	f, err := s.fs.Create(name)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func (s *BillyStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := s.fs.Open(name)
	if err != nil {
		return nil, notFound(name, err)
	}
	return f, nil
}

func (s *BillyStore) Remove(_ context.Context, name string) error {
	return notFound(name, s.fs.Remove(name))
}

func (s *BillyStore) RemoveAll(_ context.Context, name string) error {
	return util.RemoveAll(s.fs, name)
}

// Stat reports the modification time only; billy filesystems do not expose
// creation time.
func (s *BillyStore) Stat(_ context.Context, name string) (Info, error) {
	fi, err := s.fs.Stat(name)
	if err != nil {
		return Info{}, notFound(name, err)
	}
	mod := fi.ModTime().UTC()
	return Info{Size: fi.Size(), Modified: &mod}, nil
}

func (s *BillyStore) List(_ context.Context, dir string, excludedNames, excludedDirs []string) ([]string, error) {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return nil, notFound(dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			if excluded(e.Name(), excludedDirs) {
				continue
			}
		} else if excluded(e.Name(), excludedNames) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func (s *BillyStore) MkdirAll(_ context.Context, dir string) error {
	if dir == "" || dir == "." || dir == "/" {
		return nil
	}
	return s.fs.MkdirAll(dir, 0o755)
}

func (s *BillyStore) rename(from, to string) error {
	if dir := path.Dir(to); dir != "." && dir != "/" {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return notFound(from, s.fs.Rename(from, to))
}
