package filestore

import (
	"os"

	"github.com/pkg/errors"

	"github.com/tmatias/aigrader/core/lms"
)

// Store writes downloaded submission content to the local disk.
type Store struct{}

var _ lms.FileStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{}
}

func (s *Store) EnsureDir(path string) error {
	return errors.Wrapf(os.MkdirAll(path, 0o755), "creating directory %s", path)
}

func (s *Store) WriteText(path, content string) error {
	return errors.Wrapf(os.WriteFile(path, []byte(content), 0o644), "writing file %s", path)
}
