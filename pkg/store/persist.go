package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// snapshotExt is appended to snapshot names to form file names and keys.
const snapshotExt = ".snapshot.pb"

// FilePersister keeps snapshots as files in a directory.
type FilePersister struct {
	dir string
}

// NewFilePersister returns a persister rooted at dir. The directory is
// created on first save.
func NewFilePersister(dir string) *FilePersister {
	return &FilePersister{dir: dir}
}

// Save writes data atomically: to a temporary file first, then renamed.
func (p *FilePersister) Save(_ context.Context, name string, data []byte) error {
	path, err := p.path(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(p.dir, ".tmp-"+name+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Load reads the snapshot file for name.
func (p *FilePersister) Load(_ context.Context, name string) ([]byte, error) {
	path, err := p.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	return data, err
}

func (p *FilePersister) path(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(p.dir, name+snapshotExt), nil
}

// validateName rejects names that would escape the persister's root.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "\x00") {
		return fmt.Errorf("store: invalid snapshot name %q", name)
	}
	return nil
}
