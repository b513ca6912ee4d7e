// Package store persists save state across processes: the persistent
// flag file, one file per end-save slot, and a SQLite database for the
// in-game save slots.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/sigvm/vm/savestate"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("sigvm.store")

// ErrSlotNotFound indicates the requested slot doesn't exist.
var ErrSlotNotFound = errors.New("slot not found")

// writeFileAtomic writes data to a temporary file next to path and
// renames it into place, so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("syncing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Persistent flags
// ---------------------------------------------------------------------------

// WritePersistent writes the persistent state to path.
func WritePersistent(path string, s *savestate.PersistentState) error {
	if err := writeFileAtomic(path, savestate.EncodePersistent(s)); err != nil {
		return err
	}
	log.Debugf("wrote persistent state %s", path)
	return nil
}

// ReadPersistent reads the persistent state at path. A missing file
// returns nil, nil.
func ReadPersistent(path string, limits savestate.Limits) (*savestate.PersistentState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s, err := savestate.DecodePersistent(data, limits)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
