package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/chazu/sigvm/vm/savestate"
)

// EndSaveDir keeps one file per end-save slot in a directory.
type EndSaveDir struct {
	Dir string
}

const endSavePattern = "endsave_%03d.sav"

// Path returns the file of slot no.
func (d EndSaveDir) Path(no int32) string {
	return filepath.Join(d.Dir, fmt.Sprintf(endSavePattern, no))
}

// Write stores an end-save in slot no, always in the newest generation.
func (d EndSaveDir) Write(no int32, s *savestate.EndSaveState) error {
	if no < 0 {
		return fmt.Errorf("end-save slot %d: %w", no, ErrSlotNotFound)
	}
	if err := writeFileAtomic(d.Path(no), savestate.EncodeEndSave(s)); err != nil {
		return err
	}
	log.Infof("wrote end-save slot %d", no)
	return nil
}

// Read loads slot no. Any supported generation is accepted.
func (d EndSaveDir) Read(no int32, limits savestate.Limits) (*savestate.EndSaveState, error) {
	data, err := os.ReadFile(d.Path(no))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("end-save slot %d: %w", no, ErrSlotNotFound)
	}
	if err != nil {
		return nil, err
	}
	s, err := savestate.DecodeEndSave(data, limits)
	if err != nil {
		return nil, fmt.Errorf("end-save slot %d: %w", no, err)
	}
	return s, nil
}

// Delete removes slot no.
func (d EndSaveDir) Delete(no int32) error {
	err := os.Remove(d.Path(no))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("end-save slot %d: %w", no, ErrSlotNotFound)
	}
	return err
}

// List returns the used slot numbers in ascending order. A missing
// directory holds no slots.
func (d EndSaveDir) List() ([]int32, error) {
	entries, err := os.ReadDir(d.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []int32
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		digits, ok := strings.CutPrefix(e.Name(), "endsave_")
		if !ok {
			continue
		}
		if digits, ok = strings.CutSuffix(digits, ".sav"); !ok {
			continue
		}
		no, err := strconv.ParseInt(digits, 10, 32)
		if err != nil || e.Name() != fmt.Sprintf(endSavePattern, no) {
			continue
		}
		out = append(out, int32(no))
	}
	slices.Sort(out)
	return out, nil
}
