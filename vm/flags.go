package vm

import (
	"fmt"

	"github.com/chazu/sigvm/vm/savestate"
)

// ---------------------------------------------------------------------------
// FlagBank: the script's global memory
// ---------------------------------------------------------------------------

const (
	IntBankCount = 9
	StrBankCount = 4
	FlagBankSize = 32
)

// FlagBank holds nine integer banks and four string banks of 32 slots.
// Each VM owns its own bank.
type FlagBank struct {
	ints [IntBankCount][FlagBankSize]int32
	strs [StrBankCount][FlagBankSize]string
}

func flagIndexOK(bank, count, idx int) bool {
	return bank >= 0 && bank < count && idx >= 0 && idx < FlagBankSize
}

// Int reads an integer flag.
func (f *FlagBank) Int(bank, idx int) (int32, bool) {
	if !flagIndexOK(bank, IntBankCount, idx) {
		return 0, false
	}
	return f.ints[bank][idx], true
}

// SetInt writes an integer flag.
func (f *FlagBank) SetInt(bank, idx int, v int32) bool {
	if !flagIndexOK(bank, IntBankCount, idx) {
		return false
	}
	f.ints[bank][idx] = v
	return true
}

// Str reads a string flag.
func (f *FlagBank) Str(bank, idx int) (string, bool) {
	if !flagIndexOK(bank, StrBankCount, idx) {
		return "", false
	}
	return f.strs[bank][idx], true
}

// SetStr writes a string flag.
func (f *FlagBank) SetStr(bank, idx int, v string) bool {
	if !flagIndexOK(bank, StrBankCount, idx) {
		return false
	}
	f.strs[bank][idx] = v
	return true
}

// Reset zeroes every bank.
func (f *FlagBank) Reset() {
	*f = FlagBank{}
}

func (f *FlagBank) state() savestate.FlagBank {
	out := savestate.FlagBank{
		Ints: make([][]int32, IntBankCount),
		Strs: make([][]string, StrBankCount),
	}
	for i := range f.ints {
		out.Ints[i] = append([]int32(nil), f.ints[i][:]...)
	}
	for i := range f.strs {
		out.Strs[i] = append([]string(nil), f.strs[i][:]...)
	}
	return out
}

// flagBankFrom builds a bank from a decoded snapshot. Missing banks and
// short banks are zero-filled; extra data is rejected.
func flagBankFrom(s savestate.FlagBank) (*FlagBank, error) {
	if len(s.Ints) > IntBankCount || len(s.Strs) > StrBankCount {
		return nil, fmt.Errorf("%w: %d int banks, %d str banks", ErrStateMismatch, len(s.Ints), len(s.Strs))
	}
	f := &FlagBank{}
	for i, bank := range s.Ints {
		if len(bank) > FlagBankSize {
			return nil, fmt.Errorf("%w: int bank %d has %d slots", ErrStateMismatch, i, len(bank))
		}
		copy(f.ints[i][:], bank)
	}
	for i, bank := range s.Strs {
		if len(bank) > FlagBankSize {
			return nil, fmt.Errorf("%w: str bank %d has %d slots", ErrStateMismatch, i, len(bank))
		}
		copy(f.strs[i][:], bank)
	}
	return f, nil
}
