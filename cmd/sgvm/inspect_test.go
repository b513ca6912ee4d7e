package main

import (
	"testing"

	"github.com/chazu/sigvm/vm/savestate"
)

func TestInspectKinds(t *testing.T) {
	local := &savestate.LocalState{Cursor: savestate.Cursor{Scene: "s01", PC: 12, Line: 3}}
	tests := []struct {
		name string
		data []byte
	}{
		{"persistent", savestate.EncodePersistent(&savestate.PersistentState{SavePointExists: true})},
		{"local", savestate.EncodeLocal(local)},
		{"end-save", savestate.EncodeEndSave(&savestate.EndSaveState{Generation: savestate.EndSaveGeneration, Local: *local, HasExtended: true})},
		{"slot", savestate.EncodeSlot(&savestate.Slot{Title: "t", State: local})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := inspect(tt.data, savestate.DefaultLimits()); err != nil {
				t.Errorf("inspect: %v", err)
			}
		})
	}
}

func TestInspectUnknown(t *testing.T) {
	if err := inspect([]byte("not a save file"), savestate.DefaultLimits()); err == nil {
		t.Error("expected error for unknown data")
	}
}

func TestFormatStamp(t *testing.T) {
	s := savestate.Stamp{Year: 2024, Month: 4, Day: 1, Hour: 9, Minute: 5, Second: 7, Millisecond: 42}
	if got, want := formatStamp(s), "2024-04-01 09:05:07.042"; got != want {
		t.Errorf("formatStamp = %q, want %q", got, want)
	}
}
