package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/chazu/sigvm/vm"
	"github.com/chazu/sigvm/vm/savestate"
)

func sampleLocal() *savestate.LocalState {
	return &savestate.LocalState{
		Persistent: savestate.PersistentState{
			Flags: savestate.FlagBank{Ints: [][]int32{{1, 2, 3}}, Strs: [][]string{{"x"}}},
		},
		Cursor:   savestate.Cursor{Scene: "main", PC: 42, Line: 7},
		Title:    "Chapter 1",
		Frames:   []savestate.Frame{{}},
		IntStack: []int32{5},
	}
}

func TestPersistentRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "persistent.sav")
	want := &savestate.PersistentState{
		Flags:          savestate.FlagBank{Ints: [][]int32{{9}}},
		SelPointExists: true,
	}
	if err := WritePersistent(path, want); err != nil {
		t.Fatalf("WritePersistent: %v", err)
	}
	got, err := ReadPersistent(path, savestate.DefaultLimits())
	if err != nil {
		t.Fatalf("ReadPersistent: %v", err)
	}
	if got.Flags.Ints[0][0] != 9 || !got.SelPointExists {
		t.Errorf("got %+v", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("directory holds %d files, want only the state file", len(entries))
	}
}

func TestReadPersistentMissing(t *testing.T) {
	s, err := ReadPersistent(filepath.Join(t.TempDir(), "none.sav"), savestate.DefaultLimits())
	if err != nil || s != nil {
		t.Errorf("ReadPersistent = %v, %v; want nil, nil", s, err)
	}
}

func TestReadPersistentCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.sav")
	if err := os.WriteFile(path, []byte("not a save"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPersistent(path, savestate.DefaultLimits()); err == nil {
		t.Error("corrupt file decoded")
	}
}

func TestEndSaveDir(t *testing.T) {
	d := EndSaveDir{Dir: t.TempDir()}
	if list, err := d.List(); err != nil || len(list) != 0 {
		t.Fatalf("List on empty = %v, %v", list, err)
	}
	es := &savestate.EndSaveState{Local: *sampleLocal(), HasExtended: true,
		History: []savestate.HistoryEntry{{Name: "Aoi", Text: "hello"}}}
	for _, no := range []int32{12, 3} {
		if err := d.Write(no, es); err != nil {
			t.Fatalf("Write(%d): %v", no, err)
		}
	}
	if err := os.WriteFile(filepath.Join(d.Dir, "endsave_x.sav"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	list, err := d.List()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(list, []int32{3, 12}) {
		t.Errorf("List = %v, want [3 12]", list)
	}
	if filepath.Base(d.Path(3)) != "endsave_003.sav" {
		t.Errorf("path = %s", d.Path(3))
	}

	got, err := d.Read(12, savestate.DefaultLimits())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Generation != savestate.EndSaveGeneration || got.Local.Cursor.PC != 42 || len(got.History) != 1 {
		t.Errorf("read back %+v", got)
	}

	if err := d.Delete(12); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Read(12, savestate.DefaultLimits()); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("Read after delete = %v, want ErrSlotNotFound", err)
	}
	if err := d.Delete(12); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("second Delete = %v", err)
	}
}

func openTestDB(t *testing.T) *SlotDB {
	t.Helper()
	db, err := OpenSlotDB(filepath.Join(t.TempDir(), "slots.db"), savestate.DefaultLimits())
	if err != nil {
		t.Fatalf("OpenSlotDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSlotDBPutGet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	slot := &savestate.Slot{
		Stamp:   savestate.Stamp{Year: 2024, Month: 4, Day: 1, Hour: 12},
		Title:   "Chapter 1",
		Message: "hello",
		State:   sampleLocal(),
	}
	if err := db.Put(ctx, vm.SlotStandard, 5, slot); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get(ctx, vm.SlotStandard, 5)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Stamp != slot.Stamp || got.Title != slot.Title || got.Message != slot.Message {
		t.Errorf("got %+v", got)
	}
	if got.State == nil || got.State.Cursor != slot.State.Cursor {
		t.Errorf("state = %+v", got.State)
	}

	if _, err := db.Get(ctx, vm.SlotQuick, 5); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("Get of another kind = %v, want ErrSlotNotFound", err)
	}

	slot.Title = "renamed"
	if err := db.Put(ctx, vm.SlotStandard, 5, slot); err != nil {
		t.Fatal(err)
	}
	list, err := db.List(ctx, vm.SlotStandard)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Title != "renamed" || list[0].ID == "" {
		t.Errorf("List = %+v", list)
	}

	if err := db.Delete(ctx, vm.SlotStandard, 5); err != nil {
		t.Fatal(err)
	}
	if err := db.Delete(ctx, vm.SlotStandard, 5); !errors.Is(err, ErrSlotNotFound) {
		t.Errorf("second Delete = %v", err)
	}
}

func TestSlotDBSyncAndLoad(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	src := vm.NewSlotMap(vm.SlotQuick, 4)
	src.Save(0, &savestate.Slot{Title: "a", State: sampleLocal()})
	src.Save(2, &savestate.Slot{Title: "c"})
	if err := db.SyncFrom(ctx, src); err != nil {
		t.Fatalf("SyncFrom: %v", err)
	}
	src.Delete(0)
	if err := db.SyncFrom(ctx, src); err != nil {
		t.Fatal(err)
	}

	dst := vm.NewSlotMap(vm.SlotQuick, 4)
	dst.Save(3, &savestate.Slot{Title: "stale"})
	if err := db.LoadInto(ctx, dst); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}
	if !reflect.DeepEqual(dst.Numbers(), []int32{2}) {
		t.Errorf("numbers = %v, want [2]", dst.Numbers())
	}
	if s, _ := dst.Get(2); s.Title != "c" || s.State != nil {
		t.Errorf("slot 2 = %+v", s)
	}

	small := vm.NewSlotMap(vm.SlotQuick, 2)
	if err := db.LoadInto(ctx, small); err != nil {
		t.Fatal(err)
	}
	if small.Len() != 0 {
		t.Errorf("slot beyond capacity loaded: %v", small.Numbers())
	}
}
