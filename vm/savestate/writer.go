package savestate

import (
	"encoding/binary"
	"fmt"
)

// ---------------------------------------------------------------------------
// stateWriter: append-only little-endian encoder
// ---------------------------------------------------------------------------

type stateWriter struct {
	buf []byte
}

func newStateWriter(magic [MagicSize]byte) *stateWriter {
	w := &stateWriter{buf: make([]byte, 0, 256)}
	w.buf = append(w.buf, magic[:]...)
	return w
}

func (w *stateWriter) bytes() []byte {
	return w.buf
}

func (w *stateWriter) u8(v byte) {
	w.buf = append(w.buf, v)
}

func (w *stateWriter) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *stateWriter) u32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *stateWriter) i32(v int32) {
	w.u32(uint32(v))
}

func (w *stateWriter) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *stateWriter) ints(v []int32) {
	w.u32(uint32(len(v)))
	for _, x := range v {
		w.i32(x)
	}
}

func (w *stateWriter) strs(v []string) {
	w.u32(uint32(len(v)))
	for _, s := range v {
		w.str(s)
	}
}

func (w *stateWriter) blob(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// ---------------------------------------------------------------------------
// Structured sections
// ---------------------------------------------------------------------------

func (w *stateWriter) value(v Value) {
	w.i32(v.Form)
	switch v.Form {
	case FormInt, FormLabel:
		w.i32(v.Int)
	case FormStr:
		w.str(v.Str)
	case FormIntList, FormElement:
		w.ints(v.Ints)
	case FormStrList:
		w.strs(v.Strs)
	}
}

func (w *stateWriter) values(vs []Value) {
	w.u32(uint32(len(vs)))
	for _, v := range vs {
		w.value(v)
	}
}

func (w *stateWriter) props(ps []Prop) {
	w.u32(uint32(len(ps)))
	for _, p := range ps {
		w.i32(p.ID)
		w.str(p.Name)
		w.value(p.Value)
	}
}

func (w *stateWriter) persistent(s *PersistentState) {
	w.u32(uint32(len(s.Flags.Ints)))
	for _, bank := range s.Flags.Ints {
		w.ints(bank)
	}
	w.u32(uint32(len(s.Flags.Strs)))
	for _, bank := range s.Flags.Strs {
		w.strs(bank)
	}
	w.bool(s.SavePointExists)
	w.bool(s.SelPointExists)
}

func (w *stateWriter) cursor(c Cursor) {
	w.str(c.Scene)
	w.i32(c.PC)
	w.i32(c.Line)
}

func (w *stateWriter) frame(f *Frame) {
	w.str(f.ReturnScene)
	w.i32(f.ReturnPC)
	w.i32(f.ReturnLine)
	w.i32(f.RetForm)
	w.bool(f.FrameAction)
	w.ints(f.L)
	w.strs(f.K)
	w.props(f.Props)
	w.values(f.PendingArgs)
}

func (w *stateWriter) settings(s *Settings) {
	w.bool(s.SkipDisable)
	w.bool(s.CtrlSkipDisable)
	w.bool(s.AutoMode)
	w.i32(s.AutoWaitMs)
	w.str(s.FontName)
	w.i32(s.FontSize)
	w.bool(s.FontBold)
	w.bool(s.MsgBackDisable)
	w.i32(s.MessageSpeed)
	w.ints(s.KeyDisable)
}

// localBody writes everything a LocalState carries beyond the persistent
// flags and the cursor.
func (w *stateWriter) localBody(s *LocalState) {
	w.str(s.Title)
	w.u32(uint32(len(s.Frames)))
	for i := range s.Frames {
		w.frame(&s.Frames[i])
	}
	w.ints(s.IntStack)
	w.strs(s.StrStack)
	w.ints(s.Marks)
	w.props(s.IncProps)
	w.u32(uint32(len(s.SceneProps)))
	for _, sp := range s.SceneProps {
		w.str(sp.Scene)
		w.props(sp.Props)
	}
	w.u32(uint32(len(s.Timers)))
	for _, t := range s.Timers {
		w.i32(t.ElapsedMs)
		w.bool(t.Running)
	}
	w.ints(s.FeatureEnable)
	w.ints(s.FeatureExist)
	w.settings(&s.Settings)
}

func (w *stateWriter) stamp(s Stamp) {
	for _, v := range [...]int32{s.Year, s.Month, s.Day, s.Weekday, s.Hour, s.Minute, s.Second, s.Millisecond} {
		w.i32(v)
	}
}

// ---------------------------------------------------------------------------
// Encoders
// ---------------------------------------------------------------------------

// EncodePersistent serializes a PersistentState.
func EncodePersistent(s *PersistentState) []byte {
	w := newStateWriter(MagicPersistent)
	w.persistent(s)
	return w.bytes()
}

// EncodeLocal serializes a LocalState.
func EncodeLocal(s *LocalState) []byte {
	w := newStateWriter(MagicLocal)
	w.persistent(&s.Persistent)
	w.cursor(s.Cursor)
	w.localBody(s)
	return w.bytes()
}

// EncodeEndSave serializes an EndSaveState in the newest generation.
func EncodeEndSave(s *EndSaveState) []byte {
	data, _ := EncodeEndSaveGeneration(s, EndSaveGeneration)
	return data
}

// EncodeEndSaveGeneration serializes an EndSaveState in an older
// generation, dropping the fields that generation cannot carry.
func EncodeEndSaveGeneration(s *EndSaveState, gen int) ([]byte, error) {
	if gen < EndSaveGen1 || gen > EndSaveGeneration {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedGeneration, gen)
	}
	w := newStateWriter(EndSaveMagic(gen))
	w.persistent(&s.Local.Persistent)
	w.cursor(s.Local.Cursor)
	if gen >= EndSaveGen2 {
		w.localBody(&s.Local)
	}
	if gen >= EndSaveGen3 {
		w.bool(s.HasExtended)
		if s.HasExtended {
			w.stamp(s.Stamp)
			w.u32(uint32(len(s.History)))
			for _, h := range s.History {
				w.str(h.Name)
				w.str(h.Text)
			}
		}
	}
	return w.bytes(), nil
}

// EncodeSlot serializes a slot record with its embedded snapshot.
func EncodeSlot(s *Slot) []byte {
	w := newStateWriter(MagicSlot)
	w.stamp(s.Stamp)
	w.str(s.Title)
	w.str(s.Message)
	if s.State == nil {
		w.blob(nil)
	} else {
		w.blob(EncodeLocal(s.State))
	}
	return w.bytes()
}
