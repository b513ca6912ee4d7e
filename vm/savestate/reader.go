package savestate

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Decode Error Types
// ---------------------------------------------------------------------------

var (
	ErrBadMagic              = errors.New("savestate: bad magic")
	ErrUnsupportedGeneration = errors.New("savestate: unsupported generation")
	ErrTruncated             = errors.New("savestate: unexpected end of data")
	ErrLengthBound           = errors.New("savestate: length prefix exceeds bound")
	ErrStringBudget          = errors.New("savestate: cumulative string budget exceeded")
	ErrInvalidUTF8           = errors.New("savestate: invalid UTF-8 text")
	ErrBadForm               = errors.New("savestate: unknown value form")
	ErrTrailingData          = errors.New("savestate: trailing bytes after payload")
)

// DecodeError reports where in a payload decoding failed.
type DecodeError struct {
	Offset int
	Field  string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ---------------------------------------------------------------------------
// Limits
// ---------------------------------------------------------------------------

// Limits bounds what a decoder will accept.
type Limits struct {
	MaxArrayLen         int // any element count
	MaxStringBytes      int // a single string
	MaxTotalStringBytes int // all strings in one payload
	MaxFrames           int // call-stack depth
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxArrayLen:         1 << 16,
		MaxStringBytes:      1 << 20,
		MaxTotalStringBytes: 16 << 20,
		MaxFrames:           1024,
	}
}

// ---------------------------------------------------------------------------
// stateReader: bounds-checked little-endian decoder
// ---------------------------------------------------------------------------

type stateReader struct {
	data   []byte
	offset int
	limits Limits
	budget int // remaining string bytes
}

func newStateReader(data []byte, limits Limits) *stateReader {
	return &stateReader{data: data, limits: limits, budget: limits.MaxTotalStringBytes}
}

func (r *stateReader) fail(field string, err error) error {
	return &DecodeError{Offset: r.offset, Field: field, Err: err}
}

func (r *stateReader) remaining() int {
	return len(r.data) - r.offset
}

func (r *stateReader) magic(want [MagicSize]byte) error {
	if r.remaining() < MagicSize {
		return r.fail("magic", ErrTruncated)
	}
	if !bytes.Equal(r.data[:MagicSize], want[:]) {
		return r.fail("magic", fmt.Errorf("%w: got %q", ErrBadMagic, r.data[:MagicSize]))
	}
	r.offset = MagicSize
	return nil
}

func (r *stateReader) finish() error {
	if r.remaining() != 0 {
		return r.fail("end", fmt.Errorf("%w: %d bytes", ErrTrailingData, r.remaining()))
	}
	return nil
}

func (r *stateReader) u8(field string) (byte, error) {
	if r.remaining() < 1 {
		return 0, r.fail(field, ErrTruncated)
	}
	v := r.data[r.offset]
	r.offset++
	return v, nil
}

func (r *stateReader) bool(field string) (bool, error) {
	v, err := r.u8(field)
	return v != 0, err
}

func (r *stateReader) u32(field string) (uint32, error) {
	if r.remaining() < 4 {
		return 0, r.fail(field, ErrTruncated)
	}
	v := binary.LittleEndian.Uint32(r.data[r.offset:])
	r.offset += 4
	return v, nil
}

func (r *stateReader) i32(field string) (int32, error) {
	v, err := r.u32(field)
	return int32(v), err
}

// count reads an element count and checks it against the array bound and
// against the bytes left, given the minimum encoded size of one element.
func (r *stateReader) count(field string, minElem int, bound int) (int, error) {
	n, err := r.u32(field)
	if err != nil {
		return 0, err
	}
	if uint64(n) > uint64(bound) {
		return 0, r.fail(field, fmt.Errorf("%w: %d > %d", ErrLengthBound, n, bound))
	}
	if uint64(n)*uint64(minElem) > uint64(r.remaining()) {
		return 0, r.fail(field, ErrTruncated)
	}
	return int(n), nil
}

func (r *stateReader) str(field string) (string, error) {
	n, err := r.u32(field)
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(r.limits.MaxStringBytes) {
		return "", r.fail(field, fmt.Errorf("%w: string of %d bytes", ErrLengthBound, n))
	}
	if int(n) > r.budget {
		return "", r.fail(field, ErrStringBudget)
	}
	if int(n) > r.remaining() {
		return "", r.fail(field, ErrTruncated)
	}
	raw := r.data[r.offset : r.offset+int(n)]
	if !utf8.Valid(raw) {
		return "", r.fail(field, ErrInvalidUTF8)
	}
	r.offset += int(n)
	r.budget -= int(n)
	return string(raw), nil
}

func (r *stateReader) ints(field string) ([]int32, error) {
	n, err := r.count(field, 4, r.limits.MaxArrayLen)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(r.data[r.offset:]))
		r.offset += 4
	}
	return out, nil
}

func (r *stateReader) strs(field string) ([]string, error) {
	n, err := r.count(field, 4, r.limits.MaxArrayLen)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = r.str(field); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *stateReader) blob(field string) ([]byte, error) {
	n, err := r.u32(field)
	if err != nil {
		return nil, err
	}
	if int64(n) > int64(r.remaining()) {
		return nil, r.fail(field, ErrTruncated)
	}
	b := r.data[r.offset : r.offset+int(n)]
	r.offset += int(n)
	return b, nil
}

// ---------------------------------------------------------------------------
// Structured sections
// ---------------------------------------------------------------------------

func (r *stateReader) value(field string) (Value, error) {
	var v Value
	var err error
	if v.Form, err = r.i32(field + ".form"); err != nil {
		return v, err
	}
	switch v.Form {
	case FormVoid:
	case FormInt, FormLabel:
		v.Int, err = r.i32(field)
	case FormStr:
		v.Str, err = r.str(field)
	case FormIntList, FormElement:
		v.Ints, err = r.ints(field)
	case FormStrList:
		v.Strs, err = r.strs(field)
	default:
		err = r.fail(field, fmt.Errorf("%w: %d", ErrBadForm, v.Form))
	}
	return v, err
}

func (r *stateReader) values(field string) ([]Value, error) {
	n, err := r.count(field, 4, r.limits.MaxArrayLen)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]Value, n)
	for i := range out {
		if out[i], err = r.value(field); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *stateReader) props(field string) ([]Prop, error) {
	n, err := r.count(field, 12, r.limits.MaxArrayLen)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]Prop, n)
	for i := range out {
		if out[i].ID, err = r.i32(field + ".id"); err != nil {
			return nil, err
		}
		if out[i].Name, err = r.str(field + ".name"); err != nil {
			return nil, err
		}
		if out[i].Value, err = r.value(field); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *stateReader) persistent(s *PersistentState) error {
	n, err := r.count("flags.ints", 4, r.limits.MaxArrayLen)
	if err != nil {
		return err
	}
	if n > 0 {
		s.Flags.Ints = make([][]int32, n)
		for i := range s.Flags.Ints {
			if s.Flags.Ints[i], err = r.ints("flags.ints"); err != nil {
				return err
			}
		}
	}
	if n, err = r.count("flags.strs", 4, r.limits.MaxArrayLen); err != nil {
		return err
	}
	if n > 0 {
		s.Flags.Strs = make([][]string, n)
		for i := range s.Flags.Strs {
			if s.Flags.Strs[i], err = r.strs("flags.strs"); err != nil {
				return err
			}
		}
	}
	if s.SavePointExists, err = r.bool("save_point"); err != nil {
		return err
	}
	s.SelPointExists, err = r.bool("sel_point")
	return err
}

func (r *stateReader) cursor(c *Cursor) error {
	var err error
	if c.Scene, err = r.str("cursor.scene"); err != nil {
		return err
	}
	if c.PC, err = r.i32("cursor.pc"); err != nil {
		return err
	}
	c.Line, err = r.i32("cursor.line")
	return err
}

func (r *stateReader) frame(f *Frame) error {
	var err error
	if f.ReturnScene, err = r.str("frame.scene"); err != nil {
		return err
	}
	if f.ReturnPC, err = r.i32("frame.pc"); err != nil {
		return err
	}
	if f.ReturnLine, err = r.i32("frame.line"); err != nil {
		return err
	}
	if f.RetForm, err = r.i32("frame.ret_form"); err != nil {
		return err
	}
	if f.FrameAction, err = r.bool("frame.frame_action"); err != nil {
		return err
	}
	if f.L, err = r.ints("frame.L"); err != nil {
		return err
	}
	if f.K, err = r.strs("frame.K"); err != nil {
		return err
	}
	if f.Props, err = r.props("frame.props"); err != nil {
		return err
	}
	f.PendingArgs, err = r.values("frame.args")
	return err
}

func (r *stateReader) settings(s *Settings) error {
	var err error
	read := func(field string, dst *bool) {
		if err == nil {
			*dst, err = r.bool(field)
		}
	}
	readInt := func(field string, dst *int32) {
		if err == nil {
			*dst, err = r.i32(field)
		}
	}
	read("settings.skip_disable", &s.SkipDisable)
	read("settings.ctrl_skip_disable", &s.CtrlSkipDisable)
	read("settings.auto_mode", &s.AutoMode)
	readInt("settings.auto_wait", &s.AutoWaitMs)
	if err == nil {
		s.FontName, err = r.str("settings.font_name")
	}
	readInt("settings.font_size", &s.FontSize)
	read("settings.font_bold", &s.FontBold)
	read("settings.msg_back_disable", &s.MsgBackDisable)
	readInt("settings.message_speed", &s.MessageSpeed)
	if err == nil {
		s.KeyDisable, err = r.ints("settings.key_disable")
	}
	return err
}

func (r *stateReader) localBody(s *LocalState) error {
	var err error
	if s.Title, err = r.str("title"); err != nil {
		return err
	}
	n, err := r.count("frames", 4, r.limits.MaxFrames)
	if err != nil {
		return err
	}
	if n > 0 {
		s.Frames = make([]Frame, n)
		for i := range s.Frames {
			if err := r.frame(&s.Frames[i]); err != nil {
				return err
			}
		}
	}
	if s.IntStack, err = r.ints("int_stack"); err != nil {
		return err
	}
	if s.StrStack, err = r.strs("str_stack"); err != nil {
		return err
	}
	if s.Marks, err = r.ints("marks"); err != nil {
		return err
	}
	if s.IncProps, err = r.props("inc_props"); err != nil {
		return err
	}
	if n, err = r.count("scene_props", 8, r.limits.MaxArrayLen); err != nil {
		return err
	}
	if n > 0 {
		s.SceneProps = make([]SceneProps, n)
		for i := range s.SceneProps {
			if s.SceneProps[i].Scene, err = r.str("scene_props.scene"); err != nil {
				return err
			}
			if s.SceneProps[i].Props, err = r.props("scene_props.props"); err != nil {
				return err
			}
		}
	}
	if n, err = r.count("timers", 5, r.limits.MaxArrayLen); err != nil {
		return err
	}
	if n > 0 {
		s.Timers = make([]Timer, n)
		for i := range s.Timers {
			if s.Timers[i].ElapsedMs, err = r.i32("timers.elapsed"); err != nil {
				return err
			}
			if s.Timers[i].Running, err = r.bool("timers.running"); err != nil {
				return err
			}
		}
	}
	if s.FeatureEnable, err = r.ints("feature_enable"); err != nil {
		return err
	}
	if s.FeatureExist, err = r.ints("feature_exist"); err != nil {
		return err
	}
	return r.settings(&s.Settings)
}

func (r *stateReader) stamp(s *Stamp) error {
	var err error
	for _, dst := range [...]*int32{&s.Year, &s.Month, &s.Day, &s.Weekday, &s.Hour, &s.Minute, &s.Second, &s.Millisecond} {
		if *dst, err = r.i32("stamp"); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Decoders
// ---------------------------------------------------------------------------

// DecodePersistent parses a PersistentState payload.
func DecodePersistent(data []byte, limits Limits) (*PersistentState, error) {
	r := newStateReader(data, limits)
	if err := r.magic(MagicPersistent); err != nil {
		return nil, err
	}
	var s PersistentState
	if err := r.persistent(&s); err != nil {
		return nil, err
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeLocal parses a LocalState payload.
func DecodeLocal(data []byte, limits Limits) (*LocalState, error) {
	r := newStateReader(data, limits)
	s, err := r.local()
	if err != nil {
		return nil, err
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *stateReader) local() (*LocalState, error) {
	if err := r.magic(MagicLocal); err != nil {
		return nil, err
	}
	var s LocalState
	if err := r.persistent(&s.Persistent); err != nil {
		return nil, err
	}
	if err := r.cursor(&s.Cursor); err != nil {
		return nil, err
	}
	if err := r.localBody(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DecodeEndSave parses an EndSaveState of any supported generation.
// Fields a generation does not carry are left at their zero values.
func DecodeEndSave(data []byte, limits Limits) (*EndSaveState, error) {
	gen, err := endSaveGeneration(data)
	if err != nil {
		return nil, err
	}
	r := newStateReader(data, limits)
	r.offset = MagicSize

	s := &EndSaveState{Generation: gen}
	if err := r.persistent(&s.Local.Persistent); err != nil {
		return nil, err
	}
	if err := r.cursor(&s.Local.Cursor); err != nil {
		return nil, err
	}
	if gen >= EndSaveGen2 {
		if err := r.localBody(&s.Local); err != nil {
			return nil, err
		}
	}
	if gen >= EndSaveGen3 {
		if s.HasExtended, err = r.bool("extended"); err != nil {
			return nil, err
		}
		if s.HasExtended {
			if err := r.stamp(&s.Stamp); err != nil {
				return nil, err
			}
			n, err := r.count("history", 8, r.limits.MaxArrayLen)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				s.History = make([]HistoryEntry, n)
				for i := range s.History {
					if s.History[i].Name, err = r.str("history.name"); err != nil {
						return nil, err
					}
					if s.History[i].Text, err = r.str("history.text"); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	if gen < EndSaveGeneration {
		log.Debugf("decoded end-save generation %d", gen)
	}
	return s, nil
}

func endSaveGeneration(data []byte) (int, error) {
	if len(data) < MagicSize {
		return 0, &DecodeError{Field: "magic", Err: ErrTruncated}
	}
	if !bytes.Equal(data[:MagicSize-1], endSavePrefix[:]) {
		return 0, &DecodeError{Field: "magic", Err: fmt.Errorf("%w: got %q", ErrBadMagic, data[:MagicSize])}
	}
	gen := int(data[MagicSize-1]) - '0'
	if gen < EndSaveGen1 || gen > EndSaveGeneration {
		return 0, &DecodeError{Field: "magic", Err: fmt.Errorf("%w: %d", ErrUnsupportedGeneration, gen)}
	}
	return gen, nil
}

// DecodeSlot parses a slot record and its embedded snapshot. The string
// budget is shared with the embedded snapshot.
func DecodeSlot(data []byte, limits Limits) (*Slot, error) {
	r := newStateReader(data, limits)
	if err := r.magic(MagicSlot); err != nil {
		return nil, err
	}
	var s Slot
	if err := r.stamp(&s.Stamp); err != nil {
		return nil, err
	}
	var err error
	if s.Title, err = r.str("title"); err != nil {
		return nil, err
	}
	if s.Message, err = r.str("message"); err != nil {
		return nil, err
	}
	inner, err := r.blob("state")
	if err != nil {
		return nil, err
	}
	if len(inner) > 0 {
		sub := newStateReader(inner, limits)
		sub.budget = r.budget
		if s.State, err = sub.local(); err != nil {
			return nil, err
		}
		if err := sub.finish(); err != nil {
			return nil, err
		}
		r.budget = sub.budget
	}
	if err := r.finish(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ---------------------------------------------------------------------------
// Sniffing
// ---------------------------------------------------------------------------

// Kind identifies a payload.
type Kind int

const (
	KindUnknown Kind = iota
	KindPersistent
	KindLocal
	KindEndSave
	KindSlot
)

func (k Kind) String() string {
	switch k {
	case KindPersistent:
		return "persistent"
	case KindLocal:
		return "local"
	case KindEndSave:
		return "end-save"
	case KindSlot:
		return "slot"
	}
	return "unknown"
}

// Sniff identifies the kind and generation of a payload from its magic.
func Sniff(data []byte) (Kind, int) {
	if len(data) < MagicSize {
		return KindUnknown, 0
	}
	head := data[:MagicSize]
	switch {
	case bytes.Equal(head, MagicPersistent[:]):
		return KindPersistent, 1
	case bytes.Equal(head, MagicLocal[:]):
		return KindLocal, 1
	case bytes.Equal(head, MagicSlot[:]):
		return KindSlot, 1
	}
	if gen, err := endSaveGeneration(data); err == nil {
		return KindEndSave, gen
	}
	return KindUnknown, 0
}
