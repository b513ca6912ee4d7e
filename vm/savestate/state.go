// Package savestate implements the binary snapshot formats of the VM:
// persistent flags, in-process continuation state, end-save state and
// save slot records. All formats are little-endian, start with an 8-byte
// magic tag naming kind and generation, and length-prefix every variable
// field. Decoders check each prefix against Limits before allocating.
package savestate

import "github.com/tliron/commonlog"

var log = commonlog.GetLogger("sigvm.savestate")

// ---------------------------------------------------------------------------
// Format Constants
// ---------------------------------------------------------------------------

// MagicSize is the length of every magic tag.
const MagicSize = 8

// Magic tags. The final byte is the generation digit.
var (
	MagicPersistent = [MagicSize]byte{'S', 'G', 'V', 'M', 'P', 'S', 'T', '1'}
	MagicLocal      = [MagicSize]byte{'S', 'G', 'V', 'M', 'L', 'O', 'C', '1'}
	MagicSlot       = [MagicSize]byte{'S', 'G', 'V', 'M', 'S', 'L', 'T', '1'}
)

// End-save generations
// 1: persistent flags and cursor only
// 2: adds the full continuation payload
// 3: adds an extended-payload marker, slot stamp and message history
const (
	EndSaveGen1       = 1
	EndSaveGen2       = 2
	EndSaveGen3       = 3
	EndSaveGeneration = EndSaveGen3
)

var endSavePrefix = [MagicSize - 1]byte{'S', 'G', 'V', 'M', 'E', 'N', 'D'}

// EndSaveMagic returns the magic tag for an end-save generation.
func EndSaveMagic(gen int) [MagicSize]byte {
	var m [MagicSize]byte
	copy(m[:], endSavePrefix[:])
	m[MagicSize-1] = byte('0' + gen)
	return m
}

// Value form tags, shared with the bytecode.
const (
	FormVoid    int32 = 0
	FormInt     int32 = 10
	FormIntList int32 = 11
	FormStr     int32 = 20
	FormStrList int32 = 21
	FormLabel   int32 = 30
	FormElement int32 = 100
)

// ---------------------------------------------------------------------------
// State shapes
// ---------------------------------------------------------------------------

// FlagBank is the script's global memory: integer banks and string banks.
type FlagBank struct {
	Ints [][]int32
	Strs [][]string
}

// PersistentState is the small cross-session snapshot.
type PersistentState struct {
	Flags           FlagBank
	SavePointExists bool
	SelPointExists  bool
}

// Value is a typed script value. Element addresses are carried in Ints.
type Value struct {
	Form int32
	Int  int32
	Str  string
	Ints []int32
	Strs []string
}

// Prop is a typed property slot. Scene properties carry their declared
// name; call properties carry only the id they were declared with.
type Prop struct {
	ID    int32
	Name  string
	Value Value
}

// Cursor is a program position.
type Cursor struct {
	Scene string
	PC    int32
	Line  int32
}

// Frame is one call-stack entry.
type Frame struct {
	ReturnScene string
	ReturnPC    int32
	ReturnLine  int32
	RetForm     int32
	FrameAction bool
	L           []int32
	K           []string
	Props       []Prop
	PendingArgs []Value
}

// SceneProps holds the declared properties of one scene.
type SceneProps struct {
	Scene string
	Props []Prop
}

// Timer is a script timer.
type Timer struct {
	ElapsedMs int32
	Running   bool
}

// Settings holds script runtime settings.
type Settings struct {
	SkipDisable     bool
	CtrlSkipDisable bool
	AutoMode        bool
	AutoWaitMs      int32
	FontName        string
	FontSize        int32
	FontBold        bool
	MsgBackDisable  bool
	MessageSpeed    int32
	KeyDisable      []int32
}

// LocalState is the full in-process continuation.
type LocalState struct {
	Persistent    PersistentState
	Cursor        Cursor
	Title         string
	Frames        []Frame
	IntStack      []int32
	StrStack      []string
	Marks         []int32
	IncProps      []Prop
	SceneProps    []SceneProps
	Timers        []Timer
	FeatureEnable []int32
	FeatureExist  []int32
	Settings      Settings
}

// Stamp is the wall-clock time a slot was written.
type Stamp struct {
	Year        int32
	Month       int32
	Day         int32
	Weekday     int32
	Hour        int32
	Minute      int32
	Second      int32
	Millisecond int32
}

// HistoryEntry is one line of the message-back history.
type HistoryEntry struct {
	Name string
	Text string
}

// EndSaveState is the cross-process continuation. Generation reports the
// generation it was decoded from; encoders always write the newest.
type EndSaveState struct {
	Generation  int
	Local       LocalState
	HasExtended bool
	Stamp       Stamp
	History     []HistoryEntry
}

// Slot is a save slot record: stamp, labels and an embedded snapshot.
type Slot struct {
	Stamp   Stamp
	Title   string
	Message string
	State   *LocalState
}
