package vm

// ---------------------------------------------------------------------------
// Host: the presentation boundary
// ---------------------------------------------------------------------------

// Host receives every observable effect of a run. Calls are synchronous
// and always made from the goroutine running the VM.
type Host interface {
	OnName(name string)
	OnText(text string, readFlag int32)

	// OnCommand handles a command no built-in tier claimed. The result is
	// coerced to cmd.RetForm.
	OnCommand(cmd *Command) Value
	// OnProperty reads an address no namespace claimed.
	OnProperty(addr Address) (Value, bool)
	// OnAssign writes an address no namespace claimed.
	OnAssign(addr Address, al int32, v Value)

	OnLocation(loc Location)
	OnMessageBack(ev MessageBackEvent)
	OnSetting(ev SettingEvent)
	OnAudio(ev AudioEvent)
	OnWipe(ev WipeEvent)
	OnScreen(ev ScreenEvent)
	OnObject(ev ObjectEvent)
	OnProcedure(proc Procedure, step Step)
	OnSaveFlush(point FlushPoint)

	// Polled once per instruction and once per wait tick.
	ShouldInterrupt() bool
	// Polled once per wait tick; true cuts a skippable wait short.
	ShouldSkipWait() bool
	// Polled once per tick while a message waits for input.
	PollAdvance() bool

	OnError(err *ScriptError)
	OnFatal(err error)
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// Location is reported whenever the scene, title or line changes.
type Location struct {
	Scene string
	Title string
	Line  int32
}

// MessageBackAction is a message history operation.
type MessageBackAction int

const (
	MessageBackOpen MessageBackAction = iota
	MessageBackClose
	MessageBackClear
	MessageBackAppend
)

type MessageBackEvent struct {
	Action MessageBackAction
	Entry  HistoryEntry
}

// HistoryEntry is one line of the message history.
type HistoryEntry struct {
	Name string
	Text string
}

// SettingEvent reports a change of an effectful script setting.
type SettingEvent struct {
	Name  string
	Value int32
}

// AudioChannel is the kind of audio channel addressed.
type AudioChannel int

const (
	ChannelBGM AudioChannel = iota
	ChannelPCM
	ChannelPCMCh
	ChannelSE
	ChannelMovie
)

var audioChannelNames = [...]string{"bgm", "pcm", "pcmch", "se", "mov"}

func (c AudioChannel) String() string {
	if int(c) < len(audioChannelNames) {
		return audioChannelNames[c]
	}
	return "audio?"
}

// AudioAction is what an AudioEvent asks the host to do.
type AudioAction int

const (
	AudioPlay AudioAction = iota
	AudioPlayOneshot
	AudioStop
	AudioPause
	AudioResume
	AudioVolume
)

type AudioEvent struct {
	Channel  AudioChannel
	Index    int32 // channel index for PCMCh; 0 otherwise
	Action   AudioAction
	Name     string
	Number   int32 // SE number when played by number
	Loop     bool
	FadeMs   int32
	StartPos int32
	Volume   int32
	X, Y     int32
}

// WipeEvent starts a screen transition.
type WipeEvent struct {
	Type       int32
	DurationMs int32
	Wait       bool
}

// ScreenEvent reports a screen, world or quake change.
type ScreenEvent struct {
	Target string // "effect", "world" or "quake"
	Index  int32
	Prop   int32
	Value  int32
	TimeMs int32
	Action string
}

// ObjectEvent reports an object change.
type ObjectEvent struct {
	Stage  int32
	Index  int32
	Prop   int32
	Action string
	Value  int32
	Str    string
	TimeMs int32
}

// Procedure names a multi-step system procedure.
type Procedure int

const (
	ProcReturnToMenu Procedure = iota
	ProcReturnToSel
	ProcEndGame
	ProcEndLoad
)

var procedureNames = [...]string{"return_to_menu", "return_to_sel", "end_game", "end_load"}

func (p Procedure) String() string {
	if int(p) < len(procedureNames) {
		return procedureNames[p]
	}
	return "procedure?"
}

// Step is one step of a procedure.
type Step int

const (
	StepDispOff Step = iota
	StepWipe
	StepFlushSave
	StepResetLocal
	StepJumpMenu
	StepRestoreSel
	StepEndSave
	StepLoadEndSave
	StepRestartTimer
	StepHalt
)

var stepNames = [...]string{
	"disp_off", "wipe", "flush_save", "reset_local", "jump_menu",
	"restore_sel", "end_save", "load_end_save", "restart_timer", "halt",
}

func (s Step) String() string {
	if int(s) < len(stepNames) {
		return stepNames[s]
	}
	return "step?"
}

// FlushPoint says why the VM asks the host to persist state.
type FlushPoint int

const (
	FlushReturnMenu FlushPoint = iota
	FlushEndGame
	FlushEndSave
)

var flushPointNames = [...]string{"return_menu", "end_game", "end_save"}

func (f FlushPoint) String() string {
	if int(f) < len(flushPointNames) {
		return flushPointNames[f]
	}
	return "flush?"
}

// ---------------------------------------------------------------------------
// NopHost
// ---------------------------------------------------------------------------

// NopHost ignores every effect, never interrupts and advances messages
// immediately. Embed it to implement only the callbacks you need.
type NopHost struct{}

func (NopHost) OnName(string) {}
func (NopHost) OnText(string, int32) {}
func (NopHost) OnCommand(*Command) Value { return Value{} }
func (NopHost) OnProperty(Address) (Value, bool) { return Value{}, false }
func (NopHost) OnAssign(Address, int32, Value) {}
func (NopHost) OnLocation(Location) {}
func (NopHost) OnMessageBack(MessageBackEvent) {}
func (NopHost) OnSetting(SettingEvent) {}
func (NopHost) OnAudio(AudioEvent) {}
func (NopHost) OnWipe(WipeEvent) {}
func (NopHost) OnScreen(ScreenEvent) {}
func (NopHost) OnObject(ObjectEvent) {}
func (NopHost) OnProcedure(Procedure, Step) {}
func (NopHost) OnSaveFlush(FlushPoint) {}
func (NopHost) ShouldInterrupt() bool { return false }
func (NopHost) ShouldSkipWait() bool { return false }
func (NopHost) PollAdvance() bool { return true }
func (NopHost) OnError(*ScriptError) {}
func (NopHost) OnFatal(error) {}
