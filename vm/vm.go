// Package vm executes decoded scene bytecode. A VM owns the cursor, the
// execution stack, the call stack, the flag bank and every piece of
// subsystem state the built-in commands manipulate; effects it cannot
// resolve itself go to a Host.
package vm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/chazu/sigvm/scene"
	"github.com/chazu/sigvm/vm/savestate"
	"github.com/tliron/commonlog"
	"golang.org/x/text/cases"
)

var log = commonlog.GetLogger("sigvm.vm")

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status says why Run returned.
type Status int

const (
	StatusHalted      Status = iota // returned past the root frame
	StatusEnded                     // END command
	StatusInterrupted               // context done or host asked to stop
	StatusFrameAction               // a frame-action call returned
	StatusFatal                     // decode error or fatal marker
	StatusReturnMenu                // return-to-menu with no menu scene
	StatusEndGame                   // end-game procedure finished
)

var statusNames = [...]string{"halted", "ended", "interrupted", "frame-action", "fatal", "return-menu", "end-game"}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ---------------------------------------------------------------------------
// Clock
// ---------------------------------------------------------------------------

// Clock is the time source for waits, timers and events.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds the tunables of a VM.
type Config struct {
	MaxCallDepth   int
	TickInterval   time.Duration
	MessageHistory int

	MenuScene string
	MenuZ     int32

	StandardSlots int
	QuickSlots    int
	InnerSlots    int
	EndSlots      int

	Clock Clock
	Seed  uint64
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		MaxCallDepth:   1024,
		TickInterval:   16 * time.Millisecond,
		MessageHistory: 256,
		StandardSlots:  100,
		QuickSlots:     10,
		InnerSlots:     10,
		EndSlots:       10,
	}
}

func (c *Config) fill() {
	d := DefaultConfig()
	if c.MaxCallDepth <= 0 {
		c.MaxCallDepth = d.MaxCallDepth
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.MessageHistory <= 0 {
		c.MessageHistory = d.MessageHistory
	}
	if c.StandardSlots <= 0 {
		c.StandardSlots = d.StandardSlots
	}
	if c.QuickSlots <= 0 {
		c.QuickSlots = d.QuickSlots
	}
	if c.InnerSlots <= 0 {
		c.InnerSlots = d.InnerSlots
	}
	if c.EndSlots <= 0 {
		c.EndSlots = d.EndSlots
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
}

// ---------------------------------------------------------------------------
// VM
// ---------------------------------------------------------------------------

// VM is one script execution. It is not safe for concurrent use: run it
// on a single goroutine and talk to it through the Host.
type VM struct {
	provider scene.Provider
	host     Host
	cfg      Config
	clock    Clock
	rng      *rand.Rand
	fold     cases.Caser // caseless string comparison

	cursor     Cursor
	stack      *Stack
	calls      *CallStack
	flags      *FlagBank
	incProps   *propTable
	sceneProps map[string]*propTable
	title      string

	settings scriptSettings
	history  *history
	features featureFlags
	timers   [TimerCount]timer
	actions  []*frameAction
	audio    audioState
	screen   screenState
	objects  map[objectKey]*object
	slots    [slotKindCount]*SlotMap

	savePoint   *savestate.LocalState
	selPoint    *savestate.LocalState
	endSave     *savestate.EndSaveState
	speaker     string
	lastMessage string

	ctx           context.Context
	instrPC       int
	stopping      bool
	stopStatus    Status
	inFrameAction int
	fault         error // decode error raised inside a command
	dead          error

	// interruptPending carries an interrupt seen by a frame-action sub-run
	// out to the enclosing wait and run loop.
	interruptPending bool
}

// New creates a VM. Call Start before Run.
func New(provider scene.Provider, host Host, cfg Config) *VM {
	cfg.fill()
	if host == nil {
		host = NopHost{}
	}
	v := &VM{
		provider: provider,
		host:     host,
		cfg:      cfg,
		clock:    cfg.Clock,
		rng:      rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9E3779B97F4A7C15)),
		fold:     cases.Fold(),
		stack:    NewStack(),
		calls:    NewCallStack(cfg.MaxCallDepth),
		flags:    &FlagBank{},
		history:  newHistory(cfg.MessageHistory),
		objects:  make(map[objectKey]*object),
	}
	v.incProps = newPropTable(provider.IncludedProps())
	v.sceneProps = make(map[string]*propTable)
	v.settings = defaultSettings()
	v.features = defaultFeatures()
	v.audio = newAudioState()
	v.screen = newScreenState()
	v.slots[SlotStandard] = NewSlotMap(SlotStandard, cfg.StandardSlots)
	v.slots[SlotQuick] = NewSlotMap(SlotQuick, cfg.QuickSlots)
	v.slots[SlotInner] = NewSlotMap(SlotInner, cfg.InnerSlots)
	v.slots[SlotEnd] = NewSlotMap(SlotEnd, cfg.EndSlots)
	return v
}

// Start resets the continuation and positions the cursor at z-label z of
// the named scene. Persistent flags and slots survive.
func (v *VM) Start(name string, z int32) error {
	prog, err := v.provider.Scene(name)
	if err != nil {
		return err
	}
	v.resetLocal()
	if err := v.enterScene(prog, z); err != nil {
		return err
	}
	log.Infof("start %s z%d", prog.Name, z)
	return nil
}

// resetLocal clears everything that belongs to one play-through.
func (v *VM) resetLocal() {
	v.stack.Reset()
	v.calls.Reset()
	v.incProps = newPropTable(v.provider.IncludedProps())
	v.sceneProps = make(map[string]*propTable)
	v.actions = nil
	v.savePoint = nil
	v.speaker = ""
	v.dead = nil
	v.stopping = false
	v.interruptPending = false
}

// enterScene switches to prog at z-label z with freshly initialised scene
// properties.
func (v *VM) enterScene(prog *scene.Program, z int32) error {
	v.sceneProps[sceneKey(prog.Name)] = newPropTable(prog.Props)
	if err := v.cursor.Switch(prog, 0, 0); err != nil {
		return err
	}
	if z != 0 || len(prog.ZLabels) > 0 {
		if err := v.cursor.JumpToZLabel(z); err != nil {
			return v.decodeError(err)
		}
	}
	v.title = prog.Title
	v.notifyLocation()
	return nil
}

func sceneKey(name string) string {
	return strings.ToLower(name)
}

// scenePropsFor returns the property table of prog, creating it on first
// entry.
func (v *VM) scenePropsFor(prog *scene.Program) *propTable {
	if prog == nil {
		return nil
	}
	key := sceneKey(prog.Name)
	t, ok := v.sceneProps[key]
	if !ok {
		t = newPropTable(prog.Props)
		v.sceneProps[key] = t
	}
	return t
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

func (v *VM) Cursor() *Cursor { return &v.cursor }
func (v *VM) Stack() *Stack { return v.stack }
func (v *VM) Calls() *CallStack { return v.calls }
func (v *VM) Flags() *FlagBank { return v.flags }
func (v *VM) Title() string { return v.title }
func (v *VM) Config() Config { return v.cfg }
func (v *VM) History() []HistoryEntry { return v.history.entries() }

// Slots returns the slot map of a kind.
func (v *VM) Slots(kind SlotKind) *SlotMap {
	if kind < 0 || kind >= slotKindCount {
		return nil
	}
	return v.slots[kind]
}

// SetEndSave installs the end-save state the end-load procedure restores.
func (v *VM) SetEndSave(s *savestate.EndSaveState) { v.endSave = s }

// PendingEndSave returns the end-save state captured by the last end-game
// procedure, if any.
func (v *VM) PendingEndSave() *savestate.EndSaveState { return v.endSave }

func (v *VM) notifyLocation() {
	v.host.OnLocation(Location{Scene: v.cursor.SceneName(), Title: v.title, Line: v.cursor.line})
}

// ---------------------------------------------------------------------------
// Error reporting
// ---------------------------------------------------------------------------

func (v *VM) decodeError(err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Scene: v.cursor.SceneName(), PC: v.instrPC, Line: v.cursor.line, Err: err}
}

// scriptError reports a recoverable error to the host.
func (v *VM) scriptError(kind ErrorKind, format string, args ...any) {
	err := &ScriptError{
		Kind:    kind,
		Scene:   v.cursor.SceneName(),
		PC:      v.instrPC,
		Line:    v.cursor.line,
		Message: fmt.Sprintf(format, args...),
	}
	log.Warningf("%s", err)
	v.host.OnError(err)
}

// takeFault returns and clears the error a command left behind.
func (v *VM) takeFault() error {
	err := v.fault
	v.fault = nil
	return err
}

// stop ends the current run loop after the instruction completes.
func (v *VM) stop(s Status) {
	v.stopping = true
	v.stopStatus = s
}

func (v *VM) interrupted(ctx context.Context) bool {
	if v.interruptPending {
		return true
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	return v.host.ShouldInterrupt()
}

// skipping reports whether skippable waits should end now.
func (v *VM) skipping() bool {
	if v.host.ShouldSkipWait() {
		return true
	}
	return v.settings.skipMode && !v.settings.skipDisable
}
