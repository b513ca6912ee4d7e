package vm

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/chazu/sigvm/scene"
	"github.com/chazu/sigvm/vm/savestate"
)

// ---------------------------------------------------------------------------
// Capture
// ---------------------------------------------------------------------------

// captureLocal snapshots the continuation with the cursor at pc.
func (v *VM) captureLocal(pc int) *savestate.LocalState {
	ints, strs, marks := v.stack.snapshot()
	s := &savestate.LocalState{
		Persistent: *v.PersistentState(),
		Cursor: savestate.Cursor{
			Scene: v.cursor.SceneName(),
			PC:    int32(pc),
			Line:  v.cursor.line,
		},
		Title:         v.title,
		IntStack:      ints,
		StrStack:      strs,
		Marks:         marks,
		IncProps:      v.incProps.state(),
		Timers:        v.timerState(),
		FeatureEnable: slices.Clone(v.features.enable[:]),
		FeatureExist:  slices.Clone(v.features.exist[:]),
		Settings:      v.settings.state(),
	}
	for _, f := range v.calls.frames {
		s.Frames = append(s.Frames, frameState(f))
	}
	for _, key := range slices.Sorted(maps.Keys(v.sceneProps)) {
		s.SceneProps = append(s.SceneProps, savestate.SceneProps{Scene: key, Props: v.sceneProps[key].state()})
	}
	return s
}

func frameState(f *Frame) savestate.Frame {
	fs := savestate.Frame{
		ReturnPC:    int32(f.ReturnPC),
		ReturnLine:  f.ReturnLine,
		RetForm:     int32(f.RetForm),
		FrameAction: f.FrameAction,
		L:           slices.Clone(f.L[:]),
		K:           slices.Clone(f.K[:]),
	}
	if f.ReturnProg != nil {
		fs.ReturnScene = f.ReturnProg.Name
	}
	for _, p := range f.Props {
		fs.Props = append(fs.Props, savestate.Prop{ID: p.ID, Value: valueState(p.Value)})
	}
	for _, a := range f.pendingArgs {
		fs.PendingArgs = append(fs.PendingArgs, valueState(a))
	}
	return fs
}

// PersistentState returns the flag bank and point-existence flags.
func (v *VM) PersistentState() *savestate.PersistentState {
	return &savestate.PersistentState{
		Flags:           v.flags.state(),
		SavePointExists: v.savePoint != nil,
		SelPointExists:  v.selPoint != nil,
	}
}

// LocalState returns the live continuation at the current instruction
// boundary.
func (v *VM) LocalState() *savestate.LocalState {
	return v.captureLocal(v.cursor.pc)
}

// EndSaveState returns the cross-process continuation: the save point
// when there is one, the live state otherwise, plus the message history.
func (v *VM) EndSaveState() *savestate.EndSaveState {
	local := v.savePoint
	if local == nil {
		local = v.LocalState()
	}
	return &savestate.EndSaveState{
		Generation:  savestate.EndSaveGeneration,
		Local:       *local,
		HasExtended: true,
		Stamp:       stampOf(v.clock.Now()),
		History:     v.history.state(),
	}
}

func stampOf(t time.Time) savestate.Stamp {
	return savestate.Stamp{
		Year:        int32(t.Year()),
		Month:       int32(t.Month()),
		Day:         int32(t.Day()),
		Weekday:     int32(t.Weekday()),
		Hour:        int32(t.Hour()),
		Minute:      int32(t.Minute()),
		Second:      int32(t.Second()),
		Millisecond: int32(t.Nanosecond() / int(time.Millisecond)),
	}
}

// ---------------------------------------------------------------------------
// Restore
// ---------------------------------------------------------------------------

// RestorePersistent replaces the flag bank. Live save and selection
// points are kept.
func (v *VM) RestorePersistent(s *savestate.PersistentState) error {
	flags, err := flagBankFrom(s.Flags)
	if err != nil {
		return err
	}
	v.flags = flags
	return nil
}

// RestoreLocal replaces the whole continuation. Everything is rebuilt and
// checked against the scene provider first; on error the live state is
// untouched.
func (v *VM) RestoreLocal(s *savestate.LocalState) error {
	flags, err := flagBankFrom(s.Persistent.Flags)
	if err != nil {
		return err
	}
	var cur Cursor
	if err := v.switchSaved(&cur, s.Cursor); err != nil {
		return err
	}
	frames := make([]*Frame, 0, len(s.Frames))
	for i := range s.Frames {
		f, err := v.frameFrom(&s.Frames[i], i == 0)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		frames = append(frames, f)
	}
	if len(frames) == 0 {
		frames = append(frames, &Frame{})
	}
	if len(frames) > v.cfg.MaxCallDepth {
		return fmt.Errorf("%w: %d frames", ErrStateMismatch, len(frames))
	}
	stack := NewStack()
	if err := stack.restore(s.IntStack, s.StrStack, s.Marks); err != nil {
		return err
	}
	incProps, err := restorePropTable(v.provider.IncludedProps(), s.IncProps)
	if err != nil {
		return fmt.Errorf("included properties: %w", err)
	}
	sceneProps := make(map[string]*propTable, len(s.SceneProps))
	for _, sp := range s.SceneProps {
		prog, err := v.provider.Scene(sp.Scene)
		if err != nil {
			return err
		}
		t, err := restorePropTable(prog.Props, sp.Props)
		if err != nil {
			return fmt.Errorf("scene %s: %w", sp.Scene, err)
		}
		sceneProps[sceneKey(prog.Name)] = t
	}
	timers, err := timersFrom(v.clock.Now(), s.Timers)
	if err != nil {
		return err
	}
	features, err := featuresFrom(s.FeatureEnable, s.FeatureExist)
	if err != nil {
		return err
	}
	settings, err := settingsFrom(s.Settings, v.settings.skipMode)
	if err != nil {
		return err
	}

	v.flags = flags
	v.cursor = cur
	v.calls.frames = frames
	v.stack = stack
	v.incProps = incProps
	v.sceneProps = sceneProps
	v.timers = timers
	v.features = features
	v.settings = settings
	v.title = s.Title
	v.actions = nil
	v.speaker = ""
	v.savePoint = s
	if !s.Persistent.SelPointExists {
		v.selPoint = nil
	}
	v.dead = nil
	v.stopping = false
	v.scenePropsFor(cur.prog)
	log.Infof("restored %s:%d depth %d", cur.SceneName(), cur.pc, len(frames))
	v.notifyLocation()
	return nil
}

// RestoreEndSave restores an end-save of any generation. Generation 1
// carries only flags and a cursor and starts a fresh call stack there.
func (v *VM) RestoreEndSave(s *savestate.EndSaveState) error {
	if s.Generation == savestate.EndSaveGen1 {
		flags, err := flagBankFrom(s.Local.Persistent.Flags)
		if err != nil {
			return err
		}
		var cur Cursor
		if err := v.switchSaved(&cur, s.Local.Cursor); err != nil {
			return err
		}
		v.resetLocal()
		v.flags = flags
		v.cursor = cur
		v.title = cur.prog.Title
		v.scenePropsFor(cur.prog)
		v.notifyLocation()
	} else if err := v.RestoreLocal(&s.Local); err != nil {
		return err
	}
	if s.HasExtended {
		v.history.restore(s.History)
	}
	return nil
}

func (v *VM) switchSaved(cur *Cursor, c savestate.Cursor) error {
	prog, err := v.provider.Scene(c.Scene)
	if err != nil {
		return err
	}
	return cur.Switch(prog, int(c.PC), c.Line)
}

func (v *VM) frameFrom(fs *savestate.Frame, root bool) (*Frame, error) {
	if len(fs.L) > CallRegisterCount || len(fs.K) > CallRegisterCount {
		return nil, fmt.Errorf("%w: %d/%d call registers", ErrStateMismatch, len(fs.L), len(fs.K))
	}
	f := &Frame{
		ReturnPC:    int(fs.ReturnPC),
		ReturnLine:  fs.ReturnLine,
		RetForm:     scene.Form(fs.RetForm),
		FrameAction: fs.FrameAction,
	}
	copy(f.L[:], fs.L)
	copy(f.K[:], fs.K)
	if fs.ReturnScene != "" {
		prog, err := v.provider.Scene(fs.ReturnScene)
		if err != nil {
			return nil, err
		}
		if f.ReturnPC < 0 || f.ReturnPC > len(prog.Code) {
			return nil, fmt.Errorf("%w: return pc %d", ErrJumpOutOfRange, f.ReturnPC)
		}
		f.ReturnProg = prog
	} else if !root {
		return nil, fmt.Errorf("%w: frame without return scene", ErrStateMismatch)
	}
	for _, p := range fs.Props {
		val, err := valueFromState(p.Value)
		if err != nil {
			return nil, err
		}
		f.Props = append(f.Props, CallProp{ID: p.ID, Value: val})
	}
	for _, a := range fs.PendingArgs {
		val, err := valueFromState(a)
		if err != nil {
			return nil, err
		}
		f.pendingArgs = append(f.pendingArgs, val)
	}
	return f, nil
}
