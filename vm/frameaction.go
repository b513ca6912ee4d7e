package vm

import (
	"context"
	"time"

	"github.com/chazu/sigvm/scene"
)

// ---------------------------------------------------------------------------
// Frame actions: per-tick re-entrant command calls
// ---------------------------------------------------------------------------

// frameAction calls a user command once per tick until its end time. The
// command receives the frame action's own address as its first argument.
type frameAction struct {
	addr    Address
	prog    *scene.Program // scene the action was started from
	command string
	args    []Value
	endMs   int32 // < 0 runs until ended
	started time.Time
	counter int32
	active  bool
}

func (v *VM) findAction(addr Address) *frameAction {
	for _, fa := range v.actions {
		if fa.addr.Equal(addr) {
			return fa
		}
	}
	return nil
}

// startAction (re)starts the frame action at addr.
func (v *VM) startAction(addr Address, endMs int32, command string, args []Value) {
	fa := v.findAction(addr)
	if fa == nil {
		fa = &frameAction{addr: addr.Clone()}
		v.actions = append(v.actions, fa)
	}
	fa.prog = v.cursor.prog
	fa.command = command
	fa.args = args
	fa.endMs = endMs
	fa.started = v.clock.Now()
	fa.counter = 0
	fa.active = true
	log.Debugf("frame action %s start %q end=%dms", addr, command, endMs)
}

func (v *VM) endAction(addr Address) {
	if fa := v.findAction(addr); fa != nil {
		fa.active = false
	}
}

// actionCommand handles the sub-commands shared by every frame-action
// address: 0 start, 1 end, 2 is_active, 3 counter.
func (v *VM) actionCommand(cmd *Command, addr Address, sub int32) {
	switch sub {
	case 0:
		r := v.args(cmd)
		endMs := r.Int(0, -1)
		name := r.Str(1, "")
		if !r.ok() {
			return
		}
		v.startAction(addr, endMs, name, r.Rest(2))
	case 1:
		v.endAction(addr)
	case 2:
		fa := v.findAction(addr)
		v.resultBool(cmd, fa != nil && fa.active)
	case 3:
		var n int32
		if fa := v.findAction(addr); fa != nil {
			n = fa.counter
		}
		v.resultInt(cmd, n)
	default:
		v.scriptError(UnknownCommand, "frame action sub %d", sub)
	}
}

// Tick runs every active frame action once. The driver calls it while the
// script is idle; waits call it on every tick.
func (v *VM) Tick(ctx context.Context) error {
	if v.dead != nil || v.cursor.prog == nil {
		return v.dead
	}
	saved := v.ctx
	v.ctx = ctx
	defer func() {
		v.ctx = saved
		v.interruptPending = false
	}()
	return v.runFrameActions(ctx)
}

func (v *VM) runFrameActions(ctx context.Context) error {
	if v.inFrameAction > 0 || v.stopping || len(v.actions) == 0 {
		return nil
	}
	now := v.clock.Now()
	for _, fa := range append([]*frameAction(nil), v.actions...) {
		if !fa.active {
			continue
		}
		fa.counter = int32(now.Sub(fa.started) / time.Millisecond)
		last := fa.endMs >= 0 && fa.counter >= fa.endMs
		if last {
			fa.counter = fa.endMs
			fa.active = false
		}
		if _, err := v.invokeAction(ctx, fa.prog, fa.command, append([]Value{ElementValue(fa.addr)}, fa.args...)); err != nil {
			return err
		}
		if v.stopping {
			return nil
		}
	}
	return nil
}

// InvokeFrameAction calls the named user command as a frame action and
// runs until that call returns. The caller's position and call stack are
// left as they were.
func (v *VM) InvokeFrameAction(ctx context.Context, command string, args ...Value) (Status, error) {
	if v.dead != nil {
		return StatusFatal, v.dead
	}
	if v.cursor.prog == nil {
		return StatusHalted, ErrNotStarted
	}
	saved := v.ctx
	v.ctx = ctx
	defer func() {
		v.ctx = saved
		v.interruptPending = false
	}()
	return v.invokeAction(ctx, v.cursor.prog, command, args)
}

func (v *VM) invokeAction(ctx context.Context, from *scene.Program, command string, args []Value) (Status, error) {
	prog, offset, ok := v.lookupCommand(from, command)
	if !ok {
		v.scriptError(UnknownCommand, "frame action command %q", command)
		return StatusHalted, nil
	}
	depth := v.calls.Depth()
	ints, strs, groups := v.stack.Depth()
	retProg, retPC, retLine := v.cursor.prog, v.cursor.pc, v.cursor.line
	entered, err := v.callScene(prog, offset, args, scene.FormVoid, true)
	if err != nil {
		return StatusFatal, err
	}
	if !entered {
		return StatusHalted, nil
	}
	v.inFrameAction++
	st, err := v.runLoop(ctx, true)
	v.inFrameAction--
	if err != nil || st != StatusInterrupted {
		return st, err
	}
	// The rest of the action body is abandoned; the interrupted script
	// resumes where it called in.
	v.calls.Trim(depth)
	v.stack.truncate(ints, strs, groups)
	if err := v.cursor.Switch(retProg, retPC, retLine); err != nil {
		return StatusFatal, v.decodeError(err)
	}
	v.interruptPending = true
	return st, nil
}

// lookupCommand finds a user command by name: shared commands first, then
// the commands of the given scene.
func (v *VM) lookupCommand(from *scene.Program, name string) (*scene.Program, int, bool) {
	if id, ok := v.provider.IncludedCommandByName(name); ok {
		if inc, ok := v.provider.IncludedCommand(id); ok {
			prog, err := v.provider.Scene(inc.Scene)
			if err == nil {
				return prog, int(inc.Offset), true
			}
		}
	}
	if from != nil {
		if i, ok := from.CommandByName(name); ok {
			return from, int(from.Commands[i].Offset), true
		}
	}
	return nil, 0, false
}
