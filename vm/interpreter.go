package vm

import (
	"context"
	"fmt"

	"github.com/chazu/sigvm/scene"
)

// ---------------------------------------------------------------------------
// Run loop
// ---------------------------------------------------------------------------

// Run executes instructions until the script stops, the context is done or
// the host asks to interrupt. Interruption is checked before every
// instruction; an instruction always runs to completion. Decode errors and
// fatal markers are reported to the host and returned, and the VM then
// refuses to run until restarted or restored.
func (v *VM) Run(ctx context.Context) (Status, error) {
	if v.dead != nil {
		return StatusFatal, v.dead
	}
	if v.cursor.prog == nil {
		return StatusHalted, ErrNotStarted
	}
	v.ctx = ctx
	defer func() { v.ctx = nil }()
	return v.runLoop(ctx, false)
}

// runLoop is shared by Run and by frame-action sub-runs. A sub-run returns
// when its frame-action frame pops; any other stop also ends the outer
// loop, so the stop flag is left set for it.
func (v *VM) runLoop(ctx context.Context, sub bool) (Status, error) {
	for {
		if v.stopping {
			st := v.stopStatus
			if !sub || st == StatusFrameAction {
				v.stopping = false
			}
			return st, nil
		}
		if v.interrupted(ctx) {
			if !sub {
				v.interruptPending = false
			}
			return StatusInterrupted, nil
		}
		if err := v.step(ctx); err != nil {
			if v.dead == nil {
				v.dead = err
				log.Errorf("%s", err)
				v.host.OnFatal(err)
			}
			return StatusFatal, err
		}
	}
}

// ---------------------------------------------------------------------------
// Instruction execution
// ---------------------------------------------------------------------------

func (v *VM) step(ctx context.Context) error {
	v.instrPC = v.cursor.pc
	b, err := v.cursor.ReadByte()
	if err != nil {
		return v.decodeError(err)
	}
	op := scene.Opcode(b)

	switch op {
	case scene.OpNone, scene.OpEOF:
		return &FatalError{
			Scene:  v.cursor.SceneName(),
			PC:     v.instrPC,
			Line:   v.cursor.line,
			Reason: fmt.Sprintf("reached %s marker", op),
		}

	case scene.OpLine:
		line, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		if line != v.cursor.line {
			v.cursor.line = line
			v.notifyLocation()
		}

	case scene.OpPush:
		form, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		val, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		switch scene.Form(form) {
		case scene.FormInt, scene.FormLabel:
			v.stack.PushInt(val)
		case scene.FormStr:
			s, err := v.cursor.ReadString(val)
			if err != nil {
				return v.decodeError(err)
			}
			v.stack.PushStr(s)
		default:
			return v.decodeError(fmt.Errorf("PUSH of form %s", scene.Form(form)))
		}

	case scene.OpPop:
		form, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		v.stack.Pop(scene.Form(form))

	case scene.OpCopy:
		form, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		v.stack.CopyTop(scene.Form(form))

	case scene.OpProperty:
		addr := v.stack.PopGroup()
		v.stack.Push(v.GetProperty(addr))

	case scene.OpCopyElm:
		v.stack.CopyGroup()

	case scene.OpDecProp:
		form, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		id, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		var size int32
		if scene.Form(form).IsList() {
			size = v.stack.PopInt()
		}
		v.calls.Current().declareProp(id, scene.Form(form), size)

	case scene.OpElmPoint:
		v.stack.Mark()

	case scene.OpArg:
		v.bindPendingArgs()

	case scene.OpGoto, scene.OpGotoTrue, scene.OpGotoFalse:
		label, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		jump := true
		if op == scene.OpGotoTrue {
			jump = v.stack.PopInt() != 0
		} else if op == scene.OpGotoFalse {
			jump = v.stack.PopInt() == 0
		}
		if jump {
			if err := v.cursor.JumpToLabel(label); err != nil {
				return v.decodeError(err)
			}
		}

	case scene.OpGosub, scene.OpGosubStr:
		label, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		forms, err := v.cursor.readForms()
		if err != nil {
			return v.decodeError(err)
		}
		ret := scene.FormInt
		if op == scene.OpGosubStr {
			ret = scene.FormStr
		}
		return v.gosub(label, v.popArgs(forms), ret)

	case scene.OpReturn:
		forms, err := v.cursor.readForms()
		if err != nil {
			return v.decodeError(err)
		}
		return v.ret(v.popArgs(forms))

	case scene.OpAssign:
		// the target slot decides the stored form
		if _, err := v.cursor.ReadInt32(); err != nil {
			return v.decodeError(err)
		}
		right, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		al, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		val := v.stack.Pop(scene.Form(right))
		addr := v.stack.PopGroup()
		v.SetProperty(addr, al, val)

	case scene.OpOperate1:
		form, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		o, err := v.cursor.ReadByte()
		if err != nil {
			return v.decodeError(err)
		}
		v.operate1(scene.Form(form), scene.Operator(o))

	case scene.OpOperate2:
		left, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		right, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		o, err := v.cursor.ReadByte()
		if err != nil {
			return v.decodeError(err)
		}
		v.operate2(scene.Form(left), scene.Form(right), scene.Operator(o))

	case scene.OpCommand:
		cmd, err := v.readCommand()
		if err != nil {
			return v.decodeError(err)
		}
		v.Dispatch(cmd)
		return v.takeFault()

	case scene.OpText:
		readFlag, err := v.cursor.ReadInt32()
		if err != nil {
			return v.decodeError(err)
		}
		v.savePoint = v.captureLocal(v.instrPC)
		return v.text(ctx, v.stack.PopStr(), readFlag)

	case scene.OpName:
		v.speaker = v.stack.PopStr()
		v.host.OnName(v.speaker)

	case scene.OpSelBlockStart:
		v.selPoint = v.captureLocal(v.instrPC)

	case scene.OpSelBlockEnd:

	default:
		return v.decodeError(fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, b))
	}
	return nil
}

// readCommand decodes COMMAND operands and pops its arguments and
// address. The last named-count arguments carry the listed ids.
func (v *VM) readCommand() (*Command, error) {
	al, err := v.cursor.ReadInt32()
	if err != nil {
		return nil, err
	}
	forms, err := v.cursor.readForms()
	if err != nil {
		return nil, err
	}
	namedc, err := v.cursor.ReadInt32()
	if err != nil {
		return nil, err
	}
	if namedc < 0 || int(namedc) > len(forms) {
		return nil, fmt.Errorf("%w: named count %d of %d arguments", ErrTruncated, namedc, len(forms))
	}
	ids := make([]int32, namedc)
	for i := range ids {
		if ids[i], err = v.cursor.ReadInt32(); err != nil {
			return nil, err
		}
	}
	ret, err := v.cursor.ReadInt32()
	if err != nil {
		return nil, err
	}

	vals := v.popArgs(forms)
	cmd := &Command{
		AL:      al,
		Args:    make([]Arg, len(vals)),
		RetForm: scene.Form(ret),
		Scene:   v.cursor.SceneName(),
		PC:      v.instrPC,
		Line:    v.cursor.line,
	}
	firstNamed := len(vals) - int(namedc)
	for i, val := range vals {
		cmd.Args[i] = Arg{ID: Positional, Value: val}
		if i >= firstNamed {
			cmd.Args[i].ID = ids[i-firstNamed]
		}
	}
	cmd.Addr = v.stack.PopGroup()
	return cmd, nil
}

// popArgs pops values of the given forms; the last form is on top.
func (v *VM) popArgs(forms []scene.Form) []Value {
	if len(forms) == 0 {
		return nil
	}
	vals := make([]Value, len(forms))
	for i := len(forms) - 1; i >= 0; i-- {
		vals[i] = v.stack.Pop(forms[i])
	}
	return vals
}

// ---------------------------------------------------------------------------
// Calls and returns
// ---------------------------------------------------------------------------

// pushCall enters a new frame that returns to the current position.
func (v *VM) pushCall(args []Value, ret scene.Form, frameAction bool) (*Frame, bool) {
	f := &Frame{
		ReturnProg:  v.cursor.prog,
		ReturnPC:    v.cursor.pc,
		ReturnLine:  v.cursor.line,
		RetForm:     ret,
		FrameAction: frameAction,
		pendingArgs: args,
	}
	f.bindRegisters(args)
	if !v.calls.Push(f) {
		v.scriptError(CallDepthExceeded, "depth %d", v.calls.Depth())
		return nil, false
	}
	log.Debugf("call depth %d from %s:%d", v.calls.Depth(), v.cursor.SceneName(), v.cursor.pc)
	return f, true
}

func (v *VM) gosub(label int32, args []Value, ret scene.Form) error {
	if _, ok := v.pushCall(args, ret, false); !ok {
		v.stack.Push(ZeroValue(ret))
		return nil
	}
	if err := v.cursor.JumpToLabel(label); err != nil {
		return v.decodeError(err)
	}
	return nil
}

// ret pops the current frame, resumes the caller and pushes the first
// returned value coerced to the form the caller expects. Returning from
// the root frame halts; returning from a frame-action frame stops the
// loop right after the restore.
func (v *VM) ret(vals []Value) error {
	f, ok := v.calls.Pop()
	if !ok {
		v.stop(StatusHalted)
		return nil
	}
	return v.returnFrom(f, vals)
}

// returnFrom resumes at the return target of the popped frame f.
func (v *VM) returnFrom(f *Frame, vals []Value) error {
	if err := v.cursor.Switch(f.ReturnProg, f.ReturnPC, f.ReturnLine); err != nil {
		return v.decodeError(err)
	}
	if f.RetForm != scene.FormVoid {
		var val Value
		if len(vals) > 0 {
			val = vals[0]
		}
		v.stack.Push(val.Coerce(f.RetForm))
	}
	log.Debugf("return to %s:%d depth %d", v.cursor.SceneName(), v.cursor.pc, v.calls.Depth())
	if f.FrameAction {
		v.stop(StatusFrameAction)
	}
	return nil
}

// bindPendingArgs copies user-command arguments into the call properties
// declared so far, in declaration order.
func (v *VM) bindPendingArgs() {
	f := v.calls.Current()
	for i, a := range f.pendingArgs {
		if i >= len(f.Props) {
			break
		}
		p := &f.Props[i]
		if a.Form == scene.FormLabel {
			a.Form = scene.FormInt
		}
		if a.Form != p.Value.Form {
			v.scriptError(ArgumentMismatch, "argument %d: %s for %s property", i, a.Form, p.Value.Form)
			continue
		}
		p.Value = a.Clone()
	}
	f.pendingArgs = nil
}

// callScene enters prog at offset with a new frame. It reports false when
// the call depth limit rejected the call.
func (v *VM) callScene(prog *scene.Program, offset int, args []Value, ret scene.Form, frameAction bool) (bool, error) {
	if _, ok := v.pushCall(args, ret, frameAction); !ok {
		return false, nil
	}
	v.scenePropsFor(prog)
	if err := v.cursor.Switch(prog, offset, v.cursor.line); err != nil {
		return true, v.decodeError(err)
	}
	return true, nil
}
