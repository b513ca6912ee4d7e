package vm

import (
	"github.com/chazu/sigvm/scene"
)

// ---------------------------------------------------------------------------
// Tier 1: global flow and introspection
// ---------------------------------------------------------------------------

// MATH sub-commands: [ElmMath, sub].
const (
	mathRand  int32 = 0
	mathAbs   int32 = 1
	mathMin   int32 = 2
	mathMax   int32 = 3
	mathLimit int32 = 4
	mathSign  int32 = 5
)

func dispatchGlobal(v *VM, cmd *Command) bool {
	addr := cmd.Addr
	head := addr.Head()
	if !isGlobalHead(head) {
		return false
	}
	if v.isFlagAddress(addr) || (head == ElmCall && len(addr) == 4) {
		v.variableCommand(cmd)
		return true
	}
	switch head {
	case ElmJump:
		r := v.args(cmd)
		name := r.Str(0, "")
		z := r.Int(1, 0)
		if r.ok() {
			v.jump(name, z)
		}
	case ElmFarcall:
		v.farcall(cmd)
	case ElmCallDepth:
		v.intProperty(cmd, func() int32 { return int32(v.calls.Depth()) }, v.trimCalls)
	case ElmSceneName:
		v.resultStr(cmd, v.cursor.SceneName())
	case ElmTitle:
		v.strProperty(cmd, func() string { return v.title }, func(s string) {
			v.title = s
			v.notifyLocation()
		})
	case ElmLineNo:
		v.resultInt(cmd, v.cursor.line)
	case ElmEnd:
		log.Infof("end at %s:%d", v.cursor.SceneName(), v.instrPC)
		v.stop(StatusEnded)
	case ElmReturnMenu:
		if v.runProcedure(ProcReturnToMenu) {
			cmd.done = true
		}
	case ElmWait:
		r := v.args(cmd)
		ms := r.Int(0, 0)
		skippable := r.Bool(1, true)
		if r.ok() {
			v.fault = v.timedWait(ms, skippable)
		}
	case ElmWaitKey:
		v.fault = v.keyWait()
	case ElmTimer:
		v.timerCommand(cmd)
	case ElmMath:
		v.mathCommand(cmd)
	case ElmWipe:
		r := v.args(cmd)
		kind := r.Int(0, 0)
		ms := r.Int(1, 0)
		wait := r.Bool(2, true)
		if r.ok() {
			v.fault = v.wipe(kind, ms, wait)
		}
	case ElmFrameAction:
		v.actionCommand(cmd, Address{ElmFrameAction}, cmd.Sub(1))
	case ElmFrameActionCh:
		idx, ok := addr.Index(1)
		if !ok || len(addr) < 4 {
			v.scriptError(InvalidAddress, "frame action channel %s", addr)
			return true
		}
		v.actionCommand(cmd, Address{ElmFrameActionCh, ElmArray, idx}, addr[3])
	default:
		return false
	}
	return true
}

// variableCommand applies the property convention to a flag or call
// register addressed through COMMAND.
func (v *VM) variableCommand(cmd *Command) {
	if cmd.AL == 0 {
		v.result(cmd, v.GetProperty(cmd.Addr))
		return
	}
	r := v.args(cmd)
	val, ok := r.value(0)
	if !ok {
		v.scriptError(ArgumentMismatch, "%s: missing value", cmd.Addr)
		return
	}
	v.SetProperty(cmd.Addr, cmd.AL, val)
}

// trimCalls drops calls until n frames remain and resumes where the
// outermost dropped call would have returned to, with a zero result.
func (v *VM) trimCalls(n int32) {
	if n < 1 || int(n) >= v.calls.Depth() {
		return
	}
	if v.inFrameAction > 0 {
		v.scriptError(UnsupportedCommand, "call depth change inside a frame action")
		return
	}
	f := v.calls.Trim(int(n))
	log.Debugf("call depth %d at %s:%d", n, v.cursor.SceneName(), v.instrPC)
	if err := v.returnFrom(f, nil); err != nil {
		v.fault = err
	}
}

// jump replaces the continuation with z-label z of the named scene: the
// call stack returns to its root, the stack empties and the scene's
// properties start over.
func (v *VM) jump(name string, z int32) {
	if v.inFrameAction > 0 {
		v.scriptError(UnsupportedCommand, "jump inside a frame action")
		return
	}
	prog, ok := v.sceneEntry(name, z)
	if !ok {
		return
	}
	log.Debugf("jump %s z%d from %s:%d", prog.Name, z, v.cursor.SceneName(), v.instrPC)
	v.stack.Reset()
	v.calls.Reset()
	if err := v.enterScene(prog, z); err != nil {
		v.fault = err
	}
}

// farcall calls z-label z of another scene; its return value is the
// command's result.
func (v *VM) farcall(cmd *Command) {
	r := v.args(cmd)
	name := r.Str(0, "")
	z := r.Int(1, 0)
	args := r.Rest(2)
	if !r.ok() {
		return
	}
	prog, ok := v.sceneEntry(name, z)
	if !ok {
		return
	}
	offset := 0
	if len(prog.ZLabels) > 0 {
		offset = int(prog.ZLabels[z])
	}
	entered, err := v.callScene(prog, offset, args, cmd.RetForm, false)
	if err != nil {
		v.fault = err
		return
	}
	if entered {
		cmd.done = true
		v.notifyLocation()
	}
}

// sceneEntry looks up a scene and checks z-label z exists. Scenes without
// z-labels only accept z 0.
func (v *VM) sceneEntry(name string, z int32) (*scene.Program, bool) {
	prog, err := v.provider.Scene(name)
	if err != nil {
		v.scriptError(SceneMissing, "%s: %v", name, err)
		return nil, false
	}
	if len(prog.ZLabels) == 0 {
		if z != 0 {
			v.scriptError(SceneMissing, "%s has no z-label %d", prog.Name, z)
			return nil, false
		}
		return prog, true
	}
	if z < 0 || int(z) >= len(prog.ZLabels) {
		v.scriptError(SceneMissing, "%s has no z-label %d", prog.Name, z)
		return nil, false
	}
	return prog, true
}

func (v *VM) mathCommand(cmd *Command) {
	r := v.args(cmd)
	switch cmd.Sub(1) {
	case mathRand:
		lo, hi := r.Int(0, 0), r.Int(1, 0)
		if !r.ok() {
			return
		}
		if hi < lo {
			lo, hi = hi, lo
		}
		v.resultInt(cmd, int32(int64(lo)+v.rng.Int64N(int64(hi)-int64(lo)+1)))
	case mathAbs:
		n := r.Int(0, 0)
		if n < 0 {
			n = -n
		}
		v.resultInt(cmd, n)
	case mathMin:
		v.resultInt(cmd, min(r.Int(0, 0), r.Int(1, 0)))
	case mathMax:
		v.resultInt(cmd, max(r.Int(0, 0), r.Int(1, 0)))
	case mathLimit:
		lo, n, hi := r.Int(0, 0), r.Int(1, 0), r.Int(2, 0)
		v.resultInt(cmd, max(lo, min(n, hi)))
	case mathSign:
		n := r.Int(0, 0)
		switch {
		case n > 0:
			v.resultInt(cmd, 1)
		case n < 0:
			v.resultInt(cmd, -1)
		default:
			v.resultInt(cmd, 0)
		}
	default:
		v.scriptError(UnknownCommand, "math sub %d", cmd.Sub(1))
	}
}
