package vm

import "github.com/chazu/sigvm/scene"

// ---------------------------------------------------------------------------
// Command: one decoded COMMAND instruction
// ---------------------------------------------------------------------------

// Positional marks an argument without a name id.
const Positional int32 = -1

// Arg is one command argument. Named arguments carry the id of the
// positional slot they override.
type Arg struct {
	ID    int32
	Value Value
}

// Command is a dispatched command: the resolved address, the access-list
// id, the arguments and the form of the value the script expects back.
type Command struct {
	Addr    Address
	AL      int32
	Args    []Arg
	RetForm scene.Form

	Scene string
	PC    int
	Line  int32

	// set once a result is on the stack or the callee will produce one
	done bool
}

// Positional returns the positional arguments in order.
func (c *Command) Positional() []Value {
	var out []Value
	for _, a := range c.Args {
		if a.ID == Positional {
			out = append(out, a.Value)
		}
	}
	return out
}

// Named returns the last argument named id.
func (c *Command) Named(id int32) (Value, bool) {
	for i := len(c.Args) - 1; i >= 0; i-- {
		if c.Args[i].ID == id {
			return c.Args[i].Value, true
		}
	}
	return Value{}, false
}

// Sub returns addr[i], or -1 past the end.
func (c *Command) Sub(i int) int32 {
	if i < 0 || i >= len(c.Addr) {
		return -1
	}
	return c.Addr[i]
}

// ---------------------------------------------------------------------------
// argReader: positional-then-named argument access
// ---------------------------------------------------------------------------

// argReader reads command arguments. A named argument with id N overrides
// positional slot N. A present argument of the wrong type is reported
// once and marks the reader failed; handlers check ok() before applying
// an effect.
type argReader struct {
	v   *VM
	cmd *Command
	pos []Value
	bad bool
}

func (v *VM) args(cmd *Command) *argReader {
	return &argReader{v: v, cmd: cmd, pos: cmd.Positional()}
}

func (r *argReader) value(i int) (Value, bool) {
	if nv, ok := r.cmd.Named(int32(i)); ok {
		return nv, true
	}
	if i >= 0 && i < len(r.pos) {
		return r.pos[i], true
	}
	return Value{}, false
}

func (r *argReader) mismatch(i int, want scene.Form, got Value) {
	if !r.bad {
		r.v.scriptError(ArgumentMismatch, "%s argument %d: want %s, got %s", r.cmd.Addr, i, want, got.Form)
	}
	r.bad = true
}

// Has reports whether argument i was supplied.
func (r *argReader) Has(i int) bool {
	_, ok := r.value(i)
	return ok
}

func (r *argReader) Int(i int, def int32) int32 {
	val, ok := r.value(i)
	if !ok {
		return def
	}
	if !val.IsInt() {
		r.mismatch(i, scene.FormInt, val)
		return def
	}
	return val.Int
}

func (r *argReader) Str(i int, def string) string {
	val, ok := r.value(i)
	if !ok {
		return def
	}
	if val.Form != scene.FormStr {
		r.mismatch(i, scene.FormStr, val)
		return def
	}
	return val.Str
}

func (r *argReader) Bool(i int, def bool) bool {
	return r.Int(i, b2i(def)) != 0
}

// Rest returns the positional arguments from i on.
func (r *argReader) Rest(i int) []Value {
	if i >= len(r.pos) {
		return nil
	}
	out := make([]Value, len(r.pos)-i)
	copy(out, r.pos[i:])
	return out
}

func (r *argReader) ok() bool {
	return !r.bad
}

// ---------------------------------------------------------------------------
// Dispatch chain
// ---------------------------------------------------------------------------

// commandHandler claims a command by returning true.
type commandHandler func(v *VM, cmd *Command) bool

// dispatchChain is tried in order; later tiers rely on earlier tiers
// having rejected the address. Handlers reach Dispatch again through
// waits, so the chain is filled in init.
var dispatchChain []commandHandler

func init() {
	dispatchChain = []commandHandler{
		dispatchGlobal,
		dispatchScript,
		dispatchSyscom,
		dispatchAudio,
		dispatchScreen,
		dispatchObject,
		dispatchUser,
	}
}

// Dispatch routes a command through the tiers and, failing those, to the
// host. Exactly one value of cmd.RetForm ends up on the stack unless a
// call was entered that will produce it on return.
func (v *VM) Dispatch(cmd *Command) {
	cmd.Addr = v.Resolve(cmd.Addr)
	log.Debugf("command %s al=%d args=%d ret=%s", cmd.Addr, cmd.AL, len(cmd.Args), cmd.RetForm)
	handled := false
	for _, h := range dispatchChain {
		if h(v, cmd) {
			handled = true
			break
		}
	}
	if !handled {
		v.result(cmd, v.host.OnCommand(cmd))
	}
	if !cmd.done && cmd.RetForm != scene.FormVoid {
		v.stack.Push(ZeroValue(cmd.RetForm))
	}
}

// result pushes a command result coerced to the expected form.
func (v *VM) result(cmd *Command, val Value) {
	if cmd.done {
		return
	}
	cmd.done = true
	if cmd.RetForm == scene.FormVoid {
		return
	}
	v.stack.Push(val.Coerce(cmd.RetForm))
}

func (v *VM) resultInt(cmd *Command, n int32) { v.result(cmd, IntValue(n)) }

func (v *VM) resultStr(cmd *Command, s string) { v.result(cmd, StrValue(s)) }

func (v *VM) resultBool(cmd *Command, b bool) { v.result(cmd, BoolValue(b)) }

// ---------------------------------------------------------------------------
// Property-style commands
// ---------------------------------------------------------------------------

// intProperty implements the property convention: access-list id 0 pushes
// the current value, any other id applies the first argument.
func (v *VM) intProperty(cmd *Command, get func() int32, set func(int32)) {
	if cmd.AL == 0 || set == nil {
		v.resultInt(cmd, get())
		return
	}
	r := v.args(cmd)
	n := r.Int(0, get())
	if r.ok() {
		set(n)
	}
}

func (v *VM) strProperty(cmd *Command, get func() string, set func(string)) {
	if cmd.AL == 0 || set == nil {
		v.resultStr(cmd, get())
		return
	}
	r := v.args(cmd)
	s := r.Str(0, get())
	if r.ok() {
		set(s)
	}
}

func (v *VM) boolProperty(cmd *Command, p *bool) {
	v.intProperty(cmd, func() int32 { return b2i(*p) }, func(n int32) { *p = n != 0 })
}
