package vm

import "github.com/chazu/sigvm/scene"

// ---------------------------------------------------------------------------
// Tier 7: user commands and user/call property commands
// ---------------------------------------------------------------------------

// List property sub-commands: [prop, sub].
const (
	listGetSize int32 = 0
	listResize  int32 = 1
	listInit    int32 = 2
)

func dispatchUser(v *VM, cmd *Command) bool {
	head := cmd.Addr.Head()
	switch {
	case IsUserCmd(head):
		v.callUserCommand(cmd, IndexOf(head))
	case IsUserProp(head) || IsCallProp(head):
		v.propertyCommand(cmd)
	default:
		return false
	}
	return true
}

// callUserCommand enters user command id. Ids below the included command
// count name shared commands; the rest index the current scene's own
// commands. Arguments become pending and are bound by ARG.
func (v *VM) callUserCommand(cmd *Command, id int32) {
	count := int32(v.provider.IncludedCommandCount())
	var (
		prog   *scene.Program
		offset int
	)
	if id < count {
		inc, ok := v.provider.IncludedCommand(id)
		if !ok {
			v.scriptError(UnknownCommand, "included command %d", id)
			return
		}
		p, err := v.provider.Scene(inc.Scene)
		if err != nil {
			v.scriptError(SceneMissing, "command %s: %v", inc.Name, err)
			return
		}
		prog, offset = p, int(inc.Offset)
	} else {
		prog = v.cursor.prog
		local := id - count
		if int(local) >= len(prog.Commands) {
			v.scriptError(UnknownCommand, "scene command %d of %d in %s", local, len(prog.Commands), prog.Name)
			return
		}
		offset = int(prog.Commands[local].Offset)
	}

	args := make([]Value, len(cmd.Args))
	for i, a := range cmd.Args {
		args[i] = a.Value
	}
	entered, err := v.callScene(prog, offset, args, cmd.RetForm, false)
	if err != nil {
		v.fault = err
		return
	}
	if entered {
		cmd.done = true
	}
}

// propertyCommand applies the property convention to user and call
// properties. List properties also take get_size, resize and init.
func (v *VM) propertyCommand(cmd *Command) {
	addr := cmd.Addr
	if len(addr) == 2 && addr[1] != ElmArray {
		v.listCommand(cmd, v.propSlot(addr[0]), addr[1])
		return
	}
	if cmd.AL == 0 {
		v.result(cmd, v.GetProperty(addr))
		return
	}
	val, ok := v.args(cmd).value(0)
	if !ok {
		v.scriptError(ArgumentMismatch, "%s: missing value", addr)
		return
	}
	v.SetProperty(addr, cmd.AL, val)
}

func (v *VM) listCommand(cmd *Command, slot *Value, sub int32) {
	if slot == nil || !slot.Form.IsList() {
		v.scriptError(InvalidAddress, "list command on %s", cmd.Addr)
		return
	}
	size := func() int {
		if slot.Form == scene.FormIntList {
			return len(slot.Ints)
		}
		return len(slot.Strs)
	}
	switch sub {
	case listGetSize:
		v.resultInt(cmd, int32(size()))
	case listResize:
		r := v.args(cmd)
		n := r.Int(0, 0)
		if !r.ok() {
			return
		}
		if n < 0 {
			v.scriptError(IndexOutOfRange, "resize to %d", n)
			return
		}
		if slot.Form == scene.FormIntList {
			slot.Ints = resize(slot.Ints, int(n))
		} else {
			slot.Strs = resize(slot.Strs, int(n))
		}
	case listInit:
		clear(slot.Ints)
		clear(slot.Strs)
	default:
		v.scriptError(UnknownCommand, "list sub %d", sub)
	}
}

func resize[T any](s []T, n int) []T {
	if n <= len(s) {
		return s[:n:n]
	}
	out := make([]T, n)
	copy(out, s)
	return out
}
