package vm

import "github.com/chazu/sigvm/scene"

// MaxAliasHops bounds how many stored element references Resolve follows.
const MaxAliasHops = 4

// ---------------------------------------------------------------------------
// Alias resolution
// ---------------------------------------------------------------------------

// Resolve follows element references stored in user and call properties.
// Each hop replaces the property head with the stored address and keeps
// the rest of the path. Resolution stops after MaxAliasHops hops, so a
// cyclic chain yields a well-defined but unresolved address.
func (v *VM) Resolve(addr Address) Address {
	for hop := 0; hop < MaxAliasHops; hop++ {
		slot := v.propSlot(addr.Head())
		if slot == nil || slot.Form != scene.FormElement || len(slot.Elm) == 0 {
			break
		}
		next := make(Address, 0, len(slot.Elm)+len(addr)-1)
		next = append(next, slot.Elm...)
		next = append(next, addr[1:]...)
		addr = next
	}
	return addr
}

// propSlot returns the user or call property a head names, if any.
func (v *VM) propSlot(head int32) *Value {
	switch {
	case IsUserProp(head):
		return v.userPropSlot(IndexOf(head))
	case IsCallProp(head):
		return v.callPropSlot(IndexOf(head))
	}
	return nil
}

// userPropSlot maps a user property index: included properties come
// first, then the properties of the current scene.
func (v *VM) userPropSlot(i int32) *Value {
	n := int32(v.incProps.len())
	if i < n {
		return v.incProps.slot(i)
	}
	return v.scenePropsFor(v.cursor.prog).slot(i - n)
}

func (v *VM) callPropSlot(i int32) *Value {
	f := v.calls.Current()
	if i < 0 || int(i) >= len(f.Props) {
		return nil
	}
	return &f.Props[i].Value
}

// elementSlot reports whether addr is exactly one element-typed property,
// which reads and writes the stored reference itself.
func (v *VM) elementSlot(addr Address) *Value {
	if len(addr) != 1 {
		return nil
	}
	slot := v.propSlot(addr[0])
	if slot == nil || slot.Form != scene.FormElement {
		return nil
	}
	return slot
}

// ---------------------------------------------------------------------------
// Property reads
// ---------------------------------------------------------------------------

// GetProperty reads the value at addr. Namespaces are tried in order: flag
// bank, user properties, call registers, call properties; anything else
// is asked of the host.
func (v *VM) GetProperty(addr Address) Value {
	if slot := v.elementSlot(addr); slot != nil {
		return slot.Clone()
	}
	addr = v.Resolve(addr)
	if val, ok := v.getFlag(addr); ok {
		return val
	}
	head := addr.Head()
	if IsUserProp(head) || IsCallProp(head) {
		return v.getPropPath(v.propSlot(head), addr)
	}
	if val, ok := v.getCallRegister(addr); ok {
		return val
	}
	if val, ok := v.host.OnProperty(addr); ok {
		return val
	}
	v.scriptError(InvalidAddress, "read of %s", addr)
	return IntValue(0)
}

func (v *VM) getFlag(addr Address) (Value, bool) {
	head := addr.Head()
	if !isGlobalHead(head) {
		return Value{}, false
	}
	if bank, ok := intFlagBank(head); ok {
		idx, ok := addr.Index(1)
		if !ok || len(addr) != 3 {
			return Value{}, false
		}
		n, ok := v.flags.Int(bank, int(idx))
		if !ok {
			v.scriptError(IndexOutOfRange, "flag %s", addr)
		}
		return IntValue(n), true
	}
	if bank, ok := strFlagBank(head); ok {
		idx, ok := addr.Index(1)
		if !ok || len(addr) != 3 {
			return Value{}, false
		}
		s, ok := v.flags.Str(bank, int(idx))
		if !ok {
			v.scriptError(IndexOutOfRange, "flag %s", addr)
		}
		return StrValue(s), true
	}
	return Value{}, false
}

func (v *VM) getCallRegister(addr Address) (Value, bool) {
	if addr.Head() != ElmCall || len(addr) != 4 {
		return Value{}, false
	}
	idx, ok := addr.Index(2)
	if !ok {
		return Value{}, false
	}
	f := v.calls.Current()
	inRange := idx >= 0 && idx < CallRegisterCount
	switch addr[1] {
	case CallL:
		if !inRange {
			v.scriptError(IndexOutOfRange, "call.L[%d]", idx)
			return IntValue(0), true
		}
		return IntValue(f.L[idx]), true
	case CallK:
		if !inRange {
			v.scriptError(IndexOutOfRange, "call.K[%d]", idx)
			return StrValue(""), true
		}
		return StrValue(f.K[idx]), true
	}
	return Value{}, false
}

// getPropPath reads a property directly or one element of a list property.
func (v *VM) getPropPath(slot *Value, addr Address) Value {
	if slot == nil {
		v.scriptError(InvalidAddress, "undeclared property %s", addr)
		return IntValue(0)
	}
	switch len(addr) {
	case 1:
		return slot.Clone()
	case 3:
		idx, ok := addr.Index(1)
		if !ok {
			break
		}
		switch slot.Form {
		case scene.FormIntList:
			if idx < 0 || int(idx) >= len(slot.Ints) {
				v.scriptError(IndexOutOfRange, "%s of %d", addr, len(slot.Ints))
				return IntValue(0)
			}
			return IntValue(slot.Ints[idx])
		case scene.FormStrList:
			if idx < 0 || int(idx) >= len(slot.Strs) {
				v.scriptError(IndexOutOfRange, "%s of %d", addr, len(slot.Strs))
				return StrValue("")
			}
			return StrValue(slot.Strs[idx])
		}
	}
	v.scriptError(InvalidAddress, "read of %s", addr)
	return IntValue(0)
}

// ---------------------------------------------------------------------------
// Property writes
// ---------------------------------------------------------------------------

// SetProperty writes val at addr. Access kind 0 is a read request and
// leaves VM state alone; anything else writes. Unclaimed addresses go to
// the host with the access kind intact.
func (v *VM) SetProperty(addr Address, al int32, val Value) {
	if slot := v.elementSlot(addr); slot != nil && val.Form == scene.FormElement {
		if al != 0 {
			*slot = val.Clone()
		}
		return
	}
	addr = v.Resolve(addr)
	head := addr.Head()
	switch {
	case v.isFlagAddress(addr):
		if al != 0 {
			v.setFlag(addr, val)
		}
	case IsUserProp(head) || IsCallProp(head):
		if al != 0 {
			v.setPropPath(v.propSlot(head), addr, val)
		}
	case head == ElmCall && len(addr) == 4 && (addr[1] == CallL || addr[1] == CallK):
		if al != 0 {
			v.setCallRegister(addr, val)
		}
	default:
		v.host.OnAssign(addr, al, val)
	}
}

func (v *VM) isFlagAddress(addr Address) bool {
	head := addr.Head()
	if !isGlobalHead(head) || len(addr) != 3 || addr[1] != ElmArray {
		return false
	}
	_, isInt := intFlagBank(head)
	_, isStr := strFlagBank(head)
	return isInt || isStr
}

func (v *VM) setFlag(addr Address, val Value) {
	idx := int(addr[2])
	if bank, ok := intFlagBank(addr[0]); ok {
		if !val.IsInt() {
			v.scriptError(ArgumentMismatch, "assign %s to int flag %s", val.Form, addr)
			return
		}
		if !v.flags.SetInt(bank, idx, val.Int) {
			v.scriptError(IndexOutOfRange, "flag %s", addr)
		}
		return
	}
	bank, _ := strFlagBank(addr[0])
	if val.Form != scene.FormStr {
		v.scriptError(ArgumentMismatch, "assign %s to str flag %s", val.Form, addr)
		return
	}
	if !v.flags.SetStr(bank, idx, val.Str) {
		v.scriptError(IndexOutOfRange, "flag %s", addr)
	}
}

func (v *VM) setCallRegister(addr Address, val Value) {
	idx, ok := addr.Index(2)
	if !ok || idx < 0 || idx >= CallRegisterCount {
		v.scriptError(IndexOutOfRange, "call register %s", addr)
		return
	}
	f := v.calls.Current()
	if addr[1] == CallL {
		if !val.IsInt() {
			v.scriptError(ArgumentMismatch, "assign %s to call.L", val.Form)
			return
		}
		f.L[idx] = val.Int
		return
	}
	if val.Form != scene.FormStr {
		v.scriptError(ArgumentMismatch, "assign %s to call.K", val.Form)
		return
	}
	f.K[idx] = val.Str
}

func (v *VM) setPropPath(slot *Value, addr Address, val Value) {
	if slot == nil {
		v.scriptError(InvalidAddress, "undeclared property %s", addr)
		return
	}
	if len(addr) == 1 {
		if val.Form == scene.FormLabel {
			val.Form = scene.FormInt
		}
		if val.Form != slot.Form {
			v.scriptError(ArgumentMismatch, "assign %s to %s property", val.Form, slot.Form)
			return
		}
		*slot = val.Clone()
		return
	}
	idx, ok := addr.Index(1)
	if !ok || len(addr) != 3 {
		v.scriptError(InvalidAddress, "write of %s", addr)
		return
	}
	switch slot.Form {
	case scene.FormIntList:
		if !val.IsInt() {
			v.scriptError(ArgumentMismatch, "assign %s to intlist element", val.Form)
			return
		}
		if idx < 0 || int(idx) >= len(slot.Ints) {
			v.scriptError(IndexOutOfRange, "%s of %d", addr, len(slot.Ints))
			return
		}
		slot.Ints[idx] = val.Int
	case scene.FormStrList:
		if val.Form != scene.FormStr {
			v.scriptError(ArgumentMismatch, "assign %s to strlist element", val.Form)
			return
		}
		if idx < 0 || int(idx) >= len(slot.Strs) {
			v.scriptError(IndexOutOfRange, "%s of %d", addr, len(slot.Strs))
			return
		}
		slot.Strs[idx] = val.Str
	default:
		v.scriptError(InvalidAddress, "index into %s property %s", slot.Form, addr)
	}
}
