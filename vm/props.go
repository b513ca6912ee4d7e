package vm

import (
	"fmt"

	"github.com/chazu/sigvm/scene"
	"github.com/chazu/sigvm/vm/savestate"
)

// ---------------------------------------------------------------------------
// propTable: declared, statically typed property slots
// ---------------------------------------------------------------------------

type propTable struct {
	decls  []scene.PropDecl
	values []Value
}

func newPropTable(decls []scene.PropDecl) *propTable {
	t := &propTable{decls: decls, values: make([]Value, len(decls))}
	for i, d := range decls {
		t.values[i] = initialValue(d.Form, d.Size)
	}
	return t
}

func initialValue(form scene.Form, size int32) Value {
	v := ZeroValue(form)
	switch form {
	case scene.FormIntList:
		v.Ints = make([]int32, max(size, 0))
	case scene.FormStrList:
		v.Strs = make([]string, max(size, 0))
	}
	return v
}

func (t *propTable) len() int {
	if t == nil {
		return 0
	}
	return len(t.values)
}

func (t *propTable) slot(i int32) *Value {
	if t == nil || i < 0 || int(i) >= len(t.values) {
		return nil
	}
	return &t.values[i]
}

func (t *propTable) state() []savestate.Prop {
	if t == nil || len(t.values) == 0 {
		return nil
	}
	out := make([]savestate.Prop, len(t.values))
	for i, v := range t.values {
		out[i] = savestate.Prop{ID: int32(i), Name: t.decls[i].Name, Value: valueState(v)}
	}
	return out
}

// restorePropTable rebuilds a table from its schema and saved values. The
// saved values must match the schema slot for slot.
func restorePropTable(decls []scene.PropDecl, saved []savestate.Prop) (*propTable, error) {
	t := newPropTable(decls)
	if len(saved) > len(decls) {
		return nil, fmt.Errorf("%w: %d saved properties for %d declared", ErrStateMismatch, len(saved), len(decls))
	}
	for i, p := range saved {
		val, err := valueFromState(p.Value)
		if err != nil {
			return nil, err
		}
		if val.Form != decls[i].Form {
			return nil, fmt.Errorf("%w: property %q is %s, saved %s", ErrStateMismatch, decls[i].Name, decls[i].Form, val.Form)
		}
		t.values[i] = val
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Value <-> savestate.Value
// ---------------------------------------------------------------------------

func valueState(v Value) savestate.Value {
	out := savestate.Value{Form: int32(v.Form)}
	switch v.Form {
	case scene.FormInt, scene.FormLabel:
		out.Int = v.Int
	case scene.FormStr:
		out.Str = v.Str
	case scene.FormIntList:
		out.Ints = cloneInts(v.Ints)
	case scene.FormStrList:
		out.Strs = cloneStrs(v.Strs)
	case scene.FormElement:
		out.Ints = cloneInts(v.Elm)
	}
	return out
}

func valueFromState(s savestate.Value) (Value, error) {
	v := Value{Form: scene.Form(s.Form)}
	switch v.Form {
	case scene.FormVoid:
	case scene.FormInt, scene.FormLabel:
		v.Int = s.Int
	case scene.FormStr:
		v.Str = s.Str
	case scene.FormIntList:
		v.Ints = cloneInts(s.Ints)
		if v.Ints == nil {
			v.Ints = []int32{}
		}
	case scene.FormStrList:
		v.Strs = cloneStrs(s.Strs)
		if v.Strs == nil {
			v.Strs = []string{}
		}
	case scene.FormElement:
		v.Elm = Address(cloneInts(s.Ints))
	default:
		return Value{}, fmt.Errorf("%w: form %d", ErrStateMismatch, s.Form)
	}
	return v, nil
}

func cloneInts(v []int32) []int32 {
	if len(v) == 0 {
		return nil
	}
	return append([]int32(nil), v...)
}

func cloneStrs(v []string) []string {
	if len(v) == 0 {
		return nil
	}
	return append([]string(nil), v...)
}
