package vm

import (
	"fmt"
	"strings"

	"github.com/chazu/sigvm/scene"
)

// ---------------------------------------------------------------------------
// Value: a typed script value
// ---------------------------------------------------------------------------

// Value is a script value tagged with its form. Only the field matching
// Form is meaningful.
type Value struct {
	Form scene.Form
	Int  int32
	Str  string
	Ints []int32
	Strs []string
	Elm  Address
}

// IntValue returns an int value.
func IntValue(v int32) Value {
	return Value{Form: scene.FormInt, Int: v}
}

// StrValue returns a str value.
func StrValue(s string) Value {
	return Value{Form: scene.FormStr, Str: s}
}

// ElementValue returns an element value holding a copy of addr.
func ElementValue(addr Address) Value {
	return Value{Form: scene.FormElement, Elm: addr.Clone()}
}

// BoolValue returns 1 or 0.
func BoolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

// ZeroValue returns the zero value of a form.
func ZeroValue(form scene.Form) Value {
	return Value{Form: form}
}

// Coerce returns v as the requested form. Labels count as ints; any other
// mismatch yields the zero value of form.
func (v Value) Coerce(form scene.Form) Value {
	if form == scene.FormVoid {
		return Value{}
	}
	from := v.Form
	if from == scene.FormLabel {
		from = scene.FormInt
	}
	to := form
	if to == scene.FormLabel {
		to = scene.FormInt
	}
	if from != to {
		return ZeroValue(form)
	}
	v.Form = form
	return v
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	if v.Ints != nil {
		v.Ints = append([]int32(nil), v.Ints...)
	}
	if v.Strs != nil {
		v.Strs = append([]string(nil), v.Strs...)
	}
	if v.Elm != nil {
		v.Elm = v.Elm.Clone()
	}
	return v
}

// IsInt reports whether v carries an integer.
func (v Value) IsInt() bool {
	return v.Form == scene.FormInt || v.Form == scene.FormLabel
}

func (v Value) String() string {
	switch v.Form {
	case scene.FormVoid:
		return "void"
	case scene.FormInt, scene.FormLabel:
		return fmt.Sprintf("%d", v.Int)
	case scene.FormStr:
		return fmt.Sprintf("%q", v.Str)
	case scene.FormIntList:
		return fmt.Sprintf("%v", v.Ints)
	case scene.FormStrList:
		return fmt.Sprintf("[%s]", strings.Join(v.Strs, " "))
	case scene.FormElement:
		return v.Elm.String()
	default:
		return fmt.Sprintf("%s?", v.Form)
	}
}
