package vm

import "github.com/chazu/sigvm/scene"

// ---------------------------------------------------------------------------
// Stack: integer stack, string stack and element group marks
// ---------------------------------------------------------------------------

// Stack is the execution stack. Pops never fail: an empty stack yields the
// zero value. Each mark records an integer-stack depth where an element
// group starts; marks above the integer depth are dropped on pop so the
// two stay consistent.
type Stack struct {
	ints  []int32
	strs  []string
	marks []int
}

// NewStack creates an empty stack.
func NewStack() *Stack {
	return &Stack{
		ints: make([]int32, 0, 64),
		strs: make([]string, 0, 16),
	}
}

func (s *Stack) PushInt(v int32) {
	s.ints = append(s.ints, v)
}

func (s *Stack) PushStr(v string) {
	s.strs = append(s.strs, v)
}

// PopInt pops an integer, or returns 0 on underflow.
func (s *Stack) PopInt() int32 {
	n := len(s.ints)
	if n == 0 {
		return 0
	}
	v := s.ints[n-1]
	s.ints = s.ints[:n-1]
	s.trimMarks()
	return v
}

// PopStr pops a string, or returns "" on underflow.
func (s *Stack) PopStr() string {
	n := len(s.strs)
	if n == 0 {
		return ""
	}
	v := s.strs[n-1]
	s.strs = s.strs[:n-1]
	return v
}

// PeekInt returns the top integer without popping it.
func (s *Stack) PeekInt() int32 {
	if len(s.ints) == 0 {
		return 0
	}
	return s.ints[len(s.ints)-1]
}

func (s *Stack) trimMarks() {
	for len(s.marks) > 0 && s.marks[len(s.marks)-1] > len(s.ints) {
		s.marks = s.marks[:len(s.marks)-1]
	}
}

// Mark opens an element group at the current integer depth.
func (s *Stack) Mark() {
	s.marks = append(s.marks, len(s.ints))
}

// PopGroup removes the most recent mark and returns, in push order, the
// integers pushed since it. With no open mark it drains the whole stack.
func (s *Stack) PopGroup() Address {
	start := 0
	if n := len(s.marks); n > 0 {
		start = s.marks[n-1]
		s.marks = s.marks[:n-1]
	}
	if start > len(s.ints) {
		start = len(s.ints)
	}
	group := make(Address, len(s.ints)-start)
	copy(group, s.ints[start:])
	s.ints = s.ints[:start]
	return group
}

// PushGroup opens a group and pushes addr into it.
func (s *Stack) PushGroup(addr Address) {
	s.Mark()
	s.ints = append(s.ints, addr...)
}

// CopyGroup duplicates the most recent open group as a new group.
func (s *Stack) CopyGroup() {
	start := 0
	if n := len(s.marks); n > 0 {
		start = s.marks[n-1]
	}
	group := append(Address(nil), s.ints[start:]...)
	s.PushGroup(group)
}

// CopyTop duplicates the top value of the given form.
func (s *Stack) CopyTop(form scene.Form) {
	switch form {
	case scene.FormInt, scene.FormLabel:
		s.PushInt(s.PeekInt())
	case scene.FormStr:
		v := ""
		if len(s.strs) > 0 {
			v = s.strs[len(s.strs)-1]
		}
		s.PushStr(v)
	case scene.FormElement:
		s.CopyGroup()
	}
}

// Push pushes a value in its stack representation: lists push their
// elements followed by the count.
func (s *Stack) Push(v Value) {
	switch v.Form {
	case scene.FormInt, scene.FormLabel:
		s.PushInt(v.Int)
	case scene.FormStr:
		s.PushStr(v.Str)
	case scene.FormElement:
		s.PushGroup(v.Elm)
	case scene.FormIntList:
		s.ints = append(s.ints, v.Ints...)
		s.PushInt(int32(len(v.Ints)))
	case scene.FormStrList:
		s.strs = append(s.strs, v.Strs...)
		s.PushInt(int32(len(v.Strs)))
	}
}

// Pop pops a value of the given form.
func (s *Stack) Pop(form scene.Form) Value {
	switch form {
	case scene.FormInt, scene.FormLabel:
		return Value{Form: form, Int: s.PopInt()}
	case scene.FormStr:
		return StrValue(s.PopStr())
	case scene.FormElement:
		return Value{Form: form, Elm: s.PopGroup()}
	case scene.FormIntList:
		n := int(s.PopInt())
		out := make([]int32, clampCount(n, len(s.ints)))
		for i := len(out) - 1; i >= 0; i-- {
			out[i] = s.PopInt()
		}
		return Value{Form: form, Ints: out}
	case scene.FormStrList:
		n := int(s.PopInt())
		out := make([]string, clampCount(n, len(s.strs)))
		for i := len(out) - 1; i >= 0; i-- {
			out[i] = s.PopStr()
		}
		return Value{Form: form, Strs: out}
	}
	return Value{}
}

func clampCount(n, avail int) int {
	if n < 0 {
		return 0
	}
	if n > avail {
		return avail
	}
	return n
}

// Depth returns the integer depth, string depth and open group count.
func (s *Stack) Depth() (ints, strs, groups int) {
	return len(s.ints), len(s.strs), len(s.marks)
}

// truncate drops everything above the given depths.
func (s *Stack) truncate(ints, strs, groups int) {
	if ints < len(s.ints) {
		s.ints = s.ints[:ints]
	}
	if strs < len(s.strs) {
		s.strs = s.strs[:strs]
	}
	if groups < len(s.marks) {
		s.marks = s.marks[:groups]
	}
}

// Reset empties the stack.
func (s *Stack) Reset() {
	s.ints = s.ints[:0]
	s.strs = s.strs[:0]
	s.marks = s.marks[:0]
}

func (s *Stack) snapshot() (ints []int32, strs []string, marks []int32) {
	if len(s.ints) > 0 {
		ints = append([]int32(nil), s.ints...)
	}
	if len(s.strs) > 0 {
		strs = append([]string(nil), s.strs...)
	}
	for _, m := range s.marks {
		marks = append(marks, int32(m))
	}
	return ints, strs, marks
}

func (s *Stack) restore(ints []int32, strs []string, marks []int32) error {
	prev := 0
	for _, m := range marks {
		if int(m) < prev || int(m) > len(ints) {
			return ErrStateMismatch
		}
		prev = int(m)
	}
	s.ints = append(s.ints[:0], ints...)
	s.strs = append(s.strs[:0], strs...)
	s.marks = s.marks[:0]
	for _, m := range marks {
		s.marks = append(s.marks, int(m))
	}
	return nil
}
