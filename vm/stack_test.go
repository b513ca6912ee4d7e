package vm

import (
	"testing"

	"github.com/chazu/sigvm/scene"
)

func TestStackUnderflow(t *testing.T) {
	s := NewStack()
	if got := s.PopInt(); got != 0 {
		t.Errorf("PopInt on empty = %d", got)
	}
	if got := s.PopStr(); got != "" {
		t.Errorf("PopStr on empty = %q", got)
	}
	if got := s.PopGroup(); len(got) != 0 {
		t.Errorf("PopGroup on empty = %v", got)
	}
	for _, f := range []scene.Form{scene.FormInt, scene.FormStr, scene.FormIntList, scene.FormStrList, scene.FormElement} {
		v := s.Pop(f)
		if v.Form != f {
			t.Errorf("Pop(%v) form = %v", f, v.Form)
		}
	}
	if ints, strs, groups := s.Depth(); ints != 0 || strs != 0 || groups != 0 {
		t.Errorf("depth after underflow = %d/%d/%d", ints, strs, groups)
	}
}

func TestStackGroupRoundTrip(t *testing.T) {
	for n := 0; n <= 6; n++ {
		s := NewStack()
		s.PushInt(99)
		before, _, _ := s.Depth()

		s.Mark()
		want := make(Address, n)
		for i := range want {
			want[i] = int32(i*10 - 3)
			s.PushInt(want[i])
		}
		got := s.PopGroup()
		if !got.Equal(want) {
			t.Errorf("n=%d: group = %v, want %v", n, got, want)
		}
		if after, _, groups := s.Depth(); after != before || groups != 0 {
			t.Errorf("n=%d: depth %d groups %d, want %d 0", n, after, groups, before)
		}
		if top := s.PopInt(); top != 99 {
			t.Errorf("n=%d: value under group = %d", n, top)
		}
	}
}

func TestStackListValues(t *testing.T) {
	s := NewStack()
	s.Push(Value{Form: scene.FormIntList, Ints: []int32{1, 2, 3}})
	s.Push(Value{Form: scene.FormStrList, Strs: []string{"a", "b"}})

	strs := s.Pop(scene.FormStrList)
	if len(strs.Strs) != 2 || strs.Strs[0] != "a" || strs.Strs[1] != "b" {
		t.Errorf("strlist = %v", strs.Strs)
	}
	ints := s.Pop(scene.FormIntList)
	if len(ints.Ints) != 3 || ints.Ints[2] != 3 {
		t.Errorf("intlist = %v", ints.Ints)
	}
}

func TestStackCopyGroup(t *testing.T) {
	s := NewStack()
	s.PushGroup(Address{ElmA, ElmArray, 4})
	s.CopyGroup()
	first := s.PopGroup()
	second := s.PopGroup()
	want := Address{ElmA, ElmArray, 4}
	if !first.Equal(want) || !second.Equal(want) {
		t.Errorf("groups = %v %v, want %v twice", first, second, want)
	}
}

func TestCallStackRootNeverPops(t *testing.T) {
	cs := NewCallStack(8)
	if _, ok := cs.Pop(); ok {
		t.Fatal("popped the root frame")
	}
	cs.Push(&Frame{})
	cs.Push(&Frame{})
	if cs.Depth() != 3 {
		t.Fatalf("depth = %d", cs.Depth())
	}
	cs.Trim(1)
	if cs.Depth() != 1 {
		t.Errorf("depth after trim = %d", cs.Depth())
	}
}
