package vm

import "github.com/chazu/sigvm/scene"

// ---------------------------------------------------------------------------
// Frame: one call-stack entry
// ---------------------------------------------------------------------------

// CallRegisterCount is the size of each call register file.
const CallRegisterCount = 32

// CallProp is a property declared inside a call with DEC_PROP.
type CallProp struct {
	ID    int32
	Value Value
}

// Frame holds where to return to and the call-local state. The root frame
// has no return target.
type Frame struct {
	ReturnProg  *scene.Program
	ReturnPC    int
	ReturnLine  int32
	RetForm     scene.Form
	FrameAction bool

	L     [CallRegisterCount]int32
	K     [CallRegisterCount]string
	Props []CallProp

	// arguments of a user command call, consumed by ARG
	pendingArgs []Value
}

// bindRegisters fills L and K positionally from call arguments.
func (f *Frame) bindRegisters(args []Value) {
	li, ki := 0, 0
	for _, a := range args {
		switch a.Form {
		case scene.FormInt, scene.FormLabel:
			if li < CallRegisterCount {
				f.L[li] = a.Int
				li++
			}
		case scene.FormStr:
			if ki < CallRegisterCount {
				f.K[ki] = a.Str
				ki++
			}
		}
	}
}

// declareProp appends a call property initialised to its zero value.
func (f *Frame) declareProp(id int32, form scene.Form, size int32) int32 {
	v := ZeroValue(form)
	switch form {
	case scene.FormIntList:
		v.Ints = make([]int32, max(size, 0))
	case scene.FormStrList:
		v.Strs = make([]string, max(size, 0))
	}
	f.Props = append(f.Props, CallProp{ID: id, Value: v})
	return int32(len(f.Props) - 1)
}

// ---------------------------------------------------------------------------
// CallStack
// ---------------------------------------------------------------------------

// CallStack is the list of active frames. Index 0 is the root frame and is
// never popped.
type CallStack struct {
	frames   []*Frame
	maxDepth int
}

// NewCallStack creates a stack holding only a root frame.
func NewCallStack(maxDepth int) *CallStack {
	return &CallStack{frames: []*Frame{{}}, maxDepth: maxDepth}
}

// Depth returns the number of frames including the root.
func (cs *CallStack) Depth() int { return len(cs.frames) }

// Current returns the innermost frame.
func (cs *CallStack) Current() *Frame { return cs.frames[len(cs.frames)-1] }

// Root returns the root frame.
func (cs *CallStack) Root() *Frame { return cs.frames[0] }

// Push adds a frame. It fails when the depth limit is reached.
func (cs *CallStack) Push(f *Frame) bool {
	if cs.maxDepth > 0 && len(cs.frames) >= cs.maxDepth {
		return false
	}
	cs.frames = append(cs.frames, f)
	return true
}

// Pop removes the innermost frame. The root frame is never removed.
func (cs *CallStack) Pop() (*Frame, bool) {
	if len(cs.frames) <= 1 {
		return nil, false
	}
	f := cs.frames[len(cs.frames)-1]
	cs.frames = cs.frames[:len(cs.frames)-1]
	return f, true
}

// Trim drops frames until depth n remains (n >= 1) and returns the
// outermost frame dropped, whose return target is where the trimmed
// calls would eventually have come back to.
func (cs *CallStack) Trim(n int) *Frame {
	if n < 1 {
		n = 1
	}
	if n >= len(cs.frames) {
		return nil
	}
	f := cs.frames[n]
	cs.frames = cs.frames[:n]
	return f
}

// Reset leaves a fresh root frame.
func (cs *CallStack) Reset() {
	cs.frames = []*Frame{{}}
}
