package scene

import (
	"encoding/binary"
)

// ---------------------------------------------------------------------------
// Builder: Helper for constructing scene programs
// ---------------------------------------------------------------------------

// Builder assembles instruction bytes and the side tables that go with
// them. Labels are indices into the label table, so forward references
// need no patching: Mark fills in the offset when it becomes known.
type Builder struct {
	name     string
	title    string
	bytes    []byte
	strings  []string
	strIndex map[string]int32
	labels   []int32
	zlabels  []int32
	props    []PropDecl
	commands []CommandDecl
}

// NewBuilder creates a builder for the named scene.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:     name,
		bytes:    make([]byte, 0, 64),
		strIndex: make(map[string]int32),
	}
}

// Len returns the current code length.
func (b *Builder) Len() int {
	return len(b.bytes)
}

// SetTitle sets the scene title.
func (b *Builder) SetTitle(title string) {
	b.title = title
}

// Program returns the assembled program. Unmarked labels point at offset 0.
func (b *Builder) Program() *Program {
	code := make([]byte, len(b.bytes))
	copy(code, b.bytes)
	return &Program{
		Name:     b.name,
		Title:    b.title,
		Code:     code,
		Strings:  append([]string(nil), b.strings...),
		Labels:   append([]int32(nil), b.labels...),
		ZLabels:  append([]int32(nil), b.zlabels...),
		Props:    append([]PropDecl(nil), b.props...),
		Commands: append([]CommandDecl(nil), b.commands...),
	}
}

// Intern adds s to the string pool and returns its index.
func (b *Builder) Intern(s string) int32 {
	if idx, ok := b.strIndex[s]; ok {
		return idx
	}
	idx := int32(len(b.strings))
	b.strings = append(b.strings, s)
	b.strIndex[s] = idx
	return idx
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

// NewLabel allocates an unresolved label.
func (b *Builder) NewLabel() int32 {
	b.labels = append(b.labels, 0)
	return int32(len(b.labels) - 1)
}

// Mark resolves a label to the current position.
func (b *Builder) Mark(label int32) {
	b.labels[label] = int32(len(b.bytes))
}

// MarkZ binds z-label n to the current position, growing the table.
func (b *Builder) MarkZ(n int) {
	for len(b.zlabels) <= n {
		b.zlabels = append(b.zlabels, 0)
	}
	b.zlabels[n] = int32(len(b.bytes))
}

// DeclareProp adds a scene property and returns its scene-local index.
func (b *Builder) DeclareProp(name string, form Form, size int32) int32 {
	b.props = append(b.props, PropDecl{Name: name, Form: form, Size: size})
	return int32(len(b.props) - 1)
}

// DeclareCommand adds a scene-local command at the current position and
// returns its scene-local index.
func (b *Builder) DeclareCommand(name string) int32 {
	b.commands = append(b.commands, CommandDecl{Name: name, Offset: int32(len(b.bytes))})
	return int32(len(b.commands) - 1)
}

// ---------------------------------------------------------------------------
// Raw emission
// ---------------------------------------------------------------------------

// Emit appends an opcode with no operands.
func (b *Builder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitRaw appends raw bytes.
func (b *Builder) EmitRaw(data ...byte) {
	b.bytes = append(b.bytes, data...)
}

func (b *Builder) int32(v int32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	b.bytes = append(b.bytes, buf[:]...)
}

func (b *Builder) forms(forms []Form) {
	b.int32(int32(len(forms)))
	for _, f := range forms {
		b.int32(int32(f))
	}
}

// ---------------------------------------------------------------------------
// Instructions
// ---------------------------------------------------------------------------

// Line emits NL.
func (b *Builder) Line(n int32) {
	b.Emit(OpLine)
	b.int32(n)
}

// PushInt emits PUSH int.
func (b *Builder) PushInt(v int32) {
	b.Emit(OpPush)
	b.int32(int32(FormInt))
	b.int32(v)
}

// PushStr emits PUSH str, interning s.
func (b *Builder) PushStr(s string) {
	b.Emit(OpPush)
	b.int32(int32(FormStr))
	b.int32(b.Intern(s))
}

// PushElement emits ELM_POINT followed by one PUSH per address part.
func (b *Builder) PushElement(addr ...int32) {
	b.Emit(OpElmPoint)
	for _, v := range addr {
		b.PushInt(v)
	}
}

// Pop emits POP.
func (b *Builder) Pop(form Form) {
	b.Emit(OpPop)
	b.int32(int32(form))
}

// Copy emits COPY.
func (b *Builder) Copy(form Form) {
	b.Emit(OpCopy)
	b.int32(int32(form))
}

// Property emits PROPERTY.
func (b *Builder) Property() {
	b.Emit(OpProperty)
}

// CopyElm emits COPY_ELM.
func (b *Builder) CopyElm() {
	b.Emit(OpCopyElm)
}

// DecProp emits DEC_PROP.
func (b *Builder) DecProp(form Form, id int32) {
	b.Emit(OpDecProp)
	b.int32(int32(form))
	b.int32(id)
}

// Arg emits ARG.
func (b *Builder) Arg() {
	b.Emit(OpArg)
}

// Goto emits GOTO.
func (b *Builder) Goto(label int32) {
	b.Emit(OpGoto)
	b.int32(label)
}

// GotoTrue emits GOTO_TRUE.
func (b *Builder) GotoTrue(label int32) {
	b.Emit(OpGotoTrue)
	b.int32(label)
}

// GotoFalse emits GOTO_FALSE.
func (b *Builder) GotoFalse(label int32) {
	b.Emit(OpGotoFalse)
	b.int32(label)
}

// Gosub emits GOSUB with the given argument forms.
func (b *Builder) Gosub(label int32, args ...Form) {
	b.Emit(OpGosub)
	b.int32(label)
	b.forms(args)
}

// GosubStr emits GOSUB_STR with the given argument forms.
func (b *Builder) GosubStr(label int32, args ...Form) {
	b.Emit(OpGosubStr)
	b.int32(label)
	b.forms(args)
}

// Return emits RETURN with the given value forms.
func (b *Builder) Return(values ...Form) {
	b.Emit(OpReturn)
	b.forms(values)
}

// Assign emits ASSIGN.
func (b *Builder) Assign(left, right Form, al int32) {
	b.Emit(OpAssign)
	b.int32(int32(left))
	b.int32(int32(right))
	b.int32(al)
}

// Operate1 emits OPERATE_1.
func (b *Builder) Operate1(form Form, op Operator) {
	b.Emit(OpOperate1)
	b.int32(int32(form))
	b.bytes = append(b.bytes, byte(op))
}

// Operate2 emits OPERATE_2.
func (b *Builder) Operate2(left, right Form, op Operator) {
	b.Emit(OpOperate2)
	b.int32(int32(left))
	b.int32(int32(right))
	b.bytes = append(b.bytes, byte(op))
}

// Command emits COMMAND. The last len(named) argument forms are named
// arguments carrying the given ids.
func (b *Builder) Command(al int32, args []Form, named []int32, ret Form) {
	b.Emit(OpCommand)
	b.int32(al)
	b.forms(args)
	b.int32(int32(len(named)))
	for _, id := range named {
		b.int32(id)
	}
	b.int32(int32(ret))
}

// Text emits TEXT.
func (b *Builder) Text(readFlag int32) {
	b.Emit(OpText)
	b.int32(readFlag)
}

// Name emits NAME.
func (b *Builder) Name() {
	b.Emit(OpName)
}
