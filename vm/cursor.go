package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/sigvm/scene"
)

// ---------------------------------------------------------------------------
// Cursor: forward reader over one scene's instruction bytes
// ---------------------------------------------------------------------------

// Cursor reads instructions from the current program. Every jump is
// checked against the relevant table and the code length.
type Cursor struct {
	prog *scene.Program
	pc   int
	line int32
}

// Program returns the program being executed.
func (c *Cursor) Program() *scene.Program { return c.prog }

// PC returns the current byte offset.
func (c *Cursor) PC() int { return c.pc }

// Line returns the last source line set by NL.
func (c *Cursor) Line() int32 { return c.line }

// SceneName returns the current scene name, or "" before Start.
func (c *Cursor) SceneName() string {
	if c.prog == nil {
		return ""
	}
	return c.prog.Name
}

// AtEnd reports whether the cursor is at or past the end of the code.
func (c *Cursor) AtEnd() bool {
	return c.prog == nil || c.pc >= len(c.prog.Code)
}

func (c *Cursor) ReadByte() (byte, error) {
	if c.AtEnd() {
		return 0, ErrTruncated
	}
	b := c.prog.Code[c.pc]
	c.pc++
	return b, nil
}

func (c *Cursor) ReadInt32() (int32, error) {
	if c.prog == nil || c.pc+4 > len(c.prog.Code) {
		return 0, ErrTruncated
	}
	v := int32(binary.LittleEndian.Uint32(c.prog.Code[c.pc:]))
	c.pc += 4
	return v, nil
}

// ReadString resolves a string pool index.
func (c *Cursor) ReadString(index int32) (string, error) {
	if c.prog == nil || index < 0 || int(index) >= len(c.prog.Strings) {
		return "", fmt.Errorf("%w: %d", ErrBadString, index)
	}
	return c.prog.Strings[index], nil
}

// readForms reads a count-prefixed list of forms.
func (c *Cursor) readForms() ([]scene.Form, error) {
	n, err := c.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n < 0 || int(n)*4 > len(c.prog.Code)-c.pc {
		return nil, fmt.Errorf("%w: form count %d", ErrTruncated, n)
	}
	forms := make([]scene.Form, n)
	for i := range forms {
		v, err := c.ReadInt32()
		if err != nil {
			return nil, err
		}
		forms[i] = scene.Form(v)
	}
	return forms, nil
}

func (c *Cursor) jumpTo(offset int32) error {
	if offset < 0 || int(offset) > len(c.prog.Code) {
		return fmt.Errorf("%w: %d (code size %d)", ErrJumpOutOfRange, offset, len(c.prog.Code))
	}
	c.pc = int(offset)
	return nil
}

// JumpToLabel moves to label n.
func (c *Cursor) JumpToLabel(n int32) error {
	if c.prog == nil || n < 0 || int(n) >= len(c.prog.Labels) {
		return fmt.Errorf("%w: label %d", ErrBadLabel, n)
	}
	return c.jumpTo(c.prog.Labels[n])
}

// JumpToZLabel moves to z-label n.
func (c *Cursor) JumpToZLabel(n int32) error {
	if c.prog == nil || n < 0 || int(n) >= len(c.prog.ZLabels) {
		return fmt.Errorf("%w: z-label %d", ErrBadLabel, n)
	}
	return c.jumpTo(c.prog.ZLabels[n])
}

// JumpToCommand moves to scene-local command id.
func (c *Cursor) JumpToCommand(id int32) error {
	if c.prog == nil || id < 0 || int(id) >= len(c.prog.Commands) {
		return fmt.Errorf("%w: command %d", ErrBadLabel, id)
	}
	return c.jumpTo(c.prog.Commands[id].Offset)
}

// Switch moves to another program at an explicit offset.
func (c *Cursor) Switch(prog *scene.Program, pc int, line int32) error {
	if prog == nil {
		return ErrNotStarted
	}
	if pc < 0 || pc > len(prog.Code) {
		return fmt.Errorf("%w: %d in %s (code size %d)", ErrJumpOutOfRange, pc, prog.Name, len(prog.Code))
	}
	c.prog = prog
	c.pc = pc
	c.line = line
	return nil
}
