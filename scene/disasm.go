package scene

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTruncated is returned when an instruction runs past the end of code.
var ErrTruncated = errors.New("truncated instruction")

// ---------------------------------------------------------------------------
// Reader for disassembly
// ---------------------------------------------------------------------------

// Reader walks instruction bytes without interpreting them.
type Reader struct {
	code []byte
	pos  int
}

// NewReader creates a reader positioned at the start of code.
func NewReader(code []byte) *Reader {
	return &Reader{code: code}
}

// Position returns the current read position.
func (r *Reader) Position() int {
	return r.pos
}

// HasMore returns true if there are more bytes to read.
func (r *Reader) HasMore() bool {
	return r.pos < len(r.code)
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.code) {
		return 0, ErrTruncated
	}
	b := r.code[r.pos]
	r.pos++
	return b, nil
}

// ReadInt32 reads a little-endian int32.
func (r *Reader) ReadInt32() (int32, error) {
	v, ok := ReadInt32At(r.code, r.pos)
	if !ok {
		return 0, ErrTruncated
	}
	r.pos += 4
	return v, nil
}

func (r *Reader) readForms() ([]Form, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if n < 0 || int(n)*4 > len(r.code)-r.pos {
		return nil, ErrTruncated
	}
	forms := make([]Form, n)
	for i := range forms {
		v, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		forms[i] = Form(v)
	}
	return forms, nil
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

func formList(forms []Form) string {
	parts := make([]string, len(forms))
	for i, f := range forms {
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// DisassembleInstruction renders the instruction at the reader position and
// advances past it. strs resolves string pool references and may be nil.
func DisassembleInstruction(r *Reader, strs []string) (string, error) {
	pos := r.Position()
	b, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	op := Opcode(b)
	name := op.Info().Name

	switch op {
	case OpNone, OpProperty, OpCopyElm, OpElmPoint, OpArg, OpEOF, OpName,
		OpSelBlockStart, OpSelBlockEnd:
		return fmt.Sprintf("%06d  %s", pos, name), nil

	case OpLine, OpGoto, OpGotoTrue, OpGotoFalse, OpText:
		v, err := r.ReadInt32()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%06d  %s %d", pos, name, v), nil

	case OpPop, OpCopy:
		f, err := r.ReadInt32()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%06d  %s %s", pos, name, Form(f)), nil

	case OpPush:
		f, err := r.ReadInt32()
		if err != nil {
			return "", err
		}
		v, err := r.ReadInt32()
		if err != nil {
			return "", err
		}
		if Form(f) == FormStr && v >= 0 && int(v) < len(strs) {
			return fmt.Sprintf("%06d  %s str %q", pos, name, strs[v]), nil
		}
		return fmt.Sprintf("%06d  %s %s %d", pos, name, Form(f), v), nil

	case OpDecProp:
		f, err := r.ReadInt32()
		if err != nil {
			return "", err
		}
		id, err := r.ReadInt32()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%06d  %s %s #%d", pos, name, Form(f), id), nil

	case OpGosub, OpGosubStr:
		label, err := r.ReadInt32()
		if err != nil {
			return "", err
		}
		forms, err := r.readForms()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%06d  %s %d %s", pos, name, label, formList(forms)), nil

	case OpReturn:
		forms, err := r.readForms()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%06d  %s %s", pos, name, formList(forms)), nil

	case OpAssign:
		var v [3]int32
		for i := range v {
			if v[i], err = r.ReadInt32(); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("%06d  %s %s = %s al=%d", pos, name, Form(v[0]), Form(v[1]), v[2]), nil

	case OpOperate1:
		f, err := r.ReadInt32()
		if err != nil {
			return "", err
		}
		o, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%06d  %s %s %s", pos, name, Operator(o), Form(f)), nil

	case OpOperate2:
		l, err := r.ReadInt32()
		if err != nil {
			return "", err
		}
		rf, err := r.ReadInt32()
		if err != nil {
			return "", err
		}
		o, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%06d  %s %s %s %s", pos, name, Form(l), Operator(o), Form(rf)), nil

	case OpCommand:
		al, err := r.ReadInt32()
		if err != nil {
			return "", err
		}
		forms, err := r.readForms()
		if err != nil {
			return "", err
		}
		nn, err := r.ReadInt32()
		if err != nil {
			return "", err
		}
		if nn < 0 || int(nn) > len(forms) {
			return "", ErrTruncated
		}
		ids := make([]string, nn)
		for i := range ids {
			id, err := r.ReadInt32()
			if err != nil {
				return "", err
			}
			ids[i] = fmt.Sprint(id)
		}
		ret, err := r.ReadInt32()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%06d  %s al=%d %s named=[%s] -> %s", pos, name, al, formList(forms), strings.Join(ids, ","), Form(ret)), nil
	}

	return fmt.Sprintf("%06d  %s", pos, name), nil
}

// Disassemble renders a whole program, annotating label, z-label and
// command entry points.
func Disassemble(p *Program) (string, error) {
	marks := make(map[int][]string)
	for i, off := range p.Labels {
		marks[int(off)] = append(marks[int(off)], fmt.Sprintf("L%d:", i))
	}
	for i, off := range p.ZLabels {
		marks[int(off)] = append(marks[int(off)], fmt.Sprintf("#z%02d:", i))
	}
	for _, c := range p.Commands {
		marks[int(c.Offset)] = append(marks[int(c.Offset)], fmt.Sprintf("command %s:", c.Name))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "; scene %s (%d bytes)\n", p.Name, len(p.Code))
	r := NewReader(p.Code)
	for r.HasMore() {
		for _, m := range marks[r.Position()] {
			sb.WriteString(m)
			sb.WriteByte('\n')
		}
		line, err := DisassembleInstruction(r, p.Strings)
		if err != nil {
			return sb.String(), fmt.Errorf("disassemble %s at %d: %w", p.Name, r.Position(), err)
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
