package scene

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Markers
const (
	OpNone Opcode = 0x00 // uninitialized code; executing it is fatal
	OpLine Opcode = 0x01 // set source line (int32 line)
)

// Stack Operations
const (
	OpPush     Opcode = 0x02 // push literal (int32 form, int32 value)
	OpPop      Opcode = 0x03 // discard top (int32 form)
	OpCopy     Opcode = 0x04 // duplicate top (int32 form)
	OpProperty Opcode = 0x05 // pop element, push its value
	OpCopyElm  Opcode = 0x06 // duplicate the most recent element group
	OpDecProp  Opcode = 0x07 // declare call property (int32 form, int32 id)
	OpElmPoint Opcode = 0x08 // open an element group
	OpArg      Opcode = 0x09 // bind pending call arguments to call properties
)

// Control Flow
const (
	OpGoto      Opcode = 0x10 // jump to label (int32 label)
	OpGotoTrue  Opcode = 0x11 // pop int, jump if non-zero
	OpGotoFalse Opcode = 0x12 // pop int, jump if zero
	OpGosub     Opcode = 0x13 // call label, int result (int32 label, arg forms)
	OpGosubStr  Opcode = 0x14 // call label, string result (int32 label, arg forms)
	OpReturn    Opcode = 0x15 // return (arg forms)
	OpEOF       Opcode = 0x16 // end of scene marker; executing it is fatal
)

// Expressions
const (
	OpAssign   Opcode = 0x20 // assign (int32 lform, int32 rform, int32 al)
	OpOperate1 Opcode = 0x21 // unary operator (int32 form, byte op)
	OpOperate2 Opcode = 0x22 // binary operator (int32 lform, int32 rform, byte op)
)

// Commands and Messages
const (
	OpCommand       Opcode = 0x30 // dispatch a command
	OpText          Opcode = 0x31 // show message text (int32 read flag)
	OpName          Opcode = 0x32 // show speaker name
	OpSelBlockStart Opcode = 0x33 // selection block start
	OpSelBlockEnd   Opcode = 0x34 // selection block end
)

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name  string // human-readable name
	Fixed int    // number of fixed operand bytes (-1 = variable)
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNone: {"NONE", 0},
	OpLine: {"NL", 4},

	OpPush:     {"PUSH", 8},
	OpPop:      {"POP", 4},
	OpCopy:     {"COPY", 4},
	OpProperty: {"PROPERTY", 0},
	OpCopyElm:  {"COPY_ELM", 0},
	OpDecProp:  {"DEC_PROP", 8},
	OpElmPoint: {"ELM_POINT", 0},
	OpArg:      {"ARG", 0},

	OpGoto:      {"GOTO", 4},
	OpGotoTrue:  {"GOTO_TRUE", 4},
	OpGotoFalse: {"GOTO_FALSE", 4},
	OpGosub:     {"GOSUB", -1},
	OpGosubStr:  {"GOSUB_STR", -1},
	OpReturn:    {"RETURN", -1},
	OpEOF:       {"EOF", 0},

	OpAssign:   {"ASSIGN", 12},
	OpOperate1: {"OPERATE_1", 5},
	OpOperate2: {"OPERATE_2", 9},

	OpCommand:       {"COMMAND", -1},
	OpText:          {"TEXT", 4},
	OpName:          {"NAME", 0},
	OpSelBlockStart: {"SEL_BLOCK_START", 0},
	OpSelBlockEnd:   {"SEL_BLOCK_END", 0},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Known reports whether op is part of the instruction set.
func (op Opcode) Known() bool {
	_, ok := opcodeTable[op]
	return ok
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

// ---------------------------------------------------------------------------
// Forms: static value types carried by instructions
// ---------------------------------------------------------------------------

// Form is the static type tag of a value on the stack or in a property.
type Form int32

const (
	FormVoid    Form = 0
	FormInt     Form = 10
	FormIntList Form = 11
	FormStr     Form = 20
	FormStrList Form = 21
	FormLabel   Form = 30
	FormElement Form = 100
)

var formNames = map[Form]string{
	FormVoid:    "void",
	FormInt:     "int",
	FormIntList: "intlist",
	FormStr:     "str",
	FormStrList: "strlist",
	FormLabel:   "label",
	FormElement: "element",
}

func (f Form) String() string {
	if n, ok := formNames[f]; ok {
		return n
	}
	return fmt.Sprintf("form(%d)", int32(f))
}

// IsList reports whether f is one of the list forms.
func (f Form) IsList() bool {
	return f == FormIntList || f == FormStrList
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// Operator is the operator code carried by OPERATE_1 / OPERATE_2.
type Operator byte

const (
	OpPlus         Operator = 1
	OpMinus        Operator = 2
	OpMultiply     Operator = 3
	OpDivide       Operator = 4
	OpModulo       Operator = 5
	OpEqual        Operator = 16
	OpNotEqual     Operator = 17
	OpGreater      Operator = 18
	OpGreaterEqual Operator = 19
	OpLess         Operator = 20
	OpLessEqual    Operator = 21
	OpLogicalAnd   Operator = 32
	OpLogicalOr    Operator = 33
	OpTilde        Operator = 48
	OpAnd          Operator = 49
	OpOr           Operator = 50
	OpXor          Operator = 51
	OpShiftLeft    Operator = 52
	OpShiftRight   Operator = 53
	OpShiftRightU  Operator = 54
)

var operatorNames = map[Operator]string{
	OpPlus:         "+",
	OpMinus:        "-",
	OpMultiply:     "*",
	OpDivide:       "/",
	OpModulo:       "%",
	OpEqual:        "==",
	OpNotEqual:     "!=",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpLogicalAnd:   "&&",
	OpLogicalOr:    "||",
	OpTilde:        "~",
	OpAnd:          "&",
	OpOr:           "|",
	OpXor:          "^",
	OpShiftLeft:    "<<",
	OpShiftRight:   ">>",
	OpShiftRightU:  ">>>",
}

func (o Operator) String() string {
	if n, ok := operatorNames[o]; ok {
		return n
	}
	return fmt.Sprintf("op(%d)", byte(o))
}
