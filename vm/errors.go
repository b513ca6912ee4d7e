package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrTruncated      = errors.New("instruction stream truncated")
	ErrBadLabel       = errors.New("label index out of range")
	ErrJumpOutOfRange = errors.New("jump target outside code")
	ErrBadString      = errors.New("string index out of range")
	ErrUnknownOpcode  = errors.New("unknown opcode")
	ErrNotStarted     = errors.New("vm has no scene loaded")
	ErrStateMismatch  = errors.New("snapshot does not match loaded scenes")
)

// ---------------------------------------------------------------------------
// DecodeError: malformed bytecode, fatal to the run
// ---------------------------------------------------------------------------

// DecodeError reports a bytecode decode failure with the position it
// happened at.
type DecodeError struct {
	Scene string
	PC    int
	Line  int32
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s:%d (line %d): %v", e.Scene, e.PC, e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ---------------------------------------------------------------------------
// ScriptError: non-fatal runtime errors reported to the host
// ---------------------------------------------------------------------------

// ErrorKind classifies a ScriptError.
type ErrorKind int

const (
	DivideByZero ErrorKind = iota
	InvalidAddress
	ArgumentMismatch
	IndexOutOfRange
	UnknownCommand
	CallDepthExceeded
	SceneMissing
	UnsupportedCommand
	StateRejected
)

var errorKindNames = [...]string{
	DivideByZero:       "divide by zero",
	InvalidAddress:     "invalid element address",
	ArgumentMismatch:   "argument mismatch",
	IndexOutOfRange:    "index out of range",
	UnknownCommand:     "unknown command",
	CallDepthExceeded:  "call depth exceeded",
	SceneMissing:       "scene not found",
	UnsupportedCommand: "unsupported command",
	StateRejected:      "saved state rejected",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("error(%d)", int(k))
}

// ScriptError is a recoverable runtime error. The offending instruction
// completes with a zero value and execution continues.
type ScriptError struct {
	Kind    ErrorKind
	Scene   string
	PC      int
	Line    int32
	Message string
}

func (e *ScriptError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s:%d (line %d): %s", e.Scene, e.PC, e.Line, e.Kind)
	}
	return fmt.Sprintf("%s:%d (line %d): %s: %s", e.Scene, e.PC, e.Line, e.Kind, e.Message)
}

// ---------------------------------------------------------------------------
// FatalError: explicit end-of-code markers
// ---------------------------------------------------------------------------

// FatalError reports that execution reached a NONE or EOF marker.
type FatalError struct {
	Scene  string
	PC     int
	Line   int32
	Reason string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal at %s:%d (line %d): %s", e.Scene, e.PC, e.Line, e.Reason)
}
