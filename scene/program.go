// Package scene holds decoded scene programs: the instruction bytes a
// container tool produced, plus the side tables the VM needs to run them.
package scene

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrSceneNotFound = errors.New("scene not found")
	ErrBadTable      = errors.New("table offset out of range")
)

// PropDecl declares a property: a named, statically typed slot. Size is the
// initial element count for list forms and is ignored otherwise.
type PropDecl struct {
	Name string `cbor:"1,keyasint"`
	Form Form   `cbor:"2,keyasint"`
	Size int32  `cbor:"3,keyasint,omitempty"`
}

// CommandDecl is a scene-local user command entry point.
type CommandDecl struct {
	Name   string `cbor:"1,keyasint"`
	Offset int32  `cbor:"2,keyasint"`
}

// IncludedCommand is a user command shared by every scene. It lives in
// Scene at Offset.
type IncludedCommand struct {
	Name   string `cbor:"1,keyasint"`
	Scene  string `cbor:"2,keyasint"`
	Offset int32  `cbor:"3,keyasint"`
}

// Program is one decoded scene. It is immutable once loaded and may be
// shared by any number of frames.
type Program struct {
	Name     string        `cbor:"1,keyasint"`
	Title    string        `cbor:"2,keyasint,omitempty"`
	Code     []byte        `cbor:"3,keyasint"`
	Strings  []string      `cbor:"4,keyasint,omitempty"`
	Labels   []int32       `cbor:"5,keyasint,omitempty"`
	ZLabels  []int32       `cbor:"6,keyasint,omitempty"`
	Props    []PropDecl    `cbor:"7,keyasint,omitempty"`
	Commands []CommandDecl `cbor:"8,keyasint,omitempty"`
}

// Validate checks that every table offset points inside Code.
func (p *Program) Validate() error {
	size := int32(len(p.Code))
	check := func(table string, offsets []int32) error {
		for i, off := range offsets {
			if off < 0 || off > size {
				return fmt.Errorf("%w: scene %s %s[%d] = %d (code size %d)", ErrBadTable, p.Name, table, i, off, size)
			}
		}
		return nil
	}
	if err := check("label", p.Labels); err != nil {
		return err
	}
	if err := check("zlabel", p.ZLabels); err != nil {
		return err
	}
	for i, c := range p.Commands {
		if c.Offset < 0 || c.Offset > size {
			return fmt.Errorf("%w: scene %s command[%d] %q = %d", ErrBadTable, p.Name, i, c.Name, c.Offset)
		}
	}
	for i, d := range p.Props {
		if d.Size < 0 {
			return fmt.Errorf("%w: scene %s prop[%d] %q has negative size", ErrBadTable, p.Name, i, d.Name)
		}
	}
	return nil
}

// CommandByName returns the scene-local command index for name.
func (p *Program) CommandByName(name string) (int, bool) {
	for i, c := range p.Commands {
		if c.Name == name {
			return i, true
		}
	}
	return 0, false
}

// ReadInt32At decodes a little-endian int32 at pos.
func ReadInt32At(code []byte, pos int) (int32, bool) {
	if pos < 0 || pos+4 > len(code) {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(code[pos:])), true
}
