package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Element addresses
// ---------------------------------------------------------------------------

// Address is an element address: a path of integers into the script
// namespace. The owner tag in the high byte of the head selects the
// namespace; ElmArray marks that the next integer is an array index.
type Address []int32

// ElmArray is the array-index continuation marker.
const ElmArray int32 = -1

// Owner tags.
const (
	OwnerGlobal   byte = 0x00
	OwnerUserCmd  byte = 0x7D
	OwnerCallProp byte = 0x7E
	OwnerUserProp byte = 0x7F
)

const indexMask = 0x00FFFFFF

// OwnerOf returns the owner tag of an address head.
func OwnerOf(head int32) byte {
	return byte(uint32(head) >> 24)
}

// IndexOf returns the low 24 bits of an address head.
func IndexOf(head int32) int32 {
	return head & indexMask
}

// MakeHead builds an address head from an owner tag and index.
func MakeHead(owner byte, index int32) int32 {
	return int32(uint32(owner)<<24 | uint32(index)&indexMask)
}

// UserProp returns the head addressing user property i.
func UserProp(i int32) int32 { return MakeHead(OwnerUserProp, i) }

// CallPropHead returns the head addressing call property i of the current frame.
func CallPropHead(i int32) int32 { return MakeHead(OwnerCallProp, i) }

// UserCmd returns the head addressing user command i.
func UserCmd(i int32) int32 { return MakeHead(OwnerUserCmd, i) }

func IsUserProp(head int32) bool { return head != ElmArray && OwnerOf(head) == OwnerUserProp }
func IsCallProp(head int32) bool { return head != ElmArray && OwnerOf(head) == OwnerCallProp }
func IsUserCmd(head int32) bool { return head != ElmArray && OwnerOf(head) == OwnerUserCmd }
func IsArrayMarker(v int32) bool { return v == ElmArray }
func isGlobalHead(head int32) bool { return head != ElmArray && OwnerOf(head) == OwnerGlobal }

// Head returns the first element, or ElmArray for an empty address.
func (a Address) Head() int32 {
	if len(a) == 0 {
		return ElmArray
	}
	return a[0]
}

// Clone returns a copy of a.
func (a Address) Clone() Address {
	if a == nil {
		return nil
	}
	return append(Address(nil), a...)
}

// Equal reports whether two addresses are identical.
func (a Address) Equal(b Address) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Index returns the array index following the marker at position pos.
func (a Address) Index(pos int) (int32, bool) {
	if pos+1 >= len(a) || a[pos] != ElmArray {
		return 0, false
	}
	return a[pos+1], true
}

func (a Address) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range a {
		if i > 0 {
			sb.WriteByte(' ')
		}
		switch {
		case v == ElmArray:
			sb.WriteString("[]")
		case i == 0 && OwnerOf(v) == OwnerUserProp:
			fmt.Fprintf(&sb, "prop#%d", IndexOf(v))
		case i == 0 && OwnerOf(v) == OwnerCallProp:
			fmt.Fprintf(&sb, "call#%d", IndexOf(v))
		case i == 0 && OwnerOf(v) == OwnerUserCmd:
			fmt.Fprintf(&sb, "cmd#%d", IndexOf(v))
		default:
			fmt.Fprintf(&sb, "%d", v)
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

// ---------------------------------------------------------------------------
// Global element codes (owner 0)
// ---------------------------------------------------------------------------

// Flag banks.
const (
	ElmA int32 = iota + 1
	ElmB
	ElmC
	ElmD
	ElmE
	ElmF
	ElmX
	ElmG
	ElmZ
	ElmS
	ElmM
	ElmNamaeLocal
	ElmNamaeGlobal
)

// Call registers: [ElmCall, CallL|CallK, ElmArray, i].
const (
	ElmCall int32 = 20
	CallL   int32 = 0
	CallK   int32 = 1
)

// Global flow and introspection.
const (
	ElmJump          int32 = 30
	ElmFarcall       int32 = 31
	ElmCallDepth     int32 = 32
	ElmSceneName     int32 = 33
	ElmTitle         int32 = 34
	ElmLineNo        int32 = 35
	ElmEnd           int32 = 36
	ElmReturnMenu    int32 = 37
	ElmWait          int32 = 38
	ElmWaitKey       int32 = 39
	ElmTimer         int32 = 40
	ElmMath          int32 = 41
	ElmWipe          int32 = 42
	ElmFrameAction   int32 = 45
	ElmFrameActionCh int32 = 46
)

// Subsystem families.
const (
	ElmScript int32 = 50
	ElmSyscom int32 = 60
	ElmBGM    int32 = 70
	ElmPCM    int32 = 71
	ElmPCMCh  int32 = 72
	ElmSE     int32 = 73
	ElmMov    int32 = 74
	ElmScreen int32 = 80
	ElmBack   int32 = 90
	ElmFront  int32 = 91
	ElmNext   int32 = 92
)

// intFlagBank maps a flag element code to its integer bank.
func intFlagBank(code int32) (int, bool) {
	if code >= ElmA && code <= ElmZ {
		return int(code - ElmA), true
	}
	return 0, false
}

// strFlagBank maps a flag element code to its string bank.
func strFlagBank(code int32) (int, bool) {
	if code >= ElmS && code <= ElmNamaeGlobal {
		return int(code - ElmS), true
	}
	return 0, false
}
