package vm

import (
	"maps"
	"slices"

	"github.com/chazu/sigvm/vm/savestate"
)

// ---------------------------------------------------------------------------
// Slot maps
// ---------------------------------------------------------------------------

// SlotKind selects one of the four independent slot collections.
type SlotKind int

const (
	SlotStandard SlotKind = iota
	SlotQuick
	SlotInner
	SlotEnd
	slotKindCount
)

var slotKindNames = [...]string{"standard", "quick", "inner", "end"}

func (k SlotKind) String() string {
	if k >= 0 && int(k) < len(slotKindNames) {
		return slotKindNames[k]
	}
	return "slot?"
}

// SlotMap holds numbered slots in [0, capacity). Every operation reports
// success as a bool; a missing slot is not an error.
type SlotMap struct {
	kind     SlotKind
	capacity int
	slots    map[int32]*savestate.Slot
}

// NewSlotMap creates an empty slot map.
func NewSlotMap(kind SlotKind, capacity int) *SlotMap {
	return &SlotMap{kind: kind, capacity: capacity, slots: make(map[int32]*savestate.Slot)}
}

func (m *SlotMap) Kind() SlotKind { return m.kind }
func (m *SlotMap) Capacity() int { return m.capacity }
func (m *SlotMap) Len() int { return len(m.slots) }

func (m *SlotMap) inRange(no int32) bool {
	return no >= 0 && int(no) < m.capacity
}

// Save stores slot at no, replacing what was there.
func (m *SlotMap) Save(no int32, slot *savestate.Slot) bool {
	if !m.inRange(no) || slot == nil {
		return false
	}
	m.slots[no] = slot
	return true
}

func (m *SlotMap) Get(no int32) (*savestate.Slot, bool) {
	s, ok := m.slots[no]
	return s, ok
}

func (m *SlotMap) Exists(no int32) bool {
	_, ok := m.slots[no]
	return ok
}

// Copy duplicates slot from into slot to.
func (m *SlotMap) Copy(from, to int32) bool {
	src, ok := m.slots[from]
	if !ok || !m.inRange(to) {
		return false
	}
	dup := *src
	m.slots[to] = &dup
	return true
}

// Change renames a slot.
func (m *SlotMap) Change(no int32, title string) bool {
	s, ok := m.slots[no]
	if !ok {
		return false
	}
	dup := *s
	dup.Title = title
	m.slots[no] = &dup
	return true
}

func (m *SlotMap) Delete(no int32) bool {
	if _, ok := m.slots[no]; !ok {
		return false
	}
	delete(m.slots, no)
	return true
}

// NewNumber returns the first unused number, or -1 when full.
func (m *SlotMap) NewNumber() int32 {
	for no := int32(0); int(no) < m.capacity; no++ {
		if _, ok := m.slots[no]; !ok {
			return no
		}
	}
	return -1
}

func (m *SlotMap) Clear() {
	clear(m.slots)
}

// Numbers returns the used slot numbers in ascending order.
func (m *SlotMap) Numbers() []int32 {
	return slices.Sorted(maps.Keys(m.slots))
}
