package vm

import (
	"github.com/chazu/sigvm/scene"
	"github.com/chazu/sigvm/vm/savestate"
)

// ---------------------------------------------------------------------------
// Tier 3: SYSCOM
// ---------------------------------------------------------------------------

// Slot operations are kindBase+op with a base of 16 per slot kind.
const slotKindStride = 16

const (
	slotSave     int32 = 0
	slotLoad     int32 = 1
	slotCopy     int32 = 2
	slotChange   int32 = 3
	slotDelete   int32 = 4
	slotExists   int32 = 5
	slotNewNo    int32 = 6
	slotTitle    int32 = 7
	slotMessage  int32 = 8
	slotDatetime int32 = 9
	slotClearAll int32 = 10
	slotCount    int32 = 11
)

const (
	syscomReturnToMenu   int32 = 64
	syscomReturnToSel    int32 = 65
	syscomEndGame        int32 = 66
	syscomSetSavePoint   int32 = 67
	syscomClearSavePoint int32 = 68
	syscomCheckSavePoint int32 = 69
	syscomCheckSelPoint  int32 = 70
	syscomEndLoad        int32 = 71

	// feature f: enable at featureBase+2f, exist at featureBase+2f+1
	syscomFeatureBase int32 = 80
)

func dispatchSyscom(v *VM, cmd *Command) bool {
	if cmd.Addr.Head() != ElmSyscom || len(cmd.Addr) < 2 {
		return false
	}
	sub := cmd.Addr[1]
	switch {
	case sub >= 0 && sub < int32(slotKindCount)*slotKindStride:
		v.slotCommand(cmd, SlotKind(sub/slotKindStride), sub%slotKindStride)
	case sub == syscomReturnToMenu:
		v.procedureCommand(cmd, ProcReturnToMenu)
	case sub == syscomReturnToSel:
		v.procedureCommand(cmd, ProcReturnToSel)
	case sub == syscomEndGame:
		v.procedureCommand(cmd, ProcEndGame)
	case sub == syscomEndLoad:
		v.procedureCommand(cmd, ProcEndLoad)
	case sub == syscomSetSavePoint:
		v.savePoint = v.captureWithResult(cmd, IntValue(1))
		v.resultInt(cmd, 1)
	case sub == syscomClearSavePoint:
		v.savePoint = nil
	case sub == syscomCheckSavePoint:
		v.resultBool(cmd, v.savePoint != nil)
	case sub == syscomCheckSelPoint:
		v.resultBool(cmd, v.selPoint != nil)
	case sub >= syscomFeatureBase && sub < syscomFeatureBase+2*int32(featureCount):
		f := (sub - syscomFeatureBase) / 2
		if (sub-syscomFeatureBase)%2 == 0 {
			v.intProperty(cmd, func() int32 { return v.features.enable[f] }, func(n int32) { v.features.enable[f] = n })
		} else {
			v.intProperty(cmd, func() int32 { return v.features.exist[f] }, func(n int32) { v.features.exist[f] = n })
		}
	default:
		v.scriptError(UnknownCommand, "syscom %d", sub)
	}
	return true
}

func (v *VM) procedureCommand(cmd *Command, p Procedure) {
	if v.runProcedure(p) {
		cmd.done = true
	}
}

// captureWithResult snapshots the live state as it will be once the
// command has pushed val, so a later load resumes after the command with
// its result in place.
func (v *VM) captureWithResult(cmd *Command, val Value) *savestate.LocalState {
	st := v.LocalState()
	switch val = val.Coerce(cmd.RetForm); cmd.RetForm {
	case scene.FormInt, scene.FormLabel:
		st.IntStack = append(st.IntStack, val.Int)
	case scene.FormStr:
		st.StrStack = append(st.StrStack, val.Str)
	}
	return st
}

func (v *VM) slotCommand(cmd *Command, kind SlotKind, op int32) {
	m := v.slots[kind]
	r := v.args(cmd)
	switch op {
	case slotSave:
		no := r.Int(0, 0)
		if !r.ok() || !v.features.enabled(FeatureSave) {
			v.resultInt(cmd, 0)
			return
		}
		st := v.savePoint
		if st == nil {
			st = v.captureWithResult(cmd, IntValue(1))
		}
		ok := m.Save(no, &savestate.Slot{
			Stamp:   stampOf(v.clock.Now()),
			Title:   v.title,
			Message: v.lastMessage,
			State:   st,
		})
		if ok {
			log.Infof("save %s slot %d at %s:%d", kind, no, st.Cursor.Scene, st.Cursor.PC)
		}
		v.resultBool(cmd, ok)
	case slotLoad:
		no := r.Int(0, 0)
		if !r.ok() || !v.features.enabled(FeatureLoad) {
			v.resultInt(cmd, 0)
			return
		}
		v.loadSlot(cmd, m, no)
	case slotCopy:
		from, to := r.Int(0, 0), r.Int(1, 0)
		v.resultBool(cmd, r.ok() && m.Copy(from, to))
	case slotChange:
		no, title := r.Int(0, 0), r.Str(1, "")
		v.resultBool(cmd, r.ok() && m.Change(no, title))
	case slotDelete:
		no := r.Int(0, 0)
		v.resultBool(cmd, r.ok() && m.Delete(no))
	case slotExists:
		no := r.Int(0, 0)
		v.resultBool(cmd, r.ok() && m.Exists(no))
	case slotNewNo:
		v.resultInt(cmd, m.NewNumber())
	case slotTitle, slotMessage:
		s, ok := m.Get(r.Int(0, 0))
		switch {
		case !ok:
			v.resultStr(cmd, "")
		case op == slotTitle:
			v.resultStr(cmd, s.Title)
		default:
			v.resultStr(cmd, s.Message)
		}
	case slotDatetime:
		s, ok := m.Get(r.Int(0, 0))
		part := r.Int(1, 0)
		if !ok {
			v.resultInt(cmd, 0)
			return
		}
		v.resultInt(cmd, stampPart(s.Stamp, part))
	case slotClearAll:
		m.Clear()
	case slotCount:
		v.resultInt(cmd, int32(m.Len()))
	default:
		v.scriptError(UnknownCommand, "%s slot op %d", kind, op)
	}
}

// loadSlot restores a slot. On success the restored stack already holds
// the result the saving command produced.
func (v *VM) loadSlot(cmd *Command, m *SlotMap, no int32) {
	if v.inFrameAction > 0 {
		v.scriptError(UnsupportedCommand, "load inside a frame action")
		v.resultInt(cmd, 0)
		return
	}
	s, ok := m.Get(no)
	if !ok || s.State == nil {
		v.resultInt(cmd, 0)
		return
	}
	if err := v.RestoreLocal(s.State); err != nil {
		v.scriptError(StateRejected, "%s slot %d: %v", m.kind, no, err)
		v.resultInt(cmd, 0)
		return
	}
	log.Infof("load %s slot %d", m.kind, no)
	cmd.done = true
}

// stampPart selects one field of a stamp: 0 year, 1 month, 2 day,
// 3 weekday, 4 hour, 5 minute, 6 second, 7 millisecond.
func stampPart(s savestate.Stamp, part int32) int32 {
	parts := [...]int32{s.Year, s.Month, s.Day, s.Weekday, s.Hour, s.Minute, s.Second, s.Millisecond}
	if part < 0 || int(part) >= len(parts) {
		return 0
	}
	return parts[part]
}
