package vm

import "github.com/chazu/sigvm/vm/savestate"

// ---------------------------------------------------------------------------
// Script runtime settings
// ---------------------------------------------------------------------------

// KeyCount is the size of the per-key disable table.
const KeyCount = 256

type scriptSettings struct {
	skipDisable     bool
	ctrlSkipDisable bool
	autoMode        bool
	autoWaitMs      int32
	fontName        string
	fontSize        int32
	fontBold        bool
	msgBackDisable  bool
	messageSpeed    int32
	keyDisable      [KeyCount]bool

	// not saved: skip mode belongs to the player, not the play-through
	skipMode bool
}

func defaultSettings() scriptSettings {
	return scriptSettings{
		autoWaitMs:   2000,
		fontSize:     26,
		messageSpeed: 40,
	}
}

func (s *scriptSettings) state() savestate.Settings {
	out := savestate.Settings{
		SkipDisable:     s.skipDisable,
		CtrlSkipDisable: s.ctrlSkipDisable,
		AutoMode:        s.autoMode,
		AutoWaitMs:      s.autoWaitMs,
		FontName:        s.fontName,
		FontSize:        s.fontSize,
		FontBold:        s.fontBold,
		MsgBackDisable:  s.msgBackDisable,
		MessageSpeed:    s.messageSpeed,
	}
	for k, off := range s.keyDisable {
		if off {
			out.KeyDisable = append(out.KeyDisable, int32(k))
		}
	}
	return out
}

func settingsFrom(saved savestate.Settings, skipMode bool) (scriptSettings, error) {
	s := scriptSettings{
		skipDisable:     saved.SkipDisable,
		ctrlSkipDisable: saved.CtrlSkipDisable,
		autoMode:        saved.AutoMode,
		autoWaitMs:      saved.AutoWaitMs,
		fontName:        saved.FontName,
		fontSize:        saved.FontSize,
		fontBold:        saved.FontBold,
		msgBackDisable:  saved.MsgBackDisable,
		messageSpeed:    saved.MessageSpeed,
		skipMode:        skipMode,
	}
	for _, k := range saved.KeyDisable {
		if k < 0 || k >= KeyCount {
			return scriptSettings{}, ErrStateMismatch
		}
		s.keyDisable[k] = true
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Message history
// ---------------------------------------------------------------------------

// history is a bounded ring of shown messages, oldest first.
type history struct {
	buf   []HistoryEntry
	start int
	n     int
}

func newHistory(capacity int) *history {
	return &history{buf: make([]HistoryEntry, max(capacity, 1))}
}

func (h *history) add(e HistoryEntry) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = e
		h.n++
		return
	}
	h.buf[h.start] = e
	h.start = (h.start + 1) % len(h.buf)
}

func (h *history) entries() []HistoryEntry {
	out := make([]HistoryEntry, h.n)
	for i := range out {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

func (h *history) clear() {
	h.start, h.n = 0, 0
	clear(h.buf)
}

func (h *history) len() int { return h.n }

func (h *history) state() []savestate.HistoryEntry {
	var out []savestate.HistoryEntry
	for _, e := range h.entries() {
		out = append(out, savestate.HistoryEntry{Name: e.Name, Text: e.Text})
	}
	return out
}

// restore replaces the contents; only the newest entries fit.
func (h *history) restore(saved []savestate.HistoryEntry) {
	h.clear()
	for _, e := range saved {
		h.add(HistoryEntry{Name: e.Name, Text: e.Text})
	}
}

// ---------------------------------------------------------------------------
// Syscom features
// ---------------------------------------------------------------------------

// Feature is a system menu feature with an enable and an exist flag.
type Feature int

const (
	FeatureSave Feature = iota
	FeatureLoad
	FeatureMsgBack
	FeatureSkip
	FeatureAuto
	FeatureReturnMenu
	FeatureReturnSel
	FeatureEndGame
	FeatureConfig
	featureCount
)

type featureFlags struct {
	enable [featureCount]int32
	exist  [featureCount]int32
}

func defaultFeatures() featureFlags {
	var f featureFlags
	for i := range f.enable {
		f.enable[i] = 1
		f.exist[i] = 1
	}
	return f
}

func (f *featureFlags) enabled(feat Feature) bool {
	return f.enable[feat] != 0 && f.exist[feat] != 0
}

func featuresFrom(enable, exist []int32) (featureFlags, error) {
	f := defaultFeatures()
	if len(enable) > int(featureCount) || len(exist) > int(featureCount) {
		return f, ErrStateMismatch
	}
	copy(f.enable[:], enable)
	copy(f.exist[:], exist)
	return f, nil
}

// ---------------------------------------------------------------------------
// Tier 2: SCRIPT
// ---------------------------------------------------------------------------

// SCRIPT sub-commands: [ElmScript, sub, ...].
const (
	scriptSkipDisable     int32 = 0
	scriptCtrlSkipDisable int32 = 1
	scriptAutoMode        int32 = 2
	scriptAutoWaitMs      int32 = 3
	scriptFontName        int32 = 4
	scriptFontSize        int32 = 5
	scriptFontBold        int32 = 6
	scriptMsgBackDisable  int32 = 7
	scriptMsgBackOpen     int32 = 8
	scriptMsgBackClose    int32 = 9
	scriptMsgBackClear    int32 = 10
	scriptKeyDisable      int32 = 11
	scriptMessageSpeed    int32 = 12
	scriptSkipMode        int32 = 13
	scriptMsgBackCount    int32 = 14
)

func dispatchScript(v *VM, cmd *Command) bool {
	if cmd.Addr.Head() != ElmScript || len(cmd.Addr) < 2 {
		return false
	}
	s := &v.settings
	switch cmd.Addr[1] {
	case scriptSkipDisable:
		v.boolProperty(cmd, &s.skipDisable)
	case scriptCtrlSkipDisable:
		v.boolProperty(cmd, &s.ctrlSkipDisable)
	case scriptAutoMode:
		v.intProperty(cmd, func() int32 { return b2i(s.autoMode) }, func(n int32) {
			s.autoMode = n != 0
			v.host.OnSetting(SettingEvent{Name: "auto_mode", Value: n})
		})
	case scriptAutoWaitMs:
		v.intProperty(cmd, func() int32 { return s.autoWaitMs }, func(n int32) { s.autoWaitMs = max(n, 0) })
	case scriptFontName:
		v.strProperty(cmd, func() string { return s.fontName }, func(name string) { s.fontName = name })
	case scriptFontSize:
		v.intProperty(cmd, func() int32 { return s.fontSize }, func(n int32) { s.fontSize = n })
	case scriptFontBold:
		v.boolProperty(cmd, &s.fontBold)
	case scriptMsgBackDisable:
		v.boolProperty(cmd, &s.msgBackDisable)
	case scriptMsgBackOpen:
		if !s.msgBackDisable && v.features.enabled(FeatureMsgBack) {
			v.host.OnMessageBack(MessageBackEvent{Action: MessageBackOpen})
		}
	case scriptMsgBackClose:
		v.host.OnMessageBack(MessageBackEvent{Action: MessageBackClose})
	case scriptMsgBackClear:
		v.history.clear()
		v.host.OnMessageBack(MessageBackEvent{Action: MessageBackClear})
	case scriptKeyDisable:
		idx, ok := cmd.Addr.Index(2)
		if !ok {
			v.scriptError(InvalidAddress, "key_disable %s", cmd.Addr)
			return true
		}
		if idx < 0 || idx >= KeyCount {
			v.scriptError(IndexOutOfRange, "key_disable[%d]", idx)
			return true
		}
		v.boolProperty(cmd, &s.keyDisable[idx])
	case scriptMessageSpeed:
		v.intProperty(cmd, func() int32 { return s.messageSpeed }, func(n int32) { s.messageSpeed = n })
	case scriptSkipMode:
		v.intProperty(cmd, func() int32 { return b2i(s.skipMode) }, func(n int32) {
			s.skipMode = n != 0
			v.host.OnSetting(SettingEvent{Name: "skip_mode", Value: n})
		})
	case scriptMsgBackCount:
		v.resultInt(cmd, int32(v.history.len()))
	default:
		return false
	}
	return true
}

// SetSkipMode switches skip mode from outside the script.
func (v *VM) SetSkipMode(on bool) { v.settings.skipMode = on }
