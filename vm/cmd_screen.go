package vm

import "time"

// ---------------------------------------------------------------------------
// Tier 5: screen effects, worlds and quakes
// ---------------------------------------------------------------------------

const (
	EffectCount = 8
	WorldCount  = 4
	QuakeCount  = 4
)

// [ElmScreen, target, ElmArray, i, ...]
const (
	screenEffect int32 = 0
	screenWorld  int32 = 1
	screenQuake  int32 = 2
)

// Effect properties.
const (
	EffectX int32 = iota
	EffectY
	EffectZ
	EffectMono
	EffectReverse
	EffectBright
	EffectDark
	EffectColorR
	EffectColorG
	EffectColorB
	EffectColorRate
	EffectColorAddR
	EffectColorAddG
	EffectColorAddB
	effectPropCount
)

// World properties.
const (
	WorldCameraX int32 = iota
	WorldCameraY
	WorldCameraZ
	WorldEyeX
	WorldEyeY
	WorldEyeZ
	WorldUpX
	WorldUpY
	WorldUpZ
	WorldViewAngle
	WorldMode
	worldPropCount
)

// Quake sub-commands.
const (
	quakeStart int32 = 0
	quakeEnd   int32 = 1
	quakeCheck int32 = 2
	quakeWait  int32 = 3
)

var effectDefaults = make([]int32, effectPropCount)

var worldDefaults = func() []int32 {
	d := make([]int32, worldPropCount)
	d[WorldCameraZ] = -1000
	d[WorldUpY] = 1
	d[WorldViewAngle] = 450
	return d
}()

type quake struct {
	kind   int32
	power  int32
	vec    int32
	start  time.Time
	dur    time.Duration // < 0 until ended
	active bool
}

func (q *quake) running(now time.Time) bool {
	if q.active && q.dur >= 0 && now.Sub(q.start) >= q.dur {
		q.active = false
	}
	return q.active
}

type screenState struct {
	effects [EffectCount][]animProp
	worlds  [WorldCount][]animProp
	quakes  [QuakeCount]quake
}

func newScreenState() screenState {
	var s screenState
	for i := range s.effects {
		s.effects[i] = newPropGroup(effectDefaults)
	}
	for i := range s.worlds {
		s.worlds[i] = newPropGroup(worldDefaults)
	}
	return s
}

func newPropGroup(defaults []int32) []animProp {
	props := make([]animProp, len(defaults))
	for i, d := range defaults {
		props[i].val = d
	}
	return props
}

// resetPresentation forgets screen, object and audio state.
func (v *VM) resetPresentation() {
	v.screen = newScreenState()
	v.audio = newAudioState()
	clear(v.objects)
}

func dispatchScreen(v *VM, cmd *Command) bool {
	addr := cmd.Addr
	if addr.Head() != ElmScreen {
		return false
	}
	idx, ok := addr.Index(2)
	if len(addr) < 5 || !ok {
		v.scriptError(InvalidAddress, "screen %s", addr)
		return true
	}
	target := addr[1]
	notify := func(prop int32, action string, value, timeMs int32) {
		v.host.OnScreen(ScreenEvent{Target: screenTargetName(target), Index: idx, Prop: prop, Value: value, TimeMs: timeMs, Action: action})
	}
	switch target {
	case screenEffect:
		if idx < 0 || idx >= EffectCount {
			v.scriptError(IndexOutOfRange, "effect[%d]", idx)
			return true
		}
		v.propGroupCommand(cmd, v.screen.effects[idx], effectDefaults, addr[4:], notify)
	case screenWorld:
		if idx < 0 || idx >= WorldCount {
			v.scriptError(IndexOutOfRange, "world[%d]", idx)
			return true
		}
		v.propGroupCommand(cmd, v.screen.worlds[idx], worldDefaults, addr[4:], notify)
	case screenQuake:
		if idx < 0 || idx >= QuakeCount {
			v.scriptError(IndexOutOfRange, "quake[%d]", idx)
			return true
		}
		v.quakeCommand(cmd, &v.screen.quakes[idx], addr[4], notify)
	default:
		v.scriptError(InvalidAddress, "screen target %d", target)
	}
	return true
}

func screenTargetName(target int32) string {
	switch target {
	case screenEffect:
		return "effect"
	case screenWorld:
		return "world"
	case screenQuake:
		return "quake"
	}
	return "screen"
}

// quakeCommand: 0 start(type, time, power, vec=0), 1 end, 2 check, 3 wait.
// A negative time shakes until ended.
func (v *VM) quakeCommand(cmd *Command, q *quake, sub int32, notify propNotify) {
	now := v.clock.Now()
	switch sub {
	case quakeStart:
		r := v.args(cmd)
		kind, ms, power, vec := r.Int(0, 0), r.Int(1, -1), r.Int(2, 0), r.Int(3, 0)
		if !r.ok() {
			return
		}
		*q = quake{kind: kind, power: power, vec: vec, start: now, dur: time.Duration(ms) * time.Millisecond, active: true}
		if ms < 0 {
			q.dur = -1
		}
		notify(kind, "start", power, ms)
	case quakeEnd:
		q.active = false
		notify(q.kind, "end", 0, 0)
	case quakeCheck:
		v.resultBool(cmd, q.running(now))
	case quakeWait:
		if q.dur < 0 {
			return
		}
		_, err := v.waitFor(v.ctx, -1, true, func() bool { return !q.running(v.clock.Now()) })
		q.active = false
		v.fault = err
	default:
		v.scriptError(UnknownCommand, "quake sub %d", sub)
	}
}
