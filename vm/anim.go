package vm

import (
	"math"
	"time"
)

// ---------------------------------------------------------------------------
// Animated scalar properties
// ---------------------------------------------------------------------------

// Event speed curves.
const (
	speedLinear  int32 = 0
	speedEaseIn  int32 = 1
	speedEaseOut int32 = 2
)

// animProp is a scalar property that can move to a target over time.
// val is the target; while an event runs, reads interpolate from from.
type animProp struct {
	val    int32
	from   int32
	start  time.Time
	delay  time.Duration
	dur    time.Duration
	speed  int32
	active bool
}

func (p *animProp) get(now time.Time) int32 {
	if !p.active {
		return p.val
	}
	t := now.Sub(p.start) - p.delay
	if t <= 0 {
		return p.from
	}
	if t >= p.dur {
		return p.val
	}
	frac := float64(t) / float64(p.dur)
	switch p.speed {
	case speedEaseIn:
		frac *= frac
	case speedEaseOut:
		frac = 1 - (1-frac)*(1-frac)
	}
	return p.from + int32(math.Round(float64(p.val-p.from)*frac))
}

func (p *animProp) set(n int32) {
	p.val = n
	p.active = false
}

func (p *animProp) animate(now time.Time, target, timeMs, delayMs, speed int32) {
	p.from = p.get(now)
	p.val = target
	p.start = now
	p.delay = time.Duration(max(delayMs, 0)) * time.Millisecond
	p.dur = time.Duration(max(timeMs, 0)) * time.Millisecond
	p.speed = speed
	p.active = p.dur > 0 || p.delay > 0
}

// running reports whether an event is still moving the property.
func (p *animProp) running(now time.Time) bool {
	if p.active && now.Sub(p.start) >= p.delay+p.dur {
		p.active = false
	}
	return p.active
}

func (p *animProp) finish() {
	p.active = false
}

// ---------------------------------------------------------------------------
// Property groups
// ---------------------------------------------------------------------------

// Property code families shared by screen effects and objects.
const (
	propEventFlag int32 = 0x100
	propInit      int32 = 0xFF
)

// Event sub-commands: [..., prop|propEventFlag, sub].
const (
	eventSet   int32 = 0
	eventGet   int32 = 1
	eventCheck int32 = 2
	eventEnd   int32 = 3
	eventWait  int32 = 4
)

// propNotify reports a property change to the host.
type propNotify func(prop int32, action string, value, timeMs int32)

// propGroupCommand handles a scalar property, its event variant or the
// init code. path starts at the property code.
func (v *VM) propGroupCommand(cmd *Command, props []animProp, defaults []int32, path Address, notify propNotify) {
	code := path.Head()
	switch {
	case code == propInit:
		for i := range props {
			props[i] = animProp{val: defaults[i]}
		}
		notify(code, "init", 0, 0)
	case code&propEventFlag != 0 && code&^propEventFlag < int32(len(props)):
		prop := code &^ propEventFlag
		sub := int32(-1)
		if len(path) > 1 {
			sub = path[1]
		}
		v.eventCommand(cmd, &props[prop], prop, sub, notify)
	case code >= 0 && code < int32(len(props)):
		p := &props[code]
		v.intProperty(cmd, func() int32 { return p.get(v.clock.Now()) }, func(n int32) {
			p.set(n)
			notify(code, "set", n, 0)
		})
	default:
		v.scriptError(InvalidAddress, "property %#x of %s", code, cmd.Addr)
	}
}

func (v *VM) eventCommand(cmd *Command, p *animProp, prop, sub int32, notify propNotify) {
	now := v.clock.Now()
	switch sub {
	case eventSet:
		r := v.args(cmd)
		target := r.Int(0, p.val)
		ms := r.Int(1, 0)
		delay := r.Int(2, 0)
		speed := r.Int(3, speedLinear)
		if !r.ok() {
			return
		}
		p.animate(now, target, ms, delay, speed)
		notify(prop, "event", target, ms)
	case eventGet:
		v.resultInt(cmd, p.get(now))
	case eventCheck:
		v.resultBool(cmd, p.running(now))
	case eventEnd:
		p.finish()
		notify(prop, "event_end", p.val, 0)
	case eventWait:
		_, err := v.waitFor(v.ctx, -1, true, func() bool { return !p.running(v.clock.Now()) })
		p.finish()
		v.fault = err
	default:
		v.scriptError(UnknownCommand, "event sub %d", sub)
	}
}
