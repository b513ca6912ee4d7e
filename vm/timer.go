package vm

import (
	"time"

	"github.com/chazu/sigvm/vm/savestate"
)

// ---------------------------------------------------------------------------
// Script timers
// ---------------------------------------------------------------------------

// TimerCount is the number of script timers.
const TimerCount = 16

// Timer sub-commands: [ElmTimer, ElmArray, i, sub].
const (
	timerGet   int32 = 0
	timerStart int32 = 1
	timerStop  int32 = 2
	timerSet   int32 = 3
	timerReset int32 = 4
)

// timer accumulates elapsed time while running.
type timer struct {
	accumulated time.Duration
	since       time.Time
	running     bool
}

func (t *timer) elapsed(now time.Time) time.Duration {
	if t.running {
		return t.accumulated + now.Sub(t.since)
	}
	return t.accumulated
}

func (t *timer) start(now time.Time) {
	if !t.running {
		t.since = now
		t.running = true
	}
}

func (t *timer) stop(now time.Time) {
	if t.running {
		t.accumulated += now.Sub(t.since)
		t.running = false
	}
}

func (t *timer) set(now time.Time, d time.Duration) {
	t.accumulated = d
	t.since = now
}

func (v *VM) timerCommand(cmd *Command) {
	idx, ok := cmd.Addr.Index(1)
	if !ok || len(cmd.Addr) < 4 {
		v.scriptError(InvalidAddress, "timer %s", cmd.Addr)
		return
	}
	if idx < 0 || idx >= TimerCount {
		v.scriptError(IndexOutOfRange, "timer %d", idx)
		return
	}
	t := &v.timers[idx]
	now := v.clock.Now()
	switch cmd.Addr[3] {
	case timerGet:
		v.resultInt(cmd, int32(t.elapsed(now)/time.Millisecond))
	case timerStart:
		t.start(now)
	case timerStop:
		t.stop(now)
	case timerSet:
		r := v.args(cmd)
		ms := r.Int(0, 0)
		if r.ok() {
			t.set(now, time.Duration(ms)*time.Millisecond)
		}
	case timerReset:
		t.set(now, 0)
	default:
		v.scriptError(UnknownCommand, "timer sub %d", cmd.Addr[3])
	}
}

// restartTimers zeroes every timer and leaves them running.
func (v *VM) restartTimers() {
	now := v.clock.Now()
	for i := range v.timers {
		v.timers[i] = timer{since: now, running: true}
	}
}

func (v *VM) timerState() []savestate.Timer {
	now := v.clock.Now()
	out := make([]savestate.Timer, TimerCount)
	for i := range v.timers {
		out[i] = savestate.Timer{
			ElapsedMs: int32(v.timers[i].elapsed(now) / time.Millisecond),
			Running:   v.timers[i].running,
		}
	}
	return out
}

func timersFrom(now time.Time, saved []savestate.Timer) ([TimerCount]timer, error) {
	var out [TimerCount]timer
	if len(saved) > TimerCount {
		return out, ErrStateMismatch
	}
	for i, s := range saved {
		out[i] = timer{
			accumulated: time.Duration(s.ElapsedMs) * time.Millisecond,
			since:       now,
			running:     s.Running,
		}
	}
	return out, nil
}
