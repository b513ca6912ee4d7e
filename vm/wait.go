package vm

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// Tick loops
// ---------------------------------------------------------------------------

type waitResult int

const (
	waitDone waitResult = iota
	waitSkipped
	waitInterrupted
)

// waitFor polls every tick until ready reports true, d elapses (d < 0
// never elapses), a skippable wait sees the skip signal, or the run is
// interrupted. Due frame actions run once per tick.
func (v *VM) waitFor(ctx context.Context, d time.Duration, skippable bool, ready func() bool) (waitResult, error) {
	start := v.clock.Now()
	for {
		if v.interrupted(ctx) {
			return waitInterrupted, nil
		}
		if skippable && v.skipping() {
			return waitSkipped, nil
		}
		if ready != nil && ready() {
			return waitDone, nil
		}
		if d >= 0 && v.clock.Now().Sub(start) >= d {
			return waitDone, nil
		}
		if err := v.runFrameActions(ctx); err != nil {
			return waitInterrupted, err
		}
		if v.stopping {
			return waitInterrupted, nil
		}
		v.clock.Sleep(v.cfg.TickInterval)
	}
}

// timedWait waits for ms milliseconds.
func (v *VM) timedWait(ms int32, skippable bool) error {
	if ms <= 0 {
		return nil
	}
	_, err := v.waitFor(v.ctx, time.Duration(ms)*time.Millisecond, skippable, nil)
	return err
}

// keyWait waits for the host to report an advance.
func (v *VM) keyWait() error {
	_, err := v.waitFor(v.ctx, -1, true, v.host.PollAdvance)
	return err
}

// text shows a message and waits for advance. Skip mode passes straight
// through; auto mode advances after the configured delay.
func (v *VM) text(ctx context.Context, msg string, readFlag int32) error {
	v.lastMessage = msg
	entry := HistoryEntry{Name: v.speaker, Text: msg}
	v.history.add(entry)
	v.host.OnMessageBack(MessageBackEvent{Action: MessageBackAppend, Entry: entry})
	v.host.OnText(msg, readFlag)
	v.speaker = ""

	d := time.Duration(-1)
	if v.settings.autoMode {
		d = time.Duration(v.settings.autoWaitMs) * time.Millisecond
	}
	_, err := v.waitFor(ctx, d, true, v.host.PollAdvance)
	return err
}

// wipe starts a transition and, when asked, waits it out.
func (v *VM) wipe(kind, ms int32, wait bool) error {
	v.host.OnWipe(WipeEvent{Type: kind, DurationMs: ms, Wait: wait})
	if !wait {
		return nil
	}
	return v.timedWait(ms, true)
}
