package vm

import (
	"context"
	"testing"
	"time"

	"github.com/chazu/sigvm/scene"
)

// ---------------------------------------------------------------------------
// Test doubles
// ---------------------------------------------------------------------------

// fakeClock advances only when slept on.
type fakeClock struct {
	now   time.Time
	ticks int
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	c.ticks++
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// recordHost records every callback.
type recordHost struct {
	NopHost

	names     []string
	texts     []string
	errors    []*ScriptError
	fatals    []error
	commands  []*Command
	assigns   []Address
	locations []Location
	audio     []AudioEvent
	wipes     []WipeEvent
	screen    []ScreenEvent
	objects   []ObjectEvent
	settings  []SettingEvent
	steps     []string
	flushes   []FlushPoint
	msgBack   []MessageBackEvent

	commandResult Value
	holdText      bool
	skip          func() bool
	interrupt     func() bool
}

func (h *recordHost) OnName(name string) { h.names = append(h.names, name) }
func (h *recordHost) OnText(text string, _ int32) { h.texts = append(h.texts, text) }

func (h *recordHost) OnCommand(cmd *Command) Value {
	h.commands = append(h.commands, cmd)
	return h.commandResult
}

func (h *recordHost) OnAssign(addr Address, _ int32, _ Value) {
	h.assigns = append(h.assigns, addr)
}

func (h *recordHost) OnLocation(loc Location) { h.locations = append(h.locations, loc) }
func (h *recordHost) OnMessageBack(ev MessageBackEvent) { h.msgBack = append(h.msgBack, ev) }
func (h *recordHost) OnSetting(ev SettingEvent) { h.settings = append(h.settings, ev) }
func (h *recordHost) OnAudio(ev AudioEvent) { h.audio = append(h.audio, ev) }
func (h *recordHost) OnWipe(ev WipeEvent) { h.wipes = append(h.wipes, ev) }
func (h *recordHost) OnScreen(ev ScreenEvent) { h.screen = append(h.screen, ev) }
func (h *recordHost) OnObject(ev ObjectEvent) { h.objects = append(h.objects, ev) }
func (h *recordHost) OnSaveFlush(p FlushPoint) { h.flushes = append(h.flushes, p) }
func (h *recordHost) OnError(err *ScriptError) { h.errors = append(h.errors, err) }
func (h *recordHost) OnFatal(err error) { h.fatals = append(h.fatals, err) }

func (h *recordHost) OnProcedure(p Procedure, s Step) {
	h.steps = append(h.steps, p.String()+"/"+s.String())
}

func (h *recordHost) ShouldSkipWait() bool { return h.skip != nil && h.skip() }
func (h *recordHost) ShouldInterrupt() bool { return h.interrupt != nil && h.interrupt() }
func (h *recordHost) PollAdvance() bool { return !h.holdText }

func (h *recordHost) errorKinds() []ErrorKind {
	var out []ErrorKind
	for _, e := range h.errors {
		out = append(out, e.Kind)
	}
	return out
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type harness struct {
	vm       *VM
	host     *recordHost
	clock    *fakeClock
	provider *scene.MapProvider
}

func newHarness(t *testing.T, cfg Config, progs ...*scene.Program) *harness {
	t.Helper()
	h := &harness{
		host:     &recordHost{},
		clock:    newFakeClock(),
		provider: scene.NewMapProvider(progs...),
	}
	cfg.Clock = h.clock
	h.vm = New(h.provider, h.host, cfg)
	return h
}

// start positions the VM at z 0 of the named scene.
func (h *harness) start(t *testing.T, name string) {
	t.Helper()
	if err := h.vm.Start(name, 0); err != nil {
		t.Fatalf("Start(%q): %v", name, err)
	}
}

// run runs to completion and fails on a returned error.
func (h *harness) run(t *testing.T) Status {
	t.Helper()
	st, err := h.vm.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return st
}

// program builds a one-scene program from the given emitter.
func program(name string, emit func(b *scene.Builder)) *scene.Program {
	b := scene.NewBuilder(name)
	emit(b)
	return b.Program()
}

// flag returns int flag bank[i].
func (h *harness) flag(t *testing.T, bank int32, i int) int32 {
	t.Helper()
	b, _ := intFlagBank(bank)
	n, ok := h.vm.Flags().Int(b, i)
	if !ok {
		t.Fatalf("flag %d[%d] out of range", bank, i)
	}
	return n
}

// assignFlag emits bank[i] = n.
func assignFlag(b *scene.Builder, bank, i, n int32) {
	b.PushElement(bank, ElmArray, i)
	b.PushInt(n)
	b.Assign(scene.FormElement, scene.FormInt, 1)
}

// command emits a COMMAND on addr with int arguments.
func command(b *scene.Builder, ret scene.Form, addr []int32, args ...int32) {
	b.PushElement(addr...)
	forms := make([]scene.Form, len(args))
	for i, a := range args {
		b.PushInt(a)
		forms[i] = scene.FormInt
	}
	b.Command(1, forms, nil, ret)
}
