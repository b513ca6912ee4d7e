// Package driver runs a VM on a dedicated goroutine and connects it to a
// presentation layer through channels.
package driver

import (
	"sync"
	"sync/atomic"

	"github.com/chazu/sigvm/vm"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("sigvm.driver")

// EventKind identifies what an Event carries.
type EventKind int

const (
	EventName EventKind = iota
	EventText
	EventLocation
	EventMessageBack
	EventSetting
	EventAudio
	EventWipe
	EventScreen
	EventObject
	EventProcedure
	EventFlush
	EventCommand
	EventAssign
	EventError
	EventFatal
)

var eventKindNames = [...]string{
	"name", "text", "location", "msgback", "setting", "audio", "wipe",
	"screen", "object", "procedure", "flush", "command", "assign", "error", "fatal",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "event?"
}

// Event is one observable effect of the script. Text holds the name or
// message for EventName and EventText; Data holds the vm event value for
// the rest.
type Event struct {
	Kind EventKind
	Text string
	Data any
}

// ProcedureStep is the Data of an EventProcedure.
type ProcedureStep struct {
	Procedure vm.Procedure
	Step      vm.Step
}

// CommandFunc answers commands no built-in tier claimed. It runs on the
// VM goroutine.
type CommandFunc func(cmd *vm.Command) vm.Value

// FlushFunc persists state at a flush point. It runs on the VM goroutine,
// so it may read the VM directly.
type FlushFunc func(point vm.FlushPoint)

// ChannelHost is a vm.Host that forwards effects as Events on a buffered
// channel. Input arrives through Advance, SetSkip and Shutdown, which are
// safe to call from any goroutine.
type ChannelHost struct {
	vm.NopHost

	events  chan Event
	advance chan struct{}
	done    chan struct{}
	once    sync.Once

	shutdown atomic.Bool
	skip     atomic.Bool
	auto     atomic.Bool

	commands CommandFunc
	flush    FlushFunc
}

// NewChannelHost creates a host whose event channel holds buffer events.
func NewChannelHost(buffer int) *ChannelHost {
	return &ChannelHost{
		events:  make(chan Event, buffer),
		advance: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Events returns the event stream. It is closed by Close.
func (h *ChannelHost) Events() <-chan Event { return h.events }

// SetCommandFunc installs the fallback command handler.
func (h *ChannelHost) SetCommandFunc(fn CommandFunc) { h.commands = fn }

// Advance lets a waiting message continue. Extra advances before the
// next message are coalesced.
func (h *ChannelHost) Advance() {
	select {
	case h.advance <- struct{}{}:
	default:
	}
}

// SetFlushFunc installs the persistence callback for flush points.
func (h *ChannelHost) SetFlushFunc(fn FlushFunc) { h.flush = fn }

// SetSkip turns wait skipping on or off.
func (h *ChannelHost) SetSkip(on bool) { h.skip.Store(on) }

// SetAutoAdvance makes every message advance on its own.
func (h *ChannelHost) SetAutoAdvance(on bool) { h.auto.Store(on) }

// AutoAdvance reports whether messages advance on their own.
func (h *ChannelHost) AutoAdvance() bool { return h.auto.Load() }

// Shutdown asks the running script to stop at the next check.
func (h *ChannelHost) Shutdown() { h.shutdown.Store(true) }

// ShuttingDown reports whether Shutdown was called.
func (h *ChannelHost) ShuttingDown() bool { return h.shutdown.Load() }

// Close stops event delivery and closes the event channel. Call it once
// the VM goroutine is done.
func (h *ChannelHost) Close() {
	h.once.Do(func() {
		close(h.done)
		close(h.events)
	})
}

// emit blocks until the event is consumed or the host shuts down.
func (h *ChannelHost) emit(ev Event) {
	if h.shutdown.Load() {
		return
	}
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

func (h *ChannelHost) OnName(name string) { h.emit(Event{Kind: EventName, Text: name}) }

func (h *ChannelHost) OnText(text string, readFlag int32) {
	h.emit(Event{Kind: EventText, Text: text, Data: readFlag})
}

func (h *ChannelHost) OnCommand(cmd *vm.Command) vm.Value {
	h.emit(Event{Kind: EventCommand, Data: cmd})
	if h.commands != nil {
		return h.commands(cmd)
	}
	return vm.Value{}
}

func (h *ChannelHost) OnAssign(addr vm.Address, al int32, v vm.Value) {
	h.emit(Event{Kind: EventAssign, Data: vm.Command{Addr: addr, AL: al, Args: []vm.Arg{{ID: vm.Positional, Value: v}}}})
}

func (h *ChannelHost) OnLocation(loc vm.Location) { h.emit(Event{Kind: EventLocation, Data: loc}) }

func (h *ChannelHost) OnMessageBack(ev vm.MessageBackEvent) {
	h.emit(Event{Kind: EventMessageBack, Data: ev})
}

func (h *ChannelHost) OnSetting(ev vm.SettingEvent) { h.emit(Event{Kind: EventSetting, Data: ev}) }
func (h *ChannelHost) OnAudio(ev vm.AudioEvent) { h.emit(Event{Kind: EventAudio, Data: ev}) }
func (h *ChannelHost) OnWipe(ev vm.WipeEvent) { h.emit(Event{Kind: EventWipe, Data: ev}) }
func (h *ChannelHost) OnScreen(ev vm.ScreenEvent) { h.emit(Event{Kind: EventScreen, Data: ev}) }
func (h *ChannelHost) OnObject(ev vm.ObjectEvent) { h.emit(Event{Kind: EventObject, Data: ev}) }

func (h *ChannelHost) OnProcedure(p vm.Procedure, s vm.Step) {
	h.emit(Event{Kind: EventProcedure, Data: ProcedureStep{Procedure: p, Step: s}})
}

func (h *ChannelHost) OnSaveFlush(point vm.FlushPoint) {
	if h.flush != nil {
		h.flush(point)
	}
	h.emit(Event{Kind: EventFlush, Data: point})
}

func (h *ChannelHost) ShouldInterrupt() bool { return h.shutdown.Load() }
func (h *ChannelHost) ShouldSkipWait() bool { return h.skip.Load() }

func (h *ChannelHost) PollAdvance() bool {
	if h.auto.Load() {
		return true
	}
	select {
	case <-h.advance:
		return true
	default:
		return false
	}
}

func (h *ChannelHost) OnError(err *vm.ScriptError) {
	h.emit(Event{Kind: EventError, Text: err.Error(), Data: err})
}

func (h *ChannelHost) OnFatal(err error) {
	h.emit(Event{Kind: EventFatal, Text: err.Error(), Data: err})
}
