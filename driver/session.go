package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/sigvm/vm"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrStopped is returned by Do once the session's worker has exited.
var ErrStopped = errors.New("session stopped")

// request is a unit of work to be executed on the VM goroutine.
type request struct {
	fn   func(*vm.VM) any
	done chan result
}

type result struct {
	value any
	err   error
}

// Session owns a VM and serializes all access to it through a single
// goroutine. The script loop, the tick pump and outside callers all go
// through Do.
type Session struct {
	ID string

	vm       *vm.VM
	host     *ChannelHost
	requests chan request
	quit     chan struct{}
	stopOnce sync.Once

	tick time.Duration

	// Linger keeps the worker and tick pump alive after the script stops,
	// until the context passed to Run is done.
	Linger bool
}

// NewSession wraps v, which must have been created with host.
func NewSession(v *vm.VM, host *ChannelHost) *Session {
	return &Session{
		ID:       uuid.NewString(),
		vm:       v,
		host:     host,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
		tick:     v.Config().TickInterval,
	}
}

// Host returns the session's host.
func (s *Session) Host() *ChannelHost { return s.host }

// loop processes requests sequentially until done closes.
func (s *Session) loop(done <-chan struct{}) {
	for {
		select {
		case req := <-s.requests:
			req.done <- s.execute(req.fn)
		case <-done:
			return
		}
	}
}

// execute runs fn on the VM, recovering from panics.
func (s *Session) execute(fn func(*vm.VM) any) (res result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("session %s: panic: %v", s.ID, r)
			res.err = fmt.Errorf("%v", r)
		}
	}()
	res.value = fn(s.vm)
	return res
}

// Do runs fn on the VM goroutine and waits for it.
func (s *Session) Do(fn func(*vm.VM) any) (any, error) {
	return s.DoContext(context.Background(), fn)
}

// DoContext is Do that gives up when ctx is done. A request already
// accepted by the worker still runs to completion.
func (s *Session) DoContext(ctx context.Context, fn func(*vm.VM) any) (any, error) {
	select {
	case <-s.quit:
		return nil, ErrStopped
	default:
	}
	req := request{fn: fn, done: make(chan result, 1)}
	select {
	case s.requests <- req:
	case <-s.quit:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-req.done:
		return res.value, res.err
	case <-s.quit:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Outcome is how a script run ended.
type Outcome struct {
	Status vm.Status
	Err    error
}

// Run drives the script until it stops and returns how it ended. Waits
// inside the script tick frame actions themselves; the tick pump covers
// the time the worker is idle, which with Linger includes the time after
// the script stopped. A fatal script error is also returned as the error.
func (s *Session) Run(ctx context.Context) (Outcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out Outcome
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer s.Stop()
		s.loop(gctx.Done())
		return nil
	})

	g.Go(func() error {
		if !s.Linger {
			defer cancel()
		}
		res, err := s.DoContext(gctx, func(v *vm.VM) any {
			st, err := v.Run(gctx)
			return Outcome{Status: st, Err: err}
		})
		if err != nil {
			if gctx.Err() != nil {
				out = Outcome{Status: vm.StatusInterrupted}
				return nil
			}
			return err
		}
		out = res.(Outcome)
		log.Infof("session %s: script %s", s.ID, out.Status)
		if out.Status == vm.StatusFatal {
			return out.Err
		}
		return nil
	})

	g.Go(func() error {
		t := time.NewTicker(s.tick)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				if s.host.ShuttingDown() {
					cancel()
					return nil
				}
				res, err := s.DoContext(gctx, func(v *vm.VM) any { return v.Tick(gctx) })
				if gctx.Err() != nil {
					return nil
				}
				if err != nil {
					return err
				}
				if terr, ok := res.(error); ok && terr != nil {
					return terr
				}
			}
		}
	})

	err := g.Wait()
	return out, err
}

// Start runs the worker without a script, for sessions that are only
// driven through Do. Stop ends it.
func (s *Session) Start() { go s.loop(s.quit) }

// Stop shuts down the worker. A stopped session cannot be restarted.
func (s *Session) Stop() { s.stopOnce.Do(func() { close(s.quit) }) }
