package driver

import (
	"context"
	"errors"

	"github.com/chazu/sigvm/store"
	"github.com/chazu/sigvm/vm"
	"github.com/chazu/sigvm/vm/savestate"
)

// Persister writes VM state at flush points and restores it at startup.
// Flush runs on the VM goroutine.
type Persister interface {
	Flush(ctx context.Context, v *vm.VM, point vm.FlushPoint) error
	Restore(ctx context.Context, v *vm.VM) error
}

// slotKinds are the slot maps mirrored into the slot database.
var slotKinds = [...]vm.SlotKind{vm.SlotStandard, vm.SlotQuick, vm.SlotInner, vm.SlotEnd}

// StorePersister keeps the persistent state in one file, end-saves in a
// directory of numbered files and slot maps in a database. Empty fields
// are skipped.
type StorePersister struct {
	PersistentPath string
	EndSaves       *store.EndSaveDir
	EndSlot        int32
	Slots          *store.SlotDB
	Limits         savestate.Limits
}

func (p *StorePersister) Flush(ctx context.Context, v *vm.VM, point vm.FlushPoint) error {
	var errs []error
	if p.PersistentPath != "" {
		errs = append(errs, store.WritePersistent(p.PersistentPath, v.PersistentState()))
	}
	if point == vm.FlushEndSave && p.EndSaves != nil {
		if es := v.PendingEndSave(); es != nil {
			errs = append(errs, p.EndSaves.Write(p.EndSlot, es))
		}
	}
	if p.Slots != nil {
		for _, kind := range slotKinds {
			errs = append(errs, p.Slots.SyncFrom(ctx, v.Slots(kind)))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		log.Errorf("flush %s: %s", point, err)
	} else {
		log.Debugf("flushed %s", point)
	}
	return err
}

// Restore loads whatever was saved before. Missing files are not errors.
func (p *StorePersister) Restore(ctx context.Context, v *vm.VM) error {
	if p.PersistentPath != "" {
		ps, err := store.ReadPersistent(p.PersistentPath, p.Limits)
		if err != nil {
			return err
		}
		if ps != nil {
			if err := v.RestorePersistent(ps); err != nil {
				return err
			}
		}
	}
	if p.Slots != nil {
		for _, kind := range slotKinds {
			if err := p.Slots.LoadInto(ctx, v.Slots(kind)); err != nil {
				return err
			}
		}
	}
	if p.EndSaves != nil {
		es, err := p.EndSaves.Read(p.EndSlot, p.Limits)
		switch {
		case errors.Is(err, store.ErrSlotNotFound):
		case err != nil:
			return err
		default:
			v.SetEndSave(es)
		}
	}
	return nil
}

// Attach installs p as h's flush handler. Flush errors are reported as
// error events; the script keeps running.
func Attach(ctx context.Context, h *ChannelHost, v *vm.VM, p Persister) {
	h.SetFlushFunc(func(point vm.FlushPoint) {
		if err := p.Flush(ctx, v, point); err != nil {
			h.emit(Event{Kind: EventError, Text: err.Error(), Data: err})
		}
	})
}
