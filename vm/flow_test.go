package vm

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/chazu/sigvm/scene"
)

// ---------------------------------------------------------------------------
// Frame actions
// ---------------------------------------------------------------------------

func TestInvokeFrameActionRestoresPosition(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		skip := b.NewLabel()
		b.Goto(skip)
		b.DeclareCommand("fa")
		assignFlag(b, ElmA, 0, 9)
		b.Return()
		b.Mark(skip)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	h.vm.Calls().Push(&Frame{ReturnProg: prog})
	h.vm.Calls().Push(&Frame{ReturnProg: prog})

	st, err := h.vm.InvokeFrameAction(context.Background(), "fa")
	if err != nil {
		t.Fatalf("InvokeFrameAction: %v", err)
	}
	if st != StatusFrameAction {
		t.Fatalf("status = %v, want %v", st, StatusFrameAction)
	}
	if d := h.vm.Calls().Depth(); d != 3 {
		t.Errorf("depth = %d, want 3", d)
	}
	if pc := h.vm.Cursor().PC(); pc != 0 {
		t.Errorf("pc = %d, want 0", pc)
	}
	if got := h.flag(t, ElmA, 0); got != 9 {
		t.Errorf("A[0] = %d, frame action body did not run", got)
	}
}

func TestFrameActionRunsEveryTick(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		b.PushElement(ElmFrameAction, 0)
		b.PushInt(100)
		b.PushStr("counter")
		b.Command(1, []scene.Form{scene.FormInt, scene.FormStr}, nil, scene.FormVoid)
		command(b, scene.FormVoid, []int32{ElmWait}, 200)
		b.Return()

		b.DeclareCommand("counter")
		b.PushElement(ElmA, ElmArray, 1)
		b.PushElement(ElmA, ElmArray, 1)
		b.Property()
		b.PushInt(1)
		b.Operate2(scene.FormInt, scene.FormInt, scene.OpPlus)
		b.Assign(scene.FormElement, scene.FormInt, 1)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	if st := h.run(t); st != StatusHalted {
		t.Fatalf("status = %v", st)
	}
	// ticks at 0..112 ms; the tick at 112 is the last call
	if got := h.flag(t, ElmA, 1); got != 8 {
		t.Errorf("counter ran %d times, want 8", got)
	}
	if len(h.host.errors) != 0 {
		t.Errorf("unexpected errors %v", h.host.errorKinds())
	}
}

func TestJumpInsideFrameActionRejected(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		b.Return()
		b.DeclareCommand("fa")
		b.PushElement(ElmJump)
		b.PushStr("main")
		b.Command(1, []scene.Form{scene.FormStr}, nil, scene.FormVoid)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	if _, err := h.vm.InvokeFrameAction(context.Background(), "fa"); err != nil {
		t.Fatal(err)
	}
	if got := h.host.errorKinds(); !reflect.DeepEqual(got, []ErrorKind{UnsupportedCommand}) {
		t.Errorf("errors = %v", got)
	}
}

// interruptedActionScene starts frame action "act" and waits 50 ms, then
// sets A[2] = 5. The action sets A[0] = 1 and A[1] = 2.
func interruptedActionScene() *scene.Program {
	return program("main", func(b *scene.Builder) {
		b.PushElement(ElmFrameAction, 0)
		b.PushInt(1000)
		b.PushStr("act")
		b.Command(1, []scene.Form{scene.FormInt, scene.FormStr}, nil, scene.FormVoid)
		command(b, scene.FormVoid, []int32{ElmWait}, 50)
		assignFlag(b, ElmA, 2, 5)
		b.Return()

		b.DeclareCommand("act")
		assignFlag(b, ElmA, 0, 1)
		assignFlag(b, ElmA, 1, 2)
		b.Return()
	})
}

func TestInterruptInsideFrameActionResumesScript(t *testing.T) {
	tests := []struct {
		name string
		arm  func(h *harness, t *testing.T, cancel context.CancelFunc)
	}{
		{
			name: "host",
			arm: func(h *harness, t *testing.T, _ context.CancelFunc) {
				fired := false
				h.host.interrupt = func() bool {
					if !fired && h.flag(t, ElmA, 0) == 1 {
						fired = true
						return true
					}
					return false
				}
			},
		},
		{
			name: "context",
			arm: func(h *harness, t *testing.T, cancel context.CancelFunc) {
				h.host.interrupt = func() bool {
					if h.flag(t, ElmA, 0) == 1 {
						cancel()
					}
					return false
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := interruptedActionScene()
			h := newHarness(t, Config{}, prog)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			tt.arm(h, t, cancel)
			h.start(t, "main")

			st, err := h.vm.Run(ctx)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if st != StatusInterrupted {
				t.Fatalf("first run status = %v, want %v", st, StatusInterrupted)
			}
			if d := h.vm.Calls().Depth(); d != 1 {
				t.Errorf("depth after interrupt = %d, want 1", d)
			}
			i, _ := prog.CommandByName("act")
			if pc := h.vm.Cursor().PC(); pc >= int(prog.Commands[i].Offset) {
				t.Errorf("cursor pc %d left inside the frame action", pc)
			}
			if ints, strs, groups := h.vm.Stack().Depth(); ints+strs+groups != 0 {
				t.Errorf("stack left at %d/%d/%d", ints, strs, groups)
			}
			if got := h.flag(t, ElmA, 1); got != 0 {
				t.Errorf("A[1] = %d, abandoned action body kept running", got)
			}

			h.host.interrupt = nil
			if st := h.run(t); st != StatusHalted {
				t.Fatalf("second run status = %v, want %v", st, StatusHalted)
			}
			if got := h.flag(t, ElmA, 2); got != 5 {
				t.Errorf("A[2] = %d, script did not resume after the wait", got)
			}
			if d := h.vm.Calls().Depth(); d != 1 {
				t.Errorf("depth after resume = %d, want 1", d)
			}
		})
	}
}

func TestInvokeFrameActionInterrupted(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		skip := b.NewLabel()
		b.Goto(skip)
		b.DeclareCommand("fa")
		assignFlag(b, ElmA, 0, 1)
		assignFlag(b, ElmA, 1, 2)
		b.Return()
		b.Mark(skip)
		assignFlag(b, ElmA, 2, 5)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	h.host.interrupt = func() bool { return h.flag(t, ElmA, 0) == 1 }

	st, err := h.vm.InvokeFrameAction(context.Background(), "fa")
	if err != nil {
		t.Fatal(err)
	}
	if st != StatusInterrupted {
		t.Fatalf("status = %v, want %v", st, StatusInterrupted)
	}
	if d := h.vm.Calls().Depth(); d != 1 {
		t.Errorf("depth = %d, want 1", d)
	}
	if pc := h.vm.Cursor().PC(); pc != 0 {
		t.Errorf("pc = %d, want 0", pc)
	}

	h.host.interrupt = nil
	if st := h.run(t); st != StatusHalted {
		t.Fatalf("run status = %v, want %v", st, StatusHalted)
	}
	if got := h.flag(t, ElmA, 2); got != 5 {
		t.Errorf("A[2] = %d, want 5", got)
	}
}

// ---------------------------------------------------------------------------
// Waits and timers
// ---------------------------------------------------------------------------

func TestWipeSkippedByHost(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		command(b, scene.FormVoid, []int32{ElmWipe}, 1, 1000, 1)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.host.skip = func() bool { return h.clock.ticks >= 3 }
	start := h.clock.Now()
	h.start(t, "main")
	h.run(t)

	if elapsed := h.clock.Now().Sub(start); elapsed >= 64*time.Millisecond {
		t.Errorf("wipe waited %v after skip", elapsed)
	}
	want := []WipeEvent{{Type: 1, DurationMs: 1000, Wait: true}}
	if !reflect.DeepEqual(h.host.wipes, want) {
		t.Errorf("wipes = %+v", h.host.wipes)
	}
}

func TestUnskippableWaitIgnoresSkip(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		command(b, scene.FormVoid, []int32{ElmWait}, 100, 0)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.host.skip = func() bool { return true }
	start := h.clock.Now()
	h.start(t, "main")
	h.run(t)
	if elapsed := h.clock.Now().Sub(start); elapsed < 100*time.Millisecond {
		t.Errorf("unskippable wait ended after %v", elapsed)
	}
}

func TestWaitInterruptedByContext(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		command(b, scene.FormVoid, []int32{ElmWaitKey})
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.host.holdText = true
	ctx, cancel := context.WithCancel(context.Background())
	h.host.interrupt = func() bool {
		if h.clock.ticks >= 5 {
			cancel()
		}
		return false
	}
	h.start(t, "main")
	st, err := h.vm.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st != StatusInterrupted {
		t.Errorf("status = %v, want %v", st, StatusInterrupted)
	}
}

func TestTimerCommands(t *testing.T) {
	timer := func(sub int32) []int32 { return []int32{ElmTimer, ElmArray, 0, sub} }
	prog := program("main", func(b *scene.Builder) {
		command(b, scene.FormVoid, timer(timerStart))
		command(b, scene.FormVoid, []int32{ElmWait}, 100)
		b.PushElement(ElmA, ElmArray, 0)
		command(b, scene.FormInt, timer(timerGet))
		b.Assign(scene.FormElement, scene.FormInt, 1)

		command(b, scene.FormVoid, timer(timerStop))
		command(b, scene.FormVoid, []int32{ElmWait}, 50)
		b.PushElement(ElmA, ElmArray, 1)
		command(b, scene.FormInt, timer(timerGet))
		b.Assign(scene.FormElement, scene.FormInt, 1)

		command(b, scene.FormVoid, timer(timerSet), 1000)
		b.PushElement(ElmA, ElmArray, 2)
		command(b, scene.FormInt, timer(timerGet))
		b.Assign(scene.FormElement, scene.FormInt, 1)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	h.run(t)

	want := []int32{112, 112, 1000}
	for i, w := range want {
		if got := h.flag(t, ElmA, i); got != w {
			t.Errorf("A[%d] = %d, want %d", i, got, w)
		}
	}
}

func TestMathCommands(t *testing.T) {
	tests := []struct {
		sub  int32
		args []int32
		want int32
	}{
		{mathAbs, []int32{-7}, 7},
		{mathMin, []int32{3, -2}, -2},
		{mathMax, []int32{3, -2}, 3},
		{mathLimit, []int32{0, 120, 100}, 100},
		{mathLimit, []int32{0, -5, 100}, 0},
		{mathSign, []int32{-9}, -1},
		{mathSign, []int32{0}, 0},
		{mathRand, []int32{4, 4}, 4},
	}
	prog := program("main", func(b *scene.Builder) {
		for i, tt := range tests {
			b.PushElement(ElmA, ElmArray, int32(i))
			command(b, scene.FormInt, []int32{ElmMath, tt.sub}, tt.args...)
			b.Assign(scene.FormElement, scene.FormInt, 1)
		}
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	h.run(t)
	for i, tt := range tests {
		if got := h.flag(t, ElmA, i); got != tt.want {
			t.Errorf("math %d %v = %d, want %d", tt.sub, tt.args, got, tt.want)
		}
	}
}

func TestMathRandStaysInRange(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		for i := int32(0); i < 32; i++ {
			b.PushElement(ElmA, ElmArray, i)
			command(b, scene.FormInt, []int32{ElmMath, mathRand}, 10, 1)
			b.Assign(scene.FormElement, scene.FormInt, 1)
		}
		b.Return()
	})
	h := newHarness(t, Config{Seed: 7}, prog)
	h.start(t, "main")
	h.run(t)
	for i := 0; i < 32; i++ {
		if got := h.flag(t, ElmA, i); got < 1 || got > 10 {
			t.Fatalf("rand = %d, outside [1, 10]", got)
		}
	}
}

// ---------------------------------------------------------------------------
// Scene flow
// ---------------------------------------------------------------------------

func TestFarcallReturnsValue(t *testing.T) {
	main := program("main", func(b *scene.Builder) {
		b.PushElement(ElmA, ElmArray, 0)
		b.PushElement(ElmFarcall)
		b.PushStr("sub")
		b.PushInt(0)
		b.PushInt(5)
		b.Command(1, []scene.Form{scene.FormStr, scene.FormInt, scene.FormInt}, nil, scene.FormInt)
		b.Assign(scene.FormElement, scene.FormInt, 1)
		b.Return()
	})
	sub := program("sub", func(b *scene.Builder) {
		b.PushElement(ElmCall, CallL, ElmArray, 0)
		b.Property()
		b.PushInt(2)
		b.Operate2(scene.FormInt, scene.FormInt, scene.OpMultiply)
		b.Return(scene.FormInt)
	})
	h := newHarness(t, Config{}, main, sub)
	h.start(t, "main")
	if st := h.run(t); st != StatusHalted {
		t.Fatalf("status = %v", st)
	}
	if got := h.flag(t, ElmA, 0); got != 10 {
		t.Errorf("farcall result = %d, want 10", got)
	}
	if d := h.vm.Calls().Depth(); d != 1 {
		t.Errorf("depth = %d after return", d)
	}
}

func TestJumpToMissingScene(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		b.PushElement(ElmJump)
		b.PushStr("nowhere")
		b.Command(1, []scene.Form{scene.FormStr}, nil, scene.FormVoid)
		assignFlag(b, ElmA, 0, 1)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	h.run(t)
	if got := h.host.errorKinds(); !reflect.DeepEqual(got, []ErrorKind{SceneMissing}) {
		t.Errorf("errors = %v", got)
	}
	if h.flag(t, ElmA, 0) != 1 {
		t.Error("execution did not continue after the failed jump")
	}
}

func TestEndStopsRun(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		command(b, scene.FormVoid, []int32{ElmEnd})
		assignFlag(b, ElmA, 0, 1)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	if st := h.run(t); st != StatusEnded {
		t.Errorf("status = %v, want %v", st, StatusEnded)
	}
	if h.flag(t, ElmA, 0) != 0 {
		t.Error("instruction after END ran")
	}
}

// ---------------------------------------------------------------------------
// Procedures
// ---------------------------------------------------------------------------

func TestEndGameProcedure(t *testing.T) {
	main := program("main", func(b *scene.Builder) {
		assignFlag(b, ElmA, 0, 4)
		command(b, scene.FormVoid, []int32{ElmSyscom, syscomEndGame})
		assignFlag(b, ElmC, 0, 1)
		b.Return()
	})
	loader := program("loader", func(b *scene.Builder) {
		command(b, scene.FormVoid, []int32{ElmSyscom, syscomEndLoad})
		b.Return()
	})
	h := newHarness(t, Config{}, main, loader)
	h.start(t, "main")
	if st := h.run(t); st != StatusEndGame {
		t.Fatalf("status = %v, want %v", st, StatusEndGame)
	}
	wantSteps := []string{"end_game/wipe", "end_game/flush_save", "end_game/end_save", "end_game/halt"}
	if !reflect.DeepEqual(h.host.steps, wantSteps) {
		t.Errorf("steps = %v", h.host.steps)
	}
	if want := []FlushPoint{FlushEndGame, FlushEndSave}; !reflect.DeepEqual(h.host.flushes, want) {
		t.Errorf("flushes = %v", h.host.flushes)
	}
	if h.flag(t, ElmC, 0) != 0 {
		t.Error("instruction after end_game ran")
	}
	es := h.vm.PendingEndSave()
	if es == nil {
		t.Fatal("no end-save captured")
	}

	h.vm.Flags().SetInt(0, 0, 0)
	h.host.steps = nil
	h.start(t, "loader")
	h.run(t)
	if h.flag(t, ElmA, 0) != 4 {
		t.Error("end-load did not restore flags")
	}
	if h.flag(t, ElmC, 0) != 1 {
		t.Error("end-load did not resume after the end_game command")
	}
	wantSteps = []string{"end_load/wipe", "end_load/load_end_save", "end_load/restart_timer"}
	if !reflect.DeepEqual(h.host.steps, wantSteps) {
		t.Errorf("steps = %v", h.host.steps)
	}
}

func TestReturnToMenuProcedure(t *testing.T) {
	main := program("main", func(b *scene.Builder) {
		assignFlag(b, ElmA, 0, 1)
		command(b, scene.FormVoid, []int32{ElmSyscom, syscomReturnToMenu})
		assignFlag(b, ElmC, 0, 1)
		b.Return()
	})
	menu := program("menu", func(b *scene.Builder) {
		assignFlag(b, ElmB, 0, 7)
		b.Return()
	})
	h := newHarness(t, Config{MenuScene: "menu"}, main, menu)
	h.start(t, "main")
	if st := h.run(t); st != StatusHalted {
		t.Fatalf("status = %v", st)
	}
	if h.flag(t, ElmA, 0) != 1 || h.flag(t, ElmB, 0) != 7 || h.flag(t, ElmC, 0) != 0 {
		t.Errorf("flags A=%d B=%d C=%d", h.flag(t, ElmA, 0), h.flag(t, ElmB, 0), h.flag(t, ElmC, 0))
	}
	if len(h.host.steps) != 6 || h.host.steps[4] != "return_to_menu/jump_menu" {
		t.Errorf("steps = %v", h.host.steps)
	}
	if want := []FlushPoint{FlushReturnMenu}; !reflect.DeepEqual(h.host.flushes, want) {
		t.Errorf("flushes = %v", h.host.flushes)
	}
}

func TestReturnToMenuWithoutMenuScene(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		command(b, scene.FormVoid, []int32{ElmReturnMenu})
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	if st := h.run(t); st != StatusReturnMenu {
		t.Errorf("status = %v, want %v", st, StatusReturnMenu)
	}
}

func TestProcedurePreconditions(t *testing.T) {
	prog := program("main", func(b *scene.Builder) { b.Return() })
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	if h.vm.RunProcedure(ProcReturnToSel) {
		t.Error("return_to_sel ran without a selection point")
	}
	if h.vm.RunProcedure(ProcEndLoad) {
		t.Error("end_load ran without an end-save")
	}
	h.vm.features.enable[FeatureReturnMenu] = 0
	if h.vm.RunProcedure(ProcReturnToMenu) {
		t.Error("return_to_menu ran while disabled")
	}
	if len(h.host.steps) != 0 {
		t.Errorf("steps reported: %v", h.host.steps)
	}
}

func TestReturnToSelection(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		assignFlag(b, ElmA, 0, 1)
		b.Emit(scene.OpSelBlockStart)
		assignFlag(b, ElmA, 1, 1)
		b.Emit(scene.OpSelBlockEnd)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	h.run(t)
	h.vm.Flags().SetInt(0, 0, 5)
	h.vm.Flags().SetInt(0, 1, 5)

	if !h.vm.RunProcedure(ProcReturnToSel) {
		t.Fatal("return_to_sel did not replace the continuation")
	}
	if h.flag(t, ElmA, 0) != 1 || h.flag(t, ElmA, 1) != 0 {
		t.Errorf("flags after restore A0=%d A1=%d", h.flag(t, ElmA, 0), h.flag(t, ElmA, 1))
	}
	h.run(t)
	if h.flag(t, ElmA, 1) != 1 {
		t.Error("did not resume at the selection block")
	}
	if !h.vm.PersistentState().SelPointExists {
		t.Error("selection point dropped")
	}
}
