package vm

import (
	"reflect"
	"testing"

	"github.com/chazu/sigvm/scene"
)

func TestIncludedCommandRunsInItsScene(t *testing.T) {
	lib := program("lib", func(b *scene.Builder) {
		b.Return()
		b.DeclareCommand("double")
		b.PushElement(ElmCall, CallL, ElmArray, 0)
		b.Property()
		b.PushInt(2)
		b.Operate2(scene.FormInt, scene.FormInt, scene.OpMultiply)
		b.Return(scene.FormInt)
	})
	main := program("main", func(b *scene.Builder) {
		b.PushElement(ElmA, ElmArray, 0)
		b.PushElement(UserCmd(0))
		b.PushInt(21)
		b.Command(0, []scene.Form{scene.FormInt}, nil, scene.FormInt)
		b.Assign(scene.FormElement, scene.FormInt, 1)
		b.Return()
	})
	provider := scene.NewMapProvider(lib, main)
	provider.SetIncludedCommands([]scene.IncludedCommand{
		{Name: "double", Scene: "lib", Offset: lib.Commands[0].Offset},
	})
	host := &recordHost{}
	v := New(provider, host, Config{Clock: newFakeClock()})
	if err := v.Start("main", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Run(t.Context()); err != nil {
		t.Fatal(err)
	}
	if n, _ := v.Flags().Int(0, 0); n != 42 {
		t.Errorf("A[0] = %d, want 42", n)
	}
	if v.Cursor().SceneName() != "main" {
		t.Errorf("ended in %s", v.Cursor().SceneName())
	}
}

func TestUnknownSceneCommand(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		b.PushElement(ElmA, ElmArray, 0)
		b.PushElement(UserCmd(3))
		b.Command(0, nil, nil, scene.FormInt)
		b.Assign(scene.FormElement, scene.FormInt, 1)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	h.run(t)
	if got := h.host.errorKinds(); !reflect.DeepEqual(got, []ErrorKind{UnknownCommand}) {
		t.Errorf("errors = %v", got)
	}
	if ints, strs, _ := h.vm.Stack().Depth(); ints != 0 || strs != 0 {
		t.Errorf("stack holds %d/%d values after the failed call", ints, strs)
	}
}

func TestListPropertyCommands(t *testing.T) {
	list := UserProp(0)
	prog := program("main", func(b *scene.Builder) {
		b.DeclareProp("list", scene.FormIntList, 4)
		assign := func(i int32, n int32) {
			b.PushElement(list, ElmArray, i)
			b.PushInt(n)
			b.Assign(scene.FormElement, scene.FormInt, 1)
		}
		assign(1, 11)
		command(b, scene.FormVoid, []int32{list, listResize}, 6)
		b.PushElement(ElmA, ElmArray, 0)
		command(b, scene.FormInt, []int32{list, listGetSize})
		b.Assign(scene.FormElement, scene.FormInt, 1)
		b.PushElement(ElmA, ElmArray, 1)
		b.PushElement(list, ElmArray, 1)
		b.Property()
		b.Assign(scene.FormElement, scene.FormInt, 1)

		command(b, scene.FormVoid, []int32{list, listInit})
		b.PushElement(ElmA, ElmArray, 2)
		b.PushElement(list, ElmArray, 1)
		b.Property()
		b.Assign(scene.FormElement, scene.FormInt, 1)

		command(b, scene.FormVoid, []int32{list, listResize}, 2)
		b.PushElement(ElmA, ElmArray, 3)
		command(b, scene.FormInt, []int32{list, listGetSize})
		b.Assign(scene.FormElement, scene.FormInt, 1)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	h.run(t)

	for i, w := range []int32{6, 11, 0, 2} {
		if got := h.flag(t, ElmA, i); got != w {
			t.Errorf("A[%d] = %d, want %d", i, got, w)
		}
	}
	if len(h.host.errors) != 0 {
		t.Errorf("unexpected errors %v", h.host.errorKinds())
	}
}
