package vm

import (
	"reflect"
	"testing"
	"time"

	"github.com/chazu/sigvm/scene"
)

func TestAnimPropInterpolation(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		speed int32
		at    time.Duration
		want  int32
	}{
		{"before delay", speedLinear, 10 * time.Millisecond, 0},
		{"linear half", speedLinear, 70 * time.Millisecond, 50},
		{"ease in half", speedEaseIn, 70 * time.Millisecond, 25},
		{"ease out half", speedEaseOut, 70 * time.Millisecond, 75},
		{"done", speedLinear, 200 * time.Millisecond, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p animProp
			p.animate(t0, 100, 100, 20, tt.speed)
			if got := p.get(t0.Add(tt.at)); got != tt.want {
				t.Errorf("get(%v) = %d, want %d", tt.at, got, tt.want)
			}
		})
	}
}

func TestAnimPropSetCancelsEvent(t *testing.T) {
	t0 := time.Now()
	var p animProp
	p.animate(t0, 100, 1000, 0, speedLinear)
	if !p.running(t0) {
		t.Fatal("event not running")
	}
	p.set(7)
	if p.running(t0) || p.get(t0) != 7 {
		t.Errorf("after set: running=%v value=%d", p.running(t0), p.get(t0))
	}
}

func TestNamedArgumentOverridesPositional(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		b.PushElement(ElmBGM, audioPlay)
		b.PushStr("bgm01")
		b.PushInt(0)
		b.Command(1, []scene.Form{scene.FormStr, scene.FormInt}, []int32{1}, scene.FormVoid)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	h.run(t)
	want := []AudioEvent{{Channel: ChannelBGM, Action: AudioPlay, Name: "bgm01"}}
	if !reflect.DeepEqual(h.host.audio, want) {
		t.Errorf("audio = %+v", h.host.audio)
	}
}

func TestChannelVolumeAndState(t *testing.T) {
	ch := []int32{ElmPCMCh, ElmArray, 3}
	sub := func(s int32) []int32 { return append(append([]int32(nil), ch...), s) }
	prog := program("main", func(b *scene.Builder) {
		command(b, scene.FormVoid, sub(audioSetVolume), 300)
		b.PushElement(ElmA, ElmArray, 0)
		command(b, scene.FormInt, sub(audioGetVolume))
		b.Assign(scene.FormElement, scene.FormInt, 1)

		b.PushElement(sub(audioPlay)...)
		b.PushStr("rain")
		b.Command(1, []scene.Form{scene.FormStr}, nil, scene.FormVoid)
		b.PushElement(ElmA, ElmArray, 1)
		command(b, scene.FormInt, sub(audioCheck))
		b.Assign(scene.FormElement, scene.FormInt, 1)

		command(b, scene.FormVoid, sub(audioStop))
		b.PushElement(ElmA, ElmArray, 2)
		command(b, scene.FormInt, sub(audioCheck))
		b.Assign(scene.FormElement, scene.FormInt, 1)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	h.run(t)

	for i, w := range []int32{MaxVolume, 1, 0} {
		if got := h.flag(t, ElmA, i); got != w {
			t.Errorf("A[%d] = %d, want %d", i, got, w)
		}
	}
	if len(h.host.audio) != 3 || h.host.audio[1].Index != 3 || h.host.audio[2].Name != "rain" {
		t.Errorf("audio = %+v", h.host.audio)
	}
}

func TestChannelStopWithBadFadeKeepsState(t *testing.T) {
	check := func(b *scene.Builder, addr []int32, i int32) {
		b.PushElement(ElmA, ElmArray, i)
		command(b, scene.FormInt, addr)
		b.Assign(scene.FormElement, scene.FormInt, 1)
	}
	prog := program("main", func(b *scene.Builder) {
		b.PushElement(ElmBGM, audioPlay)
		b.PushStr("bgm01")
		b.Command(1, []scene.Form{scene.FormStr}, nil, scene.FormVoid)
		b.PushElement(ElmSE, audioPlay)
		b.PushStr("door")
		b.Command(1, []scene.Form{scene.FormStr}, nil, scene.FormVoid)

		for _, s := range []int32{audioStop, audioPause} {
			b.PushElement(ElmBGM, s)
			b.PushStr("slow")
			b.Command(1, []scene.Form{scene.FormStr}, nil, scene.FormVoid)
		}
		b.PushElement(ElmSE, audioStop)
		b.PushStr("slow")
		b.Command(1, []scene.Form{scene.FormStr}, nil, scene.FormVoid)

		check(b, []int32{ElmBGM, audioCheck}, 0)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	h.run(t)

	if got := h.flag(t, ElmA, 0); got != 1 {
		t.Errorf("bgm check = %d, want 1", got)
	}
	if h.vm.audio.bgm.paused || !h.vm.audio.se.playing {
		t.Errorf("state changed: bgm paused=%v se playing=%v", h.vm.audio.bgm.paused, h.vm.audio.se.playing)
	}
	if len(h.host.audio) != 2 {
		t.Errorf("audio = %+v, want only the two plays", h.host.audio)
	}
	want := []ErrorKind{ArgumentMismatch, ArgumentMismatch, ArgumentMismatch}
	if got := h.host.errorKinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("errors = %v, want %v", got, want)
	}
}

func TestPCMChannelOutOfRange(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		command(b, scene.FormVoid, []int32{ElmPCMCh, ElmArray, PCMChannelCount, audioStop})
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	h.run(t)
	if got := h.host.errorKinds(); !reflect.DeepEqual(got, []ErrorKind{IndexOutOfRange}) {
		t.Errorf("errors = %v", got)
	}
}

func TestObjectLifecycle(t *testing.T) {
	obj := func(code int32) []int32 { return []int32{ElmFront, 0, ElmArray, 3, code} }
	prog := program("main", func(b *scene.Builder) {
		b.PushElement(ElmA, ElmArray, 0)
		command(b, scene.FormInt, obj(objLifecycle|objExist))
		b.Assign(scene.FormElement, scene.FormInt, 1)

		b.PushElement(obj(objLifecycle | objCreate)...)
		b.PushStr("chara")
		b.PushInt(1)
		b.PushInt(10)
		b.PushInt(20)
		b.Command(1, []scene.Form{scene.FormStr, scene.FormInt, scene.FormInt, scene.FormInt}, nil, scene.FormVoid)

		b.PushElement(ElmA, ElmArray, 1)
		command(b, scene.FormInt, obj(objLifecycle|objExist))
		b.Assign(scene.FormElement, scene.FormInt, 1)

		command(b, scene.FormVoid, obj(ObjX), 50)
		b.PushElement(ElmA, ElmArray, 2)
		b.PushElement(obj(ObjX)...)
		b.Command(0, nil, nil, scene.FormInt)
		b.Assign(scene.FormElement, scene.FormInt, 1)

		b.PushElement(ElmA, ElmArray, 3)
		b.PushElement(obj(ObjAlpha)...)
		b.Command(0, nil, nil, scene.FormInt)
		b.Assign(scene.FormElement, scene.FormInt, 1)

		command(b, scene.FormVoid, obj(objLifecycle|objFree))
		b.PushElement(ElmA, ElmArray, 4)
		command(b, scene.FormInt, obj(objLifecycle|objExist))
		b.Assign(scene.FormElement, scene.FormInt, 1)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.start(t, "main")
	h.run(t)

	for i, w := range []int32{0, 1, 50, 255, 0} {
		if got := h.flag(t, ElmA, i); got != w {
			t.Errorf("A[%d] = %d, want %d", i, got, w)
		}
	}
	if len(h.host.objects) == 0 || h.host.objects[0].Action != "create_pct" || h.host.objects[0].Str != "chara" {
		t.Errorf("objects = %+v", h.host.objects)
	}
	if len(h.host.errors) != 0 {
		t.Errorf("unexpected errors %v", h.host.errorKinds())
	}
}

func TestScreenEventWait(t *testing.T) {
	effect := func(path ...int32) []int32 {
		return append([]int32{ElmScreen, screenEffect, ElmArray, 0}, path...)
	}
	prog := program("main", func(b *scene.Builder) {
		command(b, scene.FormVoid, effect(EffectX|propEventFlag, eventSet), 100, 100)
		b.PushElement(ElmA, ElmArray, 0)
		command(b, scene.FormInt, effect(EffectX|propEventFlag, eventCheck))
		b.Assign(scene.FormElement, scene.FormInt, 1)
		command(b, scene.FormVoid, effect(EffectX|propEventFlag, eventWait))
		b.PushElement(ElmA, ElmArray, 1)
		b.PushElement(effect(EffectX)...)
		b.Command(0, nil, nil, scene.FormInt)
		b.Assign(scene.FormElement, scene.FormInt, 1)
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	start := h.clock.Now()
	h.start(t, "main")
	h.run(t)

	if h.flag(t, ElmA, 0) != 1 {
		t.Error("event not running right after set")
	}
	if got := h.flag(t, ElmA, 1); got != 100 {
		t.Errorf("X after wait = %d, want 100", got)
	}
	if elapsed := h.clock.Now().Sub(start); elapsed < 100*time.Millisecond {
		t.Errorf("event wait returned after %v", elapsed)
	}
	if len(h.host.screen) != 1 || h.host.screen[0].Target != "effect" || h.host.screen[0].TimeMs != 100 {
		t.Errorf("screen = %+v", h.host.screen)
	}
}

func TestScriptSettings(t *testing.T) {
	prog := program("main", func(b *scene.Builder) {
		command(b, scene.FormVoid, []int32{ElmScript, scriptSkipMode}, 1)
		command(b, scene.FormVoid, []int32{ElmScript, scriptAutoWaitMs}, -5)
		b.PushElement(ElmA, ElmArray, 0)
		b.PushElement(ElmScript, scriptAutoWaitMs)
		b.Command(0, nil, nil, scene.FormInt)
		b.Assign(scene.FormElement, scene.FormInt, 1)

		b.PushStr("first")
		b.Text(0)
		b.PushStr("second")
		b.Text(0)
		b.PushElement(ElmA, ElmArray, 1)
		command(b, scene.FormInt, []int32{ElmScript, scriptMsgBackCount})
		b.Assign(scene.FormElement, scene.FormInt, 1)
		command(b, scene.FormVoid, []int32{ElmScript, scriptMsgBackClear})
		b.Return()
	})
	h := newHarness(t, Config{}, prog)
	h.host.holdText = true
	h.start(t, "main")
	h.run(t)

	if want := []SettingEvent{{Name: "skip_mode", Value: 1}}; !reflect.DeepEqual(h.host.settings, want) {
		t.Errorf("settings = %+v", h.host.settings)
	}
	if got := h.flag(t, ElmA, 0); got != 0 {
		t.Errorf("auto wait = %d, want 0", got)
	}
	if got := h.flag(t, ElmA, 1); got != 2 {
		t.Errorf("msgback count = %d, want 2", got)
	}
	if len(h.vm.History()) != 0 {
		t.Error("history not cleared")
	}
	if h.clock.ticks != 0 {
		t.Errorf("skip mode still waited %d ticks", h.clock.ticks)
	}
}
