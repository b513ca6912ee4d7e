package vm

import (
	"math"
	"testing"

	"github.com/chazu/sigvm/scene"
)

func TestIntOperators(t *testing.T) {
	tests := []struct {
		name string
		l, r int32
		op   scene.Operator
		want int32
	}{
		{"plus", 7, 5, scene.OpPlus, 12},
		{"minus", 7, 10, scene.OpMinus, -3},
		{"wrap", math.MaxInt32, 1, scene.OpPlus, math.MinInt32},
		{"multiply", -6, 7, scene.OpMultiply, -42},
		{"divide truncates", -7, 2, scene.OpDivide, -3},
		{"min int / -1", math.MinInt32, -1, scene.OpDivide, math.MinInt32},
		{"modulo", -7, 3, scene.OpModulo, -1},
		{"equal", 3, 3, scene.OpEqual, 1},
		{"not equal", 3, 3, scene.OpNotEqual, 0},
		{"greater", 4, 3, scene.OpGreater, 1},
		{"less equal", 4, 3, scene.OpLessEqual, 0},
		{"logical and", 2, 0, scene.OpLogicalAnd, 0},
		{"logical or", 2, 0, scene.OpLogicalOr, 1},
		{"and", 0b1100, 0b1010, scene.OpAnd, 0b1000},
		{"xor", 0b1100, 0b1010, scene.OpXor, 0b0110},
		{"shift left masks count", 1, 33, scene.OpShiftLeft, 2},
		{"arithmetic shift", -8, 1, scene.OpShiftRight, -4},
		{"logical shift", -8, 28, scene.OpShiftRightU, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{}, program("main", func(b *scene.Builder) {
				b.PushInt(tt.l)
				b.PushInt(tt.r)
				b.Operate2(scene.FormInt, scene.FormInt, tt.op)
				b.Return()
			}))
			h.start(t, "main")
			h.run(t)
			if got := h.vm.Stack().PopInt(); got != tt.want {
				t.Errorf("%d %v %d = %d, want %d", tt.l, tt.op, tt.r, got, tt.want)
			}
			if len(h.host.errors) != 0 {
				t.Errorf("unexpected errors %v", h.host.errorKinds())
			}
		})
	}
}

func TestUnaryOperators(t *testing.T) {
	tests := []struct {
		op   scene.Operator
		x    int32
		want int32
	}{
		{scene.OpPlus, 5, 5},
		{scene.OpMinus, 5, -5},
		{scene.OpTilde, 0, -1},
	}
	for _, tt := range tests {
		h := newHarness(t, Config{}, program("main", func(b *scene.Builder) {
			b.PushInt(tt.x)
			b.Operate1(scene.FormInt, tt.op)
			b.Return()
		}))
		h.start(t, "main")
		h.run(t)
		if got := h.vm.Stack().PopInt(); got != tt.want {
			t.Errorf("%v %d = %d, want %d", tt.op, tt.x, got, tt.want)
		}
	}
}

func TestStringOperators(t *testing.T) {
	tests := []struct {
		name    string
		emit    func(b *scene.Builder)
		wantStr string
		wantInt int32
		isInt   bool
	}{
		{"concat", func(b *scene.Builder) {
			b.PushStr("ab")
			b.PushStr("cd")
			b.Operate2(scene.FormStr, scene.FormStr, scene.OpPlus)
		}, "abcd", 0, false},
		{"repeat", func(b *scene.Builder) {
			b.PushStr("ab")
			b.PushInt(3)
			b.Operate2(scene.FormStr, scene.FormInt, scene.OpMultiply)
		}, "ababab", 0, false},
		{"repeat non-positive", func(b *scene.Builder) {
			b.PushStr("ab")
			b.PushInt(-2)
			b.Operate2(scene.FormStr, scene.FormInt, scene.OpMultiply)
		}, "", 0, false},
		{"caseless equal", func(b *scene.Builder) {
			b.PushStr("Hello")
			b.PushStr("hELLO")
			b.Operate2(scene.FormStr, scene.FormStr, scene.OpEqual)
		}, "", 1, true},
		{"caseless less", func(b *scene.Builder) {
			b.PushStr("apple")
			b.PushStr("BANANA")
			b.Operate2(scene.FormStr, scene.FormStr, scene.OpLess)
		}, "", 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{}, program("main", func(b *scene.Builder) {
				tt.emit(b)
				b.Return()
			}))
			h.start(t, "main")
			h.run(t)
			if tt.isInt {
				if got := h.vm.Stack().PopInt(); got != tt.wantInt {
					t.Errorf("got %d, want %d", got, tt.wantInt)
				}
				return
			}
			if got := h.vm.Stack().PopStr(); got != tt.wantStr {
				t.Errorf("got %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestUnknownOperatorPushesNothing(t *testing.T) {
	h := newHarness(t, Config{}, program("main", func(b *scene.Builder) {
		b.PushInt(1)
		b.PushInt(2)
		b.Operate2(scene.FormInt, scene.FormInt, scene.Operator(99))
		b.Return()
	}))
	h.start(t, "main")
	h.run(t)
	if ints, _, _ := h.vm.Stack().Depth(); ints != 0 {
		t.Errorf("int depth = %d, want 0", ints)
	}
}

func TestModuloByZero(t *testing.T) {
	h := newHarness(t, Config{}, program("main", func(b *scene.Builder) {
		b.PushInt(9)
		b.PushInt(0)
		b.Operate2(scene.FormInt, scene.FormInt, scene.OpModulo)
		b.Return()
	}))
	h.start(t, "main")
	h.run(t)
	if got := h.vm.Stack().PopInt(); got != 0 {
		t.Errorf("9 %% 0 = %d, want 0", got)
	}
	if k := h.host.errorKinds(); len(k) != 1 || k[0] != DivideByZero {
		t.Errorf("errors = %v", k)
	}
}
