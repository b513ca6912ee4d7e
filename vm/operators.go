package vm

import (
	"strings"

	"github.com/chazu/sigvm/scene"
)

// ---------------------------------------------------------------------------
// Unary operators
// ---------------------------------------------------------------------------

func (v *VM) operate1(form scene.Form, op scene.Operator) {
	if form != scene.FormInt && form != scene.FormLabel {
		v.stack.Pop(form)
		return
	}
	x := v.stack.PopInt()
	switch op {
	case scene.OpPlus:
		v.stack.PushInt(x)
	case scene.OpMinus:
		v.stack.PushInt(-x)
	case scene.OpTilde:
		v.stack.PushInt(^x)
	}
}

// ---------------------------------------------------------------------------
// Binary operators
// ---------------------------------------------------------------------------

func isIntForm(f scene.Form) bool {
	return f == scene.FormInt || f == scene.FormLabel
}

func (v *VM) operate2(left, right scene.Form, op scene.Operator) {
	r := v.stack.Pop(right)
	l := v.stack.Pop(left)
	switch {
	case isIntForm(left) && isIntForm(right):
		if res, ok := v.intOp(l.Int, r.Int, op); ok {
			v.stack.PushInt(res)
		}
	case left == scene.FormStr && right == scene.FormStr:
		v.strOp(l.Str, r.Str, op)
	case left == scene.FormStr && isIntForm(right):
		if op == scene.OpMultiply {
			v.stack.PushStr(repeat(l.Str, r.Int))
		}
	}
}

// intOp evaluates an integer operator with 32-bit wrap-around. Unknown
// operators produce nothing.
func (v *VM) intOp(l, r int32, op scene.Operator) (int32, bool) {
	switch op {
	case scene.OpPlus:
		return l + r, true
	case scene.OpMinus:
		return l - r, true
	case scene.OpMultiply:
		return l * r, true
	case scene.OpDivide:
		if r == 0 {
			v.scriptError(DivideByZero, "%d / 0", l)
			return 0, true
		}
		if l == -1<<31 && r == -1 {
			return l, true
		}
		return l / r, true
	case scene.OpModulo:
		if r == 0 {
			v.scriptError(DivideByZero, "%d %% 0", l)
			return 0, true
		}
		if r == -1 {
			return 0, true
		}
		return l % r, true
	case scene.OpEqual:
		return b2i(l == r), true
	case scene.OpNotEqual:
		return b2i(l != r), true
	case scene.OpGreater:
		return b2i(l > r), true
	case scene.OpGreaterEqual:
		return b2i(l >= r), true
	case scene.OpLess:
		return b2i(l < r), true
	case scene.OpLessEqual:
		return b2i(l <= r), true
	case scene.OpLogicalAnd:
		return b2i(l != 0 && r != 0), true
	case scene.OpLogicalOr:
		return b2i(l != 0 || r != 0), true
	case scene.OpAnd:
		return l & r, true
	case scene.OpOr:
		return l | r, true
	case scene.OpXor:
		return l ^ r, true
	case scene.OpShiftLeft:
		return l << (uint32(r) & 31), true
	case scene.OpShiftRight:
		return l >> (uint32(r) & 31), true
	case scene.OpShiftRightU:
		return int32(uint32(l) >> (uint32(r) & 31)), true
	}
	return 0, false
}

func (v *VM) strOp(l, r string, op scene.Operator) {
	if op == scene.OpPlus {
		v.stack.PushStr(l + r)
		return
	}
	c := strings.Compare(v.fold.String(l), v.fold.String(r))
	switch op {
	case scene.OpEqual:
		v.stack.PushInt(b2i(c == 0))
	case scene.OpNotEqual:
		v.stack.PushInt(b2i(c != 0))
	case scene.OpGreater:
		v.stack.PushInt(b2i(c > 0))
	case scene.OpGreaterEqual:
		v.stack.PushInt(b2i(c >= 0))
	case scene.OpLess:
		v.stack.PushInt(b2i(c < 0))
	case scene.OpLessEqual:
		v.stack.PushInt(b2i(c <= 0))
	}
}

func repeat(s string, n int32) string {
	if n <= 0 || s == "" {
		return ""
	}
	return strings.Repeat(s, int(n))
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
