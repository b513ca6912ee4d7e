package vm

// ---------------------------------------------------------------------------
// Tier 6: objects
// ---------------------------------------------------------------------------

// ObjectCount bounds object indices per stage.
const ObjectCount = 1024

// Object properties.
const (
	ObjDisp int32 = iota
	ObjPatNo
	ObjX
	ObjY
	ObjZ
	ObjLayer
	ObjOrder
	ObjAlpha
	ObjCenterX
	ObjCenterY
	ObjScaleX
	ObjScaleY
	ObjRotateZ
	ObjMono
	ObjReverse
	ObjBright
	ObjDark
	ObjColorR
	ObjColorG
	ObjColorB
	ObjColorRate
	ObjClipUse
	ObjClipLeft
	ObjClipTop
	ObjClipRight
	ObjClipBottom
	ObjWipeCopy
	ObjBlend
	objPropCount
)

// Command families above the scalar properties; the low byte is the sub.
const (
	objFamilyMask  int32 = 0xF00
	objSubMask     int32 = 0x0FF
	objLifecycle   int32 = 0x200
	objFrameAction int32 = 0x300
	objButton      int32 = 0x400
	objEmote       int32 = 0x500
	objMovie       int32 = 0x600
)

const (
	objCreate int32 = iota
	objCreateString
	objCreateMovie
	objCreateEmote
	objFree
	objInit
	objExist
	objGetFileName
	objSetPos
	objSetCenter
	objSetScale
	objSetClip
)

const (
	buttonSet int32 = iota
	buttonClear
	buttonGetNo
	buttonGetGroup
)

const (
	moviePause int32 = iota
	movieResume
	movieSeek
	movieCheck
	movieSetAutoFree
)

var objectDefaults = func() []int32 {
	d := make([]int32, objPropCount)
	d[ObjAlpha] = 255
	d[ObjScaleX] = 1000
	d[ObjScaleY] = 1000
	return d
}()

type objectKey struct {
	stage int32
	index int32
}

type object struct {
	props []animProp
	kind  string // "", "pct", "string", "movie" or "emote"
	file  string

	buttonNo    int32
	buttonGroup int32

	moviePaused bool
	autoFree    bool
}

func newObject() *object {
	return &object{props: newPropGroup(objectDefaults), buttonNo: -1, buttonGroup: -1}
}

func (v *VM) object(key objectKey) *object {
	o, ok := v.objects[key]
	if !ok {
		o = newObject()
		v.objects[key] = o
	}
	return o
}

func dispatchObject(v *VM, cmd *Command) bool {
	addr := cmd.Addr
	stage := addr.Head()
	if stage != ElmBack && stage != ElmFront && stage != ElmNext {
		return false
	}
	idx, ok := addr.Index(2)
	if len(addr) < 5 || addr[1] != 0 || !ok {
		v.scriptError(InvalidAddress, "object %s", addr)
		return true
	}
	if idx < 0 || idx >= ObjectCount {
		v.scriptError(IndexOutOfRange, "object[%d]", idx)
		return true
	}
	key := objectKey{stage: stage, index: idx}
	o := v.object(key)
	notify := func(prop int32, action string, value, timeMs int32) {
		v.host.OnObject(ObjectEvent{Stage: stage, Index: idx, Prop: prop, Action: action, Value: value, TimeMs: timeMs})
	}
	code := addr[4]
	sub := code & objSubMask
	switch code & objFamilyMask {
	case 0, propEventFlag:
		v.propGroupCommand(cmd, o.props, objectDefaults, addr[4:], notify)
	case objLifecycle:
		v.objectLifecycle(cmd, key, o, sub)
	case objFrameAction:
		v.actionCommand(cmd, Address{stage, 0, ElmArray, idx, objFrameAction}, sub)
	case objButton:
		v.objectButton(cmd, key, o, sub)
	case objEmote:
		if sub != 0 {
			v.scriptError(UnknownCommand, "emote sub %d", sub)
			break
		}
		r := v.args(cmd)
		motion := r.Str(0, "")
		if r.ok() {
			v.host.OnObject(ObjectEvent{Stage: stage, Index: idx, Prop: code, Action: "play_motion", Str: motion})
		}
	case objMovie:
		v.objectMovie(cmd, key, o, sub)
	default:
		v.scriptError(InvalidAddress, "object property %#x", code)
	}
	return true
}

func (v *VM) objectLifecycle(cmd *Command, key objectKey, o *object, sub int32) {
	r := v.args(cmd)
	ev := ObjectEvent{Stage: key.stage, Index: key.index, Prop: objLifecycle | sub}
	switch sub {
	case objCreate, objCreateString, objCreateMovie, objCreateEmote:
		file := r.Str(0, "")
		disp := r.Int(1, 0)
		x, y := r.Int(2, 0), r.Int(3, 0)
		if !r.ok() {
			return
		}
		*o = *newObject()
		o.kind = [...]string{"pct", "string", "movie", "emote"}[sub]
		o.file = file
		o.props[ObjDisp].val = disp
		o.props[ObjX].val = x
		o.props[ObjY].val = y
		if sub == objCreateMovie {
			o.autoFree = r.Bool(4, true)
		}
		ev.Action, ev.Str, ev.Value = "create_"+o.kind, file, disp
	case objFree:
		delete(v.objects, key)
		ev.Action = "free"
	case objInit:
		o.props = newPropGroup(objectDefaults)
		ev.Action = "init"
	case objExist:
		v.resultBool(cmd, o.kind != "")
		return
	case objGetFileName:
		v.resultStr(cmd, o.file)
		return
	case objSetPos:
		x, y := r.Int(0, o.props[ObjX].val), r.Int(1, o.props[ObjY].val)
		z := r.Int(2, o.props[ObjZ].val)
		if !r.ok() {
			return
		}
		o.props[ObjX].set(x)
		o.props[ObjY].set(y)
		o.props[ObjZ].set(z)
		ev.Action = "set_pos"
	case objSetCenter:
		x, y := r.Int(0, 0), r.Int(1, 0)
		if !r.ok() {
			return
		}
		o.props[ObjCenterX].set(x)
		o.props[ObjCenterY].set(y)
		ev.Action = "set_center"
	case objSetScale:
		x, y := r.Int(0, 1000), r.Int(1, 1000)
		if !r.ok() {
			return
		}
		o.props[ObjScaleX].set(x)
		o.props[ObjScaleY].set(y)
		ev.Action = "set_scale"
	case objSetClip:
		use := r.Int(0, 1)
		l, t := r.Int(1, 0), r.Int(2, 0)
		rt, b := r.Int(3, 0), r.Int(4, 0)
		if !r.ok() {
			return
		}
		o.props[ObjClipUse].set(use)
		o.props[ObjClipLeft].set(l)
		o.props[ObjClipTop].set(t)
		o.props[ObjClipRight].set(rt)
		o.props[ObjClipBottom].set(b)
		ev.Action = "set_clip"
	default:
		v.scriptError(UnknownCommand, "object lifecycle sub %d", sub)
		return
	}
	v.host.OnObject(ev)
}

func (v *VM) objectButton(cmd *Command, key objectKey, o *object, sub int32) {
	switch sub {
	case buttonSet:
		r := v.args(cmd)
		no, group := r.Int(0, 0), r.Int(1, 0)
		if !r.ok() {
			return
		}
		o.buttonNo, o.buttonGroup = no, group
		v.host.OnObject(ObjectEvent{Stage: key.stage, Index: key.index, Prop: objButton | sub, Action: "button_set", Value: no})
	case buttonClear:
		o.buttonNo, o.buttonGroup = -1, -1
		v.host.OnObject(ObjectEvent{Stage: key.stage, Index: key.index, Prop: objButton | sub, Action: "button_clear"})
	case buttonGetNo:
		v.resultInt(cmd, o.buttonNo)
	case buttonGetGroup:
		v.resultInt(cmd, o.buttonGroup)
	default:
		v.scriptError(UnknownCommand, "button sub %d", sub)
	}
}

func (v *VM) objectMovie(cmd *Command, key objectKey, o *object, sub int32) {
	ev := ObjectEvent{Stage: key.stage, Index: key.index, Prop: objMovie | sub}
	switch sub {
	case moviePause:
		o.moviePaused = true
		ev.Action = "movie_pause"
	case movieResume:
		o.moviePaused = false
		ev.Action = "movie_resume"
	case movieSeek:
		r := v.args(cmd)
		ms := r.Int(0, 0)
		if !r.ok() {
			return
		}
		ev.Action, ev.Value = "movie_seek", ms
	case movieCheck:
		v.resultBool(cmd, o.kind == "movie" && !o.moviePaused)
		return
	case movieSetAutoFree:
		r := v.args(cmd)
		on := r.Bool(0, true)
		if !r.ok() {
			return
		}
		o.autoFree = on
		ev.Action, ev.Value = "movie_auto_free", b2i(on)
	default:
		v.scriptError(UnknownCommand, "movie sub %d", sub)
		return
	}
	v.host.OnObject(ev)
}
