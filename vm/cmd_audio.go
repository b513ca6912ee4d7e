package vm

// ---------------------------------------------------------------------------
// Tier 4: audio
// ---------------------------------------------------------------------------

// PCMChannelCount is the number of addressable PCM channels.
const PCMChannelCount = 16

// MaxVolume is the loudest channel volume.
const MaxVolume = 255

// Channel sub-commands: [ElmBGM, sub] and [ElmPCMCh, ElmArray, i, sub].
const (
	audioPlay        int32 = 0
	audioPlayOneshot int32 = 1
	audioStop        int32 = 2
	audioPause       int32 = 3
	audioResume      int32 = 4
	audioSetVolume   int32 = 5
	audioGetVolume   int32 = 6
	audioCheck       int32 = 7
	audioGetName     int32 = 8
)

// channelState is what the VM remembers of a channel; the host does the
// actual playback.
type channelState struct {
	name    string
	playing bool
	paused  bool
	volume  int32
}

type audioState struct {
	bgm   channelState
	pcm   channelState
	pcmch [PCMChannelCount]channelState
	se    channelState
	mov   channelState
}

func newAudioState() audioState {
	a := audioState{
		bgm: channelState{volume: MaxVolume},
		pcm: channelState{volume: MaxVolume},
		se:  channelState{volume: MaxVolume},
		mov: channelState{volume: MaxVolume},
	}
	for i := range a.pcmch {
		a.pcmch[i].volume = MaxVolume
	}
	return a
}

func dispatchAudio(v *VM, cmd *Command) bool {
	addr := cmd.Addr
	switch addr.Head() {
	case ElmBGM:
		v.channelCommand(cmd, ChannelBGM, 0, &v.audio.bgm, cmd.Sub(1))
	case ElmPCMCh:
		idx, ok := addr.Index(1)
		if !ok || len(addr) < 4 {
			v.scriptError(InvalidAddress, "pcm channel %s", addr)
			return true
		}
		if idx < 0 || idx >= PCMChannelCount {
			v.scriptError(IndexOutOfRange, "pcmch[%d]", idx)
			return true
		}
		v.channelCommand(cmd, ChannelPCMCh, idx, &v.audio.pcmch[idx], addr[3])
	case ElmPCM:
		v.oneshotCommand(cmd, ChannelPCM, &v.audio.pcm)
	case ElmSE:
		v.oneshotCommand(cmd, ChannelSE, &v.audio.se)
	case ElmMov:
		v.movieCommand(cmd)
	default:
		return false
	}
	return true
}

// channelCommand handles the full channel command set of BGM and PCMCH.
// play takes (name, loop=1, fade_in=0, start_pos=0).
func (v *VM) channelCommand(cmd *Command, channel AudioChannel, idx int32, ch *channelState, sub int32) {
	r := v.args(cmd)
	ev := AudioEvent{Channel: channel, Index: idx}
	switch sub {
	case audioPlay, audioPlayOneshot:
		ev.Name = r.Str(0, "")
		ev.Loop = sub == audioPlay && r.Bool(1, true)
		ev.FadeMs = r.Int(2, 0)
		ev.StartPos = r.Int(3, 0)
		if !r.ok() {
			return
		}
		ev.Action = AudioPlay
		if sub == audioPlayOneshot {
			ev.Action = AudioPlayOneshot
		}
		ch.name, ch.playing, ch.paused = ev.Name, true, false
	case audioStop, audioPause, audioResume:
		ev.FadeMs = r.Int(0, 0)
		if !r.ok() {
			return
		}
		switch sub {
		case audioStop:
			ev.Action = AudioStop
			ch.playing, ch.paused = false, false
		case audioPause:
			ev.Action = AudioPause
			ch.paused = ch.playing
		default:
			ev.Action = AudioResume
			ch.paused = false
		}
	case audioSetVolume:
		vol := r.Int(0, MaxVolume)
		ev.FadeMs = r.Int(1, 0)
		if !r.ok() {
			return
		}
		ch.volume = max(0, min(vol, MaxVolume))
		ev.Action = AudioVolume
		ev.Volume = ch.volume
	case audioGetVolume:
		v.resultInt(cmd, ch.volume)
		return
	case audioCheck:
		v.resultBool(cmd, ch.playing)
		return
	case audioGetName:
		v.resultStr(cmd, ch.name)
		return
	default:
		v.scriptError(UnknownCommand, "%s sub %d", channel, sub)
		return
	}
	ev.Name = ch.name
	v.host.OnAudio(ev)
}

// oneshotCommand handles PCM and SE: 0 play, 2 stop. SE plays either a
// numbered system sound or a named file.
func (v *VM) oneshotCommand(cmd *Command, channel AudioChannel, ch *channelState) {
	r := v.args(cmd)
	switch sub := cmd.Sub(1); sub {
	case audioPlay:
		ev := AudioEvent{Channel: channel, Action: AudioPlayOneshot}
		arg, _ := r.value(0)
		if channel == ChannelSE && arg.IsInt() {
			ev.Number = arg.Int
		} else {
			ev.Name = r.Str(0, "")
		}
		if !r.ok() {
			return
		}
		ch.name, ch.playing = ev.Name, true
		v.host.OnAudio(ev)
	case audioStop:
		fade := r.Int(0, 0)
		if !r.ok() {
			return
		}
		ch.playing = false
		v.host.OnAudio(AudioEvent{Channel: channel, Action: AudioStop, FadeMs: fade})
	default:
		v.scriptError(UnknownCommand, "%s sub %d", channel, sub)
	}
}

// movieCommand handles MOV: 0 play(name, x=0, y=0), 2 stop, 7 check.
func (v *VM) movieCommand(cmd *Command) {
	r := v.args(cmd)
	ch := &v.audio.mov
	switch sub := cmd.Sub(1); sub {
	case audioPlay:
		ev := AudioEvent{Channel: ChannelMovie, Action: AudioPlay, Name: r.Str(0, ""), X: r.Int(1, 0), Y: r.Int(2, 0)}
		if !r.ok() {
			return
		}
		ch.name, ch.playing = ev.Name, true
		v.host.OnAudio(ev)
	case audioStop:
		ch.playing = false
		v.host.OnAudio(AudioEvent{Channel: ChannelMovie, Action: AudioStop, Name: ch.name})
	case audioCheck:
		v.resultBool(cmd, ch.playing)
	default:
		v.scriptError(UnknownCommand, "mov sub %d", sub)
	}
}
