package main

import (
	"github.com/kvlabs/voicemanager/pkg/voice"
)

// engine is the toy host: it owns a fixed pool of demoVoice and answers
// the voice.Responder[*demoVoice]/voice.MonoResponder contracts that
// drive pkg/voice's Manager, the way examples/simplesynth's SynthVoice
// answered the teacher's allocator.Voice interface.
type engine struct {
	sampleRate float64
	pool       []demoVoice
	inUse      []bool
	onEnd      func(*demoVoice)

	monoPitchBendSemis [16]float64
}

func newEngine(sampleRate float64, maxVoices int) *engine {
	e := &engine{
		sampleRate: sampleRate,
		pool:       make([]demoVoice, maxVoices),
		inUse:      make([]bool, maxVoices),
	}
	for i := range e.pool {
		e.pool[i].id = i
		e.pool[i].pressureGain = 1
	}
	return e
}

func (e *engine) freeVoice() *demoVoice {
	for i := range e.inUse {
		if !e.inUse[i] {
			e.inUse[i] = true
			e.pool[i].reset()
			return &e.pool[i]
		}
	}
	return nil
}

func (e *engine) releaseToPool(v *demoVoice) {
	e.inUse[v.id] = false
}

// ---- voice.Responder[*demoVoice] ----

func (e *engine) SetVoiceEndCallback(fn func(*demoVoice)) { e.onEnd = fn }

func (e *engine) BeginVoiceCreationTransaction(out []voice.VoiceBeginEntry, port, channel, key int16, noteID int32, velocity float64) int {
	if len(out) == 0 {
		return 0
	}
	out[0] = voice.VoiceBeginEntry{PolyphonyGroup: 0}
	return 1
}

func (e *engine) InitializeMultipleVoices(instructions []voice.VoiceInitInstruction, out []voice.VoiceInitResult[*demoVoice], port, channel, key int16, noteID int32, velocity, retune float64) int {
	placed := 0
	for i, instr := range instructions {
		if instr != voice.Start {
			continue
		}
		v := e.freeVoice()
		if v == nil {
			continue
		}
		v.trigger(port, channel, key, noteID, velocity)
		out[i] = voice.VoiceInitResult[*demoVoice]{Voice: v}
		placed++
	}
	return placed
}

func (e *engine) EndVoiceCreationTransaction(port, channel, key int16, noteID int32, velocity float64) {}

func (e *engine) TerminateVoice(v *demoVoice) {
	v.terminate()
	e.releaseToPool(v)
	if e.onEnd != nil {
		e.onEnd(v)
	}
}

func (e *engine) ReleaseVoice(v *demoVoice, velocity float64) {
	v.release()
	// The end callback fires later, from Process, once the release
	// ramp actually reaches silence — this exercises the engine's
	// asynchronous voice-end bookkeeping path.
}

func (e *engine) MoveVoice(v *demoVoice, port, channel, key int16, velocity float64) {
	v.channel = channel
	v.move(key, false)
}

func (e *engine) MoveAndRetriggerVoice(v *demoVoice, port, channel, key int16, velocity float64) {
	v.channel = channel
	v.velocityAmp = velocity
	v.move(key, true)
}

func (e *engine) RetriggerVoiceWithNewNoteID(v *demoVoice, noteID int32, velocity float64) {
	v.voiceID = noteID
	v.velocityAmp = velocity
	v.stage = stageAttack
}

func (e *engine) SetNoteExpression(v *demoVoice, expressionID int32, value float64) {
	if expressionID == 0 {
		v.timbreTilt = value
	}
}

func (e *engine) SetVoicePolyphonicParameterModulation(v *demoVoice, parameterID uint32, value float64) {
	if parameterID == 0 {
		v.pressureGain = 1 + value
	}
}

func (e *engine) SetPolyphonicAftertouch(v *demoVoice, value int8) {
	v.pressureGain = 1 + float64(value)/127.0
}

func (e *engine) SetVoiceMIDIMPEChannelPitchBend(v *demoVoice, value uint16) {
	v.mpeBendSemis = (float64(value) - 8192) / 8192 * 2
}

func (e *engine) SetVoiceMIDIMPEChannelPressure(v *demoVoice, value int8) {
	v.pressureGain = 1 + float64(value)/127.0
}

func (e *engine) SetVoiceMIDIMPETimbre(v *demoVoice, value int8) {
	v.timbreTilt = float64(value) / 127.0
}

// ---- voice.MonoResponder ----

func (e *engine) SetMIDIPitchBend(channel int16, pitchBend14Bit uint16) {
	semis := (float64(pitchBend14Bit) - 8192) / 8192 * 2
	if channel == -1 {
		for i := range e.monoPitchBendSemis {
			e.monoPitchBendSemis[i] = semis
		}
		return
	}
	if channel >= 0 && int(channel) < len(e.monoPitchBendSemis) {
		e.monoPitchBendSemis[channel] = semis
	}
}

func (e *engine) SetMIDI1CC(channel int16, cc int8, value int8) {}

func (e *engine) SetMIDIChannelPressure(channel int16, value int16) {}

func (e *engine) SetMonophonicParameterModulation(channel int16, parameterID uint32, value float64) {}

// process renders one block of interleaved stereo float32 frames and
// fires deferred end-of-release callbacks, mirroring
// CWBudde-algo-piano's block-wise p.Process(frameCount) loop.
func (e *engine) process(frames int) []float32 {
	out := make([]float32, frames*2)
	mono := make([]float32, frames)

	for i := range e.pool {
		if !e.inUse[i] {
			continue
		}
		v := &e.pool[i]
		wasAlive := v.alive()
		bend := e.monoPitchBendSemis[0]
		if v.channel >= 0 && int(v.channel) < len(e.monoPitchBendSemis) {
			bend = e.monoPitchBendSemis[v.channel]
		}
		v.render(mono, e.sampleRate, bend)
		for f := 0; f < frames; f++ {
			out[2*f] += mono[f]
			out[2*f+1] += mono[f]
		}
		if wasAlive && !v.alive() {
			e.releaseToPool(v)
			if e.onEnd != nil {
				e.onEnd(v)
			}
		}
	}
	return out
}
