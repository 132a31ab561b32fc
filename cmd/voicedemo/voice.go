package main

import "math"

// envelopeStage mirrors the teacher's examples/simplesynth ADSR stages,
// reimplemented by hand since pkg/dsp/envelope is out of this engine's
// scope (the engine owns no DSP — see SPEC_FULL.md §11).
type envelopeStage int

const (
	stageIdle envelopeStage = iota
	stageAttack
	stageDecay
	stageSustain
	stageRelease
)

const (
	attackSeconds  = 0.01
	decaySeconds   = 0.08
	releaseSeconds = 0.25
	sustainLevel   = 0.7
)

// demoVoice is the host-owned voice the engine tracks by cookie
// (*demoVoice, satisfying the comparable constraint Manager requires).
type demoVoice struct {
	id int

	port, channel, key int16
	voiceID             int32

	baseFreq     float64
	mpeBendSemis float64
	pressureGain float64
	timbreTilt   float64

	phase       float64
	velocityAmp float64
	stage       envelopeStage
	level       float64
}

func noteToFreq(key int16) float64 {
	return 440.0 * math.Pow(2, (float64(key)-69.0)/12.0)
}

func (v *demoVoice) reset() {
	*v = demoVoice{id: v.id, pressureGain: 1}
}

func (v *demoVoice) trigger(port, channel, key int16, voiceID int32, velocity float64) {
	v.port, v.channel, v.key = port, channel, key
	v.voiceID = voiceID
	v.baseFreq = noteToFreq(key)
	v.velocityAmp = velocity
	v.pressureGain = 1
	v.stage = stageAttack
}

func (v *demoVoice) move(key int16, retrigger bool) {
	v.key = key
	v.baseFreq = noteToFreq(key)
	if retrigger {
		v.stage = stageAttack
	}
}

func (v *demoVoice) release() {
	if v.stage != stageIdle {
		v.stage = stageRelease
	}
}

func (v *demoVoice) terminate() {
	v.stage = stageIdle
	v.level = 0
}

func (v *demoVoice) alive() bool { return v.stage != stageIdle }

// render writes ampEnv*oscillator frames onto out, advancing the phase
// and envelope stage machine. bendSemis is the mono/MPE pitch-bend
// offset in effect for this voice's channel at render time.
func (v *demoVoice) render(out []float32, sampleRate, bendSemis float64) {
	freq := v.baseFreq * math.Pow(2, (bendSemis+v.mpeBendSemis)/12.0)
	phaseInc := freq / sampleRate

	attackStep := 1.0 / (attackSeconds * sampleRate)
	decayStep := (1 - sustainLevel) / (decaySeconds * sampleRate)
	releaseStep := sustainLevel / (releaseSeconds * sampleRate)

	for i := range out {
		switch v.stage {
		case stageAttack:
			v.level += attackStep
			if v.level >= 1 {
				v.level = 1
				v.stage = stageDecay
			}
		case stageDecay:
			v.level -= decayStep
			if v.level <= sustainLevel {
				v.level = sustainLevel
				v.stage = stageSustain
			}
		case stageRelease:
			v.level -= releaseStep
			if v.level <= 0 {
				v.level = 0
				v.stage = stageIdle
			}
		}

		tilt := 1 + 0.3*v.timbreTilt
		sample := math.Sin(2*math.Pi*v.phase) * tilt
		v.phase += phaseInc
		v.phase -= math.Floor(v.phase)

		out[i] = float32(sample * v.level * v.velocityAmp * v.pressureGain)

		if v.stage == stageIdle {
			for j := i + 1; j < len(out); j++ {
				out[j] = 0
			}
			break
		}
	}
}
