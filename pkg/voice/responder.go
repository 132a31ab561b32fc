// Package voice implements a polyphonic voice-allocation engine for a
// real-time software synthesizer. It decides which voices are created,
// moved, released, or forcibly terminated in response to a musical
// event stream, and routes per-voice and per-channel control data to
// the correct voices.
//
// The engine owns no DSP, performs no audio block processing, and does
// not allocate voice memory: the host owns voices and hands out opaque
// references (cookies) that the engine tracks.
package voice

// VoiceBeginEntry is written by the host inside BeginVoiceCreationTransaction:
// one entry per voice the host wants to create, naming the polyphony
// group it should join.
type VoiceBeginEntry struct {
	PolyphonyGroup PolyGroup
}

// VoiceInitInstruction tells the host what to do with each intended
// voice during InitializeMultipleVoices.
type VoiceInitInstruction int

const (
	// Start instructs the host to create and initialize this voice.
	Start VoiceInitInstruction = iota
	// Skip instructs the host not to create this voice (its polyphony
	// group is being served another way, e.g. a legato move).
	Skip
)

// VoiceInitResult is written by the host inside InitializeMultipleVoices:
// one entry per requested voice, holding the resulting cookie (empty if
// the host could not or chose not to create this voice).
type VoiceInitResult[C comparable] struct {
	Voice C
}

// Responder is the per-voice operation contract the host must satisfy.
// C is the concrete cookie type; the engine is generic over it so
// cookies stay typed instead of passing through as "any". Manager holds
// the Responder as an interface value, so its calls are dynamically
// dispatched.
type Responder[C comparable] interface {
	// SetVoiceEndCallback registers the function the engine uses to
	// learn that a cookie has ended. The host may call it synchronously
	// from within TerminateVoice/ReleaseVoice or asynchronously between
	// engine calls; the engine's bookkeeping is idempotent by cookie
	// either way.
	SetVoiceEndCallback(fn func(cookie C))

	// BeginVoiceCreationTransaction asks the host how many voices it
	// wants to create for this note-on and which polyphony group each
	// should join. The host writes one entry per intended voice into
	// out and returns the count. A count of zero means "swallow this
	// event".
	BeginVoiceCreationTransaction(out []VoiceBeginEntry, port, channel, key int16, noteID int32, velocity float64) int

	// InitializeMultipleVoices creates voices for entries marked Start,
	// writing a cookie per created voice into out[i].Voice, and leaves
	// out[i].Voice as the zero value for Skip entries or voices it could
	// not create. Returns how many voices it actually placed.
	InitializeMultipleVoices(instructions []VoiceInitInstruction, out []VoiceInitResult[C], port, channel, key int16, noteID int32, velocity, retune float64) int

	// EndVoiceCreationTransaction is called exactly once per Begin,
	// regardless of how the transaction concluded.
	EndVoiceCreationTransaction(port, channel, key int16, noteID int32, velocity float64)

	// TerminateVoice forcibly kills a voice with no release tail. Must
	// ultimately cause the end callback to fire for cookie.
	TerminateVoice(cookie C)

	// ReleaseVoice gracefully releases a voice; the host fires the end
	// callback once its envelope finishes.
	ReleaseVoice(cookie C, velocity float64)

	// MoveVoice performs a legato move of a still-gated voice to a new
	// address with no re-attack.
	MoveVoice(cookie C, port, channel, key int16, velocity float64)

	// MoveAndRetriggerVoice moves a voice that is in its release tail
	// and re-attacks it.
	MoveAndRetriggerVoice(cookie C, port, channel, key int16, velocity float64)

	// RetriggerVoiceWithNewNoteID reuses an existing voice for a new
	// logical note (piano-mode repeated-key reuse).
	RetriggerVoiceWithNewNoteID(cookie C, noteID int32, velocity float64)

	// SetNoteExpression delivers a per-note expression value.
	SetNoteExpression(cookie C, expressionID int32, value float64)

	// SetVoicePolyphonicParameterModulation delivers a per-voice
	// parameter modulation value, addressed by immutable voice id.
	SetVoicePolyphonicParameterModulation(cookie C, parameterID uint32, value float64)

	// SetPolyphonicAftertouch delivers polyphonic (per-key) aftertouch.
	SetPolyphonicAftertouch(cookie C, value int8)

	// SetVoiceMIDIMPEChannelPitchBend delivers an MPE per-channel pitch
	// bend to a single voice (0..16383, center 8192).
	SetVoiceMIDIMPEChannelPitchBend(cookie C, value uint16)

	// SetVoiceMIDIMPEChannelPressure delivers MPE per-channel pressure
	// to a single voice.
	SetVoiceMIDIMPEChannelPressure(cookie C, value int8)

	// SetVoiceMIDIMPETimbre delivers MPE timbre (default CC74) to a
	// single voice.
	SetVoiceMIDIMPETimbre(cookie C, value int8)
}

// MonoResponder is the channel-wide operation contract the host must
// satisfy for controller data that is not addressed to a single voice.
type MonoResponder interface {
	// SetMIDIPitchBend delivers a monophonic (whole-channel) pitch bend.
	SetMIDIPitchBend(channel int16, pitchBend14Bit uint16)
	// SetMIDI1CC delivers a monophonic MIDI1 control-change value.
	SetMIDI1CC(channel int16, cc int8, value int8)
	// SetMIDIChannelPressure delivers monophonic channel pressure.
	SetMIDIChannelPressure(channel int16, value int16)
	// SetMonophonicParameterModulation delivers a channel-wide parameter
	// modulation value not addressed to any single voice.
	SetMonophonicParameterModulation(channel int16, parameterID uint32, value float64)
}
