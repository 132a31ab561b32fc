package voice

// RouteMIDIPitchBend implements spec.md §4.6's pitch-bend routing. In
// plain MIDI1 the bend is monophonic: it is cached for controller
// catch-up and forwarded to the MonoResponder. In MPE, the global
// channel behaves the same way except it is not cached (the engine
// emits it with a wildcard channel, mirroring the original
// sst-voicemanager's channel=-1 broadcast); any other channel addresses
// every gated voice sounding on it directly.
func (m *Manager[C]) RouteMIDIPitchBend(port, channel int16, pitchBend14Bit uint16) {
	if m.cfg.Dialect == MIDI1MPE && channel != m.cfg.MPEGlobalChannel {
		for i := range m.table.slots {
			s := &m.table.slots[i]
			if s.matches(port, channel, -1, -1) && s.gated {
				m.responder.SetVoiceMIDIMPEChannelPitchBend(s.cookie, pitchBend14Bit)
			}
		}
		return
	}

	emitChannel := channel
	if m.cfg.Dialect == MIDI1MPE {
		emitChannel = -1
	} else if channel >= 0 && int(channel) < len(m.lastPitchBend) {
		m.lastPitchBend[channel] = int16(pitchBend14Bit) - 8192
	}
	m.mono.SetMIDIPitchBend(emitChannel, pitchBend14Bit)
}

// RouteMIDI1CC implements spec.md §4.6's control-change routing. Under
// MPE, MPETimbreCC on a non-global channel addresses every gated voice
// on that channel as per-note timbre; every other case is the
// monophonic cache-and-emit path.
func (m *Manager[C]) RouteMIDI1CC(port, channel int16, cc, value int8) {
	if m.cfg.Dialect == MIDI1MPE && channel != m.cfg.MPEGlobalChannel && cc == m.cfg.MPETimbreCC {
		for i := range m.table.slots {
			s := &m.table.slots[i]
			if s.matches(port, channel, -1, -1) && s.gated {
				m.responder.SetVoiceMIDIMPETimbre(s.cookie, value)
			}
		}
		return
	}

	if channel >= 0 && int(channel) < len(m.ccCache) && cc >= 0 && int(cc) < 128 {
		m.ccCache[channel][cc] = value
	}
	m.mono.SetMIDI1CC(channel, cc, value)
}

// RouteChannelPressure implements spec.md §4.6's channel-pressure
// routing: monophonic under MIDI1 or on the MPE global channel,
// per-voice to every gated voice on the channel otherwise.
func (m *Manager[C]) RouteChannelPressure(port, channel int16, value int8) {
	if m.cfg.Dialect == MIDI1 || channel == m.cfg.MPEGlobalChannel {
		m.mono.SetMIDIChannelPressure(channel, int16(value))
		return
	}
	for i := range m.table.slots {
		s := &m.table.slots[i]
		if s.matches(port, channel, -1, -1) && s.gated {
			m.responder.SetVoiceMIDIMPEChannelPressure(s.cookie, value)
		}
	}
}

// RoutePolyphonicAftertouch delivers per-key aftertouch to every
// matching voice (spec.md §4.6).
func (m *Manager[C]) RoutePolyphonicAftertouch(port, channel, key int16, value int8) {
	for i := range m.table.slots {
		s := &m.table.slots[i]
		if s.matches(port, channel, key, -1) {
			m.responder.SetPolyphonicAftertouch(s.cookie, value)
		}
	}
}

// RouteNoteExpression delivers a per-note expression value, addressed
// by (port, channel, key, noteID) (spec.md §4.6).
func (m *Manager[C]) RouteNoteExpression(port, channel, key int16, noteID int32, expressionID int32, value float64) {
	for i := range m.table.slots {
		s := &m.table.slots[i]
		if s.matches(port, channel, key, noteID) {
			m.responder.SetNoteExpression(s.cookie, expressionID, value)
		}
	}
}

// RoutePolyphonicParameterModulation delivers a per-voice parameter
// modulation value addressed by the voice's immutable voiceID rather
// than its note id (spec.md §4.6). Pass -1 for any of port/channel/key
// to leave it unfiltered; voiceID is never wildcarded.
func (m *Manager[C]) RoutePolyphonicParameterModulation(port, channel, key int16, voiceID int32, parameterID uint32, value float64) {
	for i := range m.table.slots {
		s := &m.table.slots[i]
		if s.empty() || s.voiceID != voiceID {
			continue
		}
		if port != -1 && s.port != -1 && port != s.port {
			continue
		}
		if channel != -1 && s.channel != -1 && channel != s.channel {
			continue
		}
		if key != -1 && s.key != -1 && key != s.key {
			continue
		}
		m.responder.SetVoicePolyphonicParameterModulation(s.cookie, parameterID, value)
	}
}

// RouteMonophonicParameterModulation delivers a channel-wide parameter
// modulation value not addressed to any single voice.
func (m *Manager[C]) RouteMonophonicParameterModulation(channel int16, parameterID uint32, value float64) {
	m.mono.SetMonophonicParameterModulation(channel, parameterID, value)
}
