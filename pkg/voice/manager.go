package voice

import "github.com/kvlabs/voicemanager/pkg/debug"

// Manager is the event dispatcher described in spec.md §2 item 6: the
// public surface a host drives with note-on/off, sustain, controller,
// and routing events. C is the host's opaque voice-cookie type.
type Manager[C comparable] struct {
	cfg       Config
	responder Responder[C]
	mono      MonoResponder
	logger    *debug.Logger

	table  *slotTable[C]
	groups *groupRegistry
	ledger *keyStateLedger

	lastPitchBend [16]int16
	ccCache       [16][128]int8
	sustainOn     [16]bool

	// Scratch buffers reused across calls to keep the hot path free of
	// per-event heap allocation (spec.md §5).
	beginBuf  []VoiceBeginEntry
	initInstr []VoiceInitInstruction
	initOut   []VoiceInitResult[C]
}

// NewManager constructs a Manager wired to responder and mono, with the
// given fixed configuration. Group 0 exists by default at
// cfg.MaxVoiceCount capacity, stealing priority Oldest, play mode
// PolyVoices.
func NewManager[C comparable](cfg Config, responder Responder[C], mono MonoResponder) *Manager[C] {
	if cfg.MaxVoiceCount <= 0 {
		panic("voice: MaxVoiceCount must be positive")
	}
	if cfg.MPETimbreCC == 0 {
		cfg.MPETimbreCC = 74
	}
	m := &Manager[C]{
		cfg:       cfg,
		responder: responder,
		mono:      mono,
		table:     newSlotTable[C](cfg.MaxVoiceCount),
		groups:    newGroupRegistry(cfg.MaxVoiceCount),
		ledger:    newKeyStateLedger(),
		beginBuf:  make([]VoiceBeginEntry, cfg.MaxVoiceCount),
		initInstr: make([]VoiceInitInstruction, cfg.MaxVoiceCount),
		initOut:   make([]VoiceInitResult[C], cfg.MaxVoiceCount),
	}
	responder.SetVoiceEndCallback(m.handleVoiceEnd)
	return m
}

// SetLogger attaches an optional trace logger; pass nil to disable
// tracing. Disabled by default, matching the teacher's debug package
// defaults and the original's vmLog-off-by-default convention.
func (m *Manager[C]) SetLogger(l *debug.Logger) { m.logger = l }

// handleVoiceEnd is registered with the Responder as the voice-end
// callback (spec.md §4.8). It is idempotent by cookie: a cookie that is
// not found (already cleared, or unknown) is silently ignored.
func (m *Manager[C]) handleVoiceEnd(cookie C) {
	idx := m.table.findByCookie(cookie)
	if idx == -1 {
		return
	}
	grp := m.table.slots[idx].polyGroup
	m.table.slots[idx].clear()
	if g, ok := m.groups.get(grp); ok {
		g.used--
	}
	if m.logger != nil {
		m.logger.Debug("voice end: slot=%d group=%d", idx, grp)
	}
}

// relevantChannel is the configured MPE global channel under MPE, or
// the event's own channel under plain MIDI1 (spec.md §4.2, §4.3).
func (m *Manager[C]) relevantChannel(channel int16) int16 {
	if m.cfg.Dialect == MIDI1MPE {
		return m.cfg.MPEGlobalChannel
	}
	return channel
}

// ---- Configuration (spec.md §6) ----

// SetPolyphonyGroupVoiceLimit sets the maximum number of simultaneously
// active voices for group, materializing it if it does not yet exist.
func (m *Manager[C]) SetPolyphonyGroupVoiceLimit(group PolyGroup, limit int) {
	if limit <= 0 {
		panic("voice: group limit must be positive")
	}
	g := m.groups.guarantee(group, m.cfg.MaxVoiceCount)
	g.limit = limit
}

// SetPlaymode sets a group's play mode and, for MonoNotes groups, its
// mono feature bits.
func (m *Manager[C]) SetPlaymode(group PolyGroup, mode PlayMode, features MonoFeature) {
	g := m.groups.guarantee(group, m.cfg.MaxVoiceCount)
	g.playMode = mode
	g.monoFeatures = features
}

// SetStealingPriorityMode sets a group's stealing priority.
func (m *Manager[C]) SetStealingPriorityMode(group PolyGroup, mode StealingPriorityMode) {
	g := m.groups.guarantee(group, m.cfg.MaxVoiceCount)
	g.stealingPriority = mode
}

// GuaranteeGroup materializes group with default configuration if it
// does not already exist. Idempotent.
func (m *Manager[C]) GuaranteeGroup(group PolyGroup) {
	m.groups.guarantee(group, m.cfg.MaxVoiceCount)
}

// ---- Observation (spec.md §6, §8 I-count/I-gate) ----

// GetVoiceCount returns the number of non-empty slots.
func (m *Manager[C]) GetVoiceCount() int { return m.table.totalUsed() }

// GetGatedVoiceCount returns the number of non-empty, gated slots.
func (m *Manager[C]) GetGatedVoiceCount() int { return m.table.totalGated() }

// ---- Note-on (spec.md §4.1) ----

// ProcessNoteOnEvent dispatches a note-on. It returns false only when
// not all requested voices could be placed (capacity exhaustion beyond
// what stealing could resolve, or a malformed request); true covers
// both success and a host-elected no-op.
func (m *Manager[C]) ProcessNoteOnEvent(port, channel, key int16, noteID int32, velocity, retune float64) bool {
	if m.cfg.RepeatedKeyMode == Piano {
		if m.pianoReuse(port, channel, key, noteID, velocity) {
			return true
		}
	}

	count := m.responder.BeginVoiceCreationTransaction(m.beginBuf, port, channel, key, noteID, velocity)
	if count == 0 {
		m.responder.EndVoiceCreationTransaction(port, channel, key, noteID, velocity)
		return true
	}
	if count > m.cfg.MaxVoiceCount {
		m.responder.EndVoiceCreationTransaction(port, channel, key, noteID, velocity)
		return false
	}

	beginBuf := m.beginBuf[:count]
	instr := m.initInstr[:count]
	for i := range instr {
		instr[i] = Start
	}

	for _, gc := range countGroups(beginBuf) {
		if gc.count > m.cfg.MaxVoiceCount {
			m.responder.EndVoiceCreationTransaction(port, channel, key, noteID, velocity)
			return false
		}
		g := m.groups.guarantee(gc.group, m.cfg.MaxVoiceCount)
		if g.playMode == MonoNotes {
			m.monoGroupNoteOn(g, gc.group, port, channel, key, noteID, velocity, instr, beginBuf)
		} else {
			m.stealForGroup(gc.group, g, gc.count)
		}
	}

	m.controllerCatchUp(channel)

	out := m.initOut[:count]
	var zero VoiceInitResult[C]
	for i := range out {
		out[i] = zero
	}
	m.responder.InitializeMultipleVoices(instr, out, port, channel, key, noteID, velocity, retune)

	txnID := m.table.nextTransactionID()
	placed, nonEmpty := m.placeVoices(beginBuf, instr, out, port, channel, key, noteID, velocity, txnID)

	m.responder.EndVoiceCreationTransaction(port, channel, key, noteID, velocity)

	if countStart(instr) == 0 {
		// Every intended voice was skipped (e.g. a full legato takeover)
		// — an expected no-op, not a failure.
		return true
	}
	if nonEmpty == 0 {
		return false
	}
	return placed == nonEmpty
}

// pianoReuse implements spec.md §4.1 step 1. It returns true if any
// matching slot was reused, in which case the caller's note-on is done.
func (m *Manager[C]) pianoReuse(port, channel, key int16, noteID int32, velocity float64) bool {
	reusedAny := false
	for i := range m.table.slots {
		s := &m.table.slots[i]
		if !s.matches(port, channel, key, -1) {
			continue
		}
		if s.gated && !s.gatedDueToSustain {
			// Actively gated and not merely sustained: stack a new
			// voice instead of reusing (allows voice stacking).
			continue
		}
		m.responder.RetriggerVoiceWithNewNoteID(s.cookie, noteID, velocity)
		s.gatedDueToSustain = false
		s.gated = true
		s.voiceCounter = m.table.nextVoiceCounter()
		s.transactionID = m.table.nextTransactionID()
		s.pushNoteID(noteID)
		reusedAny = true
	}
	return reusedAny
}

// monoGroupNoteOn implements spec.md §4.1 step 4 for one MonoNotes group.
func (m *Manager[C]) monoGroupNoteOn(g *group, groupID PolyGroup, port, channel, key int16, noteID int32, velocity float64, instr []VoiceInitInstruction, beginBuf []VoiceBeginEntry) {
	anyExisting := false
	for i := range m.table.slots {
		if !m.table.slots[i].empty() && m.table.slots[i].polyGroup == groupID {
			anyExisting = true
			break
		}
	}

	if g.monoFeatures&MonoLegato != 0 && anyExisting {
		for i := range m.table.slots {
			s := &m.table.slots[i]
			if s.empty() || s.polyGroup != groupID {
				continue
			}
			if s.gated {
				m.responder.MoveVoice(s.cookie, port, channel, key, velocity)
			} else {
				m.responder.MoveAndRetriggerVoice(s.cookie, port, channel, key, velocity)
			}
			s.port, s.channel, s.key = port, channel, key
			s.gated = true
			s.gatedDueToSustain = false
			s.pushNoteID(noteID)
		}
		for i := range beginBuf {
			if beginBuf[i].PolyphonyGroup == groupID {
				instr[i] = Skip
			}
		}
		return
	}

	for i := range m.table.slots {
		s := &m.table.slots[i]
		if !s.empty() && s.polyGroup == groupID {
			m.responder.TerminateVoice(s.cookie)
		}
	}
}

// stealForGroup implements spec.md §4.1 step 3 for one PolyVoices group.
func (m *Manager[C]) stealForGroup(groupID PolyGroup, g *group, intendedCount int) {
	freeInGroup := max(0, g.limit-g.used)
	freeGlobal := m.cfg.MaxVoiceCount - m.table.totalUsed()
	free := min(freeInGroup, freeGlobal)
	deficit := max(0, intendedCount-free)
	crossGroup := freeInGroup > 0 && freeGlobal == 0

	for deficit > 0 {
		victim, ok := findStealVictim(m.table, groupID, g.stealingPriority, crossGroup)
		if !ok {
			break
		}
		s := &m.table.slots[victim]
		txn, cookie := s.transactionID, s.cookie
		m.responder.TerminateVoice(cookie)
		deficit--
		if m.logger != nil {
			m.logger.Debug("stole slot=%d group=%d priority=%v", victim, groupID, g.stealingPriority)
		}
		for i := range m.table.slots {
			co := &m.table.slots[i]
			if !co.empty() && co.cookie != cookie && co.transactionID == txn {
				m.responder.TerminateVoice(co.cookie)
				deficit--
				if m.logger != nil {
					m.logger.Debug("co-stole slot=%d transaction=%d", i, txn)
				}
			}
		}
	}
}

// controllerCatchUp implements spec.md §4.1 step 5.
func (m *Manager[C]) controllerCatchUp(channel int16) {
	if channel < 0 || int(channel) >= len(m.lastPitchBend) {
		return
	}
	if m.lastPitchBend[channel] != 0 {
		m.mono.SetMIDIPitchBend(channel, uint16(m.lastPitchBend[channel]+8192))
	}
	for cc := 0; cc < 128; cc++ {
		if v := m.ccCache[channel][cc]; v != 0 {
			m.mono.SetMIDI1CC(channel, int8(cc), v)
		}
	}
}

// placeVoices implements spec.md §4.1 steps 7; it records a key-state
// ledger entry for every intended voice (even Skip or unfilled ones)
// and places every returned, Start-instructed, non-empty cookie into a
// free slot. Returns (placed, nonEmptyCookies).
func (m *Manager[C]) placeVoices(beginBuf []VoiceBeginEntry, instr []VoiceInitInstruction, out []VoiceInitResult[C], port, channel, key int16, noteID int32, velocity float64, txnID int64) (placed, nonEmpty int) {
	var zero C
	for i := range beginBuf {
		grp := beginBuf[i].PolyphonyGroup
		m.ledger.set(port, channel, key, grp, txnID, velocity)

		if instr[i] != Start || out[i].Voice == zero {
			continue
		}
		nonEmpty++

		idx := m.table.freeSlot()
		if idx == -1 {
			continue
		}
		s := &m.table.slots[idx]
		s.cookie = out[i].Voice
		s.port, s.channel, s.key = port, channel, key
		s.originalPort, s.originalChannel, s.originalKey = port, channel, key
		s.voiceCounter = m.table.nextVoiceCounter()
		s.transactionID = txnID
		s.gated = true
		s.gatedDueToSustain = false
		s.noteIDStack = s.noteIDStack[:0]
		s.pushNoteID(noteID)
		s.voiceID = noteID
		s.polyGroup = grp

		g := m.groups.guarantee(grp, m.cfg.MaxVoiceCount)
		g.used++
		placed++

		if m.logger != nil {
			m.logger.Debug("placed slot=%d group=%d cookie=%v", idx, grp, s.cookie)
		}
	}
	return placed, nonEmpty
}

// ---- Note-off (spec.md §4.2) ----

// ProcessNoteOffEvent dispatches a note-off.
func (m *Manager[C]) ProcessNoteOffEvent(port, channel, key int16, noteID int32, velocity float64) {
	relCh := m.relevantChannel(channel)
	sustainDown := relCh >= 0 && int(relCh) < len(m.sustainOn) && m.sustainOn[relCh]

	var pending []PolyGroup
	var matchedSlots []int

	for i := range m.table.slots {
		s := &m.table.slots[i]
		if !s.matches(port, channel, key, noteID) {
			continue
		}
		matchedSlots = append(matchedSlots, i)

		// Read the group before any TerminateVoice: a synchronous end
		// callback clears the slot.
		grp := s.polyGroup
		g, _ := m.groups.get(grp)
		if g != nil && g.playMode == MonoNotes {
			legato := g.monoFeatures&MonoLegato != 0
			otherHeld := m.ledger.anyOtherKeyHeld(port, channel, grp, key)
			switch {
			case legato && otherHeld:
				pending = appendGroupOnce(pending, grp)
			case sustainDown && otherHeld:
				m.responder.TerminateVoice(s.cookie)
				pending = appendGroupOnce(pending, grp)
			case sustainDown:
				s.gatedDueToSustain = true
			case otherHeld:
				m.responder.TerminateVoice(s.cookie)
				pending = appendGroupOnce(pending, grp)
			default:
				if s.gated {
					m.responder.ReleaseVoice(s.cookie, velocity)
					s.gated = false
				}
			}
		} else {
			if sustainDown {
				s.gatedDueToSustain = true
			} else if s.gated {
				m.responder.ReleaseVoice(s.cookie, velocity)
				s.gated = false
			}
		}
	}

	if sustainDown {
		m.ledger.markHeldBySustain(port, channel, key)
	} else {
		m.ledger.clearAt(port, channel, key)
	}

	for _, grp := range pending {
		m.monoRetrigger(grp, port, channel)
	}

	if noteID != -1 {
		for _, idx := range matchedSlots {
			m.table.slots[idx].popNoteID(noteID)
		}
	}
}

// monoRetrigger implements spec.md §4.5.
func (m *Manager[C]) monoRetrigger(groupID PolyGroup, port, channel int16) {
	g, ok := m.groups.get(groupID)
	if !ok {
		return
	}
	key, ok := m.ledger.bestFallbackKey(port, channel, groupID, g.monoFeatures)
	if !ok {
		return
	}
	entry, _ := m.ledger.get(port, channel, key, groupID)
	velocity := 0.0
	if entry != nil {
		velocity = entry.inceptionVel
	}

	if g.monoFeatures&MonoLegato != 0 {
		for i := range m.table.slots {
			s := &m.table.slots[i]
			if s.empty() || s.polyGroup != groupID {
				continue
			}
			if s.gated {
				m.responder.MoveVoice(s.cookie, port, channel, key, velocity)
			} else {
				m.responder.MoveAndRetriggerVoice(s.cookie, port, channel, key, velocity)
			}
			s.port, s.channel, s.key = port, channel, key
			s.gated = true
			s.gatedDueToSustain = false
		}
		return
	}

	m.abbreviatedCreate(groupID, port, channel, key, velocity)
}

// abbreviatedCreate runs a reduced voice-creation transaction for a
// single fallback key, restricted to groupID (spec.md §4.5,
// MonoRetrigger branch). Other groups' intended voices are skipped so
// only the requesting group gets a new voice.
func (m *Manager[C]) abbreviatedCreate(groupID PolyGroup, port, channel, key int16, velocity float64) {
	const retriggerNoteID = -1

	count := m.responder.BeginVoiceCreationTransaction(m.beginBuf, port, channel, key, retriggerNoteID, velocity)
	if count == 0 {
		m.responder.EndVoiceCreationTransaction(port, channel, key, retriggerNoteID, velocity)
		return
	}
	if count > m.cfg.MaxVoiceCount {
		m.responder.EndVoiceCreationTransaction(port, channel, key, retriggerNoteID, velocity)
		return
	}

	beginBuf := m.beginBuf[:count]
	instr := m.initInstr[:count]
	requestingCount := 0
	for i := range beginBuf {
		if beginBuf[i].PolyphonyGroup == groupID {
			instr[i] = Start
			requestingCount++
		} else {
			instr[i] = Skip
		}
	}

	if requestingCount > 0 {
		if g, ok := m.groups.get(groupID); ok {
			m.stealForGroup(groupID, g, requestingCount)
		}
	}

	m.controllerCatchUp(channel)

	out := m.initOut[:count]
	var zero VoiceInitResult[C]
	for i := range out {
		out[i] = zero
	}
	m.responder.InitializeMultipleVoices(instr, out, port, channel, key, retriggerNoteID, velocity, 0)

	txnID := m.table.nextTransactionID()
	m.placeVoices(beginBuf, instr, out, port, channel, key, retriggerNoteID, velocity, txnID)

	m.responder.EndVoiceCreationTransaction(port, channel, key, retriggerNoteID, velocity)
}

// ---- Sustain pedal (spec.md §4.3) ----

// UpdateSustainPedal updates the sustain pedal state for the relevant
// channel. level > 64 means the pedal is down.
func (m *Manager[C]) UpdateSustainPedal(port, channel int16, level int8) {
	relCh := m.relevantChannel(channel)
	if relCh < 0 || int(relCh) >= len(m.sustainOn) {
		return
	}
	was := m.sustainOn[relCh]
	down := level > 64
	m.sustainOn[relCh] = down
	if was == down || down {
		return
	}

	matchChannel := channel
	if m.cfg.Dialect == MIDI1MPE {
		matchChannel = -1
	}

	var pending []PolyGroup
	for i := range m.table.slots {
		s := &m.table.slots[i]
		if !s.matches(port, matchChannel, -1, -1) || !s.gatedDueToSustain {
			continue
		}
		if g, ok := m.groups.get(s.polyGroup); ok && g.playMode == MonoNotes {
			pending = appendGroupOnce(pending, s.polyGroup)
		}
		m.responder.ReleaseVoice(s.cookie, 0)
		s.gated = false
		s.gatedDueToSustain = false
	}

	m.ledger.purgeHeldBySustain(port, matchChannel)

	for _, grp := range pending {
		m.monoRetrigger(grp, port, channel)
	}
}

// ---- All-notes/sounds off (spec.md §4.7) ----

// AllNotesOff releases every non-empty slot (graceful, idempotent).
func (m *Manager[C]) AllNotesOff() {
	for i := range m.table.slots {
		s := &m.table.slots[i]
		if s.empty() {
			continue
		}
		m.responder.ReleaseVoice(s.cookie, 0)
		s.gated = false
	}
}

// AllSoundsOff terminates every non-empty slot (immediate, idempotent).
func (m *Manager[C]) AllSoundsOff() {
	for i := range m.table.slots {
		s := &m.table.slots[i]
		if s.empty() {
			continue
		}
		m.responder.TerminateVoice(s.cookie)
	}
}

// ---- small helpers ----

type groupCount struct {
	group PolyGroup
	count int
}

func countGroups(buf []VoiceBeginEntry) []groupCount {
	var out []groupCount
	for _, e := range buf {
		found := false
		for i := range out {
			if out[i].group == e.PolyphonyGroup {
				out[i].count++
				found = true
				break
			}
		}
		if !found {
			out = append(out, groupCount{e.PolyphonyGroup, 1})
		}
	}
	return out
}

func countStart(instr []VoiceInitInstruction) int {
	n := 0
	for _, v := range instr {
		if v == Start {
			n++
		}
	}
	return n
}

func appendGroupOnce(groups []PolyGroup, g PolyGroup) []PolyGroup {
	for _, existing := range groups {
		if existing == g {
			return groups
		}
	}
	return append(groups, g)
}
