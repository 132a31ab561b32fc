package voice

// findStealVictim scans the slot table for the best voice to terminate
// in order to free a voice for group, per spec.md §4.4. It always
// prefers a non-gated (released, in its release tail) candidate over a
// gated or sustain-held one, and breaks ties by scan order. When crossGroup
// is true, voices outside group are eligible too (cross-group
// stealing, permitted only when the requesting group has slack in its
// own limit but no physical voices are free — see spec.md §4.1 step 3
// and Design Notes).
func findStealVictim[C comparable](t *slotTable[C], group PolyGroup, priority StealingPriorityMode, crossGroup bool) (int, bool) {
	bestGated, bestNonGated := -1, -1
	var gatedKey, nonGatedKey int64

	for i := range t.slots {
		s := &t.slots[i]
		if s.empty() {
			continue
		}
		if s.polyGroup != group && !crossGroup {
			continue
		}

		sustaining := s.gated || s.gatedDueToSustain
		rank := rankFor(priority, s)

		if sustaining {
			if bestGated == -1 || better(priority, rank, gatedKey) {
				bestGated, gatedKey = i, rank
			}
		} else {
			if bestNonGated == -1 || better(priority, rank, nonGatedKey) {
				bestNonGated, nonGatedKey = i, rank
			}
		}
	}

	if bestNonGated != -1 {
		return bestNonGated, true
	}
	if bestGated != -1 {
		return bestGated, true
	}
	return -1, false
}

func rankFor[C comparable](priority StealingPriorityMode, s *slot[C]) int64 {
	switch priority {
	case Highest, Lowest:
		return int64(s.key)
	default: // Oldest
		return s.voiceCounter
	}
}

// better reports whether candidate beats the current best for priority:
// Oldest wants the smallest voice_counter, Highest the largest key,
// Lowest the smallest key.
func better(priority StealingPriorityMode, candidate, current int64) bool {
	switch priority {
	case Highest:
		return candidate > current
	case Lowest:
		return candidate < current
	default: // Oldest
		return candidate < current
	}
}
