package voice

import "testing"

func TestSlotEmptyAndClear(t *testing.T) {
	var s slot[int]
	if !s.empty() {
		t.Fatal("zero-value slot should be empty")
	}

	s.cookie = 7
	s.port, s.channel, s.key = 0, 1, 60
	s.pushNoteID(42)
	if s.empty() {
		t.Fatal("slot with non-zero cookie should not be empty")
	}

	s.clear()
	if !s.empty() {
		t.Error("clear() should reset cookie to zero value")
	}
	if s.port != 0 || s.channel != 0 || s.key != 0 {
		t.Error("clear() should reset address fields")
	}
	if len(s.noteIDStack) != 0 {
		t.Error("clear() should empty the note id stack")
	}
}

func TestSlotMatchesWildcards(t *testing.T) {
	s := slot[int]{cookie: 1, port: 0, channel: 2, key: 60}
	s.pushNoteID(5)

	cases := []struct {
		port, channel, key int16
		noteID              int32
		want                bool
	}{
		{0, 2, 60, 5, true},
		{-1, -1, -1, -1, true},
		{-1, 2, 60, -1, true},
		{1, 2, 60, -1, false},
		{0, 3, 60, -1, false},
		{0, 2, 61, -1, false},
		{0, 2, 60, 6, false},
		{0, 2, 60, -1, true},
	}
	for i, c := range cases {
		if got := s.matches(c.port, c.channel, c.key, c.noteID); got != c.want {
			t.Errorf("case %d: matches(%d,%d,%d,%d) = %v, want %v", i, c.port, c.channel, c.key, c.noteID, got, c.want)
		}
	}
}

func TestSlotNoteIDStack(t *testing.T) {
	var s slot[int]
	s.cookie = 1
	s.pushNoteID(1)
	s.pushNoteID(2)
	s.pushNoteID(3)

	if !s.hasNoteID(2) {
		t.Error("expected stack to contain note id 2")
	}
	if s.noteID != 3 {
		t.Errorf("scalar noteID should track the most recently pushed id, got %d", s.noteID)
	}

	s.popNoteID(2)
	if s.hasNoteID(2) {
		t.Error("note id 2 should have been removed")
	}
	if s.noteID != 3 {
		t.Errorf("popping a non-top id should not change the scalar noteID, got %d", s.noteID)
	}

	s.popNoteID(3)
	if s.noteID != 1 {
		t.Errorf("popping the top id should fall back to the next one down, got %d", s.noteID)
	}
}

func TestSlotTableFreeSlotAndFindByCookie(t *testing.T) {
	table := newSlotTable[int](2)
	if idx := table.freeSlot(); idx != 0 {
		t.Fatalf("expected free slot 0, got %d", idx)
	}

	table.slots[0].cookie = 9
	if idx := table.freeSlot(); idx != 1 {
		t.Fatalf("expected free slot 1, got %d", idx)
	}

	table.slots[1].cookie = 3
	if idx := table.freeSlot(); idx != -1 {
		t.Fatalf("expected no free slot, got %d", idx)
	}

	if idx := table.findByCookie(9); idx != 0 {
		t.Errorf("expected cookie 9 at slot 0, got %d", idx)
	}
	if idx := table.findByCookie(100); idx != -1 {
		t.Errorf("expected unknown cookie to return -1, got %d", idx)
	}
}

func TestSlotTableCounters(t *testing.T) {
	table := newSlotTable[int](3)
	if table.totalUsed() != 0 || table.totalGated() != 0 {
		t.Fatal("empty table should report zero used and gated")
	}

	table.slots[0].cookie = 1
	table.slots[0].gated = true
	table.slots[1].cookie = 2
	table.slots[1].gated = false

	if got := table.totalUsed(); got != 2 {
		t.Errorf("totalUsed() = %d, want 2", got)
	}
	if got := table.totalGated(); got != 1 {
		t.Errorf("totalGated() = %d, want 1", got)
	}

	a := table.nextVoiceCounter()
	b := table.nextVoiceCounter()
	if b <= a {
		t.Error("voice counter must be strictly increasing")
	}
}
