package voice

import "testing"

func TestKeyStateLedgerSetGetDelete(t *testing.T) {
	l := newKeyStateLedger()
	l.set(0, 1, 60, 0, 7, 0.5)

	e, ok := l.get(0, 1, 60, 0)
	if !ok {
		t.Fatal("expected entry to be present after set")
	}
	if e.transactionID != 7 || e.inceptionVel != 0.5 {
		t.Errorf("entry = %+v, want transactionID=7 inceptionVel=0.5", e)
	}

	l.delete(0, 1, 60, 0)
	if _, ok := l.get(0, 1, 60, 0); ok {
		t.Error("expected entry to be gone after delete")
	}
}

func TestKeyStateLedgerAnyOtherKeyHeld(t *testing.T) {
	l := newKeyStateLedger()
	l.set(0, 0, 60, 0, 1, 0.5)

	if l.anyOtherKeyHeld(0, 0, 0, 60) {
		t.Error("the only held key should not count as 'other' relative to itself")
	}

	l.set(0, 0, 64, 0, 2, 0.5)
	if !l.anyOtherKeyHeld(0, 0, 0, 60) {
		t.Error("expected key 64 to count as another held key")
	}
	if !l.anyOtherKeyHeld(0, 0, 0, 64) {
		t.Error("expected key 60 to count as another held key")
	}
	if l.anyOtherKeyHeld(0, 0, 1, 60) {
		t.Error("a different group must not see these entries as held")
	}
}

func TestKeyStateLedgerSustainMarkAndPurge(t *testing.T) {
	l := newKeyStateLedger()
	l.set(0, 0, 60, 0, 1, 0.5)
	l.set(0, 0, 64, 0, 2, 0.5)

	l.markHeldBySustain(0, 0, 60)
	if e, _ := l.get(0, 0, 60, 0); !e.heldBySustain {
		t.Error("expected key 60 to be marked held by sustain")
	}
	if e, _ := l.get(0, 0, 64, 0); e.heldBySustain {
		t.Error("key 64 should be unaffected")
	}

	l.purgeHeldBySustain(0, 0)
	if _, ok := l.get(0, 0, 60, 0); ok {
		t.Error("expected the sustained entry to be purged")
	}
	if _, ok := l.get(0, 0, 64, 0); !ok {
		t.Error("the non-sustained entry should survive the purge")
	}
}

func TestKeyStateLedgerBestFallbackKeyLatest(t *testing.T) {
	l := newKeyStateLedger()
	l.set(0, 0, 60, 0, 1, 0.5)
	l.set(0, 0, 64, 0, 2, 0.5)
	l.set(0, 0, 67, 0, 3, 0.5)

	key, ok := l.bestFallbackKey(0, 0, 0, OnReleaseToLatest)
	if !ok || key != 67 {
		t.Fatalf("expected the most recent transaction's key (67), got key=%d ok=%v", key, ok)
	}
}

func TestKeyStateLedgerBestFallbackKeyHighestLowest(t *testing.T) {
	l := newKeyStateLedger()
	l.set(0, 0, 60, 0, 1, 0.5)
	l.set(0, 0, 72, 0, 2, 0.5)
	l.set(0, 0, 48, 0, 3, 0.5)

	if key, ok := l.bestFallbackKey(0, 0, 0, OnReleaseToHighest); !ok || key != 72 {
		t.Fatalf("expected highest key 72, got %d", key)
	}
	if key, ok := l.bestFallbackKey(0, 0, 0, OnReleaseToLowest); !ok || key != 48 {
		t.Fatalf("expected lowest key 48, got %d", key)
	}
}

func TestKeyStateLedgerBestFallbackKeyFallsBackToSustained(t *testing.T) {
	l := newKeyStateLedger()
	l.set(0, 0, 60, 0, 1, 0.5)
	l.markHeldBySustain(0, 0, 60)

	if _, ok := l.bestFallbackKey(0, 0, 0, OnReleaseToLatest); !ok {
		t.Fatal("a sustain-only held key should still be usable as a last-resort fallback")
	}

	l.set(0, 0, 64, 0, 2, 0.5)
	key, ok := l.bestFallbackKey(0, 0, 0, OnReleaseToLatest)
	if !ok || key != 64 {
		t.Fatalf("a genuinely held key should be preferred over a sustain-only one, got key=%d ok=%v", key, ok)
	}
}

func TestKeyStateLedgerBestFallbackKeyEmpty(t *testing.T) {
	l := newKeyStateLedger()
	if _, ok := l.bestFallbackKey(0, 0, 0, OnReleaseToLatest); ok {
		t.Fatal("an empty ledger should report no fallback key")
	}
}
