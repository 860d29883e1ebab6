package cachestore

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndLoadVerdict(t *testing.T) {
	store := openTestStore(t)

	if err := store.SaveVerdict("os.exit#v1", true); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveVerdict("log.info#v1", false); err != nil {
		t.Fatalf("save: %v", err)
	}

	noReturn, ok, err := store.LoadVerdict("os.exit#v1")
	if err != nil || !ok || !noReturn {
		t.Errorf("LoadVerdict(os.exit) = (%v, %v, %v)", noReturn, ok, err)
	}
	noReturn, ok, err = store.LoadVerdict("log.info#v1")
	if err != nil || !ok || noReturn {
		t.Errorf("LoadVerdict(log.info) = (%v, %v, %v)", noReturn, ok, err)
	}
	if _, ok, _ := store.LoadVerdict("missing"); ok {
		t.Errorf("missing key should miss")
	}
}

func TestUpsertOverwrites(t *testing.T) {
	store := openTestStore(t)

	if err := store.SaveVerdict("f#v1", true); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.SaveVerdict("f#v1", false); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	noReturn, ok, err := store.LoadVerdict("f#v1")
	if err != nil || !ok || noReturn {
		t.Errorf("verdict was not overwritten: (%v, %v, %v)", noReturn, ok, err)
	}
}

func TestLoadAll(t *testing.T) {
	store := openTestStore(t)

	verdicts := map[string]bool{"a#v1": true, "b#v1": false, "c#v1": true}
	for key, v := range verdicts {
		if err := store.SaveVerdict(key, v); err != nil {
			t.Fatalf("save %s: %v", key, err)
		}
	}

	got, err := store.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(got) != len(verdicts) {
		t.Fatalf("LoadAll returned %d entries, want %d", len(got), len(verdicts))
	}
	for key, want := range verdicts {
		if got[key] != want {
			t.Errorf("verdict %s = %v, want %v", key, got[key], want)
		}
	}
}

func TestPruneKeepsFreshEntries(t *testing.T) {
	store := openTestStore(t)

	if err := store.SaveVerdict("fresh#v1", true); err != nil {
		t.Fatalf("save: %v", err)
	}
	removed, err := store.Prune(time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 0 {
		t.Errorf("prune removed %d fresh entries", removed)
	}
	if _, ok, _ := store.LoadVerdict("fresh#v1"); !ok {
		t.Errorf("fresh entry disappeared")
	}
}
