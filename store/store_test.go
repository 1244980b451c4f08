package store

import (
	"bytes"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertAndResolve(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Insert("icons/mob.dmi", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if id == 0 {
		t.Error("zero id")
	}

	r, err := s.Resolve("icons/mob.dmi")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if r.ID != id || r.Path != "icons/mob.dmi" {
		t.Errorf("resolved %+v", r)
	}

	data, ok, err := s.Data("icons/mob.dmi")
	if err != nil || !ok {
		t.Fatalf("Data failed: (%v, %v)", ok, err)
	}
	if !bytes.Equal(data, []byte("png-bytes")) {
		t.Error("data mismatch")
	}
}

func TestResolveUnknownYieldsHandle(t *testing.T) {
	s := openTestStore(t)
	r, err := s.Resolve("missing.dmi")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if r.ID != 0 || r.Path != "missing.dmi" {
		t.Errorf("unknown resolve = %+v", r)
	}
	if _, ok, _ := s.Data("missing.dmi"); ok {
		t.Error("data for missing path")
	}
}

func TestInsertReplaces(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Insert("a.dmi", []byte("one")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := s.Insert("a.dmi", []byte("two")); err != nil {
		t.Fatalf("re-Insert failed: %v", err)
	}
	data, _, err := s.Data("a.dmi")
	if err != nil {
		t.Fatalf("Data failed: %v", err)
	}
	if string(data) != "two" {
		t.Errorf("data = %q after replace", data)
	}
}

func TestPaths(t *testing.T) {
	s := openTestStore(t)
	for _, p := range []string{"b.dmi", "a.dmi", "c.ogg"} {
		if _, err := s.Insert(p, []byte("x")); err != nil {
			t.Fatalf("Insert %s failed: %v", p, err)
		}
	}
	paths, err := s.Paths()
	if err != nil {
		t.Fatalf("Paths failed: %v", err)
	}
	want := []string{"a.dmi", "b.dmi", "c.ogg"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths = %v, want %v", paths, want)
		}
	}
}
