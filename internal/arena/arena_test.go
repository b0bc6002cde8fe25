package arena

import "testing"

func TestAddGet(t *testing.T) {
	var a Arena[string]

	h1 := a.Add("one")
	h2 := a.Add("two")
	if h1 == h2 {
		t.Fatal("distinct values got the same handle")
	}

	if v, ok := a.Get(h1); !ok || v != "one" {
		t.Errorf("Get(h1) = %q, %v", v, ok)
	}
	if v, ok := a.Get(h2); !ok || v != "two" {
		t.Errorf("Get(h2) = %q, %v", v, ok)
	}
	if a.Len() != 2 {
		t.Errorf("Len() = %v, want 2", a.Len())
	}
}

func TestZeroHandle(t *testing.T) {
	var a Arena[int]
	a.Add(1)

	var zero Handle
	if !zero.Zero() {
		t.Error("zero handle does not report Zero")
	}
	if _, ok := a.Get(zero); ok {
		t.Error("zero handle resolved to a value")
	}
}

func TestRemoveGoesStale(t *testing.T) {
	var a Arena[string]
	h := a.Add("gone")

	v, ok := a.Remove(h)
	if !ok || v != "gone" {
		t.Fatalf("Remove = %q, %v", v, ok)
	}
	if _, ok := a.Get(h); ok {
		t.Error("removed handle still resolves")
	}
	if _, ok := a.Remove(h); ok {
		t.Error("double remove succeeded")
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %v, want 0", a.Len())
	}
}

func TestSlotReuseBumpsGeneration(t *testing.T) {
	var a Arena[string]
	old := a.Add("old")
	a.Remove(old)

	// The new value reuses the slot, so the old handle must not reach
	// it.
	fresh := a.Add("fresh")
	if old == fresh {
		t.Fatal("reused slot kept its generation")
	}
	if _, ok := a.Get(old); ok {
		t.Error("stale handle resolves to the slot's new occupant")
	}
	if v, ok := a.Get(fresh); !ok || v != "fresh" {
		t.Errorf("Get(fresh) = %q, %v", v, ok)
	}
}

func TestAll(t *testing.T) {
	var a Arena[int]
	a.Add(1)
	h := a.Add(2)
	a.Add(3)
	a.Remove(h)

	sum := 0
	for handle, v := range a.All() {
		if got, ok := a.Get(handle); !ok || got != v {
			t.Errorf("yielded handle does not resolve to its value: %v", v)
		}
		sum += v
	}
	if sum != 4 {
		t.Errorf("iterated sum = %v, want 4", sum)
	}
}
