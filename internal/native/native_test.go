package native

import "testing"

func TestLookup(t *testing.T) {
	for i, s := range Table {
		idx, spec, ok := Lookup(s.Name)
		if !ok || idx != i || spec != s {
			t.Fatalf("Lookup(%q) = %d, %+v, %v", s.Name, idx, spec, ok)
		}
		if Name(i) != s.Name {
			t.Fatalf("Name(%d) = %q", i, Name(i))
		}
	}

	if _, _, ok := Lookup("nope"); ok {
		t.Fatal("unknown native resolved")
	}
	if Name(Count) != "" {
		t.Fatal("out of range index should have no name")
	}
}
