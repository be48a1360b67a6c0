package tokenservice

import "testing"

func TestSplitScope(t *testing.T) {
	got := splitScope("meeting:create  meeting:join")
	want := []string{"meeting:create", "meeting:join"}
	if len(got) != len(want) {
		t.Fatalf("splitScope() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitScope() = %v, want %v", got, want)
		}
	}
}

func TestIsSubsetAllPresent(t *testing.T) {
	if !isSubset([]string{"a", "b"}, []string{"a", "b", "c"}) {
		t.Fatal("isSubset(): expected true when every requested scope is granted")
	}
}

func TestIsSubsetMissingScope(t *testing.T) {
	if isSubset([]string{"a", "d"}, []string{"a", "b", "c"}) {
		t.Fatal("isSubset(): expected false when a requested scope is not granted")
	}
}

func TestIsSubsetEmptyRequestAlwaysSatisfied(t *testing.T) {
	if !isSubset(nil, []string{"a"}) {
		t.Fatal("isSubset(nil, ...): expected true for an empty request")
	}
}
