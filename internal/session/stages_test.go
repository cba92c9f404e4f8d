package session

import (
	"reflect"
	"testing"
)

func TestNewStageSet(t *testing.T) {
	set := NewStageSet([]string{"Gate", "Loading", " Review ", "", "gate"})

	want := []string{"Gate", "Loading", "Review"}
	if got := set.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
	if set.Len() != 3 {
		t.Errorf("Len() = %d, want 3", set.Len())
	}
}

func TestStageSetCanonical(t *testing.T) {
	set := NewStageSet([]string{"Gate", "Loading", "Review"})

	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"exact", "Gate", "Gate", true},
		{"lowercase", "gate", "Gate", true},
		{"uppercase", "REVIEW", "Review", true},
		{"leading slash", "/loading", "Loading", true},
		{"html suffix", "review.html", "Review", true},
		{"slash and suffix", "/Review.html", "Review", true},
		{"whitespace", "  gate  ", "Gate", true},
		{"unknown", "Backstage", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := set.Canonical(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Canonical(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestStageSetNamesReturnsCopy(t *testing.T) {
	set := NewStageSet([]string{"Gate", "Loading"})
	names := set.Names()
	names[0] = "mutated"

	if got := set.Names(); got[0] != "Gate" {
		t.Error("Names did not return a copy; mutation leaked into the set")
	}
}
