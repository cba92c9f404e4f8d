package session

import (
	"encoding/json"
	"testing"
)

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Pending, "pending"},
		{Verified, "verified"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestStateMarshalJSON(t *testing.T) {
	data, err := json.Marshal(Verified)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"verified"` {
		t.Errorf("Marshal(Verified) = %s, want %q", data, "verified")
	}
}

func TestStateUnmarshalJSON(t *testing.T) {
	var s State
	if err := json.Unmarshal([]byte(`"verified"`), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if s != Verified {
		t.Errorf("Unmarshal(%q) = %v, want Verified", "verified", s)
	}
}

func TestStateUnmarshalUnknownKeepsValue(t *testing.T) {
	s := Verified
	if err := json.Unmarshal([]byte(`"limbo"`), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if s != Verified {
		t.Errorf("unknown state name overwrote value: %v", s)
	}
}

func TestStateRoundTripInSession(t *testing.T) {
	in := &Session{ID: "abc12345", State: Verified, Stage: "Review"}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out Session
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.State != Verified || out.Stage != "Review" {
		t.Errorf("round trip produced %+v", out)
	}
}
