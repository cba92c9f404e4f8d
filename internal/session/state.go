package session

import "encoding/json"

// State is the lifecycle state of a session. Removal is not a State:
// a removed session no longer exists in the registry at all.
type State int

const (
	Pending State = iota
	Verified
)

var stateNames = map[State]string{
	Pending:  "pending",
	Verified: "verified",
}

var stateFromName = map[string]State{
	"pending":  Pending,
	"verified": Verified,
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := stateFromName[name]; ok {
		*s = v
	}
	return nil
}
