package shadow

import "encoding/json"

// SlotState describes one slot as it sits in storage.
type SlotState struct {
	Present bool   `json:"present"`
	Raw     string `json:"raw,omitempty"`
	Valid   bool   `json:"valid"`
	Problem string `json:"problem,omitempty"`
}

// Inspection is a read-only view of a collection's two slots.
type Inspection struct {
	Key     string    `json:"key"`
	Primary SlotState `json:"primary"`
	Backup  SlotState `json:"backup"`
	// InSync is true when both slots hold identical text.
	InSync bool `json:"inSync"`
}

// Inspect reports the raw state of key's primary and backup slots without
// repairing anything.
func (s *Store) Inspect(key string, v Validator) Inspection {
	s.mu.Lock()
	defer s.mu.Unlock()

	in := Inspection{
		Key:     key,
		Primary: s.slotState(key, v),
		Backup:  s.slotState(BackupKey(key), v),
	}
	in.InSync = in.Primary.Present && in.Backup.Present && in.Primary.Raw == in.Backup.Raw
	return in
}

func (s *Store) slotState(slot string, v Validator) SlotState {
	raw, ok, err := s.slots.Get(slot)
	if err != nil {
		return SlotState{Present: true, Problem: err.Error()}
	}
	if !ok {
		return SlotState{}
	}
	st := SlotState{Present: true, Raw: raw}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		st.Problem = err.Error()
		return st
	}
	if err := check(v, value); err != nil {
		st.Problem = err.Error()
		return st
	}
	st.Valid = true
	return st
}
