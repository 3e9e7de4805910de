package shadow

import (
	"fmt"
	"math"
)

// counterValidator accepts non-negative whole numbers, which is how an
// integer counter decodes from its plain-text slot.
var counterValidator = ValidatorFunc(func(v any) error {
	f, ok := v.(float64)
	if !ok {
		return fmt.Errorf("counter: expected number, got %T", v)
	}
	if f < 0 || f != math.Trunc(f) || f > 1<<53 {
		return fmt.Errorf("counter: %v is not a non-negative integer", f)
	}
	return nil
})

// Counter returns the current value of a shadowed integer counter, or
// start if none is stored. Counters are kept as plain decimal text under
// the same primary/backup discipline as collections.
func (s *Store) Counter(key string, start int64) int64 {
	v := s.Load(key, counterValidator, start)
	if f, ok := v.(float64); ok {
		return int64(f)
	}
	return start
}

// Next returns the counter's current value and stores the value plus one.
func (s *Store) Next(key string, start int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.choose(key, counterValidator, start)
	s.recorder.Loaded(key, res.Source)
	n := start
	if f, ok := res.Value.(float64); ok {
		n = int64(f)
	}
	s.save(key, n+1)
	return n
}
