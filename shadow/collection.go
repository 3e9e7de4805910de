package shadow

import (
	"encoding/json"

	"go.uber.org/zap"
)

// Collection describes a typed collection: where it lives, what shape it
// must have, and what to use when nothing valid is stored.
type Collection[T any] struct {
	Key    string
	Schema Validator
	// Default builds a fresh default value. A nil Default yields T's zero value.
	Default func() T
}

func (c Collection[T]) fallback() T {
	if c.Default == nil {
		var zero T
		return zero
	}
	return c.Default()
}

// Load reads c from s and converts the decoded value into T. If the
// conversion fails the default is returned instead.
func Load[T any](s *Store, c Collection[T]) T {
	def := c.fallback()
	raw := s.Load(c.Key, c.Schema, def)
	out, err := convert[T](raw)
	if err != nil {
		s.logger.Warn("collection does not fit its Go type, using default",
			zap.String("collection", c.Key),
			zap.Error(err))
		return def
	}
	return out
}

// Save writes v to both slots of c.
func Save[T any](s *Store, c Collection[T], v T) {
	s.Save(c.Key, v)
}

func convert[T any](v any) (T, error) {
	var out T
	b, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(b, &out)
	return out, err
}
