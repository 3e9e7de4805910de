// Package shadow keeps named collections in a slot store with a shadow
// backup copy and validates them on every read.
//
// Each collection C occupies two slots: C (primary) and C_backup (backup),
// both holding the same JSON text after any successful write. Reads pick the
// first of primary, backup, default that decodes and passes the collection's
// validator, then write the winner back to both slots so a damaged primary
// is repaired once and not on every read.
//
// Nothing in this package returns an error from Load or Save. Read, decode
// and validation failures fall through to the next candidate; write failures
// go to the logger and the Recorder. The caller's in-memory copy stays
// authoritative until the process restarts.
package shadow

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/stevemurr/dashstate/store"
)

// BackupSuffix is appended to a collection key to name its backup slot.
const BackupSuffix = "_backup"

// BackupKey returns the backup slot name for a collection key.
func BackupKey(key string) string {
	return key + BackupSuffix
}

// Validator decides whether a decoded value is acceptable for a collection.
// schema.Shape satisfies it.
type Validator interface {
	Check(value any) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(value any) error

func (f ValidatorFunc) Check(value any) error { return f(value) }

// Source names where a loaded value came from.
type Source string

const (
	FromPrimary Source = "primary"
	FromBackup  Source = "backup"
	FromDefault Source = "default"
)

// Branch names the recovery path taken when the backup wins.
type Branch string

const (
	// PrimaryInvalid: the primary slot existed but could not be read,
	// decoded, or validated.
	PrimaryInvalid Branch = "primary_invalid"
	// PrimaryMissing: the primary slot was empty.
	PrimaryMissing Branch = "primary_missing"
)

// Recorder receives counts of what the store did. metrics.Shadow
// implements it with Prometheus counters.
type Recorder interface {
	Loaded(collection string, source Source)
	Recovered(collection string, branch Branch)
	WriteFailed(collection string)
}

type nopRecorder struct{}

func (nopRecorder) Loaded(string, Source)    {}
func (nopRecorder) Recovered(string, Branch) {}
func (nopRecorder) WriteFailed(string)       {}

// Store wraps a slot store with validated, backed-up collection access.
// Safe for concurrent use; operations are serialized.
type Store struct {
	mu       sync.Mutex
	slots    store.Store
	logger   *zap.Logger
	recorder Recorder
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger that receives recovery warnings and write errors.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder sets the Recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// New wraps slots.
func New(slots store.Store, opts ...Option) *Store {
	s := &Store{
		slots:    slots,
		logger:   zap.NewNop(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Slots returns the underlying slot store, for bare scalar slots that do
// not use the primary/backup discipline.
func (s *Store) Slots() store.Store {
	return s.slots
}

// Result is a loaded value and where it came from.
type Result struct {
	Value  any
	Source Source
}

// Load returns the best valid value for key: the primary, else the backup,
// else def. The chosen value is written back to both slots before
// returning. Load never fails.
//
// def is normalized through JSON so the returned value has the same
// dynamic types as a decoded slot ([]any, map[string]any, float64, ...).
func (s *Store) Load(key string, v Validator, def any) any {
	return s.LoadResult(key, v, def).Value
}

// LoadResult is Load that also reports the source of the value.
func (s *Store) LoadResult(key string, v Validator, def any) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.choose(key, v, def)
	s.recorder.Loaded(key, res.Source)
	s.save(key, res.Value)
	return res
}

func (s *Store) choose(key string, v Validator, def any) Result {
	primary, present, cause := s.candidate(key, v)
	if cause == nil && present {
		return Result{Value: primary, Source: FromPrimary}
	}

	branch := PrimaryMissing
	if present || cause != nil {
		branch = PrimaryInvalid
	}

	backup, backupPresent, backupCause := s.candidate(BackupKey(key), v)
	if backupCause == nil && backupPresent {
		fields := []zap.Field{
			zap.String("collection", key),
			zap.String("branch", string(branch)),
		}
		if cause != nil {
			fields = append(fields, zap.NamedError("cause", cause))
		}
		s.logger.Warn("recovered collection from backup", fields...)
		s.recorder.Recovered(key, branch)
		return Result{Value: backup, Source: FromBackup}
	}

	if cause != nil || backupCause != nil {
		s.logger.Debug("no valid copy of collection, using default",
			zap.String("collection", key),
			zap.NamedError("primary", cause),
			zap.NamedError("backup", backupCause))
	}
	return Result{Value: normalize(def), Source: FromDefault}
}

// candidate reads, decodes and validates one slot. present reports whether
// the slot held anything; a read error counts as present so it takes the
// invalid branch rather than the missing one.
func (s *Store) candidate(slot string, v Validator) (value any, present bool, cause error) {
	raw, ok, err := s.slots.Get(slot)
	if err != nil {
		return nil, true, fmt.Errorf("read %s: %w", slot, err)
	}
	if !ok {
		return nil, false, nil
	}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, true, fmt.Errorf("decode %s: %w", slot, err)
	}
	if err := check(v, value); err != nil {
		return nil, true, fmt.Errorf("validate %s: %w", slot, err)
	}
	return value, true, nil
}

var errValidatorPanicked = errors.New("validator panicked")

func check(v Validator, value any) (err error) {
	if v == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errValidatorPanicked, r)
		}
	}()
	return v.Check(value)
}

func normalize(def any) any {
	b, err := json.Marshal(def)
	if err != nil {
		return def
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return def
	}
	return out
}

// Save writes value to the primary and then the backup slot. The value is
// not validated. Failures are logged and counted, never returned; if the
// primary write fails the backup is left as it was.
func (s *Store) Save(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save(key, value)
}

func (s *Store) save(key string, value any) {
	b, err := json.Marshal(value)
	if err != nil {
		s.writeFailed(key, fmt.Errorf("encode: %w", err))
		return
	}
	text := string(b)
	if err := s.slots.Set(key, text); err != nil {
		s.writeFailed(key, err)
		return
	}
	if err := s.slots.Set(BackupKey(key), text); err != nil {
		s.writeFailed(key, err)
	}
}

func (s *Store) writeFailed(key string, err error) {
	s.logger.Error("persist collection failed",
		zap.String("collection", key),
		zap.Error(err),
		zap.Bool("quota_exceeded", errors.Is(err, store.ErrQuotaExceeded)))
	s.recorder.WriteFailed(key)
}

// ClearExcept empties every slot except the primary and backup slots of the
// named collections. Unlike Load and Save it reports storage errors, since
// it is an explicit maintenance action.
func (s *Store) ClearExcept(preserve ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]bool, 2*len(preserve))
	for _, k := range preserve {
		keep[k] = true
		keep[BackupKey(k)] = true
	}
	keys, err := s.slots.Keys()
	if err != nil {
		return fmt.Errorf("list slots: %w", err)
	}
	var errs []error
	for _, k := range keys {
		if keep[k] {
			continue
		}
		if err := s.slots.Delete(k); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}
