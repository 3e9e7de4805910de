// Package app holds the dashboard's application state: every collection,
// counter and session slot, owned by one State built at startup.
package app

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/stevemurr/dashstate/shadow"
)

var (
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownCounter    = errors.New("unknown counter")
	ErrInvalid           = errors.New("invalid value")
	ErrNotFound          = errors.New("not found")
)

// idAlphabet is used for the random part of string record ids.
const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Options configures Open.
type Options struct {
	Logger *zap.Logger
	// Preserve lists the collections that survive Logout.
	Preserve []string
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// binding ties a collection to the State field caching it.
type binding struct {
	schema  shadow.Validator
	load    func()
	persist func()
	get     func() any
	set     func(v any) error
}

// State is the in-memory copy of every collection plus the shadow store
// that persists it. The in-memory copy is authoritative for the life of the
// process, even when a write to the slot store fails.
type State struct {
	mu       sync.Mutex
	store    *shadow.Store
	logger   *zap.Logger
	preserve []string
	now      func() time.Time
	entropy  io.Reader

	updates       []Update
	activity      []ActivityEntry
	users         []User
	threads       []Thread
	announcements []Announcement
	preferences   map[string]Preference

	collections map[string]binding
}

// Open loads every collection from s, repairing damaged slots as it goes.
func Open(s *shadow.Store, opts Options) *State {
	st := &State{
		store:    s,
		logger:   opts.Logger,
		preserve: opts.Preserve,
		now:      opts.Now,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
	if st.logger == nil {
		st.logger = zap.NewNop()
	}
	if st.now == nil {
		st.now = time.Now
	}
	st.collections = map[string]binding{
		KeyUpdates:       bind(st, updatesCollection, &st.updates),
		KeyActivityLogs:  bind(st, activityCollection, &st.activity),
		KeyUsers:         bind(st, usersCollection, &st.users),
		KeyForumThreads:  bind(st, threadsCollection, &st.threads),
		KeyAnnouncements: bind(st, announcementsCollection, &st.announcements),
		KeyPreferences:   bind(st, preferencesCollection, &st.preferences),
	}
	st.reload()
	return st
}

func bind[T any](st *State, c shadow.Collection[T], field *T) binding {
	return binding{
		schema:  c.Schema,
		load:    func() { *field = shadow.Load(st.store, c) },
		persist: func() { shadow.Save(st.store, c, *field) },
		get:     func() any { return *field },
		set: func(v any) error {
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalid, err)
			}
			var typed T
			if err := json.Unmarshal(b, &typed); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalid, err)
			}
			*field = typed
			shadow.Save(st.store, c, typed)
			return nil
		},
	}
}

func (st *State) reload() {
	for _, name := range st.namesLocked() {
		st.collections[name].load()
	}
	st.logger.Debug("collections loaded", zap.Strings("collections", st.namesLocked()))
}

func (st *State) namesLocked() []string {
	names := make([]string, 0, len(st.collections))
	for name := range st.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Names returns the collection keys in sorted order.
func (st *State) Names() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.namesLocked()
}

func (st *State) binding(name string) (binding, error) {
	b, ok := st.collections[name]
	if !ok {
		return binding{}, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return b, nil
}

// Snapshot returns a deep copy of a collection's current value.
func (st *State) Snapshot(name string) (any, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	b, err := st.binding(name)
	if err != nil {
		return nil, err
	}
	return deepCopy(b.get()), nil
}

// Replace validates a decoded JSON value against the collection's schema
// and, if it passes, makes it the collection's new value.
func (st *State) Replace(name string, value any) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	b, err := st.binding(name)
	if err != nil {
		return err
	}
	if err := b.schema.Check(value); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := verifyRecords(name, value); err != nil {
		return err
	}
	if err := b.set(value); err != nil {
		return err
	}
	st.raiseCounters(name)
	st.logActivityLocked(fmt.Sprintf("Collection replaced: %s", name), SystemUser)
	return nil
}

// Inspect reports the raw primary and backup slots of a collection.
func (st *State) Inspect(name string) (shadow.Inspection, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	b, err := st.binding(name)
	if err != nil {
		return shadow.Inspection{}, err
	}
	return st.store.Inspect(name, b.schema), nil
}

// verifyRecords applies the checks a shape cannot express: user roles and
// statuses must be known, and record ids must be unique.
func verifyRecords(name string, value any) error {
	switch name {
	case KeyUsers:
		users, err := decodeAs[[]User](value)
		if err != nil {
			return err
		}
		seen := make(map[int64]bool, len(users))
		for _, u := range users {
			if err := u.Role.valid(); err != nil {
				return err
			}
			if err := u.Status.valid(); err != nil {
				return err
			}
			if seen[u.ID] {
				return fmt.Errorf("%w: duplicate user id %d", ErrInvalid, u.ID)
			}
			seen[u.ID] = true
		}
	case KeyForumThreads:
		threads, err := decodeAs[[]Thread](value)
		if err != nil {
			return err
		}
		seen := make(map[int64]bool, len(threads))
		for _, t := range threads {
			if seen[t.ID] {
				return fmt.Errorf("%w: duplicate thread id %d", ErrInvalid, t.ID)
			}
			seen[t.ID] = true
		}
	}
	return nil
}

// raiseCounters moves an id counter past the highest id of a replaced
// collection, so later inserts cannot reuse an id.
func (st *State) raiseCounters(name string) {
	var (
		counter string
		highest int64
	)
	switch name {
	case KeyUsers:
		counter = CounterUserID
		for _, u := range st.users {
			highest = max(highest, u.ID)
		}
	case KeyForumThreads:
		counter = CounterThreadID
		for _, t := range st.threads {
			highest = max(highest, t.ID)
		}
	default:
		return
	}
	if st.store.Counter(counter, 1) <= highest {
		st.store.Save(counter, highest+1)
	}
}

func decodeAs[T any](value any) (T, error) {
	var out T
	b, err := json.Marshal(value)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return out, nil
}

// NextCounter advances one of the shadowed id counters and returns the
// value it held.
func (st *State) NextCounter(name string) (int64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	switch name {
	case CounterUserID, CounterThreadID:
		return st.store.Next(name, 1), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCounter, name)
}

// Login marks a session as active by writing the bare session slot.
func (st *State) Login(user, token string) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrInvalid)
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.store.Slots().Set(SessionSlot, token); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	st.logActivityLocked("User logged in", user)
	return nil
}

// LoggedIn reports whether the session slot is set.
func (st *State) LoggedIn() bool {
	_, ok, err := st.store.Slots().Get(SessionSlot)
	return err == nil && ok
}

// Logout records the logout, then empties every slot except the preserved
// collections and reloads, so discarded collections fall back to defaults.
func (st *State) Logout(user string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.logActivityLocked("User logged out", user)
	if err := st.store.ClearExcept(st.preserve...); err != nil {
		return fmt.Errorf("clear slots: %w", err)
	}
	st.reload()
	st.logger.Info("session cleared", zap.Strings("preserved", st.preserve))
	return nil
}

func (st *State) timestamp() string {
	return st.now().UTC().Format(time.RFC3339)
}

func (st *State) newULID() string {
	return ulid.MustNew(ulid.Timestamp(st.now()), st.entropy).String()
}

func newID(prefix string) (string, error) {
	id, err := nanoid.Generate(idAlphabet, 10)
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return prefix + id, nil
}

func deepCopy(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
