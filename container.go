package statekit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
)

// DefaultPersistenceKey is the storage key used when none is configured.
// Kept for compatibility with stores persisted by earlier versions.
const DefaultPersistenceKey = "StoreState"

// Slice declares a named partition of the state tree and its initializer.
type Slice struct {
	Name    string
	Initial any
}

// Option configures a Store at construction time.
type Option func(*Store) error

// WithInitialState seeds the state tree. The map is copied shallowly;
// a nil map is a construction-time error.
func WithInitialState(initial map[string]any) Option {
	return func(s *Store) error {
		if initial == nil {
			return invalidArgf("initial state must be a non-nil map")
		}
		for k, v := range initial {
			s.state[k] = v
		}
		return nil
	}
}

// WithBus uses an externally constructed event bus instead of a private one.
func WithBus(b *Bus) Option {
	return func(s *Store) error {
		if b == nil {
			return invalidArgf("bus must not be nil")
		}
		s.bus = b
		return nil
	}
}

// WithChangeListener registers fn on stateChange before any mutation can
// occur. The payload delivered to fn is always a Change.
func WithChangeListener(fn func(Change)) Option {
	return func(s *Store) error {
		if fn == nil {
			return invalidArgf("change listener must not be nil")
		}
		_, err := s.bus.AddListener(EventStateChange, func(payload any) {
			if c, ok := payload.(Change); ok {
				fn(c)
			}
		})
		return err
	}
}

// WithStorage enables the persistence mirror: the tree is hydrated from
// storage at construction and rewritten on every stateChange. An empty key
// selects DefaultPersistenceKey.
func WithStorage(storage Storage, key string) Option {
	return func(s *Store) error {
		if storage == nil {
			return invalidArgf("storage must not be nil")
		}
		s.storage = storage
		if key != "" {
			s.persistKey = key
		}
		return nil
	}
}

// WithMatchPolicy sets the cache-hit policy for registered queries.
// Default is MatchAll.
func WithMatchPolicy(p MatchPolicy) Option {
	return func(s *Store) error {
		if p != MatchAll && p != MatchAny {
			return invalidArgf("unknown match policy %d", p)
		}
		s.matchPol = p
		return nil
	}
}

// WithHTTPClient sets the client used for query fetches.
// Default is http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) error {
		if c == nil {
			return invalidArgf("http client must not be nil")
		}
		s.client = c
		return nil
	}
}

// Store owns the mutable state tree and everything registered against it:
// listeners, actions, query endpoints, and the optional persistence mirror.
//
// All writes (Mutate, Dispatch, query resolutions, Use) are serialized
// through a single write lock, preserving the at-most-one-writer-at-a-time
// semantic. Change events are emitted after the lock is released, so
// listeners may safely re-enter the store.
type Store struct {
	mu    sync.RWMutex
	bus   *Bus
	clock versionClock

	state    map[string]any
	restored map[string]any

	actions  map[string]map[string]Reducer
	queries  map[string]*querySet
	cache    map[string]map[string]cacheEntry
	matchPol MatchPolicy
	client   *http.Client

	storage    Storage
	persistKey string
	persistSub *Subscription
}

// New constructs a Store. Options are applied in order; the first failing
// option aborts construction. When storage is configured the tree is
// hydrated before New returns.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		bus:        NewBus(),
		state:      make(map[string]any),
		actions:    make(map[string]map[string]Reducer),
		queries:    make(map[string]*querySet),
		cache:      make(map[string]map[string]cacheEntry),
		client:     http.DefaultClient,
		persistKey: DefaultPersistenceKey,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.storage != nil {
		if err := s.hydrate(); err != nil {
			return nil, err
		}
		if err := s.attachPersistListener(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Options holds the late-configurable store settings for SetOptions.
type Options struct {
	// Storage enables the persistence mirror when non-nil and disables
	// it when nil.
	Storage Storage

	// PersistenceKey overrides the storage key. Empty keeps the current
	// key (or DefaultPersistenceKey).
	PersistenceKey string
}

// SetOptions enables or disables persistence after construction.
// Enabling hydrates the tree from storage immediately, with stored slices
// taking precedence over current values.
func (s *Store) SetOptions(o Options) error {
	if o.Storage == nil {
		s.mu.Lock()
		s.storage = nil
		s.restored = nil
		s.mu.Unlock()
		if s.persistSub != nil {
			s.bus.RemoveListener(s.persistSub)
			s.persistSub = nil
		}
		return nil
	}

	s.mu.Lock()
	s.storage = o.Storage
	if o.PersistenceKey != "" {
		s.persistKey = o.PersistenceKey
	}
	s.mu.Unlock()

	if err := s.hydrate(); err != nil {
		return err
	}
	if s.persistSub == nil {
		return s.attachPersistListener()
	}
	return nil
}

// hydrate loads the persisted tree and merges it over the current state.
// Stored slices win over initializers (continuity across restarts).
func (s *Store) hydrate() error {
	s.mu.Lock()
	storage, key := s.storage, s.persistKey
	s.mu.Unlock()

	raw, ok, err := storage.Get(context.Background(), key)
	if err != nil {
		return &Error{Code: ErrCodeStorage, Message: "hydrate state", Err: err}
	}
	if !ok {
		return nil
	}

	var restored map[string]any
	if err := json.Unmarshal(raw, &restored); err != nil {
		return &Error{Code: ErrCodeStorage, Message: "decode persisted state", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.restored = restored
	for k, v := range restored {
		s.state[k] = v
	}
	return nil
}

// attachPersistListener registers the re-persist listener on stateChange.
// The whole tree is rewritten on every mutation; there is no diffing.
// Persist failures are logged and never propagated into the mutation path.
func (s *Store) attachPersistListener() error {
	sub, err := s.bus.AddListener(EventStateChange, func(any) {
		if err := s.persist(); err != nil {
			slog.Error("state persist failed", "key", s.persistKey, "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.persistSub = sub
	return nil
}

// persist serializes the current tree and writes it to storage.
func (s *Store) persist() error {
	s.mu.RLock()
	storage, key := s.storage, s.persistKey
	snapshot := make(map[string]any, len(s.state))
	for k, v := range s.state {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	if storage == nil {
		return nil
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return storage.Set(context.Background(), key, raw)
}

// Use merges the given slice initializers into the state tree. When a
// hydrated value exists for a slice it wins over the initializer; if both
// are maps the stored fields are overlaid on the initializer's.
func (s *Store) Use(slices ...Slice) error {
	for _, sl := range slices {
		if sl.Name == "" {
			return invalidArgf("slice name must be a non-empty string")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sl := range slices {
		stored, ok := s.restored[sl.Name]
		if !ok {
			s.state[sl.Name] = sl.Initial
			continue
		}

		initMap, initOK := sl.Initial.(map[string]any)
		storedMap, storedOK := stored.(map[string]any)
		if initOK && storedOK {
			merged := make(map[string]any, len(initMap)+len(storedMap))
			for k, v := range initMap {
				merged[k] = v
			}
			for k, v := range storedMap {
				merged[k] = v
			}
			s.state[sl.Name] = merged
		} else {
			s.state[sl.Name] = stored
		}
	}
	return nil
}

// Select invokes fn with a shallow snapshot of the state tree and returns
// its result. Pure read: fn must not mutate slice values it observes.
func (s *Store) Select(fn func(state map[string]any) any) any {
	s.mu.RLock()
	snapshot := make(map[string]any, len(s.state))
	for k, v := range s.state {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	return fn(snapshot)
}

// Mutate replaces the named slice with fn(current) and emits a single
// stateChange. fn receives the entire prior slice value and must return
// the full replacement; partial updates are the caller's responsibility.
// tagType is carried in the emitted Change unmodified and may be empty.
func (s *Store) Mutate(slice, tagType string, fn func(current any) any) error {
	if slice == "" {
		return invalidArgf("slice name must be a non-empty string")
	}
	if fn == nil {
		return invalidArgf("mutation function must not be nil")
	}

	s.mu.Lock()
	next := fn(s.state[slice])
	s.state[slice] = next
	version := s.clock.next()
	s.mu.Unlock()

	s.bus.Emit(EventStateChange, Change{Type: slice, TagType: tagType, State: next, Version: version})
	return nil
}

// Version returns the logical version of the most recent write.
func (s *Store) Version() int64 {
	return s.clock.current()
}

// Bus returns the store's event bus.
func (s *Store) Bus() *Bus {
	return s.bus
}

// AddListener registers a listener on the store's bus.
func (s *Store) AddListener(eventType string, fn ListenerFunc, opts ...ListenerOption) (*Subscription, error) {
	return s.bus.AddListener(eventType, fn, opts...)
}

// RemoveListener unregisters a listener from the store's bus.
func (s *Store) RemoveListener(sub *Subscription) {
	s.bus.RemoveListener(sub)
}

// Emit publishes an event on the store's bus.
func (s *Store) Emit(eventType string, payload any) {
	s.bus.Emit(eventType, payload)
}
