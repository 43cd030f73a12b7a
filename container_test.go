package statekit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidInitialState(t *testing.T) {
	_, err := New(WithInitialState(nil))
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidArgument))
}

func TestNew_WithInitialState(t *testing.T) {
	s, err := New(WithInitialState(map[string]any{"counter": 5}))
	require.NoError(t, err)

	got := s.Select(func(state map[string]any) any { return state["counter"] })
	assert.Equal(t, 5, got)
}

func TestStore_Mutate_EmitsSingleChange(t *testing.T) {
	s, err := New(WithInitialState(map[string]any{"counter": 5}))
	require.NoError(t, err)

	var changes []Change
	_, err = s.AddListener(EventStateChange, func(payload any) {
		changes = append(changes, payload.(Change))
	})
	require.NoError(t, err)

	err = s.Mutate("counter", "", func(current any) any {
		return current.(int) + 1
	})
	require.NoError(t, err)

	got := s.Select(func(state map[string]any) any { return state["counter"] })
	assert.Equal(t, 6, got)

	require.Len(t, changes, 1)
	assert.Equal(t, "counter", changes[0].Type)
	assert.Equal(t, "", changes[0].TagType)
	assert.Equal(t, 6, changes[0].State)
	assert.Equal(t, int64(1), changes[0].Version)
}

func TestStore_Mutate_Validation(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	err = s.Mutate("", "", func(any) any { return nil })
	assert.True(t, IsCode(err, ErrCodeInvalidArgument))

	err = s.Mutate("counter", "", nil)
	assert.True(t, IsCode(err, ErrCodeInvalidArgument))
}

func TestStore_Mutate_CarriesTagType(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	var got Change
	_, err = s.AddListener(EventStateChange, func(payload any) { got = payload.(Change) })
	require.NoError(t, err)

	err = s.Mutate("products", "current", func(any) any {
		return map[string]any{"current": map[string]any{"id": 1}}
	})
	require.NoError(t, err)
	assert.Equal(t, "current", got.TagType)
}

func TestStore_Select_IsPureRead(t *testing.T) {
	s, err := New(WithInitialState(map[string]any{"a": 1, "b": 2}))
	require.NoError(t, err)

	sum := s.Select(func(state map[string]any) any {
		return state["a"].(int) + state["b"].(int)
	})
	assert.Equal(t, 3, sum)

	// Mutating the snapshot's top level must not leak into the store.
	s.Select(func(state map[string]any) any {
		delete(state, "a")
		return nil
	})
	assert.Equal(t, 1, s.Select(func(state map[string]any) any { return state["a"] }))
}

func TestStore_Use_MergesInitializers(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	err = s.Use(
		Slice{Name: "counter", Initial: map[string]any{"count": 0}},
		Slice{Name: "products", Initial: map[string]any{}},
	)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"count": 0},
		s.Select(func(state map[string]any) any { return state["counter"] }))
}

func TestStore_Use_EmptyNameFails(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	err = s.Use(Slice{Name: "", Initial: 1})
	assert.True(t, IsCode(err, ErrCodeInvalidArgument))
}

func TestStore_Use_PrefersStoredState(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(context.Background(), "test",
		[]byte(`{"counter":{"count":41},"session":{"user":"ada"}}`)))

	s, err := New(WithStorage(storage, "test"))
	require.NoError(t, err)

	err = s.Use(
		Slice{Name: "counter", Initial: map[string]any{"count": 0, "step": 1}},
		Slice{Name: "fresh", Initial: map[string]any{"seeded": true}},
	)
	require.NoError(t, err)

	// Stored fields win, initializer fields without stored counterparts stay.
	counter := s.Select(func(state map[string]any) any { return state["counter"] })
	assert.Equal(t, map[string]any{"count": float64(41), "step": 1}, counter)

	// Slices without stored state use the initializer.
	fresh := s.Select(func(state map[string]any) any { return state["fresh"] })
	assert.Equal(t, map[string]any{"seeded": true}, fresh)

	// Hydration makes stored-only slices visible even without Use.
	session := s.Select(func(state map[string]any) any { return state["session"] })
	assert.Equal(t, map[string]any{"user": "ada"}, session)
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	storage := NewMemoryStorage()

	s1, err := New(WithStorage(storage, "roundtrip"))
	require.NoError(t, err)
	require.NoError(t, s1.Use(Slice{Name: "counter", Initial: map[string]any{"count": float64(0)}}))

	err = s1.Mutate("counter", "", func(any) any {
		return map[string]any{"count": float64(7)}
	})
	require.NoError(t, err)

	want := s1.Select(func(state map[string]any) any { return state })

	// Fresh construction over the same storage hydrates the persisted tree.
	s2, err := New(WithStorage(storage, "roundtrip"))
	require.NoError(t, err)

	got := s2.Select(func(state map[string]any) any { return state })
	assert.Equal(t, want, got)
}

func TestStore_SetOptions_EnableAndDisable(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(context.Background(), "late",
		[]byte(`{"counter":{"count":3}}`)))

	s, err := New()
	require.NoError(t, err)

	require.NoError(t, s.SetOptions(Options{Storage: storage, PersistenceKey: "late"}))

	// Hydrated on enable.
	counter := s.Select(func(state map[string]any) any { return state["counter"] })
	assert.Equal(t, map[string]any{"count": float64(3)}, counter)

	// Mutations now re-persist the whole tree.
	require.NoError(t, s.Mutate("counter", "", func(any) any {
		return map[string]any{"count": float64(4)}
	}))
	raw, ok, err := storage.Get(context.Background(), "late")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"counter":{"count":4}}`, string(raw))

	// Disabling stops persistence.
	require.NoError(t, s.SetOptions(Options{}))
	require.NoError(t, s.Mutate("counter", "", func(any) any {
		return map[string]any{"count": float64(5)}
	}))
	raw, _, err = storage.Get(context.Background(), "late")
	require.NoError(t, err)
	assert.JSONEq(t, `{"counter":{"count":4}}`, string(raw), "disabled store must not persist")
}

func TestStore_WithChangeListener(t *testing.T) {
	var seen []Change
	s, err := New(
		WithInitialState(map[string]any{"counter": 0}),
		WithChangeListener(func(c Change) { seen = append(seen, c) }),
	)
	require.NoError(t, err)

	require.NoError(t, s.Mutate("counter", "", func(any) any { return 1 }))
	require.Len(t, seen, 1)
	assert.Equal(t, "counter", seen[0].Type)
}

func TestStore_Version_Monotonic(t *testing.T) {
	s, err := New(WithInitialState(map[string]any{"counter": 0}))
	require.NoError(t, err)

	assert.Equal(t, int64(0), s.Version())
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Mutate("counter", "", func(any) any { return i }))
		assert.Equal(t, int64(i), s.Version())
	}
}
