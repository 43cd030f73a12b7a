package statekit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_AddListener_Validation(t *testing.T) {
	b := NewBus()

	_, err := b.AddListener("", func(any) {})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidArgument))

	_, err = b.AddListener("stateChange", nil)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidArgument))
}

func TestBus_Emit_NoListeners(t *testing.T) {
	b := NewBus()

	// No-op, must not panic
	b.Emit("nobody-home", 42)
}

func TestBus_Emit_PriorityOrdering(t *testing.T) {
	b := NewBus()
	var order []string

	_, err := b.AddListener("ev", func(any) { order = append(order, "late") }, Priority(10))
	require.NoError(t, err)
	_, err = b.AddListener("ev", func(any) { order = append(order, "early") }, Priority(-5))
	require.NoError(t, err)
	_, err = b.AddListener("ev", func(any) { order = append(order, "default") })
	require.NoError(t, err)

	b.Emit("ev", nil)

	assert.Equal(t, []string{"early", "default", "late"}, order)
}

func TestBus_Emit_EqualPriorityKeepsRegistrationOrder(t *testing.T) {
	b := NewBus()
	var order []int

	for i := 0; i < 5; i++ {
		n := i
		_, err := b.AddListener("ev", func(any) { order = append(order, n) }, Priority(7))
		require.NoError(t, err)
	}

	b.Emit("ev", nil)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestBus_Once_FiresExactlyOnce(t *testing.T) {
	b := NewBus()
	calls := 0

	_, err := b.AddListener("ev", func(any) { calls++ }, Once())
	require.NoError(t, err)

	b.Emit("ev", nil)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, b.ListenerCount("ev"), "once listener should be gone after its invocation")

	b.Emit("ev", nil)
	b.Emit("ev", nil)
	assert.Equal(t, 1, calls)
}

func TestBus_Once_DoesNotSkipRemainingListeners(t *testing.T) {
	b := NewBus()
	var order []string

	_, err := b.AddListener("ev", func(any) { order = append(order, "once") }, Once())
	require.NoError(t, err)
	_, err = b.AddListener("ev", func(any) { order = append(order, "second") })
	require.NoError(t, err)
	_, err = b.AddListener("ev", func(any) { order = append(order, "third") })
	require.NoError(t, err)

	b.Emit("ev", nil)

	assert.Equal(t, []string{"once", "second", "third"}, order,
		"removing the once listener mid-emit must not skip or duplicate the rest")
}

func TestBus_RemoveListener_MidEmit(t *testing.T) {
	b := NewBus()
	var order []string
	var victim *Subscription

	_, err := b.AddListener("ev", func(any) {
		order = append(order, "first")
		b.RemoveListener(victim)
	})
	require.NoError(t, err)

	victim, err = b.AddListener("ev", func(any) { order = append(order, "victim") })
	require.NoError(t, err)

	_, err = b.AddListener("ev", func(any) { order = append(order, "last") })
	require.NoError(t, err)

	b.Emit("ev", nil)

	assert.Equal(t, []string{"first", "last"}, order,
		"a listener removed mid-emit must not fire; later listeners still must")
}

func TestBus_RemoveListener_NilAndDouble(t *testing.T) {
	b := NewBus()

	sub, err := b.AddListener("ev", func(any) {})
	require.NoError(t, err)

	b.RemoveListener(nil)
	b.RemoveListener(sub)
	b.RemoveListener(sub) // double removal is a no-op
	assert.Equal(t, 0, b.ListenerCount("ev"))
}

func TestBus_RemoveAllListeners(t *testing.T) {
	b := NewBus()
	calls := 0

	for i := 0; i < 3; i++ {
		_, err := b.AddListener("ev", func(any) { calls++ })
		require.NoError(t, err)
	}

	b.RemoveAllListeners("ev")
	b.RemoveAllListeners("never-registered") // no-op

	b.Emit("ev", nil)
	assert.Equal(t, 0, calls)
}

func TestBus_ReentrantEmit(t *testing.T) {
	b := NewBus()
	var order []string

	_, err := b.AddListener("outer", func(any) {
		order = append(order, "outer-1")
		b.Emit("inner", nil)
	})
	require.NoError(t, err)
	_, err = b.AddListener("outer", func(any) { order = append(order, "outer-2") })
	require.NoError(t, err)
	_, err = b.AddListener("inner", func(any) { order = append(order, "inner") }, Once())
	require.NoError(t, err)

	b.Emit("outer", nil)

	assert.Equal(t, []string{"outer-1", "inner", "outer-2"}, order,
		"a nested emit must not corrupt the outer iteration")
}

func TestBus_ReentrantOnce_FiresOnce(t *testing.T) {
	b := NewBus()
	calls := 0

	_, err := b.AddListener("ev", func(any) {
		calls++
		if calls == 1 {
			// Reentrant emit from inside the once callback itself
			b.Emit("ev", nil)
		}
	}, Once())
	require.NoError(t, err)

	b.Emit("ev", nil)
	assert.Equal(t, 1, calls)
}

func TestBus_Emit_PayloadDelivered(t *testing.T) {
	b := NewBus()
	var got any

	_, err := b.AddListener("ev", func(payload any) { got = payload })
	require.NoError(t, err)

	b.Emit("ev", "hello")
	assert.Equal(t, "hello", got)
}
