package statekit

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_TicksUntilStopped(t *testing.T) {
	var ticks atomic.Int64
	p := newPoller(5*time.Millisecond, func(ctx context.Context) {
		ticks.Add(1)
	})

	require.Eventually(t, func() bool { return ticks.Load() >= 3 },
		time.Second, time.Millisecond)

	p.Stop()
	settled := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, ticks.Load())
}

func TestPoller_StopIsIdempotent(t *testing.T) {
	p := newPoller(time.Hour, func(ctx context.Context) {})

	p.Stop()
	p.Stop() // second stop must not panic or block
}

func TestPoller_StopCancelsTickContext(t *testing.T) {
	got := make(chan context.Context, 1)
	p := newPoller(5*time.Millisecond, func(ctx context.Context) {
		select {
		case got <- ctx:
		default:
		}
	})

	var ctx context.Context
	select {
	case ctx = <-got:
	case <-time.After(time.Second):
		t.Fatal("poller never ticked")
	}

	p.Stop()
	select {
	case <-ctx.Done():
	default:
		t.Fatal("tick context should be cancelled after Stop")
	}
}
