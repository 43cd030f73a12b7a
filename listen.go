package statekit

import "context"

// Watch subscribes fn to stateChange events whose Type is one of types.
// At least one type is required. The returned subscription removes the
// watch when passed to RemoveListener.
func (s *Store) Watch(fn func(Change), types ...string) (*Subscription, error) {
	if fn == nil {
		return nil, invalidArgf("watch callback must not be nil")
	}
	if len(types) == 0 {
		return nil, invalidArgf("watch requires at least one slice type")
	}

	match := make(map[string]struct{}, len(types))
	for _, t := range types {
		if t == "" {
			return nil, invalidArgf("watch types must be non-empty strings")
		}
		match[t] = struct{}{}
	}

	return s.bus.AddListener(EventStateChange, func(payload any) {
		c, ok := payload.(Change)
		if !ok {
			return
		}
		if _, ok := match[c.Type]; ok {
			fn(c)
		}
	})
}

// ListenCallbacks are the lifecycle callbacks for Listen. Nil callbacks
// are skipped.
type ListenCallbacks struct {
	// OnLoading fires once, before the initial fetch is triggered.
	OnLoading func()

	// OnFetching fires before each Refetch through the returned handle.
	OnFetching func()

	// OnError fires when a queryChange delivers a nil state.
	OnError func()

	// OnSuccess fires with the delivered state otherwise.
	OnSuccess func(state any)
}

// ListenHandle controls an active Listen registration.
type ListenHandle struct {
	store   *Store
	sub     *Subscription
	queryFn func(ctx context.Context) error
	cb      ListenCallbacks
}

// Refetch fires OnFetching and re-invokes the query function.
func (h *ListenHandle) Refetch(ctx context.Context) error {
	if h.cb.OnFetching != nil {
		h.cb.OnFetching()
	}
	return h.queryFn(ctx)
}

// Stop removes the queryChange listener. The handle is inert afterwards.
func (h *ListenHandle) Stop() {
	h.store.RemoveListener(h.sub)
}

// Listen registers a queryChange listener dispatching to cb, then invokes
// queryFn once to trigger the initial fetch.
//
// The listener is registered before the fetch so a synchronous cache
// re-emission is not lost. An error from the initial fetch is returned,
// but the listener stays registered (pollers and later refetches keep
// delivering); use the handle's Stop for teardown.
func (s *Store) Listen(ctx context.Context, queryFn func(ctx context.Context) error, cb ListenCallbacks) (*ListenHandle, error) {
	if queryFn == nil {
		return nil, invalidArgf("listen query function must not be nil")
	}

	sub, err := s.bus.AddListener(EventQueryChange, func(payload any) {
		c, ok := payload.(Change)
		if !ok || c.State == nil {
			if cb.OnError != nil {
				cb.OnError()
			}
			return
		}
		if cb.OnSuccess != nil {
			cb.OnSuccess(c.State)
		}
	})
	if err != nil {
		return nil, err
	}

	h := &ListenHandle{store: s, sub: sub, queryFn: queryFn, cb: cb}

	if cb.OnLoading != nil {
		cb.OnLoading()
	}
	return h, queryFn(ctx)
}
