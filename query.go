package statekit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// MatchPolicy decides when a cache entry satisfies a request's CacheLogic.
type MatchPolicy int

const (
	// MatchAll treats the cache as valid only when every CacheLogic field
	// equals the corresponding field of the cached value. Default.
	MatchAll MatchPolicy = iota

	// MatchAny treats the cache as valid when any single CacheLogic field
	// matches. This reproduces the legacy behavior and can serve stale
	// data when a multi-field key partially changes; prefer MatchAll.
	MatchAny
)

// Endpoint describes one remote fetch: the request path fragment appended
// to the query set's host, the cache partition it writes to, and the
// optional field/value pairs that determine cache validity.
type Endpoint struct {
	Query      string
	TagType    string
	CacheLogic map[string]any
}

// EndpointFunc resolves a payload into an Endpoint.
type EndpointFunc func(payload any) Endpoint

// QuerySet registers named endpoints against a slice.
type QuerySet struct {
	// Type is the slice that fetched payloads are written into, keyed
	// by tag: state[Type][TagType].
	Type string

	// Host is the base URL prepended to every endpoint's Query.
	Host string

	// Endpoints maps endpoint names to resolver functions.
	Endpoints map[string]EndpointFunc
}

// querySet is the stored form of a registered QuerySet.
type querySet struct {
	host      string
	endpoints map[string]EndpointFunc
}

// cacheEntry mirrors one (type, tagType) slot of the state tree. It exists
// to answer "do I already have data matching this request" before issuing
// network I/O, and is overwritten, never evicted, by subsequent fetches.
type cacheEntry struct {
	value   any
	version int64
}

// QueryOptions configures a single query invocation.
type QueryOptions struct {
	// Selector projects the decoded response body before it is written
	// to state and cache. Nil keeps the body as decoded.
	Selector func(data any) any

	// Force bypasses the cache-hit test and always fetches.
	Force bool

	// PollInterval > 0 runs the fetch immediately and then on a fixed
	// ticker until the returned handle's Poller is stopped. Tick
	// failures are logged and the next tick proceeds; there is no
	// backoff and no retry.
	PollInterval time.Duration
}

// QueryFunc is a generated query entry point returned by RegisterQuery.
type QueryFunc func(ctx context.Context, payload any, opts QueryOptions) (*QueryHandle, error)

// QueryHandle is returned from every query invocation.
type QueryHandle struct {
	// Poller is the active polling task, or nil when PollInterval was 0.
	// Callers own its teardown via Stop.
	Poller *Poller

	refetch func(ctx context.Context) error
}

// Refetch re-runs the fetch with the same payload and options.
func (h *QueryHandle) Refetch(ctx context.Context) error {
	return h.refetch(ctx)
}

// RegisterQuery registers the set's endpoints and returns the generated
// query functions, keyed by creator name ("UseList" for "list").
//
// Re-registering a type merges new endpoints into the existing set; the
// host is updated to the new set's host.
func (s *Store) RegisterQuery(set QuerySet) (map[string]QueryFunc, error) {
	if set.Type == "" {
		return nil, invalidArgf("query set type must be a non-empty string")
	}
	if set.Host == "" {
		return nil, invalidArgf("query set %q has no host", set.Type)
	}
	if len(set.Endpoints) == 0 {
		return nil, invalidArgf("query set %q has no endpoints", set.Type)
	}
	for name, ep := range set.Endpoints {
		if name == "" {
			return nil, invalidArgf("query set %q has an endpoint with an empty name", set.Type)
		}
		if ep == nil {
			return nil, invalidArgf("endpoint %q of query set %q is nil", name, set.Type)
		}
	}

	s.mu.Lock()
	qs := s.queries[set.Type]
	if qs == nil {
		qs = &querySet{endpoints: make(map[string]EndpointFunc, len(set.Endpoints))}
		s.queries[set.Type] = qs
	}
	qs.host = set.Host
	for name, ep := range set.Endpoints {
		qs.endpoints[name] = ep
	}
	s.mu.Unlock()

	funcs := make(map[string]QueryFunc, len(set.Endpoints))
	for name := range set.Endpoints {
		endpointName := name
		funcs[creatorName(name)] = func(ctx context.Context, payload any, opts QueryOptions) (*QueryHandle, error) {
			return s.runQuery(ctx, set.Type, endpointName, payload, opts)
		}
	}
	return funcs, nil
}

// runQuery performs the initial fetch and, when polling is requested,
// starts the polling task. The poller starts even when the initial fetch
// fails: polling continues to attempt on the next tick regardless.
func (s *Store) runQuery(ctx context.Context, typ, endpoint string, payload any, opts QueryOptions) (*QueryHandle, error) {
	h := &QueryHandle{
		refetch: func(ctx context.Context) error {
			return s.fetchData(ctx, typ, endpoint, payload, opts)
		},
	}

	err := h.refetch(ctx)

	if opts.PollInterval > 0 {
		h.Poller = newPoller(opts.PollInterval, func(tickCtx context.Context) {
			if tickErr := s.fetchData(tickCtx, typ, endpoint, payload, opts); tickErr != nil {
				slog.Error("poll fetch failed",
					"type", typ,
					"endpoint", endpoint,
					"error", tickErr,
				)
			}
		})
	}

	return h, err
}

// fetchData is the internal fetch routine behind every generated query
// function: resolve the endpoint, test the cache, then either re-emit the
// cached snapshot or fetch, write, and emit.
func (s *Store) fetchData(ctx context.Context, typ, endpoint string, payload any, opts QueryOptions) error {
	s.mu.RLock()
	qs, ok := s.queries[typ]
	if !ok {
		s.mu.RUnlock()
		return &Error{
			Code:    ErrCodeNoQueryForType,
			Message: "no query registered for type " + typ,
			Slice:   typ,
		}
	}
	ep, ok := qs.endpoints[endpoint]
	host := qs.host
	s.mu.RUnlock()
	if !ok {
		return &Error{
			Code:    ErrCodeNoEndpointFound,
			Message: "no endpoint " + endpoint + " registered for type " + typ,
			Slice:   typ,
			Action:  endpoint,
		}
	}

	end := ep(payload)
	token := uuid.Must(uuid.NewV7()).String()

	// Cache-hit test: an existing entry plus satisfied CacheLogic short-
	// circuits the fetch and re-emits the cached snapshot.
	if !opts.Force {
		s.mu.RLock()
		entry, cached := s.cache[typ][end.TagType]
		policy := s.matchPol
		s.mu.RUnlock()

		if cached && cacheSatisfies(policy, end.CacheLogic, entry.value) {
			slog.Debug("query cache hit",
				"type", typ,
				"endpoint", endpoint,
				"tag", end.TagType,
				"request", token,
			)
			s.bus.Emit(EventQueryChange, Change{
				Type:    typ,
				TagType: end.TagType,
				State:   entry.value,
				Version: entry.version,
			})
			return nil
		}
	}

	url := host + end.Query
	slog.Debug("query fetch",
		"type", typ,
		"endpoint", endpoint,
		"tag", end.TagType,
		"url", url,
		"request", token,
		"force", opts.Force,
	)

	data, err := s.doFetch(ctx, url)
	if err != nil {
		return err
	}
	if opts.Selector != nil {
		data = opts.Selector(data)
	}

	s.mu.Lock()
	tags, _ := s.state[typ].(map[string]any)
	next := make(map[string]any, len(tags)+1)
	for k, v := range tags {
		next[k] = v
	}
	next[end.TagType] = data
	s.state[typ] = next

	byTag := s.cache[typ]
	if byTag == nil {
		byTag = make(map[string]cacheEntry)
		s.cache[typ] = byTag
	}
	version := s.clock.next()
	byTag[end.TagType] = cacheEntry{value: data, version: version}
	s.mu.Unlock()

	slog.Info("query fetched",
		"type", typ,
		"endpoint", endpoint,
		"tag", end.TagType,
		"request", token,
		"version", version,
	)

	change := Change{Type: typ, TagType: end.TagType, State: data, Version: version}
	s.bus.Emit(EventStateChange, change)
	s.bus.Emit(EventQueryChange, change)
	return nil
}

// doFetch issues the HTTP GET and decodes the JSON response body.
// Non-2xx responses and transport failures are wrapped as TransportError,
// preserving the upstream "message" field when the body carries one.
func (s *Store) doFetch(ctx context.Context, url string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, &TransportError{URL: url, Status: resp.StatusCode, Message: body.Message}
	}

	var data any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &TransportError{URL: url, Status: resp.StatusCode, Err: err}
	}
	return data, nil
}

// cacheSatisfies applies the match policy to the CacheLogic fields against
// the cached value. No CacheLogic means the cache is never consulted; a
// cached value that is not a JSON object cannot match field comparisons.
func cacheSatisfies(policy MatchPolicy, logic map[string]any, cached any) bool {
	if len(logic) == 0 {
		return false
	}
	fields, ok := cached.(map[string]any)
	if !ok {
		return false
	}

	for key, want := range logic {
		got, present := fields[key]
		match := present && equalField(got, want)

		switch policy {
		case MatchAny:
			if match {
				return true
			}
		default: // MatchAll
			if !match {
				return false
			}
		}
	}
	return policy != MatchAny
}

// equalField compares a cached field against a CacheLogic value. Numbers
// compare by value across Go numeric types, since JSON decoding yields
// float64 while callers typically write untyped int literals.
func equalField(got, want any) bool {
	gf, gok := asFloat(got)
	wf, wok := asFloat(want)
	if gok && wok {
		return gf == wf
	}
	return reflect.DeepEqual(got, want)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
