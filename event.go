package statekit

// Internal event kinds emitted by the store. Any other string is a valid
// user-defined event type on the bus; these two carry a Change payload.
const (
	// EventStateChange is emitted after every successful state write
	// (Mutate, Dispatch, or a query resolution).
	EventStateChange = "stateChange"

	// EventQueryChange is emitted after every query resolution, whether
	// the result came from the cache or from the network.
	EventQueryChange = "queryChange"
)

// Change is the payload carried by stateChange and queryChange events.
type Change struct {
	// Type is the name of the affected slice.
	Type string

	// TagType is the cache partition within the slice, when the change is
	// tag-scoped (query resolutions, tagged mutations). Empty otherwise.
	TagType string

	// State is the new value: the replacement slice value for untagged
	// changes, or the payload stored under (Type, TagType) for tagged ones.
	State any

	// Version is the logical version stamped on the write. Cached query
	// re-emissions reuse the version of the write that populated the cache.
	Version int64
}
