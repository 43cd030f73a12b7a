// Package statekit is an in-process, event-driven state container for
// interactive applications.
//
// A Store holds a keyed state tree and exposes four ways to interact with it:
//
//   - direct mutation (Mutate) and pure reads (Select)
//   - named actions registered as reducers and fired through Dispatch
//   - remote queries registered as endpoints, reconciled with a tag-scoped
//     cache that avoids redundant HTTP fetches
//   - an optional persistence mirror that rewrites the whole tree to a
//     Storage backend on every change
//
// Every mutation is announced on the store's event bus as a "stateChange"
// event; query resolutions additionally emit "queryChange". Subscribers
// register through AddListener, Watch, or Listen.
//
// All state and cache writes are serialized through the store's internal
// lock, so a Store is safe for concurrent use. Event listeners run outside
// the lock and may re-enter the store.
package statekit
