package statekit

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Action is the descriptor passed to Dispatch, produced by an ActionCreator.
type Action struct {
	Name    string
	Payload any
}

// Reducer computes the replacement value for a slice.
//
// Reducers are copy-on-write: they receive the current slice value and must
// return the full replacement. Returning an error aborts the dispatch with
// the slice untouched and nothing emitted.
type Reducer func(slice any, payload any) (any, error)

// ActionCreator produces an Action descriptor for Dispatch.
type ActionCreator func(payload any) Action

// ActionSet registers named reducers against a slice.
type ActionSet struct {
	// Type is the slice the reducers operate on.
	Type string

	// Reducers maps action names to reducer functions.
	Reducers map[string]Reducer
}

// creatorTitle derives the exported creator name for a registered name:
// "increment" becomes "UseIncrement", "fetchAll" becomes "UseFetchAll".
var creatorTitle = cases.Title(language.English, cases.NoLower)

func creatorName(name string) string {
	return "Use" + creatorTitle.String(name)
}

// RegisterAction registers the set's reducers and returns the generated
// action creators, keyed by creator name ("UseIncrement" for "increment").
//
// Re-registering a type merges the new reducers into the existing set;
// a reducer with an already-registered name replaces the previous one.
func (s *Store) RegisterAction(set ActionSet) (map[string]ActionCreator, error) {
	if set.Type == "" {
		return nil, invalidArgf("action set type must be a non-empty string")
	}
	if len(set.Reducers) == 0 {
		return nil, invalidArgf("action set %q has no reducers", set.Type)
	}
	for name, r := range set.Reducers {
		if name == "" {
			return nil, invalidArgf("action set %q has a reducer with an empty name", set.Type)
		}
		if r == nil {
			return nil, invalidArgf("reducer %q of action set %q is nil", name, set.Type)
		}
	}

	s.mu.Lock()
	reg := s.actions[set.Type]
	if reg == nil {
		reg = make(map[string]Reducer, len(set.Reducers))
		s.actions[set.Type] = reg
	}
	for name, r := range set.Reducers {
		reg[name] = r
	}
	s.mu.Unlock()

	creators := make(map[string]ActionCreator, len(set.Reducers))
	for name := range set.Reducers {
		actionName := name
		creators[creatorName(name)] = func(payload any) Action {
			return Action{Name: actionName, Payload: payload}
		}
	}
	return creators, nil
}

// Dispatch runs the named reducer against the current slice value, replaces
// the slice with the reducer's result, and emits one stateChange.
//
// Unknown types and action names fail with a lookup error; neither mutates
// state nor emits.
func (s *Store) Dispatch(actionType string, act Action) error {
	if actionType == "" {
		return invalidArgf("action type must be a non-empty string")
	}
	if act.Name == "" {
		return invalidArgf("action descriptor must carry a name")
	}

	s.mu.Lock()
	reg, ok := s.actions[actionType]
	if !ok {
		s.mu.Unlock()
		return &Error{
			Code:    ErrCodeNoActionsForType,
			Message: "no actions registered for type " + actionType,
			Slice:   actionType,
		}
	}
	reducer, ok := reg[act.Name]
	if !ok {
		s.mu.Unlock()
		return &Error{
			Code:    ErrCodeNoActionFound,
			Message: "no action " + act.Name + " registered for type " + actionType,
			Slice:   actionType,
			Action:  act.Name,
		}
	}

	next, err := reducer(s.state[actionType], act.Payload)
	if err != nil {
		s.mu.Unlock()
		return &Error{
			Code:    ErrCodeReducerFailed,
			Message: "reducer " + act.Name + " failed",
			Slice:   actionType,
			Action:  act.Name,
			Err:     err,
		}
	}
	s.state[actionType] = next
	version := s.clock.next()
	s.mu.Unlock()

	s.bus.Emit(EventStateChange, Change{Type: actionType, State: next, Version: version})
	return nil
}
