// Package statemachine provides a minimal finite state machine used to
// validate lifecycle transitions, such as the deployment lifecycle of a
// tenant feature (not_licensed → pending_deployment → deployed →
// pending_removal → removed).
//
// A Machine is a static transition table; it holds no current state and
// is safe for concurrent use. Callers keep the state themselves (usually
// in a persisted record) and ask the machine whether a transition is
// legal:
//
//	m := statemachine.New(
//	    statemachine.T("draft", "published", "publish"),
//	    statemachine.T("published", "archived", "archive"),
//	)
//	next, err := m.Fire("draft", "publish") // "published", nil
package statemachine
