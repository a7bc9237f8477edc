// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunRollIn, RunCheckExisting, RunLogout, RunProfile)
// accepts a typed dependency struct and returns a tagged result. The Engine
// stays thin and every branch of the roll-in state machine can be driven
// from tests with fakes.
//
// # Architecture boundaries
//
// Flow functions coordinate the session store, provider client, poll
// supervisor, notifier, audit and metrics. They do NOT own any of these
// resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import rollAuth (to avoid import cycles).
//   - Propagate notifier failures into flow results.
package flows
