// Package quota implements the daily unit budget gating remote API calls.
//
// The governor tracks one counter: units consumed during the current local
// calendar day. Every remote operation has a fixed cost; callers ask
// Admit(cost) before dispatching and Consume(cost) after the remote
// answered. Admit is a pure query, Consume is the only mutation. The
// admit/call/consume span is deliberately not atomic: holding the budget
// lock across a network call would serialize all remote traffic, so
// concurrent callers may overshoot the limit by less than one call's cost
// each. The remote side enforces its own quota; this one exists to stop
// runaway spending, not to be exact.
//
// The counter is persisted through the cache engine's preference namespace
// under quota/units/<date>, so the budget survives restarts within the
// same day. Rollover is lazy: the first access after midnight starts a
// fresh counter and purges keys older than the retention window. A persist
// failure is logged and the in-memory counter stays authoritative for the
// session; the worst case after a crash is re-spending a day's units. The
// remote's own enforcement remains the hard ceiling.
package quota
