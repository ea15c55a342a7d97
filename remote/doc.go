// Package remote is the facade application code calls to read remote
// content: videos, channel statistics, and video lists, plus the
// composite feed that enriches a list with channel data.
//
// Every read runs the same pipeline:
//
//	cache check -> singleflight -> quota admission -> transport call ->
//	quota consumption -> cache write
//
// The ordering carries the product behavior. A cache hit costs nothing
// and works offline or with an exhausted budget. Admission happens before
// the transport is touched, so a denied call spends neither quota nor
// bandwidth. Consumption happens whenever the remote answered, including
// rejections, server errors and malformed bodies: the provider bills
// those, so the local counter must too. Timeouts and failures to reach
// the remote are free. Concurrent fetches of the same resource coalesce
// into one transport call and one charge.
//
// Failures keep their shape: quota denials are *QuotaError (wrapping
// ErrQuotaExhausted), transport problems are *TransportError with a
// category, and the composite Feed degrades to a partial result instead
// of failing when the budget runs out mid-sequence.
package remote
