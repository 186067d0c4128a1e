// Package provider defines the contract between the delivery engine and
// concrete push providers (APNs, FCM, WNS, ...), plus a registry that maps
// provider kinds to adapter instances.
//
// Adapters never return send errors directly: every Send invocation must
// report its outcome through the supplied Tracker, exactly once. This keeps
// provider failures per-device and prevents one bad token from aborting a
// batch. Flush is the batch boundary for providers that buffer sends into a
// single bulk call.
//
// The registry is an explicit dependency constructed once at startup and
// injected into the engine, not a process-global map, so tests can wire
// their own adapters without cross-test state.
package provider
