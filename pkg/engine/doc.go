// Package engine implements the push-notification fan-out and delivery
// core: it expands a notification's target expression into a deduplicated
// set of devices, enqueues one unit of delivery work per device on a
// notification-scoped durable queue, dispatches batches of that work to
// provider adapters, records per-device receipts, and decides when the
// notification as a whole is finished.
//
// The engine owns no I/O of its own. Persistence, the delivery queue, the
// job scheduler, and the provider adapters are all injected collaborators;
// memory implementations of each exist for tests and single-process use.
//
// Small notifications complete inline. When the recipient set spans more
// than one page, or when delivery is scheduled for the future, the engine
// hands itself off to the job scheduler and resumes inside job executions,
// so no request thread carries unbounded work.
package engine
