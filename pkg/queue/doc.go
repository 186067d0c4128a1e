// Package queue provides the durable, at-least-once delivery work queue the
// engine fans notifications out onto. Each notification gets its own queue
// path holding one message per unit of delivery work.
//
// Messages are taken under a transaction handle with a visibility timeout:
// a consumer that crashes before committing loses nothing, the message
// simply becomes visible again after the timeout and is redelivered.
// Downstream receipt writes are idempotent, so redelivery is safe.
//
// A queue is drained only when all three of HasPendingReads,
// HasOutstandingTransactions and HasMessages report false; the engine uses
// that condition to decide a notification is finished.
//
// MemoryQueue implements the contract in process memory; RedisQueue keeps
// ready messages in a list and uncommitted takes in a sorted set scored by
// their redelivery deadline.
package queue
