// Package jobs provides deferred job scheduling for the notification
// engine. Fan-out and delivery run inside jobs so that work survives the
// request that started it: a notification with more recipients than one
// pass can cover hands itself off to a job, and scheduled notifications
// become jobs that fire at their deliver time.
//
// Scheduler is the only surface the engine depends on. MemoryScheduler
// implements it in process memory with a timer-driven dispatch loop and is
// suitable for tests and single-process deployments.
//
// An Execution carries the per-run state of a job. Handlers mark it
// completed, failed, or killed; a killed execution is never retried.
package jobs
