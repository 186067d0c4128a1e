// Package dedup provides an approximate set membership filter used to
// drop duplicate device ids during notification fan-out. A device reached
// through several paths (directly, via its user, via a group) must be
// queued exactly once; tracking an exact set for millions of recipients
// costs too much memory, so the filter trades a small false positive rate
// for a fixed footprint. A false positive skips a device that was never
// queued, which is acceptable at the configured rate; false negatives
// cannot occur, so a device is never queued twice.
package dedup
