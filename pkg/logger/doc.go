// Package logger provides slog logger construction and the attribute
// helpers shared across the engine's log points, so notification and
// device identifiers always land under the same keys.
package logger
