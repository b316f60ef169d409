// Package storage provides the optional persistence layer of the bot.
//
// It records:
//   - a delivery audit log (one entry per notification outcome)
//   - notifier dedup state, so suppression windows survive restarts
//
// The poll cursor is deliberately not stored here; it lives in process memory.
package storage
