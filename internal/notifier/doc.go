// Package notifier delivers bot messages to the configured chat.
//
// Unlike a fire-and-forget queue, Send is synchronous: the poll loop only
// advances its cursor after the status message has actually been accepted by
// the transport. Each Send waits on a token bucket, retries transient
// failures a few times with jittered exponential backoff and gives up with
// ErrDelivery.
//
// # Dedup
//
// When a dedup window is configured, identical text to the same target is
// suppressed within the window and reported as delivered. With a store and
// persist_dedup the window survives restarts.
//
// # History
//
// For debugging and operator visibility, the service keeps a small in-memory
// history of delivered messages and, when storage is enabled, an audit entry
// per outcome.
package notifier
