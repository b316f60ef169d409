// Package homework holds the wire model of the homework-review API and the
// pure functions that turn a decoded response into a notification text.
//
// Upstream payloads are untrusted: ValidateResponse checks every key the
// rest of the bot dereferences, and Resolve rejects submissions whose fields
// are missing or whose status is not in Verdicts.
package homework
