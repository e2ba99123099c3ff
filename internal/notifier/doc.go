// Package notifier delivers slot notifications to the configured chat and
// exposes the poll state (last run, queue) to status readers.
//
// Sends are synchronous so the caller sees delivery errors. A token bucket
// keeps bursts under the chat platform's flood limits, and a short history of
// recent messages is kept for /status.
package notifier
