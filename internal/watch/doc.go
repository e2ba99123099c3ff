// Package watch holds the in-memory model the poller works on: venues,
// time windows, the static watch queue and the shared last-run stamp.
package watch
