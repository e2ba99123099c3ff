// Package toplogger is a small client for the TopLogger booking API. It
// implements the poller's slot source: select a venue, then ask for the free
// slots inside a window.
package toplogger
