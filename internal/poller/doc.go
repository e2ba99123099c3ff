// Package poller runs the scan loop: for every pending watch item inside
// the look-ahead horizon it asks the slot source for free slots and, when
// some are found, sends one notification and marks the item handled.
//
// Cycles are strictly sequential. The loop sleeps a fixed interval between
// cycles; there is no retry policy for failed queries, the next cycle simply
// tries again.
package poller
