// Package matching evaluates protocol templates against observed series.
//
// Evaluation runs bottom-up. Every series template is scored against every
// observed series and classified, then every acquisition is classified from
// the statuses of its series, and finally the protocol is scored from its
// acquisitions and checked for ordering, pairing and unclaimed series. The
// phases run strictly in that order on a single goroutine; callers may
// evaluate different protocol templates concurrently because templates share
// no state.
package matching
