// Package host is the in-process application the network tracker reports to.
//
// A Host owns the session identity (a uuid token, rotated on demand), the list of
// tracking-backend endpoints that must never be captured, the guarded-call
// wrapper used around user hooks, and a bounded send queue. Events handed to Send
// are kept in a ring buffer for cursor reads and fanned out to subscribers;
// a slow subscriber loses events rather than blocking the tracker.
package host
