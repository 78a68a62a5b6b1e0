// Package dispatch spreads fire-and-forget SQL statements across a fixed pool
// of workers, each of which owns a private database handle.
//
// A Dispatcher holds one handle for synchronous calls (ExecDirect, Query) and
// N Workers for asynchronous ones (ExecAsync). Every asynchronous statement is
// routed to the worker with the fewest pending items. Each worker wakes on a
// fixed interval, swaps its whole pending buffer for an empty one under a
// short lock, and executes the taken items against its own handle. Failures
// of individual items are logged and reported to an optional handler; they
// never reach the submitter and never stop the worker.
package dispatch
