/*
Package events provides an in-memory event broker for Hutch's pub/sub
messaging.

Jobs are fire-and-forget: the submitter never sees a result. The broker is
the error-recording facility that keeps a trace of ignored outcomes. The
runner publishes job lifecycle events (enqueued, completed, failed) and the
handlers publish domain events (instance created, machine restored,
certificate issued). Delivery is asynchronous and non-blocking; a slow
subscriber loses events rather than stalling the workers.
*/
package events
