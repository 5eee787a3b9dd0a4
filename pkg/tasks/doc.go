/*
Package tasks implements the task registry: the durable single-flight gate
for asynchronous operations.

A pending task record means "an async job is outstanding for this key".
EnsureReady rejects conflicting submissions with ErrAlreadyRunning; Remove
deletes only records that exist, failing with ErrTaskNotFound otherwise, so
silent no-ops upstream become observable errors.

Restore tasks (IDs prefixed restore_) drive the self-healing loop. The
registry exposes the two queries the restore sweep needs: tasks old enough
to act on, and instances still inside the per-instance failure backoff
window.
*/
package tasks
