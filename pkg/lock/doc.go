/*
Package lock provides cluster-wide mutual exclusion over the shared store.

Locks are named, timed and extendable. Acquire is non-blocking and returns a
LockHandle value; there is no hidden lock object state, so a handle can be
passed between functions and the holder proven by its owner token. Expired
locks are reclaimable by any worker, which bounds the damage of a crashed
holder to the lock's ttl.

The restore sweep is the only current user: it guarantees a single worker
drives machine restores at a time.
*/
package lock
