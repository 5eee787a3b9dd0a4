/*
Package storage provides durable shared state for Hutch.

The Store interface covers the record kinds the orchestration layer needs:
pending tasks (the single-flight gate), certificate records (renewal
tracking), hosts (address to manager resolution for the health sweep and
restores), instances, plans, and the named lock records backing
pkg/lock.

BoltStore is the BoltDB-backed implementation. Records are JSON-marshaled,
one bucket per kind. Every mutation is a single-record upsert or delete
inside its own transaction; the lock check-and-set is the only compound
operation and runs inside one write transaction.
*/
package storage
