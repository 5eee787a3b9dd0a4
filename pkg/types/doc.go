/*
Package types defines the shared data model for Hutch.

Core types include Instance (a tenant's reverse-proxy deployment),
Host and LoadBalancer (fleet resources), PendingTask (the durable
single-flight marker for async operations), CertificateRecord (tracked for
renewal), Plan (per-plan configuration overrides), LockHandle (a held
cluster-wide lock) and Job (a queued unit of work).

All records are JSON-tagged for persistence in the bbolt store.
*/
package types
