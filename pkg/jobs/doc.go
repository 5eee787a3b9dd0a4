/*
Package jobs is the asynchronous orchestration core of Hutch.

The API layer never performs fleet or certificate work synchronously: it
enqueues jobs, and a pool of runner workers executes the matching handler.
Handlers coordinate the fleet provisioner, the health registry, the
certificate authorities, the task registry and the lock service under
partial-failure conditions.

# Handlers

Instance lifecycle:

  - instance.provision: create a host and load balancer, wait for the host
    to pass its health check, register it with the health registry. With
    rollback enabled, a failure destroys everything the call created and
    returns the original error.
  - instance.removal: delete every member host, the load balancer and the
    instance's healthcheck service.
  - instance.scale: drive the host pool to the requested size. The
    instance's pending task is cleared on every exit path.

Self-healing:

  - machine.health_sweep: flag failing nodes with restore tasks and clear
    tasks for recovered nodes, idempotently.
  - machine.restore_sweep: under a cluster-wide lock, restore flagged
    machines old enough to act on, honoring the per-instance failure
    backoff window and extending the lock by elapsed work time.

Certificates:

  - certificate.download: issue through a named authority and persist.
  - certificate.revoke: revoke and delete the stored record.
  - certificate.renewal_sweep: re-enqueue downloads for certificates
    nearing expiry, with fresh keys and the instance's plan configuration.

# Concurrency model

Workers pull from a shared queue with at-least-once delivery; handlers are
safe to re-run. Jobs for one instance are serialized by the durable pending
task gate, not by queue ordering. The restore sweep is the only operation
needing cluster-wide exclusivity and uses the lock service for it. Job
results are ignored by submitters; failures surface through logs, metrics
and the event broker.
*/
package jobs
