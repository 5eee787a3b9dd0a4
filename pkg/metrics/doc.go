/*
Package metrics exposes Prometheus metrics for the worker.

Counters and histograms cover job throughput and failures by job name,
machine restore attempts, skipped restore sweeps (lock contention), and
certificate issuance/renewal activity. Handler returns the promhttp handler
served by the worker's metrics listener.
*/
package metrics
