/*
Package healthreg is the client side of the external service-discovery and
health-check system.

The orchestration layer only reads aggregated pass/fail status per node and
maintains per-instance healthcheck services (create service, add/remove
member URL, destroy). APIRegistry implements the interface against an
HCAPI endpoint with basic auth; Noop is substituted when no endpoint is
configured, turning every call into a cheap no-op the way a development
deployment expects.
*/
package healthreg
