/*
Package config loads the worker configuration.

Configuration comes from three layers, later layers winning: built-in
defaults, an optional YAML file, and environment variables. The environment
names are the platform's historical ones (HOST_MANAGER, LB_MANAGER,
RPAAS_HEALTHCHECK_TIMEOUT, RESTORE_LOCK_NAME, ...), so existing deployments
keep working unchanged.

Overlay produces a per-job copy of the configuration with plan-specific
overrides applied; the certificate renewal sweep uses it to honor an
instance's plan when re-issuing certificates.
*/
package config
