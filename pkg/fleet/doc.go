/*
Package fleet defines the provisioner capability interfaces and the backend
registries behind them.

HostManager covers host create/destroy/restore; LBManager covers load
balancer lifecycle and membership. Concrete cloud backends register
themselves by name at process start; the worker selects them through the
HOST_MANAGER and LB_MANAGER configuration keys and bundles them in a
Provisioner.

The built-in noop backend fabricates records without external side effects
and exists for dry runs, local development and tests.
*/
package fleet
