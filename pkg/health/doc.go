/*
Package health probes reverse-proxy hosts over HTTP.

The Prober polls a host's health endpoint until it answers with an
acceptable status or a hard timeout elapses. Provisioning and restore block
on WaitHealthy before registering a host anywhere, so a host that never
comes up fails the surrounding operation instead of serving traffic.
*/
package health
