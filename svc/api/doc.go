// Package api is the HTTP surface of vidkit.
//
// Tenant routes live under /v1. Every request there is resolved to a tenant by
// tenant.Middleware, authenticated by auth.Middleware against that tenant and
// authorized per route. Handlers receive the request scope through Context and
// pass it to the domain packages, which refuse to run without one.
//
// Routes outside /v1 are tenant-exempt: health probes, metrics, the signed
// processing webhook and the token-protected /internal job surface.
package api
