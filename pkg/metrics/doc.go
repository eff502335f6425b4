// Package metrics exposes Prometheus collectors for the HTTP surface, the
// processing provider, uploads, the video lifecycle, isolation refusals and
// background jobs.
package metrics
