// Package billing snapshots per-tenant storage usage and turns peaks above the
// plan quota into daily overage invoices. Both steps run as tenant jobs and are
// safe to repeat: rows are keyed by tenant and period.
package billing
