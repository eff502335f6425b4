package main

import (
	"github.com/dmitrymomot/vidkit/pkg/jobs"
	"github.com/dmitrymomot/vidkit/svc/billing"
	"github.com/dmitrymomot/vidkit/svc/media"
)

// Job names as exposed on /internal/jobs.
const (
	jobUsageSync           = "usage_sync"
	jobOverageInvoicing    = "overage_invoicing"
	jobUploadSessionExpiry = "upload_session_expiry"
	jobProcessingTimeout   = "processing_timeout"
	jobAssetConfirmation   = "asset_confirmation"
)

func registerJobs(s *jobs.Scheduler, cfg jobs.Config, usage *billing.UsageAggregator, invoicer *billing.Invoicer, m *media.Maintenance) error {
	all := []jobs.Job{
		{Name: jobUsageSync, Schedule: jobs.Hourly(), Work: usage.Sync},
		{Name: jobOverageInvoicing, Schedule: jobs.DailyAt(1, 0), Work: invoicer.Run},
		{Name: jobUploadSessionExpiry, Schedule: jobs.EveryMinute(), Work: m.ExpireSessions},
		{Name: jobProcessingTimeout, Schedule: jobs.EveryMinute(), Work: m.ExpireProcessing},
		{Name: jobAssetConfirmation, Schedule: jobs.EveryMinute(), Work: m.ConfirmAssets},
	}
	for _, job := range all {
		job.TenantTimeout = cfg.TenantTimeout
		if err := s.Register(job); err != nil {
			return err
		}
	}
	return nil
}
