// Package media connects the processing provider to the video lifecycle.
//
// Applier turns asynchronous provider completions, delivered by webhook or by
// message queue, into lifecycle signals inside the owning tenant's scope.
// Maintenance holds the tenant-scoped work of the periodic upload and
// processing jobs.
package media
