package video

import (
	"slices"

	"github.com/dmitrymomot/vidkit/pkg/statemachine"
)

// Event drives a lifecycle transition.
type Event string

const (
	EventUploadStarted       Event = "upload_started"
	EventHandoffStarted      Event = "handoff_started"
	EventProcessingSucceeded Event = "processing_succeeded"
	EventAssetsConfirmed     Event = "assets_confirmed"
	EventProcessingFailed    Event = "processing_failed"
	EventDeleted             Event = "deleted"
)

// Machine is the resource lifecycle. Ready and Failed only leave via deletion;
// a retry is a new resource.
var Machine = statemachine.MustNew(
	statemachine.WithTransition[Status, Event](StatusDraft, StatusUploading, EventUploadStarted),
	statemachine.WithTransition[Status, Event](StatusUploading, StatusProcessing, EventHandoffStarted),
	statemachine.WithTransition[Status, Event](StatusProcessing, StatusUploaded, EventProcessingSucceeded),
	statemachine.WithTransition[Status, Event](StatusUploaded, StatusReady, EventAssetsConfirmed),
	statemachine.WithTransition[Status, Event](StatusProcessing, StatusFailed, EventProcessingFailed),
	statemachine.WithFanIn[Status, Event](StatusDeleted, EventDeleted,
		StatusDraft, StatusUploading, StatusProcessing, StatusUploaded, StatusReady, StatusFailed),
)

// alreadyApplied lists, per event, the states in which a repeated signal is
// dropped instead of reported as an invalid transition.
var alreadyApplied = map[Event][]Status{
	EventUploadStarted:       {StatusUploading},
	EventProcessingSucceeded: {StatusUploaded, StatusReady, StatusFailed, StatusDeleted},
	EventProcessingFailed:    {StatusUploaded, StatusReady, StatusFailed, StatusDeleted},
	EventAssetsConfirmed:     {StatusReady, StatusFailed, StatusDeleted},
	EventDeleted:             {StatusDeleted},
}

// IsDuplicate reports whether firing e in s is a repeated signal to ignore.
func IsDuplicate(s Status, e Event) bool {
	return slices.Contains(alreadyApplied[e], s)
}
