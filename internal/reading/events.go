package reading

// EventType enumerates session events published to the UI layer.
type EventType string

const (
	// EventTick is published once per second with the live page duration and
	// navigation enablement.
	EventTick EventType = "tick"

	// EventCaptureFailed signals that audio capture could not start. Sent at
	// most once per session; reading continues without audio.
	EventCaptureFailed EventType = "capture_failed"

	// EventPageCapped signals that the current page's recording was
	// permanently stopped by policy.
	EventPageCapped EventType = "page_capped"

	// EventLifelineConsumed signals that the extensive session's single
	// lifeline was spent on the current page.
	EventLifelineConsumed EventType = "lifeline_consumed"

	// EventSessionReset signals a full extensive reset: timers wiped, audio
	// purged, back to page 1.
	EventSessionReset EventType = "session_reset"

	// EventUploadProgress carries the overall drain percentage (0-100,
	// monotonic) during submit/complete.
	EventUploadProgress EventType = "upload_progress"

	// EventSubmitted and EventCompleted confirm a successful drain.
	EventSubmitted EventType = "submitted"
	EventCompleted EventType = "completed"
)

// Event is one observable state change. Tick-shaped fields are filled on
// every event so the UI can re-render from any single message.
type Event struct {
	Type           EventType `json:"type"`
	Page           int       `json:"page"`
	TotalPages     int       `json:"total_pages"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	Recording      bool      `json:"recording"`
	CanGoNext      bool      `json:"can_go_next"`
	CanGoPrev      bool      `json:"can_go_prev"`
	UploadPct      int       `json:"upload_pct,omitempty"`
	Message        string    `json:"message,omitempty"`
}

// EventSink receives controller events. It is invoked synchronously from
// inside the controller's critical section and must not block; hosts forward
// into a buffered channel.
type EventSink func(Event)
