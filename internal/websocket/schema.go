package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionNavigate Action = "navigate"
	ActionSubmit   Action = "submit"
	ActionComplete Action = "complete"
	ActionExit     Action = "exit"
	ActionPing     Action = "ping"
)

// ClientRequest is the single client-to-server frame: an action plus the
// navigate delta (+1 next, -1 previous; ignored by every other action).
type ClientRequest struct {
	Action Action `json:"action"`
	Delta  int    `json:"delta,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventTick             Event = "tick"
	EventStartRecording   Event = "start_recording"
	EventStopRecording    Event = "stop_recording"
	EventCaptureFailed    Event = "capture_failed"
	EventPageCapped       Event = "page_capped"
	EventLifelineConsumed Event = "lifeline_consumed"
	EventSessionReset     Event = "session_reset"
	EventUploadProgress   Event = "upload_progress"
	EventSubmitted        Event = "submitted"
	EventCompleted        Event = "completed"
	EventError            Event = "error"
	EventPong             Event = "pong"
)

// TickResponse is pushed once per second while the session is live, and also
// after every state transition so the client always renders server truth.
type TickResponse struct {
	Event            Event `json:"event"`
	Page             int   `json:"page"`
	TotalPages       int   `json:"total_pages"`
	PageSeconds      int   `json:"page_seconds"`
	Recording        bool  `json:"recording"`
	LifelineUsed     bool  `json:"lifeline_used"`
	CanGoNext        bool  `json:"can_go_next"`
	CanGoPrev        bool  `json:"can_go_prev"`
	IsSubmitted      bool  `json:"is_submitted"`
	IsCompleted      bool  `json:"is_completed"`
	SecondsUntilNext int   `json:"seconds_until_next"`
}

// RecordingCommand tells the device to start or stop capturing audio for a
// page. The device owns the microphone; the server owns the decision.
type RecordingCommand struct {
	Event Event `json:"event"`
	Page  int   `json:"page"`
}

// NoticeResponse carries policy transitions (page_capped, lifeline_consumed,
// session_reset, capture_failed, submitted, completed).
type NoticeResponse struct {
	Event   Event  `json:"event"`
	Page    int    `json:"page,omitempty"`
	Message string `json:"message,omitempty"`
}

// UploadProgressResponse reports monotonic batch upload progress 0-100.
type UploadProgressResponse struct {
	Event Event   `json:"event"`
	Pct   float64 `json:"pct"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
