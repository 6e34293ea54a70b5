package model

import (
	"time"

	"github.com/google/uuid"
)

// PageTimerState is the persisted per-page timing record. TotalTimeSeconds is
// cumulative dwell across all visits and never decreases. RecordedTotalSeconds
// counts audio actually captured on the page (intensive books only) and never
// exceeds TotalTimeSeconds. IsCapped is monotonic: once recording is stopped
// by policy it stays stopped, except when a full extensive reset wipes the
// whole map.
type PageTimerState struct {
	TotalTimeSeconds     int  `json:"total_time_seconds"`
	RecordedTotalSeconds int  `json:"recorded_total_seconds"`
	IsCapped             bool `json:"is_capped,omitempty"`
	ExceedanceCount      int  `json:"exceedance_count,omitempty"`
}

// ReadingProgress is the one-per-student-per-book progress document.
// PageTimers is keyed by page number and only holds pages that were visited.
type ReadingProgress struct {
	ID           uuid.UUID              `json:"id"`
	StudentID    int                    `json:"student_id"`
	BookID       uuid.UUID              `json:"book_id"`
	CurrentPage  int                    `json:"current_page"`
	TotalPages   int                    `json:"total_pages"`
	IsSubmitted  bool                   `json:"is_submitted"`
	IsCompleted  bool                   `json:"is_completed"`
	LifelineUsed bool                   `json:"lifeline_used"`
	PageTimers   map[int]PageTimerState `json:"page_timers"`
	StartedAt    time.Time              `json:"started_at"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// NewReadingProgress creates a fresh all-zero progress record for a book.
func NewReadingProgress(studentID int, bookID uuid.UUID, totalPages int) *ReadingProgress {
	return &ReadingProgress{
		ID:          uuid.New(),
		StudentID:   studentID,
		BookID:      bookID,
		CurrentPage: 1,
		TotalPages:  totalPages,
		PageTimers:  make(map[int]PageTimerState),
		StartedAt:   time.Now(),
	}
}
