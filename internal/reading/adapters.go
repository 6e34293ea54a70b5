package reading

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stemsi/litera-backend/internal/model"
)

// Sentinel errors shared by adapter implementations and the controller.
var (
	// ErrProgressNotFound is returned by ProgressStore.Get when no record
	// exists yet for the (student, book) pair.
	ErrProgressNotFound = errors.New("reading progress not found")

	// ErrCaptureUnavailable is returned by AudioCapture.Start when the device
	// cannot record (permission denied, hardware busy). Non-fatal: reading
	// continues without audio.
	ErrCaptureUnavailable = errors.New("audio capture unavailable")

	// ErrDwellNotMet is returned by Navigate when Next is requested before the
	// minimum dwell time on the current page has elapsed.
	ErrDwellNotMet = errors.New("minimum dwell time not met")

	// ErrAtFirstPage and ErrAtLastPage bound navigation.
	ErrAtFirstPage = errors.New("already at first page")
	ErrAtLastPage  = errors.New("already at last page")

	// ErrInvalidStep is returned by Navigate for any delta other than +1 or
	// -1. Pages turn one at a time, so every page's dwell gate applies.
	ErrInvalidStep = errors.New("navigation step must be +1 or -1")

	// ErrSessionCompleted is returned for mutating operations on a completed
	// session. The quiz may still run; the reader state machine is closed.
	ErrSessionCompleted = errors.New("reading session already completed")
)

// ProgressStore persists ReadingProgress documents keyed by (student, book).
// Put has merge-upsert semantics: writing a record must not clobber unrelated
// fields written by a concurrent partial update.
type ProgressStore interface {
	Get(ctx context.Context, studentID int, bookID uuid.UUID) (*model.ReadingProgress, error)
	Put(ctx context.Context, progress *model.ReadingProgress) error
}

// AudioCapture abstracts the single active recording. Start begins capture for
// a page; starting while a capture is in flight implicitly stops the prior one
// first. Stop ends the active capture and returns the local path of the
// captured segment, or "" when nothing was recording or the segment has not
// materialized yet (asynchronous device uploads arrive through
// Controller.AddSegment instead).
type AudioCapture interface {
	Start(ctx context.Context, page int) error
	Stop(ctx context.Context) (localPath string, err error)
}

// Segment identifies one staged audio segment awaiting upload.
type Segment struct {
	StudentID  int
	BookID     uuid.UUID
	GradeLevel int
	Page       int
	LocalPath  string
}

// SegmentStore uploads staged segments to permanent storage and deletes all
// stored audio for a (student, book) on reset. Upload reports fractional
// progress in [0,1] through onProgress and must use idempotent destination
// naming so a retried batch does not duplicate blobs. DeleteAll must be
// idempotent and safe to retry.
type SegmentStore interface {
	Upload(ctx context.Context, seg Segment, onProgress func(fraction float64)) (remoteURL string, err error)
	DeleteAll(ctx context.Context, studentID int, bookID uuid.UUID) error
}

// UploadError reports which segment of a drain batch failed. Segments before
// it are uploaded and deduplicated on retry; it and everything after remain
// queued.
type UploadError struct {
	Page      int
	LocalPath string
	Err       error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload segment page %d (%s): %v", e.Page, e.LocalPath, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
