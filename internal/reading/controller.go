package reading

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/litera-backend/internal/model"
)

// Deps are the injected collaborators of a Controller. All three are
// interfaces so tests substitute fakes.
type Deps struct {
	Store    ProgressStore
	Capture  AudioCapture
	Segments SegmentStore
}

// Controller is the reading-session state machine for one student and one
// book: it binds the page timer, the time policy, audio capture, and
// persistence together, and is the only component with side effects on the
// external stores.
//
// A single mutex serializes the 1 Hz tick against user-initiated navigation
// and submit, so a tick can never apply to the wrong page mid-transition.
type Controller struct {
	mu sync.Mutex

	log      zerolog.Logger
	store    ProgressStore
	capture  AudioCapture
	segments SegmentStore
	sink     EventSink

	student  model.Student
	book     *model.Book
	progress *model.ReadingProgress
	timer    *PageTimer

	recording       bool
	captureNotified bool

	// pending maps page number to staged segment paths in capture order;
	// uploaded marks paths already drained so a retried batch skips them.
	pending  map[int][]string
	uploaded map[string]bool
	lastPct  int
}

// NewController creates a Controller. Call Resume before anything else.
func NewController(student model.Student, book *model.Book, deps Deps, sink EventSink, log zerolog.Logger) *Controller {
	if sink == nil {
		sink = func(Event) {}
	}
	return &Controller{
		log: log.With().
			Str("component", "reading_controller").
			Int("student_id", student.ID).
			Str("book_id", book.ID.String()).
			Logger(),
		store:    deps.Store,
		capture:  deps.Capture,
		segments: deps.Segments,
		sink:     sink,
		student:  student,
		book:     book,
		pending:  make(map[int][]string),
		uploaded: make(map[string]bool),
	}
}

// Resume loads (or creates) the persisted progress, normalizes legacy page
// states to canonical form, seeds the timer from the persisted totals, and
// enters the current page.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	progress, err := c.store.Get(ctx, c.student.ID, c.book.ID)
	switch {
	case errors.Is(err, ErrProgressNotFound):
		progress = model.NewReadingProgress(c.student.ID, c.book.ID, c.book.TotalPages())
	case err != nil:
		return fmt.Errorf("load progress: %w", err)
	}

	// Page counts can drift when a book is re-published; clamp rather than
	// fail so old sessions stay readable.
	progress.TotalPages = c.book.TotalPages()
	if progress.CurrentPage < 1 {
		progress.CurrentPage = 1
	}
	if progress.CurrentPage > progress.TotalPages {
		progress.CurrentPage = progress.TotalPages
	}
	if progress.PageTimers == nil {
		progress.PageTimers = make(map[int]model.PageTimerState)
	}

	// One-time migration: older records lack the explicit cap flag.
	for page, st := range progress.PageTimers {
		progress.PageTimers[page] = NormalizePageState(c.book.Category, st)
	}

	seed := make(map[int]int, len(progress.PageTimers))
	for page, st := range progress.PageTimers {
		seed[page] = st.TotalTimeSeconds
	}

	c.progress = progress
	c.timer = NewPageTimer(seed)
	c.enterPageLocked(ctx)
	return nil
}

// Tick advances the active page by one second and applies the time policy.
// Called at 1 Hz by the session host while the session is foregrounded.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.progress == nil || c.progress.IsCompleted || c.timer.Active() == 0 {
		return
	}

	page, seconds := c.timer.Tick()
	st := c.progress.PageTimers[page]
	st.TotalTimeSeconds = seconds

	if c.recording && c.book.Category == model.BookCategoryIntensive &&
		!st.IsCapped && st.RecordedTotalSeconds < IntensiveRecordingCap {
		st.RecordedTotalSeconds++
	}

	decision := Evaluate(c.book.Category, st, c.sessionStateLocked())

	if decision.CapPage || decision.ResetSession {
		st.ExceedanceCount++
	}
	if decision.StopRecording {
		c.stopCaptureLocked(ctx)
	}
	if decision.ConsumeLifeline {
		c.progress.LifelineUsed = true
		c.emitLocked(Event{Type: EventLifelineConsumed, Page: page})
	}

	c.progress.PageTimers[page] = st

	if decision.CapPage {
		// Hard stop: persisted immediately, not deferred to navigation.
		st.IsCapped = true
		c.progress.PageTimers[page] = st
		c.persistLocked(ctx)
		c.emitLocked(Event{Type: EventPageCapped, Page: page})
	}

	if decision.ResetSession {
		c.resetLocked(ctx)
		return
	}

	c.emitLocked(Event{Type: EventTick, Page: page})
}

// Navigate moves one page forward (delta = +1) or back (delta = -1). Any
// other delta is rejected: pages turn one at a time, so the dwell gate on
// every intermediate page applies. Next is refused until the current page has
// met the minimum dwell time; refusal mutates nothing. An allowed navigation
// stops capture, checkpoints the timer, persists, then enters the destination
// page.
func (c *Controller) Navigate(ctx context.Context, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.progress == nil || c.progress.IsCompleted {
		return ErrSessionCompleted
	}
	if delta != 1 && delta != -1 {
		return ErrInvalidStep
	}

	page := c.progress.CurrentPage
	switch {
	case delta == 1 && page >= c.progress.TotalPages:
		return ErrAtLastPage
	case delta == 1 && !CanAdvance(c.timer.Elapsed(page)):
		return ErrDwellNotMet
	case delta == -1 && page <= 1:
		return ErrAtFirstPage
	}

	c.finalizePageLocked(ctx)
	c.progress.CurrentPage = page + delta
	c.enterPageLocked(ctx)
	return nil
}

// Submit finalizes the current page, drains every staged segment through the
// segment store, and marks the progress submitted. The book stays open for
// continued reading.
func (c *Controller) Submit(ctx context.Context) error {
	return c.finish(ctx, false)
}

// Complete performs the same drain as Submit, then marks the progress
// completed, which unlocks the quiz and closes the reader state machine.
func (c *Controller) Complete(ctx context.Context) error {
	return c.finish(ctx, true)
}

func (c *Controller) finish(ctx context.Context, complete bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.progress == nil {
		return fmt.Errorf("session not resumed")
	}
	if c.progress.IsCompleted {
		return ErrSessionCompleted
	}

	c.finalizePageLocked(ctx)

	if err := c.drainLocked(ctx); err != nil {
		return err
	}

	c.progress.IsSubmitted = true
	if complete {
		now := time.Now()
		c.progress.IsCompleted = true
		c.progress.CompletedAt = &now
	}
	c.persistLocked(ctx)

	if complete {
		c.emitLocked(Event{Type: EventCompleted})
	} else {
		c.emitLocked(Event{Type: EventSubmitted})
	}
	return nil
}

// Exit handles back navigation and app backgrounding: capture stops and the
// timer is checkpointed and persisted, regardless of upload. Staged segments
// stay queued for the next submit.
func (c *Controller) Exit(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.progress == nil || c.timer == nil || c.timer.Active() == 0 {
		return
	}
	c.finalizePageLocked(ctx)
}

// AddSegment stages a segment path for a page. This is the asynchronous
// device path: an upload that lands after capture.Stop returned joins the
// queue here instead of being lost.
func (c *Controller) AddSegment(page int, localPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if localPath == "" || page < 1 {
		return
	}
	c.pending[page] = append(c.pending[page], localPath)
}

// Snapshot is a consistent read of the observable session state.
type Snapshot struct {
	CurrentPage    int  `json:"current_page"`
	TotalPages     int  `json:"total_pages"`
	ElapsedSeconds int  `json:"elapsed_seconds"`
	Recording      bool `json:"recording"`
	CanGoNext      bool `json:"can_go_next"`
	CanGoPrev      bool `json:"can_go_prev"`
	IsSubmitted    bool `json:"is_submitted"`
	IsCompleted    bool `json:"is_completed"`
	LifelineUsed   bool `json:"lifeline_used"`
	PendingCount   int  `json:"pending_count"`
}

// Snapshot returns the current observable state for the UI layer.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Progress returns a deep copy of the current progress document.
func (c *Controller) Progress() model.ReadingProgress {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *c.progress
	copied.PageTimers = make(map[int]model.PageTimerState, len(c.progress.PageTimers))
	for page, st := range c.progress.PageTimers {
		copied.PageTimers[page] = st
	}
	return copied
}

// Book returns the book this session reads.
func (c *Controller) Book() *model.Book {
	return c.book
}

// ─── Internal (call with mu held) ──────────────────────────────────────────

func (c *Controller) sessionStateLocked() SessionState {
	return SessionState{
		TotalPages:   c.progress.TotalPages,
		LifelineUsed: c.progress.LifelineUsed,
		Recording:    c.recording,
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	page := c.progress.CurrentPage
	pending := 0
	for _, paths := range c.pending {
		pending += len(paths)
	}
	return Snapshot{
		CurrentPage:    page,
		TotalPages:     c.progress.TotalPages,
		ElapsedSeconds: c.timer.Elapsed(page),
		Recording:      c.recording,
		CanGoNext:      !c.progress.IsCompleted && page < c.progress.TotalPages && CanAdvance(c.timer.Elapsed(page)),
		CanGoPrev:      !c.progress.IsCompleted && page > 1,
		IsSubmitted:    c.progress.IsSubmitted,
		IsCompleted:    c.progress.IsCompleted,
		LifelineUsed:   c.progress.LifelineUsed,
		PendingCount:   pending,
	}
}

func (c *Controller) emitLocked(ev Event) {
	snap := c.snapshotLocked()
	if ev.Page == 0 {
		ev.Page = snap.CurrentPage
	}
	ev.TotalPages = snap.TotalPages
	ev.ElapsedSeconds = c.timer.Elapsed(ev.Page)
	ev.Recording = snap.Recording
	ev.CanGoNext = snap.CanGoNext
	ev.CanGoPrev = snap.CanGoPrev
	c.sink(ev)
}

func (c *Controller) enterPageLocked(ctx context.Context) {
	page := c.progress.CurrentPage
	c.timer.Activate(page)

	st := NormalizePageState(c.book.Category, c.progress.PageTimers[page])
	c.progress.PageTimers[page] = st

	if !c.progress.IsCompleted && CaptureAllowed(st) {
		c.startCaptureLocked(ctx, page)
	}
	c.emitLocked(Event{Type: EventTick, Page: page})
}

func (c *Controller) startCaptureLocked(ctx context.Context, page int) {
	if err := c.capture.Start(ctx, page); err != nil {
		c.recording = false
		c.log.Warn().Err(err).Int("page", page).Msg("Capture start failed")
		if !c.captureNotified {
			c.captureNotified = true
			c.emitLocked(Event{Type: EventCaptureFailed, Page: page, Message: err.Error()})
		}
		return
	}
	c.recording = true
}

func (c *Controller) stopCaptureLocked(ctx context.Context) {
	if !c.recording {
		return
	}
	c.recording = false

	path, err := c.capture.Stop(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Capture stop failed")
		return
	}
	if path != "" {
		page := c.progress.CurrentPage
		c.pending[page] = append(c.pending[page], path)
	}
}

// finalizePageLocked stops capture, checkpoints the active page's timer into
// its persisted state, and persists optimistically.
func (c *Controller) finalizePageLocked(ctx context.Context) {
	page := c.progress.CurrentPage
	c.stopCaptureLocked(ctx)

	st := c.progress.PageTimers[page]
	st.TotalTimeSeconds = c.timer.Checkpoint(page)
	c.progress.PageTimers[page] = st
	c.persistLocked(ctx)
}

// persistLocked writes the progress document. Failures are logged and leave
// the in-memory state authoritative; every checkpoint writes the full
// document, so the next one retries everything the failed write lost.
// Navigation never blocks on persistence.
func (c *Controller) persistLocked(ctx context.Context) {
	c.progress.UpdatedAt = time.Now()
	if err := c.store.Put(ctx, c.progress); err != nil {
		c.log.Error().Err(err).Msg("Persist progress failed, will retry on next checkpoint")
	}
}

// drainLocked uploads every staged segment, page order first and capture
// order within a page. Progress is weighted evenly per segment and reported
// monotonically. Already-uploaded segments are skipped on retry; a failure
// halts the batch and leaves the remainder queued.
func (c *Controller) drainLocked(ctx context.Context) error {
	pages := make([]int, 0, len(c.pending))
	for page := range c.pending {
		pages = append(pages, page)
	}
	sort.Ints(pages)

	type item struct {
		page int
		path string
	}
	var batch []item
	for _, page := range pages {
		for _, path := range c.pending[page] {
			batch = append(batch, item{page: page, path: path})
		}
	}

	total := len(batch)
	if total == 0 {
		c.emitUploadPctLocked(100)
		return nil
	}

	c.lastPct = 0
	for i, it := range batch {
		if c.uploaded[it.path] {
			c.emitUploadPctLocked((i + 1) * 100 / total)
			continue
		}

		seg := Segment{
			StudentID:  c.student.ID,
			BookID:     c.book.ID,
			GradeLevel: c.student.GradeLevel,
			Page:       it.page,
			LocalPath:  it.path,
		}

		base := i
		_, err := c.segments.Upload(ctx, seg, func(fraction float64) {
			pct := int((float64(base) + fraction) * 100 / float64(total))
			c.emitUploadPctLocked(pct)
		})
		if err != nil {
			return &UploadError{Page: it.page, LocalPath: it.path, Err: err}
		}

		c.uploaded[it.path] = true
		c.emitUploadPctLocked((i + 1) * 100 / total)
	}

	c.pending = make(map[int][]string)
	c.uploaded = make(map[string]bool)
	c.emitUploadPctLocked(100)
	return nil
}

func (c *Controller) emitUploadPctLocked(pct int) {
	// Progress must never move backwards.
	if pct < c.lastPct {
		pct = c.lastPct
	}
	if pct > 100 {
		pct = 100
	}
	c.lastPct = pct
	c.emitLocked(Event{Type: EventUploadProgress, UploadPct: pct})
}

// resetLocked performs the full extensive-session reset. The remote purge
// runs first: if it fails the state is left untouched so the still-crossed
// threshold re-triggers the reset on a later tick, making the whole operation
// retryable without ever leaving flags inconsistent with what was deleted.
func (c *Controller) resetLocked(ctx context.Context) {
	c.stopCaptureLocked(ctx)

	if err := c.segments.DeleteAll(ctx, c.student.ID, c.book.ID); err != nil {
		c.log.Error().Err(err).Msg("Audio purge failed, reset deferred for retry")
		return
	}

	c.pending = make(map[int][]string)
	c.uploaded = make(map[string]bool)
	c.progress.PageTimers = make(map[int]model.PageTimerState)
	c.progress.LifelineUsed = false
	c.progress.CurrentPage = 1
	c.timer.Reset()
	c.persistLocked(ctx)

	c.emitLocked(Event{Type: EventSessionReset, Page: 1})
	c.enterPageLocked(ctx)
}
