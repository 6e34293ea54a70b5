package reading

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stemsi/litera-backend/internal/model"
)

func newTestController(book *model.Book) (*Controller, *fakeStore, *fakeCapture, *fakeSegments, *eventLog) {
	store := newFakeStore()
	capture := &fakeCapture{}
	segments := &fakeSegments{}
	events := &eventLog{}
	ctrl := NewController(testStudent(), book, Deps{
		Store:    store,
		Capture:  capture,
		Segments: segments,
	}, events.sink, zerolog.Nop())
	return ctrl, store, capture, segments, events
}

func tick(ctrl *Controller, n int) {
	for i := 0; i < n; i++ {
		ctrl.Tick(context.Background())
	}
}

func TestDwellGateRefusesEarlyNext(t *testing.T) {
	ctrl, store, _, _, _ := newTestController(testBook(model.BookCategoryIntensive, 3))
	if err := ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	tick(ctrl, MinDwellSeconds-1)
	putsBefore := store.puts

	err := ctrl.Navigate(context.Background(), 1)
	if !errors.Is(err, ErrDwellNotMet) {
		t.Fatalf("expected ErrDwellNotMet, got %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.CurrentPage != 1 {
		t.Fatalf("refused navigation must not advance, page = %d", snap.CurrentPage)
	}
	if snap.ElapsedSeconds != MinDwellSeconds-1 {
		t.Fatalf("refused navigation must not mutate timers, elapsed = %d", snap.ElapsedSeconds)
	}
	if store.puts != putsBefore {
		t.Fatalf("refused navigation must not persist, puts %d -> %d", putsBefore, store.puts)
	}

	tick(ctrl, 1)
	if err := ctrl.Navigate(context.Background(), 1); err != nil {
		t.Fatalf("navigation at exactly %ds must pass: %v", MinDwellSeconds, err)
	}
	if got := ctrl.Snapshot().CurrentPage; got != 2 {
		t.Fatalf("expected page 2, got %d", got)
	}
}

func TestNavigateRejectsMultiPageJumps(t *testing.T) {
	ctrl, store, _, _, _ := newTestController(testBook(model.BookCategoryIntensive, 3))
	if err := ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	// Dwell is met, so a +1 would be allowed; anything else must still fail.
	tick(ctrl, MinDwellSeconds)
	putsBefore := store.puts

	for _, delta := range []int{5, 2, 0, -2, -5} {
		if err := ctrl.Navigate(context.Background(), delta); !errors.Is(err, ErrInvalidStep) {
			t.Fatalf("delta %d: expected ErrInvalidStep, got %v", delta, err)
		}
	}

	snap := ctrl.Snapshot()
	if snap.CurrentPage != 1 {
		t.Fatalf("rejected jump must not move, page = %d", snap.CurrentPage)
	}
	if snap.CurrentPage > snap.TotalPages {
		t.Fatalf("page %d exceeds total %d", snap.CurrentPage, snap.TotalPages)
	}
	if store.puts != putsBefore {
		t.Fatalf("rejected jump must not persist, puts %d -> %d", putsBefore, store.puts)
	}

	if err := ctrl.Navigate(context.Background(), 1); err != nil {
		t.Fatalf("single step must still pass: %v", err)
	}
	if got := ctrl.Snapshot().CurrentPage; got != 2 {
		t.Fatalf("expected page 2, got %d", got)
	}
}

func TestCheckpointPersistFailureRetriesNextCheckpoint(t *testing.T) {
	ctrl, store, _, _, _ := newTestController(testBook(model.BookCategoryIntensive, 3))
	if err := ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	store.failPut = true
	tick(ctrl, MinDwellSeconds)
	if err := ctrl.Navigate(context.Background(), 1); err != nil {
		t.Fatalf("navigation must proceed despite the persist failure: %v", err)
	}
	if got := ctrl.Snapshot().CurrentPage; got != 2 {
		t.Fatalf("in-memory state stays authoritative, page = %d", got)
	}
	if store.saved(7, ctrl.Book().ID) != nil {
		t.Fatal("nothing must be stored while the store is down")
	}

	// Store recovers: the next checkpoint lands the full accumulated state,
	// including the timer the failed write lost.
	store.failPut = false
	tick(ctrl, MinDwellSeconds)
	if err := ctrl.Navigate(context.Background(), 1); err != nil {
		t.Fatalf("next: %v", err)
	}

	saved := store.saved(7, ctrl.Book().ID)
	if saved == nil {
		t.Fatal("expected persisted progress after the store recovered")
	}
	if got := saved.PageTimers[1].TotalTimeSeconds; got != MinDwellSeconds {
		t.Fatalf("retried checkpoint must carry page 1's dwell: got %d, want %d", got, MinDwellSeconds)
	}
	if got := saved.PageTimers[2].TotalTimeSeconds; got != MinDwellSeconds {
		t.Fatalf("page 2 dwell: got %d, want %d", got, MinDwellSeconds)
	}
}

func TestDwellTimeMonotonicAcrossRevisits(t *testing.T) {
	ctrl, store, _, _, _ := newTestController(testBook(model.BookCategoryIntensive, 2))
	if err := ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	tick(ctrl, 120)
	if err := ctrl.Navigate(context.Background(), 1); err != nil {
		t.Fatalf("next: %v", err)
	}
	tick(ctrl, 45)
	if err := ctrl.Navigate(context.Background(), -1); err != nil {
		t.Fatalf("prev: %v", err)
	}
	tick(ctrl, 30)
	ctrl.Exit(context.Background())

	saved := store.saved(7, ctrl.Book().ID)
	if saved == nil {
		t.Fatal("expected persisted progress")
	}
	if got := saved.PageTimers[1].TotalTimeSeconds; got != 150 {
		t.Fatalf("page 1 dwell must accumulate across visits: got %d, want 150", got)
	}
	if got := saved.PageTimers[2].TotalTimeSeconds; got != 45 {
		t.Fatalf("page 2 dwell: got %d, want 45", got)
	}
}

func TestIntensiveRecordingCapIsPermanent(t *testing.T) {
	ctrl, store, capture, _, events := newTestController(testBook(model.BookCategoryIntensive, 2))
	if err := ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if !ctrl.Snapshot().Recording {
		t.Fatal("capture should start on page entry")
	}

	tick(ctrl, IntensiveRecordingCap)

	snap := ctrl.Snapshot()
	if snap.Recording {
		t.Fatal("recording must stop at the cap")
	}
	if len(events.ofType(EventPageCapped)) != 1 {
		t.Fatalf("expected one page_capped event, got %d", len(events.ofType(EventPageCapped)))
	}

	saved := store.saved(7, ctrl.Book().ID)
	st := saved.PageTimers[1]
	if !st.IsCapped || st.RecordedTotalSeconds != IntensiveRecordingCap {
		t.Fatalf("cap must persist immediately: %+v", st)
	}
	if st.RecordedTotalSeconds > st.TotalTimeSeconds {
		t.Fatalf("recorded %d must never exceed dwell %d", st.RecordedTotalSeconds, st.TotalTimeSeconds)
	}

	// Leaving and returning must not restart capture on the capped page.
	startsBefore := capture.startCount()
	if err := ctrl.Navigate(context.Background(), 1); err != nil {
		t.Fatalf("next: %v", err)
	}
	tick(ctrl, MinDwellSeconds)
	if err := ctrl.Navigate(context.Background(), -1); err != nil {
		t.Fatalf("prev: %v", err)
	}
	if capture.startCount() != startsBefore+1 {
		t.Fatalf("capture must restart only for page 2, starts %d -> %d", startsBefore, capture.startCount())
	}
	if ctrl.Snapshot().Recording {
		t.Fatal("capped page must refuse capture on revisit")
	}
}

func TestExtensiveLifelineThenReset(t *testing.T) {
	ctrl, store, _, segments, events := newTestController(testBook(model.BookCategoryExtensive, 2))
	if err := ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	// Page 1 crosses the overtime threshold: lifeline consumed, page capped,
	// reading continues.
	tick(ctrl, ExtensiveOvertime)

	snap := ctrl.Snapshot()
	if !snap.LifelineUsed {
		t.Fatal("first crossing must consume the lifeline")
	}
	if snap.CurrentPage != 1 || snap.Recording {
		t.Fatalf("reading continues uninterrupted without recording: %+v", snap)
	}
	if len(events.ofType(EventLifelineConsumed)) != 1 {
		t.Fatal("expected one lifeline_consumed event")
	}
	if segments.deletes != 0 {
		t.Fatal("no purge on lifeline consumption")
	}
	if !store.saved(7, ctrl.Book().ID).PageTimers[1].IsCapped {
		t.Fatal("lifeline page must be capped")
	}

	// Page 2 also crosses: full session reset.
	if err := ctrl.Navigate(context.Background(), 1); err != nil {
		t.Fatalf("next: %v", err)
	}
	tick(ctrl, ExtensiveOvertime)

	snap = ctrl.Snapshot()
	if snap.CurrentPage != 1 {
		t.Fatalf("reset must return to page 1, got %d", snap.CurrentPage)
	}
	if snap.LifelineUsed {
		t.Fatal("reset must restore the lifeline")
	}
	if snap.ElapsedSeconds != 0 {
		t.Fatalf("reset must wipe timers, elapsed = %d", snap.ElapsedSeconds)
	}
	if segments.deletes != 1 {
		t.Fatalf("reset must purge remote audio once, got %d", segments.deletes)
	}
	if len(events.ofType(EventSessionReset)) != 1 {
		t.Fatal("expected one session_reset event")
	}

	saved := store.saved(7, ctrl.Book().ID)
	if saved.LifelineUsed || saved.PageTimers[2].TotalTimeSeconds != 0 {
		t.Fatalf("persisted state must reflect the wipe: %+v", saved)
	}
}

func TestExtensiveSinglePageResetsImmediately(t *testing.T) {
	ctrl, _, _, segments, events := newTestController(testBook(model.BookCategoryExtensive, 1))
	if err := ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	tick(ctrl, ExtensiveOvertime)

	if len(events.ofType(EventLifelineConsumed)) != 0 {
		t.Fatal("single-page books have no lifeline")
	}
	if len(events.ofType(EventSessionReset)) != 1 {
		t.Fatal("expected immediate reset")
	}
	if segments.deletes != 1 {
		t.Fatalf("expected one purge, got %d", segments.deletes)
	}
	if got := ctrl.Snapshot().ElapsedSeconds; got != 0 {
		t.Fatalf("timers must be wiped, elapsed = %d", got)
	}
}

func TestResetRetriesWhenPurgeFails(t *testing.T) {
	ctrl, _, _, segments, events := newTestController(testBook(model.BookCategoryExtensive, 1))
	segments.failDel = true
	if err := ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	tick(ctrl, ExtensiveOvertime)

	// Purge failed: nothing is wiped, so the crossed threshold re-triggers.
	if len(events.ofType(EventSessionReset)) != 0 {
		t.Fatal("reset must not report success while the purge is failing")
	}
	if got := ctrl.Snapshot().ElapsedSeconds; got != ExtensiveOvertime {
		t.Fatalf("deferred reset must leave timers intact, elapsed = %d", got)
	}

	segments.failDel = false
	tick(ctrl, 1)

	if len(events.ofType(EventSessionReset)) != 1 {
		t.Fatal("reset must complete once the purge succeeds")
	}
	if segments.deletes != 1 {
		t.Fatalf("expected one successful purge, got %d", segments.deletes)
	}
	if got := ctrl.Snapshot().ElapsedSeconds; got != 0 {
		t.Fatalf("timers must be wiped after the retried reset, elapsed = %d", got)
	}
}

func TestResumeNormalizesLegacyCapState(t *testing.T) {
	book := testBook(model.BookCategoryIntensive, 4)
	ctrl, store, capture, _, _ := newTestController(book)

	// Old record: page 3 hit the recording cap before the explicit flag
	// existed.
	legacy := model.NewReadingProgress(7, book.ID, 4)
	legacy.CurrentPage = 3
	legacy.PageTimers[3] = model.PageTimerState{
		TotalTimeSeconds:     700,
		RecordedTotalSeconds: IntensiveRecordingCap,
	}
	store.seed(legacy)

	if err := ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	if capture.startCount() != 0 {
		t.Fatal("capture must not start on a page normalized to capped")
	}
	snap := ctrl.Snapshot()
	if snap.CurrentPage != 3 || snap.Recording {
		t.Fatalf("expected resumed capped page 3 without recording: %+v", snap)
	}
	if !ctrl.Progress().PageTimers[3].IsCapped {
		t.Fatal("legacy record must normalize to an explicit cap")
	}
	if got := snap.ElapsedSeconds; got != 700 {
		t.Fatalf("timer must resume from the persisted total, got %d", got)
	}
}

func TestSubmitDrainsInOrderWithEvenProgress(t *testing.T) {
	ctrl, store, capture, segments, events := newTestController(testBook(model.BookCategoryIntensive, 2))
	capture.failNext = true // keep capture out of the staging queue
	if err := ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	ctrl.AddSegment(1, "/staging/p1-first.m4a")
	ctrl.AddSegment(1, "/staging/p1-second.m4a")
	ctrl.AddSegment(2, "/staging/p2-first.m4a")

	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := []uploadedSeg{
		{Page: 1, Path: "/staging/p1-first.m4a"},
		{Page: 1, Path: "/staging/p1-second.m4a"},
		{Page: 2, Path: "/staging/p2-first.m4a"},
	}
	if len(segments.uploads) != len(want) {
		t.Fatalf("expected %d uploads, got %d", len(want), len(segments.uploads))
	}
	for i, u := range segments.uploads {
		if u != want[i] {
			t.Fatalf("upload %d = %+v, want %+v", i, u, want[i])
		}
	}

	// Progress is weighted evenly per segment, monotonic, ends at 100.
	var pcts []int
	for _, ev := range events.ofType(EventUploadProgress) {
		pcts = append(pcts, ev.UploadPct)
	}
	if len(pcts) == 0 || pcts[len(pcts)-1] != 100 {
		t.Fatalf("progress must end at 100: %v", pcts)
	}
	for i := 1; i < len(pcts); i++ {
		if pcts[i] < pcts[i-1] {
			t.Fatalf("progress must be monotonic: %v", pcts)
		}
	}
	seen := map[int]bool{}
	for _, p := range pcts {
		seen[p] = true
	}
	if !seen[33] || !seen[66] {
		t.Fatalf("expected per-segment milestones 33 and 66 in %v", pcts)
	}

	snap := ctrl.Snapshot()
	if !snap.IsSubmitted || snap.IsCompleted {
		t.Fatalf("submit must mark submitted but keep the book open: %+v", snap)
	}
	if snap.PendingCount != 0 {
		t.Fatalf("queue must be empty after a full drain, got %d", snap.PendingCount)
	}
	if !store.saved(7, ctrl.Book().ID).IsSubmitted {
		t.Fatal("submitted flag must persist")
	}

	// The book stays open: navigation still works after submit.
	tick(ctrl, MinDwellSeconds)
	if err := ctrl.Navigate(context.Background(), 1); err != nil {
		t.Fatalf("reading must continue after submit: %v", err)
	}
}

func TestSubmitFailureKeepsQueueAndRetryDeduplicates(t *testing.T) {
	ctrl, _, capture, segments, _ := newTestController(testBook(model.BookCategoryIntensive, 2))
	capture.failNext = true
	if err := ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	ctrl.AddSegment(1, "/staging/a.m4a")
	ctrl.AddSegment(1, "/staging/b.m4a")
	ctrl.AddSegment(2, "/staging/c.m4a")
	segments.failPath = "/staging/b.m4a"

	err := ctrl.Submit(context.Background())
	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected UploadError, got %v", err)
	}
	if uploadErr.Page != 1 || uploadErr.LocalPath != "/staging/b.m4a" {
		t.Fatalf("failure must identify the segment: %+v", uploadErr)
	}

	snap := ctrl.Snapshot()
	if snap.IsSubmitted {
		t.Fatal("submitted must not be set after a failed drain")
	}
	if snap.PendingCount != 3 {
		t.Fatalf("queue must survive the failure, got %d", snap.PendingCount)
	}
	if len(segments.uploads) != 1 {
		t.Fatalf("batch must halt at the failed segment, got %d uploads", len(segments.uploads))
	}

	// Retry: the already-uploaded segment is skipped, the rest drains.
	segments.failPath = ""
	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}

	var aCount int
	for _, u := range segments.uploads {
		if u.Path == "/staging/a.m4a" {
			aCount++
		}
	}
	if aCount != 1 {
		t.Fatalf("retry must not re-upload successful segments, a.m4a uploaded %d times", aCount)
	}
	if len(segments.uploads) != 3 {
		t.Fatalf("expected 3 total uploads after retry, got %d", len(segments.uploads))
	}
	if !ctrl.Snapshot().IsSubmitted {
		t.Fatal("retry success must mark submitted")
	}
}

func TestCompleteClosesSession(t *testing.T) {
	ctrl, store, _, _, events := newTestController(testBook(model.BookCategoryIntensive, 1))
	if err := ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}
	tick(ctrl, 10)

	if err := ctrl.Complete(context.Background()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	saved := store.saved(7, ctrl.Book().ID)
	if !saved.IsCompleted || !saved.IsSubmitted || saved.CompletedAt == nil {
		t.Fatalf("complete must persist both flags and the timestamp: %+v", saved)
	}
	if len(events.ofType(EventCompleted)) != 1 {
		t.Fatal("expected one completed event")
	}

	if err := ctrl.Navigate(context.Background(), 1); !errors.Is(err, ErrSessionCompleted) {
		t.Fatalf("completed sessions refuse navigation, got %v", err)
	}
	elapsed := ctrl.Snapshot().ElapsedSeconds
	tick(ctrl, 5)
	if got := ctrl.Snapshot().ElapsedSeconds; got != elapsed {
		t.Fatalf("completed sessions ignore ticks: %d -> %d", elapsed, got)
	}
}

func TestCaptureFailureIsNonFatalAndNotifiedOnce(t *testing.T) {
	ctrl, _, capture, _, events := newTestController(testBook(model.BookCategoryIntensive, 2))
	capture.failNext = true
	if err := ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	if ctrl.Snapshot().Recording {
		t.Fatal("recording must be off after a failed start")
	}
	tick(ctrl, MinDwellSeconds)
	if err := ctrl.Navigate(context.Background(), 1); err != nil {
		t.Fatalf("reading must continue without audio: %v", err)
	}

	if got := len(events.ofType(EventCaptureFailed)); got != 1 {
		t.Fatalf("capture failure is notified exactly once, got %d", got)
	}
}

func TestCaptureSegmentsQueuedOnNavigation(t *testing.T) {
	ctrl, _, _, segments, _ := newTestController(testBook(model.BookCategoryIntensive, 2))
	if err := ctrl.Resume(context.Background()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	tick(ctrl, MinDwellSeconds)
	if err := ctrl.Navigate(context.Background(), 1); err != nil {
		t.Fatalf("next: %v", err)
	}

	// Navigation stopped page 1's capture and queued its segment; page 2
	// started a fresh capture.
	snap := ctrl.Snapshot()
	if snap.PendingCount != 1 {
		t.Fatalf("expected one queued segment, got %d", snap.PendingCount)
	}
	if !snap.Recording {
		t.Fatal("capture must restart on the new page")
	}

	tick(ctrl, MinDwellSeconds)
	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(segments.uploads) != 2 {
		t.Fatalf("both segments must drain, got %d", len(segments.uploads))
	}
	if segments.uploads[0].Page != 1 || segments.uploads[1].Page != 2 {
		t.Fatalf("page order must hold: %+v", segments.uploads)
	}
}
