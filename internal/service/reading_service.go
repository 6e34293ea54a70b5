package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/litera-backend/internal/config"
	"github.com/stemsi/litera-backend/internal/model"
	"github.com/stemsi/litera-backend/internal/reading"
	"github.com/stemsi/litera-backend/internal/repository"
)

// Reading session errors.
var (
	ErrNoActiveSession = errors.New("no active reading session for this book")
	ErrPageOutOfRange  = errors.New("page out of range")
)

// progressCacheTTL bounds how long a checkpoint outlives its session in Redis.
const progressCacheTTL = 24 * time.Hour

// ReadingService hosts live reading sessions. Each open WebSocket stream gets
// a reading.Controller driven by a 1 Hz ticker; checkpoints go through the
// write-behind progress store (Redis now, PostgreSQL via the checkpoint
// worker).
type ReadingService struct {
	bookSvc      *BookService
	audioSvc     *AudioService
	progressRepo *repository.ProgressRepository
	rdb          *redis.Client
	log          zerolog.Logger

	mu       sync.Mutex
	sessions map[int]*Session // keyed by student ID: one live session per device
}

// NewReadingService creates a new ReadingService.
func NewReadingService(
	bookSvc *BookService,
	audioSvc *AudioService,
	progressRepo *repository.ProgressRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ReadingService {
	return &ReadingService{
		bookSvc:      bookSvc,
		audioSvc:     audioSvc,
		progressRepo: progressRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "reading_service").Logger(),
	}
}

// Session is one live reading session bound to a WebSocket stream.
type Session struct {
	ctrl      *reading.Controller
	studentID int
	bookID    uuid.UUID
	cancel    context.CancelFunc
	svc       *ReadingService
	closeOnce sync.Once
}

// Open resumes (or starts) a reading session for a student on a book and
// begins the 1 Hz tick loop. An earlier live session of the same student is
// checkpointed and replaced; the single-login session model makes that the
// reconnect path, not a conflict.
func (s *ReadingService) Open(ctx context.Context, student *model.Student, bookID uuid.UUID, capture reading.AudioCapture, sink reading.EventSink) (*Session, error) {
	book, err := s.bookSvc.GetForStudent(ctx, student, bookID)
	if err != nil {
		return nil, err
	}
	if book.TotalPages() == 0 {
		return nil, ErrBookNotAvailable
	}

	deps := reading.Deps{
		Store:    &cachedProgressStore{repo: s.progressRepo, rdb: s.rdb},
		Capture:  capture,
		Segments: s.audioSvc,
	}
	ctrl := reading.NewController(*student, book, deps, sink, s.log)
	if err := ctrl.Resume(ctx); err != nil {
		return nil, err
	}

	tickCtx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		ctrl:      ctrl,
		studentID: student.ID,
		bookID:    bookID,
		cancel:    cancel,
		svc:       s,
	}

	s.mu.Lock()
	if prev, ok := s.sessions[student.ID]; ok {
		s.mu.Unlock()
		prev.Close()
		s.mu.Lock()
	}
	if s.sessions == nil {
		s.sessions = make(map[int]*Session)
	}
	s.sessions[student.ID] = sess
	s.mu.Unlock()

	s.rdb.Set(ctx, config.CacheKey.StudentActiveBookKey(student.ID), bookID.String(), progressCacheTTL)

	go sess.tickLoop(tickCtx)

	s.log.Info().
		Int("student_id", student.ID).
		Str("book_id", bookID.String()).
		Msg("Reading session opened")
	return sess, nil
}

func (sess *Session) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sess.ctrl.Tick(ctx)
		}
	}
}

// Navigate turns the page; delta is +1 or -1.
func (sess *Session) Navigate(ctx context.Context, delta int) error {
	return sess.ctrl.Navigate(ctx, delta)
}

// Submit drains staged audio while keeping the book open.
func (sess *Session) Submit(ctx context.Context) error {
	return sess.ctrl.Submit(ctx)
}

// Complete drains staged audio and closes the book for good.
func (sess *Session) Complete(ctx context.Context) error {
	return sess.ctrl.Complete(ctx)
}

// Snapshot returns the observable session state.
func (sess *Session) Snapshot() reading.Snapshot {
	return sess.ctrl.Snapshot()
}

// Book returns the book under this session.
func (sess *Session) Book() *model.Book {
	return sess.ctrl.Book()
}

// Close checkpoints the session, stops the tick loop, and deregisters it.
// Safe to call more than once.
func (sess *Session) Close() {
	sess.closeOnce.Do(func() {
		sess.cancel()
		sess.ctrl.Exit(context.Background())

		sess.svc.mu.Lock()
		if sess.svc.sessions[sess.studentID] == sess {
			delete(sess.svc.sessions, sess.studentID)
		}
		sess.svc.mu.Unlock()

		sess.svc.rdb.Del(context.Background(), config.CacheKey.StudentActiveBookKey(sess.studentID))
		sess.svc.log.Info().
			Int("student_id", sess.studentID).
			Str("book_id", sess.bookID.String()).
			Msg("Reading session closed")
	})
}

// EnsureProgress creates the all-zero progress document the first time a
// student opens a book, or returns the existing one. Idempotent; used by the
// HTTP open endpoint so the client can render the resume screen before the
// stream connects.
func (s *ReadingService) EnsureProgress(ctx context.Context, student *model.Student, bookID uuid.UUID) (*model.ReadingProgress, error) {
	book, err := s.bookSvc.GetForStudent(ctx, student, bookID)
	if err != nil {
		return nil, err
	}
	if book.TotalPages() == 0 {
		return nil, ErrBookNotAvailable
	}

	store := &cachedProgressStore{repo: s.progressRepo, rdb: s.rdb}
	progress, err := store.Get(ctx, student.ID, bookID)
	if err == nil {
		return progress, nil
	}
	if !errors.Is(err, reading.ErrProgressNotFound) {
		return nil, err
	}

	progress = model.NewReadingProgress(student.ID, bookID, book.TotalPages())
	if err := store.Put(ctx, progress); err != nil {
		return nil, err
	}
	return progress, nil
}

// Submit drains the live session's staged audio over HTTP. The WebSocket
// stream still pushes upload_progress events while this runs.
func (s *ReadingService) Submit(ctx context.Context, studentID int, bookID uuid.UUID) (*model.ReadingProgress, error) {
	sess, err := s.liveSession(studentID, bookID)
	if err != nil {
		return nil, err
	}
	if err := sess.Submit(ctx); err != nil {
		return nil, err
	}
	progress := sess.ctrl.Progress()
	return &progress, nil
}

// Complete drains staged audio and closes the book for good, over HTTP.
func (s *ReadingService) Complete(ctx context.Context, studentID int, bookID uuid.UUID) (*model.ReadingProgress, error) {
	sess, err := s.liveSession(studentID, bookID)
	if err != nil {
		return nil, err
	}
	if err := sess.Complete(ctx); err != nil {
		return nil, err
	}
	progress := sess.ctrl.Progress()
	return &progress, nil
}

func (s *ReadingService) liveSession(studentID int, bookID uuid.UUID) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[studentID]
	s.mu.Unlock()
	if !ok || sess.bookID != bookID {
		return nil, ErrNoActiveSession
	}
	return sess, nil
}

// UploadSegment stages a device-recorded audio segment and queues it on the
// student's live session for the next submit.
func (s *ReadingService) UploadSegment(ctx context.Context, student *model.Student, bookID uuid.UUID, page int, file multipart.File, header *multipart.FileHeader) error {
	sess, err := s.liveSession(student.ID, bookID)
	if err != nil {
		return err
	}

	if page < 1 || page > sess.Book().TotalPages() {
		return ErrPageOutOfRange
	}

	path, err := s.audioSvc.SaveStaged(student.ID, bookID, page, file, header)
	if err != nil {
		return err
	}
	sess.ctrl.AddSegment(page, path)
	return nil
}

// GetProgress reads the latest progress document, preferring the Redis
// write-behind copy over PostgreSQL.
func (s *ReadingService) GetProgress(ctx context.Context, studentID int, bookID uuid.UUID) (*model.ReadingProgress, error) {
	store := &cachedProgressStore{repo: s.progressRepo, rdb: s.rdb}
	return store.Get(ctx, studentID, bookID)
}

// ListProgress returns all progress records for a student.
func (s *ReadingService) ListProgress(ctx context.Context, studentID int) ([]model.ReadingProgress, error) {
	return s.progressRepo.ListByStudent(ctx, studentID)
}

// ResetProgress is the admin operation: it wipes the stored progress and
// enqueues an audio purge. A live session of that student keeps running until
// its stream closes.
func (s *ReadingService) ResetProgress(ctx context.Context, studentID int, bookID uuid.UUID) error {
	if err := s.progressRepo.Delete(ctx, studentID, bookID); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	s.rdb.Del(ctx, config.CacheKey.ReadingProgressKey(studentID, bookID.String()))

	payload, err := json.Marshal(purgePayload{StudentID: studentID, BookID: bookID.String()})
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PurgeAudioQueue, payload).Err()
}

type purgePayload struct {
	StudentID int    `json:"student_id"`
	BookID    string `json:"book_id"`
}

// ─── Write-behind progress store ───────────────────────────────────────────

// cachedProgressStore implements reading.ProgressStore. Reads hit Redis first
// and fall back to PostgreSQL; writes land in Redis and enqueue the document
// for the checkpoint worker to upsert. A tick never waits on PostgreSQL.
type cachedProgressStore struct {
	repo *repository.ProgressRepository
	rdb  *redis.Client
}

func (s *cachedProgressStore) Get(ctx context.Context, studentID int, bookID uuid.UUID) (*model.ReadingProgress, error) {
	key := config.CacheKey.ReadingProgressKey(studentID, bookID.String())

	cached, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		var p model.ReadingProgress
		if err := json.Unmarshal([]byte(cached), &p); err == nil {
			return &p, nil
		}
		s.rdb.Del(ctx, key)
	}

	p, err := s.repo.GetByStudentAndBook(ctx, studentID, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrProgressNotFound) {
			return nil, reading.ErrProgressNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *cachedProgressStore) Put(ctx context.Context, progress *model.ReadingProgress) error {
	payload, err := json.Marshal(progress)
	if err != nil {
		return err
	}

	key := config.CacheKey.ReadingProgressKey(progress.StudentID, progress.BookID.String())
	if err := s.rdb.Set(ctx, key, payload, progressCacheTTL).Err(); err != nil {
		return fmt.Errorf("cache progress: %w", err)
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PersistProgressQueue, payload).Err()
}
