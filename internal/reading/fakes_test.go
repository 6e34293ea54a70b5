package reading

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/litera-backend/internal/model"
)

// In-memory fakes for the three adapters, per the injected-dependency design.

type fakeStore struct {
	mu      sync.Mutex
	records map[string]*model.ReadingProgress
	puts    int
	failPut bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*model.ReadingProgress)}
}

func storeKey(studentID int, bookID uuid.UUID) string {
	return fmt.Sprintf("%d:%s", studentID, bookID)
}

func (s *fakeStore) Get(_ context.Context, studentID int, bookID uuid.UUID) (*model.ReadingProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[storeKey(studentID, bookID)]
	if !ok {
		return nil, ErrProgressNotFound
	}
	copied := *p
	copied.PageTimers = make(map[int]model.PageTimerState, len(p.PageTimers))
	for k, v := range p.PageTimers {
		copied.PageTimers[k] = v
	}
	return &copied, nil
}

func (s *fakeStore) Put(_ context.Context, progress *model.ReadingProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return errors.New("store down")
	}
	s.puts++
	copied := *progress
	copied.PageTimers = make(map[int]model.PageTimerState, len(progress.PageTimers))
	for k, v := range progress.PageTimers {
		copied.PageTimers[k] = v
	}
	s.records[storeKey(progress.StudentID, progress.BookID)] = &copied
	return nil
}

func (s *fakeStore) seed(p *model.ReadingProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[storeKey(p.StudentID, p.BookID)] = p
}

func (s *fakeStore) saved(studentID int, bookID uuid.UUID) *model.ReadingProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[storeKey(studentID, bookID)]
}

type fakeCapture struct {
	mu       sync.Mutex
	failNext bool
	active   bool
	page     int
	starts   []int
	seq      int
}

func (c *fakeCapture) Start(_ context.Context, page int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext {
		return ErrCaptureUnavailable
	}
	c.active = true
	c.page = page
	c.starts = append(c.starts, page)
	return nil
}

func (c *fakeCapture) Stop(_ context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return "", nil
	}
	c.active = false
	c.seq++
	return fmt.Sprintf("/tmp/seg-p%d-%d.m4a", c.page, c.seq), nil
}

func (c *fakeCapture) startCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.starts)
}

type uploadedSeg struct {
	Page int
	Path string
}

type fakeSegments struct {
	mu       sync.Mutex
	uploads  []uploadedSeg
	failPath string
	failDel  bool
	deletes  int
}

func (f *fakeSegments) Upload(_ context.Context, seg Segment, onProgress func(float64)) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if onProgress != nil {
		onProgress(0.5)
	}
	if seg.LocalPath == f.failPath {
		return "", errors.New("network failure")
	}
	f.uploads = append(f.uploads, uploadedSeg{Page: seg.Page, Path: seg.LocalPath})
	if onProgress != nil {
		onProgress(1)
	}
	return "/audio/" + seg.LocalPath, nil
}

func (f *fakeSegments) DeleteAll(_ context.Context, _ int, _ uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDel {
		return errors.New("purge failure")
	}
	f.deletes++
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) sink(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) ofType(t EventType) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Event
	for _, ev := range l.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func testBook(category model.BookCategory, pages int) *model.Book {
	book := &model.Book{
		ID:         uuid.New(),
		Title:      "Si Kancil",
		GradeLevel: 2,
		Category:   category,
	}
	for i := 1; i <= pages; i++ {
		book.Pages = append(book.Pages, model.BookPage{
			PageNumber: i,
			ImageURL:   fmt.Sprintf("/uploads/pages/%d.png", i),
		})
	}
	return book
}

func testStudent() model.Student {
	return model.Student{ID: 7, NISN: "0051234567", Name: "Putri", GradeLevel: 2}
}
