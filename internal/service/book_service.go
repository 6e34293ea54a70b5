package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/litera-backend/internal/config"
	"github.com/stemsi/litera-backend/internal/model"
	"github.com/stemsi/litera-backend/internal/repository"
)

// Book catalog errors.
var (
	ErrBookNotFound     = errors.New("book not found")
	ErrBookNotAvailable = errors.New("book not available for this student")
)

const bookCacheTTL = 30 * time.Minute

// ShelfBook is a catalog entry with the student's progress overlaid.
type ShelfBook struct {
	model.Book
	CurrentPage int  `json:"current_page"`
	IsSubmitted bool `json:"is_submitted"`
	IsCompleted bool `json:"is_completed"`
	HasSticker  bool `json:"has_sticker"`
}

// BookService handles the book catalog: cached reads for the student shelf and
// cache-invalidating writes for the admin surface.
type BookService struct {
	bookRepo     *repository.BookRepository
	progressRepo *repository.ProgressRepository
	stickerRepo  *repository.StickerRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewBookService creates a new BookService.
func NewBookService(
	bookRepo *repository.BookRepository,
	progressRepo *repository.ProgressRepository,
	stickerRepo *repository.StickerRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *BookService {
	return &BookService{
		bookRepo:     bookRepo,
		progressRepo: progressRepo,
		stickerRepo:  stickerRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "book_service").Logger(),
	}
}

// GetShelf returns the books a student can read, split by the programs open
// to them, with reading progress and sticker state overlaid.
func (s *BookService) GetShelf(ctx context.Context, student *model.Student) ([]ShelfBook, error) {
	books, err := s.listGradeCached(ctx, student.GradeLevel)
	if err != nil {
		return nil, err
	}

	progress, err := s.progressRepo.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	progressMap := make(map[uuid.UUID]*model.ReadingProgress, len(progress))
	for i := range progress {
		progressMap[progress[i].BookID] = &progress[i]
	}

	stickers, err := s.stickerRepo.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, fmt.Errorf("list stickers: %w", err)
	}
	stickerMap := make(map[uuid.UUID]bool, len(stickers))
	for _, st := range stickers {
		stickerMap[st.BookID] = true
	}

	var shelf []ShelfBook
	for _, b := range books {
		// The extensive program is opt-in per student.
		if b.Category == model.BookCategoryExtensive && !student.ExtensiveUnlocked {
			continue
		}
		entry := ShelfBook{Book: b, CurrentPage: 1, HasSticker: stickerMap[b.ID]}
		if p, ok := progressMap[b.ID]; ok {
			entry.CurrentPage = p.CurrentPage
			entry.IsSubmitted = p.IsSubmitted
			entry.IsCompleted = p.IsCompleted
		}
		shelf = append(shelf, entry)
	}
	return shelf, nil
}

// GetForStudent retrieves a book and verifies the student may read it.
func (s *BookService) GetForStudent(ctx context.Context, student *model.Student, bookID uuid.UUID) (*model.Book, error) {
	book, err := s.getCached(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.GradeLevel != student.GradeLevel {
		return nil, ErrBookNotAvailable
	}
	if book.Category == model.BookCategoryExtensive && !student.ExtensiveUnlocked {
		return nil, ErrBookNotAvailable
	}
	return book, nil
}

// GetByID retrieves a book for the admin surface (no eligibility checks).
func (s *BookService) GetByID(ctx context.Context, bookID uuid.UUID) (*model.Book, error) {
	return s.getCached(ctx, bookID)
}

// ListPaginated lists books for the admin catalog.
func (s *BookService) ListPaginated(ctx context.Context, limit, offset int) ([]model.Book, int, error) {
	return s.bookRepo.ListPaginated(ctx, limit, offset)
}

// Create inserts a new book and warms its cache.
func (s *BookService) Create(ctx context.Context, req *model.CreateBookRequest) (*model.Book, error) {
	book := &model.Book{
		Title:      req.Title,
		Author:     req.Author,
		CoverURL:   req.CoverURL,
		GradeLevel: req.GradeLevel,
		Category:   model.BookCategory(req.Category),
		Pages:      normalizePages(req.Pages),
	}
	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	s.invalidate(ctx, book.ID, book.GradeLevel)
	return book, nil
}

// Update replaces a book's metadata and pages and invalidates its cache.
func (s *BookService) Update(ctx context.Context, bookID uuid.UUID, req *model.UpdateBookRequest) (*model.Book, error) {
	existing, err := s.getCached(ctx, bookID)
	if err != nil {
		return nil, err
	}

	book := &model.Book{
		ID:         bookID,
		Title:      req.Title,
		Author:     req.Author,
		CoverURL:   req.CoverURL,
		GradeLevel: req.GradeLevel,
		Category:   model.BookCategory(req.Category),
		Pages:      normalizePages(req.Pages),
	}
	if err := s.bookRepo.Update(ctx, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	s.invalidate(ctx, bookID, existing.GradeLevel)
	if req.GradeLevel != existing.GradeLevel {
		s.invalidate(ctx, bookID, req.GradeLevel)
	}
	return s.bookRepo.GetByID(ctx, bookID)
}

// Delete removes a book and invalidates its cache.
func (s *BookService) Delete(ctx context.Context, bookID uuid.UUID) error {
	existing, err := s.getCached(ctx, bookID)
	if err != nil {
		return err
	}
	if err := s.bookRepo.Delete(ctx, bookID); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	s.invalidate(ctx, bookID, existing.GradeLevel)
	return nil
}

// getCached reads a book through the Redis payload cache.
func (s *BookService) getCached(ctx context.Context, bookID uuid.UUID) (*model.Book, error) {
	key := config.CacheKey.BookPayloadKey(bookID.String())

	cached, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		var book model.Book
		if err := json.Unmarshal([]byte(cached), &book); err == nil {
			return &book, nil
		}
		// Corrupt entry: drop it and fall through to the database.
		s.rdb.Del(ctx, key)
	}

	book, err := s.bookRepo.GetByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	if payload, err := json.Marshal(book); err == nil {
		s.rdb.Set(ctx, key, payload, bookCacheTTL)
	}
	return book, nil
}

// listGradeCached reads a grade's book list through the Redis cache.
func (s *BookService) listGradeCached(ctx context.Context, gradeLevel int) ([]model.Book, error) {
	key := config.CacheKey.GradeBooksKey(gradeLevel)

	cached, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		var books []model.Book
		if err := json.Unmarshal([]byte(cached), &books); err == nil {
			return books, nil
		}
		s.rdb.Del(ctx, key)
	}

	books, err := s.bookRepo.ListByGrade(ctx, gradeLevel, nil)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}

	if payload, err := json.Marshal(books); err == nil {
		s.rdb.Set(ctx, key, payload, bookCacheTTL)
	}
	return books, nil
}

// Prewarm loads every grade's book list into Redis. Called once at boot so
// the first wave of shelf requests never stampedes PostgreSQL.
func (s *BookService) Prewarm(ctx context.Context) error {
	for grade := 1; grade <= 6; grade++ {
		books, err := s.listGradeCached(ctx, grade)
		if err != nil {
			return fmt.Errorf("prewarm grade %d: %w", grade, err)
		}
		s.log.Debug().Int("grade", grade).Int("books", len(books)).Msg("Catalog prewarmed")
	}
	return nil
}

func (s *BookService) invalidate(ctx context.Context, bookID uuid.UUID, gradeLevel int) {
	s.rdb.Del(ctx,
		config.CacheKey.BookPayloadKey(bookID.String()),
		config.CacheKey.GradeBooksKey(gradeLevel),
	)
}

// normalizePages renumbers pages sequentially from 1 in the order given.
func normalizePages(pages []model.BookPage) []model.BookPage {
	out := make([]model.BookPage, len(pages))
	for i, p := range pages {
		out[i] = model.BookPage{PageNumber: i + 1, ImageURL: p.ImageURL}
	}
	return out
}
