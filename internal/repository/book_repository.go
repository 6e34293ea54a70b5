package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/litera-backend/internal/model"
)

// BookRepository handles book and page data access.
type BookRepository struct {
	pool *pgxpool.Pool
}

// NewBookRepository creates a new BookRepository.
func NewBookRepository(pool *pgxpool.Pool) *BookRepository {
	return &BookRepository{pool: pool}
}

// GetByID retrieves a book with its ordered pages.
func (r *BookRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Book, error) {
	b := &model.Book{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, author, cover_url, grade_level, category, created_at, updated_at
		 FROM books WHERE id = $1`, id,
	).Scan(&b.ID, &b.Title, &b.Author, &b.CoverURL, &b.GradeLevel, &b.Category, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	pages, err := r.listPages(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Pages = pages
	return b, nil
}

// ListByGrade retrieves all books for a grade level, optionally filtered by
// category, with their pages attached.
func (r *BookRepository) ListByGrade(ctx context.Context, gradeLevel int, category *model.BookCategory) ([]model.Book, error) {
	query := `SELECT id, title, author, cover_url, grade_level, category, created_at, updated_at
	          FROM books WHERE grade_level = $1`
	args := []any{gradeLevel}
	if category != nil {
		query += ` AND category = $2`
		args = append(args, *category)
	}
	query += ` ORDER BY title`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.CoverURL, &b.GradeLevel, &b.Category, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range books {
		pages, err := r.listPages(ctx, books[i].ID)
		if err != nil {
			return nil, err
		}
		books[i].Pages = pages
	}
	return books, nil
}

// ListPaginated retrieves books across all grades for the admin catalog.
func (r *BookRepository) ListPaginated(ctx context.Context, limit, offset int) ([]model.Book, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM books`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT b.id, b.title, b.author, b.cover_url, b.grade_level, b.category, b.created_at, b.updated_at
		 FROM books b
		 ORDER BY b.grade_level, b.title
		 LIMIT $1 OFFSET $2`, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		var b model.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.CoverURL, &b.GradeLevel, &b.Category, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, 0, err
		}
		books = append(books, b)
	}
	return books, total, rows.Err()
}

// Create inserts a book and its pages in one transaction.
func (r *BookRepository) Create(ctx context.Context, b *model.Book) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO books (title, author, cover_url, grade_level, category)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		b.Title, b.Author, b.CoverURL, b.GradeLevel, b.Category,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return err
	}

	if err := insertPages(ctx, tx, b.ID, b.Pages); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update replaces a book's metadata and its full page list.
func (r *BookRepository) Update(ctx context.Context, b *model.Book) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE books SET title = $1, author = $2, cover_url = $3, grade_level = $4, category = $5, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $6`,
		b.Title, b.Author, b.CoverURL, b.GradeLevel, b.Category, b.ID,
	)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM book_pages WHERE book_id = $1`, b.ID); err != nil {
		return err
	}
	if err := insertPages(ctx, tx, b.ID, b.Pages); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Delete removes a book. Pages, progress, quizzes, and stickers cascade.
func (r *BookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	return err
}

func (r *BookRepository) listPages(ctx context.Context, bookID uuid.UUID) ([]model.BookPage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT page_number, image_url FROM book_pages
		 WHERE book_id = $1 ORDER BY page_number`, bookID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []model.BookPage
	for rows.Next() {
		var p model.BookPage
		if err := rows.Scan(&p.PageNumber, &p.ImageURL); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func insertPages(ctx context.Context, tx pgx.Tx, bookID uuid.UUID, pages []model.BookPage) error {
	for _, p := range pages {
		_, err := tx.Exec(ctx,
			`INSERT INTO book_pages (book_id, page_number, image_url) VALUES ($1, $2, $3)`,
			bookID, p.PageNumber, p.ImageURL,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
