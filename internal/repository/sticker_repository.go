package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/litera-backend/internal/model"
)

// StickerRepository handles sticker reward data access.
type StickerRepository struct {
	pool *pgxpool.Pool
}

// NewStickerRepository creates a new StickerRepository.
func NewStickerRepository(pool *pgxpool.Pool) *StickerRepository {
	return &StickerRepository{pool: pool}
}

// Award grants the sticker for a (student, book) pair. The unique constraint
// makes repeat awards a no-op, so a replayed quiz pass never duplicates.
func (r *StickerRepository) Award(ctx context.Context, studentID int, bookID uuid.UUID) (*model.Sticker, error) {
	s := &model.Sticker{StudentID: studentID, BookID: bookID}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO stickers (student_id, book_id)
		 VALUES ($1, $2)
		 ON CONFLICT (student_id, book_id) DO NOTHING
		 RETURNING id, awarded_at`,
		studentID, bookID,
	).Scan(&s.ID, &s.AwardedAt)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Conflict path: the sticker already exists, fetch it.
	err = r.pool.QueryRow(ctx,
		`SELECT id, awarded_at FROM stickers WHERE student_id = $1 AND book_id = $2`,
		studentID, bookID,
	).Scan(&s.ID, &s.AwardedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListByStudent retrieves a student's sticker collection with book titles.
func (r *StickerRepository) ListByStudent(ctx context.Context, studentID int) ([]model.Sticker, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.student_id, s.book_id, b.title, s.awarded_at
		 FROM stickers s
		 JOIN books b ON s.book_id = b.id
		 WHERE s.student_id = $1
		 ORDER BY s.awarded_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stickers []model.Sticker
	for rows.Next() {
		var s model.Sticker
		if err := rows.Scan(&s.ID, &s.StudentID, &s.BookID, &s.BookTitle, &s.AwardedAt); err != nil {
			return nil, err
		}
		stickers = append(stickers, s)
	}
	return stickers, rows.Err()
}

// Has reports whether the student already holds the sticker for a book.
func (r *StickerRepository) Has(ctx context.Context, studentID int, bookID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM stickers WHERE student_id = $1 AND book_id = $2)`,
		studentID, bookID,
	).Scan(&exists)
	return exists, err
}
