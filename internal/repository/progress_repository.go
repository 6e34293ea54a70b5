package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/litera-backend/internal/model"
)

var ErrProgressNotFound = errors.New("reading progress not found")

// ProgressRepository handles reading progress persistence. The per-page timer
// map lives in a JSONB column so a checkpoint is a single-row upsert.
type ProgressRepository struct {
	pool *pgxpool.Pool
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

// GetByStudentAndBook retrieves the progress record for one student-book pair.
func (r *ProgressRepository) GetByStudentAndBook(ctx context.Context, studentID int, bookID uuid.UUID) (*model.ReadingProgress, error) {
	p := &model.ReadingProgress{}
	var timers []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, student_id, book_id, current_page, total_pages, is_submitted, is_completed,
		        lifeline_used, page_timers, started_at, completed_at, updated_at
		 FROM reading_progress
		 WHERE student_id = $1 AND book_id = $2`, studentID, bookID,
	).Scan(&p.ID, &p.StudentID, &p.BookID, &p.CurrentPage, &p.TotalPages, &p.IsSubmitted, &p.IsCompleted,
		&p.LifelineUsed, &timers, &p.StartedAt, &p.CompletedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProgressNotFound
		}
		return nil, err
	}

	p.PageTimers = make(map[int]model.PageTimerState)
	if len(timers) > 0 {
		if err := json.Unmarshal(timers, &p.PageTimers); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Upsert writes the full progress document. Checkpoints are last-writer-wins
// per (student, book); counters only ever grow between resets so a replayed
// older checkpoint is overwritten by the next one.
func (r *ProgressRepository) Upsert(ctx context.Context, p *model.ReadingProgress) error {
	timers, err := json.Marshal(p.PageTimers)
	if err != nil {
		return err
	}

	p.UpdatedAt = time.Now()
	_, err = r.pool.Exec(ctx,
		`INSERT INTO reading_progress
		   (id, student_id, book_id, current_page, total_pages, is_submitted, is_completed,
		    lifeline_used, page_timers, started_at, completed_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (student_id, book_id) DO UPDATE SET
		   current_page  = EXCLUDED.current_page,
		   total_pages   = EXCLUDED.total_pages,
		   is_submitted  = EXCLUDED.is_submitted,
		   is_completed  = EXCLUDED.is_completed,
		   lifeline_used = EXCLUDED.lifeline_used,
		   page_timers   = EXCLUDED.page_timers,
		   completed_at  = EXCLUDED.completed_at,
		   updated_at    = EXCLUDED.updated_at`,
		p.ID, p.StudentID, p.BookID, p.CurrentPage, p.TotalPages, p.IsSubmitted, p.IsCompleted,
		p.LifelineUsed, timers, p.StartedAt, p.CompletedAt, p.UpdatedAt,
	)
	return err
}

// ListByStudent retrieves all progress records for a student, newest first.
func (r *ProgressRepository) ListByStudent(ctx context.Context, studentID int) ([]model.ReadingProgress, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, student_id, book_id, current_page, total_pages, is_submitted, is_completed,
		        lifeline_used, page_timers, started_at, completed_at, updated_at
		 FROM reading_progress
		 WHERE student_id = $1
		 ORDER BY updated_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.ReadingProgress
	for rows.Next() {
		var p model.ReadingProgress
		var timers []byte
		if err := rows.Scan(&p.ID, &p.StudentID, &p.BookID, &p.CurrentPage, &p.TotalPages, &p.IsSubmitted, &p.IsCompleted,
			&p.LifelineUsed, &timers, &p.StartedAt, &p.CompletedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.PageTimers = make(map[int]model.PageTimerState)
		if len(timers) > 0 {
			if err := json.Unmarshal(timers, &p.PageTimers); err != nil {
				return nil, err
			}
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// Delete removes the progress record for one student-book pair. Used by the
// admin reset operation; the session-level extensive reset rewrites the record
// in place instead.
func (r *ProgressRepository) Delete(ctx context.Context, studentID int, bookID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM reading_progress WHERE student_id = $1 AND book_id = $2`,
		studentID, bookID,
	)
	return err
}

// CompletedBookIDs returns the set of books this student has fully completed.
func (r *ProgressRepository) CompletedBookIDs(ctx context.Context, studentID int) (map[uuid.UUID]bool, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT book_id FROM reading_progress WHERE student_id = $1 AND is_completed`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		done[id] = true
	}
	return done, rows.Err()
}
