package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/litera-backend/internal/model"
)

var ErrQuizNotFound = errors.New("quiz not found for this book")

// QuizRepository handles quiz, question, and result data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// GetByBook retrieves a book's quiz with its ordered questions.
func (r *QuizRepository) GetByBook(ctx context.Context, bookID uuid.UUID) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, book_id FROM quizzes WHERE book_id = $1`, bookID,
	).Scan(&q.ID, &q.BookID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuizNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, order_num, question_text, options, correct_index
		 FROM quiz_questions WHERE quiz_id = $1
		 ORDER BY order_num`, q.ID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var question model.QuizQuestion
		if err := rows.Scan(&question.ID, &question.QuizID, &question.OrderNum,
			&question.QuestionText, &question.Options, &question.CorrectIndex); err != nil {
			return nil, err
		}
		q.Questions = append(q.Questions, question)
	}
	return q, rows.Err()
}

// Replace creates or fully replaces a book's quiz and questions in one
// transaction. Existing results are kept; they reference the quiz row.
func (r *QuizRepository) Replace(ctx context.Context, bookID uuid.UUID, questions []model.QuizQuestion) (*model.Quiz, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	q := &model.Quiz{BookID: bookID}
	err = tx.QueryRow(ctx,
		`INSERT INTO quizzes (book_id) VALUES ($1)
		 ON CONFLICT (book_id) DO UPDATE SET book_id = EXCLUDED.book_id
		 RETURNING id`, bookID,
	).Scan(&q.ID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM quiz_questions WHERE quiz_id = $1`, q.ID); err != nil {
		return nil, err
	}

	for i := range questions {
		questions[i].QuizID = q.ID
		questions[i].OrderNum = i + 1
		err := tx.QueryRow(ctx,
			`INSERT INTO quiz_questions (quiz_id, order_num, question_text, options, correct_index)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			q.ID, questions[i].OrderNum, questions[i].QuestionText, questions[i].Options, questions[i].CorrectIndex,
		).Scan(&questions[i].ID)
		if err != nil {
			return nil, err
		}
	}
	q.Questions = questions

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// SaveResult persists a finished quiz attempt.
func (r *QuizRepository) SaveResult(ctx context.Context, res *model.QuizResult) error {
	answers, err := json.Marshal(res.Answers)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO quiz_results (quiz_id, student_id, book_id, score, total_count, passed, answers, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		res.QuizID, res.StudentID, res.BookID, res.Score, res.TotalCount, res.Passed, answers, res.FinishedAt,
	).Scan(&res.ID)
}

// ListResultsByStudent retrieves a student's quiz history, newest first.
func (r *QuizRepository) ListResultsByStudent(ctx context.Context, studentID int) ([]model.QuizResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, student_id, book_id, score, total_count, passed, answers, finished_at
		 FROM quiz_results
		 WHERE student_id = $1
		 ORDER BY finished_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.QuizResult
	for rows.Next() {
		var res model.QuizResult
		var answers []byte
		if err := rows.Scan(&res.ID, &res.QuizID, &res.StudentID, &res.BookID,
			&res.Score, &res.TotalCount, &res.Passed, &answers, &res.FinishedAt); err != nil {
			return nil, err
		}
		if len(answers) > 0 {
			if err := json.Unmarshal(answers, &res.Answers); err != nil {
				return nil, err
			}
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
