package model

import (
	"time"

	"github.com/google/uuid"
)

// QuizQuestion is a single-answer multiple-choice question.
type QuizQuestion struct {
	ID           uuid.UUID `json:"id"`
	QuizID       uuid.UUID `json:"quiz_id"`
	OrderNum     int       `json:"order_num"`
	QuestionText string    `json:"question_text"`
	Options      []string  `json:"options"`
	// CorrectIndex is the zero-based index into Options. Never serialized to
	// students; the answer endpoint echoes only correct/incorrect.
	CorrectIndex int `json:"-"`
}

// Quiz is the ordered question list attached to a book. Passing requires all
// questions answered correctly.
type Quiz struct {
	ID        uuid.UUID      `json:"id"`
	BookID    uuid.UUID      `json:"book_id"`
	Questions []QuizQuestion `json:"questions"`
}

// PassingScore returns the score required to pass: one point per question,
// all of them.
func (q *Quiz) PassingScore() int {
	return len(q.Questions)
}

// QuizAnswer is one logged answer attempt. Incorrect attempts are recorded
// too; they do not advance the question index.
type QuizAnswer struct {
	QuestionID    uuid.UUID `json:"question_id"`
	SelectedIndex int       `json:"selected_index"`
	IsCorrect     bool      `json:"is_correct"`
	AnsweredAt    time.Time `json:"answered_at"`
}

// QuizResult is the persisted outcome of one quiz completion.
type QuizResult struct {
	ID         uuid.UUID    `json:"id"`
	QuizID     uuid.UUID    `json:"quiz_id"`
	StudentID  int          `json:"student_id"`
	BookID     uuid.UUID    `json:"book_id"`
	Score      int          `json:"score"`
	TotalCount int          `json:"total_count"`
	Passed     bool         `json:"passed"`
	Answers    []QuizAnswer `json:"answers"`
	FinishedAt time.Time    `json:"finished_at"`
}

// AnswerQuestionRequest is the payload for answering the current question.
type AnswerQuestionRequest struct {
	QuestionID    string `json:"question_id" binding:"required,uuid"`
	SelectedIndex *int   `json:"selected_index" binding:"required,min=0,max=9"`
}

// CreateQuizQuestionRequest is one question in a quiz create/replace payload.
type CreateQuizQuestionRequest struct {
	QuestionText string   `json:"question_text" binding:"required,min=1,max=2000"`
	Options      []string `json:"options" binding:"required,min=2,max=10,dive,min=1,max=500"`
	CorrectIndex int      `json:"correct_index" binding:"min=0,max=9"`
}

// ReplaceQuizRequest is the payload for creating or replacing a book's quiz.
type ReplaceQuizRequest struct {
	Questions []CreateQuizQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
