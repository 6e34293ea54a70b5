package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/litera-backend/internal/config"
	"github.com/stemsi/litera-backend/internal/model"
	"github.com/stemsi/litera-backend/internal/repository"
)

// Quiz errors.
var (
	ErrQuizLocked        = errors.New("book must be completed before the quiz")
	ErrQuizNoQuestions   = errors.New("book has no quiz")
	ErrQuizWrongQuestion = errors.New("answer the active question first")
	ErrQuizFinished      = errors.New("quiz already finished")
)

// quizStateTTL bounds an abandoned quiz walk in Redis.
const quizStateTTL = 2 * time.Hour

// quizState is the in-flight quiz walk, cached per (student, book). Index is
// the active question; a wrong answer keeps the index in place so the student
// retries the same question.
type quizState struct {
	QuizID  uuid.UUID          `json:"quiz_id"`
	Index   int                `json:"index"`
	Score   int                `json:"score"`
	Answers []model.QuizAnswer `json:"answers"`
}

// QuizView is a question as shown to the student: no correct index.
type QuizView struct {
	QuestionID   uuid.UUID `json:"question_id"`
	OrderNum     int       `json:"order_num"`
	TotalCount   int       `json:"total_count"`
	QuestionText string    `json:"question_text"`
	Options      []string  `json:"options"`
}

// AnswerOutcome is the immediate feedback for one answer attempt.
type AnswerOutcome struct {
	Correct  bool              `json:"correct"`
	Next     *QuizView         `json:"next,omitempty"`
	Finished bool              `json:"finished"`
	Result   *model.QuizResult `json:"result,omitempty"`
	Sticker  *model.Sticker    `json:"sticker,omitempty"`
}

// QuizService runs the post-reading quiz walk: one question at a time,
// immediate feedback, retry on incorrect, and an idempotent sticker award for
// a perfect first-attempt pass.
type QuizService struct {
	quizRepo     *repository.QuizRepository
	progressRepo *repository.ProgressRepository
	stickerRepo  *repository.StickerRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(
	quizRepo *repository.QuizRepository,
	progressRepo *repository.ProgressRepository,
	stickerRepo *repository.StickerRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *QuizService {
	return &QuizService{
		quizRepo:     quizRepo,
		progressRepo: progressRepo,
		stickerRepo:  stickerRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "quiz_service").Logger(),
	}
}

// Start begins (or restarts) the quiz for a completed book and returns the
// first question.
func (s *QuizService) Start(ctx context.Context, studentID int, bookID uuid.UUID) (*QuizView, error) {
	quiz, err := s.loadUnlocked(ctx, studentID, bookID)
	if err != nil {
		return nil, err
	}

	state := &quizState{QuizID: quiz.ID}
	if err := s.saveState(ctx, studentID, bookID, state); err != nil {
		return nil, err
	}
	return questionView(quiz, 0), nil
}

// Answer grades one attempt at the active question. A correct answer advances
// the walk; an incorrect one records the attempt and keeps the question
// active. Finishing the last question persists the result and, on a perfect
// score, awards the sticker.
func (s *QuizService) Answer(ctx context.Context, studentID int, bookID uuid.UUID, req *model.AnswerQuestionRequest) (*AnswerOutcome, error) {
	quiz, err := s.loadUnlocked(ctx, studentID, bookID)
	if err != nil {
		return nil, err
	}

	state, err := s.loadState(ctx, studentID, bookID)
	if err != nil {
		return nil, err
	}
	if state.Index >= len(quiz.Questions) {
		return nil, ErrQuizFinished
	}

	current := quiz.Questions[state.Index]
	if current.ID.String() != req.QuestionID {
		return nil, ErrQuizWrongQuestion
	}

	selected := *req.SelectedIndex
	correct := selected == current.CorrectIndex
	firstAttempt := !hasAttempt(state.Answers, current.ID)

	state.Answers = append(state.Answers, model.QuizAnswer{
		QuestionID:    current.ID,
		SelectedIndex: selected,
		IsCorrect:     correct,
		AnsweredAt:    time.Now(),
	})

	if correct {
		// Only a first-attempt correct counts toward the score; retries
		// still unlock the next question.
		if firstAttempt {
			state.Score++
		}
		state.Index++
	}

	if state.Index < len(quiz.Questions) {
		if err := s.saveState(ctx, studentID, bookID, state); err != nil {
			return nil, err
		}
		outcome := &AnswerOutcome{Correct: correct}
		if correct {
			outcome.Next = questionView(quiz, state.Index)
		}
		return outcome, nil
	}

	return s.finish(ctx, studentID, bookID, quiz, state)
}

func (s *QuizService) finish(ctx context.Context, studentID int, bookID uuid.UUID, quiz *model.Quiz, state *quizState) (*AnswerOutcome, error) {
	result := &model.QuizResult{
		QuizID:     quiz.ID,
		StudentID:  studentID,
		BookID:     bookID,
		Score:      state.Score,
		TotalCount: len(quiz.Questions),
		Passed:     state.Score == quiz.PassingScore(),
		Answers:    state.Answers,
		FinishedAt: time.Now(),
	}
	if err := s.quizRepo.SaveResult(ctx, result); err != nil {
		return nil, fmt.Errorf("save quiz result: %w", err)
	}

	s.rdb.Del(ctx, config.CacheKey.QuizStateKey(studentID, bookID.String()))

	outcome := &AnswerOutcome{Correct: true, Finished: true, Result: result}
	if result.Passed {
		sticker, err := s.stickerRepo.Award(ctx, studentID, bookID)
		if err != nil {
			// The result is saved; the award retries on the next pass.
			s.log.Error().Err(err).
				Int("student_id", studentID).
				Str("book_id", bookID.String()).
				Msg("Sticker award failed")
		} else {
			outcome.Sticker = sticker
		}
	}

	s.log.Info().
		Int("student_id", studentID).
		Str("book_id", bookID.String()).
		Int("score", result.Score).
		Bool("passed", result.Passed).
		Msg("Quiz finished")
	return outcome, nil
}

// Results returns a student's quiz history.
func (s *QuizService) Results(ctx context.Context, studentID int) ([]model.QuizResult, error) {
	return s.quizRepo.ListResultsByStudent(ctx, studentID)
}

// Stickers returns a student's sticker collection.
func (s *QuizService) Stickers(ctx context.Context, studentID int) ([]model.Sticker, error) {
	return s.stickerRepo.ListByStudent(ctx, studentID)
}

// Replace creates or replaces a book's quiz (admin surface).
func (s *QuizService) Replace(ctx context.Context, bookID uuid.UUID, req *model.ReplaceQuizRequest) (*model.Quiz, error) {
	questions := make([]model.QuizQuestion, len(req.Questions))
	for i, q := range req.Questions {
		if q.CorrectIndex >= len(q.Options) {
			return nil, fmt.Errorf("question %d: correct_index out of range", i+1)
		}
		questions[i] = model.QuizQuestion{
			QuestionText: q.QuestionText,
			Options:      q.Options,
			CorrectIndex: q.CorrectIndex,
		}
	}
	return s.quizRepo.Replace(ctx, bookID, questions)
}

// GetByBook returns a book's quiz with answers (admin surface).
func (s *QuizService) GetByBook(ctx context.Context, bookID uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.quizRepo.GetByBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrQuizNotFound) {
			return nil, ErrQuizNoQuestions
		}
		return nil, err
	}
	return quiz, nil
}

// loadUnlocked loads the quiz after verifying the book is completed.
func (s *QuizService) loadUnlocked(ctx context.Context, studentID int, bookID uuid.UUID) (*model.Quiz, error) {
	progress, err := s.progressRepo.GetByStudentAndBook(ctx, studentID, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrProgressNotFound) {
			return nil, ErrQuizLocked
		}
		return nil, err
	}
	if !progress.IsCompleted {
		return nil, ErrQuizLocked
	}

	quiz, err := s.quizRepo.GetByBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrQuizNotFound) {
			return nil, ErrQuizNoQuestions
		}
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, ErrQuizNoQuestions
	}
	return quiz, nil
}

func (s *QuizService) loadState(ctx context.Context, studentID int, bookID uuid.UUID) (*quizState, error) {
	key := config.CacheKey.QuizStateKey(studentID, bookID.String())
	raw, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrQuizWrongQuestion
		}
		return nil, fmt.Errorf("load quiz state: %w", err)
	}
	state := &quizState{}
	if err := json.Unmarshal([]byte(raw), state); err != nil {
		return nil, fmt.Errorf("decode quiz state: %w", err)
	}
	return state, nil
}

func (s *QuizService) saveState(ctx context.Context, studentID int, bookID uuid.UUID, state *quizState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	key := config.CacheKey.QuizStateKey(studentID, bookID.String())
	return s.rdb.Set(ctx, key, payload, quizStateTTL).Err()
}

func questionView(quiz *model.Quiz, index int) *QuizView {
	q := quiz.Questions[index]
	return &QuizView{
		QuestionID:   q.ID,
		OrderNum:     q.OrderNum,
		TotalCount:   len(quiz.Questions),
		QuestionText: q.QuestionText,
		Options:      q.Options,
	}
}

func hasAttempt(answers []model.QuizAnswer, questionID uuid.UUID) bool {
	for _, a := range answers {
		if a.QuestionID == questionID {
			return true
		}
	}
	return false
}
