package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/litera-backend/internal/middleware"
	"github.com/stemsi/litera-backend/internal/model"
	"github.com/stemsi/litera-backend/internal/reading"
	"github.com/stemsi/litera-backend/internal/response"
	"github.com/stemsi/litera-backend/internal/service"
	"github.com/stemsi/litera-backend/internal/validator"
)

// StudentPortalHandler handles student-facing reading endpoints.
type StudentPortalHandler struct {
	studentService *service.StudentService
	bookService    *service.BookService
	readingService *service.ReadingService
	quizService    *service.QuizService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	studentService *service.StudentService,
	bookService *service.BookService,
	readingService *service.ReadingService,
	quizService *service.QuizService,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		studentService: studentService,
		bookService:    bookService,
		readingService: readingService,
		quizService:    quizService,
	}
}

// GetShelf godoc
// GET /api/v1/student/books
// Returns the student's book shelf with progress and sticker overlay.
func (h *StudentPortalHandler) GetShelf(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}

	shelf, err := h.bookService.GetShelf(c.Request.Context(), student)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if shelf == nil {
		shelf = []service.ShelfBook{}
	}
	response.Success(c, http.StatusOK, gin.H{"books": shelf})
}

// GetBook godoc
// GET /api/v1/student/books/:book_id
// Returns a book's pages plus the student's saved progress.
func (h *StudentPortalHandler) GetBook(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	book, err := h.bookService.GetForStudent(c.Request.Context(), student, bookID)
	if err != nil {
		h.failBook(c, err)
		return
	}

	payload := gin.H{"book": book}
	progress, err := h.readingService.GetProgress(c.Request.Context(), student.ID, bookID)
	if err == nil {
		payload["progress"] = progress
	} else if !errors.Is(err, reading.ErrProgressNotFound) {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, payload)
}

// GetProgress godoc
// GET /api/v1/student/books/:book_id/progress
// Returns the latest checkpoint for this student-book pair.
func (h *StudentPortalHandler) GetProgress(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	progress, err := h.readingService.GetProgress(c.Request.Context(), student.ID, bookID)
	if err != nil {
		if errors.Is(err, reading.ErrProgressNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"progress": progress})
}

// OpenBook godoc
// POST /api/v1/student/books/:book_id/open
// Creates (or returns) the reading progress for this book. Idempotent; the
// client calls this to render the resume screen before connecting the stream.
func (h *StudentPortalHandler) OpenBook(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	progress, err := h.readingService.EnsureProgress(c.Request.Context(), student, bookID)
	if err != nil {
		h.failBook(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"progress": progress})
}

// SubmitReading godoc
// POST /api/v1/student/books/:book_id/submit
// Drains the live session's staged audio while keeping the book open.
func (h *StudentPortalHandler) SubmitReading(c *gin.Context) {
	h.drainReading(c, h.readingService.Submit)
}

// CompleteReading godoc
// POST /api/v1/student/books/:book_id/complete
// Drains staged audio and closes the book, unlocking its quiz.
func (h *StudentPortalHandler) CompleteReading(c *gin.Context) {
	h.drainReading(c, h.readingService.Complete)
}

func (h *StudentPortalHandler) drainReading(c *gin.Context, op func(context.Context, int, uuid.UUID) (*model.ReadingProgress, error)) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	progress, err := op(c.Request.Context(), student.ID, bookID)
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, gin.H{"progress": progress})
	case errors.Is(err, service.ErrNoActiveSession):
		response.Fail(c, http.StatusConflict, response.ErrNoActiveSession)
	case errors.Is(err, reading.ErrSessionCompleted):
		response.Fail(c, http.StatusConflict, response.ErrReadingCompleted)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrUploadFailed)
	}
}

// UploadSegment godoc
// POST /api/v1/student/books/:book_id/pages/:page/segments
// Stages a device-recorded audio segment on the live reading session.
func (h *StudentPortalHandler) UploadSegment(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	file, header, err := c.Request.FormFile("segment")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer file.Close()

	err = h.readingService.UploadSegment(c.Request.Context(), student, bookID, page, file, header)
	switch {
	case err == nil:
		response.Success(c, http.StatusCreated, gin.H{"status": "staged"})
	case errors.Is(err, service.ErrNoActiveSession):
		response.Fail(c, http.StatusConflict, response.ErrNoActiveSession)
	case errors.Is(err, service.ErrPageOutOfRange):
		response.Fail(c, http.StatusBadRequest, response.ErrPageOutOfRange)
	case errors.Is(err, service.ErrUnsupportedAudioType):
		response.Fail(c, http.StatusUnsupportedMediaType, response.ErrUnsupportedFile)
	case errors.Is(err, service.ErrAudioTooLarge):
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// StartQuiz godoc
// POST /api/v1/student/books/:book_id/quiz/start
// Begins the quiz for a completed book and returns the first question.
func (h *StudentPortalHandler) StartQuiz(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	question, err := h.quizService.Start(c.Request.Context(), student.ID, bookID)
	if err != nil {
		h.failQuiz(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question": question})
}

// AnswerQuiz godoc
// POST /api/v1/student/books/:book_id/quiz/answer
// Grades one attempt at the active question with immediate feedback.
func (h *StudentPortalHandler) AnswerQuiz(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	var req model.AnswerQuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	outcome, err := h.quizService.Answer(c.Request.Context(), student.ID, bookID, &req)
	if err != nil {
		h.failQuiz(c, err)
		return
	}
	response.Success(c, http.StatusOK, outcome)
}

// GetStickers godoc
// GET /api/v1/student/stickers
// Returns the student's sticker collection.
func (h *StudentPortalHandler) GetStickers(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}

	stickers, err := h.quizService.Stickers(c.Request.Context(), student.ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if stickers == nil {
		stickers = []model.Sticker{}
	}
	response.Success(c, http.StatusOK, gin.H{"stickers": stickers})
}

// GetQuizResults godoc
// GET /api/v1/student/quiz-results
// Returns the student's quiz history.
func (h *StudentPortalHandler) GetQuizResults(c *gin.Context) {
	student, ok := h.currentStudent(c)
	if !ok {
		return
	}

	results, err := h.quizService.Results(c.Request.Context(), student.ID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if results == nil {
		results = []model.QuizResult{}
	}
	response.Success(c, http.StatusOK, gin.H{"results": results})
}

// ─── Helpers ───────────────────────────────────────────────────────────────

func (h *StudentPortalHandler) currentStudent(c *gin.Context) (*model.Student, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, false
	}
	student, err := h.studentService.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return nil, false
	}
	return student, true
}

func parseBookID(c *gin.Context) (uuid.UUID, bool) {
	bookID, err := uuid.Parse(c.Param("book_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return bookID, true
}

func (h *StudentPortalHandler) failBook(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBookNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrBookNotAvailable):
		response.Fail(c, http.StatusForbidden, response.ErrBookNotAvailable)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

func (h *StudentPortalHandler) failQuiz(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrQuizLocked):
		response.Fail(c, http.StatusForbidden, response.ErrQuizLocked)
	case errors.Is(err, service.ErrQuizNoQuestions):
		response.Fail(c, http.StatusNotFound, response.ErrQuizNoQuestions)
	case errors.Is(err, service.ErrQuizWrongQuestion), errors.Is(err, service.ErrQuizFinished):
		response.Fail(c, http.StatusConflict, response.ErrQuizWrongQuestion)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
