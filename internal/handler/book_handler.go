package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/litera-backend/internal/model"
	"github.com/stemsi/litera-backend/internal/response"
	"github.com/stemsi/litera-backend/internal/service"
	"github.com/stemsi/litera-backend/internal/validator"
)

// BookHandler handles admin-facing book and quiz management.
type BookHandler struct {
	bookService *service.BookService
	quizService *service.QuizService
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(bookService *service.BookService, quizService *service.QuizService) *BookHandler {
	return &BookHandler{
		bookService: bookService,
		quizService: quizService,
	}
}

// ListBooks godoc
// GET /api/v1/admin/books
// Lists all books with pagination.
func (h *BookHandler) ListBooks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	books, total, err := h.bookService.ListPaginated(c.Request.Context(), perPage, (page-1)*perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if books == nil {
		books = []model.Book{}
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"books": books}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	})
}

// GetBook godoc
// GET /api/v1/admin/books/:book_id
// Returns one book with its pages.
func (h *BookHandler) GetBook(c *gin.Context) {
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	book, err := h.bookService.GetByID(c.Request.Context(), bookID)
	if err != nil {
		if errors.Is(err, service.ErrBookNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"book": book})
}

// CreateBook godoc
// POST /api/v1/admin/books
// Creates a book with its ordered page images.
func (h *BookHandler) CreateBook(c *gin.Context) {
	var req model.CreateBookRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	book, err := h.bookService.Create(c.Request.Context(), &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"book": book})
}

// UpdateBook godoc
// PUT /api/v1/admin/books/:book_id
// Replaces a book's metadata and page list.
func (h *BookHandler) UpdateBook(c *gin.Context) {
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	var req model.UpdateBookRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	book, err := h.bookService.Update(c.Request.Context(), bookID, &req)
	if err != nil {
		if errors.Is(err, service.ErrBookNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"book": book})
}

// DeleteBook godoc
// DELETE /api/v1/admin/books/:book_id
// Deletes a book. Progress, quizzes, and stickers cascade.
func (h *BookHandler) DeleteBook(c *gin.Context) {
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	if err := h.bookService.Delete(c.Request.Context(), bookID); err != nil {
		if errors.Is(err, service.ErrBookNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "book deleted successfully"})
}

// GetQuiz godoc
// GET /api/v1/admin/books/:book_id/quiz
// Returns the book's quiz including correct answers.
func (h *BookHandler) GetQuiz(c *gin.Context) {
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	quiz, err := h.quizService.GetByBook(c.Request.Context(), bookID)
	if err != nil {
		if errors.Is(err, service.ErrQuizNoQuestions) {
			response.Fail(c, http.StatusNotFound, response.ErrQuizNoQuestions)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	// The admin surface needs the answer key; re-shape with correct_index.
	questions := make([]gin.H, len(quiz.Questions))
	for i, q := range quiz.Questions {
		questions[i] = gin.H{
			"id":            q.ID,
			"order_num":     q.OrderNum,
			"question_text": q.QuestionText,
			"options":       q.Options,
			"correct_index": q.CorrectIndex,
		}
	}
	response.Success(c, http.StatusOK, gin.H{"quiz": gin.H{
		"id":        quiz.ID,
		"book_id":   quiz.BookID,
		"questions": questions,
	}})
}

// ReplaceQuiz godoc
// PUT /api/v1/admin/books/:book_id/quiz
// Creates or fully replaces the book's quiz.
func (h *BookHandler) ReplaceQuiz(c *gin.Context) {
	bookID, ok := parseBookID(c)
	if !ok {
		return
	}

	var req model.ReplaceQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.Replace(c.Request.Context(), bookID, &req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}
