package model

import (
	"time"

	"github.com/google/uuid"
)

// BookCategory distinguishes the two reading programs. Intensive books have a
// hard per-page recording cap; extensive books run on the overtime/lifeline
// policy.
type BookCategory string

const (
	BookCategoryIntensive BookCategory = "INTENSIVE"
	BookCategoryExtensive BookCategory = "EXTENSIVE"
)

// BookPage is a single page image of a book.
type BookPage struct {
	PageNumber int    `json:"page_number"`
	ImageURL   string `json:"image_url"`
}

// Book represents a readable book: ordered page images plus category and
// grade targeting.
type Book struct {
	ID         uuid.UUID    `json:"id"`
	Title      string       `json:"title"`
	Author     string       `json:"author,omitempty"`
	CoverURL   string       `json:"cover_url,omitempty"`
	GradeLevel int          `json:"grade_level"`
	Category   BookCategory `json:"category"`
	Pages      []BookPage   `json:"pages"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// TotalPages returns the page count.
func (b *Book) TotalPages() int {
	return len(b.Pages)
}

// CreateBookRequest is the payload for creating a book.
type CreateBookRequest struct {
	Title      string     `json:"title" binding:"required,min=1,max=200"`
	Author     string     `json:"author" binding:"max=100"`
	CoverURL   string     `json:"cover_url" binding:"max=500"`
	GradeLevel int        `json:"grade_level" binding:"required,min=1,max=6"`
	Category   string     `json:"category" binding:"required,oneof=INTENSIVE EXTENSIVE"`
	Pages      []BookPage `json:"pages" binding:"required,min=1,dive"`
}

// UpdateBookRequest is the payload for updating book metadata and pages.
type UpdateBookRequest struct {
	Title      string     `json:"title" binding:"required,min=1,max=200"`
	Author     string     `json:"author" binding:"max=100"`
	CoverURL   string     `json:"cover_url" binding:"max=500"`
	GradeLevel int        `json:"grade_level" binding:"required,min=1,max=6"`
	Category   string     `json:"category" binding:"required,oneof=INTENSIVE EXTENSIVE"`
	Pages      []BookPage `json:"pages" binding:"required,min=1,dive"`
}
