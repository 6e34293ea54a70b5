package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// ReadingProgressKey returns the cache key for the latest progress document
// of a student-book pair. Written on every checkpoint, read on resume before
// falling back to PostgreSQL.
func (r *CacheKeyStruct) ReadingProgressKey(studentID int, bookID string) string {
	return fmt.Sprintf("student:%d:book:%s:progress", studentID, bookID)
}

// StudentActiveBookKey returns the cache key for a student's currently open
// reading session.
func (r *CacheKeyStruct) StudentActiveBookKey(studentID int) string {
	return fmt.Sprintf("student:%d:active_book", studentID)
}

// BookPayloadKey returns the cache key for a book's full payload (metadata
// plus ordered pages).
func (r *CacheKeyStruct) BookPayloadKey(bookID string) string {
	return fmt.Sprintf("book:%s:payload", bookID)
}

// GradeBooksKey returns the cache key for the list of book IDs published for
// a grade level.
func (r *CacheKeyStruct) GradeBooksKey(gradeLevel int) string {
	return fmt.Sprintf("grade:%d:books", gradeLevel)
}

// QuizStateKey returns the cache key for a student's in-flight quiz walk.
func (r *CacheKeyStruct) QuizStateKey(studentID int, bookID string) string {
	return fmt.Sprintf("student:%d:book:%s:quiz_state", studentID, bookID)
}

var CacheKey = NewCacheKeyStruct()
