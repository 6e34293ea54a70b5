package model

import (
	"time"

	"github.com/google/uuid"
)

// Sticker is the reward granted for a perfect quiz pass on a book. At most
// one sticker exists per (student, book); awarding is idempotent.
type Sticker struct {
	ID        uuid.UUID `json:"id"`
	StudentID int       `json:"student_id"`
	BookID    uuid.UUID `json:"book_id"`
	BookTitle string    `json:"book_title,omitempty"`
	AwardedAt time.Time `json:"awarded_at"`
}
