package model

import "time"

// Student represents a student user of the reading app.
type Student struct {
	ID                int       `json:"id"`
	NISN              string    `json:"nisn"`
	Name              string    `json:"name"`
	PasswordHash      string    `json:"-"`
	GradeLevel        int       `json:"grade_level"`
	ExtensiveUnlocked bool      `json:"extensive_unlocked"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// StudentLoginRequest is the payload for student authentication.
type StudentLoginRequest struct {
	NISN     string `json:"nisn" binding:"required,min=4,max=20"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// StudentLoginResponse is returned after successful student login.
type StudentLoginResponse struct {
	Token   string  `json:"token"`
	Student Student `json:"student"`
}

// CreateStudentRequest is the payload for creating a new student account.
type CreateStudentRequest struct {
	NISN       string `json:"nisn" binding:"required,min=4,max=20"`
	Name       string `json:"name" binding:"required,min=2,max=100"`
	Password   string `json:"password" binding:"required,min=6,max=128"`
	GradeLevel int    `json:"grade_level" binding:"required,min=1,max=6"`
}

// UpdateStudentRequest is the payload for updating a student account.
type UpdateStudentRequest struct {
	Name              string  `json:"name" binding:"required,min=2,max=100"`
	GradeLevel        int     `json:"grade_level" binding:"required,min=1,max=6"`
	ExtensiveUnlocked bool    `json:"extensive_unlocked"`
	Password          *string `json:"password" binding:"omitempty,min=6,max=128"`
}
