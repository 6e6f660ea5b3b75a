package models

import (
	"time"

	"github.com/google/uuid"
)

// UnknownName is reported for faces that match no enrolled student.
const UnknownName = "Unknown"

type Student struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"` // roll / registration number
	Name      string    `json:"name" db:"name"`
	Class     string    `json:"class" db:"class"`
	Section   string    `json:"section" db:"section"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Signature is the single reference vector stored per student.
type Signature struct {
	StudentCode string    `json:"student_code" db:"student_code"`
	Name        string    `json:"name" db:"name"`
	Vector      []float32 `json:"-" db:"vector"`
	NumImages   int       `json:"num_images" db:"num_images"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
