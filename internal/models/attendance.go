package models

import (
	"time"

	"github.com/google/uuid"
)

type SpoofStatus string

const (
	SpoofStatusLive    SpoofStatus = "LIVE"
	SpoofStatusSpoofed SpoofStatus = "SPOOFED"
)

// DateLayout is the calendar-day format used for attendance keys.
const DateLayout = "2006-01-02"

// AttendanceKey identifies the single slot a student can be marked in.
// An empty Period means day-level attendance.
type AttendanceKey struct {
	StudentCode string
	Date        string
	Period      string
}

type Attendance struct {
	ID                    uuid.UUID   `json:"id" db:"id"`
	StudentCode           string      `json:"student_code" db:"student_code"`
	Name                  string      `json:"name" db:"name"`
	Date                  string      `json:"date" db:"date"`
	Period                string      `json:"period" db:"period"`
	Time                  string      `json:"time" db:"time"`
	Emotion               string      `json:"emotion" db:"emotion"`
	SpoofStatus           SpoofStatus `json:"spoof_status" db:"spoof_status"`
	LivenessConfidence    float64     `json:"liveness_confidence" db:"liveness_confidence"`
	RecognitionConfidence float64     `json:"recognition_confidence" db:"recognition_confidence"`
	CreatedAt             time.Time   `json:"created_at" db:"created_at"`
}

func (a *Attendance) Key() AttendanceKey {
	return AttendanceKey{StudentCode: a.StudentCode, Date: a.Date, Period: a.Period}
}

type Notification struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Type      string    `json:"type" db:"type"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	Read      bool      `json:"read" db:"read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
