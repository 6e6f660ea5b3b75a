package models

import "time"

// AttendanceEvent is published to NATS after an attendance row is committed.
type AttendanceEvent struct {
	RecordID              string    `json:"record_id"`
	StudentCode           string    `json:"student_code"`
	Name                  string    `json:"name"`
	Date                  string    `json:"date"`
	Period                string    `json:"period"`
	Time                  string    `json:"time"`
	Emotion               string    `json:"emotion"`
	SpoofStatus           string    `json:"spoof_status"`
	RecognitionConfidence float64   `json:"recognition_confidence"`
	Timestamp             time.Time `json:"timestamp"`
}

// EnrollmentEvent tells every replica to refresh one cached signature.
type EnrollmentEvent struct {
	StudentCode string    `json:"student_code"`
	NumImages   int       `json:"num_images"`
	Timestamp   time.Time `json:"timestamp"`
}
