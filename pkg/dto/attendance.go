package dto

import "github.com/google/uuid"

// MarkAttendanceRequest records attendance for a face the client has already
// recognised and checked.
type MarkAttendanceRequest struct {
	StudentID             string  `json:"student_id" binding:"required"`
	Name                  string  `json:"name"`
	Date                  string  `json:"date"`
	Period                string  `json:"period"`
	Emotion               string  `json:"emotion"`
	IsLive                bool    `json:"is_live"`
	LivenessConfidence    float64 `json:"liveness_confidence"`
	RecognitionConfidence float64 `json:"recognition_confidence"`
	Policy                string  `json:"policy"`
}

type MarkAttendanceResponse struct {
	Success       bool   `json:"success"`
	AlreadyMarked bool   `json:"already_marked"`
	Message       string `json:"message"`
}

type AttendanceResponse struct {
	ID                    uuid.UUID `json:"id"`
	StudentID             string    `json:"student_id"`
	Name                  string    `json:"name"`
	Date                  string    `json:"date"`
	Period                string    `json:"period"`
	Time                  string    `json:"time"`
	Emotion               string    `json:"emotion"`
	SpoofStatus           string    `json:"spoof_status"`
	LivenessConfidence    float64   `json:"liveness_confidence"`
	RecognitionConfidence float64   `json:"recognition_confidence"`
}

type AttendanceListResponse struct {
	Date    string               `json:"date"`
	Period  string               `json:"period,omitempty"`
	Records []AttendanceResponse `json:"records"`
	Total   int                  `json:"total"`
}

// WSEvent is a WebSocket message for real-time attendance delivery.
type WSEvent struct {
	Type string             `json:"type"` // attendance_marked
	Data AttendanceResponse `json:"data"`
}
