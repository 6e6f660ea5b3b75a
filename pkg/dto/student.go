package dto

import "github.com/google/uuid"

type StudentResponse struct {
	ID        uuid.UUID `json:"id"`
	StudentID string    `json:"student_id"`
	Name      string    `json:"name"`
	Class     string    `json:"class"`
	Section   string    `json:"section"`
	CreatedAt string    `json:"created_at"`
}

type StudentListResponse struct {
	Students []StudentResponse `json:"students"`
	Total    int               `json:"total"`
}

type NotificationResponse struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt string    `json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Total         int                    `json:"total"`
}
