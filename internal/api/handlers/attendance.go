package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/attendance"
	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/pkg/dto"
)

type Marker interface {
	Mark(ctx context.Context, req attendance.MarkRequest, policy attendance.Policy) (attendance.Outcome, error)
	NormalizeDate(date string) (string, error)
}

type AttendanceStore interface {
	GetStudent(ctx context.Context, code string) (*models.Student, error)
	ListAttendance(ctx context.Context, date, period string) ([]models.Attendance, error)
}

type AttendanceHandler struct {
	ledger   Marker
	store    AttendanceStore
	policies attendance.Policies
}

func NewAttendanceHandler(ledger Marker, store AttendanceStore, policies attendance.Policies) *AttendanceHandler {
	return &AttendanceHandler{ledger: ledger, store: store, policies: policies}
}

// Mark records attendance reported by a client that ran its own checks.
// The same preconditions as recognition apply.
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req dto.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	policy, err := h.policies.ByName(req.Policy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := req.Name
	if name == "" {
		st, err := h.store.GetStudent(c.Request.Context(), req.StudentID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if st != nil {
			name = st.Name
		}
	}

	out, err := h.ledger.Mark(c.Request.Context(), attendance.MarkRequest{
		StudentID:             req.StudentID,
		Name:                  name,
		Date:                  req.Date,
		Period:                req.Period,
		Emotion:               req.Emotion,
		IsLive:                req.IsLive,
		LivenessConfidence:    req.LivenessConfidence,
		RecognitionConfidence: req.RecognitionConfidence,
	}, policy)
	if err != nil {
		if errors.Is(err, attendance.ErrInvalidDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.Error("mark attendance failed", "student", req.StudentID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.MarkAttendanceResponse{
		Success:       out.Committed,
		AlreadyMarked: out.AlreadyMarked,
		Message:       out.Message,
	})
}

func (h *AttendanceHandler) List(c *gin.Context) {
	date, err := h.ledger.NormalizeDate(c.Query("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	period := c.Query("period")

	records, err := h.store.ListAttendance(c.Request.Context(), date, period)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.AttendanceListResponse{
		Date:    date,
		Period:  period,
		Records: make([]dto.AttendanceResponse, 0, len(records)),
	}
	for _, r := range records {
		resp.Records = append(resp.Records, toAttendanceResponse(r))
	}
	resp.Total = len(resp.Records)
	c.JSON(http.StatusOK, resp)
}
