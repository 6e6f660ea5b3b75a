package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/attendance"
	"github.com/your-org/attend/internal/recognition"
	"github.com/your-org/attend/internal/vision"
	"github.com/your-org/attend/pkg/dto"
)

type Recognizer interface {
	Recognize(ctx context.Context, req recognition.Request) (*recognition.Result, error)
}

type RecognizeHandler struct {
	svc      Recognizer
	policies attendance.Policies
}

func NewRecognizeHandler(svc Recognizer, policies attendance.Policies) *RecognizeHandler {
	return &RecognizeHandler{svc: svc, policies: policies}
}

// Routine handles multi-face classroom frames.
func (h *RecognizeHandler) Routine(c *gin.Context) {
	h.recognize(c, h.policies.Routine)
}

// Strict handles single-shot marking with the higher confidence bar.
func (h *RecognizeHandler) Strict(c *gin.Context) {
	h.recognize(c, h.policies.Strict)
}

func (h *RecognizeHandler) recognize(c *gin.Context, policy attendance.Policy) {
	var (
		req   dto.RecognizeRequest
		image []byte
	)
	if fh, err := c.FormFile("image"); err == nil {
		req.Period = c.PostForm("period")
		req.Date = c.PostForm("date")
		image, err = readFormFile(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read image failed"})
			return
		}
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No image data provided."})
			return
		}
		image, err = decodeBase64Image(req.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	res, err := h.svc.Recognize(c.Request.Context(), recognition.Request{
		Image:  image,
		Period: req.Period,
		Date:   req.Date,
		Policy: policy,
	})
	if err != nil {
		switch {
		case errors.Is(err, vision.ErrInvalidImage), errors.Is(err, attendance.ErrInvalidDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			slog.Error("recognition failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	resp := dto.RecognizeResponse{
		Success:    true,
		Message:    "Processed frame.",
		Date:       res.Date,
		Period:     res.Period,
		Policy:     res.Policy,
		Detections: make([]dto.Detection, 0, len(res.Detections)),
	}
	if len(res.Detections) == 0 {
		resp.Message = "No faces detected."
	}
	for _, d := range res.Detections {
		resp.Detections = append(resp.Detections, dto.Detection(d))
	}
	c.JSON(http.StatusOK, resp)
}
