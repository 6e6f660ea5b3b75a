package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/gallery"
	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/pkg/dto"
)

type Enroller interface {
	Enroll(ctx context.Context, req gallery.EnrollRequest) (*models.Signature, error)
	MinImages() int
}

type EnrollHandler struct {
	enroller Enroller
}

func NewEnrollHandler(enroller Enroller) *EnrollHandler {
	return &EnrollHandler{enroller: enroller}
}

// Enroll accepts multipart ("images" files plus form fields) or JSON with
// base64 images.
func (h *EnrollHandler) Enroll(c *gin.Context) {
	req, err := h.parse(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.EnrollResponse{Message: err.Error()})
		return
	}

	sig, err := h.enroller.Enroll(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, gallery.ErrMissingIdentity):
			c.JSON(http.StatusBadRequest, dto.EnrollResponse{Message: "Student name and ID are required"})
		case errors.Is(err, gallery.ErrTooFewImages):
			c.JSON(http.StatusBadRequest, dto.EnrollResponse{
				Message: fmt.Sprintf("At least %d images are required for better accuracy", h.enroller.MinImages()),
			})
		case errors.Is(err, gallery.ErrNoUsableFace):
			c.JSON(http.StatusBadRequest, dto.EnrollResponse{Message: "No usable face detected in the provided images"})
		default:
			slog.Error("enrollment failed", "student", req.StudentID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, dto.EnrollResponse{
		Success:   true,
		Message:   fmt.Sprintf("Successfully enrolled %s (ID: %s) with %d face images", strings.TrimSpace(req.Name), sig.StudentCode, sig.NumImages),
		StudentID: sig.StudentCode,
		NumImages: sig.NumImages,
	})
}

func (h *EnrollHandler) parse(c *gin.Context) (gallery.EnrollRequest, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			return gallery.EnrollRequest{}, fmt.Errorf("invalid multipart form: %w", err)
		}
		req := gallery.EnrollRequest{
			StudentID: c.PostForm("student_id"),
			Name:      c.PostForm("name"),
			Class:     c.PostForm("class"),
			Section:   c.PostForm("section"),
		}
		files := append(form.File["images"], form.File["images[]"]...)
		for _, fh := range files {
			data, err := readFormFile(fh)
			if err != nil {
				return gallery.EnrollRequest{}, fmt.Errorf("read %s: %w", fh.Filename, err)
			}
			req.Images = append(req.Images, data)
		}
		return req, nil
	}

	var body dto.EnrollRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return gallery.EnrollRequest{}, fmt.Errorf("invalid request body: %w", err)
	}
	req := gallery.EnrollRequest{
		StudentID: body.StudentID,
		Name:      body.Name,
		Class:     body.Class,
		Section:   body.Section,
	}
	for i, s := range body.Images {
		data, err := decodeBase64Image(s)
		if err != nil {
			// undecodable entries still count toward the minimum and are
			// discarded by the enroller like any unusable image
			slog.Warn("enrollment image not base64", "index", i, "error", err)
			data = nil
		}
		req.Images = append(req.Images, data)
	}
	return req, nil
}
