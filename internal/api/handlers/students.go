package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/pkg/dto"
)

type StudentStore interface {
	ListStudents(ctx context.Context, class, section string) ([]models.Student, error)
	SearchStudents(ctx context.Context, q string, limit int) ([]models.Student, error)
	ListSignatures(ctx context.Context, withVectors bool) ([]models.Signature, error)
}

// SignatureCache is the in-memory gallery used for matching.
type SignatureCache interface {
	Reload(ctx context.Context) error
	Len() int
	LoadedAt() time.Time
}

type StudentHandler struct {
	store StudentStore
	cache SignatureCache
}

func NewStudentHandler(store StudentStore, cache SignatureCache) *StudentHandler {
	return &StudentHandler{store: store, cache: cache}
}

func (h *StudentHandler) List(c *gin.Context) {
	students, err := h.store.ListStudents(c.Request.Context(), c.Query("class"), c.Query("section"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, studentList(students))
}

func (h *StudentHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	students, err := h.store.SearchStudents(c.Request.Context(), q, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, studentList(students))
}

// Signatures lists enrolled students with their image counts.
func (h *StudentHandler) Signatures(c *gin.Context) {
	sigs, err := h.store.ListSignatures(c.Request.Context(), false)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.SignatureListResponse{Signatures: make([]dto.SignatureResponse, 0, len(sigs))}
	for _, s := range sigs {
		resp.Signatures = append(resp.Signatures, dto.SignatureResponse{
			StudentID: s.StudentCode,
			Name:      s.Name,
			NumImages: s.NumImages,
			UpdatedAt: s.UpdatedAt.UTC().Format(timeFormat),
		})
	}
	resp.Total = len(resp.Signatures)
	if h.cache != nil {
		resp.Cached = h.cache.Len()
		if t := h.cache.LoadedAt(); !t.IsZero() {
			resp.LoadedAt = t.UTC().Format(timeFormat)
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ReloadSignatures forces a full cache reload from storage.
func (h *StudentHandler) ReloadSignatures(c *gin.Context) {
	if err := h.cache.Reload(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":     h.cache.Len(),
		"loaded_at": h.cache.LoadedAt().UTC().Format(timeFormat),
	})
}

func studentList(students []models.Student) dto.StudentListResponse {
	resp := dto.StudentListResponse{Students: make([]dto.StudentResponse, 0, len(students))}
	for _, s := range students {
		resp.Students = append(resp.Students, dto.StudentResponse{
			ID:        s.ID,
			StudentID: s.Code,
			Name:      s.Name,
			Class:     s.Class,
			Section:   s.Section,
			CreatedAt: s.CreatedAt.UTC().Format(timeFormat),
		})
	}
	resp.Total = len(resp.Students)
	return resp
}
