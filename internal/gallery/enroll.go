package gallery

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/internal/vision"
)

const DefaultMinImages = 3

var (
	ErrTooFewImages    = errors.New("too few enrollment images")
	ErrNoUsableFace    = errors.New("no face found in any enrollment image")
	ErrMissingIdentity = errors.New("student id and name are required")
)

type Extractor interface {
	Extract(img image.Image) []vision.Face
}

// Store persists a student and their signature atomically.
type Store interface {
	SaveEnrollment(ctx context.Context, st *models.Student, vector []float32, numImages int) (*models.Student, *models.Signature, error)
}

type BlobStore interface {
	PutEnrollmentImage(ctx context.Context, studentCode string, data []byte) (string, error)
	ReplaceEnrollmentImages(ctx context.Context, studentCode string, keep []string) error
}

type Publisher interface {
	PublishEnrollment(ctx context.Context, ev *models.EnrollmentEvent) error
}

type EnrollRequest struct {
	StudentID string
	Name      string
	Class     string
	Section   string
	Images    [][]byte
}

// Enroller builds a student's reference signature from several photos.
type Enroller struct {
	extractor Extractor
	store     Store
	cache     *Cache
	blobs     BlobStore
	publisher Publisher
	minImages int
	maxDim    int
}

// NewEnroller wires the required collaborators. Blob storage and event
// publishing are optional; see WithBlobs and WithPublisher.
func NewEnroller(extractor Extractor, store Store, cache *Cache, minImages, maxDim int) *Enroller {
	if minImages <= 0 {
		minImages = DefaultMinImages
	}
	return &Enroller{
		extractor: extractor,
		store:     store,
		cache:     cache,
		minImages: minImages,
		maxDim:    maxDim,
	}
}

func (e *Enroller) WithBlobs(b BlobStore) *Enroller {
	e.blobs = b
	return e
}

func (e *Enroller) WithPublisher(p Publisher) *Enroller {
	e.publisher = p
	return e
}

func (e *Enroller) MinImages() int {
	return e.minImages
}

// Enroll computes the mean signature over the usable images and stores it,
// replacing any previous signature for the student.
func (e *Enroller) Enroll(ctx context.Context, req EnrollRequest) (*models.Signature, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.Name = strings.TrimSpace(req.Name)
	if req.StudentID == "" || req.Name == "" {
		observability.Enrollments.WithLabelValues("invalid").Inc()
		return nil, ErrMissingIdentity
	}
	if len(req.Images) < e.minImages {
		observability.Enrollments.WithLabelValues("too_few_images").Inc()
		return nil, fmt.Errorf("%w: got %d, need at least %d", ErrTooFewImages, len(req.Images), e.minImages)
	}

	var (
		vectors [][]float32
		usable  []image.Image
	)
	for i, data := range req.Images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := vision.Decode(data)
		if err != nil {
			slog.Warn("skipping enrollment image", "student", req.StudentID, "index", i, "error", err)
			continue
		}
		img = vision.Downscale(img, e.maxDim)
		face, ok := vision.Best(e.extractor.Extract(img))
		if !ok || len(face.Signature) == 0 {
			slog.Warn("no face in enrollment image", "student", req.StudentID, "index", i)
			continue
		}
		if len(vectors) > 0 && len(face.Signature) != len(vectors[0]) {
			slog.Warn("enrollment signature dimension mismatch", "student", req.StudentID, "index", i)
			continue
		}
		vectors = append(vectors, face.Signature)
		usable = append(usable, img)
	}
	if len(vectors) == 0 {
		observability.Enrollments.WithLabelValues("no_face").Inc()
		return nil, ErrNoUsableFace
	}

	mean := Mean(vectors)

	student, sig, err := e.store.SaveEnrollment(ctx, &models.Student{
		Code:    req.StudentID,
		Name:    req.Name,
		Class:   req.Class,
		Section: req.Section,
	}, mean, len(vectors))
	if err != nil {
		observability.Enrollments.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("save enrollment: %w", err)
	}

	e.storeImages(ctx, student.Code, usable)

	if e.cache != nil {
		if err := e.cache.Invalidate(ctx, student.Code); err != nil {
			slog.Error("failed to refresh cached signature", "student", student.Code, "error", err)
		}
	}
	if e.publisher != nil {
		ev := &models.EnrollmentEvent{StudentCode: student.Code, NumImages: len(vectors), Timestamp: time.Now()}
		if err := e.publisher.PublishEnrollment(ctx, ev); err != nil {
			slog.Error("failed to publish enrollment event", "student", student.Code, "error", err)
		}
	}

	observability.Enrollments.WithLabelValues("ok").Inc()
	slog.Info("student enrolled", "student", student.Code, "images", len(req.Images), "usable", len(vectors))
	return sig, nil
}

// storeImages keeps the usable sources as JPEG. Failures are logged; the
// signature is already committed.
func (e *Enroller) storeImages(ctx context.Context, code string, imgs []image.Image) {
	if e.blobs == nil {
		return
	}
	keys := make([]string, 0, len(imgs))
	for _, img := range imgs {
		data, err := vision.EncodeJPEG(img, 90)
		if err != nil {
			slog.Warn("failed to encode enrollment image", "student", code, "error", err)
			continue
		}
		key, err := e.blobs.PutEnrollmentImage(ctx, code, data)
		if err != nil {
			slog.Warn("failed to store enrollment image", "student", code, "error", err)
			return
		}
		keys = append(keys, key)
	}
	if err := e.blobs.ReplaceEnrollmentImages(ctx, code, keys); err != nil {
		slog.Warn("failed to prune old enrollment images", "student", code, "error", err)
	}
}
