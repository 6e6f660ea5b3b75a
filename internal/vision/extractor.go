package vision

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/your-org/attend/internal/config"
	"github.com/your-org/attend/internal/observability"
)

const (
	DefaultMaxFaces = 60
	embedPadding    = 0.1
)

// Face is one detection with its signature and the crops needed downstream.
type Face struct {
	BBox      [4]float32
	Score     float32
	Landmarks [5][2]float32
	Signature []float32
	// Crop is the tight face region analysed for liveness and emotion.
	Crop image.Image
	// Depth holds optional per-landmark z hints. RetinaFace is 2D, so Extract
	// always leaves it nil and the liveness depth bonus does not apply.
	Depth []float64
}

// Limit truncates faces to at most n entries, keeping first-found order.
func Limit(faces []Face, n int) []Face {
	if n > 0 && len(faces) > n {
		return faces[:n]
	}
	return faces
}

// Best returns the highest-scoring face, or false if there is none.
func Best(faces []Face) (Face, bool) {
	if len(faces) == 0 {
		return Face{}, false
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if f.Score > best.Score {
			best = f
		}
	}
	return best, true
}

// Extractor turns an image into per-face signatures using RetinaFace and ArcFace.
// ONNX sessions are not safe for concurrent Run calls, so extraction is serialised.
type Extractor struct {
	mu       sync.Mutex
	detector *Detector
	embedder *Embedder
	maxFaces int
}

// NewExtractor loads det_10g.onnx and w600k_r50.onnx from cfg.ModelsDir.
// The ONNX runtime environment must already be initialised.
func NewExtractor(cfg config.VisionConfig) (*Extractor, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	maxFaces := cfg.MaxFaces
	if maxFaces <= 0 {
		maxFaces = DefaultMaxFaces
	}
	return &Extractor{detector: det, embedder: emb, maxFaces: maxFaces}, nil
}

// Extract returns up to maxFaces faces. Detector failures are logged and
// reported as no faces.
func (e *Extractor) Extract(img image.Image) []Face {
	if img == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	detections, err := e.detector.Detect(img)
	if err != nil {
		slog.Warn("face detection failed", "error", err)
		return nil
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	if len(detections) > e.maxFaces {
		detections = detections[:e.maxFaces]
	}

	start = time.Now()
	faces := make([]Face, 0, len(detections))
	for _, d := range detections {
		tight := cropFace(img, d.BBox, 0)
		padded := cropFace(img, d.BBox, embedPadding)
		if tight == nil || padded == nil {
			continue
		}
		sig, err := e.embedder.Embed(padded)
		if err != nil {
			slog.Warn("face embedding failed", "error", err)
			continue
		}
		faces = append(faces, Face{
			BBox:      d.BBox,
			Score:     d.Confidence,
			Landmarks: d.Landmarks,
			Signature: sig,
			Crop:      tight,
		})
	}
	observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

	return faces
}

func (e *Extractor) Close() {
	if e.detector != nil {
		e.detector.Close()
	}
	if e.embedder != nil {
		e.embedder.Close()
	}
}
