package recognition

import (
	"context"
	"image"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/your-org/attend/internal/attendance"
	"github.com/your-org/attend/internal/liveness"
	"github.com/your-org/attend/internal/matching"
	"github.com/your-org/attend/internal/models"
	"github.com/your-org/attend/internal/observability"
	"github.com/your-org/attend/internal/vision"
)

type Extractor interface {
	Extract(img image.Image) []vision.Face
}

type EmotionClassifier interface {
	Classify(f vision.Face) string
}

type LivenessScorer interface {
	Score(crop image.Image, depth []float64) liveness.Result
}

// Gallery supplies the enrolled signatures; see gallery.Cache.
type Gallery interface {
	Snapshot() []matching.Entry
}

type Ledger interface {
	Mark(ctx context.Context, req attendance.MarkRequest, policy attendance.Policy) (attendance.Outcome, error)
	IsMarked(ctx context.Context, studentID, date, period string) (bool, error)
	NormalizeDate(date string) (string, error)
}

const errAttendanceNotRecorded = "attendance could not be recorded"

type Config struct {
	MaxFaces    int
	MaxImageDim int
	Workers     int
}

type Request struct {
	Image  []byte
	Period string
	Date   string
	Policy attendance.Policy
}

type Detection struct {
	Name                    string     `json:"name"`
	ID                      string     `json:"id"`
	BBox                    [4]float32 `json:"bbox"`
	IsLive                  bool       `json:"isLive"`
	Spoofed                 bool       `json:"spoofed"`
	Emotion                 string     `json:"emotion"`
	RecognitionConfidence   float64    `json:"recognitionConfidence"`
	LivenessConfidence      float64    `json:"livenessConfidence"`
	AttendanceMarked        bool       `json:"attendanceMarked"`
	AttendanceAlreadyMarked bool       `json:"attendanceAlreadyMarked"`
	// AttendanceError is set when marking failed for this face only.
	AttendanceError         string     `json:"attendanceError,omitempty"`
}

type Result struct {
	Date       string      `json:"date"`
	Period     string      `json:"period"`
	Policy     string      `json:"policy"`
	Detections []Detection `json:"detections"`
}

type analysis struct {
	match matching.Result
	live  liveness.Result
}

// Service runs the per-frame decision pipeline: extract, then match and
// liveness per face, then emotion and ledger marking in detection order.
type Service struct {
	extractor  Extractor
	matcher    *matching.Matcher
	scorer     LivenessScorer
	classifier EmotionClassifier
	gallery    Gallery
	ledger     Ledger
	cfg        Config
}

func NewService(
	extractor Extractor,
	matcher *matching.Matcher,
	scorer LivenessScorer,
	classifier EmotionClassifier,
	gallery Gallery,
	ledger Ledger,
	cfg Config,
) *Service {
	if cfg.MaxFaces <= 0 {
		cfg.MaxFaces = vision.DefaultMaxFaces
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Service{
		extractor:  extractor,
		matcher:    matcher,
		scorer:     scorer,
		classifier: classifier,
		gallery:    gallery,
		ledger:     ledger,
		cfg:        cfg,
	}
}

// Recognize analyses one frame. Undecodable images and invalid dates are
// input errors; everything else about individual faces is reported in the
// detections, including a failed ledger write, which does not stop the
// remaining faces. A cancelled context stops before the next ledger step.
func (s *Service) Recognize(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if req.Policy.Name == "" {
		req.Policy = attendance.RoutinePolicy
	}
	observability.Recognitions.WithLabelValues(req.Policy.Name).Inc()

	img, err := vision.Decode(req.Image)
	if err != nil {
		return nil, err
	}
	date, err := s.ledger.NormalizeDate(req.Date)
	if err != nil {
		return nil, err
	}

	img = vision.Downscale(img, s.cfg.MaxImageDim)
	faces := vision.Limit(s.extractor.Extract(img), s.cfg.MaxFaces)
	observability.FacesDetected.Add(float64(len(faces)))

	res := &Result{Date: date, Period: req.Period, Policy: req.Policy.Name, Detections: make([]Detection, 0, len(faces))}
	if len(faces) == 0 {
		return res, nil
	}

	analyses, err := s.analyse(ctx, faces)
	if err != nil {
		return nil, err
	}

	for i, f := range faces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Detections = append(res.Detections, s.decide(ctx, f, analyses[i], date, req))
	}

	observability.InferenceDuration.WithLabelValues("recognize").Observe(time.Since(start).Seconds())
	return res, nil
}

// analyse runs matching and liveness for every face on a bounded worker pool.
func (s *Service) analyse(ctx context.Context, faces []vision.Face) ([]analysis, error) {
	gallery := s.gallery.Snapshot()
	out := make([]analysis, len(faces))

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := range faces {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i].match = s.matcher.Match(faces[i].Signature, gallery)
			out[i].live = s.scorer.Score(faces[i].Crop, faces[i].Depth)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	observability.InferenceDuration.WithLabelValues("analyse").Observe(time.Since(start).Seconds())
	return out, nil
}

func (s *Service) decide(ctx context.Context, f vision.Face, a analysis, date string, req Request) Detection {
	det := Detection{
		Name:                  models.UnknownName,
		BBox:                  f.BBox,
		IsLive:                a.live.Live,
		Spoofed:               !a.live.Live,
		Emotion:               vision.EmotionNeutral,
		RecognitionConfidence: round1(a.match.Confidence),
		LivenessConfidence:    round1(a.live.Confidence),
	}
	if a.live.Live {
		det.Emotion = s.classifier.Classify(f)
	} else {
		observability.SpoofRejected.Inc()
	}

	if !a.match.Matched {
		return det
	}
	observability.FacesRecognized.Inc()
	det.Name = a.match.Name
	det.ID = a.match.ID

	if a.live.Live && req.Policy.Allows(a.match.Confidence) {
		out, err := s.ledger.Mark(ctx, attendance.MarkRequest{
			StudentID:             a.match.ID,
			Name:                  a.match.Name,
			Date:                  date,
			Period:                req.Period,
			Emotion:               det.Emotion,
			IsLive:                true,
			LivenessConfidence:    a.live.Confidence,
			RecognitionConfidence: a.match.Confidence,
		}, req.Policy)
		if err != nil {
			slog.Error("mark attendance failed", "student", a.match.ID, "period", req.Period, "error", err)
			det.AttendanceError = errAttendanceNotRecorded
			return det
		}
		det.AttendanceMarked = out.Committed
		det.AttendanceAlreadyMarked = out.AlreadyMarked
		return det
	}

	marked, err := s.ledger.IsMarked(ctx, a.match.ID, date, req.Period)
	if err != nil {
		slog.Warn("attendance lookup failed", "student", a.match.ID, "error", err)
		return det
	}
	det.AttendanceAlreadyMarked = marked
	return det
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
