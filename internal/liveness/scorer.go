// Package liveness scores face crops for presentation attacks (printed photos,
// screen replays) using classical image statistics.
package liveness

import (
	"image"
	"log/slog"
	"math"
)

const (
	DefaultPassThreshold = 55.0
	DefaultMinCropSize   = 20

	// Confidence reported when the crop is too small to analyse.
	smallCropConfidence = 20.0
	// Confidence reported when analysis fails.
	failureConfidence = 40.0

	cannyLow      = 50.0
	cannyHigh     = 150.0
	frequencySize = 64
)

// Signals holds the raw measurements behind a score.
type Signals struct {
	LaplacianVar  float64 `json:"laplacian_var"`
	SaturationStd float64 `json:"saturation_std"`
	EdgeDensity   float64 `json:"edge_density"`
	Frequency     float64 `json:"frequency"`
	DepthVar      float64 `json:"depth_var"`
	DepthRange    float64 `json:"depth_range"`
}

type Result struct {
	Live       bool
	Confidence float64
	Score      float64
	Signals    Signals
}

// Scorer is safe for concurrent use.
type Scorer struct {
	PassThreshold float64
	MinCropSize   int
}

func NewScorer(passThreshold float64, minCropSize int) *Scorer {
	if passThreshold <= 0 {
		passThreshold = DefaultPassThreshold
	}
	if minCropSize <= 0 {
		minCropSize = DefaultMinCropSize
	}
	return &Scorer{PassThreshold: passThreshold, MinCropSize: minCropSize}
}

// Score never fails: unusable input or a panic during analysis yields a
// not-live verdict with a low fixed confidence.
func (s *Scorer) Score(crop image.Image, depth []float64) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("liveness analysis failed", "panic", r)
			res = Result{Live: false, Confidence: failureConfidence}
		}
	}()

	b := crop.Bounds()
	if b.Dx() <= s.MinCropSize || b.Dy() <= s.MinCropSize {
		return Result{Live: false, Confidence: smallCropConfidence}
	}

	gray := grayPlane(crop)
	sig := Signals{
		LaplacianVar:  laplacianVariance(gray),
		SaturationStd: saturationStd(crop),
		EdgeDensity:   edgeDensity(gray, cannyLow, cannyHigh),
		Frequency:     frequencyScore(crop, frequencySize),
	}
	sig.DepthVar, sig.DepthRange = depthStats(depth)

	score := Points(sig)
	res = Result{
		Live:       score >= s.PassThreshold,
		Confidence: math.Min(99, score),
		Score:      score,
		Signals:    sig,
	}
	slog.Debug("liveness analysis",
		"texture", sig.LaplacianVar,
		"color", sig.SaturationStd,
		"edges", sig.EdgeDensity,
		"freq", sig.Frequency,
		"score", score,
		"live", res.Live,
	)
	return res
}

// Points converts raw signals into a 0..100 score.
func Points(sig Signals) float64 {
	var score float64

	// texture, up to 30
	switch v := sig.LaplacianVar; {
	case v > 300:
		score += 30
	case v > 150:
		score += 25
	case v > 80:
		score += 20
	default:
		score += math.Max(0, v/5)
	}

	// colour diversity, up to 25
	switch v := sig.SaturationStd; {
	case v > 20:
		score += 25
	case v > 10:
		score += 20
	default:
		score += math.Max(0, v*1.5)
	}

	// edge density, up to 20; both ends of the band score lower
	switch v := sig.EdgeDensity; {
	case v > 0.03 && v < 0.35:
		score += 20
	case v > 0.02 && v < 0.4:
		score += 15
	default:
		score += 10
	}

	// spectral peak ratio, up to 15; periodic patterns score lower
	switch v := sig.Frequency; {
	case v < 12:
		score += 15
	case v < 30:
		score += 10
	default:
		score += math.Max(0, 10-(v-30)/10)
	}

	// depth hints, up to 10
	switch {
	case sig.DepthVar > 0.0008:
		score += 7
	case sig.DepthVar > 0.0003:
		score += 5
	}
	switch {
	case sig.DepthRange > 0.025:
		score += 3
	case sig.DepthRange > 0.015:
		score += 2
	}

	return math.Min(100, score)
}
