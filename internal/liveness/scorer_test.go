package liveness

import (
	"image"
	"image/color"
	"math/rand"
	"testing"
)

func flatCrop(size int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func noisyCrop(size int, seed int64) image.Image {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

func TestScoreFlatGrayIsNotLive(t *testing.T) {
	s := NewScorer(0, 0)
	res := s.Score(flatCrop(100, color.Gray{Y: 128}), nil)

	if res.Live {
		t.Fatalf("flat gray crop scored live: %+v", res)
	}
	if res.Score >= DefaultPassThreshold {
		t.Errorf("Score = %v, want < %v", res.Score, DefaultPassThreshold)
	}
	if res.Signals.LaplacianVar != 0 || res.Signals.SaturationStd != 0 {
		t.Errorf("flat crop signals = %+v, want zero texture and colour", res.Signals)
	}
	if res.Signals.EdgeDensity != 0 {
		t.Errorf("EdgeDensity = %v, want 0", res.Signals.EdgeDensity)
	}
}

func TestScoreTexturedCropIsLive(t *testing.T) {
	s := NewScorer(0, 0)
	res := s.Score(noisyCrop(96, 7), nil)

	if !res.Live {
		t.Fatalf("textured crop scored not live: %+v", res)
	}
	if res.Confidence > 99 {
		t.Errorf("Confidence = %v, want <= 99", res.Confidence)
	}
}

func TestScoreSmallCrop(t *testing.T) {
	s := NewScorer(0, 0)
	tests := []struct {
		name string
		w, h int
	}{
		{"both small", 10, 10},
		{"exactly min", 20, 20},
		{"narrow", 15, 200},
		{"short", 200, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			res := s.Score(img, nil)
			if res.Live || res.Confidence != smallCropConfidence {
				t.Errorf("Score() = %+v, want not live with confidence %v", res, smallCropConfidence)
			}
		})
	}
}

func TestScoreRecoversFromPanic(t *testing.T) {
	s := NewScorer(0, 0)
	res := s.Score(nil, nil)
	if res.Live || res.Confidence != failureConfidence {
		t.Errorf("Score(nil) = %+v, want not live with confidence %v", res, failureConfidence)
	}
}

func TestPointsDepthBonus(t *testing.T) {
	base := Signals{LaplacianVar: 100, SaturationStd: 15, EdgeDensity: 0.1, Frequency: 10}
	withDepth := base
	withDepth.DepthVar = 0.001
	withDepth.DepthRange = 0.03

	got := Points(withDepth) - Points(base)
	if got != 10 {
		t.Errorf("depth bonus = %v, want 10", got)
	}
}

func TestPointsBands(t *testing.T) {
	tests := []struct {
		name string
		sig  Signals
		want float64
	}{
		// 0 + 0 + 10 (no edges) + 15 (low frequency)
		{"flat", Signals{}, 25},
		{"max", Signals{LaplacianVar: 500, SaturationStd: 40, EdgeDensity: 0.1, Frequency: 1, DepthVar: 1, DepthRange: 1}, 100},
		{"mid texture", Signals{LaplacianVar: 200, SaturationStd: 12, EdgeDensity: 0.025, Frequency: 20}, 25 + 20 + 15 + 10},
		{"low texture", Signals{LaplacianVar: 50, SaturationStd: 4, EdgeDensity: 0.5, Frequency: 50}, 10 + 6 + 10 + 8},
		{"very high frequency", Signals{EdgeDensity: 0.5, Frequency: 1000}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Points(tt.sig); got != tt.want {
				t.Errorf("Points() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEdgeDensityDetectsStep(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 20; x < 40; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	d := edgeDensity(grayPlane(img), cannyLow, cannyHigh)
	if d <= 0 || d > 0.2 {
		t.Errorf("edgeDensity() = %v, want a thin vertical edge", d)
	}
}

func TestFrequencyScoreFlat(t *testing.T) {
	if got := frequencyScore(flatCrop(64, color.Gray{Y: 128}), frequencySize); got != 0 {
		t.Errorf("frequencyScore() = %v, want 0", got)
	}
}

func patternCrop(size int, on func(x, y int) bool) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if on(x, y) {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestFrequencyPenalisesPeriodicPatterns(t *testing.T) {
	noise := frequencyScore(noisyCrop(200, 3), frequencySize)
	if noise >= 12 {
		t.Fatalf("noise frequency = %v, want < 12", noise)
	}
	noisePts := Points(Signals{Frequency: noise})

	tests := []struct {
		name string
		img  image.Image
	}{
		{"checker", patternCrop(200, func(x, y int) bool { return (x+y)%2 == 0 })},
		{"stripes", patternCrop(200, func(x, y int) bool { return x%4 < 2 })},
		{"horizontal stripes", patternCrop(200, func(x, y int) bool { return y%6 < 3 })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := frequencyScore(tt.img, frequencySize)
			if f <= 30 {
				t.Errorf("frequency = %v, want > 30", f)
			}
			if pts := Points(Signals{Frequency: f}); pts >= noisePts {
				t.Errorf("points = %v, want fewer than noise (%v)", pts, noisePts)
			}
		})
	}
}
