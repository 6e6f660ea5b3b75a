// Package matching finds the enrolled identity closest to a probe signature.
package matching

import (
	"fmt"
	"math"
	"sort"
)

// Metric selects how distance between two signatures is computed.
type Metric int

const (
	// Cosine is used for learned embeddings (ArcFace and similar).
	Cosine Metric = iota
	// Combined is used for geometric landmark vectors:
	// 0.7 * euclidean/sqrt(n) + 0.3 * cosine distance.
	Combined
)

func (m Metric) String() string {
	switch m {
	case Combined:
		return "combined"
	default:
		return "cosine"
	}
}

// ParseMetric maps a config value to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "", "cosine":
		return Cosine, nil
	case "combined":
		return Combined, nil
	default:
		return Cosine, fmt.Errorf("unknown metric %q", s)
	}
}

// Entry is one enrolled reference signature.
type Entry struct {
	ID     string
	Name   string
	Vector []float32
}

// Result is the best candidate for a probe. ID and Name are set even when
// Matched is false so callers can report the closest attempt.
type Result struct {
	ID         string
	Name       string
	Distance   float64
	Confidence float64
	Matched    bool
}

// Matcher compares probes against a gallery with a fixed metric and threshold.
type Matcher struct {
	Metric    Metric
	Threshold float64
}

func New(metric Metric, threshold float64) *Matcher {
	return &Matcher{Metric: metric, Threshold: threshold}
}

// Match returns the minimum-distance entry. Entries whose dimension differs from
// the probe are skipped. Equal distances resolve to the lowest ID.
func (m *Matcher) Match(probe []float32, gallery []Entry) Result {
	if len(probe) == 0 || len(gallery) == 0 {
		return Result{}
	}

	sorted := gallery
	if !sort.SliceIsSorted(gallery, func(i, j int) bool { return gallery[i].ID < gallery[j].ID }) {
		sorted = make([]Entry, len(gallery))
		copy(sorted, gallery)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	}

	best := -1
	bestDist := math.Inf(1)
	for i := range sorted {
		if len(sorted[i].Vector) != len(probe) {
			continue
		}
		d := m.Distance(probe, sorted[i].Vector)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best < 0 {
		return Result{}
	}

	return Result{
		ID:         sorted[best].ID,
		Name:       sorted[best].Name,
		Distance:   bestDist,
		Confidence: m.Confidence(bestDist),
		Matched:    bestDist <= m.Threshold,
	}
}

// Distance computes the configured metric between two equal-length vectors.
func (m *Matcher) Distance(a, b []float32) float64 {
	switch m.Metric {
	case Combined:
		n := math.Sqrt(float64(len(a)))
		return EuclideanDistance(a, b)/n*0.7 + CosineDistance(a, b)*0.3
	default:
		return CosineDistance(a, b)
	}
}

// Confidence maps a distance to [0,100]. Distance 0 is 100.
// Combined reaches 0 at the threshold; Cosine falls linearly to 0 at distance 1.
func (m *Matcher) Confidence(d float64) float64 {
	var c float64
	switch m.Metric {
	case Combined:
		if m.Threshold <= 0 {
			return 0
		}
		c = (1 - d/m.Threshold) * 100
	default:
		c = (1 - d) * 100
	}
	return clamp(c, 0, 100)
}

// CosineDistance returns 1 - cosine similarity. Zero vectors are at distance 1.
func CosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return 1 - sim
}

func EuclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
