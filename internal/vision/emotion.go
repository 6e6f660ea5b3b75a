package vision

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	EmotionHappy     = "Happy"
	EmotionSad       = "Sad"
	EmotionAngry     = "Angry"
	EmotionSurprised = "Surprised"
	EmotionNeutral   = "Neutral"
	EmotionFear      = "Fear"
)

// ferPlusLabels maps the eight FER+ classes onto the reported label set.
var ferPlusLabels = [8]string{
	EmotionNeutral,   // neutral
	EmotionHappy,     // happiness
	EmotionSurprised, // surprise
	EmotionSad,       // sadness
	EmotionAngry,     // anger
	EmotionAngry,     // disgust
	EmotionFear,      // fear
	EmotionNeutral,   // contempt
}

// emotionModel runs the FER+ ONNX classifier (64x64 grayscale input).
type emotionModel struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	size         int
}

func newEmotionModel(modelPath string) (*emotionModel, error) {
	m := &emotionModel{size: 64}

	var err error
	m.inputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 1, int64(m.size), int64(m.size)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	m.outputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 8))
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	m.session, err = ort.NewAdvancedSession(modelPath,
		[]string{"Input3"},
		[]string{"Plus692_Output_0"},
		[]ort.Value{m.inputTensor},
		[]ort.Value{m.outputTensor},
		nil,
	)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("create emotion session: %w", err)
	}
	return m, nil
}

func (m *emotionModel) predict(f Face) (string, error) {
	if f.Crop == nil {
		return "", fmt.Errorf("face has no crop")
	}
	copy(m.inputTensor.GetData(), imageToGrayFloat32(f.Crop, m.size, m.size))
	if err := m.session.Run(); err != nil {
		return "", fmt.Errorf("run emotion: %w", err)
	}
	return ferPlusLabels[argmax(m.outputTensor.GetData())], nil
}

func (m *emotionModel) Close() {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.inputTensor != nil {
		m.inputTensor.Destroy()
	}
	if m.outputTensor != nil {
		m.outputTensor.Destroy()
	}
}

// EmotionClassifier labels live faces. It uses the FER+ model when one is
// loaded and falls back to landmark geometry otherwise. Any failure is Neutral.
type EmotionClassifier struct {
	mu    sync.Mutex
	model *emotionModel
}

// NewEmotionClassifier loads modelPath; an empty path gives a landmark-only classifier.
func NewEmotionClassifier(modelPath string) (*EmotionClassifier, error) {
	if modelPath == "" {
		return &EmotionClassifier{}, nil
	}
	m, err := newEmotionModel(modelPath)
	if err != nil {
		return nil, err
	}
	return &EmotionClassifier{model: m}, nil
}

func (c *EmotionClassifier) Classify(f Face) (label string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("emotion classification failed", "panic", r)
			label = EmotionNeutral
		}
	}()

	if c.model != nil {
		c.mu.Lock()
		l, err := c.model.predict(f)
		c.mu.Unlock()
		if err == nil {
			return l
		}
		slog.Warn("emotion model error", "error", err)
		return EmotionNeutral
	}
	return LandmarkEmotion(f.Landmarks)
}

func (c *EmotionClassifier) Close() {
	if c.model != nil {
		c.model.Close()
	}
}

// LandmarkEmotion scores mouth geometry from the five detector landmarks.
// Distances are normalised by the inter-eye distance.
func LandmarkEmotion(lm [5][2]float32) string {
	leftEye, rightEye, nose, leftMouth, rightMouth := lm[0], lm[1], lm[2], lm[3], lm[4]

	eyeDist := dist(leftEye, rightEye)
	if eyeDist == 0 {
		return EmotionNeutral
	}

	scores := map[string]int{}

	mouthWidth := dist(leftMouth, rightMouth) / eyeDist
	mouthY := (leftMouth[1] + rightMouth[1]) / 2
	drop := float64(mouthY-nose[1]) / eyeDist
	// corner asymmetry
	tilt := math.Abs(float64(leftMouth[1]-rightMouth[1])) / eyeDist

	switch {
	case drop > 0.9:
		scores[EmotionSurprised] += 3
	case mouthWidth > 0.95:
		scores[EmotionHappy] += 4
	case mouthWidth < 0.6:
		scores[EmotionSad] += 3
		scores[EmotionAngry]++
	}
	if tilt > 0.25 {
		scores[EmotionFear] += 2
	}

	best, bestScore := EmotionNeutral, 1
	for _, label := range []string{EmotionHappy, EmotionSad, EmotionAngry, EmotionSurprised, EmotionFear} {
		if scores[label] > bestScore {
			best, bestScore = label, scores[label]
		}
	}
	return best
}

func dist(a, b [2]float32) float64 {
	return math.Hypot(float64(a[0]-b[0]), float64(a[1]-b[1]))
}

func argmax(v []float32) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
