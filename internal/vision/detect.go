package vision

import (
	"fmt"
	"image"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// Detection represents a detected face.
type Detection struct {
	BBox       [4]float32 // x1, y1, x2, y2 (pixel coordinates)
	Confidence float32
	Landmarks  [5][2]float32 // left eye, right eye, nose, left mouth, right mouth
}

// Detector runs RetinaFace face detection using ONNX Runtime.
type Detector struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	inputW        int
	inputH        int
}

// stride configuration for RetinaFace det_10g
var strides = []int{8, 16, 32}

const (
	anchorsPerStride = 2
	nmsIoU           = 0.4
)

// det_10g output names and shapes (no batch dimension), ordered
// scores, bboxes, landmarks for strides 8, 16, 32.
var detectorOutputs = []struct {
	name  string
	shape ort.Shape
}{
	{"448", ort.NewShape(12800, 1)},
	{"471", ort.NewShape(3200, 1)},
	{"494", ort.NewShape(800, 1)},
	{"451", ort.NewShape(12800, 4)},
	{"474", ort.NewShape(3200, 4)},
	{"497", ort.NewShape(800, 4)},
	{"454", ort.NewShape(12800, 10)},
	{"477", ort.NewShape(3200, 10)},
	{"500", ort.NewShape(800, 10)},
}

// NewDetector loads the RetinaFace ONNX model.
func NewDetector(modelPath string, threshold float32) (*Detector, error) {
	inputW, inputH := 640, 640

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	d := &Detector{
		inputTensor: inputTensor,
		threshold:   threshold,
		inputW:      inputW,
		inputH:      inputH,
	}

	outputNames := make([]string, len(detectorOutputs))
	outputValues := make([]ort.Value, len(detectorOutputs))
	for i, out := range detectorOutputs {
		t, err := ort.NewEmptyTensor[float32](out.shape)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("create output tensor %s: %w", out.name, err)
		}
		outputNames[i] = out.name
		outputValues[i] = t
		d.outputTensors = append(d.outputTensors, t)
	}

	d.session, err = ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		outputNames,
		[]ort.Value{inputTensor},
		outputValues,
		nil,
	)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create detector session: %w", err)
	}
	return d, nil
}

// Detect finds faces in img. Coordinates are in img's pixel space relative to
// its bounds origin. Results are sorted by descending confidence.
func (d *Detector) Detect(img image.Image) ([]Detection, error) {
	b := img.Bounds()
	input := imageToFloat32CHW(img, d.inputW, d.inputH,
		[3]float32{127.5, 127.5, 127.5}, [3]float32{128.0, 128.0, 128.0})
	copy(d.inputTensor.GetData(), input)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	return nms(d.parseDetections(b.Dx(), b.Dy()), nmsIoU), nil
}

// parseDetections decodes anchor-based RetinaFace outputs at strides 8, 16, 32.
func (d *Detector) parseDetections(origW, origH int) []Detection {
	var detections []Detection

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	for si, stride := range strides {
		scores := d.outputTensors[si].GetData()
		bboxes := d.outputTensors[si+3].GetData()
		landmarks := d.outputTensors[si+6].GetData()

		fmW := d.inputW / stride
		fmH := d.inputH / stride
		st := float32(stride)

		idx := 0
		for cy := 0; cy < fmH; cy++ {
			for cx := 0; cx < fmW; cx++ {
				for a := 0; a < anchorsPerStride; a++ {
					if scores[idx] < d.threshold {
						idx++
						continue
					}
					ax := float32(cx) * st
					ay := float32(cy) * st

					det := Detection{
						BBox: [4]float32{
							clampF((ax-bboxes[idx*4+0]*st)*scaleW, 0, float32(origW)),
							clampF((ay-bboxes[idx*4+1]*st)*scaleH, 0, float32(origH)),
							clampF((ax+bboxes[idx*4+2]*st)*scaleW, 0, float32(origW)),
							clampF((ay+bboxes[idx*4+3]*st)*scaleH, 0, float32(origH)),
						},
						Confidence: scores[idx],
					}
					for li := 0; li < 5; li++ {
						det.Landmarks[li][0] = (ax + landmarks[idx*10+li*2]*st) * scaleW
						det.Landmarks[li][1] = (ay + landmarks[idx*10+li*2+1]*st) * scaleH
					}
					detections = append(detections, det)
					idx++
				}
			}
		}
	}

	return detections
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// nms performs Non-Maximum Suppression on detections.
func nms(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return detections
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}
	for i := range detections {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if keep[j] && iou(detections[i].BBox, detections[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	result := detections[:0]
	for i, d := range detections {
		if keep[i] {
			result = append(result, d)
		}
	}
	return result
}

func iou(a, b [4]float32) float32 {
	x1 := math.Max(float64(a[0]), float64(b[0]))
	y1 := math.Max(float64(a[1]), float64(b[1]))
	x2 := math.Min(float64(a[2]), float64(b[2]))
	y2 := math.Min(float64(a[3]), float64(b[3]))

	intersection := float32(math.Max(0, x2-x1) * math.Max(0, y2-y1))
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
