package vision

import (
	"image"
	"image/color"
	"testing"
)

func TestDownscale(t *testing.T) {
	tests := []struct {
		name         string
		w, h, maxDim int
		wantW, wantH int
	}{
		{"landscape", 3840, 2160, 1920, 1920, 1080},
		{"portrait", 1000, 4000, 1920, 480, 1920},
		{"already small", 640, 480, 1920, 640, 480},
		{"disabled", 4000, 4000, 0, 4000, 4000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			got := Downscale(img, tt.maxDim).Bounds()
			if got.Dx() != tt.wantW || got.Dy() != tt.wantH {
				t.Errorf("Downscale() = %dx%d, want %dx%d", got.Dx(), got.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not an image")} {
		if _, err := Decode(data); err == nil {
			t.Errorf("Decode(%q) expected error", data)
		}
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	data, err := EncodeJPEG(img, 90)
	if err != nil {
		t.Fatalf("EncodeJPEG() error: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Bounds().Dx() != 8 || got.Bounds().Dy() != 6 {
		t.Errorf("Decode() bounds = %v", got.Bounds())
	}
}

func TestCropFace(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	img.Set(50, 50, color.RGBA{R: 255, A: 255})

	tests := []struct {
		name         string
		bbox         [4]float32
		pad          float32
		wantW, wantH int
		wantNil      bool
	}{
		{"tight", [4]float32{40, 40, 60, 70}, 0, 20, 30, false},
		{"padded", [4]float32{40, 40, 60, 60}, 0.1, 24, 24, false},
		{"clamped", [4]float32{-10, -10, 10, 10}, 0, 10, 10, false},
		{"outside", [4]float32{200, 200, 300, 300}, 0, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crop := cropFace(img, tt.bbox, tt.pad)
			if tt.wantNil {
				if crop != nil {
					t.Fatalf("cropFace() = %v, want nil", crop.Bounds())
				}
				return
			}
			if crop == nil {
				t.Fatal("cropFace() = nil")
			}
			if crop.Bounds().Dx() != tt.wantW || crop.Bounds().Dy() != tt.wantH {
				t.Errorf("crop = %dx%d, want %dx%d", crop.Bounds().Dx(), crop.Bounds().Dy(), tt.wantW, tt.wantH)
			}
		})
	}

	crop := cropFace(img, [4]float32{40, 40, 60, 60}, 0)
	if r, _, _, _ := crop.At(10, 10).RGBA(); r>>8 != 255 {
		t.Errorf("crop pixel not copied from source")
	}
}

func TestNMS(t *testing.T) {
	dets := []Detection{
		{BBox: [4]float32{0, 0, 10, 10}, Confidence: 0.8},
		{BBox: [4]float32{1, 1, 11, 11}, Confidence: 0.9},
		{BBox: [4]float32{50, 50, 60, 60}, Confidence: 0.7},
	}
	got := nms(dets, 0.4)
	if len(got) != 2 {
		t.Fatalf("nms() kept %d, want 2", len(got))
	}
	if got[0].Confidence != 0.9 || got[1].Confidence != 0.7 {
		t.Errorf("nms() = %+v", got)
	}
}

func TestIoU(t *testing.T) {
	a := [4]float32{0, 0, 10, 10}
	if got := iou(a, a); got != 1 {
		t.Errorf("iou(a, a) = %v, want 1", got)
	}
	if got := iou(a, [4]float32{20, 20, 30, 30}); got != 0 {
		t.Errorf("disjoint iou = %v, want 0", got)
	}
	if got := iou(a, [4]float32{5, 0, 15, 10}); got < 0.33 || got > 0.34 {
		t.Errorf("half-overlap iou = %v, want 1/3", got)
	}
}

func TestLimit(t *testing.T) {
	faces := make([]Face, 80)
	for i := range faces {
		faces[i].Score = float32(i)
	}
	got := Limit(faces, 60)
	if len(got) != 60 {
		t.Fatalf("Limit() len = %d, want 60", len(got))
	}
	if got[0].Score != 0 || got[59].Score != 59 {
		t.Errorf("Limit() did not keep first-found order")
	}
	if len(Limit(faces[:5], 60)) != 5 {
		t.Errorf("Limit() changed a short slice")
	}
}

func TestBest(t *testing.T) {
	if _, ok := Best(nil); ok {
		t.Error("Best(nil) reported a face")
	}
	faces := []Face{{Score: 0.6}, {Score: 0.95}, {Score: 0.7}}
	if f, ok := Best(faces); !ok || f.Score != 0.95 {
		t.Errorf("Best() = %+v, %v", f, ok)
	}
}

func TestLandmarkEmotion(t *testing.T) {
	// eyes 40 px apart, nose between them, mouth below
	base := func(mouthW, mouthDrop, tilt float32) [5][2]float32 {
		return [5][2]float32{
			{30, 40}, {70, 40}, {50, 60},
			{50 - mouthW/2, 60 + mouthDrop}, {50 + mouthW/2, 60 + mouthDrop + tilt},
		}
	}
	tests := []struct {
		name string
		lm   [5][2]float32
		want string
	}{
		{"neutral", base(30, 20, 0), EmotionNeutral},
		{"smile", base(42, 20, 0), EmotionHappy},
		{"frown", base(20, 20, 0), EmotionSad},
		{"open jaw", base(30, 40, 0), EmotionSurprised},
		{"asymmetric", base(30, 20, 12), EmotionFear},
		{"degenerate", [5][2]float32{}, EmotionNeutral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LandmarkEmotion(tt.lm); got != tt.want {
				t.Errorf("LandmarkEmotion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmotionClassifierWithoutModel(t *testing.T) {
	c, err := NewEmotionClassifier("")
	if err != nil {
		t.Fatalf("NewEmotionClassifier() error: %v", err)
	}
	defer c.Close()

	if got := c.Classify(Face{}); got != EmotionNeutral {
		t.Errorf("Classify(empty face) = %q, want Neutral", got)
	}
}

func TestFERPlusLabelsInSet(t *testing.T) {
	allowed := map[string]bool{
		EmotionHappy: true, EmotionSad: true, EmotionAngry: true,
		EmotionSurprised: true, EmotionNeutral: true, EmotionFear: true,
	}
	for i, l := range ferPlusLabels {
		if !allowed[l] {
			t.Errorf("ferPlusLabels[%d] = %q not in label set", i, l)
		}
	}
	if got := argmax([]float32{0.1, 3, 0.2, 2.9}); got != 1 {
		t.Errorf("argmax() = %d, want 1", got)
	}
}
