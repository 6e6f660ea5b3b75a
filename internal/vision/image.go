package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// ErrInvalidImage is returned when uploaded bytes cannot be decoded.
var ErrInvalidImage = errors.New("invalid image")

// Decode reads a JPEG or PNG image.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

// Downscale shrinks img so its longer edge is at most maxDim. Smaller images
// are returned unchanged.
func Downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}
	scale := float64(maxDim) / float64(max(w, h))
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))
	return resizeImage(img, nw, nh)
}

// resizeImage scales img to exactly targetW x targetH with bilinear filtering.
func resizeImage(img image.Image, targetW, targetH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// imageToFloat32CHW converts an image to CHW float32 format with normalization:
//
//	pixel = (pixel - mean) / std
func imageToFloat32CHW(img image.Image, targetW, targetH int, mean, std [3]float32) []float32 {
	resized := resizeImage(img, targetW, targetH)
	plane := targetW * targetH
	data := make([]float32, 3*plane)

	for y := 0; y < targetH; y++ {
		row := resized.Pix[y*resized.Stride:]
		for x := 0; x < targetW; x++ {
			idx := y*targetW + x
			data[idx] = (float32(row[x*4]) - mean[0]) / std[0]
			data[plane+idx] = (float32(row[x*4+1]) - mean[1]) / std[1]
			data[2*plane+idx] = (float32(row[x*4+2]) - mean[2]) / std[2]
		}
	}
	return data
}

// imageToGrayFloat32 converts an image to a single luma plane in 0..255.
func imageToGrayFloat32(img image.Image, targetW, targetH int) []float32 {
	gray := image.NewGray(image.Rect(0, 0, targetW, targetH))
	draw.BiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Src, nil)
	data := make([]float32, targetW*targetH)
	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			data[y*targetW+x] = float32(gray.Pix[y*gray.Stride+x])
		}
	}
	return data
}

// cropFace copies the bbox region out of img, expanded by pad (fraction of the
// box size per side) and clamped to the image. Returns nil for empty boxes.
func cropFace(img image.Image, bbox [4]float32, pad float32) *image.RGBA {
	bounds := img.Bounds()

	r := image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3])).Intersect(bounds)
	if r.Empty() {
		return nil
	}
	if pad > 0 {
		padW := int(float32(r.Dx()) * pad)
		padH := int(float32(r.Dy()) * pad)
		r = image.Rect(r.Min.X-padW, r.Min.Y-padH, r.Max.X+padW, r.Max.Y+padH).Intersect(bounds)
	}

	crop := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(crop, crop.Bounds(), img, r.Min, draw.Src)
	return crop
}

// EncodeJPEG encodes an image as JPEG with the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
