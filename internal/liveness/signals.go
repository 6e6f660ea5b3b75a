package liveness

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// plane is a single-channel float image in row-major order.
type plane struct {
	w, h int
	pix  []float64
}

func (p *plane) at(x, y int) float64 { return p.pix[y*p.w+x] }

// grayPlane converts img to BT.601 luma in 0..255.
func grayPlane(img image.Image) *plane {
	b := img.Bounds()
	p := &plane{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			p.pix[y*p.w+x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(bl>>8)
		}
	}
	return p
}

// laplacianVariance is the variance of the 4-neighbour Laplacian over the interior.
func laplacianVariance(g *plane) float64 {
	if g.w < 3 || g.h < 3 {
		return 0
	}
	var sum, sumSq float64
	n := 0
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			v := g.at(x-1, y) + g.at(x+1, y) + g.at(x, y-1) + g.at(x, y+1) - 4*g.at(x, y)
			sum += v
			sumSq += v * v
			n++
		}
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

// saturationStd is the standard deviation of HSV saturation on a 0..255 scale.
func saturationStd(img image.Image) float64 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	var sum, sumSq float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			hi := max(r, g, bl) >> 8
			lo := min(r, g, bl) >> 8
			var s float64
			if hi > 0 {
				s = float64(hi-lo) * 255 / float64(hi)
			}
			sum += s
			sumSq += s * s
		}
	}
	mean := sum / float64(n)
	return math.Sqrt(math.Max(0, sumSq/float64(n)-mean*mean))
}

// edgeDensity runs a Canny detector (3x3 Sobel, L1 gradient, non-maximum
// suppression, hysteresis between low and high) and returns the edge pixel fraction.
func edgeDensity(g *plane, low, high float64) float64 {
	w, h := g.w, g.h
	if w < 3 || h < 3 {
		return 0
	}

	mag := make([]float64, w*h)
	dir := make([]uint8, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -g.at(x-1, y-1) - 2*g.at(x-1, y) - g.at(x-1, y+1) +
				g.at(x+1, y-1) + 2*g.at(x+1, y) + g.at(x+1, y+1)
			gy := -g.at(x-1, y-1) - 2*g.at(x, y-1) - g.at(x+1, y-1) +
				g.at(x-1, y+1) + 2*g.at(x, y+1) + g.at(x+1, y+1)
			i := y*w + x
			mag[i] = math.Abs(gx) + math.Abs(gy)
			dir[i] = quantizeDirection(gx, gy)
		}
	}

	// 0 = none, 1 = weak, 2 = strong
	state := make([]uint8, w*h)
	var stack []int
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			var a, b float64
			switch dir[i] {
			case 0:
				a, b = mag[i-1], mag[i+1]
			case 1:
				a, b = mag[i-w+1], mag[i+w-1]
			case 2:
				a, b = mag[i-w], mag[i+w]
			default:
				a, b = mag[i-w-1], mag[i+w+1]
			}
			if m < a || m < b {
				continue
			}
			if m > high {
				state[i] = 2
				stack = append(stack, i)
			} else {
				state[i] = 1
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if state[j] == 1 {
					state[j] = 2
					stack = append(stack, j)
				}
			}
		}
	}

	edges := 0
	for _, s := range state {
		if s == 2 {
			edges++
		}
	}
	return float64(edges) / float64(w*h)
}

// quantizeDirection buckets the gradient angle into 0°, 45°, 90° or 135°.
func quantizeDirection(gx, gy float64) uint8 {
	angle := math.Atan2(gy, gx) * 180 / math.Pi
	if angle < 0 {
		angle += 180
	}
	switch {
	case angle < 22.5 || angle >= 157.5:
		return 0
	case angle < 67.5:
		return 1
	case angle < 112.5:
		return 2
	default:
		return 3
	}
}

// frequencyScore measures how periodic the crop is. It takes a size x size
// grayscale window from the centre of img at native resolution (upscaling
// crops smaller than the window), removes the mean, applies a Hann window and
// returns the ratio of the strongest to the mean DFT magnitude over bins with
// radius above size/8. Screen pixel grids, print halftones and moire put their
// energy into a few bins and give large ratios; sensor noise and skin texture
// spread it and stay near 3..6. Flat input returns 0.
func frequencyScore(img image.Image, size int) float64 {
	win := image.NewGray(image.Rect(0, 0, size, size))
	b := img.Bounds()
	if b.Dx() >= size && b.Dy() >= size {
		sp := image.Pt(b.Min.X+(b.Dx()-size)/2, b.Min.Y+(b.Dy()-size)/2)
		draw.Draw(win, win.Bounds(), img, sp, draw.Src)
	} else {
		draw.BiLinear.Scale(win, win.Bounds(), img, b, draw.Src, nil)
	}

	n := size
	cosT := make([]float64, n)
	sinT := make([]float64, n)
	hann := make([]float64, n)
	for k := 0; k < n; k++ {
		a := -2 * math.Pi * float64(k) / float64(n)
		cosT[k], sinT[k] = math.Cos(a), math.Sin(a)
		hann[k] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(k)/float64(n))
	}

	var mean float64
	for _, v := range win.Pix[:n*n] {
		mean += float64(v)
	}
	mean /= float64(n * n)

	re := make([]float64, n*n)
	im := make([]float64, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			i := y*n + x
			re[i] = (float64(win.Pix[i]) - mean) * hann[x] * hann[y]
		}
	}

	// rows
	rowRe := make([]float64, n)
	rowIm := make([]float64, n)
	for y := 0; y < n; y++ {
		dft1D(re[y*n:(y+1)*n], im[y*n:(y+1)*n], rowRe, rowIm, cosT, sinT)
	}
	// columns
	colIn := make([]float64, 2*n)
	for x := 0; x < n; x++ {
		cr, ci := colIn[:n], colIn[n:]
		for y := 0; y < n; y++ {
			cr[y], ci[y] = re[y*n+x], im[y*n+x]
		}
		dft1D(cr, ci, rowRe, rowIm, cosT, sinT)
		for y := 0; y < n; y++ {
			re[y*n+x], im[y*n+x] = cr[y], ci[y]
		}
	}

	cutoff := float64(n/8) * float64(n/8)
	var sum, peak float64
	count := 0
	for y := 0; y < n; y++ {
		fy := float64(signedBin(y, n))
		for x := 0; x < n; x++ {
			fx := float64(signedBin(x, n))
			if fx*fx+fy*fy <= cutoff {
				continue
			}
			i := y*n + x
			m := math.Hypot(re[i], im[i])
			sum += m
			peak = math.Max(peak, m)
			count++
		}
	}
	if count == 0 || peak < 1e-6 {
		return 0
	}
	return peak / (sum / float64(count))
}

// signedBin maps DFT index k to its signed frequency.
func signedBin(k, n int) int {
	if k > n/2 {
		return k - n
	}
	return k
}

// dft1D transforms re/im in place using scratch buffers outRe/outIm.
func dft1D(re, im, outRe, outIm, cosT, sinT []float64) {
	n := len(re)
	for k := 0; k < n; k++ {
		var sr, si float64
		for t := 0; t < n; t++ {
			idx := (k * t) % n
			c, s := cosT[idx], sinT[idx]
			sr += re[t]*c - im[t]*s
			si += re[t]*s + im[t]*c
		}
		outRe[k], outIm[k] = sr, si
	}
	copy(re, outRe)
	copy(im, outIm)
}

// depthStats returns the population variance and range of z hints.
func depthStats(z []float64) (variance, spread float64) {
	if len(z) == 0 {
		return 0, 0
	}
	lo, hi := z[0], z[0]
	var sum float64
	for _, v := range z {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(len(z))
	for _, v := range z {
		variance += (v - mean) * (v - mean)
	}
	return variance / float64(len(z)), hi - lo
}
