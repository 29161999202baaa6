package compare

import (
	"image"
)

// Luma weights for converting RGB to luminance (ITU-R BT.601).
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Plane is a single-channel float image stored row-major.
type Plane struct {
	Width  int
	Height int
	Pix    []float64
}

// NewPlane allocates a zeroed w x h plane.
func NewPlane(w, h int) *Plane {
	return &Plane{Width: w, Height: h, Pix: make([]float64, w*h)}
}

// At returns the value at column x, row y.
func (p *Plane) At(x, y int) float64 {
	return p.Pix[y*p.Width+x]
}

// Luma converts the color channels of img to luminance using
// 0.299R + 0.587G + 0.114B. Alpha is ignored.
func Luma(img *image.NRGBA) *Plane {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	p := NewPlane(w, h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			r, g, b := row[x*4], row[x*4+1], row[x*4+2]
			p.Pix[y*w+x] = lumaR*float64(r) + lumaG*float64(g) + lumaB*float64(b)
		}
	}
	return p
}
