package compare

import (
	"errors"
	"fmt"
	"image"

	"github.com/nao1215/shotdiff/internal/imageio"
	"github.com/nao1215/shotdiff/internal/model"
)

// DefaultThreshold is the SSIM at or above which a capture passes.
const DefaultThreshold = 0.92

// ErrEmptyImage is returned when either image has no pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Result holds the similarity of one baseline/current pair.
type Result struct {
	// SSIM is the mean structural similarity in [-1, 1].
	SSIM float64

	// MSE is the mean squared luminance error.
	MSE float64

	// Diff visualizes local dissimilarity; bright means different.
	// It has the baseline's dimensions.
	Diff *image.Gray

	// Resized is true when the current image was scaled to the baseline size.
	Resized bool
}

// Metrics returns the scalar part of r.
func (r Result) Metrics() *model.Metrics {
	return &model.Metrics{SSIM: r.SSIM, MSE: r.MSE}
}

// Compare scores current against baseline. The baseline's dimensions are
// the reference frame: a current image of another size is resampled to it.
func Compare(baseline, current image.Image) (Result, error) {
	base := imageio.ToNRGBA(baseline)
	cur := imageio.ToNRGBA(current)
	if base.Rect.Empty() {
		return Result{}, fmt.Errorf("baseline: %w", ErrEmptyImage)
	}
	if cur.Rect.Empty() {
		return Result{}, fmt.Errorf("current: %w", ErrEmptyImage)
	}

	w, h := base.Rect.Dx(), base.Rect.Dy()
	resized := cur.Rect.Dx() != w || cur.Rect.Dy() != h
	cur = Resize(cur, w, h)

	lumaBase := Luma(base)
	lumaCur := Luma(cur)

	score, ssimMap := SSIM(lumaBase, lumaCur)

	return Result{
		SSIM:    score,
		MSE:     MSE(lumaBase, lumaCur),
		Diff:    DiffImage(ssimMap),
		Resized: resized,
	}, nil
}

// Classify returns StatusOK when ssim reaches threshold and StatusFail otherwise.
func Classify(ssim, threshold float64) model.Status {
	if ssim >= threshold {
		return model.StatusOK
	}
	return model.StatusFail
}

// MSE returns the mean of the squared differences of two equally sized planes.
func MSE(a, b *Plane) float64 {
	if len(a.Pix) == 0 {
		return 0
	}
	var sum float64
	for i, v := range a.Pix {
		d := v - b.Pix[i]
		sum += d * d
	}
	return sum / float64(len(a.Pix))
}

// DiffImage renders (1 - S) * 255 for every pixel of an SSIM map, clamped
// to [0, 255] and truncated to 8 bits.
func DiffImage(ssimMap *Plane) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, ssimMap.Width, ssimMap.Height))
	for i, s := range ssimMap.Pix {
		v := (1 - s) * 255
		switch {
		case v < 0 || v != v:
			v = 0
		case v > 255:
			v = 255
		}
		img.Pix[i] = uint8(v)
	}
	return img
}
