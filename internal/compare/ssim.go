package compare

// SSIM parameters: uniform 7x7 windows over 8-bit data with the usual
// stabilizing constants.
const (
	windowSize = 7
	dataRange  = 255.0
	k1         = 0.01
	k2         = 0.03
)

// SSIM computes the structural similarity of two equally sized luminance
// planes. It returns the mean similarity and the full per-pixel map.
//
// Local statistics use a uniform window with mirrored borders and sample
// covariance. The mean excludes a border of half a window, where the
// statistics rely on mirrored pixels. Planes smaller than the window use
// the largest odd window that fits.
func SSIM(a, b *Plane) (float64, *Plane) {
	win := windowFor(a.Width, a.Height)

	np := float64(win * win)
	covNorm := 1.0
	if np > 1 {
		covNorm = np / (np - 1)
	}
	c1 := (k1 * dataRange) * (k1 * dataRange)
	c2 := (k2 * dataRange) * (k2 * dataRange)

	ux := uniformFilter(a, win)
	uy := uniformFilter(b, win)
	uxx := uniformFilter(product(a, a), win)
	uyy := uniformFilter(product(b, b), win)
	uxy := uniformFilter(product(a, b), win)

	s := NewPlane(a.Width, a.Height)
	for i := range s.Pix {
		mx, my := ux.Pix[i], uy.Pix[i]
		vx := covNorm * (uxx.Pix[i] - mx*mx)
		vy := covNorm * (uyy.Pix[i] - my*my)
		vxy := covNorm * (uxy.Pix[i] - mx*my)

		a1 := 2*mx*my + c1
		a2 := 2*vxy + c2
		b1 := mx*mx + my*my + c1
		b2 := vx + vy + c2
		s.Pix[i] = (a1 * a2) / (b1 * b2)
	}

	pad := (win - 1) / 2
	var sum float64
	var n int
	for y := pad; y < s.Height-pad; y++ {
		for x := pad; x < s.Width-pad; x++ {
			sum += s.Pix[y*s.Width+x]
			n++
		}
	}
	if n == 0 {
		return 1, s
	}
	return sum / float64(n), s
}

// windowFor returns the SSIM window size for a w x h plane.
func windowFor(w, h int) int {
	win := windowSize
	if m := min(w, h); m < win {
		win = m
		if win%2 == 0 {
			win--
		}
	}
	return max(win, 1)
}

// product returns the element-wise product of two planes.
func product(a, b *Plane) *Plane {
	p := NewPlane(a.Width, a.Height)
	for i := range p.Pix {
		p.Pix[i] = a.Pix[i] * b.Pix[i]
	}
	return p
}

// uniformFilter returns the mean of every size x size neighborhood of p.
// Borders are mirrored including the edge pixel (d c b a | a b c d).
func uniformFilter(p *Plane, size int) *Plane {
	rows := NewPlane(p.Width, p.Height)
	line := make([]float64, max(p.Width, p.Height))
	out := make([]float64, max(p.Width, p.Height))

	for y := 0; y < p.Height; y++ {
		copy(line, p.Pix[y*p.Width:(y+1)*p.Width])
		boxFilter1D(line[:p.Width], out[:p.Width], size)
		copy(rows.Pix[y*p.Width:], out[:p.Width])
	}

	cols := NewPlane(p.Width, p.Height)
	for x := 0; x < p.Width; x++ {
		for y := 0; y < p.Height; y++ {
			line[y] = rows.Pix[y*p.Width+x]
		}
		boxFilter1D(line[:p.Height], out[:p.Height], size)
		for y := 0; y < p.Height; y++ {
			cols.Pix[y*p.Width+x] = out[y]
		}
	}
	return cols
}

// boxFilter1D writes the size-wide moving average of in to out.
func boxFilter1D(in, out []float64, size int) {
	n := len(in)
	half := size / 2
	for i := 0; i < n; i++ {
		var sum float64
		for k := i - half; k <= i+half; k++ {
			sum += in[reflectIndex(k, n)]
		}
		out[i] = sum / float64(size)
	}
}

// reflectIndex maps i into [0, n) by mirroring about the edges.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}
