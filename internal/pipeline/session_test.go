package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"sync"
	"time"
)

// fakeSession is a scriptable capture.Session.
type fakeSession struct {
	mu sync.Mutex

	// navigateErr is returned by Navigate for the URLs it names.
	navigateErr map[string]error

	// states are returned by ReadyState in order; the last one repeats.
	states   []string
	stateErr error

	// heights are returned by DocumentHeight in order; the last one repeats.
	heights []int64

	// maxOffset caps the scroll offset, like the bottom of a page.
	maxOffset int64
	offset    int64

	width, height float64
	sizeErr       error
	overrideErr   error

	// png is returned by CaptureBeyondViewport; nil encodes an image of
	// the overridden size.
	png        []byte
	captureErr error

	calls      []string
	scrolls    []int64
	overridden [2]int64
	resets     int
	closed     bool
}

func (f *fakeSession) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("navigate " + url)
	f.offset = 0
	return f.navigateErr[url]
}

func (f *fakeSession) ReadyState(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ready")
	if f.stateErr != nil {
		return "", f.stateErr
	}
	if len(f.states) == 0 {
		return "complete", nil
	}
	s := f.states[0]
	if len(f.states) > 1 {
		f.states = f.states[1:]
	}
	return s, nil
}

func (f *fakeSession) ScrollTo(_ context.Context, y int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls = append(f.scrolls, y)
	f.offset = min(y, f.maxOffset)
	return nil
}

func (f *fakeSession) ScrollOffset(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset, nil
}

func (f *fakeSession) DocumentHeight(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.heights) == 0 {
		return f.maxOffset, nil
	}
	h := f.heights[0]
	if len(f.heights) > 1 {
		f.heights = f.heights[1:]
	}
	return h, nil
}

func (f *fakeSession) ContentSize(context.Context) (float64, float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sizeErr != nil {
		return 0, 0, f.sizeErr
	}
	if f.width == 0 && f.height == 0 {
		return 64, 48, nil
	}
	return f.width, f.height, nil
}

func (f *fakeSession) OverrideDeviceMetrics(_ context.Context, width, height int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("override")
	f.overridden = [2]int64{width, height}
	return f.overrideErr
}

func (f *fakeSession) ResetDeviceMetrics(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("reset")
	f.resets++
	return nil
}

func (f *fakeSession) CaptureBeyondViewport(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("screenshot")
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	if f.png != nil {
		return f.png, nil
	}
	w, h := int(f.overridden[0]), int(f.overridden[1])
	// Keep test images small regardless of the emulated size.
	w, h = min(max(w, 1), 64), min(max(h, 1), 64)
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// noSleep is a sleepFunc that returns immediately unless ctx is done.
func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
