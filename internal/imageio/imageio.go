package imageio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg" // baseline images may be JPEG
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	// FilePerm is the permission of written images.
	FilePerm = 0o644

	// DirPerm is the permission of created directories.
	DirPerm = 0o750

	// pngPattern matches the images purged before a batch.
	pngPattern = "*.png"
)

// ErrNotPNG is returned when bytes expected to be a PNG do not decode as one.
var ErrNotPNG = errors.New("data is not a valid PNG image")

// ToNRGBA returns img as an 8-bit non-premultiplied RGBA image.
// Images already in that form are returned as-is.
func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if rgba, ok := img.(*image.RGBA); ok && rgba.Opaque() {
		draw.Draw(dst, dst.Rect, rgba, b.Min, draw.Src)
		return dst
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			dst.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}
	return dst
}

// Decode decodes an image from data and returns it as NRGBA.
func Decode(data []byte) (*image.NRGBA, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return ToNRGBA(img), nil
}

// LoadRGB decodes the image file at path. Only the color channels of the
// result are meaningful to callers; alpha is ignored.
func LoadRGB(path string) (*image.NRGBA, error) {
	data, err := os.ReadFile(path) //nolint:gosec // paths come from the run configuration
	if err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// LoadPair decodes a baseline and a current image concurrently.
func LoadPair(ctx context.Context, baselinePath, currentPath string) (*image.NRGBA, *image.NRGBA, error) {
	var baseline, current *image.NRGBA

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		baseline, err = LoadRGB(baselinePath)
		return err
	})
	g.Go(func() error {
		var err error
		current, err = LoadRGB(currentPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return baseline, current, nil
}

// CheckPNG verifies that data is a PNG and returns its configuration.
func CheckPNG(data []byte) (image.Config, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, fmt.Errorf("%w: %w", ErrNotPNG, err)
	}
	return cfg, nil
}

// WriteFile writes data to path, creating the parent directory if needed.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), DirPerm); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, FilePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SavePNG encodes img as PNG to path.
func SavePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}
	return WriteFile(path, buf.Bytes())
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// EnsureDirs creates every directory in dirs.
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, DirPerm); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// PurgeResult lists what PurgeImages removed and what it could not.
type PurgeResult struct {
	Removed []string
	Failed  map[string]error
}

// PurgeImages deletes the PNG files directly inside dir. Files that cannot
// be deleted are reported in the result and do not stop the purge. A missing
// directory is not an error.
func PurgeImages(dir string) (PurgeResult, error) {
	result := PurgeResult{
		Removed: make([]string, 0),
		Failed:  make(map[string]error),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		return result, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, _ := filepath.Match(pngPattern, strings.ToLower(entry.Name())) //nolint:errcheck // pattern is constant
		if !matched {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			result.Failed[path] = err
			continue
		}
		result.Removed = append(result.Removed, path)
	}

	return result, nil
}
