package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// gradientImage builds a deterministic opaque test image.
func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 7) % 256),
				G: uint8((y * 13) % 256),
				B: uint8((x*y + x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

func encodePNGBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodeJPEGBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestCompressOpaqueBecomesJPEG(t *testing.T) {
	src := encodePNGBytes(t, gradientImage(200, 150))

	res, err := Compress(src, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != "jpeg" {
		t.Errorf("opaque input: format = %q, want jpeg", res.Format)
	}
	if res.OriginalSize != int64(len(src)) {
		t.Errorf("OriginalSize = %d, want %d", res.OriginalSize, len(src))
	}
	if res.CompressedSize != int64(len(res.Data)) {
		t.Errorf("CompressedSize = %d, want %d", res.CompressedSize, len(res.Data))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatal(err)
	}
	if format != "jpeg" {
		t.Errorf("decoded format = %q, want jpeg", format)
	}
	if cfg.Width != 200 {
		t.Errorf("width = %d, want 200 (no upscale)", cfg.Width)
	}
}

func TestCompressAlphaBecomesPNG(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 50, B: 50, A: uint8(x * 4)})
		}
	}
	src := encodePNGBytes(t, img)

	res, err := Compress(src, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != "png" {
		t.Fatalf("alpha input: format = %q, want png", res.Format)
	}

	// Transparency must survive the round trip.
	decoded, format, err := image.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatal(err)
	}
	if format != "png" {
		t.Errorf("decoded format = %q, want png", format)
	}
	if o, ok := decoded.(interface{ Opaque() bool }); ok && o.Opaque() {
		t.Error("output lost its alpha channel")
	}
}

func TestCompressSmallImageSingleAttempt(t *testing.T) {
	src := encodeJPEGBytes(t, gradientImage(10, 10))

	res, err := Compress(src, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Attempts) != 1 {
		t.Errorf("attempts = %d, want 1 for a trivially small image", len(res.Attempts))
	}
	if res.Quality != DefaultOptions().InitialQuality {
		t.Errorf("quality = %d, want initial %d", res.Quality, DefaultOptions().InitialQuality)
	}
}

func TestCompressResizesWideImage(t *testing.T) {
	src := encodeJPEGBytes(t, gradientImage(400, 100))

	res, err := Compress(src, Options{MaxWidth: 100})
	if err != nil {
		t.Fatal(err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 100 {
		t.Errorf("width = %d, want 100", cfg.Width)
	}
	if cfg.Height != 25 {
		t.Errorf("height = %d, want 25 (aspect preserved)", cfg.Height)
	}
}

func TestCompressUnreachableBudgetStopsAtBounds(t *testing.T) {
	opts := DefaultOptions()
	opts.TargetBytes = 1 // never reachable

	src := encodeJPEGBytes(t, gradientImage(300, 300))

	res, err := Compress(src, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Attempts) > opts.MaxAttempts {
		t.Errorf("attempts = %d, exceeds cap %d", len(res.Attempts), opts.MaxAttempts)
	}
	if res.Quality < opts.QualityFloor {
		t.Errorf("quality = %d, below floor %d", res.Quality, opts.QualityFloor)
	}
	if len(res.Data) == 0 {
		t.Error("over-budget result must still return the last attempt's bytes")
	}

	// Quality walks down in fixed steps, never below the floor, and each
	// lower-quality encode never grows the output.
	for i := 1; i < len(res.Attempts); i++ {
		prev, cur := res.Attempts[i-1], res.Attempts[i]
		if cur.Quality >= prev.Quality {
			t.Errorf("attempt %d: quality %d did not drop from %d", i, cur.Quality, prev.Quality)
		}
		if cur.Quality < opts.QualityFloor {
			t.Errorf("attempt %d: quality %d below floor", i, cur.Quality)
		}
		if cur.Bytes > prev.Bytes {
			t.Errorf("attempt %d: %d bytes grew from %d", i, cur.Bytes, prev.Bytes)
		}
	}
}

func TestCompressAlphaAttemptsShrink(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 300, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 300; x++ {
			img.Set(x, y, color.NRGBA{
				R: uint8((x * 7) % 256),
				G: uint8((y * 13) % 256),
				B: uint8((x + y) % 256),
				A: uint8(128 + (x+y)%128),
			})
		}
	}
	opts := DefaultOptions()
	opts.TargetBytes = 1

	res, err := Compress(encodePNGBytes(t, img), opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Format != "png" {
		t.Fatalf("format = %q, want png", res.Format)
	}
	// Each step scales the working width down, so output shrinks.
	for i := 1; i < len(res.Attempts); i++ {
		if res.Attempts[i].Bytes > res.Attempts[i-1].Bytes {
			t.Errorf("attempt %d: %d bytes grew from %d", i, res.Attempts[i].Bytes, res.Attempts[i-1].Bytes)
		}
	}
}

func TestCompressCorruptInput(t *testing.T) {
	_, err := Compress([]byte("definitely not an image"), DefaultOptions())
	if !errors.Is(err, ErrCorruptImage) {
		t.Fatalf("got %v, want ErrCorruptImage", err)
	}

	// Truncated header counts as corrupt too.
	_, err = Compress([]byte{0xFF, 0xD8, 0xFF}, DefaultOptions())
	if !errors.Is(err, ErrCorruptImage) {
		t.Fatalf("truncated jpeg: got %v, want ErrCorruptImage", err)
	}
}

func TestCompressZeroOptionsUseDefaults(t *testing.T) {
	src := encodeJPEGBytes(t, gradientImage(20, 20))

	res, err := Compress(src, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Quality != DefaultOptions().InitialQuality {
		t.Errorf("quality = %d, want default initial %d", res.Quality, DefaultOptions().InitialQuality)
	}
}
