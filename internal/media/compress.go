package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	// webp uploads are decodable; output is always jpeg or png.
	_ "golang.org/x/image/webp"
)

// ErrCorruptImage means the decoder could not parse the input at all.
// The upload is aborted with nothing written.
var ErrCorruptImage = errors.New("media: cannot decode image")

// Options tunes the adaptive compressor.
type Options struct {
	TargetBytes    int64 // byte budget for the encoded output
	MaxWidth       int   // working width ceiling; never upscaled
	InitialQuality int
	QualityStep    int
	QualityFloor   int
	MaxAttempts    int
}

// DefaultOptions returns the default compression settings.
func DefaultOptions() Options {
	return Options{
		TargetBytes:    500 << 10, // 500 KiB
		MaxWidth:       1920,
		InitialQuality: 85,
		QualityStep:    10,
		QualityFloor:   40,
		MaxAttempts:    5,
	}
}

// Attempt records one (quality, encoded length) pair of the search loop.
type Attempt struct {
	Quality int
	Bytes   int64
}

// Result is the outcome of one adaptive compression run.
type Result struct {
	Data           []byte
	Format         string // "jpeg" or "png"
	Quality        int
	OriginalSize   int64
	CompressedSize int64
	Attempts       []Attempt
}

// Compress re-encodes raw image bytes toward the target byte budget.
//
// Alpha-bearing images are encoded as PNG so transparency survives; opaque
// images use JPEG for the better ratio at equal perceptual quality. Quality
// is walked down in fixed steps until the budget is met, the floor is hit,
// or the attempt cap is reached. The last attempt's bytes are returned
// regardless, so an over-budget result is possible and legal.
func Compress(data []byte, opts Options) (*Result, error) {
	def := DefaultOptions()
	if opts.TargetBytes <= 0 {
		opts.TargetBytes = def.TargetBytes
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = def.MaxWidth
	}
	if opts.InitialQuality <= 0 {
		opts.InitialQuality = def.InitialQuality
	}
	if opts.QualityStep <= 0 {
		opts.QualityStep = def.QualityStep
	}
	if opts.QualityFloor <= 0 {
		opts.QualityFloor = def.QualityFloor
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}

	// Alpha is detected on the decoded pixels, before any transform.
	alpha := hasAlpha(img)

	img = applyOrientation(img, orientation(bytes.NewReader(data)))
	if img.Bounds().Dx() > opts.MaxWidth {
		img = imaging.Resize(img, opts.MaxWidth, 0, imaging.Lanczos)
	}

	format := "jpeg"
	if alpha {
		format = "png"
	}

	quality := opts.InitialQuality
	var out []byte
	var attempts []Attempt
	for {
		if alpha {
			out, err = encodePNG(img, quality, opts.InitialQuality)
		} else {
			out, err = encodeJPEG(img, quality)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", format, err)
		}
		attempts = append(attempts, Attempt{Quality: quality, Bytes: int64(len(out))})

		if int64(len(out)) <= opts.TargetBytes {
			break
		}
		if len(attempts) >= opts.MaxAttempts || quality <= opts.QualityFloor {
			break
		}
		quality -= opts.QualityStep
		if quality < opts.QualityFloor {
			quality = opts.QualityFloor
		}
	}

	return &Result{
		Data:           out,
		Format:         format,
		Quality:        quality,
		OriginalSize:   int64(len(data)),
		CompressedSize: int64(len(out)),
		Attempts:       attempts,
	}, nil
}

// hasAlpha reports whether the image carries any non-opaque pixel.
func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodePNG encodes losslessly. PNG has no quality knob, so lower quality
// shrinks the working width proportionally (relative to the initial quality)
// to keep the search loop reducing bytes per attempt.
func encodePNG(img image.Image, quality, initialQuality int) ([]byte, error) {
	scaled := img
	if quality < initialQuality {
		width := img.Bounds().Dx() * quality / initialQuality
		if width < 1 {
			width = 1
		}
		scaled = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, scaled); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
