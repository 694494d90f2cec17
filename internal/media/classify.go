// Package media classifies uploads and adaptively compresses images.
package media

import (
	"errors"
	"fmt"
	"mime"
)

// Class tags an accepted upload for downstream branching.
type Class string

const (
	// ClassImage uploads are re-encoded before storage.
	ClassImage Class = "image"
	// ClassVideo uploads are stored as-is.
	ClassVideo Class = "video"
)

// ErrUnsupportedMediaType rejects uploads outside the media allow-lists.
var ErrUnsupportedMediaType = errors.New("media: unsupported media type")

// PayloadTooLargeError rejects uploads over the per-class size ceiling.
// It names the limit that applies so the caller can report it.
type PayloadTooLargeError struct {
	Class Class
	Limit int64
	Size  int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("media: %s of %d bytes exceeds the %d byte limit", e.Class, e.Size, e.Limit)
}

// Limits holds the per-class size ceilings. Images get a smaller ceiling
// than videos since images are re-encoded while videos are stored raw.
type Limits struct {
	MaxImageBytes int64
	MaxVideoBytes int64
}

// DefaultLimits returns the default size ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxImageBytes: 25 << 20,  // 25 MiB
		MaxVideoBytes: 200 << 20, // 200 MiB
	}
}

var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

var videoTypes = map[string]bool{
	"video/mp4":        true,
	"video/webm":       true,
	"video/quicktime":  true,
	"video/x-matroska": true,
}

// Classify inspects a declared MIME type and byte length and decides
// image vs video vs rejected, checking the per-class ceiling. Runs before
// any store write so rejections are cheap and side-effect free.
func Classify(contentType string, size int64, limits Limits) (Class, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", ErrUnsupportedMediaType
	}

	switch {
	case imageTypes[mt]:
		if size > limits.MaxImageBytes {
			return "", &PayloadTooLargeError{Class: ClassImage, Limit: limits.MaxImageBytes, Size: size}
		}
		return ClassImage, nil
	case videoTypes[mt]:
		if size > limits.MaxVideoBytes {
			return "", &PayloadTooLargeError{Class: ClassVideo, Limit: limits.MaxVideoBytes, Size: size}
		}
		return ClassVideo, nil
	default:
		return "", ErrUnsupportedMediaType
	}
}
