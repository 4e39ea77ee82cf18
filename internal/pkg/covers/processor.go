package covers

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

func init() {
	exif.RegisterParsers(mknote.All...)
}

// Covers are normalized to a 13:18 ratio at 30px per unit.
const (
	CoverWidth  = 390
	CoverHeight = 540

	// analysisMaxDim bounds the longest edge of images sent for AI analysis
	// to keep token usage down without hurting legibility.
	analysisMaxDim = 1024

	jpegQuality = 85
)

// ProcessCover normalizes an uploaded cover photo: EXIF orientation applied,
// center-cropped to 13:18 and resized to 390x540, re-encoded as JPEG.
func ProcessCover(data []byte) ([]byte, error) {
	img, err := decodeOriented(data)
	if err != nil {
		return nil, fmt.Errorf("decoding cover image: %w", err)
	}

	// Fill crops to the target aspect ratio around the center, then resizes.
	cover := imaging.Fill(img, CoverWidth, CoverHeight, imaging.Center, imaging.Lanczos)
	return encodeJPEG(cover)
}

// NormalizeForAnalysis re-encodes an image for the AI analyzer: oriented,
// capped at analysisMaxDim on the longest edge, JPEG. On any failure the
// original bytes are returned so analysis can still be attempted.
func NormalizeForAnalysis(data []byte) []byte {
	img, err := decodeOriented(data)
	if err != nil {
		return data
	}

	bounds := img.Bounds()
	if bounds.Dx() > analysisMaxDim || bounds.Dy() > analysisMaxDim {
		img = imaging.Fit(img, analysisMaxDim, analysisMaxDim, imaging.Lanczos)
	}

	out, err := encodeJPEG(img)
	if err != nil {
		return data
	}
	return out
}

// SaveCover writes processed cover bytes to dir under a unique filename and
// returns the path relative to the public root, e.g. "uploads/covers/<uuid>.jpg".
func SaveCover(data []byte, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cover directory: %w", err)
	}

	filename := uuid.New().String() + ".jpg"
	fullPath := filepath.Join(dir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("writing cover file: %w", err)
	}
	return filepath.ToSlash(filepath.Join("uploads", "covers", filename)), nil
}

// decodeOriented decodes image bytes and applies the EXIF orientation tag, so
// phone photos of covers come out upright.
func decodeOriented(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return applyOrientation(data, img), nil
}

func applyOrientation(data []byte, img image.Image) image.Image {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		// No EXIF data; nothing to correct.
		return img
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return img
	}
	orientation, err := tag.Int(0)
	if err != nil {
		return img
	}

	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
