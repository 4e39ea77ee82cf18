package covers

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestProcessCoverNormalizesDimensions(t *testing.T) {
	for _, dims := range [][2]int{{800, 600}, {600, 800}, {390, 540}, {2000, 3000}} {
		data := jpegBytes(t, dims[0], dims[1])
		out, err := ProcessCover(data)
		if err != nil {
			t.Fatalf("ProcessCover(%dx%d) failed: %v", dims[0], dims[1], err)
		}
		w, h := decodeDims(t, out)
		if w != CoverWidth || h != CoverHeight {
			t.Fatalf("ProcessCover(%dx%d) produced %dx%d, want %dx%d", dims[0], dims[1], w, h, CoverWidth, CoverHeight)
		}
	}
}

func TestProcessCoverRejectsGarbage(t *testing.T) {
	if _, err := ProcessCover([]byte("this is not an image")); err == nil {
		t.Fatal("expected error for non-image input")
	}
}

func TestNormalizeForAnalysisCapsSize(t *testing.T) {
	out := NormalizeForAnalysis(jpegBytes(t, 2400, 3200))
	w, h := decodeDims(t, out)
	if w > analysisMaxDim || h > analysisMaxDim {
		t.Fatalf("normalized image is %dx%d, exceeds %d", w, h, analysisMaxDim)
	}

	// Small images pass through at their own size.
	out = NormalizeForAnalysis(jpegBytes(t, 300, 400))
	w, h = decodeDims(t, out)
	if w != 300 || h != 400 {
		t.Fatalf("small image resized to %dx%d", w, h)
	}
}

func TestNormalizeForAnalysisFallsBackOnGarbage(t *testing.T) {
	raw := []byte("not an image")
	if got := NormalizeForAnalysis(raw); !bytes.Equal(got, raw) {
		t.Fatal("undecodable input must be returned unchanged")
	}
}

func TestSaveCover(t *testing.T) {
	dir := t.TempDir()
	data := jpegBytes(t, 390, 540)

	rel, err := SaveCover(data, dir)
	if err != nil {
		t.Fatalf("SaveCover failed: %v", err)
	}
	if !strings.HasPrefix(rel, "uploads/covers/") || !strings.HasSuffix(rel, ".jpg") {
		t.Fatalf("unexpected relative path %q", rel)
	}

	stored, err := os.ReadFile(filepath.Join(dir, filepath.Base(rel)))
	if err != nil {
		t.Fatalf("reading stored cover: %v", err)
	}
	if !bytes.Equal(stored, data) {
		t.Fatal("stored bytes differ from input")
	}

	// A second save must not collide.
	rel2, err := SaveCover(data, dir)
	if err != nil {
		t.Fatalf("second SaveCover failed: %v", err)
	}
	if rel2 == rel {
		t.Fatal("expected unique filenames per save")
	}
}
