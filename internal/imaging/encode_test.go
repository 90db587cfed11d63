package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"testing"
)

func TestEncodePNG(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 30, 20))
	for i := range img.Pix {
		if i%2 == 0 {
			img.Pix[i] = 255
		}
	}

	result, err := EncodePNG(img, 1.0)
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	if result.Width != 30 || result.Height != 20 {
		t.Errorf("dimensions: got %dx%d, want 30x20", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	data, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 30 {
		t.Errorf("decoded width: got %d, want 30", decoded.Bounds().Dx())
	}
}

func TestEncodePNG_Scale(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 100, 40))

	tests := []struct {
		scale         float64
		width, height int
	}{
		{0.5, 50, 20},
		{2.0, 200, 80},
		{0, 100, 40},
		{-1, 100, 40},
		{0.001, 1, 1},
	}
	for _, tt := range tests {
		result, err := EncodePNG(img, tt.scale)
		if err != nil {
			t.Fatalf("EncodePNG(scale=%v) failed: %v", tt.scale, err)
		}
		if result.Width != tt.width || result.Height != tt.height {
			t.Errorf("scale %v: got %dx%d, want %dx%d", tt.scale, result.Width, result.Height, tt.width, tt.height)
		}
	}
}

func TestEncodePNG_ScaleKeepsBinaryLevels(t *testing.T) {
	img := createStepImage(64, 64)
	result, err := EncodePNG(img, 0.5)
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	data, _ := base64.StdEncoding.DecodeString(result.ImageBase64)
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	b := decoded.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := decoded.At(x, y).RGBA()
			if v := r >> 8; v != 0 && v != 255 {
				t.Fatalf("pixel (%d,%d) has intermediate level %d", x, y, v)
			}
		}
	}
}

func TestPNGBytes(t *testing.T) {
	data, err := PNGBytes(image.NewGray(image.Rect(0, 0, 4, 4)))
	if err != nil {
		t.Fatalf("PNGBytes failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("output is not a PNG stream")
	}
}
