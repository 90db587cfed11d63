package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// EncodedImage is a PNG-encoded image ready to be returned to a client.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// PNGBytes encodes img as PNG.
func PNGBytes(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes img as base64 PNG. A scale other than 1 (and greater
// than 0) resizes the image first. Nearest-neighbor resampling keeps
// binary and quantized output free of intermediate levels.
func EncodePNG(img image.Image, scale float64) (*EncodedImage, error) {
	if img == nil {
		return nil, fmt.Errorf("image is nil")
	}
	if scale != 1.0 && scale > 0 {
		w := int(float64(img.Bounds().Dx()) * scale)
		h := int(float64(img.Bounds().Dy()) * scale)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		img = imaging.Resize(img, w, h, imaging.NearestNeighbor)
	}

	data, err := PNGBytes(img)
	if err != nil {
		return nil, err
	}

	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    "image/png",
	}, nil
}
