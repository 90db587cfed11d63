package imaging

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// GrayMode selects how color pixels are reduced to one intensity.
type GrayMode string

const (
	// GrayLuma uses Rec. 601 luma weights (0.299 R + 0.587 G + 0.114 B).
	GrayLuma GrayMode = "luma"

	// GrayLightness uses CIE L* (perceptual lightness) scaled to 0-255.
	GrayLightness GrayMode = "lightness"
)

// ParseGrayMode parses a mode name. The empty string selects GrayLuma.
func ParseGrayMode(s string) (GrayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "luma", "luminance":
		return GrayLuma, nil
	case "lightness", "lab", "l*":
		return GrayLightness, nil
	default:
		return "", fmt.Errorf("unknown gray mode %q (expected luma or lightness)", s)
	}
}

// GrayOptions controls conversion to 8-bit grayscale.
type GrayOptions struct {
	// Mode selects the color reduction. Zero value means GrayLuma.
	Mode GrayMode

	// BlurRadius applies a Gaussian blur of this radius after conversion.
	// Zero disables blurring.
	BlurRadius float64

	// Region restricts conversion to part of the image. Nil means the
	// whole image.
	Region *Region
}

// ToGray converts img to an 8-bit grayscale image with origin (0,0).
//
// Steps run in order: crop to Region, reduce color, blur. Fully
// transparent pixels become white in lightness mode, matching the
// paper background of a scanned page.
func ToGray(img image.Image, opts GrayOptions) (*image.Gray, error) {
	if img == nil {
		return nil, fmt.Errorf("image is nil")
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("image is empty")
	}
	if opts.BlurRadius < 0 || math.IsNaN(opts.BlurRadius) || math.IsInf(opts.BlurRadius, 0) {
		return nil, fmt.Errorf("blur radius must be a finite value >= 0, got %v", opts.BlurRadius)
	}

	if opts.Region != nil {
		cropped, err := Crop(img, *opts.Region)
		if err != nil {
			return nil, err
		}
		img = cropped
	}

	var gray *image.Gray
	switch opts.Mode {
	case "", GrayLuma:
		gray = lumaGray(img)
	case GrayLightness:
		gray = lightnessGray(img)
	default:
		return nil, fmt.Errorf("unknown gray mode %q", opts.Mode)
	}

	if opts.BlurRadius > 0 {
		gray = redChannel(blur.Gaussian(gray, opts.BlurRadius))
	}
	return gray, nil
}

func lumaGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return cloneGray(g)
	}
	return redChannel(imaging.Grayscale(img))
}

func lightnessGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := out.Pix[(y-b.Min.Y)*out.Stride:]
		for x := b.Min.X; x < b.Max.X; x++ {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				row[x-b.Min.X] = 255
				continue
			}
			l, _, _ := c.Lab()
			row[x-b.Min.X] = clamp8(l * 255)
		}
	}
	return out
}

// redChannel copies the R channel of an RGBA-family image whose channels
// are equal into a new Gray image with origin (0,0).
func redChannel(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	var pix []uint8
	var stride int
	switch src := img.(type) {
	case *image.NRGBA:
		pix, stride = src.Pix[src.PixOffset(b.Min.X, b.Min.Y):], src.Stride
	case *image.RGBA:
		pix, stride = src.Pix[src.PixOffset(b.Min.X, b.Min.Y):], src.Stride
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, _, _, _ := img.At(x, y).RGBA()
				out.Pix[(y-b.Min.Y)*out.Stride+(x-b.Min.X)] = uint8(r >> 8)
			}
		}
		return out
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = pix[y*stride+x*4]
		}
	}
	return out
}

func cloneGray(g *image.Gray) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return out
}

func clamp8(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
