package ocr

import (
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	imgproc "github.com/ironsheep/otsu-mcp/internal/imaging"
)

// DefaultLanguage is the Tesseract language used when none is given.
const DefaultLanguage = "eng"

// Options configures a Tesseract run.
type Options struct {
	// Language is a Tesseract language code such as "eng" or "deu+eng".
	// Empty means DefaultLanguage.
	Language string

	// TessdataPrefix overrides the directory Tesseract loads language data
	// from. Empty uses the Tesseract default (or TESSDATA_PREFIX).
	TessdataPrefix string
}

func (o Options) language() string {
	if strings.TrimSpace(o.Language) == "" {
		return DefaultLanguage
	}
	return o.Language
}

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// TextRegion represents a word with its location and OCR confidence.
type TextRegion struct {
	// Text is the recognized word.
	Text string `json:"text"`

	// Confidence is the OCR confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	// Bounds is the bounding box around this word in the image.
	Bounds Bounds `json:"bounds"`
}

// OCRResult contains the results of text extraction from an image.
type OCRResult struct {
	// FullText is all recognized text with original spacing and newlines.
	FullText string `json:"full_text"`

	// Regions contains individual words with their bounding boxes.
	// May be empty if bounding box extraction fails.
	Regions []TextRegion `json:"regions"`

	// MeanConfidence is the average word confidence (0.0 to 1.0), or 0
	// when no words were found. It is the figure to compare when judging
	// which thresholding method produced the more readable page.
	MeanConfidence float64 `json:"mean_confidence"`

	// WordCount is len(Regions).
	WordCount int `json:"word_count"`
}

// Offset shifts every word box by (dx, dy). It maps boxes found in a
// cropped region back to the coordinates of the full image.
func (r *OCRResult) Offset(dx, dy int) {
	for i := range r.Regions {
		r.Regions[i].Bounds.X1 += dx
		r.Regions[i].Bounds.Y1 += dy
		r.Regions[i].Bounds.X2 += dx
		r.Regions[i].Bounds.Y2 += dy
	}
}

// Recognize runs Tesseract on an in-memory image.
//
// The image is PNG-encoded and handed to Tesseract from memory, so no
// temporary files are written. Binarized output from package threshold is
// the usual input.
//
// # Word-Level Results
//
// Regions are produced at Tesseract's RIL_WORD level. Empty words are
// dropped. If word boxes cannot be extracted, the full text is still
// returned with an empty Regions slice.
func Recognize(img image.Image, opts Options) (*OCRResult, error) {
	if img == nil {
		return nil, fmt.Errorf("image is nil")
	}

	data, err := imgproc.PNGBytes(img)
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}

	if err := client.SetLanguage(opts.language()); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}

	if err := client.SetImageFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return newResult(text, nil), nil
	}

	regions := make([]TextRegion, 0, len(boxes))
	for _, box := range boxes {
		if strings.TrimSpace(box.Word) == "" {
			continue
		}
		regions = append(regions, TextRegion{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds: Bounds{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}

	return newResult(text, regions), nil
}

func newResult(text string, regions []TextRegion) *OCRResult {
	if regions == nil {
		regions = []TextRegion{}
	}
	return &OCRResult{
		FullText:       text,
		Regions:        regions,
		MeanConfidence: meanConfidence(regions),
		WordCount:      len(regions),
	}
}

func meanConfidence(regions []TextRegion) float64 {
	if len(regions) == 0 {
		return 0
	}
	var sum float64
	for _, r := range regions {
		sum += r.Confidence
	}
	return sum / float64(len(regions))
}
