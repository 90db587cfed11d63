package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Tile is one outlined rectangle of an overlay with an optional label
// drawn in its top-left corner. Labels support digits, comma, dot and minus.
type Tile struct {
	Rect  image.Rectangle
	Label string
}

// defaultTileColor is semi-transparent red.
var defaultTileColor = color.NRGBA{255, 0, 0, 128}

// OverlayTiles draws the outline of each tile over a copy of img. It is
// used to show which threshold was chosen for each block of a segmented
// or sliding-window run. Colors with alpha below 255 are blended with the
// pixels underneath. An empty or invalid colorHex falls back to
// semi-transparent red.
func OverlayTiles(img image.Image, tiles []Tile, colorHex string) (*image.RGBA, error) {
	if img == nil {
		return nil, fmt.Errorf("image is nil")
	}
	bounds := img.Bounds()

	lineColor, err := parseHexColor(colorHex)
	if err != nil {
		lineColor = defaultTileColor
	}
	line := image.NewUniform(lineColor)

	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	for _, t := range tiles {
		r := t.Rect.Intersect(bounds)
		if r.Empty() {
			continue
		}
		for _, edge := range outline(r) {
			draw.Draw(result, edge, line, image.Point{}, draw.Over)
		}
		if t.Label != "" {
			drawLabel(result, r.Min.X+2, r.Min.Y+2, t.Label)
		}
	}

	return result, nil
}

// outline returns the one-pixel edges of r without overlap, so each border
// pixel is blended exactly once.
func outline(r image.Rectangle) []image.Rectangle {
	edges := []image.Rectangle{image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1)}
	if r.Dy() > 1 {
		edges = append(edges, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y))
	}
	if r.Dy() > 2 {
		edges = append(edges, image.Rect(r.Min.X, r.Min.Y+1, r.Min.X+1, r.Max.Y-1))
		if r.Dx() > 1 {
			edges = append(edges, image.Rect(r.Max.X-1, r.Min.Y+1, r.Max.X, r.Max.Y-1))
		}
	}
	return edges
}

// parseHexColor parses "#RRGGBB" or "#RRGGBBAA" into a non-premultiplied
// color.
func parseHexColor(hex string) (color.NRGBA, error) {
	if hex == "" {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}

	alpha := uint8(255)
	switch len(hex) {
	case 7:
	case 9:
		a, err := strconv.ParseUint(hex[7:], 16, 8)
		if err != nil {
			return color.NRGBA{}, err
		}
		alpha = uint8(a)
		hex = hex[:7]
	default:
		return color.NRGBA{}, fmt.Errorf("invalid hex color length")
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: alpha}, nil
}

// 3x5 pixel glyphs.
var glyphs = map[rune][]string{
	'0': {"111", "101", "101", "101", "111"},
	'1': {"010", "110", "010", "010", "111"},
	'2': {"111", "001", "111", "100", "111"},
	'3': {"111", "001", "111", "001", "111"},
	'4': {"101", "101", "111", "001", "001"},
	'5': {"111", "100", "111", "001", "111"},
	'6': {"111", "100", "111", "101", "111"},
	'7': {"111", "001", "001", "001", "001"},
	'8': {"111", "101", "111", "101", "111"},
	'9': {"111", "101", "111", "001", "111"},
	',': {"000", "000", "000", "010", "010"},
	'.': {"000", "000", "000", "000", "010"},
	'-': {"000", "000", "111", "000", "000"},
}

var (
	labelForeground = color.NRGBA{255, 255, 255, 255}
	labelBackground = color.NRGBA{0, 0, 0, 180}
)

// drawLabel draws text in white over a translucent dark box, clipped to
// img.
func drawLabel(img *image.RGBA, x, y int, text string) {
	const charWidth, labelHeight = 4, 7

	box := image.Rect(x-1, y-1, x+len(text)*charWidth-1, y+labelHeight)
	draw.Draw(img, box.Intersect(img.Bounds()), image.NewUniform(labelBackground), image.Point{}, draw.Over)

	bounds := img.Bounds()
	cx := x
	for _, ch := range text {
		for row, line := range glyphs[ch] {
			for col, pixel := range line {
				p := image.Pt(cx+col, y+row)
				if pixel == '1' && p.In(bounds) {
					img.Set(p.X, p.Y, labelForeground)
				}
			}
		}
		cx += charWidth
	}
}
