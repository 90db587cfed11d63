package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder (common for scanned pages)
)

// DefaultCacheSize is the number of decoded images kept when no size is
// configured.
const DefaultCacheSize = 8

// ImageCache keeps recently decoded images keyed by path.
//
// The thresholding tools typically run several methods against the same
// scan (global, segmented, sliding window) to compare them; the cache
// avoids decoding the file again for every call.
//
// # Memory Management
//
// Page scans are large, so the cache holds at most a fixed number of
// images and drops the least recently used one when a new image arrives.
// An entry is also replaced when the file's size or modification time
// changes, so a rewritten scan is decoded again.
//
// ImageCache is safe for concurrent use by multiple goroutines.
type ImageCache struct {
	entries *lru.Cache[string, cachedImage]
	size    int
}

type cachedImage struct {
	img     image.Image
	modTime time.Time
	bytes   int64
}

// NewImageCache returns an empty cache holding up to size images. A size
// of zero or less selects DefaultCacheSize.
func NewImageCache(size int) *ImageCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, cachedImage](size)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &ImageCache{entries: entries, size: size}
}

// Load returns the decoded image at path, from the cache when the file is
// unchanged since it was decoded.
//
// Supported formats are PNG, JPEG, GIF, TIFF and BMP. The image is cached
// under the exact path string provided, so relative and absolute paths to
// the same file are separate entries.
func (c *ImageCache) Load(path string) (image.Image, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	if e, ok := c.entries.Get(path); ok && e.modTime.Equal(stat.ModTime()) && e.bytes == stat.Size() {
		return e.img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		c.entries.Remove(path)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	c.entries.Add(path, cachedImage{img: img, modTime: stat.ModTime(), bytes: stat.Size()})
	return img, nil
}

// LoadGray loads an image through the cache and converts it to 8-bit
// grayscale with ToGray.
func (c *ImageCache) LoadGray(path string, opts GrayOptions) (*image.Gray, error) {
	img, err := c.Load(path)
	if err != nil {
		return nil, err
	}
	return ToGray(img, opts)
}

// Evict drops path from the cache and reports whether it was cached.
func (c *ImageCache) Evict(path string) bool {
	return c.entries.Remove(path)
}

// Clear drops every cached image and returns how many there were.
func (c *ImageCache) Clear() int {
	n := c.entries.Len()
	c.entries.Purge()
	return n
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	return c.entries.Len()
}

// Size returns the maximum number of cached images.
func (c *ImageCache) Size() int {
	return c.size
}

// Paths returns the cached paths from least to most recently used.
func (c *ImageCache) Paths() []string {
	return c.entries.Keys()
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is "png", "jpeg", "gif", "tiff", "bmp" or "unknown".
	// Detection is based on file extension, not file contents.
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	// 16-bit sources are reduced to 8 bits before thresholding.
	ColorDepth string `json:"color_depth"`

	// Grayscale is true when the decoded image is already single channel,
	// so no color conversion happens before thresholding.
	Grayscale bool `json:"grayscale"`

	// HasAlpha indicates whether the image has an alpha channel.
	HasAlpha bool `json:"has_alpha"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image into the cache and returns its metadata.
//
// # Color Depth Detection
//
//   - *image.RGBA64, *image.NRGBA64, *image.Gray16 -> "16-bit"
//   - All other types -> "8-bit"
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	info := &ImageInfo{
		Width:         img.Bounds().Dx(),
		Height:        img.Bounds().Dy(),
		Format:        formatFromExt(path),
		ColorDepth:    "8-bit",
		FileSizeBytes: stat.Size(),
	}

	switch img.(type) {
	case *image.Gray:
		info.Grayscale = true
	case *image.Gray16:
		info.Grayscale = true
		info.ColorDepth = "16-bit"
	case *image.RGBA, *image.NRGBA:
		info.HasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		info.HasAlpha = true
		info.ColorDepth = "16-bit"
	}

	return info, nil
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".gif":
		return "gif"
	case ".tif", ".tiff":
		return "tiff"
	case ".bmp":
		return "bmp"
	default:
		return "unknown"
	}
}
