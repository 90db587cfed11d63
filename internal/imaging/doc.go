// Package imaging prepares images for thresholding and encodes results.
//
// It loads and caches image files, crops regions, reduces color images to
// 8-bit grayscale, optionally smooths them, and encodes thresholded output
// as base64 PNG for MCP responses. Pixel decisions (histograms, Otsu search,
// binarization) live in package threshold; this package only moves pixels
// in and out of *image.Gray.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// Images returned by Crop and ToGray always have their origin at (0,0), so
// coordinates in later steps are relative to the cropped region.
//
// # Grayscale Modes
//
//   - luma: Rec. 601 weights via disintegration/imaging
//   - lightness: CIE L* via go-colorful, better for colored ink on paper
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual image operations
// are stateless and can be called concurrently on different images.
//
// # Error Handling
//
// Functions return errors for invalid inputs such as:
//   - Regions outside image bounds or with x1 >= x2 or y1 >= y2
//   - Unknown grayscale modes or a negative blur radius
//   - File I/O errors during image loading
//   - Encoding errors during image output
package imaging
