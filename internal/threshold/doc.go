// Package threshold implements Otsu's method and its variants for grayscale
// images.
//
// Otsu's method picks the intensity level(s) that split a 256-bin histogram
// into classes with the largest between-class variance. This package
// supports:
//   - Global binary thresholding (one threshold, two classes)
//   - Multi-level thresholding (up to MaxClasses classes)
//   - Segmented thresholding (one threshold per tile of a grid)
//   - Sliding-window thresholding (per-pixel mean of overlapping windows)
//
// # Threshold Semantics
//
// A threshold t splits intensities so that levels <= t belong to the lower
// class. With thresholds t1 < t2 < ... the classes are
// [0,t1], (t1,t2], ..., (tk,255]. Binarization maps levels > t to 255 and
// everything else to 0.
//
// # Inputs
//
// Compute accepts any Source: a Histogram, a Pixels grid or a *image.Gray
// wrapped with GrayImage. All three produce identical results for the same
// pixel data.
//
// # Error Handling
//
// Invalid data (empty images, all-zero histograms, out-of-range pixels) is
// reported as *InvalidInputError. Invalid parameters (class counts outside
// 2..MaxClasses, non-positive tile or window sizes) are reported as
// *ConfigurationError. Use errors.As to tell them apart.
//
// # Thread Safety
//
// Every function is pure: inputs are never modified and no package state is
// shared, so calls may run concurrently.
package threshold
