// Package ocr runs Tesseract OCR (via gosseract/v2) on thresholded images.
//
// Binarization is the classic preprocessing step for OCR: the server
// thresholds a page with Otsu's method (globally or per block) and passes
// the black-and-white result here, reporting the recognized text together
// with per-word confidence so callers can compare thresholding methods.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// A non-default data directory can be supplied through Options.TessdataPrefix.
//
// # Supported Languages
//
// The default language is English ("eng"). Other Tesseract codes ("deu",
// "fra", "chi_sim") and combinations ("deu+eng") are passed through as is.
//
// # Error Handling
//
// Recognize returns errors for nil images, unknown languages and Tesseract
// initialization failures. If bounding box extraction fails, the text is
// still returned with an empty Regions slice.
package ocr
