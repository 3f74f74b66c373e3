// Package ocr turns uploaded transcripts (images or PDFs) into plain text.
// Engines and renderers are pluggable; see services/ocr for the Tesseract & MuPDF ones.
package ocr

import "context"

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
	ImageFormatGIF  ImageFormat = "image/gif"
	ImageFormatBMP  ImageFormat = "image/bmp"
	ImageFormatWEBP ImageFormat = "image/webp"
	ImageFormatTIFF ImageFormat = "image/tiff"

	formatPDF = "application/pdf"
)

// Input encapsulates a single image submitted for OCR.
type Input struct {
	// ID is echoed back in the corresponding Result.
	ID        string
	Image     []byte
	Format    ImageFormat
	PageIndex int
	// DPI is the effective dots-per-inch of the image; zero means unknown.
	DPI int
	// Languages are tesseract trained data names, eg. "eng", "fra".
	Languages []string
}

// Result captures OCR output for a single input image.
type Result struct {
	InputID   string
	PlainText string
}

// Engine is the OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// Renderer rasterizes every page of a PDF document to PNG.
type Renderer interface {
	RenderPages(ctx context.Context, pdf []byte, dpi int) ([][]byte, error)
}

// Upload is a transcript file sent by a user.
type Upload struct {
	Filename string
	Data     []byte
}
