package ocr

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrEmptyUpload       = errors.New("uploaded file is empty")
	ErrUnsupportedFormat = errors.New("unsupported file format: upload an image or a PDF")
	ErrNoRendererForPDFs = errors.New("PDF transcripts are not supported")

	extensionFormats = map[string]string{
		".pdf":  formatPDF,
		".png":  string(ImageFormatPNG),
		".jpg":  string(ImageFormatJPEG),
		".jpeg": string(ImageFormatJPEG),
		".gif":  string(ImageFormatGIF),
		".bmp":  string(ImageFormatBMP),
		".webp": string(ImageFormatWEBP),
		".tif":  string(ImageFormatTIFF),
		".tiff": string(ImageFormatTIFF),
	}
	tiffMagics = [][]byte{[]byte("II*\x00"), []byte("MM\x00*")}
)

type (
	Options struct {
		Languages []string
		DPI       int
	}

	Service interface {
		// ExtractText recognizes the text of every page of the upload, pages joined by "\n".
		ExtractText(ctx context.Context, upload Upload) (string, error)
	}

	service struct {
		engine   Engine
		renderer Renderer
		opts     Options
	}
)

var _ Service = (*service)(nil) // interface compliance check

// NewService returns an OCR Service. renderer may be nil, PDFs are then rejected.
func NewService(engine Engine, renderer Renderer, opts Options) Service {
	return &service{
		engine:   engine,
		renderer: renderer,
		opts:     opts,
	}
}

func (svc *service) ExtractText(ctx context.Context, upload Upload) (string, error) {
	if len(upload.Data) == 0 {
		return "", ErrEmptyUpload
	}

	format := DetectFormat(upload.Filename, upload.Data)
	var pages [][]byte
	switch format {
	case "":
		return "", ErrUnsupportedFormat
	case formatPDF:
		if svc.renderer == nil {
			return "", ErrNoRendererForPDFs
		}
		var err error
		if pages, err = svc.renderer.RenderPages(ctx, upload.Data, svc.opts.DPI); err != nil {
			return "", errors.Wrap(err, "rendering PDF pages")
		}
		format = string(ImageFormatPNG)
	default:
		pages = [][]byte{upload.Data}
	}

	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		res, err := svc.engine.Recognize(ctx, Input{
			ID:        fmt.Sprintf("%s-page-%d", filepath.Base(upload.Filename), i),
			Image:     page,
			Format:    ImageFormat(format),
			PageIndex: i,
			DPI:       svc.opts.DPI,
			Languages: svc.opts.Languages,
		})
		if err != nil {
			return "", errors.Wrapf(err, "recognizing page %d with %s", i, svc.engine.Name())
		}
		texts = append(texts, res.PlainText)
	}
	return strings.Join(texts, "\n"), nil
}

// DetectFormat sniffs the content type of data, falling back on the filename extension.
// It returns "" for anything that is neither a PDF nor a supported image.
func DetectFormat(filename string, data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	if isSupported(ct) {
		return ct
	}
	for _, magic := range tiffMagics {
		if bytes.HasPrefix(data, magic) {
			return string(ImageFormatTIFF)
		}
	}
	// only trust the extension for content the sniffer could not identify
	if ct == "application/octet-stream" {
		if f, ok := extensionFormats[strings.ToLower(filepath.Ext(filename))]; ok {
			return f
		}
	}
	return ""
}

func isSupported(ct string) bool {
	for _, f := range extensionFormats {
		if ct == f {
			return true
		}
	}
	return false
}
