package ocrsvc

import (
	"context"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/ocr"
)

const defaultDPI = 300

// FitzRenderer implements ocr.Renderer using MuPDF (go-fitz).
type FitzRenderer struct {
	mu sync.Mutex // MuPDF contexts are not thread safe
}

var _ ocr.Renderer = (*FitzRenderer)(nil)

func NewFitzRenderer() *FitzRenderer {
	return &FitzRenderer{}
}

func (r *FitzRenderer) RenderPages(ctx context.Context, pdf []byte, dpi int) ([][]byte, error) {
	if dpi <= 0 {
		dpi = defaultDPI
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, errors.Wrap(err, "opening PDF")
	}
	defer func() { _ = doc.Close() }()

	n := doc.NumPage()
	pages := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		png, err := doc.ImagePNG(i, float64(dpi))
		if err != nil {
			return nil, errors.Wrapf(err, "rendering page %d", i)
		}
		pages = append(pages, png)
	}
	return pages, nil
}
