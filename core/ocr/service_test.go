package ocr

import (
	"context"
	"errors"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngData = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	pdfData = []byte("%PDF-1.4\n%fake")
)

type fakeEngine struct {
	texts  []string // by page index
	err    error
	inputs []Input
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) Recognize(_ context.Context, in Input) (Result, error) {
	e.inputs = append(e.inputs, in)
	if e.err != nil {
		return Result{}, e.err
	}
	return Result{InputID: in.ID, PlainText: e.texts[in.PageIndex]}, nil
}

type fakeRenderer struct {
	pages int
	err   error
}

func (r fakeRenderer) RenderPages(_ context.Context, _ []byte, _ int) ([][]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	pages := make([][]byte, 0, r.pages)
	for i := 0; i < r.pages; i++ {
		pages = append(pages, pngData)
	}
	return pages, nil
}

func TestService_ExtractText(t *testing.T) {
	engineErr := errors.New("engine down")
	renderErr := errors.New("corrupted pdf")

	tests := []struct {
		name      string
		engine    *fakeEngine
		renderer  Renderer
		upload    Upload
		want      string
		wantErr   error
		wantCalls int
	}{
		{name: "empty upload", engine: &fakeEngine{}, upload: Upload{Filename: "a.png"}, wantErr: ErrEmptyUpload},
		{
			name: "unsupported", engine: &fakeEngine{}, upload: Upload{Filename: "a.txt", Data: []byte("Math 12")},
			wantErr: ErrUnsupportedFormat,
		},
		{
			name: "image", engine: &fakeEngine{texts: []string{"Math 12\nPhysics 14"}},
			upload: Upload{Filename: "report.png", Data: pngData}, want: "Math 12\nPhysics 14", wantCalls: 1,
		},
		{
			name: "multi-page pdf", engine: &fakeEngine{texts: []string{"Math 12", "Physics 14"}}, renderer: fakeRenderer{pages: 2},
			upload: Upload{Filename: "report.pdf", Data: pdfData}, want: "Math 12\nPhysics 14", wantCalls: 2,
		},
		{
			name: "pdf without renderer", engine: &fakeEngine{},
			upload: Upload{Filename: "report.pdf", Data: pdfData}, wantErr: ErrNoRendererForPDFs,
		},
		{
			name: "render error", engine: &fakeEngine{}, renderer: fakeRenderer{err: renderErr},
			upload: Upload{Filename: "report.pdf", Data: pdfData}, wantErr: renderErr,
		},
		{
			name: "engine error", engine: &fakeEngine{err: engineErr},
			upload: Upload{Filename: "report.png", Data: pngData}, wantErr: engineErr, wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.engine, tt.renderer, Options{Languages: []string{"eng"}, DPI: 300})
			got, err := svc.ExtractText(context.Background(), tt.upload)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, pkgerrors.Cause(err))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.Len(t, tt.engine.inputs, tt.wantCalls)
			for i, in := range tt.engine.inputs {
				assert.Equal(t, i, in.PageIndex)
				assert.Equal(t, ImageFormatPNG, in.Format)
				assert.Equal(t, []string{"eng"}, in.Languages)
				assert.Equal(t, 300, in.DPI)
			}
		})
	}
}

func TestService_ExtractText_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &fakeEngine{texts: []string{"Math 12"}}
	svc := NewService(engine, nil, Options{})
	_, err := svc.ExtractText(ctx, Upload{Filename: "a.png", Data: pngData})
	assert.Equal(t, context.Canceled, err)
	assert.Empty(t, engine.inputs)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		want     string
	}{
		{name: "png", filename: "x.bin", data: pngData, want: "image/png"},
		{name: "jpeg", data: []byte("\xff\xd8\xff\xe0\x00\x10JFIF"), want: "image/jpeg"},
		{name: "pdf", data: pdfData, want: "application/pdf"},
		{name: "tiff", data: []byte("II*\x00\x08\x00\x00\x00"), want: "image/tiff"},
		{name: "unknown binary with extension", filename: "scan.JPG", data: []byte{0, 1, 2, 3}, want: "image/jpeg"},
		{name: "unknown binary", filename: "scan", data: []byte{0, 1, 2, 3}},
		{name: "text with image extension", filename: "scan.png", data: []byte("hello")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.filename, tt.data); got != tt.want {
				t.Errorf("DetectFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}
