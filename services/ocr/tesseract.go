package ocrsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/ocr"
)

// TesseractEngine implements ocr.Engine using the gosseract client.
type TesseractEngine struct {
	clientFactory func() *gosseract.Client
}

var _ ocr.Engine = (*TesseractEngine)(nil)

func NewTesseractEngine() *TesseractEngine {
	return &TesseractEngine{clientFactory: gosseract.NewClient}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize performs OCR on a single image input.
// A new client is used per call: gosseract clients are not safe for concurrent use.
func (e *TesseractEngine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}

	c := e.clientFactory()
	defer func() { _ = c.Close() }()

	if err := c.SetImageFromBytes(in.Image); err != nil {
		return ocr.Result{}, errors.Wrap(err, "setting image")
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return ocr.Result{}, errors.Wrap(err, "setting languages")
		}
	}
	if in.DPI > 0 {
		if err := c.SetVariable("user_defined_dpi", fmt.Sprint(in.DPI)); err != nil {
			return ocr.Result{}, errors.Wrap(err, "setting dpi")
		}
	}
	// transcripts are tables: keep the inter-word spacing of a row on one line
	if err := c.SetVariable("preserve_interword_spaces", "1"); err != nil {
		return ocr.Result{}, errors.Wrap(err, "setting preserve_interword_spaces")
	}

	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, errors.Wrap(err, "recognizing text")
	}
	return ocr.Result{InputID: in.ID, PlainText: strings.TrimSpace(text)}, nil
}
