package ocrsvc

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os/exec"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/trezcool/alama/core/ocr"
)

// ensureTesseractAvailable checks that the tesseract binary is reachable.
func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func renderText(t *testing.T, lines ...string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 240, 40+30*len(lines)))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	for i, line := range lines {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.Black,
			Face: basicfont.Face7x13,
			Dot:  fixed.P(10, 30+30*i),
		}
		d.DrawString(line)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() failed: %v", err)
	}
	return buf.Bytes()
}

func TestTesseractEngine_Recognize(t *testing.T) {
	ensureTesseractAvailable(t)

	engine := NewTesseractEngine()
	res, err := engine.Recognize(context.Background(), ocr.Input{
		ID:        "transcript",
		Image:     renderText(t, "Chemistry 18"),
		Format:    ocr.ImageFormatPNG,
		Languages: []string{"eng"},
	})
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if res.InputID != "transcript" {
		t.Errorf("InputID = %q, want %q", res.InputID, "transcript")
	}
	if !strings.Contains(res.PlainText, "Chemistry") {
		t.Errorf("PlainText = %q, want it to contain %q", res.PlainText, "Chemistry")
	}
}

func TestTesseractEngine_Recognize_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := &TesseractEngine{} // never reaches the client
	if _, err := engine.Recognize(ctx, ocr.Input{}); err != context.Canceled {
		t.Errorf("Recognize() error = %v, want %v", err, context.Canceled)
	}
}
