package ocr

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/rotisserie/eris"
)

// Tesseract extracts text from images using the tesseract CLI tool.
type Tesseract struct {
	binPath   string
	languages string
}

// NewTesseract creates a Tesseract engine. Defaults: "tesseract" on PATH,
// French plus English traineddata.
func NewTesseract(binPath, languages string) *Tesseract {
	if binPath == "" {
		binPath = "tesseract"
	}
	if languages == "" {
		languages = "fra+eng"
	}
	return &Tesseract{binPath: binPath, languages: languages}
}

// ExtractText runs tesseract on the given image and returns stdout.
func (t *Tesseract) ExtractText(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, t.binPath, imagePath, "stdout", "-l", t.languages)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "ocr: tesseract failed for %s: %s", imagePath, stderr.String())
	}

	return stdout.String(), nil
}
