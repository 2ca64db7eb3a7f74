// Package ocr extracts text from supplier listing screenshots.
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Engine extracts text content from one image file.
type Engine interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// Config selects and parameterizes the OCR engine.
type Config struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`             // tesseract (default) or mistral
	TesseractPath string `yaml:"tesseract_path" mapstructure:"tesseract_path"` // binary path override
	Languages     string `yaml:"languages" mapstructure:"languages"`           // tesseract -l value
	MistralKey    string `yaml:"mistral_key" mapstructure:"mistral_key"`
}

// NewEngine creates an Engine based on config.
func NewEngine(cfg Config) (Engine, error) {
	switch cfg.Provider {
	case "tesseract", "":
		return NewTesseract(cfg.TesseractPath, cfg.Languages), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_key")
		}
		return NewMistralOCR(cfg.MistralKey, ""), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}

// JoinCaptures concatenates per-image OCR text with numbered separators so a
// human can still see which screenshot a region came from. Blank blocks are
// kept to preserve numbering.
func JoinCaptures(blocks []string) string {
	if len(blocks) == 0 {
		return ""
	}
	if len(blocks) == 1 {
		return blocks[0]
	}
	var b strings.Builder
	for i, block := range blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "----- IMAGE %d -----\n", i+1)
		b.WriteString(block)
	}
	return b.String()
}

// ReadAll runs the engine over every image and returns the per-image texts
// in input order. The first engine failure aborts the batch.
func ReadAll(ctx context.Context, eng Engine, imagePaths []string) ([]string, error) {
	texts := make([]string, 0, len(imagePaths))
	for _, path := range imagePaths {
		text, err := eng.ExtractText(ctx, path)
		if err != nil {
			return nil, eris.Wrapf(err, "ocr: extract %s", path)
		}
		texts = append(texts, text)
	}
	return texts, nil
}
