package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineTesseract(t *testing.T) {
	eng, err := NewEngine(Config{Provider: "tesseract", TesseractPath: "/usr/bin/tesseract"})
	require.NoError(t, err)
	assert.IsType(t, &Tesseract{}, eng)
}

func TestNewEngineDefault(t *testing.T) {
	eng, err := NewEngine(Config{})
	require.NoError(t, err)
	tess, ok := eng.(*Tesseract)
	require.True(t, ok)
	assert.Equal(t, "tesseract", tess.binPath)
	assert.Equal(t, "fra+eng", tess.languages)
}

func TestNewEngineMistralMissingKey(t *testing.T) {
	_, err := NewEngine(Config{Provider: "mistral"})
	assert.Error(t, err)
}

func TestNewEngineUnknownProvider(t *testing.T) {
	_, err := NewEngine(Config{Provider: "easyocr"})
	assert.Error(t, err)
}

func TestJoinCaptures(t *testing.T) {
	assert.Equal(t, "", JoinCaptures(nil))
	assert.Equal(t, "solo", JoinCaptures([]string{"solo"}))

	joined := JoinCaptures([]string{"first", "second", "third"})
	assert.Contains(t, joined, "----- IMAGE 1 -----\nfirst")
	assert.Contains(t, joined, "----- IMAGE 2 -----\nsecond")
	assert.Contains(t, joined, "----- IMAGE 3 -----\nthird")
}

func TestMistralExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "image_url", req.Document.Type)
		assert.True(t, strings.HasPrefix(req.Document.ImageURL, "data:image/png;base64,"))

		resp := mistralOCRResponse{Pages: []mistralOCRPage{
			{Index: 0, Markdown: "Fournisseur vérifié"},
			{Index: 1, Markdown: "4.8/5"},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	imgPath := filepath.Join(t.TempDir(), "capture.png")
	require.NoError(t, os.WriteFile(imgPath, []byte("fake png bytes"), 0o644))

	m := NewMistralOCR("test-key", "")
	m.endpoint = srv.URL

	text, err := m.ExtractText(context.Background(), imgPath)
	require.NoError(t, err)
	assert.Equal(t, "Fournisseur vérifié\n\n4.8/5", text)
}

func TestMistralExtractTextAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	imgPath := filepath.Join(t.TempDir(), "capture.png")
	require.NoError(t, os.WriteFile(imgPath, []byte("fake"), 0o644))

	m := NewMistralOCR("test-key", "")
	m.endpoint = srv.URL

	_, err := m.ExtractText(context.Background(), imgPath)
	assert.Error(t, err)
}

type stubEngine struct {
	texts map[string]string
}

func (s *stubEngine) ExtractText(_ context.Context, path string) (string, error) {
	return s.texts[path], nil
}

func TestReadAll(t *testing.T) {
	eng := &stubEngine{texts: map[string]string{"a.png": "alpha", "b.png": "beta"}}

	texts, err := ReadAll(context.Background(), eng, []string{"a.png", "b.png"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, texts)
}
