package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVendorName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Shenzhen ABC Manufacturing Co., Ltd.", "shenzhen abc manufacturing"},
		{"Shenzhen ABC Manufacturing", "shenzhen abc manufacturing"},
		{"Société Générale Export SARL", "societe generale export"},
		{"  Yiwu   Toys  Inc. ", "yiwu toys"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeVendorName(tt.in), "input %q", tt.in)
	}
}

func TestNameSimilarity(t *testing.T) {
	t.Run("legal suffix variants are identical", func(t *testing.T) {
		sim := NameSimilarity("Shenzhen ABC Manufacturing Co., Ltd.", "Shenzhen ABC Manufacturing")
		assert.Equal(t, 1.0, sim)
	})

	t.Run("ocr typo stays above threshold", func(t *testing.T) {
		sim := NameSimilarity("Shenzen ABC Manufacturing", "Shenzhen ABC Manufacturing")
		assert.GreaterOrEqual(t, sim, DefaultSimilarityThreshold)
	})

	t.Run("different vendors fall below threshold", func(t *testing.T) {
		sim := NameSimilarity("Shenzhen ABC Manufacturing", "Guangzhou XYZ Trading Co., Ltd")
		assert.Less(t, sim, DefaultSimilarityThreshold)
	})

	t.Run("empty names never match", func(t *testing.T) {
		assert.Equal(t, 0.0, NameSimilarity("", "Shenzhen ABC"))
		assert.Equal(t, 0.0, NameSimilarity("", ""))
	})
}

func TestSameVendor(t *testing.T) {
	assert.True(t, SameVendor("Foshan Lighting Co., Ltd.", "Foshan Lighting", DefaultSimilarityThreshold))
	assert.False(t, SameVendor("Foshan Lighting", "Ningbo Kitchenware", DefaultSimilarityThreshold))
}
