package compression

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/weiwangfds/docuvault/config"
	"github.com/weiwangfds/docuvault/internal/database"
)

func testCompressionConfig() config.CompressionConfig {
	return config.CompressionConfig{
		Enabled:        true,
		MinSize:        100 * 1024,
		MaxSize:        5 * 1024 * 1024 * 1024,
		MinGain:        0.05,
		TextLevel:      8,
		OfficeLevel:    3,
		PDFLevel:       9,
		DefaultLevel:   6,
		TimeoutSeconds: 300,
	}
}

func TestSelectorSkipsSmallFiles(t *testing.T) {
	s := NewSelector(testCompressionConfig())

	d := s.Select(database.CategoryPDF, 50*1024)
	assert.True(t, d.Skip)
	assert.Equal(t, database.AlgorithmNone, d.Algorithm)
	assert.NotEmpty(t, d.Reason)
}

func TestSelectorSkipsOversizedFiles(t *testing.T) {
	s := NewSelector(testCompressionConfig())

	d := s.Select(database.CategoryOther, 6*1024*1024*1024)
	assert.True(t, d.Skip)
}

func TestSelectorSkipsCompressedContainers(t *testing.T) {
	s := NewSelector(testCompressionConfig())

	for _, cat := range []database.FileCategory{database.CategoryImage, database.CategoryArchive} {
		d := s.Select(cat, 10*1024*1024)
		assert.True(t, d.Skip, "category %s should be skipped", cat)
		assert.Equal(t, database.AlgorithmNone, d.Algorithm)
	}
}

func TestSelectorChoosesBrotliForText(t *testing.T) {
	s := NewSelector(testCompressionConfig())

	for _, cat := range []database.FileCategory{database.CategoryPlainText, database.CategoryTabularText} {
		d := s.Select(cat, 1024*1024)
		assert.False(t, d.Skip)
		assert.Equal(t, database.AlgorithmBrotli, d.Algorithm)
		assert.Equal(t, 8, d.Level)
	}
}

func TestSelectorChoosesZstdForOfficeFormats(t *testing.T) {
	s := NewSelector(testCompressionConfig())

	for _, cat := range []database.FileCategory{
		database.CategoryWordProcessing,
		database.CategorySpreadsheet,
		database.CategoryPresentation,
	} {
		d := s.Select(cat, 1024*1024)
		assert.False(t, d.Skip)
		assert.Equal(t, database.AlgorithmZstd, d.Algorithm)
		assert.Equal(t, 3, d.Level)
	}
}

func TestSelectorChoosesHighZstdForPDF(t *testing.T) {
	s := NewSelector(testCompressionConfig())

	d := s.Select(database.CategoryPDF, 1024*1024)
	assert.False(t, d.Skip)
	assert.Equal(t, database.AlgorithmZstd, d.Algorithm)
	assert.Equal(t, 9, d.Level)
}

func TestSelectorTreatsUnknownCategoryAsOther(t *testing.T) {
	s := NewSelector(testCompressionConfig())

	d := s.Select(database.FileCategory("mystery"), 1024*1024)
	assert.False(t, d.Skip)
	assert.Equal(t, database.AlgorithmZstd, d.Algorithm)
	assert.Equal(t, 6, d.Level)
}

func TestSelectorHonorsDisabledCompression(t *testing.T) {
	cfg := testCompressionConfig()
	cfg.Enabled = false
	s := NewSelector(cfg)

	d := s.Select(database.CategoryPlainText, 1024*1024)
	assert.True(t, d.Skip)
}
