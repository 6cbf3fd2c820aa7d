package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCategoryForExtension(t *testing.T) {
	cases := map[string]FileCategory{
		".docx": CategoryWordProcessing,
		".xlsx": CategorySpreadsheet,
		".pptx": CategoryPresentation,
		".pdf":  CategoryPDF,
		".txt":  CategoryPlainText,
		".log":  CategoryPlainText,
		".csv":  CategoryTabularText,
		".png":  CategoryImage,
		".zip":  CategoryArchive,
		".gz":   CategoryArchive,
		".xyz":  CategoryOther,
		"":      CategoryOther,
	}
	for ext, want := range cases {
		assert.Equal(t, want, CategoryForExtension(ext), "extension %q", ext)
	}
}

func TestCompressionStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompressed.Terminal())
	assert.True(t, StatusSkipped.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.False(t, StatusFailed.Terminal())
}

func TestDocumentSavings(t *testing.T) {
	doc := &Document{OriginalSize: 1000, StoredSize: 400, Status: StatusCompressed}
	assert.EqualValues(t, 600, doc.Savings())

	doc.Status = StatusSkipped
	assert.Zero(t, doc.Savings())
}

func TestBackupExpired(t *testing.T) {
	b := &DocumentBackup{ExpiresAt: time.Now().Add(time.Hour)}
	assert.False(t, b.Expired(time.Now()))
	assert.True(t, b.Expired(time.Now().Add(2*time.Hour)))
}
