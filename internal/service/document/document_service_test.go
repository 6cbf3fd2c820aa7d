package document

import (
	"bytes"
	"math/rand"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/weiwangfds/docuvault/config"
	"github.com/weiwangfds/docuvault/internal/database"
	apperrors "github.com/weiwangfds/docuvault/internal/errors"
	backupservice "github.com/weiwangfds/docuvault/internal/service/backup"
	quotaservice "github.com/weiwangfds/docuvault/internal/service/quota"
	statsservice "github.com/weiwangfds/docuvault/internal/service/stats"
)

type testVault struct {
	db      *gorm.DB
	svc     DocumentService
	backups backupservice.BackupService
	quotas  quotaservice.QuotaService
}

func defaultTestConfig() config.CompressionConfig {
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
		Workers:        1,
		QueueSize:      64,
	}
}

func newTestVault(t *testing.T, cfg config.CompressionConfig, quotaLimit int64) *testVault {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&database.Document{},
		&database.DocumentCategory{},
		&database.DocumentTag{},
		&database.DocumentBackup{},
		&database.CompressionStats{},
		&database.UserStorageQuota{},
		&database.DocumentShareLog{},
	))

	root := t.TempDir()
	storage := config.StorageConfig{
		DocumentsPath: root + "/documents",
		BackupsPath:   root + "/backups",
		CachePath:     root + "/cache",
	}

	backups, err := backupservice.NewBackupService(db, config.BackupConfig{TTLHours: 48}, storage.BackupsPath)
	require.NoError(t, err)
	quotas := quotaservice.NewQuotaService(db, config.QuotaConfig{DefaultLimit: quotaLimit})
	stats := statsservice.NewStatsService(db)

	svc, err := NewDocumentService(db, cfg, storage, config.CacheConfig{TTLMinutes: 60},
		backups, quotas, stats)
	require.NoError(t, err)

	return &testVault{db: db, svc: svc, backups: backups, quotas: quotas}
}

func submit(t *testing.T, v *testVault, name string, data []byte) *database.Document {
	t.Helper()
	doc, err := v.svc.SubmitDocument(SubmitRequest{
		OwnerID:  "owner-1",
		FileName: name,
		Data:     bytes.NewReader(data),
	})
	require.NoError(t, err)
	return doc
}

func repetitiveText(size int) []byte {
	line := "2026-08-31 12:00:00 INFO request served path=/api/v1/documents status=200\n"
	return []byte(strings.Repeat(line, size/len(line)+1))[:size]
}

func incompressibleData(size int) []byte {
	rng := rand.New(rand.NewSource(42))
	data := make([]byte, size)
	rng.Read(data)
	return data
}

func TestSubmitStoresFileAndBackup(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)
	payload := repetitiveText(200 * 1024)

	doc := submit(t, v, "server.log", payload)
	assert.Equal(t, database.CategoryPlainText, doc.FileCategory)
	assert.Equal(t, database.StatusPending, doc.Status)
	assert.Equal(t, database.AlgorithmNone, doc.Algorithm)
	assert.EqualValues(t, len(payload), doc.OriginalSize)
	assert.EqualValues(t, len(payload), doc.StoredSize)
	assert.Equal(t, doc.OriginalChecksum, doc.StoredChecksum)
	assert.Equal(t, "server", doc.Title)

	stored, err := os.ReadFile(doc.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, payload, stored)

	// The safety backup exists before submit returns.
	backup, err := v.backups.Get(doc.DocID)
	require.NoError(t, err)
	assert.FileExists(t, backup.BackupPath)

	q, err := v.quotas.Get("owner-1")
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), q.OriginalUsed)
	assert.EqualValues(t, 1, q.DocumentCount)
}

func TestSubmitRejectsEmptyUpload(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)

	_, err := v.svc.SubmitDocument(SubmitRequest{
		OwnerID:  "owner-1",
		FileName: "empty.txt",
		Data:     bytes.NewReader(nil),
	})
	require.Error(t, err)
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrEmptyFile, appErr.Code)
}

func TestSubmitRejectsOversizedUpload(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.MaxSize = 64 * 1024
	v := newTestVault(t, cfg, 1<<40)

	_, err := v.svc.SubmitDocument(SubmitRequest{
		OwnerID:  "owner-1",
		FileName: "big.bin",
		Data:     bytes.NewReader(incompressibleData(65 * 1024)),
	})
	require.Error(t, err)
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrFileTooLarge, appErr.Code)
}

func TestQuotaGateRejectsBeforeAnyDurableWrite(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 4*1024*1024)

	// 2 MiB fits under the 4 MiB limit.
	submit(t, v, "first.log", repetitiveText(2*1024*1024))

	// 3 MiB more would exceed it; rejection leaves no trace.
	_, err := v.svc.SubmitDocument(SubmitRequest{
		OwnerID:  "owner-1",
		FileName: "second.log",
		Data:     bytes.NewReader(repetitiveText(3 * 1024 * 1024)),
	})
	require.Error(t, err)
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrQuotaExceeded, appErr.Code)

	var docCount, backupCount int64
	require.NoError(t, v.db.Model(&database.Document{}).Count(&docCount).Error)
	require.NoError(t, v.db.Model(&database.DocumentBackup{}).Count(&backupCount).Error)
	assert.EqualValues(t, 1, docCount)
	assert.EqualValues(t, 1, backupCount)
}

func TestCompressTextWithBrotli(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)
	payload := repetitiveText(1024 * 1024)

	doc := submit(t, v, "notes.txt", payload)
	require.NoError(t, v.svc.AttemptCompression(doc.DocID))

	got, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusCompressed, got.Status)
	assert.Equal(t, database.AlgorithmBrotli, got.Algorithm)
	assert.Less(t, got.StoredSize, int64(150*1024), "repetitive text should compress hard")
	assert.Less(t, got.Ratio, 1.0)
	assert.NotNil(t, got.CompressedAt)
	assert.NotEqual(t, got.OriginalChecksum, got.StoredChecksum)

	// The file on disk is the compressed form.
	onDisk, err := os.Stat(got.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, got.StoredSize, onDisk.Size())

	// Stored footprint shrank; admitted (original) footprint did not.
	q, err := v.quotas.Get("owner-1")
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), q.OriginalUsed)
	assert.Equal(t, got.StoredSize, q.StoredUsed)
	assert.EqualValues(t, int64(len(payload))-got.StoredSize, q.SavedBytes)
}

func TestDownloadRoundTrip(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)
	payload := repetitiveText(512 * 1024)

	doc := submit(t, v, "report.txt", payload)
	require.NoError(t, v.svc.AttemptCompression(doc.DocID))

	// First read decompresses, second is served from cache. Both must match
	// the original bytes exactly.
	for i := 0; i < 2; i++ {
		got, err := v.svc.GetDocumentBytes(doc.DocID)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(payload, got))
	}

	fresh, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fresh.DownloadCount)
}

func TestSkipBelowMinimumSize(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)

	doc := submit(t, v, "small.pdf", repetitiveText(50*1024))
	require.NoError(t, v.svc.AttemptCompression(doc.DocID))

	got, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusSkipped, got.Status)
	assert.Equal(t, database.AlgorithmNone, got.Algorithm)
	assert.Equal(t, got.OriginalSize, got.StoredSize)
}

func TestSkipArchives(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)

	doc := submit(t, v, "bundle.zip", incompressibleData(10*1024*1024))
	require.NoError(t, v.svc.AttemptCompression(doc.DocID))

	got, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, database.CategoryArchive, got.FileCategory)
	assert.Equal(t, database.StatusSkipped, got.Status)

	// The stored bytes were never rewritten.
	data, err := v.svc.GetDocumentBytes(doc.DocID)
	require.NoError(t, err)
	assert.EqualValues(t, 10*1024*1024, len(data))
}

func TestSkipOnInsufficientGain(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)

	// Random bytes with a .txt extension: the selector picks brotli, but the
	// measured ratio lands near 1.0, below the configured minimum gain.
	payload := incompressibleData(256 * 1024)
	doc := submit(t, v, "noise.txt", payload)
	require.NoError(t, v.svc.AttemptCompression(doc.DocID))

	got, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusSkipped, got.Status)
	assert.Equal(t, database.AlgorithmNone, got.Algorithm)
	assert.Equal(t, got.OriginalSize, got.StoredSize)

	stored, err := os.ReadFile(got.StoragePath)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, stored), "original bytes must survive a discarded attempt")
}

func TestAttemptCompressionIsIdempotentOnTerminalDocuments(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)

	doc := submit(t, v, "notes.txt", repetitiveText(512*1024))
	require.NoError(t, v.svc.AttemptCompression(doc.DocID))

	first, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)

	require.NoError(t, v.svc.AttemptCompression(doc.DocID))
	second, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, first.StoredChecksum, second.StoredChecksum)
	assert.Equal(t, first.StoredSize, second.StoredSize)
}

func TestReadRefusedWhileCompressionInFlight(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)

	doc := submit(t, v, "notes.txt", repetitiveText(512*1024))
	require.NoError(t, v.db.Model(&database.Document{}).
		Where("doc_id = ?", doc.DocID).
		Update("status", database.StatusInProgress).Error)

	_, err := v.svc.GetDocumentBytes(doc.DocID)
	require.Error(t, err)
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCompressionInFlight, appErr.Code)
}

func TestReadRefusedWhileClaimHeld(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)

	doc := submit(t, v, "claimed.txt", repetitiveText(512*1024))

	// A worker owning the claim means the stored bytes may be mid-replacement
	// even while the record still reads pending with algorithm none.
	arena := v.svc.(*documentService).claims
	require.True(t, arena.acquire(doc.DocID, time.Minute))

	_, err := v.svc.GetDocumentBytes(doc.DocID)
	require.Error(t, err)
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCompressionInFlight, appErr.Code)

	arena.release(doc.DocID)
	data, err := v.svc.GetDocumentBytes(doc.DocID)
	require.NoError(t, err)
	assert.EqualValues(t, doc.OriginalSize, len(data))
}

func TestCorruptedStoredFileRecoversFromBackup(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)
	payload := repetitiveText(512 * 1024)

	doc := submit(t, v, "ledger.txt", payload)
	require.NoError(t, v.svc.AttemptCompression(doc.DocID))

	got, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)
	require.Equal(t, database.StatusCompressed, got.Status)

	// Corrupt the compressed bytes on disk.
	require.NoError(t, os.WriteFile(got.StoragePath, []byte("corrupted beyond repair"), 0644))

	// The read detects the damage and serves the backup instead.
	data, err := v.svc.GetDocumentBytes(doc.DocID)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, data))

	recovered, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusFailed, recovered.Status)
	assert.Equal(t, database.AlgorithmNone, recovered.Algorithm)
	assert.NotEmpty(t, recovered.LastError)

	// The storage path holds the pristine original again.
	stored, err := os.ReadFile(recovered.StoragePath)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, stored))

	// Accounting follows the recovery: the stored footprint is back to the
	// original size, so no savings remain on the books.
	assert.Equal(t, recovered.OriginalSize, recovered.StoredSize)
	q, err := v.quotas.Get("owner-1")
	require.NoError(t, err)
	assert.Equal(t, recovered.StoredSize, q.StoredUsed)
	assert.Zero(t, q.SavedBytes)
}

func TestFailedDocumentCanRetryAfterRestore(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)
	payload := repetitiveText(512 * 1024)

	doc := submit(t, v, "journal.txt", payload)

	// Simulate a previous attempt that left garbage in place.
	require.NoError(t, os.WriteFile(doc.StoragePath, []byte("half-written wreckage"), 0644))
	require.NoError(t, v.db.Model(&database.Document{}).
		Where("doc_id = ?", doc.DocID).
		Update("status", database.StatusFailed).Error)

	require.NoError(t, v.svc.AttemptCompression(doc.DocID))

	got, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusCompressed, got.Status)

	data, err := v.svc.GetDocumentBytes(doc.DocID)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(payload, data))
}

func TestDeleteCascades(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)
	payload := repetitiveText(512 * 1024)

	doc := submit(t, v, "gone.txt", payload)
	require.NoError(t, v.svc.AttemptCompression(doc.DocID))
	got, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)

	require.NoError(t, v.svc.DeleteDocument(doc.DocID))

	_, err = v.svc.GetDocument(doc.DocID)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	assert.NoFileExists(t, got.StoragePath)
	_, err = v.backups.Get(doc.DocID)
	require.Error(t, err)

	q, err := v.quotas.Get("owner-1")
	require.NoError(t, err)
	assert.Zero(t, q.OriginalUsed)
	assert.Zero(t, q.StoredUsed)
	assert.Zero(t, q.DocumentCount)
}

func TestCompressionAfterDeleteIsNotFound(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)

	doc := submit(t, v, "fleeting.txt", repetitiveText(512*1024))
	require.NoError(t, v.svc.DeleteDocument(doc.DocID))

	// A queued attempt arriving after the delete sees the tombstone.
	err := v.svc.AttemptCompression(doc.DocID)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSetFavorite(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)

	doc := submit(t, v, "starred.txt", repetitiveText(200*1024))
	require.NoError(t, v.svc.SetFavorite(doc.DocID, true))

	got, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)
	assert.True(t, got.IsFavorite)

	err = v.svc.SetFavorite("no-such-doc", true)
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListDocumentsPagination(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)

	for i := 0; i < 5; i++ {
		submit(t, v, "doc.txt", repetitiveText(110*1024))
	}

	docs, total, err := v.svc.ListDocuments("owner-1", 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, docs, 2)

	docs, _, err = v.svc.ListDocuments("owner-1", 3, 2)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, total, err = v.svc.ListDocuments("someone-else", 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, docs)
}

func TestCompressionTimeoutFailsAttempt(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.TimeoutSeconds = 0 // zero budget: the deadline fires before the engine finishes
	v := newTestVault(t, cfg, 1<<40)

	doc := submit(t, v, "slow.txt", repetitiveText(1024*1024))
	err := v.svc.AttemptCompression(doc.DocID)
	require.Error(t, err)
	appErr, ok := apperrors.GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCompressionTimeout, appErr.Code)

	got, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusFailed, got.Status)

	// The stored bytes are untouched by the failed attempt.
	data, err := os.ReadFile(got.StoragePath)
	require.NoError(t, err)
	assert.EqualValues(t, got.OriginalSize, len(data))
}

func TestSweepExpiredCache(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)

	doc := submit(t, v, "cached.txt", repetitiveText(512*1024))
	require.NoError(t, v.svc.AttemptCompression(doc.DocID))
	_, err := v.svc.GetDocumentBytes(doc.DocID)
	require.NoError(t, err)

	// Nothing is stale yet.
	removed, err := v.svc.SweepExpiredCache(time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)

	// Far in the future, the cached artifact expires.
	removed, err = v.svc.SweepExpiredCache(time.Now().Add(24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestSubmitAfterWorkersStoppedDoesNotPanic(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)
	v.svc.StartWorkers()
	v.svc.StopWorkers()

	// An upload landing after the pool drained is admitted normally; only
	// the background job is dropped, and a direct attempt still works.
	doc := submit(t, v, "late.txt", repetitiveText(512*1024))

	got, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusPending, got.Status)

	require.NoError(t, v.svc.AttemptCompression(doc.DocID))
	status, err := v.svc.GetCompressionStatus(doc.DocID)
	require.NoError(t, err)
	assert.True(t, status.Terminal())
}

func TestWorkerPoolCompressesInBackground(t *testing.T) {
	v := newTestVault(t, defaultTestConfig(), 1<<40)
	v.svc.StartWorkers()
	defer v.svc.StopWorkers()

	doc := submit(t, v, "background.txt", repetitiveText(512*1024))

	require.Eventually(t, func() bool {
		status, err := v.svc.GetCompressionStatus(doc.DocID)
		return err == nil && status.Terminal()
	}, 10*time.Second, 50*time.Millisecond)

	got, err := v.svc.GetDocument(doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, database.StatusCompressed, got.Status)
}
