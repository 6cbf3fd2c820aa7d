// Package document implements the compression orchestrator: the state machine
// that drives a document from upload through background compression to
// on-demand decompression.
//
// Lifecycle: upload stores the raw bytes and a safety backup, then queues
// compression. A worker claims the document, asks the selector for a
// strategy, runs the engine under a wall-clock budget, verifies the result by
// decompressing and comparing checksums, and commits by atomic replacement,
// or rolls the attempt back without ever touching the stored bytes. Reads
// decompress transparently into a TTL'd cache.
package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/weiwangfds/docuvault/config"
	"github.com/weiwangfds/docuvault/internal/checksum"
	"github.com/weiwangfds/docuvault/internal/compression"
	"github.com/weiwangfds/docuvault/internal/database"
	apperrors "github.com/weiwangfds/docuvault/internal/errors"
	"github.com/weiwangfds/docuvault/internal/logger"
	backupservice "github.com/weiwangfds/docuvault/internal/service/backup"
	quotaservice "github.com/weiwangfds/docuvault/internal/service/quota"
	statsservice "github.com/weiwangfds/docuvault/internal/service/stats"
)

// SubmitRequest carries one upload into the vault.
type SubmitRequest struct {
	OwnerID  string
	FileName string
	Title    string
	// DeclaredCategory overrides extension-based detection when set.
	DeclaredCategory database.FileCategory
	CategoryID       *string
	Data             io.Reader
}

// DocumentService is the boundary the storage core exposes to the API layer.
type DocumentService interface {
	// SubmitDocument admits an upload: validates it, stores the raw bytes,
	// creates the safety backup, records the document and queues background
	// compression. The backup write completes before this returns; the
	// compression itself is fire and forget.
	SubmitDocument(req SubmitRequest) (*database.Document, error)

	// GetDocument returns a document's metadata.
	GetDocument(docID string) (*database.Document, error)

	// GetDocumentBytes returns the document's original bytes, transparently
	// decompressing when needed. A checksum mismatch on this path is
	// surfaced to the caller, never silently served.
	GetDocumentBytes(docID string) ([]byte, error)

	// GetCompressionStatus returns the document's compression state.
	GetCompressionStatus(docID string) (database.CompressionStatus, error)

	// AttemptCompression runs one compression attempt for the document.
	// Idempotent: terminal documents no-op, concurrent attempts for the
	// same document are rejected. External schedulers may call or retry it
	// freely.
	AttemptCompression(docID string) error

	// ListDocuments pages through an owner's documents.
	ListDocuments(ownerID string, page, pageSize int) ([]database.Document, int64, error)

	// SetFavorite toggles the favorite flag.
	SetFavorite(docID string, favorite bool) error

	// DeleteDocument removes a document and cascades to its backup, share
	// logs, cache entry and quota accounting.
	DeleteDocument(docID string) error

	// SweepExpiredBackups removes expired backups of settled documents.
	SweepExpiredBackups(now time.Time) (int, error)

	// SweepExpiredCache removes stale decompression artifacts.
	SweepExpiredCache(now time.Time) (int, error)

	// StartWorkers launches the background compression pool; StopWorkers
	// drains it.
	StartWorkers()
	StopWorkers()
}

type documentService struct {
	db       *gorm.DB
	cfg      config.CompressionConfig
	selector *compression.Selector
	engine   *compression.Engine
	backups  backupservice.BackupService
	quotas   quotaservice.QuotaService
	stats    statsservice.StatsService

	docsDir string
	cache   *decompressionCache
	claims  *claimArena
	pool    *workerPool
}

// NewDocumentService creates the orchestrator.
func NewDocumentService(
	db *gorm.DB,
	cfg config.CompressionConfig,
	storage config.StorageConfig,
	cacheCfg config.CacheConfig,
	backups backupservice.BackupService,
	quotas quotaservice.QuotaService,
	stats statsservice.StatsService,
) (DocumentService, error) {
	if err := os.MkdirAll(storage.DocumentsPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create documents directory %s: %w", storage.DocumentsPath, err)
	}
	cache, err := newDecompressionCache(storage.CachePath, cacheCfg.TTL())
	if err != nil {
		return nil, err
	}

	s := &documentService{
		db:       db,
		cfg:      cfg,
		selector: compression.NewSelector(cfg),
		engine:   compression.NewEngine(),
		backups:  backups,
		quotas:   quotas,
		stats:    stats,
		docsDir:  storage.DocumentsPath,
		cache:    cache,
		claims:   newClaimArena(),
	}
	s.pool = newWorkerPool(s, cfg.Workers, cfg.QueueSize)
	return s, nil
}

func (s *documentService) SubmitDocument(req SubmitRequest) (*database.Document, error) {
	if req.OwnerID == "" || req.FileName == "" {
		return nil, apperrors.NewWithDetails(apperrors.ErrInvalidParams, "owner and filename are required")
	}

	ext := strings.ToLower(filepath.Ext(req.FileName))
	category := req.DeclaredCategory
	if category == "" {
		category = database.CategoryForExtension(ext)
	}
	if !category.Valid() {
		return nil, apperrors.NewWithDetails(apperrors.ErrInvalidFileType,
			fmt.Sprintf("unknown file category: %s", category))
	}

	// Spool the upload to a temp file while hashing, so size and checksum
	// are known before anything durable happens.
	tempFile, err := os.CreateTemp("", "upload_*")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageWrite, err)
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tempFile, hasher), io.LimitReader(req.Data, s.cfg.MaxSize+1))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageWrite, err)
	}
	if size == 0 {
		return nil, apperrors.New(apperrors.ErrEmptyFile)
	}
	if size > s.cfg.MaxSize {
		return nil, apperrors.NewWithDetails(apperrors.ErrFileTooLarge,
			fmt.Sprintf("size exceeds configured maximum of %d bytes", s.cfg.MaxSize))
	}

	// Hard admission gate. Nothing has been written to durable storage yet,
	// so a rejection here leaves no trace.
	exceeded, err := s.quotas.WouldExceedQuota(req.OwnerID, size)
	if err != nil {
		return nil, err
	}
	if exceeded {
		return nil, apperrors.NewWithDetails(apperrors.ErrQuotaExceeded,
			fmt.Sprintf("upload of %d bytes would exceed storage quota", size))
	}

	docID := uuid.New().String()
	storagePath := filepath.Join(s.docsDir, docID+ext)
	digest := hex.EncodeToString(hasher.Sum(nil))

	if err := moveFile(tempFile.Name(), storagePath); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageWrite, err)
	}

	// Fail closed: no document exists without its safety copy. Backup
	// creation failure aborts the whole upload.
	if _, err := s.backups.Create(docID, storagePath); err != nil {
		os.Remove(storagePath)
		return nil, err
	}

	title := req.Title
	if title == "" {
		title = strings.TrimSuffix(req.FileName, ext)
	}

	doc := &database.Document{
		DocID:            docID,
		OwnerID:          req.OwnerID,
		Title:            title,
		OriginalName:     req.FileName,
		FileCategory:     category,
		StoragePath:      storagePath,
		OriginalSize:     size,
		StoredSize:       size,
		Algorithm:        database.AlgorithmNone,
		Ratio:            1.0,
		Status:           database.StatusPending,
		OriginalChecksum: digest,
		StoredChecksum:   digest,
		CategoryID:       req.CategoryID,
	}
	if err := s.db.Create(doc).Error; err != nil {
		os.Remove(storagePath)
		if rbErr := s.backups.DeleteForDocument(docID); rbErr != nil {
			logger.Warnf("failed to roll back backup for %s: %v", docID, rbErr)
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	if err := s.quotas.OnDocumentCommitted(req.OwnerID, size, size, 1); err != nil {
		logger.Errorf("quota adjustment failed for owner %s: %v", req.OwnerID, err)
	}

	logger.WithFields(logrus.Fields{
		"doc_id":   docID,
		"owner_id": req.OwnerID,
		"category": category,
		"size":     size,
	}).Info("document submitted")

	// Fire and forget; the uploader never waits on compression.
	s.pool.enqueue(docID)

	return doc, nil
}

func (s *documentService) GetDocument(docID string) (*database.Document, error) {
	var doc database.Document
	if err := s.db.Where("doc_id = ?", docID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewWithDetails(apperrors.ErrNotFound,
				fmt.Sprintf("document %s not found", docID))
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return &doc, nil
}

func (s *documentService) GetDocumentBytes(docID string) ([]byte, error) {
	doc, err := s.GetDocument(docID)
	if err != nil {
		return nil, err
	}

	// Reading stored bytes mid-compression is undefined; refuse until the
	// state settles. Callers retry, typically within seconds.
	if doc.Status == database.StatusInProgress || s.claims.held(docID) {
		return nil, apperrors.NewWithDetails(apperrors.ErrCompressionInFlight,
			fmt.Sprintf("document %s is being compressed", docID))
	}

	if doc.Algorithm == database.AlgorithmNone {
		data, err := os.ReadFile(doc.StoragePath)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrStorageRead, err)
		}
		// A fast attempt may have claimed and committed between the snapshot
		// and the read. Serve only while the record still describes raw
		// bytes; otherwise the caller retries against the settled state.
		fresh, err := s.GetDocument(docID)
		if err != nil {
			return nil, err
		}
		if fresh.Algorithm != database.AlgorithmNone ||
			fresh.Status == database.StatusInProgress || s.claims.held(docID) {
			return nil, apperrors.NewWithDetails(apperrors.ErrCompressionInFlight,
				fmt.Sprintf("document %s is being compressed", docID))
		}
		s.bumpDownloadCount(docID)
		return data, nil
	}

	if data, ok := s.cache.get(docID, time.Now()); ok {
		s.bumpDownloadCount(docID)
		return data, nil
	}

	stored, err := os.ReadFile(doc.StoragePath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageRead, err)
	}

	data, err := s.engine.Decompress(stored, doc.Algorithm, doc.OriginalSize)
	if err == nil && !checksum.Verify(data, doc.OriginalChecksum) {
		err = apperrors.NewWithDetails(apperrors.ErrChecksumMismatch,
			fmt.Sprintf("decompressed bytes do not match original checksum for %s", docID))
	}
	if err != nil {
		// Integrity failure on the read path: flag the document and fall
		// back to the backup if it still exists. Without one, the error
		// reaches the caller; wrong bytes are never served silently.
		logger.WithFields(logrus.Fields{
			"doc_id": docID,
			"error":  err.Error(),
		}).Error("integrity failure during decompression")
		s.recordError(docID, err)

		recovered, restoreErr := s.restoreFromBackup(doc)
		if restoreErr != nil {
			return nil, err
		}
		return recovered, nil
	}

	if cacheErr := s.cache.put(docID, data); cacheErr != nil {
		logger.Warnf("failed to cache decompressed bytes for %s: %v", docID, cacheErr)
	}
	s.bumpDownloadCount(docID)
	return data, nil
}

func (s *documentService) GetCompressionStatus(docID string) (database.CompressionStatus, error) {
	doc, err := s.GetDocument(docID)
	if err != nil {
		return "", err
	}
	return doc.Status, nil
}

func (s *documentService) AttemptCompression(docID string) error {
	doc, err := s.GetDocument(docID)
	if err != nil {
		return err
	}
	if doc.Status.Terminal() {
		return nil
	}

	// Claim token: at most one attempt per document. The claim outlives the
	// engine budget slightly so a timed-out attempt still owns its cleanup.
	if !s.claims.acquire(docID, s.cfg.Timeout()+30*time.Second) {
		return apperrors.NewWithDetails(apperrors.ErrCompressionInFlight,
			fmt.Sprintf("document %s already has a compression attempt in flight", docID))
	}
	defer s.claims.release(docID)

	// Retries re-enter here after a failure. The stored copy must be
	// pristine before another attempt; restore it from backup if not.
	if doc.Status == database.StatusFailed {
		if err := s.ensurePristine(doc); err != nil {
			return err
		}
	}

	if err := s.setStatus(docID, database.StatusInProgress); err != nil {
		return err
	}

	decision := s.selector.Select(doc.FileCategory, doc.OriginalSize)
	if decision.Skip {
		logger.WithFields(logrus.Fields{
			"doc_id": docID,
			"reason": decision.Reason,
		}).Info("compression skipped")
		return s.finalizeSkipped(doc, 0)
	}

	original, err := os.ReadFile(doc.StoragePath)
	if err != nil {
		return s.finalizeFailed(doc, decision.Algorithm, apperrors.Wrap(apperrors.ErrStorageRead, err))
	}

	start := time.Now()
	compressed, ratio, err := s.compressWithBudget(original, decision)
	duration := time.Since(start)
	if err != nil {
		return s.finalizeFailed(doc, decision.Algorithm, err)
	}

	// Selection was a hint; the measured ratio decides.
	if ratio > 1-s.cfg.MinGain {
		logger.WithFields(logrus.Fields{
			"doc_id": docID,
			"ratio":  ratio,
		}).Info("compression gain below threshold, keeping original")
		return s.finalizeSkipped(doc, duration)
	}

	// Round-trip verification before anything is committed.
	restored, err := s.engine.Decompress(compressed, decision.Algorithm, doc.OriginalSize)
	if err != nil {
		return s.finalizeFailed(doc, decision.Algorithm, err)
	}
	if !checksum.Verify(restored, doc.OriginalChecksum) {
		return s.finalizeFailed(doc, decision.Algorithm,
			apperrors.NewWithDetails(apperrors.ErrChecksumMismatch,
				"round-trip checksum does not match original"))
	}

	return s.commitCompressed(doc, decision.Algorithm, compressed, ratio, duration)
}

// compressWithBudget runs the engine under the configured wall-clock budget.
// A timed-out attempt is a failure, not a hang.
func (s *documentService) compressWithBudget(data []byte, decision compression.Decision) ([]byte, float64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout())
	defer cancel()

	type result struct {
		out   []byte
		ratio float64
		err   error
	}
	done := make(chan result, 1)
	go func() {
		out, ratio, err := s.engine.Compress(data, decision.Algorithm, decision.Level)
		done <- result{out, ratio, err}
	}()

	select {
	case r := <-done:
		return r.out, r.ratio, r.err
	case <-ctx.Done():
		return nil, 0, apperrors.NewWithDetails(apperrors.ErrCompressionTimeout,
			fmt.Sprintf("compression exceeded %s budget", s.cfg.Timeout()))
	}
}

// commitCompressed replaces the stored bytes with the verified compressed
// form and records the new state. Replacement is atomic: the compressed form
// lands in a temp file and renames over the original, so a crash leaves
// either the old bytes or the new, never a mix.
func (s *documentService) commitCompressed(doc *database.Document, alg database.CompressionAlgorithm,
	compressed []byte, ratio float64, duration time.Duration) error {

	// The document may have been deleted while the engine ran. Discard the
	// result rather than writing to a tombstoned record.
	fresh, err := s.GetDocument(doc.DocID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			logger.Infof("document %s deleted during compression, discarding result", doc.DocID)
			return nil
		}
		return err
	}

	tmpPath := fresh.StoragePath + ".compressed"
	if err := os.WriteFile(tmpPath, compressed, 0644); err != nil {
		os.Remove(tmpPath)
		return s.finalizeFailed(fresh, alg, apperrors.Wrap(apperrors.ErrStorageWrite, err))
	}
	if err := os.Rename(tmpPath, fresh.StoragePath); err != nil {
		os.Remove(tmpPath)
		return s.finalizeFailed(fresh, alg, apperrors.Wrap(apperrors.ErrStorageWrite, err))
	}

	now := time.Now()
	storedSize := int64(len(compressed))
	updates := map[string]interface{}{
		"stored_size":     storedSize,
		"ratio":           ratio,
		"algorithm":       alg,
		"status":          database.StatusCompressed,
		"stored_checksum": checksum.Digest(compressed),
		"compressed_at":   now,
		"last_error":      "",
	}
	if err := s.db.Model(&database.Document{}).Where("doc_id = ?", fresh.DocID).
		Updates(updates).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	if err := s.quotas.OnDocumentCommitted(fresh.OwnerID, 0, storedSize-fresh.StoredSize, 0); err != nil {
		logger.Errorf("quota adjustment failed for owner %s: %v", fresh.OwnerID, err)
	}
	if err := s.stats.RecordResult(fresh.OwnerID, fresh.FileCategory, alg,
		fresh.OriginalSize, storedSize, duration); err != nil {
		logger.Errorf("stats update failed for %s: %v", fresh.DocID, err)
	}

	logger.WithFields(logrus.Fields{
		"doc_id":      fresh.DocID,
		"algorithm":   alg,
		"ratio":       fmt.Sprintf("%.3f", ratio),
		"saved_bytes": fresh.OriginalSize - storedSize,
		"duration_ms": duration.Milliseconds(),
	}).Info("document compressed")
	return nil
}

// finalizeSkipped settles a document whose bytes stay uncompressed.
func (s *documentService) finalizeSkipped(doc *database.Document, duration time.Duration) error {
	updates := map[string]interface{}{
		"status":      database.StatusSkipped,
		"algorithm":   database.AlgorithmNone,
		"stored_size": doc.OriginalSize,
		"ratio":       1.0,
		"last_error":  "",
	}
	if err := s.db.Model(&database.Document{}).Where("doc_id = ?", doc.DocID).
		Updates(updates).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	if err := s.stats.RecordResult(doc.OwnerID, doc.FileCategory, database.AlgorithmNone,
		doc.OriginalSize, doc.OriginalSize, duration); err != nil {
		logger.Errorf("stats update failed for %s: %v", doc.DocID, err)
	}
	return nil
}

// finalizeFailed records a failed attempt. The stored bytes are untouched;
// only a fully verified result ever replaces them. Resource exhaustion is
// logged distinctly but lands in the same failed state.
func (s *documentService) finalizeFailed(doc *database.Document, alg database.CompressionAlgorithm, cause error) error {
	entry := logger.WithFields(logrus.Fields{
		"doc_id":    doc.DocID,
		"algorithm": alg,
		"error":     cause.Error(),
	})
	if apperrors.IsResourceExhaustion(cause) {
		entry.Error("compression attempt exhausted resources")
	} else {
		entry.Error("compression attempt failed")
	}

	updates := map[string]interface{}{
		"status":     database.StatusFailed,
		"last_error": cause.Error(),
	}
	if err := s.db.Model(&database.Document{}).Where("doc_id = ?", doc.DocID).
		Updates(updates).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	if err := s.stats.RecordFailure(doc.OwnerID, doc.FileCategory, alg); err != nil {
		logger.Errorf("failure stats update failed for %s: %v", doc.DocID, err)
	}
	return cause
}

// ensurePristine verifies the stored copy still matches the original upload
// and restores it from backup if a previous attempt left anything behind.
func (s *documentService) ensurePristine(doc *database.Document) error {
	data, err := os.ReadFile(doc.StoragePath)
	if err == nil && checksum.Verify(data, doc.OriginalChecksum) {
		return nil
	}
	logger.Warnf("stored copy of %s is not pristine, restoring from backup", doc.DocID)
	if err := s.backups.Restore(doc.DocID, doc.StoragePath); err != nil {
		return err
	}
	updates := map[string]interface{}{
		"stored_size": doc.OriginalSize,
		"algorithm":   database.AlgorithmNone,
		"ratio":       1.0,
	}
	if err := s.db.Model(&database.Document{}).Where("doc_id = ?", doc.DocID).
		Updates(updates).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return nil
}

// restoreFromBackup serves a document's original bytes from its backup after
// an integrity failure. The backup is the only source of truth at that point.
func (s *documentService) restoreFromBackup(doc *database.Document) ([]byte, error) {
	record, err := s.backups.Get(doc.DocID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(record.BackupPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStorageRead, err)
	}
	if !checksum.Verify(data, doc.OriginalChecksum) {
		return nil, apperrors.NewWithDetails(apperrors.ErrChecksumMismatch,
			fmt.Sprintf("backup of %s also fails checksum verification", doc.DocID))
	}
	if err := s.backups.Restore(doc.DocID, doc.StoragePath); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"stored_size":     doc.OriginalSize,
		"algorithm":       database.AlgorithmNone,
		"status":          database.StatusFailed,
		"stored_checksum": doc.OriginalChecksum,
		"ratio":           1.0,
	}
	if err := s.db.Model(&database.Document{}).Where("doc_id = ?", doc.DocID).
		Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	// The stored footprint grew back to the original size; the owner's
	// accounting must follow.
	if err := s.quotas.OnDocumentCommitted(doc.OwnerID, 0, doc.OriginalSize-doc.StoredSize, 0); err != nil {
		logger.Errorf("quota adjustment failed for owner %s: %v", doc.OwnerID, err)
	}

	logger.WithField("doc_id", doc.DocID).Warn("document recovered from backup after integrity failure")
	return data, nil
}

func (s *documentService) ListDocuments(ownerID string, page, pageSize int) ([]database.Document, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	query := s.db.Model(&database.Document{}).Where("owner_id = ?", ownerID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	var docs []database.Document
	if err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&docs).Error; err != nil {
		return nil, 0, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return docs, total, nil
}

func (s *documentService) SetFavorite(docID string, favorite bool) error {
	res := s.db.Model(&database.Document{}).Where("doc_id = ?", docID).
		Update("is_favorite", favorite)
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseQuery, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewWithDetails(apperrors.ErrNotFound,
			fmt.Sprintf("document %s not found", docID))
	}
	return nil
}

func (s *documentService) DeleteDocument(docID string) error {
	doc, err := s.GetDocument(docID)
	if err != nil {
		return err
	}

	// Soft-delete the record first so an in-flight compression attempt
	// sees the tombstone and discards its result.
	if err := s.db.Where("doc_id = ?", docID).Delete(&database.Document{}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	if err := s.backups.DeleteForDocument(docID); err != nil {
		logger.Errorf("failed to delete backup for %s: %v", docID, err)
	}
	if err := s.db.Where("doc_id = ?", docID).Delete(&database.DocumentShareLog{}).Error; err != nil {
		logger.Errorf("failed to delete share logs for %s: %v", docID, err)
	}
	s.cache.invalidate(docID)
	if err := os.Remove(doc.StoragePath); err != nil && !os.IsNotExist(err) {
		logger.Errorf("failed to remove stored file for %s: %v", docID, err)
	}

	if err := s.quotas.OnDocumentCommitted(doc.OwnerID, -doc.OriginalSize, -doc.StoredSize, -1); err != nil {
		logger.Errorf("quota adjustment failed for owner %s: %v", doc.OwnerID, err)
	}

	logger.WithFields(logrus.Fields{
		"doc_id":   docID,
		"owner_id": doc.OwnerID,
	}).Info("document deleted")
	return nil
}

func (s *documentService) SweepExpiredBackups(now time.Time) (int, error) {
	return s.backups.SweepExpired(now)
}

func (s *documentService) SweepExpiredCache(now time.Time) (int, error) {
	return s.cache.sweep(now), nil
}

func (s *documentService) StartWorkers() {
	s.pool.start()
}

func (s *documentService) StopWorkers() {
	s.pool.stop()
}

func (s *documentService) setStatus(docID string, status database.CompressionStatus) error {
	if err := s.db.Model(&database.Document{}).Where("doc_id = ?", docID).
		Update("status", status).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return nil
}

func (s *documentService) recordError(docID string, cause error) {
	if err := s.db.Model(&database.Document{}).Where("doc_id = ?", docID).
		Update("last_error", cause.Error()).Error; err != nil {
		logger.Warnf("failed to record error for %s: %v", docID, err)
	}
}

func (s *documentService) bumpDownloadCount(docID string) {
	if err := s.db.Model(&database.Document{}).Where("doc_id = ?", docID).
		Update("download_count", gorm.Expr("download_count + 1")).Error; err != nil {
		logger.Warnf("failed to bump download count for %s: %v", docID, err)
	}
}

// moveFile renames when possible and falls back to copy across devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return err
	}
	return out.Sync()
}
