// Package backup manages the original-file safety net. A backup is created
// synchronously at upload time, before compression is ever attempted, and is
// the only source of truth while a document sits between upload and a
// verified compression result.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/weiwangfds/docuvault/config"
	"github.com/weiwangfds/docuvault/internal/database"
	apperrors "github.com/weiwangfds/docuvault/internal/errors"
	"github.com/weiwangfds/docuvault/internal/logger"
)

// BackupService retains and restores original-file backups.
type BackupService interface {
	// Create stores a backup of sourcePath for the document. It is
	// idempotent per document: a second call for a still-pending document
	// replaces the payload instead of duplicating it.
	Create(docID string, sourcePath string) (*database.DocumentBackup, error)

	// Restore copies the backup payload for the document to dstPath.
	Restore(docID string, dstPath string) error

	// Get returns the backup record for a document.
	Get(docID string) (*database.DocumentBackup, error)

	// Expire deletes one backup's payload and record. It refuses to expire
	// a backup whose document has not reached a terminal compression state.
	Expire(backupID string) error

	// SweepExpired removes all backups whose TTL has passed and whose
	// document is terminal. Returns the number of backups deleted.
	SweepExpired(now time.Time) (int, error)

	// DeleteForDocument removes a document's backup immediately, regardless
	// of expiry. Called when the document itself is deleted.
	DeleteForDocument(docID string) error
}

type backupService struct {
	db  *gorm.DB
	cfg config.BackupConfig
	dir string
}

// NewBackupService creates a backup service storing payloads under dir.
func NewBackupService(db *gorm.DB, cfg config.BackupConfig, dir string) (BackupService, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", dir, err)
	}
	return &backupService{db: db, cfg: cfg, dir: dir}, nil
}

func (s *backupService) Create(docID string, sourcePath string) (*database.DocumentBackup, error) {
	var existing database.DocumentBackup
	err := s.db.Where("doc_id = ?", docID).First(&existing).Error
	switch {
	case err == nil:
		// Replace the payload in place; one backup per document, always.
		if copyErr := copyFile(sourcePath, existing.BackupPath); copyErr != nil {
			return nil, apperrors.Wrap(apperrors.ErrBackupCreationFailed, copyErr)
		}
		existing.ExpiresAt = time.Now().Add(s.cfg.TTL())
		if saveErr := s.db.Save(&existing).Error; saveErr != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, saveErr)
		}
		logger.WithFields(logrus.Fields{
			"doc_id":    docID,
			"backup_id": existing.BackupID,
		}).Info("backup payload replaced")
		return &existing, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to create
	default:
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	backupID := uuid.New().String()
	backupPath := filepath.Join(s.dir, backupID+".bak")

	if copyErr := copyFile(sourcePath, backupPath); copyErr != nil {
		return nil, apperrors.Wrap(apperrors.ErrBackupCreationFailed, copyErr)
	}

	record := &database.DocumentBackup{
		BackupID:   backupID,
		DocID:      docID,
		BackupPath: backupPath,
		ExpiresAt:  time.Now().Add(s.cfg.TTL()),
	}
	if err := s.db.Create(record).Error; err != nil {
		os.Remove(backupPath)
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	logger.WithFields(logrus.Fields{
		"doc_id":     docID,
		"backup_id":  backupID,
		"expires_at": record.ExpiresAt,
	}).Info("backup created")
	return record, nil
}

func (s *backupService) Restore(docID string, dstPath string) error {
	record, err := s.Get(docID)
	if err != nil {
		return err
	}
	if err := copyFile(record.BackupPath, dstPath); err != nil {
		return apperrors.Wrap(apperrors.ErrStorageRead, err)
	}
	if err := s.db.Model(record).Update("used_for_recovery", true).Error; err != nil {
		logger.Warnf("failed to flag backup %s as used for recovery: %v", record.BackupID, err)
	}
	logger.WithField("doc_id", docID).Info("document restored from backup")
	return nil
}

func (s *backupService) Get(docID string) (*database.DocumentBackup, error) {
	var record database.DocumentBackup
	if err := s.db.Where("doc_id = ?", docID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewWithDetails(apperrors.ErrNotFound,
				fmt.Sprintf("no backup for document %s", docID))
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return &record, nil
}

func (s *backupService) Expire(backupID string) error {
	var record database.DocumentBackup
	if err := s.db.Where("backup_id = ?", backupID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewWithDetails(apperrors.ErrNotFound,
				fmt.Sprintf("backup %s not found", backupID))
		}
		return apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	// The invariant lives here, not in callers: a backup may only go away
	// once its document has settled. A deleted document also counts as
	// settled; the backup has nothing left to protect.
	var doc database.Document
	err := s.db.Where("doc_id = ?", record.DocID).First(&doc).Error
	if err == nil && !doc.Status.Terminal() {
		return apperrors.NewWithDetails(apperrors.ErrBackupNotExpirable,
			fmt.Sprintf("document %s is still %s", doc.DocID, doc.Status))
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	return s.remove(&record)
}

func (s *backupService) SweepExpired(now time.Time) (int, error) {
	var candidates []database.DocumentBackup
	if err := s.db.Where("expires_at < ?", now).Find(&candidates).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	count := 0
	for i := range candidates {
		if err := s.Expire(candidates[i].BackupID); err != nil {
			// Backups guarding still-unsettled documents stay; everything
			// else is logged and retried on the next sweep.
			if appErr, ok := apperrors.GetAppError(err); !ok || appErr.Code != apperrors.ErrBackupNotExpirable {
				logger.Errorf("failed to expire backup %s: %v", candidates[i].BackupID, err)
			}
			continue
		}
		count++
	}

	if count > 0 {
		logger.Infof("backup sweep removed %d expired backups", count)
	}
	return count, nil
}

func (s *backupService) DeleteForDocument(docID string) error {
	var record database.DocumentBackup
	err := s.db.Where("doc_id = ?", docID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return s.remove(&record)
}

func (s *backupService) remove(record *database.DocumentBackup) error {
	if err := os.Remove(record.BackupPath); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrap(apperrors.ErrStorageWrite, err)
	}
	if err := s.db.Unscoped().Delete(record).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return nil
}

func copyFile(src, dst string) error {
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
		return err
	}
	return out.Sync()
}
