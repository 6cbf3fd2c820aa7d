// Package quota tracks per-owner storage usage and compression savings.
//
// The common path adjusts cached totals with atomic SQL increments so
// concurrent uploads by one owner never lose updates. Recalculate rebuilds
// the totals from the authoritative document set whenever drift is suspected.
package quota

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/weiwangfds/docuvault/config"
	"github.com/weiwangfds/docuvault/internal/database"
	apperrors "github.com/weiwangfds/docuvault/internal/errors"
	"github.com/weiwangfds/docuvault/internal/logger"
)

// QuotaService is the storage accountant for document owners.
type QuotaService interface {
	// EnsureQuota returns the owner's quota row, creating it with the
	// configured default limit on first use.
	EnsureQuota(ownerID string) (*database.UserStorageQuota, error)

	// Get returns the owner's quota row.
	Get(ownerID string) (*database.UserStorageQuota, error)

	// WouldExceedQuota reports whether admitting incomingBytes would push
	// the owner over their limit. This is a hard admission gate, checked
	// before any storage write.
	WouldExceedQuota(ownerID string, incomingBytes int64) (bool, error)

	// OnDocumentCommitted adjusts the cached totals after a document
	// create, compression commit, or delete. Deltas may be negative.
	OnDocumentCommitted(ownerID string, deltaOriginal, deltaStored, deltaCount int64) error

	// Recalculate recomputes the cached totals from the owner's live
	// documents and overwrites them, correcting any drift.
	Recalculate(ownerID string) (*database.UserStorageQuota, error)
}

type quotaService struct {
	db  *gorm.DB
	cfg config.QuotaConfig
}

// NewQuotaService creates a quota service.
func NewQuotaService(db *gorm.DB, cfg config.QuotaConfig) QuotaService {
	return &quotaService{db: db, cfg: cfg}
}

func (s *quotaService) EnsureQuota(ownerID string) (*database.UserStorageQuota, error) {
	var q database.UserStorageQuota
	err := s.db.Where("owner_id = ?", ownerID).First(&q).Error
	if err == nil {
		return &q, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	q = database.UserStorageQuota{
		OwnerID:        ownerID,
		QuotaLimit:     s.cfg.DefaultLimit,
		LastCalculated: time.Now(),
	}
	if err := s.db.Create(&q).Error; err != nil {
		// A concurrent upload may have created the row first.
		var existing database.UserStorageQuota
		if retryErr := s.db.Where("owner_id = ?", ownerID).First(&existing).Error; retryErr == nil {
			return &existing, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	logger.WithFields(logrus.Fields{
		"owner_id":    ownerID,
		"quota_limit": q.QuotaLimit,
	}).Info("storage quota initialized")
	return &q, nil
}

func (s *quotaService) Get(ownerID string) (*database.UserStorageQuota, error) {
	var q database.UserStorageQuota
	if err := s.db.Where("owner_id = ?", ownerID).First(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewWithDetails(apperrors.ErrNotFound,
				fmt.Sprintf("no quota for owner %s", ownerID))
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return &q, nil
}

func (s *quotaService) WouldExceedQuota(ownerID string, incomingBytes int64) (bool, error) {
	q, err := s.EnsureQuota(ownerID)
	if err != nil {
		return false, err
	}
	return q.OriginalUsed+incomingBytes > q.QuotaLimit, nil
}

func (s *quotaService) OnDocumentCommitted(ownerID string, deltaOriginal, deltaStored, deltaCount int64) error {
	if _, err := s.EnsureQuota(ownerID); err != nil {
		return err
	}

	// Single UPDATE with expressions; concurrent adjustments for the same
	// owner serialize in the database instead of racing in memory.
	res := s.db.Model(&database.UserStorageQuota{}).
		Where("owner_id = ?", ownerID).
		Updates(map[string]interface{}{
			"original_used":  gorm.Expr("original_used + ?", deltaOriginal),
			"stored_used":    gorm.Expr("stored_used + ?", deltaStored),
			"saved_bytes":    gorm.Expr("saved_bytes + ?", deltaOriginal-deltaStored),
			"document_count": gorm.Expr("document_count + ?", deltaCount),
		})
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseQuery, res.Error)
	}
	return nil
}

func (s *quotaService) Recalculate(ownerID string) (*database.UserStorageQuota, error) {
	if _, err := s.EnsureQuota(ownerID); err != nil {
		return nil, err
	}

	var totals struct {
		TotalOriginal int64
		TotalStored   int64
		Count         int64
	}
	err := s.db.Model(&database.Document{}).
		Where("owner_id = ?", ownerID).
		Select("COALESCE(SUM(original_size),0) AS total_original, COALESCE(SUM(stored_size),0) AS total_stored, COUNT(*) AS count").
		Scan(&totals).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	updates := map[string]interface{}{
		"original_used":   totals.TotalOriginal,
		"stored_used":     totals.TotalStored,
		"saved_bytes":     totals.TotalOriginal - totals.TotalStored,
		"document_count":  totals.Count,
		"last_calculated": time.Now(),
	}
	if err := s.db.Model(&database.UserStorageQuota{}).
		Where("owner_id = ?", ownerID).
		Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	q, err := s.Get(ownerID)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"owner_id":       ownerID,
		"stored_used":    q.StoredUsed,
		"saved_bytes":    q.SavedBytes,
		"document_count": q.DocumentCount,
	}).Info("storage quota recalculated")
	return q, nil
}
