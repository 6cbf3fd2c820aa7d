// Package stats aggregates compression performance per owner, file category
// and algorithm. The aggregates feed reporting only; nothing here is
// correctness-critical for the document lifecycle.
package stats

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/weiwangfds/docuvault/internal/database"
	apperrors "github.com/weiwangfds/docuvault/internal/errors"
	"github.com/weiwangfds/docuvault/internal/logger"
)

// StatsService records compression outcomes.
type StatsService interface {
	// RecordResult folds one successful compression (or a skip recorded as
	// algorithm none) into the running aggregates.
	RecordResult(ownerID string, category database.FileCategory, alg database.CompressionAlgorithm,
		originalSize, storedSize int64, duration time.Duration) error

	// RecordFailure counts a failed compression attempt.
	RecordFailure(ownerID string, category database.FileCategory, alg database.CompressionAlgorithm) error

	// List returns all aggregates for an owner.
	List(ownerID string) ([]database.CompressionStats, error)
}

type statsService struct {
	db *gorm.DB
}

// NewStatsService creates a stats service.
func NewStatsService(db *gorm.DB) StatsService {
	return &statsService{db: db}
}

func (s *statsService) RecordResult(ownerID string, category database.FileCategory, alg database.CompressionAlgorithm,
	originalSize, storedSize int64, duration time.Duration) error {

	row, err := s.getOrCreate(ownerID, category, alg)
	if err != nil {
		return err
	}

	ratio := 1.0
	if originalSize > 0 {
		ratio = float64(storedSize) / float64(originalSize)
	}
	durationMs := float64(duration.Milliseconds())

	// Single UPDATE folding the result into the running averages; every
	// expression reads the pre-update row, so concurrent workers finishing
	// documents under the same key serialize in the database.
	if err := s.db.Model(row).Updates(map[string]interface{}{
		"avg_ratio":           gorm.Expr("(avg_ratio * total_files + ?) / (total_files + 1)", ratio),
		"avg_duration_ms":     gorm.Expr("(avg_duration_ms * total_files + ?) / (total_files + 1)", durationMs),
		"total_files":         gorm.Expr("total_files + 1"),
		"total_original_size": gorm.Expr("total_original_size + ?", originalSize),
		"total_stored_size":   gorm.Expr("total_stored_size + ?", storedSize),
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return nil
}

func (s *statsService) RecordFailure(ownerID string, category database.FileCategory, alg database.CompressionAlgorithm) error {
	row, err := s.getOrCreate(ownerID, category, alg)
	if err != nil {
		return err
	}
	if err := s.db.Model(row).Update("failure_count", gorm.Expr("failure_count + 1")).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return nil
}

func (s *statsService) List(ownerID string) ([]database.CompressionStats, error) {
	var rows []database.CompressionStats
	if err := s.db.Where("owner_id = ?", ownerID).
		Order("file_category, algorithm").
		Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	return rows, nil
}

func (s *statsService) getOrCreate(ownerID string, category database.FileCategory,
	alg database.CompressionAlgorithm) (*database.CompressionStats, error) {

	var row database.CompressionStats
	err := s.db.Where("owner_id = ? AND file_category = ? AND algorithm = ?", ownerID, category, alg).
		First(&row).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}

	row = database.CompressionStats{
		OwnerID:      ownerID,
		FileCategory: category,
		Algorithm:    alg,
	}
	if err := s.db.Create(&row).Error; err != nil {
		// A concurrent worker may have created the row first; the unique
		// index rejects the duplicate.
		var existing database.CompressionStats
		if retryErr := s.db.Where("owner_id = ? AND file_category = ? AND algorithm = ?",
			ownerID, category, alg).First(&existing).Error; retryErr == nil {
			return &existing, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrDatabaseQuery, err)
	}
	logger.Debugf("created compression stats row for owner=%s category=%s algorithm=%s", ownerID, category, alg)
	return &row, nil
}
