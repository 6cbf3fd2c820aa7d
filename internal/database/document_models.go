// Package database defines the persistent entity graph of the document vault:
// documents and their compression metadata, categories, tags, backups,
// per-owner storage quotas, compression statistics and share logs.
package database

import (
	"time"

	"gorm.io/gorm"
)

// FileCategory is the closed taxonomy of document types. The compression
// strategy selector matches on it exhaustively; adding a category is a
// compile-time change, not a string-keyed lookup.
type FileCategory string

const (
	CategoryWordProcessing FileCategory = "word_processing" // docx, odt
	CategorySpreadsheet    FileCategory = "spreadsheet"     // xlsx, ods
	CategoryPresentation   FileCategory = "presentation"    // pptx, odp
	CategoryPDF            FileCategory = "pdf"
	CategoryPlainText      FileCategory = "plain_text"   // txt, md, log
	CategoryTabularText    FileCategory = "tabular_text" // csv, tsv
	CategoryImage          FileCategory = "image"        // png, jpg, gif
	CategoryArchive        FileCategory = "archive"      // zip, gz, 7z
	CategoryOther          FileCategory = "other"
)

// Valid reports whether c is a member of the taxonomy.
func (c FileCategory) Valid() bool {
	switch c {
	case CategoryWordProcessing, CategorySpreadsheet, CategoryPresentation,
		CategoryPDF, CategoryPlainText, CategoryTabularText,
		CategoryImage, CategoryArchive, CategoryOther:
		return true
	}
	return false
}

// categoryByExtension maps common file extensions to their category.
var categoryByExtension = map[string]FileCategory{
	".doc":  CategoryWordProcessing,
	".docx": CategoryWordProcessing,
	".odt":  CategoryWordProcessing,
	".xls":  CategorySpreadsheet,
	".xlsx": CategorySpreadsheet,
	".ods":  CategorySpreadsheet,
	".ppt":  CategoryPresentation,
	".pptx": CategoryPresentation,
	".odp":  CategoryPresentation,
	".pdf":  CategoryPDF,
	".txt":  CategoryPlainText,
	".md":   CategoryPlainText,
	".log":  CategoryPlainText,
	".csv":  CategoryTabularText,
	".tsv":  CategoryTabularText,
	".png":  CategoryImage,
	".jpg":  CategoryImage,
	".jpeg": CategoryImage,
	".gif":  CategoryImage,
	".zip":  CategoryArchive,
	".gz":   CategoryArchive,
	".7z":   CategoryArchive,
	".rar":  CategoryArchive,
}

// CategoryForExtension returns the category for a file extension (with
// leading dot, case already lowered). Unknown extensions map to other.
func CategoryForExtension(ext string) FileCategory {
	if cat, ok := categoryByExtension[ext]; ok {
		return cat
	}
	return CategoryOther
}

// CompressionAlgorithm identifies the codec a document is stored with.
type CompressionAlgorithm string

const (
	AlgorithmNone    CompressionAlgorithm = "none"
	AlgorithmZstd    CompressionAlgorithm = "zstd"
	AlgorithmBrotli  CompressionAlgorithm = "brotli"
	AlgorithmDeflate CompressionAlgorithm = "deflate"
)

// CompressionStatus tracks a document through the compression state machine.
type CompressionStatus string

const (
	StatusPending    CompressionStatus = "pending"
	StatusInProgress CompressionStatus = "in_progress"
	StatusCompressed CompressionStatus = "compressed"
	StatusFailed     CompressionStatus = "failed"
	StatusSkipped    CompressionStatus = "skipped"
)

// Terminal reports whether the status is a rest state. Backups become
// eligible for expiry only once their document is terminal.
func (s CompressionStatus) Terminal() bool {
	return s == StatusCompressed || s == StatusSkipped
}

// Document is the core entity: one stored file plus its compression metadata.
// StoredSize and StoredChecksum describe the bytes on disk, which may be a
// compressed form of the original upload. Invariants: StoredSize <=
// OriginalSize when Status is compressed; skipped or failed documents keep
// StoredSize == OriginalSize and Algorithm == none.
type Document struct {
	ID      uint   `gorm:"primarykey" json:"-"`
	DocID   string `gorm:"uniqueIndex;not null;size:36" json:"doc_id"`
	OwnerID string `gorm:"not null;size:36;index:idx_documents_owner" json:"owner_id"`

	Title        string `gorm:"not null;size:255" json:"title"`
	OriginalName string `gorm:"not null;size:255" json:"original_name"`

	FileCategory FileCategory `gorm:"not null;size:20;index:idx_documents_owner_category" json:"file_category"`
	StoragePath  string       `gorm:"not null;size:500" json:"-"`

	OriginalSize int64                `gorm:"not null" json:"original_size"`
	StoredSize   int64                `gorm:"not null" json:"stored_size"`
	Algorithm    CompressionAlgorithm `gorm:"not null;size:10;default:'none'" json:"algorithm"`
	// Ratio is stored_size / original_size; lower is better.
	Ratio  float64           `json:"ratio"`
	Status CompressionStatus `gorm:"not null;size:20;default:'pending';index" json:"status"`

	// OriginalChecksum is the permanent SHA-256 fingerprint of the upload.
	OriginalChecksum string `gorm:"not null;size:64" json:"original_checksum"`
	// StoredChecksum fingerprints the bytes currently on disk.
	StoredChecksum string `gorm:"size:64" json:"stored_checksum"`
	// LastError records the most recent compression or integrity failure.
	LastError    string     `gorm:"size:500" json:"last_error,omitempty"`
	CompressedAt *time.Time `json:"compressed_at,omitempty"`

	IsFavorite bool          `gorm:"default:false" json:"is_favorite"`
	CategoryID *string       `gorm:"size:36;index" json:"category_id,omitempty"`
	Tags       []DocumentTag `gorm:"many2many:document_tag_links;" json:"tags,omitempty"`

	DownloadCount int64 `gorm:"default:0" json:"download_count"`
	ViewCount     int64 `gorm:"default:0" json:"view_count"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName maps Document to its table.
func (Document) TableName() string {
	return "documents"
}

// Savings returns the bytes saved by compression.
func (d *Document) Savings() int64 {
	if d.Status == StatusCompressed {
		return d.OriginalSize - d.StoredSize
	}
	return 0
}

// DocumentCategory organizes documents into folders. Deleting a category
// leaves its documents uncategorized; it never owns them.
type DocumentCategory struct {
	ID         uint    `gorm:"primarykey" json:"-"`
	CategoryID string  `gorm:"uniqueIndex;not null;size:36" json:"category_id"`
	OwnerID    string  `gorm:"not null;size:36;uniqueIndex:idx_categories_owner_name" json:"owner_id"`
	Name       string  `gorm:"not null;size:100;uniqueIndex:idx_categories_owner_name" json:"name"`
	ParentID   *string `gorm:"size:36;index" json:"parent_id,omitempty"`
	Color      string  `gorm:"size:7;default:'#3B82F6'" json:"color"`
	Icon       string  `gorm:"size:50;default:'folder'" json:"icon"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName maps DocumentCategory to its table.
func (DocumentCategory) TableName() string {
	return "document_categories"
}

// DocumentTag labels documents for retrieval.
type DocumentTag struct {
	ID      uint   `gorm:"primarykey" json:"-"`
	TagID   string `gorm:"uniqueIndex;not null;size:36" json:"tag_id"`
	OwnerID string `gorm:"not null;size:36;uniqueIndex:idx_tags_owner_name" json:"owner_id"`
	Name    string `gorm:"not null;size:50;uniqueIndex:idx_tags_owner_name" json:"name"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName maps DocumentTag to its table.
func (DocumentTag) TableName() string {
	return "document_tags"
}

// DocumentBackup retains the untouched original bytes during the risky
// window between upload and verified compression. One backup per document.
// It exists while the document is pending, in progress, or failed; a sweep
// removes it only after expiry AND once the document is terminal.
type DocumentBackup struct {
	ID         uint   `gorm:"primarykey" json:"-"`
	BackupID   string `gorm:"uniqueIndex;not null;size:36" json:"backup_id"`
	DocID      string `gorm:"uniqueIndex;not null;size:36" json:"doc_id"`
	BackupPath string `gorm:"not null;size:500" json:"-"`

	ExpiresAt       time.Time `gorm:"not null;index" json:"expires_at"`
	UsedForRecovery bool      `gorm:"default:false" json:"used_for_recovery"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName maps DocumentBackup to its table.
func (DocumentBackup) TableName() string {
	return "document_backups"
}

// Expired reports whether the backup TTL has passed.
func (b *DocumentBackup) Expired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

// CompressionStats aggregates compression results per owner, file category
// and algorithm. Append/update only; reporting, not correctness-critical.
type CompressionStats struct {
	ID           uint                 `gorm:"primarykey" json:"-"`
	OwnerID      string               `gorm:"not null;size:36;uniqueIndex:idx_stats_key" json:"owner_id"`
	FileCategory FileCategory         `gorm:"not null;size:20;uniqueIndex:idx_stats_key" json:"file_category"`
	Algorithm    CompressionAlgorithm `gorm:"not null;size:10;uniqueIndex:idx_stats_key" json:"algorithm"`

	TotalFiles        int64   `gorm:"default:0" json:"total_files"`
	TotalOriginalSize int64   `gorm:"default:0" json:"total_original_size"`
	TotalStoredSize   int64   `gorm:"default:0" json:"total_stored_size"`
	AvgRatio          float64 `gorm:"default:0" json:"avg_ratio"`
	// AvgDurationMs is the running average compression time in milliseconds.
	AvgDurationMs float64 `gorm:"default:0" json:"avg_duration_ms"`
	FailureCount  int64   `gorm:"default:0" json:"failure_count"`

	UpdatedAt time.Time `json:"updated_at"`
}

// TableName maps CompressionStats to its table.
func (CompressionStats) TableName() string {
	return "compression_stats"
}

// UserStorageQuota caches per-owner storage accounting. StoredUsed must equal
// the sum of StoredSize over the owner's live documents; Recalculate restores
// that invariant when drift is suspected.
type UserStorageQuota struct {
	ID      uint   `gorm:"primarykey" json:"-"`
	OwnerID string `gorm:"uniqueIndex;not null;size:36" json:"owner_id"`

	QuotaLimit int64 `gorm:"not null" json:"quota_limit"`
	// OriginalUsed is the sum of pre-compression sizes; the admission gate
	// charges against it so compression gains never inflate the allowance.
	OriginalUsed  int64 `gorm:"default:0" json:"original_used"`
	StoredUsed    int64 `gorm:"default:0" json:"stored_used"`
	SavedBytes    int64 `gorm:"default:0" json:"saved_bytes"`
	DocumentCount int64 `gorm:"default:0" json:"document_count"`

	LastCalculated time.Time `json:"last_calculated"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName maps UserStorageQuota to its table.
func (UserStorageQuota) TableName() string {
	return "user_storage_quotas"
}

// Available returns the remaining allowance in bytes.
func (q *UserStorageQuota) Available() int64 {
	return q.QuotaLimit - q.OriginalUsed
}

// DocumentShareLog records a sharing operation for audit. Share delivery is
// handled elsewhere; the storage core only owns the lifecycle coupling:
// share logs are deleted with their document.
type DocumentShareLog struct {
	ID       uint   `gorm:"primarykey" json:"-"`
	ShareID  string `gorm:"uniqueIndex;not null;size:36" json:"share_id"`
	DocID    string `gorm:"not null;size:36;index" json:"doc_id"`
	SharedBy string `gorm:"not null;size:36" json:"shared_by"`

	Method    string `gorm:"size:20" json:"method"`
	Recipient string `gorm:"size:255" json:"recipient"`
	Status    string `gorm:"size:10;default:'pending'" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName maps DocumentShareLog to its table.
func (DocumentShareLog) TableName() string {
	return "document_share_logs"
}
