// Package compression implements the strategy selector and the codec engine.
//
// The selector maps a document's file category and size to an algorithm and
// level, or to skip. Its decision is a hint: the orchestrator still discards
// results whose measured gain falls below the configured minimum, so
// verification stays authoritative over selection.
package compression

import (
	"github.com/weiwangfds/docuvault/config"
	"github.com/weiwangfds/docuvault/internal/database"
)

// Decision is the selector's output for one document.
type Decision struct {
	Skip      bool
	Algorithm database.CompressionAlgorithm
	Level     int
	// Reason explains a skip for logging and diagnostics.
	Reason string
}

// Selector chooses a compression strategy per document. It carries its
// configuration explicitly; there is no ambient settings object.
type Selector struct {
	cfg config.CompressionConfig
}

// NewSelector creates a selector from explicit configuration.
func NewSelector(cfg config.CompressionConfig) *Selector {
	return &Selector{cfg: cfg}
}

// Select returns the strategy for a document of the given category and size.
func (s *Selector) Select(category database.FileCategory, size int64) Decision {
	if !s.cfg.Enabled {
		return Decision{Skip: true, Algorithm: database.AlgorithmNone, Reason: "compression disabled"}
	}
	if size < s.cfg.MinSize {
		return Decision{Skip: true, Algorithm: database.AlgorithmNone, Reason: "below minimum size threshold"}
	}
	if size > s.cfg.MaxSize {
		return Decision{Skip: true, Algorithm: database.AlgorithmNone, Reason: "above maximum size ceiling"}
	}

	switch category {
	case database.CategoryImage, database.CategoryArchive:
		// Container formats that already carry compression.
		return Decision{Skip: true, Algorithm: database.AlgorithmNone, Reason: "already-compressed container"}
	case database.CategoryPlainText, database.CategoryTabularText:
		// Text: favor ratio over speed.
		return Decision{Algorithm: database.AlgorithmBrotli, Level: s.cfg.TextLevel}
	case database.CategoryWordProcessing, database.CategorySpreadsheet, database.CategoryPresentation:
		// Zip-based office formats carry internal compression; gains are
		// modest, so favor speed.
		return Decision{Algorithm: database.AlgorithmZstd, Level: s.cfg.OfficeLevel}
	case database.CategoryPDF:
		return Decision{Algorithm: database.AlgorithmZstd, Level: s.cfg.PDFLevel}
	case database.CategoryOther:
		return Decision{Algorithm: database.AlgorithmZstd, Level: s.cfg.DefaultLevel}
	default:
		// Unknown values behave like other rather than failing the upload.
		return Decision{Algorithm: database.AlgorithmZstd, Level: s.cfg.DefaultLevel}
	}
}
