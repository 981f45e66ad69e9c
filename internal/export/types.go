// Package export renders an applicant's questionnaire in downloadable
// formats: JSON for backup/transfer, CSV and plain text for review, and PDF
// via headless Chrome for printing.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates a format query parameter. An empty value defaults to
// JSON, matching the original backup behavior.
func ParseFormat(value string) (Format, error) {
	switch value {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "text", "txt":
		return FormatText, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// Request contains parameters for an export operation
type Request struct {
	Format    Format
	OwnerName string
	SavedAt   time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat indicates an unknown format parameter.
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
