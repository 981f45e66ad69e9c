package export

import (
	"context"
	"fmt"

	"visaprep/api/internal/confirm"
	"visaprep/api/internal/form"
	"visaprep/api/internal/summary"
)

const exportTitle = "DS-160 Preparation Worksheet"

// Service renders questionnaire exports.
type Service struct{}

// NewService creates a new export service
func NewService() *Service {
	return &Service{}
}

// Export generates an export of the given state in the requested format.
func (s *Service) Export(ctx context.Context, req Request, snapshot form.Snapshot, confirmations confirm.Set) (*Result, error) {
	basename := "ds160-" + sanitizeFilename(req.OwnerName)

	switch req.Format {
	case FormatJSON:
		return exportJSON(snapshot, basename)
	case FormatCSV:
		return exportCSV(snapshot, basename)
	case FormatText:
		return exportText(summary.Render(snapshot, confirmations), exportTitle, basename)
	case FormatPDF:
		html, err := RenderPrintHTML(TemplateData{
			Title:     exportTitle,
			OwnerName: req.OwnerName,
			SavedAt:   req.SavedAt,
			View:      summary.Render(snapshot, confirmations),
		})
		if err != nil {
			return nil, fmt.Errorf("render print template: %w", err)
		}
		return exportPDF(html, basename)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}
