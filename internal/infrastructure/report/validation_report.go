package report

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/icsr-workflow/internal/domain/entity"
)

const (
	summarySheet = "Summary"
	resultsSheet = "Results"
)

var resultHeaders = []string{
	"Rule Code", "Rule Name", "Severity", "Message", "Field", "Value",
	"Acknowledged", "Acknowledged By", "Acknowledged At", "Notes",
}

// SummarySource loads the stored validation run of a case
type SummarySource interface {
	GetValidationResults(ctx context.Context, caseID string) (*entity.ValidationSummary, error)
}

// ValidationReporter renders stored validation runs as xlsx workbooks
type ValidationReporter struct {
	source SummarySource
	logger *zap.Logger
	now    func() time.Time
}

// NewValidationReporter creates a reporter over a summary source
func NewValidationReporter(source SummarySource, logger *zap.Logger) *ValidationReporter {
	return &ValidationReporter{source: source, logger: logger, now: time.Now}
}

// ExportValidationReport returns the case's stored validation run as an xlsx document
func (r *ValidationReporter) ExportValidationReport(ctx context.Context, caseID string) ([]byte, error) {
	summary, err := r.source.GetValidationResults(ctx, caseID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			r.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename summary sheet: %w", err)
	}
	if err := r.fillSummary(f, summary); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(resultsSheet); err != nil {
		return nil, fmt.Errorf("failed to create results sheet: %w", err)
	}
	if err := fillResults(f, summary.Results); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	r.logger.Info("Validation report exported",
		zap.String("case_id", caseID),
		zap.Int("results", len(summary.Results)))
	return buf.Bytes(), nil
}

func (r *ValidationReporter) fillSummary(f *excelize.File, s *entity.ValidationSummary) error {
	validatedAt := "never"
	if s.ValidatedAt != nil {
		validatedAt = s.ValidatedAt.UTC().Format(time.RFC3339)
	}

	rows := [][]interface{}{
		{"Case", s.CaseID},
		{"Validated At", validatedAt},
		{"Errors", s.ErrorCount},
		{"Warnings", s.WarningCount},
		{"Info", s.InfoCount},
		{"Valid", s.IsValid},
		{"Unacknowledged Warnings", s.HasUnacknowledgedWarnings},
		{"Can Submit", s.CanSubmit},
		{"Generated At", r.now().UTC().Format(time.RFC3339)},
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to fill summary row %d: %w", i+1, err)
		}
	}
	return nil
}

func fillResults(f *excelize.File, results []entity.ValidationResult) error {
	headers := make([]interface{}, len(resultHeaders))
	for i, h := range resultHeaders {
		headers[i] = h
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to fill results header: %w", err)
	}

	for i, res := range results {
		acknowledgedAt := ""
		if res.AcknowledgedAt != nil {
			acknowledgedAt = res.AcknowledgedAt.UTC().Format(time.RFC3339)
		}
		row := []interface{}{
			res.RuleCode,
			res.RuleName,
			res.Severity,
			res.Message,
			res.FieldPath,
			res.FieldValue,
			res.IsAcknowledged,
			res.AcknowledgedBy,
			acknowledgedAt,
			res.AcknowledgmentNotes,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to fill result row %d: %w", i+2, err)
		}
	}
	return nil
}
