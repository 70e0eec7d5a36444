// Package export renders archived extraction runs as styled XLSX
// workbooks.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
	"github.com/joseph-ayodele/invoice-extractor/internal/schema"
)

const sheetName = "识别结果"

// Service is a tiny façade over the archive that produces XLSX bytes
// for exports. Field columns follow the schema store's insertion order.
type Service struct {
	archive repository.Archive
	fields  *schema.Store
	logger  *slog.Logger
}

func NewService(archive repository.Archive, fields *schema.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{archive: archive, fields: fields, logger: logger}
}

// ExportXLSX returns an XLSX workbook (as bytes) for the given date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> the whole archive.
func (s *Service) ExportXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	// Normalize to inclusive day bounds in UTC.
	var fromTS, toTS *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromTS = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, int(time.Second-1), time.UTC)
		toTS = &t
	}
	if fromTS != nil && toTS == nil {
		today := time.Now().UTC()
		t := time.Date(today.Year(), today.Month(), today.Day(), 23, 59, 59, int(time.Second-1), time.UTC)
		toTS = &t
	}

	recs, err := s.archive.List(ctx, fromTS, toTS)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	fieldNames := s.fields.Names()
	headers := append([]string{"序号", "文件", "处理时间", "解析方式", "置信度"}, fieldNames...)
	headers = append(headers, "状态")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4A90E2"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}
	okStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D4EDDA"}},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}
	failedStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F8D7DA"}},
	})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle)

	row := 2
	for i, rec := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}

		write(1, i+1)
		write(2, rec.SourcePath)
		write(3, rec.CreatedAt.Format("2006-01-02 15:04:05"))
		write(4, rec.Method)
		if rec.Confidence != nil {
			write(5, *rec.Confidence)
		}

		fields, err := rec.Fields()
		if err != nil {
			s.logger.Warn("export.fields.decode_failed", "id", rec.ID, "error", err)
			fields = map[string]*string{}
		}
		extracted := 0
		for j, name := range fieldNames {
			if v := fields[name]; v != nil && *v != "" {
				write(6+j, *v)
				extracted++
			}
		}

		statusCol := 6 + len(fieldNames)
		statusCell, _ := excelize.CoordinatesToCellName(statusCol, row)
		if failedRun(rec) {
			write(statusCol, "失败")
			_ = f.SetCellStyle(sheetName, statusCell, statusCell, failedStyle)
		} else {
			write(statusCol, fmt.Sprintf("%d/%d", extracted, len(fieldNames)))
			if extracted == len(fieldNames) && len(fieldNames) > 0 {
				_ = f.SetCellStyle(sheetName, statusCell, statusCell, okStyle)
			}
		}
		row++
	}

	widths := map[int]float64{1: 8, 2: 40, 3: 20, 4: 12, 5: 10}
	for col := 1; col <= len(headers); col++ {
		w, ok := widths[col]
		if !ok {
			w = 18
		}
		if col == len(headers) {
			w = 12
		}
		name, _ := excelize.ColumnNumberToName(col)
		_ = f.SetColWidth(sheetName, name, name, w)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"fields", len(fieldNames),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func failedRun(rec *entity.ExtractionRecord) bool {
	return rec.Status == string(constants.JobStatusFailed)
}
