package export

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/orderproof/constants"
	"github.com/joseph-ayodele/orderproof/internal/async"
)

const (
	ordersSheet  = "Orders"
	summarySheet = "Summary"
)

// Service renders batch extraction outcomes as an XLSX workbook.
type Service struct {
	logger      *slog.Logger
	reviewBelow int // rows under this confidence are flagged for review
}

func NewService(reviewBelow int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if reviewBelow <= 0 {
		reviewBelow = 50
	}
	return &Service{logger: logger, reviewBelow: reviewBelow}
}

// BatchXLSX returns a workbook with one row per outcome, sorted by path, and
// a summary sheet.
func (s *Service) BatchXLSX(outcomes []async.Outcome) ([]byte, error) {
	start := time.Now()
	rows := append([]async.Outcome(nil), outcomes...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Job.Path < rows[j].Job.Path })

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", ordersSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(ordersSheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"File",
		"Order ID",
		"Platform",
		"Amount",
		"Order Date",
		"Sold By",
		"Product",
		"Confidence",
		"Sources",
		"Review",
		"Notes",
		"Elapsed (ms)",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ordersSheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(ordersSheet, 1, 1, style)
	}

	var (
		review  int
		failed  int
		confSum int
	)
	for i, o := range rows {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(ordersSheet, cell, v)
		}
		r := o.Result
		notes := r.Notes
		if o.Err != nil {
			failed++
			notes = append([]string{"error: " + o.Err.Error()}, notes...)
		}
		needsReview := o.Err != nil || r.Confidence < s.reviewBelow
		if needsReview {
			review++
		}
		confSum += r.Confidence

		write(1, o.Job.Path)
		write(2, r.OrderID)
		write(3, r.Platform)
		if r.Amount > 0 {
			write(4, r.Amount)
		}
		write(5, r.OrderDate)
		write(6, r.SoldBy)
		write(7, truncate(r.ProductName, 120))
		write(8, r.Confidence)
		write(9, sources(r.Sources))
		write(10, yesNo(needsReview))
		write(11, truncate(strings.Join(notes, "; "), 240))
		write(12, o.Elapsed.Milliseconds())
	}

	_ = f.SetColWidth(ordersSheet, "A", "A", 40) // file
	_ = f.SetColWidth(ordersSheet, "B", "B", 24) // order id
	_ = f.SetColWidth(ordersSheet, "C", "F", 16)
	_ = f.SetColWidth(ordersSheet, "G", "G", 48) // product
	_ = f.SetColWidth(ordersSheet, "I", "I", 36)
	_ = f.SetColWidth(ordersSheet, "K", "K", 60) // notes

	avg := 0.0
	if len(rows) > 0 {
		avg = float64(confSum) / float64(len(rows))
	}
	summary := [][2]any{
		{"Images", len(rows)},
		{"Needs review", review},
		{"Failed", failed},
		{"Average confidence", fmt.Sprintf("%.1f", avg)},
		{"Generated", time.Now().UTC().Format(time.RFC3339)},
	}
	for i, kv := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), kv[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), kv[1])
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 22)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"needs_review", review,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func sources(m map[string]constants.Stage) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+string(m[k]))
	}
	return strings.Join(parts, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
