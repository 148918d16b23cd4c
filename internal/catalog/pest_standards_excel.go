package catalog

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"owl-haccp/internal/evaluator"
	"owl-haccp/internal/models"

	"github.com/xuri/excelize/v2"
)

// PestStandardSheet 防虫标准工作表名称
const PestStandardSheet = "Pest Standards"

// PestStandardHeader 导入/导出表头
var PestStandardHeader = []string{
	"Season",
	"Zone Grade",
	"Hazard Category",
	"Level",
	"Upper Limit",
	"Lower Limit",
}

// RowError 导入时某一行的错误（行号从 1 开始，含表头）
type RowError struct {
	Row    int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// ImportPestStandards 解析防虫标准 Excel（读取第一个工作表）
// 全部行解析成功后再构建一次矩阵，保证导入的是一份一致的快照
func ImportPestStandards(r io.Reader) ([]models.PestStandard, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Excel file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("Excel file has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheetName)
	}

	headerMap := make(map[string]int)
	for i, h := range rows[0] {
		headerMap[strings.TrimSpace(h)] = i
	}
	for _, h := range PestStandardHeader {
		if _, ok := headerMap[h]; !ok {
			return nil, fmt.Errorf("missing column %q", h)
		}
	}

	standards := make([]models.PestStandard, 0, len(rows)-1)
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		cell := func(header string) string {
			idx := headerMap[header]
			if idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		if isBlankRow(row) {
			continue
		}

		s, err := parseStandardRow(cell)
		if err != nil {
			return nil, &RowError{Row: rowIdx + 1, Reason: err.Error()}
		}
		standards = append(standards, s)
	}

	if _, err := evaluator.NewPestThresholdMatrix(standards); err != nil {
		return nil, err
	}

	return standards, nil
}

func parseStandardRow(cell func(string) string) (models.PestStandard, error) {
	var s models.PestStandard

	switch season := models.Season(strings.ToUpper(cell("Season"))); season {
	case models.SeasonWinter, models.SeasonSummer:
		s.Season = season
	default:
		return s, fmt.Errorf("unknown season %q", cell("Season"))
	}

	switch grade := models.ZoneGrade(strings.ToUpper(cell("Zone Grade"))); grade {
	case models.ZoneGradeClean, models.ZoneGradeGeneral:
		s.ZoneGrade = grade
	default:
		return s, fmt.Errorf("unknown zone grade %q", cell("Zone Grade"))
	}

	switch category := models.HazardCategory(strings.ToUpper(cell("Hazard Category"))); category {
	case models.HazardAirborne, models.HazardCrawling, models.HazardRodent:
		s.HazardCategory = category
	default:
		return s, fmt.Errorf("unknown hazard category %q", cell("Hazard Category"))
	}

	level, err := strconv.Atoi(cell("Level"))
	if err != nil || (level != 1 && level != 2) {
		return s, fmt.Errorf("level must be 1 or 2, got %q", cell("Level"))
	}
	s.Level = level

	if s.UpperLimit, err = strconv.Atoi(cell("Upper Limit")); err != nil {
		return s, fmt.Errorf("invalid upper limit %q", cell("Upper Limit"))
	}
	if lower := cell("Lower Limit"); lower != "" {
		if s.LowerLimit, err = strconv.Atoi(lower); err != nil {
			return s, fmt.Errorf("invalid lower limit %q", lower)
		}
	}

	return s, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ExportPestStandards 生成防虫标准 Excel（standards 为空时只生成表头，可作导入模板）
func ExportPestStandards(standards []models.PestStandard) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(PestStandardSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range PestStandardHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(PestStandardSheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(PestStandardSheet, cell, cell, headerStyle); err != nil {
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	for i, s := range standards {
		row := []interface{}{string(s.Season), string(s.ZoneGrade), string(s.HazardCategory), s.Level, s.UpperLimit, s.LowerLimit}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(PestStandardSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}
