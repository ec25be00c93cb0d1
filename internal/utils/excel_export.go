package utils

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"revintake/internal/models"
)

const intakeSheet = "Intake"

// CreateIntakeWorkbook создает Excel-книгу с заявками.
// Порядок колонок совпадает с CSV-экспортом.
func CreateIntakeWorkbook(records []models.IntakeRequest) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(intakeSheet)
	if err != nil {
		f.Close()
		return nil, err
	}

	// Заголовки
	for i, header := range ExportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(intakeSheet, cell, header)
	}

	// Данные
	for rowIdx, record := range records {
		row := RecordRow(record)
		for colIdx, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(intakeSheet, cell, value)
		}
	}

	// Ширина колонок
	for i := 1; i <= len(ExportColumns); i++ {
		colName, _ := excelize.ColumnNumberToName(i)
		f.SetColWidth(intakeSheet, colName, colName, 22)
	}

	// Подсветка заявок с высоким приоритетом
	if len(records) > 0 {
		scoreCol, _ := excelize.ColumnNumberToName(19)
		highPriorityRule := []excelize.ConditionalFormatOptions{
			{
				Type:     "cell",
				Criteria: ">=",
				Value:    "2.2",
				Format:   highlightStyle(f, "#FFF2CC"),
			},
		}
		rangeRef := fmt.Sprintf("%s2:%s%d", scoreCol, scoreCol, len(records)+1)
		if err := f.SetConditionalFormat(intakeSheet, rangeRef, highPriorityRule); err != nil {
			f.Close()
			return nil, err
		}
	}

	createInfoSheet(f, records)

	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	return f, nil
}

func createInfoSheet(f *excelize.File, records []models.IntakeRequest) {
	f.NewSheet("Info")

	quickWins := 0
	for _, r := range records {
		if r.IsQuickWin {
			quickWins++
		}
	}

	rows := [][2]interface{}{
		{"Report Generated", time.Now().UTC().Format("2006-01-02 15:04:05")},
		{"Total Requests", len(records)},
		{"Quick Wins", quickWins},
	}

	for i, kv := range rows {
		f.SetCellValue("Info", fmt.Sprintf("A%d", i+1), kv[0])
		f.SetCellValue("Info", fmt.Sprintf("B%d", i+1), kv[1])
	}
}

func highlightStyle(f *excelize.File, color string) *int {
	style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{color},
			Pattern: 1,
		},
	})
	if err != nil {
		return nil
	}
	return &style
}
