// Package bomsheet handles branch BOM spreadsheets: the upload type guard,
// a fast-fail preview parse before the file is forwarded to the backend, and
// the downloadable import template.
package bomsheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var allowedExts = []string{".xls", ".xlsx"}

var allowedMIME = map[string]bool{
	"application/vnd.ms-excel": true, // .xls
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true, // .xlsx
}

// IsSpreadsheet reports whether a file is acceptable as a BOM upload. The
// extension check is authoritative; the MIME type is only consulted when the
// browser populated it, since many leave it empty.
func IsSpreadsheet(filename, mimeType string) bool {
	name := strings.ToLower(filename)
	extOK := false
	for _, ext := range allowedExts {
		if strings.HasSuffix(name, ext) {
			extOK = true
			break
		}
	}
	typeOK := mimeType == "" || allowedMIME[mimeType]
	return extOK && typeOK
}

// Line is one parsed row of a BOM sheet, prior to any backend validation.
type Line struct {
	ItemType         string  `json:"itemType"`
	DrawingNumber    string  `json:"drawingNumber"`
	ItemName         string  `json:"itemName"`
	Specification    string  `json:"specification"`
	UnitQuantity     float64 `json:"unitQuantity"`
	Unit             string  `json:"unit"`
	SuppliedMaterial bool    `json:"suppliedMaterial"`
}

// sheetHeaders is the template column order: item type, drawing number, item
// name, specification, unit quantity, unit, supplied-material flag.
var sheetHeaders = []string{"품목 구분", "도번", "품명", "규격", "단위 수량", "단위", "사급"}

// Preview parses the first sheet of an uploaded BOM workbook into lines,
// skipping the header row. Rows without a drawing number and item name are
// counted as skipped, not errors; the backend stays authoritative.
func Preview(r io.Reader) ([]Line, int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, 0, fmt.Errorf("read sheet: %w", err)
	}

	if len(rows) < 2 {
		return nil, 0, nil
	}

	var lines []Line
	skipped := 0
	for _, row := range rows[1:] {
		if len(row) < 3 || row[1] == "" || row[2] == "" {
			skipped++
			continue
		}

		line := Line{
			UnitQuantity: 1,
			Unit:         "EA",
		}
		line.ItemType = row[0]
		line.DrawingNumber = row[1]
		line.ItemName = row[2]
		if len(row) > 3 {
			line.Specification = row[3]
		}
		if len(row) > 4 {
			if q, err := strconv.ParseFloat(row[4], 64); err == nil {
				line.UnitQuantity = q
			}
		}
		if len(row) > 5 && row[5] != "" {
			line.Unit = row[5]
		}
		if len(row) > 6 {
			v := strings.TrimSpace(row[6])
			line.SuppliedMaterial = v == "O" || v == "Y" || v == "1" || strings.EqualFold(v, "true")
		}
		lines = append(lines, line)
	}

	return lines, skipped, nil
}

// Template generates the downloadable BOM import workbook.
func Template() (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "BOM"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})

	for i, h := range sheetHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	colWidths := []float64{12, 16, 24, 24, 10, 8, 8}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	return f, nil
}
