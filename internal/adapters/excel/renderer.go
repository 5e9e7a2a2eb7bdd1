// Package excel paints flattened reports and INFORME 43 rows into styled
// xlsx workbooks.
package excel

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"aliada/ms_informes_qbo/internal/core/informe"
	"aliada/ms_informes_qbo/internal/core/report"
)

// Built-in number formats: 4 = "#,##0.00", 49 = "@" (text).
const (
	moneyNumFmt = 4
	textNumFmt  = 49
)

// Renderer builds workbook bytes ready for download.
type Renderer struct {
	log *slog.Logger
}

// NewRenderer creates a workbook renderer.
func NewRenderer(log *slog.Logger) *Renderer {
	return &Renderer{log: log}
}

type styleSet struct {
	title  int
	header int
	group  int
	money  int
	text   int
}

func newStyleSet(f *excelize.File) (styleSet, error) {
	var s styleSet
	var err error

	if s.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	}); err != nil {
		return s, fmt.Errorf("title style: %w", err)
	}

	if s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	}); err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}

	if s.group, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	}); err != nil {
		return s, fmt.Errorf("group style: %w", err)
	}

	if s.money, err = f.NewStyle(&excelize.Style{NumFmt: moneyNumFmt}); err != nil {
		return s, fmt.Errorf("money style: %w", err)
	}

	if s.text, err = f.NewStyle(&excelize.Style{NumFmt: textNumFmt}); err != nil {
		return s, fmt.Errorf("text style: %w", err)
	}

	return s, nil
}

// RenderFlatTable writes a generic report export: a title row, the styled
// column header, and the flattened rows with section indentation.
func (r *Renderer) RenderFlatTable(title string, table *report.FlatTable) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	styles, err := newStyleSet(f)
	if err != nil {
		return nil, err
	}

	width := len(table.Columns)
	if width == 0 {
		width = 1
	}

	if err := writeTitle(f, sheet, title, width, styles.title); err != nil {
		return nil, err
	}

	for i, col := range table.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheet, cell, col.Title); err != nil {
			return nil, fmt.Errorf("write header cell: %w", err)
		}
	}
	if err := styleRow(f, sheet, 2, width, styles.header); err != nil {
		return nil, err
	}

	for rowIdx, flat := range table.Rows {
		excelRow := rowIdx + 3
		for colIdx, value := range flat.Cells {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, excelRow)

			if colIdx == 0 && flat.Level > 0 {
				value = strings.Repeat("    ", flat.Level) + value
			}

			if table.Columns[colIdx].Type == "Money" {
				if amount, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64); err == nil && value != "" {
					if err := f.SetCellValue(sheet, cell, amount); err != nil {
						return nil, fmt.Errorf("write money cell: %w", err)
					}
					if err := f.SetCellStyle(sheet, cell, cell, styles.money); err != nil {
						return nil, fmt.Errorf("style money cell: %w", err)
					}
					continue
				}
			}

			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("write cell: %w", err)
			}
		}

		if flat.Kind != report.KindData {
			if err := styleRow(f, sheet, excelRow, width, styles.group); err != nil {
				return nil, err
			}
		}
	}

	return workbookBytes(f)
}

// informeColumns is the INFORME 43 sheet layout. Identifier columns keep
// text formatting so leading zeros and dashes survive.
var informeColumns = []struct {
	title string
	text  bool
	money bool
}{
	{title: "TIPO PERSONA", text: true},
	{title: "RUC / CEDULA", text: true},
	{title: "DV", text: true},
	{title: "NOMBRE"},
	{title: "FACTURA", text: true},
	{title: "FECHA", text: true},
	{title: "CONCEPTO", text: true},
	{title: "COMPRA", text: true},
	{title: "MONTO", money: true},
	{title: "ITBMS", money: true},
}

// RenderInforme43 writes one workbook with one sheet per regulatory
// sub-report.
func (r *Renderer) RenderInforme43(title string, sheets []informe.Sheet) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newStyleSet(f)
	if err != nil {
		return nil, err
	}

	for i, sheetDef := range sheets {
		name := sheetDef.Name
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return nil, fmt.Errorf("add sheet: %w", err)
			}
		}

		if err := r.renderInformeSheet(f, name, title, sheetDef.Rows, styles); err != nil {
			return nil, err
		}
	}

	return workbookBytes(f)
}

func (r *Renderer) renderInformeSheet(f *excelize.File, sheet, title string, rows []informe.Row, styles styleSet) error {
	width := len(informeColumns)

	if err := writeTitle(f, sheet, fmt.Sprintf("%s - %s", title, sheet), width, styles.title); err != nil {
		return err
	}

	for i, col := range informeColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		if err := f.SetCellValue(sheet, cell, col.title); err != nil {
			return fmt.Errorf("write header cell: %w", err)
		}
	}
	if err := styleRow(f, sheet, 2, width, styles.header); err != nil {
		return err
	}

	for rowIdx, row := range rows {
		excelRow := rowIdx + 3
		values := []any{
			string(row.PersonType),
			row.TaxID,
			row.CheckDigit,
			row.Name,
			row.InvoiceRef,
			row.Date,
			row.ConceptCode,
			row.PurchaseCode,
			row.Amount,
			row.TaxAmount,
		}

		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, excelRow)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("write cell: %w", err)
			}

			style := 0
			switch {
			case informeColumns[colIdx].money:
				style = styles.money
			case informeColumns[colIdx].text:
				style = styles.text
			}
			if style != 0 {
				if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
					return fmt.Errorf("style cell: %w", err)
				}
			}
		}
	}

	r.log.Debug("Informe sheet rendered", "sheet", sheet, "rows", len(rows))
	return nil
}

func writeTitle(f *excelize.File, sheet, title string, width, style int) error {
	if err := f.SetCellValue(sheet, "A1", title); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", style); err != nil {
		return fmt.Errorf("style title: %w", err)
	}
	if width > 1 {
		last, _ := excelize.CoordinatesToCellName(width, 1)
		if err := f.MergeCell(sheet, "A1", last); err != nil {
			return fmt.Errorf("merge title: %w", err)
		}
	}
	return nil
}

func styleRow(f *excelize.File, sheet string, row, width, style int) error {
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(width, row)
	if err := f.SetCellStyle(sheet, first, last, style); err != nil {
		return fmt.Errorf("style row %d: %w", row, err)
	}
	return nil
}

func workbookBytes(f *excelize.File) ([]byte, error) {
	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buffer.Bytes(), nil
}
