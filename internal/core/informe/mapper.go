package informe

import (
	"strconv"
	"strings"
	"time"

	"aliada/ms_informes_qbo/internal/core/report"
	"aliada/ms_informes_qbo/internal/core/vendor"
)

// columnMap holds the resolved column index per semantic role, -1 when the
// report has no such column.
type columnMap struct {
	date      int
	name      int
	invoice   int
	amount    int
	taxAmount int
	taxName   int
}

// resolveColumns locates the semantic roles in a report's column list.
// Titles are matched first (the reports come localized, so both English and
// Spanish spellings count), then the ColType is used as a fallback for the
// date and primary money column.
func resolveColumns(columns []report.Column) columnMap {
	cols := columnMap{date: -1, name: -1, invoice: -1, amount: -1, taxAmount: -1, taxName: -1}

	for i, c := range columns {
		title := strings.ToLower(c.Title)
		switch {
		case cols.date == -1 && (strings.Contains(title, "date") || strings.Contains(title, "fecha")):
			cols.date = i
		case cols.name == -1 && (strings.Contains(title, "name") || strings.Contains(title, "nombre")):
			cols.name = i
		case cols.invoice == -1 && (strings.Contains(title, "num") || strings.Contains(title, "no.") || strings.Contains(title, "doc")):
			cols.invoice = i
		case cols.amount == -1 && (strings.Contains(title, "taxable") || strings.Contains(title, "gravable")):
			cols.amount = i
		case cols.taxAmount == -1 && (strings.Contains(title, "tax amount") || strings.Contains(title, "impuesto")):
			cols.taxAmount = i
		case cols.taxName == -1 && (strings.Contains(title, "tax name") || strings.Contains(title, "tax code") || strings.Contains(title, "tasa")):
			cols.taxName = i
		case cols.amount == -1 && !strings.Contains(title, "tax") && !strings.Contains(title, "balance") &&
			(strings.Contains(title, "amount") || strings.Contains(title, "monto") || strings.Contains(title, "importe")):
			cols.amount = i
		}
	}

	for i, c := range columns {
		colType := strings.ToLower(c.Type)
		if cols.date == -1 && colType == "date" {
			cols.date = i
		}
		if cols.amount == -1 && colType == "money" && i != cols.taxAmount {
			cols.amount = i
		}
	}

	return cols
}

// MapProfitAndLoss derives INFORME 43 rows from a flattened Profit & Loss
// Detail report. Header and summary rows are skipped, rows with negative
// amounts are excluded, and repeated invoice references are suffixed.
func MapProfitAndLoss(table *report.FlatTable, vendors *vendor.Directory) []Row {
	cols := resolveColumns(table.Columns)

	var rows []Row
	for _, flat := range table.Rows {
		if flat.Kind != report.KindData {
			continue
		}

		row, ok := buildRow(flat, cols, vendors, OriginInforme5)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}

	return suffixRepeatedInvoices(rows)
}

// MapTaxDetail derives the Informe5/Informe6 split from a flattened Tax
// Detail report. A row with zero tax and an empty or exempt tax label lands
// in Informe6; everything else in Informe5. Exact duplicates are removed
// within each set, and an Informe6 row whose fields match an Informe5 row
// (ignoring origin) is dropped as already reported.
func MapTaxDetail(table *report.FlatTable, vendors *vendor.Directory) (taxed, untaxed []Row) {
	cols := resolveColumns(table.Columns)

	for _, flat := range table.Rows {
		if flat.Kind != report.KindData {
			continue
		}

		label := ""
		if cols.taxName >= 0 {
			label = flat.Cell(cols.taxName)
		}

		row, ok := buildRow(flat, cols, vendors, OriginInforme5)
		if !ok {
			continue
		}

		if row.TaxAmount == 0 && isUntaxedLabel(label) {
			row.Origin = OriginInforme6
			untaxed = append(untaxed, row)
		} else {
			taxed = append(taxed, row)
		}
	}

	taxed = dedupe(taxed)
	untaxed = dedupe(untaxed)
	untaxed = dropAlreadyTaxed(untaxed, taxed)

	combined := suffixRepeatedInvoices(append(append([]Row{}, taxed...), untaxed...))
	return combined[:len(taxed)], combined[len(taxed):]
}

// buildRow assembles one regulatory row from a flat report row. A vendor
// lookup miss degrades to empty tax fields; a negative amount or tax amount
// disqualifies the row entirely.
func buildRow(flat report.FlatRow, cols columnMap, vendors *vendor.Directory, origin Origin) (Row, bool) {
	displayName := ""
	if cols.name >= 0 {
		displayName = flat.Cell(cols.name)
	}

	parsed := vendor.ParseDisplayName(displayName)
	var record vendor.Record
	found := false
	if displayName != "" {
		record, found = vendors.Lookup(displayName)
		if found {
			parsed = vendor.ParseDisplayName(record.DisplayName)
		}
	}

	taxID := parsed.TaxID
	if taxID == "" && found {
		taxID = strings.TrimSpace(record.TaxIdentifier)
	}

	personType := parsed.PersonType
	if !parsed.Explicit {
		personType = vendor.ClassifyTaxID(taxID, parsed.Name)
	}

	concept, purchase := "", ""
	if found {
		concept, purchase = vendor.ConceptCodes(record.Notes)
	}

	amount, amountOK := parseAmount(cellAt(flat, cols.amount))
	taxAmount, taxOK := parseAmount(cellAt(flat, cols.taxAmount))
	if !amountOK || !taxOK {
		return Row{}, false
	}
	// Negative amounts are excluded from the regulatory export outright.
	if amount < 0 || taxAmount < 0 {
		return Row{}, false
	}

	return Row{
		PersonType:   personType,
		TaxID:        taxID,
		CheckDigit:   parsed.CheckDigit,
		Name:         parsed.Name,
		InvoiceRef:   strings.TrimSpace(cellAt(flat, cols.invoice)),
		Date:         NormalizeDate(cellAt(flat, cols.date)),
		ConceptCode:  concept,
		PurchaseCode: purchase,
		Amount:       amount,
		TaxAmount:    taxAmount,
		Origin:       origin,
	}, true
}

func cellAt(flat report.FlatRow, idx int) string {
	if idx < 0 {
		return ""
	}
	return flat.Cell(idx)
}

// parseAmount reads a report money cell. Empty cells count as zero;
// thousands separators are tolerated. Unparseable values disqualify the row.
func parseAmount(value string) (float64, bool) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
	if cleaned == "" {
		return 0, true
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

// isUntaxedLabel reports whether a tax-name label marks the row as exempt.
func isUntaxedLabel(label string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(label))
	if cleaned == "" {
		return true
	}
	return strings.Contains(cleaned, "exempt") ||
		strings.Contains(cleaned, "exento") ||
		strings.Contains(cleaned, "no tax") ||
		strings.Contains(cleaned, "sin impuesto")
}

// NormalizeDate converts the date shapes the reports produce into YYYYMMDD.
// Unparseable input yields an empty string, never an error.
func NormalizeDate(value string) string {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return ""
	}

	if len(cleaned) == 8 && isAllDigits(cleaned) {
		return cleaned
	}

	if t, err := time.Parse("2006-01-02", cleaned); err == nil {
		return t.Format("20060102")
	}

	if parts := strings.Split(cleaned, "/"); len(parts) == 3 {
		// Month-first is the report locale default; a first component past
		// 12 can only be a day.
		layout := "01/02/2006"
		if first, err := strconv.Atoi(parts[0]); err == nil && first > 12 {
			layout = "02/01/2006"
		}
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.Format("20060102")
		}
	}

	return ""
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// dedupe removes exact duplicates, keeping first occurrences in order.
func dedupe(rows []Row) []Row {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0:0]
	for _, row := range rows {
		key := row.fieldKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, row)
	}
	return out
}

// dropAlreadyTaxed removes untaxed rows whose transaction matches a taxed
// row: that purchase is already reported in Informe5.
func dropAlreadyTaxed(untaxed, taxed []Row) []Row {
	if len(untaxed) == 0 || len(taxed) == 0 {
		return untaxed
	}

	taxedKeys := make(map[string]struct{}, len(taxed))
	for _, row := range taxed {
		taxedKeys[row.transactionKey()] = struct{}{}
	}

	out := untaxed[:0:0]
	for _, row := range untaxed {
		if _, dup := taxedKeys[row.transactionKey()]; dup {
			continue
		}
		out = append(out, row)
	}
	return out
}

// suffixRepeatedInvoices keeps invoice references unique in the exported
// sheet: the Nth repeat of a reference gains N trailing "E"s.
func suffixRepeatedInvoices(rows []Row) []Row {
	seen := make(map[string]int, len(rows))
	for i := range rows {
		ref := rows[i].InvoiceRef
		if ref == "" {
			continue
		}
		count := seen[ref]
		seen[ref] = count + 1
		if count > 0 {
			rows[i].InvoiceRef = ref + strings.Repeat("E", count)
		}
	}
	return rows
}
