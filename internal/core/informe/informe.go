// Package informe builds the INFORME 43 regulatory rows out of flattened
// QuickBooks reports: person type, tax id, invoice, concept codes and
// amounts per transaction, split into the taxed (Informe5) and untaxed
// (Informe6) sub-reports.
package informe

import (
	"fmt"
	"strings"

	"aliada/ms_informes_qbo/internal/core/vendor"
)

// Origin tags which regulatory sub-report a row belongs to.
type Origin string

const (
	OriginInforme5 Origin = "INFORME5" // transactions carrying tax
	OriginInforme6 Origin = "INFORME6" // untaxed / exempt transactions
)

// Row is one INFORME 43 output row. Rows are derived per report row at
// export time and discarded after the workbook is written.
type Row struct {
	PersonType   vendor.PersonType
	TaxID        string
	CheckDigit   string
	Name         string
	InvoiceRef   string
	Date         string // YYYYMMDD, empty when the source date was unreadable
	ConceptCode  string
	PurchaseCode string
	Amount       float64
	TaxAmount    float64
	Origin       Origin
}

// Sheet groups the rows of one sub-report for rendering.
type Sheet struct {
	Name string
	Rows []Row
}

// fieldKey returns an equality key over every field except Origin, used to
// drop exact duplicates within one sub-report.
func (r Row) fieldKey() string {
	return r.transactionKey() + "\x1f" + fmt.Sprintf("%.2f", r.TaxAmount)
}

// transactionKey additionally ignores the tax amount. An untaxed row whose
// transaction matches a taxed one is the same purchase seen through both
// report groupings, not a second transaction.
func (r Row) transactionKey() string {
	return strings.Join([]string{
		string(r.PersonType),
		r.TaxID,
		r.CheckDigit,
		r.Name,
		r.InvoiceRef,
		r.Date,
		r.ConceptCode,
		r.PurchaseCode,
		fmt.Sprintf("%.2f", r.Amount),
	}, "\x1f")
}
