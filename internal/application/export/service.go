// Package export orchestrates report exports: fetch from QuickBooks,
// flatten, map when regulatory, and render to xlsx.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"aliada/ms_informes_qbo/internal/adapters/qbo"
	"aliada/ms_informes_qbo/internal/core/informe"
	"aliada/ms_informes_qbo/internal/core/report"
	"aliada/ms_informes_qbo/internal/core/vendor"
)

// ReportClient is the QuickBooks surface the service needs.
type ReportClient interface {
	Report(ctx context.Context, name string, params map[string]string) (*report.Tree, error)
	ProfitAndLossDetail(ctx context.Context, p qbo.ProfitAndLossParams) (*report.Tree, error)
	TaxDetail(ctx context.Context, startDate, endDate string) (*report.Tree, error)
	Vendors(ctx context.Context) ([]vendor.Record, error)
	Customers(ctx context.Context) ([]qbo.Customer, error)
	Accounts(ctx context.Context) ([]qbo.Account, error)
}

// Renderer turns mapped data into workbook bytes.
type Renderer interface {
	RenderFlatTable(title string, table *report.FlatTable) ([]byte, error)
	RenderInforme43(title string, sheets []informe.Sheet) ([]byte, error)
}

// ReportType describes one exportable QuickBooks report.
type ReportType struct {
	Key      string
	Endpoint string
	Title    string
}

// reportTypes lists the reports the generic export knows how to fetch.
var reportTypes = map[string]ReportType{
	"profit_and_loss":        {Key: "profit_and_loss", Endpoint: "ProfitAndLoss", Title: "Profit and Loss"},
	"profit_and_loss_detail": {Key: "profit_and_loss_detail", Endpoint: "ProfitAndLossDetail", Title: "Profit and Loss Detail"},
	"balance_sheet":          {Key: "balance_sheet", Endpoint: "BalanceSheet", Title: "Balance Sheet"},
	"trial_balance":          {Key: "trial_balance", Endpoint: "TrialBalance", Title: "Trial Balance"},
	"general_ledger":         {Key: "general_ledger", Endpoint: "GeneralLedger", Title: "General Ledger"},
	"tax_detail":             {Key: "tax_detail", Endpoint: "TaxDetail", Title: "Tax Detail"},
}

// ReportTypes returns the known report types sorted by title, for menus.
func ReportTypes() []ReportType {
	types := make([]ReportType, 0, len(reportTypes))
	for _, rt := range reportTypes {
		types = append(types, rt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Title < types[j].Title })
	return types
}

// LookupReportType resolves a form key to its report type.
func LookupReportType(key string) (ReportType, bool) {
	rt, ok := reportTypes[key]
	return rt, ok
}

// Service runs the export use cases.
type Service struct {
	client   ReportClient
	renderer Renderer
	log      *slog.Logger
}

// NewService creates an export service.
func NewService(client ReportClient, renderer Renderer, log *slog.Logger) *Service {
	return &Service{
		client:   client,
		renderer: renderer,
		log:      log,
	}
}

// Params are the shared inputs of every export.
type Params struct {
	ReportType       string
	StartDate        string
	EndDate          string
	CustomerID       string
	AccountingMethod string
	ExcludedAccounts []string
}

// ParseExcludedAccounts splits a comma-separated account list into clean
// entries: "5100, 5200,Utilities" becomes ["5100" "5200" "Utilities"].
func ParseExcludedAccounts(raw string) []string {
	var accounts []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			accounts = append(accounts, part)
		}
	}
	return accounts
}

func (p Params) validate() error {
	if p.StartDate == "" || p.EndDate == "" {
		return fmt.Errorf("start and end dates are required")
	}
	if p.EndDate < p.StartDate {
		return fmt.Errorf("end date %s is before start date %s", p.EndDate, p.StartDate)
	}
	return nil
}

// Generic exports any known report as a flattened styled workbook.
func (s *Service) Generic(ctx context.Context, p Params) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	rt, ok := LookupReportType(p.ReportType)
	if !ok {
		return nil, fmt.Errorf("unknown report type %q", p.ReportType)
	}

	params := map[string]string{
		"start_date": p.StartDate,
		"end_date":   p.EndDate,
	}
	if p.AccountingMethod != "" {
		params["accounting_method"] = p.AccountingMethod
	}

	tree, err := s.client.Report(ctx, rt.Endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rt.Endpoint, err)
	}

	table := excludeAccounts(report.Flatten(tree), p.ExcludedAccounts)
	title := fmt.Sprintf("%s %s a %s", rt.Title, p.StartDate, p.EndDate)

	s.log.Info("Generic report exported",
		"report", rt.Endpoint,
		"rows", len(table.Rows))

	return s.renderer.RenderFlatTable(title, table)
}

// Informe43ProfitAndLoss exports the purchase report built from the
// ProfitAndLossDetail transactions, optionally filtered by customer.
func (s *Service) Informe43ProfitAndLoss(ctx context.Context, p Params) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	directory, err := s.vendorDirectory(ctx)
	if err != nil {
		return nil, err
	}

	tree, err := s.client.ProfitAndLossDetail(ctx, qbo.ProfitAndLossParams{
		StartDate:        p.StartDate,
		EndDate:          p.EndDate,
		AccountingMethod: p.AccountingMethod,
		CustomerID:       p.CustomerID,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch ProfitAndLossDetail: %w", err)
	}

	table := excludeAccounts(report.Flatten(tree), p.ExcludedAccounts)
	rows := informe.MapProfitAndLoss(table, directory)

	s.log.Info("Informe 43 PyG exported", "rows", len(rows))

	return s.renderer.RenderInforme43("INFORME 43 - PyG", []informe.Sheet{
		{Name: "INFORME5", Rows: rows},
	})
}

// Informe43TaxDetail exports the ITBMS report split into taxed and
// untaxed sheets.
func (s *Service) Informe43TaxDetail(ctx context.Context, p Params) ([]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	directory, err := s.vendorDirectory(ctx)
	if err != nil {
		return nil, err
	}

	tree, err := s.client.TaxDetail(ctx, p.StartDate, p.EndDate)
	if err != nil {
		return nil, fmt.Errorf("fetch TaxDetail: %w", err)
	}

	table := excludeAccounts(report.Flatten(tree), p.ExcludedAccounts)
	taxed, untaxed := informe.MapTaxDetail(table, directory)

	s.log.Info("Informe 43 ITBMS exported",
		"taxed", len(taxed),
		"untaxed", len(untaxed))

	return s.renderer.RenderInforme43("INFORME 43 - ITBMS", []informe.Sheet{
		{Name: "INFORME5", Rows: taxed},
		{Name: "INFORME6", Rows: untaxed},
	})
}

// Customers lists customers for the report filter dropdown.
func (s *Service) Customers(ctx context.Context) ([]qbo.Customer, error) {
	return s.client.Customers(ctx)
}

// Accounts lists accounts for the exclusion selector.
func (s *Service) Accounts(ctx context.Context) ([]qbo.Account, error) {
	return s.client.Accounts(ctx)
}

// excludeAccounts returns the table without the data rows whose account
// cell matches an excluded entry. Header and summary rows always survive so
// the section structure stays intact.
func excludeAccounts(table *report.FlatTable, excluded []string) *report.FlatTable {
	if len(excluded) == 0 {
		return table
	}

	drop := make(map[string]struct{}, len(excluded))
	for _, name := range excluded {
		drop[strings.TrimSpace(name)] = struct{}{}
	}

	col := accountColumn(table.Columns)
	filtered := &report.FlatTable{Columns: table.Columns}
	for _, row := range table.Rows {
		if row.Kind == report.KindData {
			if _, skip := drop[strings.TrimSpace(row.Cell(col))]; skip {
				continue
			}
		}
		filtered.Rows = append(filtered.Rows, row)
	}
	return filtered
}

func accountColumn(cols []report.Column) int {
	for i, c := range cols {
		if c.Type == "Account" {
			return i
		}
	}
	for i, c := range cols {
		title := strings.ToLower(c.Title)
		if strings.Contains(title, "account") || strings.Contains(title, "cuenta") {
			return i
		}
	}
	return 0
}

func (s *Service) vendorDirectory(ctx context.Context) (*vendor.Directory, error) {
	records, err := s.client.Vendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch vendors: %w", err)
	}
	return vendor.NewDirectory(records), nil
}
