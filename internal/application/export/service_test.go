package export

import (
	"context"
	"errors"
	"strings"
	"testing"

	"aliada/ms_informes_qbo/internal/adapters/qbo"
	"aliada/ms_informes_qbo/internal/core/informe"
	"aliada/ms_informes_qbo/internal/core/report"
	"aliada/ms_informes_qbo/internal/core/vendor"
	"aliada/ms_informes_qbo/internal/testutil"
)

type mockClient struct {
	ReportFunc              func(ctx context.Context, name string, params map[string]string) (*report.Tree, error)
	ProfitAndLossDetailFunc func(ctx context.Context, p qbo.ProfitAndLossParams) (*report.Tree, error)
	TaxDetailFunc           func(ctx context.Context, startDate, endDate string) (*report.Tree, error)
	VendorsFunc             func(ctx context.Context) ([]vendor.Record, error)
	CustomersFunc           func(ctx context.Context) ([]qbo.Customer, error)
	AccountsFunc            func(ctx context.Context) ([]qbo.Account, error)
}

func (m *mockClient) Report(ctx context.Context, name string, params map[string]string) (*report.Tree, error) {
	return m.ReportFunc(ctx, name, params)
}

func (m *mockClient) ProfitAndLossDetail(ctx context.Context, p qbo.ProfitAndLossParams) (*report.Tree, error) {
	return m.ProfitAndLossDetailFunc(ctx, p)
}

func (m *mockClient) TaxDetail(ctx context.Context, startDate, endDate string) (*report.Tree, error) {
	return m.TaxDetailFunc(ctx, startDate, endDate)
}

func (m *mockClient) Vendors(ctx context.Context) ([]vendor.Record, error) {
	if m.VendorsFunc != nil {
		return m.VendorsFunc(ctx)
	}
	return nil, nil
}

func (m *mockClient) Customers(ctx context.Context) ([]qbo.Customer, error) {
	return m.CustomersFunc(ctx)
}

func (m *mockClient) Accounts(ctx context.Context) ([]qbo.Account, error) {
	if m.AccountsFunc != nil {
		return m.AccountsFunc(ctx)
	}
	return nil, nil
}

type mockRenderer struct {
	FlatTableFunc func(title string, table *report.FlatTable) ([]byte, error)
	InformeFunc   func(title string, sheets []informe.Sheet) ([]byte, error)
}

func (m *mockRenderer) RenderFlatTable(title string, table *report.FlatTable) ([]byte, error) {
	return m.FlatTableFunc(title, table)
}

func (m *mockRenderer) RenderInforme43(title string, sheets []informe.Sheet) ([]byte, error) {
	return m.InformeFunc(title, sheets)
}

func leafTree(cells ...string) *report.Tree {
	return &report.Tree{
		Columns: []report.Column{{Title: "Name", Type: "String"}},
		Nodes: []report.Node{
			report.Leaf{Kind: report.KindData, Cells: cells},
		},
	}
}

func TestGeneric_FetchesFlattensAndRenders(t *testing.T) {
	var gotEndpoint string
	var gotParams map[string]string
	var gotTitle string

	client := &mockClient{
		ReportFunc: func(_ context.Context, name string, params map[string]string) (*report.Tree, error) {
			gotEndpoint = name
			gotParams = params
			return leafTree("Sales"), nil
		},
	}
	renderer := &mockRenderer{
		FlatTableFunc: func(title string, table *report.FlatTable) ([]byte, error) {
			gotTitle = title
			if len(table.Rows) != 1 || table.Rows[0].Cell(0) != "Sales" {
				t.Errorf("unexpected flattened table: %+v", table.Rows)
			}
			return []byte("xlsx"), nil
		},
	}

	svc := NewService(client, renderer, testutil.NewNullLogger())

	data, err := svc.Generic(context.Background(), Params{
		ReportType: "balance_sheet",
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-31",
	})
	if err != nil {
		t.Fatalf("Generic: %v", err)
	}
	if string(data) != "xlsx" {
		t.Errorf("data = %q, want xlsx", data)
	}
	if gotEndpoint != "BalanceSheet" {
		t.Errorf("endpoint = %q, want BalanceSheet", gotEndpoint)
	}
	if gotParams["start_date"] != "2024-01-01" || gotParams["end_date"] != "2024-01-31" {
		t.Errorf("params = %v", gotParams)
	}
	if !strings.Contains(gotTitle, "Balance Sheet") {
		t.Errorf("title = %q, want report name included", gotTitle)
	}
}

func TestParseExcludedAccounts(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "single", raw: "Bancos", want: []string{"Bancos"}},
		{name: "trims and skips blanks", raw: " Bancos , ,Ventas,", want: []string{"Bancos", "Ventas"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseExcludedAccounts(tc.raw)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestGeneric_ExcludedAccountsDropDataRows(t *testing.T) {
	client := &mockClient{
		ReportFunc: func(context.Context, string, map[string]string) (*report.Tree, error) {
			return &report.Tree{
				Columns: []report.Column{{Title: "Cuenta", Type: "Account"}, {Title: "Total", Type: "Money"}},
				Nodes: []report.Node{
					report.Leaf{Kind: report.KindData, Cells: []string{"Bancos", "100.00"}},
					report.Leaf{Kind: report.KindData, Cells: []string{"Ventas", "250.00"}},
					report.Leaf{Kind: report.KindSummary, Cells: []string{"Bancos", "100.00"}},
				},
			}, nil
		},
	}

	var got *report.FlatTable
	renderer := &mockRenderer{
		FlatTableFunc: func(_ string, table *report.FlatTable) ([]byte, error) {
			got = table
			return []byte("xlsx"), nil
		},
	}

	svc := NewService(client, renderer, testutil.NewNullLogger())

	if _, err := svc.Generic(context.Background(), Params{
		ReportType:       "balance_sheet",
		StartDate:        "2024-01-01",
		EndDate:          "2024-01-31",
		ExcludedAccounts: []string{"Bancos"},
	}); err != nil {
		t.Fatalf("Generic: %v", err)
	}

	if len(got.Rows) != 2 {
		t.Fatalf("rows = %d, want 2: %+v", len(got.Rows), got.Rows)
	}
	if got.Rows[0].Cell(0) != "Ventas" {
		t.Errorf("first row = %q, want Ventas", got.Rows[0].Cell(0))
	}
	// Summary rows stay even when they name an excluded account.
	if got.Rows[1].Kind != report.KindSummary {
		t.Errorf("second row kind = %v, want summary", got.Rows[1].Kind)
	}
}

func TestGeneric_UnknownReportType(t *testing.T) {
	svc := NewService(&mockClient{}, &mockRenderer{}, testutil.NewNullLogger())

	_, err := svc.Generic(context.Background(), Params{
		ReportType: "cash_flow",
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-31",
	})
	if err == nil || !strings.Contains(err.Error(), "unknown report type") {
		t.Fatalf("err = %v, want unknown report type", err)
	}
}

func TestGeneric_DateValidation(t *testing.T) {
	svc := NewService(&mockClient{}, &mockRenderer{}, testutil.NewNullLogger())

	cases := []struct {
		name  string
		start string
		end   string
	}{
		{name: "missing start", start: "", end: "2024-01-31"},
		{name: "missing end", start: "2024-01-01", end: ""},
		{name: "inverted range", start: "2024-02-01", end: "2024-01-01"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Generic(context.Background(), Params{
				ReportType: "balance_sheet",
				StartDate:  tc.start,
				EndDate:    tc.end,
			})
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestInforme43ProfitAndLoss_PassesCustomerAndBuildsSingleSheet(t *testing.T) {
	var gotParams qbo.ProfitAndLossParams
	var gotSheets []informe.Sheet

	client := &mockClient{
		ProfitAndLossDetailFunc: func(_ context.Context, p qbo.ProfitAndLossParams) (*report.Tree, error) {
			gotParams = p
			return &report.Tree{}, nil
		},
		VendorsFunc: func(context.Context) ([]vendor.Record, error) {
			return []vendor.Record{{DisplayName: "ACME/2/1234567890/5"}}, nil
		},
	}
	renderer := &mockRenderer{
		InformeFunc: func(_ string, sheets []informe.Sheet) ([]byte, error) {
			gotSheets = sheets
			return []byte("wb"), nil
		},
	}

	svc := NewService(client, renderer, testutil.NewNullLogger())

	if _, err := svc.Informe43ProfitAndLoss(context.Background(), Params{
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-31",
		CustomerID: "42",
	}); err != nil {
		t.Fatalf("Informe43ProfitAndLoss: %v", err)
	}

	if gotParams.CustomerID != "42" || gotParams.StartDate != "2024-01-01" {
		t.Errorf("params = %+v", gotParams)
	}
	if len(gotSheets) != 1 || gotSheets[0].Name != "INFORME5" {
		t.Errorf("sheets = %+v, want single INFORME5", gotSheets)
	}
}

func TestInforme43TaxDetail_BuildsTwoSheets(t *testing.T) {
	var gotSheets []informe.Sheet

	client := &mockClient{
		TaxDetailFunc: func(_ context.Context, start, end string) (*report.Tree, error) {
			if start != "2024-01-01" || end != "2024-01-31" {
				t.Errorf("dates = %s..%s", start, end)
			}
			return &report.Tree{}, nil
		},
	}
	renderer := &mockRenderer{
		InformeFunc: func(_ string, sheets []informe.Sheet) ([]byte, error) {
			gotSheets = sheets
			return []byte("wb"), nil
		},
	}

	svc := NewService(client, renderer, testutil.NewNullLogger())

	if _, err := svc.Informe43TaxDetail(context.Background(), Params{
		StartDate: "2024-01-01",
		EndDate:   "2024-01-31",
	}); err != nil {
		t.Fatalf("Informe43TaxDetail: %v", err)
	}

	if len(gotSheets) != 2 || gotSheets[0].Name != "INFORME5" || gotSheets[1].Name != "INFORME6" {
		t.Errorf("sheets = %+v, want INFORME5 and INFORME6", gotSheets)
	}
}

func TestInforme43TaxDetail_VendorFetchFailure(t *testing.T) {
	wantErr := errors.New("quickbooks unavailable")

	client := &mockClient{
		VendorsFunc: func(context.Context) ([]vendor.Record, error) {
			return nil, wantErr
		},
	}

	svc := NewService(client, &mockRenderer{}, testutil.NewNullLogger())

	_, err := svc.Informe43TaxDetail(context.Background(), Params{
		StartDate: "2024-01-01",
		EndDate:   "2024-01-31",
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped vendor failure", err)
	}
}

func TestReportTypes_SortedAndComplete(t *testing.T) {
	types := ReportTypes()
	if len(types) != 6 {
		t.Fatalf("len = %d, want 6", len(types))
	}
	for i := 1; i < len(types); i++ {
		if types[i-1].Title > types[i].Title {
			t.Errorf("types not sorted at %d: %q > %q", i, types[i-1].Title, types[i].Title)
		}
	}
	if _, ok := LookupReportType("general_ledger"); !ok {
		t.Error("general_ledger missing from registry")
	}
}
