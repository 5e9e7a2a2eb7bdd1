package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"aliada/ms_informes_qbo/internal/adapters/qbo"
	"aliada/ms_informes_qbo/internal/application/export"
	"aliada/ms_informes_qbo/internal/core/credential"
)

const (
	paramsCookie = "report_params"
	paramsTTL    = 15 * time.Minute

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	reportInforme43PyG   = "informe43_pyg"
	reportInforme43ITBMS = "informe43_itbms"
)

// ExportService is the application surface the report pages need.
type ExportService interface {
	Generic(ctx context.Context, p export.Params) ([]byte, error)
	Informe43ProfitAndLoss(ctx context.Context, p export.Params) ([]byte, error)
	Informe43TaxDetail(ctx context.Context, p export.Params) ([]byte, error)
	Customers(ctx context.Context) ([]qbo.Customer, error)
	Accounts(ctx context.Context) ([]qbo.Account, error)
}

// ReportsHandler serves the report form, the run confirmation page and
// the xlsx downloads. Run parameters travel in a short-lived signed
// cookie so downloads stay GET requests.
type ReportsHandler struct {
	exports   ExportService
	secret    []byte
	templates *template.Template
	log       *slog.Logger
	now       func() time.Time
}

// NewReportsHandler creates the reports handler. The secret signs the
// run-parameters cookie.
func NewReportsHandler(exports ExportService, secret string, log *slog.Logger) (*ReportsHandler, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &ReportsHandler{
		exports:   exports,
		secret:    []byte(secret),
		templates: templates,
		log:       log,
		now:       time.Now,
	}, nil
}

type reportsPage struct {
	Connected   bool
	Customers   []qbo.Customer
	Accounts    []qbo.Account
	ReportTypes []export.ReportType
	Error       string
	Notice      string
}

// ReportsPage handles GET /reports.
func (h *ReportsHandler) ReportsPage(w http.ResponseWriter, r *http.Request) {
	page := reportsPage{
		Connected:   true,
		ReportTypes: export.ReportTypes(),
		Error:       r.URL.Query().Get("error"),
		Notice:      r.URL.Query().Get("notice"),
	}

	customers, err := h.exports.Customers(r.Context())
	switch {
	case errors.Is(err, credential.ErrNotConnected), errors.Is(err, qbo.ErrReconnectRequired):
		page.Connected = false
	case err != nil:
		h.log.Error("customer list failed", "error", err)
		if page.Error == "" {
			page.Error = "No fue posible cargar los clientes"
		}
	default:
		page.Customers = customers
	}

	if page.Connected {
		accounts, err := h.exports.Accounts(r.Context())
		if err != nil {
			h.log.Error("account list failed", "error", err)
		} else {
			page.Accounts = accounts
		}
	}

	render(w, h.templates, "reports.html", page, h.log)
}

type downloadPage struct {
	Title        string
	StartDate    string
	EndDate      string
	CustomerName string
	DownloadPath string
}

// RunReport handles POST /run-report: validates the form, stores the
// parameters in the signed cookie and shows the download page.
func (h *ReportsHandler) RunReport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectWithError(w, r, "Solicitud inválida")
		return
	}

	params := export.Params{
		ReportType:       r.PostFormValue("report_type"),
		StartDate:        r.PostFormValue("start_date"),
		EndDate:          r.PostFormValue("end_date"),
		CustomerID:       r.PostFormValue("customer_id"),
		AccountingMethod: r.PostFormValue("accounting_method"),
		ExcludedAccounts: export.ParseExcludedAccounts(strings.Join(r.PostForm["excluded_accounts"], ",")),
	}

	if err := validateRunParams(params); err != nil {
		redirectWithError(w, r, err.Error())
		return
	}

	if err := h.issueParams(w, params); err != nil {
		h.log.Error("params cookie issue failed", "error", err)
		redirectWithError(w, r, "Error interno")
		return
	}

	page := downloadPage{
		StartDate: params.StartDate,
		EndDate:   params.EndDate,
	}
	switch params.ReportType {
	case reportInforme43PyG:
		page.Title = "INFORME 43 - PyG"
		page.DownloadPath = "/download/informe43-pyg.xlsx"
	case reportInforme43ITBMS:
		page.Title = "INFORME 43 - ITBMS"
		page.DownloadPath = "/download/informe43-itbms.xlsx"
	default:
		rt, _ := export.LookupReportType(params.ReportType)
		page.Title = rt.Title
		page.DownloadPath = "/download/report.xlsx"
	}

	render(w, h.templates, "download.html", page, h.log)
}

// DownloadGeneric handles GET /download/report.xlsx.
func (h *ReportsHandler) DownloadGeneric(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, func(ctx context.Context, p export.Params) ([]byte, string, error) {
		data, err := h.exports.Generic(ctx, p)
		return data, fmt.Sprintf("reporte_%s_%s_%s.xlsx", p.ReportType, p.StartDate, p.EndDate), err
	})
}

// DownloadInformePyG handles GET /download/informe43-pyg.xlsx.
func (h *ReportsHandler) DownloadInformePyG(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, func(ctx context.Context, p export.Params) ([]byte, string, error) {
		data, err := h.exports.Informe43ProfitAndLoss(ctx, p)
		return data, fmt.Sprintf("informe43_pyg_%s_%s.xlsx", p.StartDate, p.EndDate), err
	})
}

// DownloadInformeITBMS handles GET /download/informe43-itbms.xlsx.
func (h *ReportsHandler) DownloadInformeITBMS(w http.ResponseWriter, r *http.Request) {
	h.download(w, r, func(ctx context.Context, p export.Params) ([]byte, string, error) {
		data, err := h.exports.Informe43TaxDetail(ctx, p)
		return data, fmt.Sprintf("informe43_itbms_%s_%s.xlsx", p.StartDate, p.EndDate), err
	})
}

func (h *ReportsHandler) download(w http.ResponseWriter, r *http.Request, run func(context.Context, export.Params) ([]byte, string, error)) {
	params, err := h.readParams(r)
	if err != nil {
		redirectWithError(w, r, "Los parámetros del reporte expiraron, genere de nuevo")
		return
	}

	data, filename, err := run(r.Context(), params)
	switch {
	case errors.Is(err, credential.ErrNotConnected), errors.Is(err, qbo.ErrReconnectRequired):
		redirectWithError(w, r, "Conecte la compañía de QuickBooks")
		return
	case err != nil:
		h.log.Error("report export failed", "report", params.ReportType, "error", err)
		redirectWithError(w, r, "No fue posible generar el reporte")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}

func validateRunParams(p export.Params) error {
	known := p.ReportType == reportInforme43PyG || p.ReportType == reportInforme43ITBMS
	if !known {
		if _, ok := export.LookupReportType(p.ReportType); !ok {
			return errors.New("Tipo de reporte desconocido")
		}
	}

	start, err := time.Parse("2006-01-02", p.StartDate)
	if err != nil {
		return errors.New("Fecha inicial inválida")
	}
	end, err := time.Parse("2006-01-02", p.EndDate)
	if err != nil {
		return errors.New("Fecha final inválida")
	}
	if end.Before(start) {
		return errors.New("La fecha final es anterior a la inicial")
	}
	return nil
}

type reportClaims struct {
	ReportType       string   `json:"report_type"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	CustomerID       string   `json:"customer_id,omitempty"`
	AccountingMethod string   `json:"accounting_method,omitempty"`
	ExcludedAccounts []string `json:"excluded_accounts,omitempty"`
	jwt.RegisteredClaims
}

func (h *ReportsHandler) issueParams(w http.ResponseWriter, p export.Params) error {
	now := h.now()
	claims := reportClaims{
		ReportType:       p.ReportType,
		StartDate:        p.StartDate,
		EndDate:          p.EndDate,
		CustomerID:       p.CustomerID,
		AccountingMethod: p.AccountingMethod,
		ExcludedAccounts: p.ExcludedAccounts,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(paramsTTL)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     paramsCookie,
		Value:    token,
		Path:     "/download",
		MaxAge:   int(paramsTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (h *ReportsHandler) readParams(r *http.Request) (export.Params, error) {
	cookie, err := r.Cookie(paramsCookie)
	if err != nil {
		return export.Params{}, errors.New("missing params cookie")
	}

	token, err := jwt.ParseWithClaims(cookie.Value, &reportClaims{},
		func(*jwt.Token) (any, error) { return h.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(h.now),
	)
	if err != nil || !token.Valid {
		return export.Params{}, fmt.Errorf("invalid params token: %w", err)
	}

	claims, ok := token.Claims.(*reportClaims)
	if !ok {
		return export.Params{}, errors.New("malformed params claims")
	}

	return export.Params{
		ReportType:       claims.ReportType,
		StartDate:        claims.StartDate,
		EndDate:          claims.EndDate,
		CustomerID:       claims.CustomerID,
		AccountingMethod: claims.AccountingMethod,
		ExcludedAccounts: claims.ExcludedAccounts,
	}, nil
}
