package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/cache"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/calculator"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/config"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/monitor"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/services"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:               "8081",
		MaxPrincipal:       decimal.NewFromInt(10_000_000),
		MaxMonthlyPayment:  decimal.NewFromInt(50_000),
		MaxAnnualRate:      decimal.NewFromInt(20),
		MaxYears:           50,
		CacheBackend:       "memory",
		RateLimitPerMinute: 1000,
		AllowedOrigins:     []string{"https://zinses-rechner.de"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	engine := calculator.New(cfg.Limits())
	store := cache.NewMemoryStore(cache.NewLRUCache[calculator.Result](100, time.Minute))

	srv := NewServer(Deps{
		Config:  cfg,
		Calc:    services.NewCalculationService(engine, store),
		Privacy: services.NewPrivacyService(repo, nil, 365*24*time.Hour),
		Storage: repo,
		Metrics: monitor.New(),
	})
	t.Cleanup(func() {
		srv.limiter.Stop()
		srv.cacheManager.Stop()
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestCalculate_CacheMissThenHit(t *testing.T) {
	srv := newTestServer(t, testConfig())
	body := `{"principal":10000,"monthly_payment":0,"annual_rate":4.0,"years":10,"compound_frequency":"yearly"}`

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/calculator/compound-interest", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("first request X-Cache = %q, want MISS", got)
	}

	var res calculationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.FinalAmount < 14802.43 || res.FinalAmount > 14802.45 {
		t.Errorf("FinalAmount = %v, want ~14802.44", res.FinalAmount)
	}
	if len(res.YearlyBreakdown) != 10 {
		t.Errorf("breakdown length = %d, want 10", len(res.YearlyBreakdown))
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/v1/calculator/compound-interest", body)
	if got := rr.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("second request X-Cache = %q, want HIT", got)
	}
}

func TestCalculate_ValidationError(t *testing.T) {
	srv := newTestServer(t, testConfig())
	body := `{"principal":-5,"annual_rate":4.0,"years":10,"compound_frequency":"yearly"}`

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/calculator/compound-interest", body)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body = %s", rr.Code, rr.Body.String())
	}

	var res struct {
		Error   string                  `json:"error"`
		Details []calculator.FieldError `json:"details"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Error != "Validierungsfehler" {
		t.Errorf("error = %q", res.Error)
	}
	if len(res.Details) != 1 || res.Details[0].Code != "INVALID_PRINCIPAL" {
		t.Errorf("details = %+v, want one INVALID_PRINCIPAL", res.Details)
	}
	if !strings.Contains(res.Details[0].Message, "Startkapital") {
		t.Errorf("message = %q, want German field message", res.Details[0].Message)
	}
}

func TestCalculate_UnknownFieldRejected(t *testing.T) {
	srv := newTestServer(t, testConfig())
	body := `{"principal":10000,"years":10,"compound_frequency":"yearly","rate":4}`

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/calculator/compound-interest", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown field", rr.Code)
	}
}

func TestCalculate_EmptyBody(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/calculator/compound-interest", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for empty body", rr.Code)
	}
}

func TestCalculate_DefaultFrequencyIsMonthly(t *testing.T) {
	srv := newTestServer(t, testConfig())
	body := `{"principal":10000,"annual_rate":0,"years":5}`

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/calculator/compound-interest", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var res calculationResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.FinalAmount != 10000 {
		t.Errorf("FinalAmount = %v, want 10000 at zero rate", res.FinalAmount)
	}
}

func TestLimits(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/calculator/limits", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var res limitsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.MaxPrincipal != 10_000_000 || res.MaxYears != 50 {
		t.Errorf("limits = %+v", res)
	}
	if len(res.SupportedFrequencies) != 3 {
		t.Errorf("frequencies = %v, want 3 entries", res.SupportedFrequencies)
	}

	// Second request served from the limits cache, same payload.
	rr2 := doJSON(t, srv, http.MethodGet, "/api/v1/calculator/limits", "")
	if rr2.Body.String() != rr.Body.String() {
		t.Error("cached limits differ from first response")
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t, testConfig())
	body := `{"principal":10000,"monthly_payment":100,"annual_rate":4.0,"years":2,"compound_frequency":"yearly"}`

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/export/csv", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	cd := rr.Header().Get("Content-Disposition")
	if !strings.Contains(cd, `attachment; filename="Zinseszins-Berechnung_10k-EUR_2Jahre_`) {
		t.Errorf("Content-Disposition = %q", cd)
	}

	out := rr.Body.String()
	if !strings.HasPrefix(out, "\uFEFF") {
		t.Error("CSV body missing UTF-8 BOM")
	}
	if !strings.Contains(out, "ZINSESZINS-BERECHNUNG ÜBERSICHT") {
		t.Error("CSV body missing overview block")
	}
}

func TestExportCSV_InvalidInput(t *testing.T) {
	srv := newTestServer(t, testConfig())
	body := `{"principal":0,"years":2,"compound_frequency":"yearly"}`

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/export/csv", body)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
}

func TestExportExcel(t *testing.T) {
	srv := newTestServer(t, testConfig())
	body := `{"principal":10000,"monthly_payment":100,"annual_rate":4.0,"years":2,"compound_frequency":"yearly"}`

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/export/excel", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Content-Type = %q", ct)
	}
	cd := rr.Header().Get("Content-Disposition")
	if !strings.Contains(cd, `attachment; filename="Zinseszins-Berechnung_10k-EUR_2Jahre_`) || !strings.Contains(cd, `.xlsx"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rr.Body.String(), "PK") {
		t.Error("body is not an xlsx archive")
	}
}

func TestExportPDF(t *testing.T) {
	srv := newTestServer(t, testConfig())
	body := `{"principal":10000,"monthly_payment":100,"annual_rate":4.0,"years":2,"compound_frequency":"yearly"}`

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/export/pdf", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	cd := rr.Header().Get("Content-Disposition")
	if !strings.Contains(cd, `.pdf"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.HasPrefix(rr.Body.String(), "%PDF") {
		t.Error("body is not a PDF document")
	}
}

func TestExportPDF_InvalidInput(t *testing.T) {
	srv := newTestServer(t, testConfig())
	body := `{"principal":0,"years":2,"compound_frequency":"yearly"}`

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/export/pdf", body)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
}

func TestExportFormats(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/export/formats", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var res struct {
		SupportedFormats []struct {
			Format   string `json:"format"`
			MimeType string `json:"mime_type"`
		} `json:"supported_formats"`
		MaxYearsInBreakdown int      `json:"max_years_in_breakdown"`
		SupportedLanguages  []string `json:"supported_languages"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	formats := make(map[string]string, len(res.SupportedFormats))
	for _, f := range res.SupportedFormats {
		formats[f.Format] = f.MimeType
	}
	if formats["csv"] != "text/csv" || formats["pdf"] != "application/pdf" {
		t.Errorf("formats = %v", formats)
	}
	if _, ok := formats["excel"]; !ok {
		t.Errorf("excel missing from formats: %v", formats)
	}
	if res.MaxYearsInBreakdown != 15 {
		t.Errorf("max_years_in_breakdown = %d, want 15", res.MaxYearsInBreakdown)
	}
	if len(res.SupportedLanguages) != 1 || res.SupportedLanguages[0] != "de" {
		t.Errorf("supported_languages = %v", res.SupportedLanguages)
	}
}

func TestExportPreview(t *testing.T) {
	srv := newTestServer(t, testConfig())
	body := `{"principal":10000,"monthly_payment":100,"annual_rate":4.0,"years":2,"compound_frequency":"yearly"}`

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/export/preview", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var res struct {
		Preview struct {
			Summary    map[string]string `json:"summary"`
			YearlyData []map[string]any  `json:"yearly_data"`
		} `json:"preview"`
		Metadata struct {
			TotalYears    int `json:"total_years"`
			SummaryFields int `json:"summary_fields"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Metadata.TotalYears != 2 {
		t.Errorf("total_years = %d, want 2", res.Metadata.TotalYears)
	}
	if got := res.Preview.Summary["Startkapital"]; got != "10.000,00 €" {
		t.Errorf("Summary[Startkapital] = %q", got)
	}
	if len(res.Preview.YearlyData) != 2 {
		t.Errorf("len(yearly_data) = %d, want 2", len(res.Preview.YearlyData))
	}
}

func TestExportSheets_NotConfigured(t *testing.T) {
	srv := newTestServer(t, testConfig())
	body := `{"principal":10000,"annual_rate":4.0,"years":2,"compound_frequency":"yearly"}`

	rr := doJSON(t, srv, http.MethodPost, "/api/v1/export/sheets", body)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 without sheets config", rr.Code)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	srv := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		rr := doJSON(t, srv, http.MethodGet, "/healthz", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rr.Code)
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rr.Header().Get("Retry-After"))
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/calculator/compound-interest", nil)
	req.Header.Set("Origin", "https://zinses-rechner.de")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://zinses-rechner.de" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestCORSUnknownOriginGetsNoHeaders(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unexpected CORS headers for unknown origin")
	}
}

func TestSuspiciousRequestBlocked(t *testing.T) {
	srv := newTestServer(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("User-Agent", "sqlmap/1.7")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for scanner user agent", rr.Code)
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rr := doJSON(t, srv, http.MethodGet, "/healthz", "")
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rr.Header().Get("Content-Security-Policy"); !strings.Contains(got, "default-src 'none'") {
		t.Errorf("CSP = %q", got)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rr := doJSON(t, srv, http.MethodGet, "/api/v1/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("/api/v1/health status = %d", rr.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "healthy" {
		t.Errorf("health = %v", health)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/v1/health/detailed", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("/api/v1/health/detailed status = %d", rr.Code)
	}
	var detailed map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &detailed); err != nil {
		t.Fatal(err)
	}
	if detailed["database"] != "ok" {
		t.Errorf("database = %v", detailed["database"])
	}
	if _, ok := detailed["cache"]; !ok {
		t.Error("detailed health missing cache stats")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
}

func TestRequestIDExposed(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rr := doJSON(t, srv, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if id := rr.Header().Get("X-Request-ID"); !strings.HasPrefix(id, "req_") {
		t.Errorf("X-Request-ID = %q, want req_ prefix", id)
	}
}
