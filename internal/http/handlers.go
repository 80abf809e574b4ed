package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/calculator"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/export"
	applog "github.com/17chuhai-dev/zinses-rechner-optimization/internal/log"
	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/services"
)

// handleCalculate runs a compound-interest projection. Validation failures
// return 422 with one entry per invalid field; the X-Cache header reports
// whether the result came from the cache.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var dto calculationRequest
	if err := decodeJSON(w, r, &dto); err != nil {
		apiError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := dto.toDomain()
	result, cacheHit, err := s.calc.Calculate(r.Context(), req)
	if err != nil {
		s.writeCalculationError(w, r, err)
		return
	}

	// Only the coarse request shape is logged, never the amounts.
	s.slogger.LogCalculationServed(r.Context(), req.Years, string(req.Frequency),
		cacheHit, time.Since(start).Milliseconds())

	if cacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, http.StatusOK, toResponse(result))
}

func (s *Server) writeCalculationError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErrs calculator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "Validierungsfehler",
			Message: "Bitte überprüfen Sie Ihre Eingaben",
			Details: fieldErrs,
		})
		return
	}
	if errors.Is(err, calculator.ErrInvalidInput) {
		apiError(w, http.StatusUnprocessableEntity, "Ungültige Eingabeparameter")
		return
	}

	s.slogger.LogError(r.Context(), "Calculation failed", err,
		applog.ComponentCalculator, applog.OpCalculate, applog.NewFields())
	apiError(w, http.StatusInternalServerError, "Berechnung fehlgeschlagen")
}

// handleLimits returns the configured parameter limits. The payload is
// static per process, so it is served from a tiny cache.
func (s *Server) handleLimits(w http.ResponseWriter, _ *http.Request) {
	const key = "limits"

	response, ok := s.limitsCache.Get(key)
	if !ok {
		limits := s.calc.Limits()
		frequencies := make([]string, len(calculator.Frequencies))
		for i, f := range calculator.Frequencies {
			frequencies[i] = string(f)
		}
		response = limitsResponse{
			MaxPrincipal:         limits.MaxPrincipal.InexactFloat64(),
			MaxMonthlyPayment:    limits.MaxMonthlyPayment.InexactFloat64(),
			MaxAnnualRate:        limits.MaxAnnualRate.InexactFloat64(),
			MaxYears:             limits.MaxYears,
			SupportedFrequencies: frequencies,
		}
		s.limitsCache.Set(key, response)
	}

	writeJSON(w, http.StatusOK, response)
}

// handleExportCSV computes the projection and streams it as a German CSV
// attachment. Nothing is persisted.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var dto calculationRequest
	if err := decodeJSON(w, r, &dto); err != nil {
		apiError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := dto.toDomain()
	result, _, err := s.calc.Calculate(r.Context(), req)
	if err != nil {
		s.writeCalculationError(w, r, err)
		return
	}

	now := time.Now()
	body := export.BuildCSV(req, result, now)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename("csv", req, now)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write CSV response", "error", err)
	}
}

// handleExportExcel computes the projection and streams it as an xlsx
// workbook attachment.
func (s *Server) handleExportExcel(w http.ResponseWriter, r *http.Request) {
	var dto calculationRequest
	if err := decodeJSON(w, r, &dto); err != nil {
		apiError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := dto.toDomain()
	result, _, err := s.calc.Calculate(r.Context(), req)
	if err != nil {
		s.writeCalculationError(w, r, err)
		return
	}

	now := time.Now()
	body, err := export.BuildExcel(req, result, now)
	if err != nil {
		slog.ErrorContext(r.Context(), "Excel export failed", "error", err)
		apiError(w, http.StatusInternalServerError, "Excel-Export fehlgeschlagen")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename("xlsx", req, now)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write Excel response", "error", err)
	}
}

// handleExportPDF computes the projection and streams it as a PDF report.
func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	var dto calculationRequest
	if err := decodeJSON(w, r, &dto); err != nil {
		apiError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := dto.toDomain()
	result, _, err := s.calc.Calculate(r.Context(), req)
	if err != nil {
		s.writeCalculationError(w, r, err)
		return
	}

	now := time.Now()
	body, err := export.BuildPDF(req, result, now)
	if err != nil {
		slog.ErrorContext(r.Context(), "PDF export failed", "error", err)
		apiError(w, http.StatusInternalServerError, "PDF-Export fehlgeschlagen")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename("pdf", req, now)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write PDF response", "error", err)
	}
}

// handleExportPreview returns the formatted export content without
// rendering a file.
func (s *Server) handleExportPreview(w http.ResponseWriter, r *http.Request) {
	var dto calculationRequest
	if err := decodeJSON(w, r, &dto); err != nil {
		apiError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := dto.toDomain()
	result, _, err := s.calc.Calculate(r.Context(), req)
	if err != nil {
		s.writeCalculationError(w, r, err)
		return
	}

	preview := export.BuildPreview(req, result, time.Now())
	writeJSON(w, http.StatusOK, map[string]any{
		"preview": preview,
		"metadata": map[string]any{
			"total_years":    len(preview.YearlyData),
			"summary_fields": len(preview.Summary),
		},
	})
}

// handleExportFormats describes the downloadable formats.
func (s *Server) handleExportFormats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"supported_formats": []map[string]any{
			{
				"format":      "csv",
				"name":        "CSV-Datei",
				"description": "Komma-getrennte Werte für Tabellenkalkulationen",
				"mime_type":   "text/csv",
				"extension":   ".csv",
				"features":    []string{"summary", "yearly_breakdown"},
			},
			{
				"format":      "excel",
				"name":        "Excel-Arbeitsmappe",
				"description": "Microsoft Excel-Datei mit mehreren Arbeitsblättern",
				"mime_type":   "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
				"extension":   ".xlsx",
				"features":    []string{"summary", "yearly_breakdown", "formulas", "formatting"},
			},
			{
				"format":      "pdf",
				"name":        "PDF-Bericht",
				"description": "Professioneller PDF-Bericht für Präsentationen",
				"mime_type":   "application/pdf",
				"extension":   ".pdf",
				"features":    []string{"summary", "yearly_breakdown", "formatting", "disclaimer"},
			},
		},
		"max_years_in_breakdown": export.MaxPDFYears,
		"supported_languages":    []string{"de"},
		"filename_pattern":       "Zinseszins-Berechnung_{principal}k-EUR_{years}Jahre_{date}.{extension}",
	})
}

// handleExportSheets appends the projection to the configured Google Sheet.
func (s *Server) handleExportSheets(w http.ResponseWriter, r *http.Request) {
	if s.sheets == nil {
		apiError(w, http.StatusServiceUnavailable, "Google Sheets Export ist nicht konfiguriert")
		return
	}

	var dto calculationRequest
	if err := decodeJSON(w, r, &dto); err != nil {
		apiError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := dto.toDomain()
	result, _, err := s.calc.Calculate(r.Context(), req)
	if err != nil {
		s.writeCalculationError(w, r, err)
		return
	}

	ref, err := s.sheets.Append(r.Context(), req, result, time.Now())
	if err != nil {
		slog.ErrorContext(r.Context(), "Sheets export failed", "error", err)
		apiError(w, http.StatusBadGateway, "Export nach Google Sheets fehlgeschlagen")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "exported",
		"updated_range": ref,
	})
}

func (s *Server) handleCookieConsent(w http.ResponseWriter, r *http.Request) {
	var dto consentRequest
	if err := decodeJSON(w, r, &dto); err != nil {
		apiError(w, http.StatusBadRequest, err.Error())
		return
	}
	if dto.ConsentVersion == "" {
		apiError(w, http.StatusUnprocessableEntity, "consent_version ist erforderlich")
		return
	}

	consent, err := s.privacy.RecordConsent(r.Context(),
		s.detector.ExtractClientIP(r), r.Header.Get("User-Agent"),
		services.ConsentRequest{
			Preferences:    dto.Preferences,
			ConsentVersion: dto.ConsentVersion,
			Language:       dto.Language,
		})
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to record consent", "error", err)
		apiError(w, http.StatusInternalServerError, "Einwilligung konnte nicht gespeichert werden")
		return
	}

	writeJSON(w, http.StatusOK, consent)
}

// handleDeleteUserData implements the DSGVO Art. 17 erasure request for the
// calling client.
func (s *Server) handleDeleteUserData(w http.ResponseWriter, r *http.Request) {
	result, err := s.privacy.DeleteUserData(r.Context(),
		s.detector.ExtractClientIP(r), r.Header.Get("User-Agent"))
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to delete user data", "error", err)
		apiError(w, http.StatusInternalServerError, "Löschung fehlgeschlagen")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "deleted",
		"consents_deleted":      result.ConsentsDeleted,
		"audit_rows_anonymized": result.AuditRowsAnonymized,
	})
}

// handleExportUserData implements the DSGVO Art. 20 data access request.
func (s *Server) handleExportUserData(w http.ResponseWriter, r *http.Request) {
	userData, err := s.privacy.ExportUserData(r.Context(),
		s.detector.ExtractClientIP(r), r.Header.Get("User-Agent"))
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to export user data", "error", err)
		apiError(w, http.StatusInternalServerError, "Datenexport fehlgeschlagen")
		return
	}

	writeJSON(w, http.StatusOK, userData)
}

func (s *Server) handleComplianceStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.privacy.Compliance(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to read compliance status", "error", err)
		apiError(w, http.StatusInternalServerError, "Status nicht verfügbar")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": s.metrics.Uptime().Seconds(),
	})
}

// handleHealthDetailed reports request metrics, cache effectiveness, rate
// limiter state and the non-secret parts of the configuration.
func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	dbStatus := "ok"
	if err := s.storage.Ping(r.Context()); err != nil {
		dbStatus = "unavailable"
	}

	cacheStats := s.calc.CacheStats()
	limiterMetrics := s.limiter.GetMetrics()
	detectorMetrics := s.detector.GetMetrics()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"database": dbStatus,
		"requests": s.metrics.Snapshot(),
		"cache": map[string]any{
			"hits":     cacheStats.Hits,
			"misses":   cacheStats.Misses,
			"size":     cacheStats.Size,
			"hit_rate": cacheStats.HitRate(),
		},
		"rate_limit": map[string]any{
			"limited_hits":   limiterMetrics.LimitedHits,
			"active_clients": limiterMetrics.ClientCount,
		},
		"security": map[string]any{
			"suspicious_requests": detectorMetrics.SuspiciousRequests,
		},
		"config": map[string]any{
			"cache_backend":         s.cfg.CacheBackend,
			"rate_limit_per_minute": s.cfg.RateLimitPerMinute,
			"allowed_origins":       s.cfg.AllowedOrigins,
			"sheets_configured":     s.sheets != nil,
		},
	})
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz reports readiness: the consent store must be reachable.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Ping(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
