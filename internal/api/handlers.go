package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/hyperengineering/grantscan/internal/export"
	"github.com/hyperengineering/grantscan/internal/narrative"
	"github.com/hyperengineering/grantscan/internal/profile"
	"github.com/hyperengineering/grantscan/internal/report"
	"github.com/hyperengineering/grantscan/internal/scan"
	"github.com/hyperengineering/grantscan/internal/types"
	"github.com/hyperengineering/grantscan/internal/validation"
	"github.com/hyperengineering/grantscan/internal/wizard"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// GrantService reads the grant catalogue of the matching service.
type GrantService interface {
	GrantDetail(ctx context.Context, slug string) (*types.GrantDetail, error)
	ListGrants(ctx context.Context, page int, category string) (*types.GrantPage, error)
	SearchGrants(ctx context.Context, query string) (*types.GrantSearchResult, error)
	NewGrants(ctx context.Context) ([]types.Grant, error)
	Categories(ctx context.Context) ([]types.CategoryCount, error)
}

// Deps are the components a Handler serves.
type Deps struct {
	Wizard    *wizard.Controller
	Scans     *scan.Orchestrator
	Grants    GrantService
	Narrative *narrative.Writer
	Exporter  *export.Exporter
	APIKey    string
	Version   string
}

// Handler implements the API handlers
type Handler struct {
	wizard    *wizard.Controller
	scans     *scan.Orchestrator
	grants    GrantService
	narrative *narrative.Writer
	exporter  *export.Exporter
	apiKey    string
	version   string

	// summary caches the written narrative of the committed scan, keyed
	// by its request ID, so repeated report reads do not regenerate it.
	mu        sync.Mutex
	summaryID string
	summary   string
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		wizard:    d.Wizard,
		scans:     d.Scans,
		grants:    d.Grants,
		narrative: d.Narrative,
		exporter:  d.Exporter,
		apiKey:    d.APIKey,
		version:   d.Version,
	}
}

// WizardResponse is the questionnaire state as served.
type WizardResponse struct {
	CurrentStep int             `json:"current_step"`
	TotalSteps  int             `json:"total_steps"`
	StepTitle   string          `json:"step_title"`
	Progress    float64         `json:"progress"`
	Answered    []string        `json:"answered"`
	Profile     profile.Profile `json:"profile"`
}

// ScanStatusResponse is the scan lifecycle state as served. Report is
// present once a scan has succeeded and survives later failures.
type ScanStatusResponse struct {
	Status    scan.Status    `json:"status"`
	Error     string         `json:"error,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	InFlight  int            `json:"in_flight"`
	Report    *report.Report `json:"report,omitempty"`
}

// ExportResponse describes an archived report when JSON is requested.
type ExportResponse struct {
	Filename   string `json:"filename"`
	Bytes      int    `json:"bytes"`
	ArchiveKey string `json:"archive_key,omitempty"`
	ArchiveURL string `json:"archive_url,omitempty"`
	URLExpiry  string `json:"url_expiry,omitempty"`
}

type jumpRequest struct {
	Step int `json:"step"`
}

type emailRequest struct {
	Email string `json:"email"`
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:  "healthy",
		Version: h.version,
	})
}

// GetWizard handles GET /api/v1/wizard
func (h *Handler) GetWizard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.wizardResponse(h.wizard.Snapshot()))
}

// PatchProfile handles PATCH /api/v1/wizard/profile. The body is a JSON
// merge patch over the flat answer names; null clears an answer.
func (h *Handler) PatchProfile(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	patch, err := profile.DecodeMergePatch(data)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if errs := validation.ValidatePatch(patch); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Profile contains invalid answers", errs)
		return
	}

	state, _ := h.wizard.Reconcile(r.Context(), patch)
	writeJSON(w, http.StatusOK, h.wizardResponse(state))
}

// NextStep handles POST /api/v1/wizard/next
func (h *Handler) NextStep(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.wizardResponse(h.wizard.Advance(r.Context())))
}

// PrevStep handles POST /api/v1/wizard/back
func (h *Handler) PrevStep(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.wizardResponse(h.wizard.Retreat(r.Context())))
}

// JumpStep handles PUT /api/v1/wizard/step
func (h *Handler) JumpStep(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	state, err := h.wizard.JumpTo(r.Context(), req.Step)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.wizardResponse(state))
}

// ResetWizard handles POST /api/v1/wizard/reset
func (h *Handler) ResetWizard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.wizardResponse(h.wizard.Reset(r.Context())))
}

// SubmitScan handles POST /api/v1/scan. With ?auth=true the profile held
// by the signed-in account is scanned instead of the local answers.
func (h *Handler) SubmitScan(w http.ResponseWriter, r *http.Request) {
	auth, _ := strconv.ParseBool(r.URL.Query().Get("auth"))

	var (
		snap scan.Snapshot
		err  error
	)
	if auth {
		snap, err = h.scans.SubmitAuthenticated(r.Context())
	} else {
		snap, err = h.scans.Submit(r.Context(), h.wizard.Snapshot().Profile)
	}
	if err != nil {
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.scanResponse(r.Context(), snap))
}

// ScanStatus handles GET /api/v1/scan
func (h *Handler) ScanStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scanResponse(r.Context(), h.scans.Snapshot()))
}

// ClearScan handles DELETE /api/v1/scan
func (h *Handler) ClearScan(w http.ResponseWriter, r *http.Request) {
	h.scans.ClearResults()

	h.mu.Lock()
	h.summaryID, h.summary = "", ""
	h.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// GetReport handles GET /api/v1/report
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	snap := h.scans.Snapshot()
	if snap.Results == nil {
		WriteProblem(w, r, http.StatusNotFound, "No scan results; submit a scan first")
		return
	}
	writeJSON(w, http.StatusOK, h.buildReport(r.Context(), snap))
}

// GetGrant handles GET /api/v1/grants/{slug}
func (h *Handler) GetGrant(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if verr := validation.ValidateSlug("slug", slug); verr != nil {
		WriteProblemWithErrors(w, r, "Invalid grant slug", []validation.ValidationError{*verr})
		return
	}

	detail, err := h.grants.GrantDetail(r.Context(), slug)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// ListGrants handles GET /api/v1/grants?page=&category=
func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c := &validation.Collector{}

	page := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.Add(&validation.ValidationError{Field: "page", Message: "must be a positive integer"})
		}
		page = n
	}
	category := q.Get("category")
	c.Add(validation.ValidateCategory("category", category))

	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Invalid grant list query", c.Errors())
		return
	}

	res, err := h.grants.ListGrants(r.Context(), page, category)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SearchGrants handles GET /api/v1/grants/search?q=
func (h *Handler) SearchGrants(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if verr := validation.ValidateSearchQuery("q", query); verr != nil {
		WriteProblemWithErrors(w, r, "Invalid search query", []validation.ValidationError{*verr})
		return
	}

	res, err := h.grants.SearchGrants(r.Context(), query)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// NewGrants handles GET /api/v1/grants/new
func (h *Handler) NewGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.grants.NewGrants(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.NewGrantsResponse{Grants: grants})
}

// GrantCategories handles GET /api/v1/grants/categories
func (h *Handler) GrantCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.grants.Categories(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// ExportReport handles POST /api/v1/report/export. The PDF is returned
// as an attachment unless the client accepts only JSON, in which case the
// archive location is returned instead.
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	res, err := h.exporter.Fetch(r.Context(), h.wizard.Snapshot().Profile)
	if err != nil {
		MapError(w, r, err)
		return
	}

	if wantsJSON(r) {
		resp := ExportResponse{
			Filename:   res.Report.Filename,
			Bytes:      len(res.Report.Data),
			ArchiveKey: res.ArchiveKey,
			ArchiveURL: res.ArchiveURL,
		}
		if !res.URLExpiry.IsZero() {
			resp.URLExpiry = res.URLExpiry.UTC().Format(http.TimeFormat)
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	contentType := res.Report.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": res.Report.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Report.Data)))
	if res.ArchiveKey != "" {
		w.Header().Set("X-Archive-Key", res.ArchiveKey)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Report.Data); err != nil {
		slog.WarnContext(r.Context(), "report write failed", "error", err)
	}
}

// EmailReport handles POST /api/v1/report/email
func (h *Handler) EmailReport(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	resp, err := h.exporter.Email(r.Context(), req.Email, h.wizard.Snapshot().Profile)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) wizardResponse(s wizard.State) WizardResponse {
	answered := s.Profile.Answered()
	if answered == nil {
		answered = []string{}
	}
	return WizardResponse{
		CurrentStep: s.CurrentStep,
		TotalSteps:  s.TotalSteps,
		StepTitle:   wizard.StepTitle(s.CurrentStep),
		Progress:    s.Progress(),
		Answered:    answered,
		Profile:     s.Profile,
	}
}

func (h *Handler) scanResponse(ctx context.Context, snap scan.Snapshot) ScanStatusResponse {
	resp := ScanStatusResponse{
		Status:    snap.Status,
		Error:     snap.Err,
		RequestID: snap.RequestID,
		InFlight:  snap.InFlight,
	}
	if snap.Results != nil {
		rep := h.buildReport(ctx, snap)
		resp.Report = &rep
	}
	return resp
}

// buildReport derives the report for the committed results, filling in a
// written summary when the service sent none.
func (h *Handler) buildReport(ctx context.Context, snap scan.Snapshot) report.Report {
	// Results are shared with the orchestrator; only the copy is filled.
	results := *snap.Results
	if results.Summary == "" && h.narrative != nil {
		results.Summary = h.cachedSummary(ctx, snap.RequestID, &results)
	}
	return report.Build(&results)
}

func (h *Handler) cachedSummary(ctx context.Context, id string, results *types.ScanResponse) string {
	h.mu.Lock()
	if id != "" && id == h.summaryID {
		s := h.summary
		h.mu.Unlock()
		return s
	}
	h.mu.Unlock()

	h.narrative.Fill(ctx, h.wizard.Snapshot().Profile, results)

	h.mu.Lock()
	h.summaryID, h.summary = id, results.Summary
	h.mu.Unlock()
	return results.Summary
}

func wantsJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Accept"))
	return err == nil && mt == "application/json"
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return data, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := readBody(w, r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
