package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hyperengineering/grantscan/internal/export"
	"github.com/hyperengineering/grantscan/internal/matchsvc"
	"github.com/hyperengineering/grantscan/internal/narrative"
	"github.com/hyperengineering/grantscan/internal/profile"
	"github.com/hyperengineering/grantscan/internal/report"
	"github.com/hyperengineering/grantscan/internal/scan"
	"github.com/hyperengineering/grantscan/internal/types"
	"github.com/hyperengineering/grantscan/internal/wizard"
)

// mockService stands in for the matching service.
type mockService struct {
	mu sync.Mutex

	scanResp  *types.ScanResponse
	scanErr   error
	scanned   []profile.Profile
	authCalls int

	detail    *types.GrantDetail
	detailErr error

	catalogueErr error
	listedPage   int
	listedCat    string
	searched     string

	report   *matchsvc.Report
	emailed  []string
	emailErr error
}

func (m *mockService) Scan(ctx context.Context, p profile.Profile) (*types.ScanResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanned = append(m.scanned, p)
	return m.scanResp, m.scanErr
}

func (m *mockService) ScanAuthenticated(ctx context.Context) (*types.ScanResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authCalls++
	return m.scanResp, m.scanErr
}

func (m *mockService) GrantDetail(ctx context.Context, slug string) (*types.GrantDetail, error) {
	return m.detail, m.detailErr
}

func (m *mockService) ListGrants(ctx context.Context, page int, category string) (*types.GrantPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listedPage, m.listedCat = page, category
	if m.catalogueErr != nil {
		return nil, m.catalogueErr
	}
	return &types.GrantPage{
		Grants:  []types.Grant{{Name: "Solar PV Grant", Slug: "solar-pv-grant", Category: "home_energy"}},
		Total:   1,
		Page:    page,
		PerPage: 20,
	}, nil
}

func (m *mockService) SearchGrants(ctx context.Context, query string) (*types.GrantSearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searched = query
	if m.catalogueErr != nil {
		return nil, m.catalogueErr
	}
	return &types.GrantSearchResult{
		Results: []types.Grant{{Name: "Heat Pump Grant", Slug: "heat-pump-grant"}},
		Total:   1,
	}, nil
}

func (m *mockService) NewGrants(ctx context.Context) ([]types.Grant, error) {
	if m.catalogueErr != nil {
		return nil, m.catalogueErr
	}
	return []types.Grant{{Name: "EV Home Charger Grant", Slug: "ev-home-charger-grant"}}, nil
}

func (m *mockService) Categories(ctx context.Context) ([]types.CategoryCount, error) {
	if m.catalogueErr != nil {
		return nil, m.catalogueErr
	}
	return []types.CategoryCount{
		{Category: "home_energy", Label: "Home Energy", Count: 7},
		{Category: "welfare", Label: "Welfare & Social", Count: 12},
	}, nil
}

func (m *mockService) DownloadReport(ctx context.Context, p profile.Profile) (*matchsvc.Report, error) {
	r := *m.report
	return &r, nil
}

func (m *mockService) EmailReport(ctx context.Context, email string, p profile.Profile) (*types.EmailReportResponse, error) {
	if m.emailErr != nil {
		return nil, m.emailErr
	}
	m.emailed = append(m.emailed, email)
	return &types.EmailReportResponse{Status: types.DeliveryPending, Message: "Report queued"}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func amount(v float64) *float64 { return &v }

func sampleScan() *types.ScanResponse {
	return &types.ScanResponse{
		TotalGrantsFound:    2,
		TotalPotentialValue: 9800,
		Categories: []types.CategoryResult{
			{
				Category: "home_energy",
				Grants: []types.GrantMatch{
					{Name: "Better Energy Homes", Slug: "better-energy-homes", Category: "home_energy",
						MatchType: types.ConfidenceEligible, MaxAmount: amount(8000)},
				},
			},
			{
				Category: "tax_relief",
				Grants: []types.GrantMatch{
					{Name: "Home Carer Tax Credit", Slug: "home-carer-tax-credit", Category: "tax_relief",
						MatchType: types.ConfidenceLikely, MaxAmount: amount(1800)},
				},
			},
		},
	}
}

func newTestHandler(svc *mockService, apiKey string) *Handler {
	logger := quietLogger()
	return NewHandler(Deps{
		Wizard:    wizard.New(wizard.WithLogger(logger)),
		Scans:     scan.New(svc, scan.WithLogger(logger)),
		Grants:    svc,
		Narrative: narrative.NewWriter(nil, logger),
		Exporter:  export.New(svc, nil, "default", logger),
		APIKey:    apiKey,
		Version:   "1.2.3",
	})
}

func serve(h *Handler, method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to unmarshal response: %v (body %s)", err, w.Body.String())
	}
}

// --- Health ---

func TestHealth_NoAuthRequired(t *testing.T) {
	h := newTestHandler(&mockService{}, testAPIKey)

	w := serve(h, http.MethodGet, "/api/v1/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp types.HealthResponse
	decode(t, w, &resp)
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Version != "1.2.3" {
		t.Errorf("version = %q, want 1.2.3", resp.Version)
	}
}

func TestProtectedRoutes_RequireKey(t *testing.T) {
	h := newTestHandler(&mockService{}, testAPIKey)

	w := serve(h, http.MethodGet, "/api/v1/wizard", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wizard", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w = httptest.NewRecorder()
	NewRouter(h).ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("status with key = %d, want %d", w.Code, http.StatusOK)
	}
}

// --- Wizard ---

func TestGetWizard_Initial(t *testing.T) {
	h := newTestHandler(&mockService{}, "")

	w := serve(h, http.MethodGet, "/api/v1/wizard", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp WizardResponse
	decode(t, w, &resp)
	if resp.CurrentStep != 1 || resp.TotalSteps != wizard.TotalSteps {
		t.Errorf("step = %d/%d, want 1/%d", resp.CurrentStep, resp.TotalSteps, wizard.TotalSteps)
	}
	if resp.StepTitle != "About You" {
		t.Errorf("step_title = %q, want About You", resp.StepTitle)
	}
	if resp.Progress != 0 {
		t.Errorf("progress = %v, want 0", resp.Progress)
	}
	if resp.Answered == nil || len(resp.Answered) != 0 {
		t.Errorf("answered = %v, want empty array", resp.Answered)
	}
}

func TestWizardNavigation(t *testing.T) {
	h := newTestHandler(&mockService{}, "")

	serve(h, http.MethodPost, "/api/v1/wizard/next", "")
	w := serve(h, http.MethodPost, "/api/v1/wizard/next", "")
	var resp WizardResponse
	decode(t, w, &resp)
	if resp.CurrentStep != 3 {
		t.Errorf("after two next: step = %d, want 3", resp.CurrentStep)
	}

	w = serve(h, http.MethodPost, "/api/v1/wizard/back", "")
	decode(t, w, &resp)
	if resp.CurrentStep != 2 {
		t.Errorf("after back: step = %d, want 2", resp.CurrentStep)
	}

	w = serve(h, http.MethodPut, "/api/v1/wizard/step", `{"step": 7}`)
	decode(t, w, &resp)
	if resp.CurrentStep != 7 || resp.Progress != 100 {
		t.Errorf("after jump: step = %d progress = %v, want 7 and 100", resp.CurrentStep, resp.Progress)
	}

	w = serve(h, http.MethodPost, "/api/v1/wizard/next", "")
	decode(t, w, &resp)
	if resp.CurrentStep != 7 {
		t.Errorf("next on last step: step = %d, want 7", resp.CurrentStep)
	}
}

func TestJumpStep_OutOfRange(t *testing.T) {
	h := newTestHandler(&mockService{}, "")

	w := serve(h, http.MethodPut, "/api/v1/wizard/step", `{"step": 8}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	if got := h.wizard.Snapshot().CurrentStep; got != 1 {
		t.Errorf("step changed to %d on rejected jump", got)
	}
}

func TestJumpStep_InvalidJSON(t *testing.T) {
	h := newTestHandler(&mockService{}, "")

	w := serve(h, http.MethodPut, "/api/v1/wizard/step", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestPatchProfile_SetsAndClears(t *testing.T) {
	h := newTestHandler(&mockService{}, "")

	w := serve(h, http.MethodPatch, "/api/v1/wizard/profile",
		`{"age": 34, "county": "Cork", "has_children": true, "num_children": 2}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}

	p := h.wizard.Snapshot().Profile
	if p.Age == nil || *p.Age != 34 {
		t.Errorf("age = %v, want 34", p.Age)
	}
	if p.NumChildren == nil || *p.NumChildren != 2 {
		t.Errorf("num_children = %v, want 2", p.NumChildren)
	}

	w = serve(h, http.MethodPatch, "/api/v1/wizard/profile", `{"county": null}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	p = h.wizard.Snapshot().Profile
	if p.County != nil {
		t.Errorf("county = %v, want cleared", *p.County)
	}
	if p.Age == nil {
		t.Error("age was cleared by an unrelated patch")
	}
}

func TestPatchProfile_ClearsDependentAnswers(t *testing.T) {
	h := newTestHandler(&mockService{}, "")

	serve(h, http.MethodPatch, "/api/v1/wizard/profile", `{"has_children": true, "num_children": 3}`)
	w := serve(h, http.MethodPatch, "/api/v1/wizard/profile", `{"has_children": false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	p := h.wizard.Snapshot().Profile
	if p.NumChildren != nil {
		t.Errorf("num_children = %d, want cleared once has_children is false", *p.NumChildren)
	}
}

func TestPatchProfile_UnknownField(t *testing.T) {
	h := newTestHandler(&mockService{}, "")

	w := serve(h, http.MethodPatch, "/api/v1/wizard/profile", `{"shoe_size": 44}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestPatchProfile_InvalidValues(t *testing.T) {
	h := newTestHandler(&mockService{}, "")

	w := serve(h, http.MethodPatch, "/api/v1/wizard/profile", `{"age": 7, "home_status": "castle"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}

	var p ProblemWithErrors
	decode(t, w, &p)
	if len(p.Errors) != 2 {
		t.Errorf("errors = %v, want two field errors", p.Errors)
	}
	if !h.wizard.Snapshot().Profile.IsEmpty() {
		t.Error("rejected patch was applied")
	}
}

func TestResetWizard(t *testing.T) {
	h := newTestHandler(&mockService{}, "")

	serve(h, http.MethodPatch, "/api/v1/wizard/profile", `{"age": 40}`)
	serve(h, http.MethodPost, "/api/v1/wizard/next", "")
	w := serve(h, http.MethodPost, "/api/v1/wizard/reset", "")

	var resp WizardResponse
	decode(t, w, &resp)
	if resp.CurrentStep != 1 {
		t.Errorf("step = %d, want 1", resp.CurrentStep)
	}
	if len(resp.Answered) != 0 {
		t.Errorf("answered = %v, want none", resp.Answered)
	}
}

// --- Scan and report ---

func TestSubmitScan_SendsCurrentProfile(t *testing.T) {
	svc := &mockService{scanResp: sampleScan()}
	h := newTestHandler(svc, "")

	serve(h, http.MethodPatch, "/api/v1/wizard/profile", `{"age": 34}`)
	w := serve(h, http.MethodPost, "/api/v1/scan", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}

	if len(svc.scanned) != 1 || svc.scanned[0].Age == nil || *svc.scanned[0].Age != 34 {
		t.Fatalf("scanned profiles = %+v, want one with age 34", svc.scanned)
	}

	var resp ScanStatusResponse
	decode(t, w, &resp)
	if resp.Status != scan.StatusSuccess {
		t.Errorf("status = %q, want success", resp.Status)
	}
	if resp.RequestID == "" {
		t.Error("request_id is empty")
	}
	if resp.Report == nil {
		t.Fatal("report missing after successful scan")
	}
	if len(resp.Report.Categories) != 2 {
		t.Errorf("categories = %d, want 2", len(resp.Report.Categories))
	}
}

func TestSubmitScan_Authenticated(t *testing.T) {
	svc := &mockService{scanResp: sampleScan()}
	h := newTestHandler(svc, "")

	w := serve(h, http.MethodPost, "/api/v1/scan?auth=true", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if svc.authCalls != 1 || len(svc.scanned) != 0 {
		t.Errorf("auth calls = %d anonymous = %d, want 1 and 0", svc.authCalls, len(svc.scanned))
	}
}

func TestSubmitScan_FillsMissingSummary(t *testing.T) {
	svc := &mockService{scanResp: sampleScan()}
	h := newTestHandler(svc, "")

	w := serve(h, http.MethodPost, "/api/v1/scan", "")
	var resp ScanStatusResponse
	decode(t, w, &resp)

	if !strings.HasPrefix(resp.Report.Summary, "Based on your profile, we found 2 grants") {
		t.Errorf("summary = %q, want the template summary", resp.Report.Summary)
	}
	if svc.scanResp.Summary != "" {
		t.Error("committed results were modified")
	}
}

func TestSubmitScan_KeepsServiceSummary(t *testing.T) {
	resp := sampleScan()
	resp.Summary = "Written by the service."
	h := newTestHandler(&mockService{scanResp: resp}, "")

	w := serve(h, http.MethodPost, "/api/v1/scan", "")
	var got ScanStatusResponse
	decode(t, w, &got)
	if got.Report.Summary != "Written by the service." {
		t.Errorf("summary = %q, want the service summary", got.Report.Summary)
	}
}

func TestSubmitScan_FailureKeepsPriorResults(t *testing.T) {
	svc := &mockService{scanResp: sampleScan()}
	h := newTestHandler(svc, "")

	serve(h, http.MethodPost, "/api/v1/scan", "")

	svc.scanErr = &matchsvc.ServiceError{Op: "scan", StatusCode: 500, Detail: "matching engine down"}
	w := serve(h, http.MethodPost, "/api/v1/scan", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	w = serve(h, http.MethodGet, "/api/v1/scan", "")
	var resp ScanStatusResponse
	decode(t, w, &resp)
	if resp.Status != scan.StatusError {
		t.Errorf("status = %q, want error", resp.Status)
	}
	if resp.Error != "matching engine down" {
		t.Errorf("error = %q, want service detail", resp.Error)
	}
	if resp.Report == nil {
		t.Error("prior report was dropped by a failed scan")
	}
}

func TestScanStatus_Idle(t *testing.T) {
	h := newTestHandler(&mockService{}, "")

	w := serve(h, http.MethodGet, "/api/v1/scan", "")
	var resp ScanStatusResponse
	decode(t, w, &resp)
	if resp.Status != scan.StatusIdle {
		t.Errorf("status = %q, want idle", resp.Status)
	}
	if resp.Report != nil {
		t.Error("report present before any scan")
	}
}

func TestClearScan(t *testing.T) {
	h := newTestHandler(&mockService{scanResp: sampleScan()}, "")

	serve(h, http.MethodPost, "/api/v1/scan", "")
	w := serve(h, http.MethodDelete, "/api/v1/scan", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}

	w = serve(h, http.MethodGet, "/api/v1/report", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("report after clear: status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetReport(t *testing.T) {
	h := newTestHandler(&mockService{scanResp: sampleScan()}, "")
	serve(h, http.MethodPost, "/api/v1/scan", "")

	w := serve(h, http.MethodGet, "/api/v1/report", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var rep report.Report
	decode(t, w, &rep)
	if rep.TotalPotentialValue != 9800 {
		t.Errorf("total = %v, want 9800", rep.TotalPotentialValue)
	}
	if rep.Categories[0].TotalValue != 8000 {
		t.Errorf("first category total = %v, want 8000", rep.Categories[0].TotalValue)
	}
	if rep.Summary == "" {
		t.Error("summary missing")
	}
}

// --- Grants ---

func TestGetGrant(t *testing.T) {
	svc := &mockService{detail: &types.GrantDetail{Grant: types.Grant{Name: "Fuel Allowance", Slug: "fuel-allowance"}}}
	h := newTestHandler(svc, "")

	w := serve(h, http.MethodGet, "/api/v1/grants/fuel-allowance", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var detail types.GrantDetail
	decode(t, w, &detail)
	if detail.Grant.Name != "Fuel Allowance" {
		t.Errorf("name = %q, want Fuel Allowance", detail.Grant.Name)
	}
}

func TestGetGrant_InvalidSlug(t *testing.T) {
	h := newTestHandler(&mockService{}, "")

	w := serve(h, http.MethodGet, "/api/v1/grants/Fuel_Allowance", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestGetGrant_NotFound(t *testing.T) {
	svc := &mockService{detailErr: &matchsvc.ServiceError{Op: "grant detail", StatusCode: 404, Detail: "Grant not found"}}
	h := newTestHandler(svc, "")

	w := serve(h, http.MethodGet, "/api/v1/grants/no-such-grant", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// --- Grant catalogue ---

func TestListGrants(t *testing.T) {
	svc := &mockService{}
	h := newTestHandler(svc, "")

	w := serve(h, http.MethodGet, "/api/v1/grants?page=3&category=home_energy", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}
	if svc.listedPage != 3 || svc.listedCat != "home_energy" {
		t.Errorf("service called with page %d category %q", svc.listedPage, svc.listedCat)
	}

	var page types.GrantPage
	decode(t, w, &page)
	if page.Page != 3 || len(page.Grants) != 1 {
		t.Errorf("page = %+v", page)
	}
}

func TestListGrants_DefaultsToFirstPage(t *testing.T) {
	svc := &mockService{}
	h := newTestHandler(svc, "")

	w := serve(h, http.MethodGet, "/api/v1/grants", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if svc.listedPage != 1 || svc.listedCat != "" {
		t.Errorf("service called with page %d category %q, want 1 and none", svc.listedPage, svc.listedCat)
	}
}

func TestListGrants_InvalidQuery(t *testing.T) {
	tests := []struct {
		name   string
		target string
		fields []string
	}{
		{"page zero", "/api/v1/grants?page=0", []string{"page"}},
		{"page not a number", "/api/v1/grants?page=two", []string{"page"}},
		{"bad category", "/api/v1/grants?category=Home%20Energy", []string{"category"}},
		{"both", "/api/v1/grants?page=-1&category=../x", []string{"page", "category"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{}
			w := serve(newTestHandler(svc, ""), http.MethodGet, tt.target, "")
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
			}

			var problem ProblemWithErrors
			decode(t, w, &problem)
			if len(problem.Errors) != len(tt.fields) {
				t.Fatalf("errors = %+v, want fields %v", problem.Errors, tt.fields)
			}
			for i, f := range tt.fields {
				if problem.Errors[i].Field != f {
					t.Errorf("errors[%d].Field = %q, want %q", i, problem.Errors[i].Field, f)
				}
			}
			if svc.listedPage != 0 {
				t.Error("service called for an invalid query")
			}
		})
	}
}

func TestSearchGrants(t *testing.T) {
	svc := &mockService{}
	h := newTestHandler(svc, "")

	w := serve(h, http.MethodGet, "/api/v1/grants/search?q=heat+pump", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if svc.searched != "heat pump" {
		t.Errorf("searched %q, want heat pump", svc.searched)
	}

	var res types.GrantSearchResult
	decode(t, w, &res)
	if res.Total != 1 || res.Results[0].Slug != "heat-pump-grant" {
		t.Errorf("result = %+v", res)
	}
}

func TestSearchGrants_QueryTooShort(t *testing.T) {
	svc := &mockService{}
	w := serve(newTestHandler(svc, ""), http.MethodGet, "/api/v1/grants/search?q=a", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	if svc.searched != "" {
		t.Error("service called for a one-letter query")
	}
}

func TestNewGrants(t *testing.T) {
	w := serve(newTestHandler(&mockService{}, ""), http.MethodGet, "/api/v1/grants/new", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var res types.NewGrantsResponse
	decode(t, w, &res)
	if len(res.Grants) != 1 || res.Grants[0].Slug != "ev-home-charger-grant" {
		t.Errorf("grants = %+v", res.Grants)
	}
}

func TestGrantCategories(t *testing.T) {
	w := serve(newTestHandler(&mockService{}, ""), http.MethodGet, "/api/v1/grants/categories", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var cats []types.CategoryCount
	decode(t, w, &cats)
	if len(cats) != 2 || cats[1].Category != "welfare" || cats[1].Count != 12 {
		t.Errorf("categories = %+v", cats)
	}
}

func TestGrantCatalogue_UpstreamFailure(t *testing.T) {
	svc := &mockService{catalogueErr: &matchsvc.ServiceError{Op: "grant list", StatusCode: 500, Detail: "database unavailable"}}
	h := newTestHandler(svc, "")

	for _, target := range []string{
		"/api/v1/grants",
		"/api/v1/grants/search?q=solar",
		"/api/v1/grants/new",
		"/api/v1/grants/categories",
	} {
		w := serve(h, http.MethodGet, target, "")
		if w.Code != http.StatusBadGateway {
			t.Errorf("GET %s: status = %d, want %d", target, w.Code, http.StatusBadGateway)
		}
	}
}

// --- Export ---

func TestExportReport_Attachment(t *testing.T) {
	svc := &mockService{report: &matchsvc.Report{
		Filename:    "grant-report-2026-10-16.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.7"),
	}}
	h := newTestHandler(svc, "")

	w := serve(h, http.MethodPost, "/api/v1/report/export", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q, want application/pdf", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "attachment; filename=grant-report-2026-10-16.pdf" {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if w.Body.String() != "%PDF-1.7" {
		t.Errorf("body = %q, want the PDF bytes", w.Body.String())
	}
}

func TestExportReport_JSON(t *testing.T) {
	svc := &mockService{report: &matchsvc.Report{Filename: "report.pdf", Data: []byte("%PDF")}}
	h := newTestHandler(svc, "")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/report/export", nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(w, req)

	var resp ExportResponse
	decode(t, w, &resp)
	if resp.Filename != "report.pdf" || resp.Bytes != 4 {
		t.Errorf("export = %+v, want report.pdf with 4 bytes", resp)
	}
	if resp.ArchiveKey != "" {
		t.Errorf("archive_key = %q, want none without an archive", resp.ArchiveKey)
	}
}

func TestEmailReport(t *testing.T) {
	svc := &mockService{}
	h := newTestHandler(svc, "")

	w := serve(h, http.MethodPost, "/api/v1/report/email", `{"email": "aoife@example.ie"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusAccepted, w.Body.String())
	}
	if len(svc.emailed) != 1 || svc.emailed[0] != "aoife@example.ie" {
		t.Errorf("emailed = %v", svc.emailed)
	}

	var resp types.EmailReportResponse
	decode(t, w, &resp)
	if resp.Status != types.DeliveryPending {
		t.Errorf("delivery status = %q, want pending", resp.Status)
	}
}

func TestEmailReport_InvalidAddress(t *testing.T) {
	svc := &mockService{}
	h := newTestHandler(svc, "")

	w := serve(h, http.MethodPost, "/api/v1/report/email", `{"email": "not-an-address"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	if len(svc.emailed) != 0 {
		t.Error("invalid address was sent to the service")
	}
}
