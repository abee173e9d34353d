// Package matchsvc is the HTTP client for the remote eligibility-matching
// service: scans, grant details, report export and token refresh.
package matchsvc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hyperengineering/grantscan/internal/profile"
	"github.com/hyperengineering/grantscan/internal/report"
	"github.com/hyperengineering/grantscan/internal/types"
)

// DefaultTimeout bounds a single request when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxReportBytes bounds a downloaded report.
const maxReportBytes = 32 << 20

// Config configures a Client.
type Config struct {
	BaseURL string        // service API root, e.g. http://localhost:8000/api/v1
	Timeout time.Duration // per-request timeout (default: 30s)
	Tokens  TokenSource   // bearer credentials; nil sends no Authorization header
}

// Client talks to the matching service.
type Client struct {
	baseURL string
	tokens  TokenSource
	client  *http.Client
	logger  *slog.Logger

	// refreshes collapses concurrent refreshes of the same refresh token.
	refreshes singleflight.Group
}

// New creates a Client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tokens:  cfg.Tokens,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// Scan submits a profile anonymously. The profile may be empty or partial.
func (c *Client) Scan(ctx context.Context, p profile.Profile) (*types.ScanResponse, error) {
	var resp types.ScanResponse
	if err := c.doJSON(ctx, "scan", http.MethodPost, "/scan/anonymous", p, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScanAuthenticated runs a scan against the profile stored with the
// signed-in account.
func (c *Client) ScanAuthenticated(ctx context.Context) (*types.ScanResponse, error) {
	var resp types.ScanResponse
	if err := c.doJSON(ctx, "scan", http.MethodPost, "/scan", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GrantDetail fetches a grant together with its application steps and
// required documents. The three requests run concurrently; steps are
// returned ordered by step number.
func (c *Client) GrantDetail(ctx context.Context, slug string) (*types.GrantDetail, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("grant detail: empty slug")
	}
	base := "/grants/" + url.PathEscape(slug)

	var detail types.GrantDetail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.doJSON(gctx, "grant detail", http.MethodGet, base, nil, &detail.Grant)
	})
	g.Go(func() error {
		return c.doJSON(gctx, "grant steps", http.MethodGet, base+"/steps", nil, &detail.Steps)
	})
	g.Go(func() error {
		return c.doJSON(gctx, "grant documents", http.MethodGet, base+"/documents", nil, &detail.Documents)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(detail.Steps, func(i, j int) bool {
		return detail.Steps[i].StepNumber < detail.Steps[j].StepNumber
	})
	if detail.Steps == nil {
		detail.Steps = []types.GrantStep{}
	}
	if detail.Documents == nil {
		detail.Documents = []types.GrantDocument{}
	}
	return &detail, nil
}

// DefaultPerPage is the catalogue page size.
const DefaultPerPage = 20

// ListGrants fetches one page of the active grant catalogue, optionally
// restricted to a category code. Pages start at 1.
func (c *Client) ListGrants(ctx context.Context, page int, category string) (*types.GrantPage, error) {
	page = max(page, 1)
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(DefaultPerPage))
	if category != "" {
		q.Set("category", category)
	}

	var out types.GrantPage
	if err := c.doJSON(ctx, "grant list", http.MethodGet, "/grants?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out.Grants == nil {
		out.Grants = []types.Grant{}
	}
	if out.Page == 0 {
		out.Page = page
	}
	return &out, nil
}

// SearchGrants finds grants whose name or short description contains
// query.
func (c *Client) SearchGrants(ctx context.Context, query string) (*types.GrantSearchResult, error) {
	q := url.Values{}
	q.Set("q", strings.TrimSpace(query))

	var out types.GrantSearchResult
	if err := c.doJSON(ctx, "grant search", http.MethodGet, "/grants/search?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out.Results == nil {
		out.Results = []types.Grant{}
	}
	return &out, nil
}

// NewGrants fetches the grants added in the last 30 days, newest first.
func (c *Client) NewGrants(ctx context.Context) ([]types.Grant, error) {
	var out types.NewGrantsResponse
	if err := c.doJSON(ctx, "new grants", http.MethodGet, "/grants/new", nil, &out); err != nil {
		return nil, err
	}
	if out.Grants == nil {
		out.Grants = []types.Grant{}
	}
	return out.Grants, nil
}

// Categories fetches the active grant count per category. A category
// without a service label gets the known display label.
func (c *Client) Categories(ctx context.Context) ([]types.CategoryCount, error) {
	var out []types.CategoryCount
	if err := c.doJSON(ctx, "grant categories", http.MethodGet, "/grants/categories", nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Label == "" || out[i].Label == out[i].Category {
			out[i].Label = report.CategoryLabel(out[i].Category)
		}
	}
	if out == nil {
		out = []types.CategoryCount{}
	}
	return out, nil
}

// Report is a downloaded report document.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DownloadReport renders a report for the profile on the service and
// returns the document bytes.
func (c *Client) DownloadReport(ctx context.Context, p profile.Profile) (*Report, error) {
	resp, err := c.do(ctx, "report download", http.MethodPost, "/reports/download", p)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBytes))
	if err != nil {
		return nil, fmt.Errorf("report download: read body: %w", err)
	}

	report := &Report{
		Filename:    attachmentFilename(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}
	if report.Filename == "" {
		report.Filename = ReportFilename(time.Now())
	}
	return report, nil
}

// EmailReport asks the service to deliver the report to email.
func (c *Client) EmailReport(ctx context.Context, email string, p profile.Profile) (*types.EmailReportResponse, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("report email: encode profile: %w", err)
	}

	var resp types.EmailReportResponse
	req := types.EmailReportRequest{Email: email, Profile: raw}
	if err := c.doJSON(ctx, "report email", http.MethodPost, "/reports/email", req, &resp); err != nil {
		return nil, err
	}
	if resp.Status == "" {
		resp.Status = types.DeliveryPending
	}
	return &resp, nil
}

// ReportFilename is the name a report exported at t is saved under.
func ReportFilename(t time.Time) string {
	return "GrantFinder_Report_" + t.UTC().Format("20060102_150405") + ".pdf"
}

func attachmentFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

// doJSON sends body as JSON and decodes a successful response into out.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	resp, err := c.do(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// do sends an authenticated request. A 401 triggers exactly one token
// refresh and retry; if the refresh fails the stored tokens are cleared
// and the original 401 is returned. Non-2xx responses become
// *ServiceError. On success the caller owns resp.Body.
func (c *Client) do(ctx context.Context, op, method, path string, body any) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConfigured)
	}

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		payload = data
	}

	sent := c.accessToken()
	resp, err := c.send(ctx, method, path, payload, sent)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		original := newServiceError(op, resp)
		resp.Body.Close()

		pair, rerr := c.refresh(ctx, sent)
		if rerr != nil {
			c.logger.Warn("token refresh failed",
				"component", "matchsvc",
				"op", op,
				"error", rerr,
			)
			return nil, original
		}

		resp, err = c.send(ctx, method, path, payload, pair.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			c.clearIf(pair.RefreshToken)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, newServiceError(op, resp)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("service request",
		"component", "matchsvc",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (c *Client) accessToken() string {
	if c.tokens == nil {
		return ""
	}
	access, _ := c.tokens.Tokens()
	return access
}

var errNoRefreshToken = errors.New("no refresh token")

// refresh returns a fresh token pair for a request that was rejected with
// the access token sent. When another request has already replaced that
// token the stored pair is returned as is; otherwise the refresh token is
// exchanged once, however many requests are waiting on it.
func (c *Client) refresh(ctx context.Context, sent string) (types.TokenPair, error) {
	if c.tokens == nil {
		return types.TokenPair{}, errNoRefreshToken
	}
	access, refreshToken := c.tokens.Tokens()
	if access != "" && access != sent {
		return types.TokenPair{AccessToken: access, RefreshToken: refreshToken}, nil
	}
	if refreshToken == "" {
		c.tokens.Clear()
		return types.TokenPair{}, errNoRefreshToken
	}

	v, err, shared := c.refreshes.Do(refreshToken, func() (any, error) {
		return c.exchange(context.WithoutCancel(ctx), refreshToken)
	})
	if shared {
		c.logger.Debug("token refresh shared", "component", "matchsvc")
	}
	if err != nil {
		// A refresh that started after ours may have rotated the token.
		if a, r := c.tokens.Tokens(); a != "" && r != refreshToken {
			return types.TokenPair{AccessToken: a, RefreshToken: r}, nil
		}
		return types.TokenPair{}, err
	}
	return v.(types.TokenPair), nil
}

// exchange trades refreshToken for a new pair and stores it. On failure
// the stored tokens are cleared unless they were replaced meanwhile.
func (c *Client) exchange(ctx context.Context, refreshToken string) (types.TokenPair, error) {
	payload, err := json.Marshal(types.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return types.TokenPair{}, err
	}

	resp, err := c.send(ctx, http.MethodPost, "/auth/refresh", payload, "")
	if err != nil {
		c.clearIf(refreshToken)
		return types.TokenPair{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.clearIf(refreshToken)
		return types.TokenPair{}, newServiceError("refresh", resp)
	}

	var pair types.TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil || pair.AccessToken == "" {
		c.clearIf(refreshToken)
		if err == nil {
			err = errors.New("refresh response carried no access token")
		}
		return types.TokenPair{}, err
	}

	c.tokens.Store(pair)
	return pair, nil
}

// clearIf forgets the stored tokens while refreshToken is still current.
func (c *Client) clearIf(refreshToken string) {
	if c.tokens == nil {
		return
	}
	if _, current := c.tokens.Tokens(); current == refreshToken {
		c.tokens.Clear()
	}
}
