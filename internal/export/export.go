// Package export fetches rendered reports from the matching service,
// saves them locally, and keeps an archived copy when archiving is
// configured.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/grantscan/internal/archive"
	"github.com/hyperengineering/grantscan/internal/matchsvc"
	"github.com/hyperengineering/grantscan/internal/profile"
	"github.com/hyperengineering/grantscan/internal/types"
	"github.com/hyperengineering/grantscan/internal/validation"
)

// Service is the subset of the matching service used for exports.
type Service interface {
	DownloadReport(ctx context.Context, p profile.Profile) (*matchsvc.Report, error)
	EmailReport(ctx context.Context, email string, p profile.Profile) (*types.EmailReportResponse, error)
}

// Result describes one exported report.
type Result struct {
	Report *matchsvc.Report
	// Path is set once the report is written to disk.
	Path string
	// ArchiveKey, ArchiveURL and URLExpiry are set when a copy was archived.
	ArchiveKey string
	ArchiveURL string
	URLExpiry  time.Time
}

// Exporter runs report exports for one scope.
type Exporter struct {
	svc      Service
	archiver archive.Archiver
	scope    string
	logger   *slog.Logger
}

// New creates an Exporter. A nil archiver disables archiving.
func New(svc Service, archiver archive.Archiver, scope string, logger *slog.Logger) *Exporter {
	if archiver == nil {
		archiver = archive.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{svc: svc, archiver: archiver, scope: scope, logger: logger}
}

// Fetch downloads the report for p. Archiving is best effort: a failed
// upload is logged and the report is still returned.
func (e *Exporter) Fetch(ctx context.Context, p profile.Profile) (*Result, error) {
	report, err := e.svc.DownloadReport(ctx, p)
	if err != nil {
		return nil, err
	}
	report.Filename = filepath.Base(report.Filename)

	res := &Result{Report: report}
	e.archive(ctx, res)
	return res, nil
}

// Save downloads the report for p and writes it into dir.
func (e *Exporter) Save(ctx context.Context, p profile.Profile, dir string) (*Result, error) {
	res, err := e.Fetch(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, res.Report.Filename)
	if err := os.WriteFile(path, res.Report.Data, 0644); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	res.Path = path

	e.logger.Info("report saved", "path", path, "bytes", len(res.Report.Data))
	return res, nil
}

// Email asks the service to deliver the report for p to email.
func (e *Exporter) Email(ctx context.Context, email string, p profile.Profile) (*types.EmailReportResponse, error) {
	if verr := validation.ValidateEmail("email", email); verr != nil {
		return nil, *verr
	}
	resp, err := e.svc.EmailReport(ctx, email, p)
	if err != nil {
		return nil, err
	}
	e.logger.Info("report email requested", "status", resp.Status)
	return resp, nil
}

func (e *Exporter) archive(ctx context.Context, res *Result) {
	r := res.Report
	key, err := e.archiver.Put(ctx, e.scope, r.Filename, r.ContentType, r.Data)
	if err != nil {
		e.logger.Warn("report archive failed", "file", r.Filename, "error", err)
		return
	}
	if key == "" {
		return
	}
	res.ArchiveKey = key

	url, expiry, err := e.archiver.PresignedURL(ctx, key)
	if err != nil {
		if !errors.Is(err, archive.ErrNotConfigured) {
			e.logger.Warn("report presign failed", "key", key, "error", err)
		}
		return
	}
	res.ArchiveURL = url
	res.URLExpiry = expiry
}
