// Package scan tracks the lifecycle of scan submissions against the
// matching service and holds the most recent result.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/grantscan/internal/logging"
	"github.com/hyperengineering/grantscan/internal/matchsvc"
	"github.com/hyperengineering/grantscan/internal/profile"
	"github.com/hyperengineering/grantscan/internal/types"
)

// Status is the lifecycle state of the orchestrator.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusScanning Status = "scanning"
	StatusSuccess  Status = "success"
	StatusError    Status = "error"
)

// DefaultErrorMessage is reported when a failure carries no reason from the service.
const DefaultErrorMessage = "An error occurred while scanning."

// Policy decides which response is committed when submissions overlap.
type Policy string

const (
	// PolicyLastResponseWins commits every response as it arrives, so the
	// one that resolves last overwrites the others.
	PolicyLastResponseWins Policy = "last_response_wins"
	// PolicyLatestRequestWins commits only the response to the most
	// recently issued submission; earlier ones are dropped on arrival.
	PolicyLatestRequestWins Policy = "latest_request_wins"
)

// ParsePolicy validates a configured policy name. Empty means the default.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyLastResponseWins:
		return PolicyLastResponseWins, nil
	case PolicyLatestRequestWins:
		return PolicyLatestRequestWins, nil
	default:
		return "", fmt.Errorf("unknown overlap policy %q", s)
	}
}

// ErrSuperseded is returned by Submit when a newer submission (or a
// ClearResults) made this response obsolete under PolicyLatestRequestWins.
var ErrSuperseded = errors.New("scan superseded by a newer request")

// Service is the subset of the matching service the orchestrator uses.
type Service interface {
	Scan(ctx context.Context, p profile.Profile) (*types.ScanResponse, error)
	ScanAuthenticated(ctx context.Context) (*types.ScanResponse, error)
}

// Snapshot is a point-in-time view of the orchestrator.
type Snapshot struct {
	Status Status `json:"status"`
	// Results is the last committed response. It survives later failures
	// and is only removed by ClearResults. Treat it as read-only.
	Results   *types.ScanResponse `json:"results,omitempty"`
	Err       string              `json:"error,omitempty"`
	RequestID string              `json:"request_id,omitempty"`
	InFlight  int                 `json:"in_flight"`
}

// Orchestrator runs scans and holds the single result slot.
type Orchestrator struct {
	svc    Service
	policy Policy
	logger *slog.Logger

	mu         sync.Mutex
	status     Status
	results    *types.ScanResponse
	errMsg     string
	requestID  string
	generation uint64
	inFlight   int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy sets the overlap policy. Defaults to PolicyLastResponseWins.
func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) {
		if p != "" {
			o.policy = p
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New returns an idle orchestrator.
func New(svc Service, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		svc:    svc,
		policy: PolicyLastResponseWins,
		logger: slog.Default(),
		status: StatusIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Policy returns the configured overlap policy.
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// Submit scans a snapshot of p anonymously and blocks until the service
// answers. The profile may be empty or partial. Concurrent calls are not
// deduplicated; the overlap policy decides which response is kept.
func (o *Orchestrator) Submit(ctx context.Context, p profile.Profile) (Snapshot, error) {
	p = p.Clone()
	return o.run(ctx, "anonymous", func(ctx context.Context) (*types.ScanResponse, error) {
		return o.svc.Scan(ctx, p)
	})
}

// SubmitAuthenticated scans the profile stored with the signed-in account.
func (o *Orchestrator) SubmitAuthenticated(ctx context.Context) (Snapshot, error) {
	return o.run(ctx, "authenticated", o.svc.ScanAuthenticated)
}

// ClearResults drops any results and error and returns to idle. Under
// PolicyLatestRequestWins responses still in flight are dropped as well.
func (o *Orchestrator) ClearResults() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.status = StatusIdle
	o.results = nil
	o.errMsg = ""
	o.requestID = ""
	if o.policy == PolicyLatestRequestWins {
		o.generation++
	}
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{
		Status:    o.status,
		Results:   o.results,
		Err:       o.errMsg,
		RequestID: o.requestID,
		InFlight:  o.inFlight,
	}
}

func (o *Orchestrator) run(ctx context.Context, kind string, call func(context.Context) (*types.ScanResponse, error)) (Snapshot, error) {
	id := ulid.Make().String()

	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.status = StatusScanning
	o.errMsg = ""
	o.requestID = id
	o.inFlight++
	o.mu.Unlock()

	ctx = logging.WithAttrs(ctx, slog.String("scan_request", id))
	o.logger.InfoContext(ctx, "scan submitted", "component", "scan", "kind", kind)

	start := time.Now()
	resp, err := call(ctx)
	elapsed := time.Since(start)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.inFlight--

	if o.policy == PolicyLatestRequestWins && gen != o.generation {
		o.logger.InfoContext(ctx, "scan response dropped",
			"component", "scan",
			"reason", "superseded",
			"duration_ms", elapsed.Milliseconds(),
		)
		return o.snapshotLocked(), ErrSuperseded
	}

	o.requestID = id
	if err != nil {
		o.status = StatusError
		o.errMsg = failureMessage(err)
		o.logger.WarnContext(ctx, "scan failed",
			"component", "scan",
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return o.snapshotLocked(), err
	}

	if resp == nil {
		resp = &types.ScanResponse{}
	}
	o.status = StatusSuccess
	o.results = resp
	o.errMsg = ""
	o.logger.InfoContext(ctx, "scan completed",
		"component", "scan",
		"grants_found", resp.TotalGrantsFound,
		"categories", len(resp.Categories),
		"duration_ms", elapsed.Milliseconds(),
	)
	return o.snapshotLocked(), nil
}

// failureMessage is the user-facing reason for err.
func failureMessage(err error) string {
	if detail := matchsvc.Detail(err); detail != "" {
		return detail
	}
	return DefaultErrorMessage
}
