// Package wizard sequences the questionnaire steps and keeps the
// in-progress answers durable across restarts.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hyperengineering/grantscan/internal/profile"
	"github.com/hyperengineering/grantscan/internal/store"
)

// TotalSteps is the number of questionnaire steps, one per profile domain.
const TotalSteps = 7

// ErrStepOutOfRange is returned when a step outside [1, TotalSteps] is requested.
var ErrStepOutOfRange = errors.New("step out of range")

// StepTitles names each step; index 0 is step 1.
var StepTitles = [TotalSteps]string{
	"About You",
	"Your Home",
	"Family",
	"Work & Income",
	"Welfare & Health",
	"Education & Business",
	"Transport & Other",
}

// StepTitle returns the title of step n, or "" when n is out of range.
func StepTitle(n int) string {
	if n < 1 || n > TotalSteps {
		return ""
	}
	return StepTitles[n-1]
}

// State is the complete questionnaire state.
type State struct {
	CurrentStep int             `json:"currentStep"`
	TotalSteps  int             `json:"totalSteps"`
	Profile     profile.Profile `json:"profile"`
}

// Initial returns the state of a fresh questionnaire.
func Initial() State {
	return State{CurrentStep: 1, TotalSteps: TotalSteps}
}

// Progress is the percentage through the questionnaire s.CurrentStep is.
func (s State) Progress() float64 {
	return float64(s.CurrentStep-1) / float64(TotalSteps-1) * 100
}

func (s State) clone() State {
	s.Profile = s.Profile.Clone()
	return s
}

// Controller owns a State and funnels every mutation through its methods.
// Each mutation is written to the store before the method returns; write
// failures are logged and never reported to the caller.
type Controller struct {
	mu     sync.Mutex
	state  State
	store  store.Store
	scope  string
	logger *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithStore persists state under scope in st. Without it the controller
// keeps state in memory only.
func WithStore(st store.Store, scope string) Option {
	return func(c *Controller) {
		c.store = st
		c.scope = scope
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a controller holding a fresh state. Call Load to restore
// previously persisted state.
func New(opts ...Option) *Controller {
	c := &Controller{
		state:  Initial(),
		scope:  store.DefaultScope,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load restores persisted state. Missing, unreadable or incompatible data
// leaves the controller with a fresh state; Load never fails.
func (c *Controller) Load(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Initial()
	if c.store == nil {
		return
	}

	entry, err := c.store.Get(ctx, c.scope, StateKey)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		c.logger.Warn("wizard state unreadable, starting fresh",
			"component", "wizard",
			"scope", c.scope,
			"error", err,
		)
		return
	}

	if entry.Version != stateVersion {
		c.logger.Warn("wizard state version mismatch, starting fresh",
			"component", "wizard",
			"scope", c.scope,
			"version", entry.Version,
			"want", stateVersion,
		)
		return
	}

	state, err := Decode(entry.Value)
	if err != nil {
		c.logger.Warn("wizard state discarded, starting fresh",
			"component", "wizard",
			"scope", c.scope,
			"error", err,
		)
		return
	}

	c.state = state
	c.logger.Debug("wizard state restored",
		"component", "wizard",
		"scope", c.scope,
		"step", state.CurrentStep,
		"answered", len(state.Profile.Answered()),
	)
}

// Snapshot returns a deep copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Progress returns how far through the questionnaire the current step is,
// from 0 on the first step to 100 on the last.
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Progress()
}

// Advance moves to the next step, staying on the last one.
func (c *Controller) Advance(ctx context.Context) State {
	return c.mutate(ctx, func(s *State) {
		s.CurrentStep = min(s.CurrentStep+1, TotalSteps)
	})
}

// Retreat moves to the previous step, staying on the first one.
func (c *Controller) Retreat(ctx context.Context) State {
	return c.mutate(ctx, func(s *State) {
		s.CurrentStep = max(s.CurrentStep-1, 1)
	})
}

// JumpTo moves directly to step n.
func (c *Controller) JumpTo(ctx context.Context, n int) (State, error) {
	if n < 1 || n > TotalSteps {
		return c.Snapshot(), fmt.Errorf("%w: %d not in [1, %d]", ErrStepOutOfRange, n, TotalSteps)
	}
	return c.mutate(ctx, func(s *State) {
		s.CurrentStep = n
	}), nil
}

// Reset returns to step 1 with an empty profile.
func (c *Controller) Reset(ctx context.Context) State {
	return c.mutate(ctx, func(s *State) {
		*s = Initial()
	})
}

// Update applies patch to the profile as one atomic change. It does not
// clear dependent answers; use Reconcile for answers entered by a user.
func (c *Controller) Update(ctx context.Context, patch profile.Patch) State {
	return c.mutate(ctx, func(s *State) {
		s.Profile = s.Profile.Apply(patch)
	})
}

// Change describes the effect of a reconciled update.
type Change struct {
	// Applied is the patch after dependent answers were folded in.
	Applied profile.Patch
	// Cleared lists answers that were removed because they no longer
	// apply. Fields the caller cleared itself are not listed.
	Cleared []string
}

// Reconcile extends patch with the dependent answers its controlling
// answers rule out and applies it, reading and writing the profile under
// one lock so no concurrent update can slip in between.
func (c *Controller) Reconcile(ctx context.Context, patch profile.Patch) (State, Change) {
	var change Change
	state := c.mutate(ctx, func(s *State) {
		change.Applied = profile.Reconcile(s.Profile, patch)
		for _, name := range change.Applied.Clear {
			if _, answered := s.Profile.Value(name); answered && !patch.Touches(name) {
				change.Cleared = append(change.Cleared, name)
			}
		}
		s.Profile = s.Profile.Apply(change.Applied)
	})
	return state, change
}

func (c *Controller) mutate(ctx context.Context, fn func(*State)) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn(&c.state)
	c.persist(ctx)
	return c.state.clone()
}

// persist must be called with mu held.
func (c *Controller) persist(ctx context.Context) {
	if c.store == nil {
		return
	}

	data, err := Encode(c.state)
	if err == nil {
		err = c.store.Put(ctx, c.scope, StateKey, stateVersion, data)
	}
	if err != nil {
		c.logger.Error("failed to persist wizard state",
			"component", "wizard",
			"scope", c.scope,
			"error", err,
		)
	}
}
