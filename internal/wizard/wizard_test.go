package wizard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperengineering/grantscan/internal/profile"
	"github.com/hyperengineering/grantscan/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// failingStore rejects every write.
type failingStore struct {
	store.Store
	puts int
}

func (f *failingStore) Put(context.Context, string, string, int, []byte) error {
	f.puts++
	return errors.New("disk full")
}

func (f *failingStore) Get(context.Context, string, string) (*store.Entry, error) {
	return nil, store.ErrNotFound
}

func TestController_StepNeverLeavesRange(t *testing.T) {
	ctx := context.Background()
	c := New(WithLogger(quietLogger()))
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		var s State
		if rng.Intn(2) == 0 {
			s = c.Advance(ctx)
		} else {
			s = c.Retreat(ctx)
		}
		require.GreaterOrEqual(t, s.CurrentStep, 1)
		require.LessOrEqual(t, s.CurrentStep, TotalSteps)
	}
}

func TestController_AdvanceRetreatClamp(t *testing.T) {
	ctx := context.Background()
	c := New(WithLogger(quietLogger()))

	assert.Equal(t, 1, c.Retreat(ctx).CurrentStep)
	for i := 0; i < TotalSteps+3; i++ {
		c.Advance(ctx)
	}
	assert.Equal(t, TotalSteps, c.Snapshot().CurrentStep)
	assert.Equal(t, TotalSteps-1, c.Retreat(ctx).CurrentStep)
}

func TestController_JumpTo(t *testing.T) {
	ctx := context.Background()
	c := New(WithLogger(quietLogger()))

	s, err := c.JumpTo(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, s.CurrentStep)

	for _, n := range []int{0, -1, TotalSteps + 1} {
		s, err = c.JumpTo(ctx, n)
		assert.ErrorIs(t, err, ErrStepOutOfRange, "step %d", n)
		assert.Equal(t, 4, s.CurrentStep, "rejected jump must not move")
	}
}

func TestController_UpdateAndReset(t *testing.T) {
	ctx := context.Background()
	c := New(WithLogger(quietLogger()))

	c.Advance(ctx)
	s := c.Update(ctx, profile.Patch{Set: profile.Profile{
		Family: profile.Family{HasDependentRelatives: profile.Ptr(true), NumDependentRelatives: profile.Ptr(2)},
	}})
	assert.Equal(t, 2, *s.Profile.NumDependentRelatives)
	assert.Equal(t, 2, s.CurrentStep)

	s = c.Reset(ctx)
	assert.Equal(t, Initial(), s)
	assert.True(t, c.Snapshot().Profile.IsEmpty())
}

func TestController_ReconcileClearsDependent(t *testing.T) {
	ctx := context.Background()
	c := New(WithLogger(quietLogger()))

	c.Update(ctx, profile.Patch{Set: profile.Profile{
		Family: profile.Family{HasDependentRelatives: profile.Ptr(true), NumDependentRelatives: profile.Ptr(3)},
	}})

	s, change := c.Reconcile(ctx, profile.Patch{Set: profile.Profile{
		Family: profile.Family{HasDependentRelatives: profile.Ptr(false)},
	}})

	assert.False(t, *s.Profile.HasDependentRelatives)
	assert.Nil(t, s.Profile.NumDependentRelatives)
	assert.Equal(t, []string{"num_dependent_relatives"}, change.Cleared)
	assert.Empty(t, profile.Inconsistent(s.Profile))
}

func TestController_ReconcileSeesAnswersWrittenSinceLastRead(t *testing.T) {
	ctx := context.Background()
	c := New(WithLogger(quietLogger()))
	c.Update(ctx, profile.Patch{Set: profile.Profile{
		Family: profile.Family{HasDependentRelatives: profile.Ptr(true)},
	}})

	// A caller reads the profile, then another caller answers the
	// dependent before the first caller's update lands.
	_ = c.Snapshot()
	c.Reconcile(ctx, profile.Patch{Set: profile.Profile{
		Family: profile.Family{NumDependentRelatives: profile.Ptr(3)},
	}})
	s, change := c.Reconcile(ctx, profile.Patch{Set: profile.Profile{
		Family: profile.Family{HasDependentRelatives: profile.Ptr(false)},
	}})

	assert.Nil(t, s.Profile.NumDependentRelatives)
	assert.Equal(t, []string{"num_dependent_relatives"}, change.Cleared)
}

func TestController_ConcurrentReconcileStaysConsistent(t *testing.T) {
	ctx := context.Background()
	c := New(WithLogger(quietLogger()))

	on := profile.Patch{Set: profile.Profile{Family: profile.Family{
		HasDependentRelatives: profile.Ptr(true), NumDependentRelatives: profile.Ptr(2),
	}}}
	off := profile.Patch{Set: profile.Profile{Family: profile.Family{
		HasDependentRelatives: profile.Ptr(false),
	}}}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Reconcile(ctx, on)
		}()
		go func() {
			defer wg.Done()
			c.Reconcile(ctx, off)
		}()
	}
	wg.Wait()

	assert.Empty(t, profile.Inconsistent(c.Snapshot().Profile))
}

func TestController_ReconcileDoesNotReportCallerClears(t *testing.T) {
	ctx := context.Background()
	c := New(WithLogger(quietLogger()))
	c.Update(ctx, profile.Patch{Set: profile.Profile{
		Family: profile.Family{HasChildren: profile.Ptr(true), NumChildren: profile.Ptr(2)},
	}})

	_, change := c.Reconcile(ctx, profile.Patch{
		Set:   profile.Profile{Family: profile.Family{HasChildren: profile.Ptr(false)}},
		Clear: []string{"num_children"},
	})

	assert.Empty(t, change.Cleared, "unanswered dependents and caller clears are not reported")
}

func TestController_SnapshotIsACopy(t *testing.T) {
	ctx := context.Background()
	c := New(WithLogger(quietLogger()))
	c.Update(ctx, profile.Patch{Set: profile.Profile{
		Identity: profile.Identity{Age: profile.Ptr(50)},
		Welfare:  profile.Welfare{WelfarePayments: []string{"fuel_allowance"}},
	}})

	s := c.Snapshot()
	s.Profile.WelfarePayments[0] = "changed"
	*s.Profile.Age = 0
	s.CurrentStep = 6

	fresh := c.Snapshot()
	assert.Equal(t, []string{"fuel_allowance"}, fresh.Profile.WelfarePayments)
	assert.Equal(t, 50, *fresh.Profile.Age)
	assert.Equal(t, 1, fresh.CurrentStep)
}

func TestController_Progress(t *testing.T) {
	ctx := context.Background()
	c := New(WithLogger(quietLogger()))

	assert.InDelta(t, 0, c.Progress(), 0.001)
	_, _ = c.JumpTo(ctx, 4)
	assert.InDelta(t, 50, c.Progress(), 0.001)
	_, _ = c.JumpTo(ctx, TotalSteps)
	assert.InDelta(t, 100, c.Progress(), 0.001)
}

func TestController_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	c := New(WithStore(st, "household"), WithLogger(quietLogger()))
	c.Load(ctx)
	c.Advance(ctx)
	c.Advance(ctx)
	c.Update(ctx, profile.Patch{Set: profile.Profile{
		Identity: profile.Identity{Age: profile.Ptr(67), County: profile.Ptr("Cork")},
		Welfare:  profile.Welfare{WelfarePayments: []string{}},
	}})
	want := c.Snapshot()

	restored := New(WithStore(st, "household"), WithLogger(quietLogger()))
	restored.Load(ctx)
	assert.Equal(t, want, restored.Snapshot())

	other := New(WithStore(st, "someone-else"), WithLogger(quietLogger()))
	other.Load(ctx)
	assert.Equal(t, Initial(), other.Snapshot())
}

func TestController_LoadFailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		version int
		value   string
	}{
		{"garbage", stateVersion, `not json`},
		{"truncated", stateVersion, `{"version":1,"state":{"currentStep":3`},
		{"entry version", 99, `{"version":1,"state":{"currentStep":3,"totalSteps":7,"profile":{}}}`},
		{"envelope version", stateVersion, `{"version":2,"state":{"currentStep":3,"totalSteps":7,"profile":{}}}`},
		{"step out of range", stateVersion, `{"version":1,"state":{"currentStep":12,"totalSteps":7,"profile":{}}}`},
		{"different flow", stateVersion, `{"version":1,"state":{"currentStep":3,"totalSteps":5,"profile":{}}}`},
		{"wrong type", stateVersion, `{"version":1,"state":{"currentStep":3,"totalSteps":7,"profile":{"age":"old"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := newStore(t)
			require.NoError(t, st.Put(ctx, "default", StateKey, tt.version, []byte(tt.value)))

			c := New(WithStore(st, "default"), WithLogger(quietLogger()))
			c.Load(ctx)
			assert.Equal(t, Initial(), c.Snapshot())
		})
	}
}

func TestController_WriteFailuresDoNotSurface(t *testing.T) {
	ctx := context.Background()
	st := &failingStore{}
	c := New(WithStore(st, "default"), WithLogger(quietLogger()))
	c.Load(ctx)

	s := c.Advance(ctx)
	assert.Equal(t, 2, s.CurrentStep)
	s = c.Update(ctx, profile.Patch{Set: profile.Profile{Identity: profile.Identity{Age: profile.Ptr(30)}}})
	assert.Equal(t, 30, *s.Profile.Age)
	assert.Equal(t, 2, st.puts)
}

func TestStepTitle(t *testing.T) {
	assert.Equal(t, "About You", StepTitle(1))
	assert.Equal(t, "Transport & Other", StepTitle(TotalSteps))
	assert.Equal(t, "", StepTitle(0))
	assert.Equal(t, "", StepTitle(TotalSteps+1))
}
