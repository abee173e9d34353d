package wizard

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

const (
	// StateKey addresses the persisted state within a scope.
	StateKey = "grantfinder-profile"

	stateVersion = 1
)

// ErrVersionMismatch is returned when persisted state was written by an
// incompatible schema version.
var ErrVersionMismatch = errors.New("wizard state version mismatch")

type envelope struct {
	Version int   `json:"version"`
	State   State `json:"state"`
}

// Encode serializes state into a versioned envelope.
func Encode(state State) ([]byte, error) {
	data, err := json.Marshal(envelope{Version: stateVersion, State: state})
	if err != nil {
		return nil, fmt.Errorf("encode wizard state: %w", err)
	}
	return data, nil
}

// Decode parses a versioned envelope. Anything that is not a complete,
// current-version, in-range state is rejected as a whole; a partially
// readable blob never yields a partially hydrated state.
func Decode(data []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return State{}, fmt.Errorf("decode wizard state: %w", err)
	}

	if env.Version != stateVersion {
		return State{}, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, env.Version, stateVersion)
	}
	if env.State.TotalSteps != TotalSteps {
		return State{}, fmt.Errorf("%w: persisted flow has %d steps, want %d",
			ErrVersionMismatch, env.State.TotalSteps, TotalSteps)
	}
	if env.State.CurrentStep < 1 || env.State.CurrentStep > TotalSteps {
		return State{}, fmt.Errorf("%w: persisted step %d", ErrStepOutOfRange, env.State.CurrentStep)
	}

	return env.State, nil
}
