// Package frame tracks progressive-refinement progress for one still image.
package frame

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-mfs/common"
)

// Phase is the pipeline state for the current camera pose.
type Phase int

const (
	// PhaseIdle means no frame has been rendered yet.
	PhaseIdle Phase = iota
	// PhaseRendering means frames 1..Max are being accumulated.
	PhaseRendering
	// PhaseConverged means all Max frames have been accumulated.
	PhaseConverged
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRendering:
		return "rendering"
	case PhaseConverged:
		return "converged"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is the frame counter shared by every stage of a frame.
// Stages receive it by value and only read it; the painter that owns the
// pointer is the single place that advances or resets it.
// Invariant: 1 <= Current() <= Max().
type State struct {
	current int
	max     int
	phase   Phase
	resets  uint64
}

// NewState creates an idle State targeting maxFrames samples.
//
// Parameters:
//   - maxFrames: the convergence target, must be > 0
//
// Returns:
//   - *State: the new state at frame 1
//   - error: a configuration error if maxFrames <= 0
func NewState(maxFrames int) (*State, error) {
	if maxFrames <= 0 {
		return nil, fmt.Errorf("%w: max frames %d must be positive", common.ErrConfiguration, maxFrames)
	}
	return &State{current: 1, max: maxFrames}, nil
}

// Current returns the 1-based number of the frame being rendered.
func (s State) Current() int { return s.current }

// Max returns the convergence target.
func (s State) Max() int { return s.max }

// Phase returns the pipeline phase.
func (s State) Phase() Phase { return s.phase }

// Converged reports whether every sample has been accumulated.
func (s State) Converged() bool { return s.phase == PhaseConverged }

// First reports whether the current frame starts a new accumulation.
func (s State) First() bool { return s.current == 1 }

// Resets returns how many times accumulation has been restarted.
func (s State) Resets() uint64 { return s.resets }

// Weight returns the blend weight 1/current of the frame being rendered.
func (s State) Weight() float32 { return 1 / float32(s.current) }

// Begin moves an idle state into Rendering(1). Other phases are left untouched.
func (s *State) Begin() {
	if s.phase == PhaseIdle {
		s.phase = PhaseRendering
		s.current = 1
	}
}

// Advance marks the current frame as accumulated. After frame Max the state
// becomes converged and stays at Max.
//
// Returns:
//   - bool: true if this call reached convergence
func (s *State) Advance() bool {
	if s.phase != PhaseRendering {
		return false
	}
	if s.current >= s.max {
		s.phase = PhaseConverged
		return true
	}
	s.current++
	return false
}

// Reset restarts accumulation at Rendering(1).
func (s *State) Reset() {
	s.current = 1
	s.phase = PhaseRendering
	s.resets++
}

// SetMax changes the convergence target. The current frame is clamped to the new target;
// restarting accumulation is left to the owner, which counts it through Reset.
//
// Parameters:
//   - maxFrames: the new target, must be > 0
//
// Returns:
//   - error: a configuration error if maxFrames <= 0
func (s *State) SetMax(maxFrames int) error {
	if maxFrames <= 0 {
		return fmt.Errorf("%w: max frames %d must be positive", common.ErrConfiguration, maxFrames)
	}
	s.max = maxFrames
	s.current = min(s.current, maxFrames)
	return nil
}
