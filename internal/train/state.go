package train

import "fmt"

// Phase is the position of a training run in its lifecycle.
type Phase int

const (
	Idle Phase = iota
	Running
	Evaluating
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Evaluating:
		return "evaluating"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is the mutable state of one training invocation.
type State struct {
	Phase Phase
	Epoch int

	// BestMRR is the best validation MRR seen so far.
	BestMRR float64
	// Tolerance is the number of evaluation rounds left without improvement
	// before training stops.
	Tolerance    int
	MaxTolerance int

	// EarlyStopped is set when the run ended on tolerance rather than
	// on the epoch budget.
	EarlyStopped bool

	Evaluations int
	Checkpoints int
	Steps       int
	EpochLoss   float64
}

// NewState returns an idle state with a full tolerance budget.
func NewState(tolerance int) *State {
	return &State{
		Phase:        Idle,
		Tolerance:    tolerance,
		MaxTolerance: tolerance,
	}
}

// Observe records the validation MRR of an evaluation round and reports
// whether it strictly improved on the best so far. An improvement resets
// the tolerance; anything else consumes one round of it.
func (s *State) Observe(mrr float64) (improved bool) {
	s.Evaluations++
	if mrr > s.BestMRR {
		s.BestMRR = mrr
		s.Tolerance = s.MaxTolerance
		return true
	}
	s.Tolerance--
	return false
}

// Exhausted reports whether the tolerance budget ran out.
func (s *State) Exhausted() bool {
	return s.Tolerance <= 0
}
