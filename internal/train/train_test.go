package train

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnclabs/ontoem/internal/evaluate"
	"github.com/cnclabs/ontoem/internal/negative"
	"github.com/cnclabs/ontoem/internal/nn"
	"github.com/cnclabs/ontoem/internal/stream"
	"github.com/cnclabs/ontoem/pkg/gci"
)

// constModule scores every row of a normal form with a fixed value.
type constModule struct {
	scores    map[gci.Tag]float64
	negScore  float64
	reg       float64
	calls     []gci.Tag
	negCalls  int
	regCalls  int
	epochEnds int
}

func (m *constModule) Forward(batch gci.Batch, tag gci.Tag, neg bool) []float64 {
	m.calls = append(m.calls, tag)
	out := make([]float64, len(batch))
	for i := range out {
		if neg {
			out[i] = m.negScore
		} else {
			out[i] = m.scores[tag]
		}
	}
	if neg {
		m.negCalls++
	}
	return out
}

func (m *constModule) Backward(gci.Batch, gci.Tag, bool, []float64) {}
func (m *constModule) RegularizationLoss() float64                  { return m.reg }
func (m *constModule) BackwardRegularization(float64)               { m.regCalls++ }
func (m *constModule) Params() []*nn.Param                          { return nil }
func (m *constModule) Dim() int                                     { return 1 }
func (m *constModule) EndEpoch()                                    { m.epochEnds++ }

type countingOptimizer struct {
	zeroes, steps int
	err           error
}

func (o *countingOptimizer) ZeroGrad() { o.zeroes++ }

func (o *countingOptimizer) Step() error {
	if o.err != nil {
		return o.err
	}
	o.steps++
	return nil
}

// scriptedEvaluator reports a validation MRR chosen by the epoch being
// evaluated.
type scriptedEvaluator struct {
	mrr   func(round int) float64
	round int
	err   error
}

func (e *scriptedEvaluator) Evaluate(m nn.Module, mode evaluate.Mode) (evaluate.Metrics, error) {
	if e.err != nil {
		return nil, e.err
	}
	v := e.mrr(e.round)
	e.round++
	return evaluate.Metrics{"valid_mrr": v, "valid_mr": 1 / (v + 1e-9)}, nil
}

type recordingTracker struct {
	steps  []int
	values []map[string]interface{}
}

func (r *recordingTracker) Config(map[string]interface{}) error { return nil }
func (r *recordingTracker) Close() error                        { return nil }

func (r *recordingTracker) Log(step int, values map[string]interface{}) error {
	r.steps = append(r.steps, step)
	r.values = append(r.values, values)
	return nil
}

func rows(n, width int) []gci.Row {
	out := make([]gci.Row, n)
	for i := range out {
		out[i] = make(gci.Row, width)
	}
	return out
}

func newTrainer(t *testing.T, m nn.Module, ev evaluate.Evaluator, cfg Config) (*Trainer, *countingOptimizer) {
	t.Helper()
	sampler, err := negative.New([]int64{0, 1, 2}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	opt := &countingOptimizer{}
	return &Trainer{
		Module:    m,
		Optimizer: opt,
		Sampler:   sampler,
		Evaluator: ev,
		Config:    cfg,
	}, opt
}

func TestNoPrimaryStream(t *testing.T) {
	tr, _ := newTrainer(t, &constModule{}, &scriptedEvaluator{}, DefaultConfig())
	set := stream.Build(gci.Axioms{gci.GCI0: rows(4, 2)}, 2, rand.New(rand.NewSource(1)))

	state, err := tr.Train(set)
	assert.Equal(t, ErrNoPrimaryStream, errors.Cause(err))
	assert.Equal(t, Stopped, state.Phase)
}

func TestStepAddsEveryTerm(t *testing.T) {
	m := &constModule{
		scores:   map[gci.Tag]float64{gci.GCI2: 1, gci.GCI0: 4, gci.GCI3: 8},
		negScore: 2,
		reg:      16,
	}
	tracker := &recordingTracker{}
	tr, opt := newTrainer(t, m, &scriptedEvaluator{mrr: func(int) float64 { return 0.5 }}, Config{
		Epochs:        1,
		EvaluateEvery: 1,
		Tolerance:     5,
	})
	tr.Tracker = tracker

	set := stream.Build(gci.Axioms{
		gci.GCI0: rows(10, 2),
		gci.GCI2: rows(30, 3),
		gci.GCI3: rows(5, 3),
	}, 10, rand.New(rand.NewSource(1)))

	state, err := tr.Train(set)
	require.NoError(t, err)

	// one optimizer step per primary batch
	assert.Equal(t, 3, opt.steps)
	assert.Equal(t, 3, opt.zeroes)
	assert.Equal(t, 3, state.Steps)
	assert.Equal(t, 3, m.negCalls)
	assert.Equal(t, 3, m.regCalls)
	assert.Equal(t, 1, m.epochEnds)

	// per step: pos 1 + neg 2 + gci0 4 + gci3 8 + reg 16
	assert.InDelta(t, 3*31.0, state.EpochLoss, 1e-9)
	require.Len(t, tracker.values, 1)
	assert.Equal(t, 0, tracker.steps[0])
	assert.InDelta(t, 93.0, tracker.values[0]["train_loss"], 1e-9)
	assert.Equal(t, 0.5, tracker.values[0]["valid_mrr"])

	// secondary streams are drawn in tag order after the primary pair
	assert.Equal(t, []gci.Tag{gci.GCI2, gci.GCI2, gci.GCI0, gci.GCI3}, m.calls[:4])
}

func TestEarlyStoppingScenario(t *testing.T) {
	improving := map[int]float64{0: 0.0, 1: 0.1, 2: 0.2, 3: 0.3}
	ev := &scriptedEvaluator{mrr: func(round int) float64 {
		if v, ok := improving[round]; ok {
			return v
		}
		return 0.05
	}}
	m := &constModule{scores: map[gci.Tag]float64{}}
	tr, _ := newTrainer(t, m, ev, Config{Epochs: 4000, EvaluateEvery: 50, Tolerance: 5})
	saves := 0
	tr.Checkpoint = checkpointFunc(func() { saves++ })

	set := stream.Build(gci.Axioms{gci.GCI2: rows(2, 3)}, 2, rand.New(rand.NewSource(1)))
	state, err := tr.Train(set)
	require.NoError(t, err)

	assert.True(t, state.EarlyStopped)
	assert.Equal(t, 400, state.Epoch)
	assert.Equal(t, Stopped, state.Phase)
	assert.Equal(t, 9, state.Evaluations)
	assert.Equal(t, 3, state.Checkpoints)
	assert.Equal(t, 3, saves)
	assert.Equal(t, 0.3, state.BestMRR)
	assert.Equal(t, 401, m.epochEnds)
}

func TestCheckpointOnStrictImprovement(t *testing.T) {
	sequence := []float64{0.1, 0.1, 0.2, 0.15, 0.2, 0.3}
	ev := &scriptedEvaluator{mrr: func(round int) float64 { return sequence[round] }}
	tr, _ := newTrainer(t, &constModule{scores: map[gci.Tag]float64{}}, ev,
		Config{Epochs: len(sequence), EvaluateEvery: 1, Tolerance: 10})

	// with one evaluation per epoch the round counter is the epoch
	saves := []int{}
	tr.Checkpoint = checkpointFunc(func() { saves = append(saves, ev.round-1) })

	set := stream.Build(gci.Axioms{gci.GCI2: rows(1, 3)}, 1, rand.New(rand.NewSource(1)))
	state, err := tr.Train(set)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 5}, saves)
	assert.False(t, state.EarlyStopped)
	assert.Equal(t, 5, state.Epoch)
	assert.Equal(t, 10, state.Tolerance)
}

type checkpointFunc func()

func (f checkpointFunc) Save(nn.Module) error {
	f()
	return nil
}

func TestToleranceExhaustion(t *testing.T) {
	for _, tolerance := range []int{1, 3, 5} {
		ev := &scriptedEvaluator{mrr: func(round int) float64 {
			if round == 0 {
				return 0.5
			}
			return 0.5 - float64(round)*0.01
		}}
		tr, _ := newTrainer(t, &constModule{scores: map[gci.Tag]float64{}}, ev,
			Config{Epochs: 100, EvaluateEvery: 1, Tolerance: tolerance})
		set := stream.Build(gci.Axioms{gci.GCI2: rows(1, 3)}, 1, rand.New(rand.NewSource(1)))

		state, err := tr.Train(set)
		require.NoError(t, err)
		assert.True(t, state.EarlyStopped)
		assert.Equal(t, tolerance, state.Epoch, "tolerance %d", tolerance)
	}
}

func TestEvaluationCadence(t *testing.T) {
	ev := &scriptedEvaluator{mrr: func(round int) float64 { return float64(round) }}
	tr, _ := newTrainer(t, &constModule{scores: map[gci.Tag]float64{}}, ev,
		Config{Epochs: 25, EvaluateEvery: 10, Tolerance: 5})
	set := stream.Build(gci.Axioms{gci.GCI2: rows(1, 3)}, 1, rand.New(rand.NewSource(1)))

	state, err := tr.Train(set)
	require.NoError(t, err)
	assert.Equal(t, 3, state.Evaluations, "epochs 0, 10 and 20")
	assert.Equal(t, 24, state.Epoch)
	assert.False(t, state.EarlyStopped)
}

func TestErrorsPropagate(t *testing.T) {
	set := stream.Build(gci.Axioms{gci.GCI2: rows(1, 3)}, 1, rand.New(rand.NewSource(1)))

	failing := &scriptedEvaluator{err: errors.New("boom")}
	tr, _ := newTrainer(t, &constModule{scores: map[gci.Tag]float64{}}, failing, DefaultConfig())
	state, err := tr.Train(set)
	assert.Error(t, err)
	assert.Equal(t, 0, state.Epoch)

	tr, opt := newTrainer(t, &constModule{scores: map[gci.Tag]float64{}}, &scriptedEvaluator{}, DefaultConfig())
	opt.err = nn.ErrAnomaly
	_, err = tr.Train(set)
	assert.Equal(t, nn.ErrAnomaly, errors.Cause(err))
}

func TestStateObserve(t *testing.T) {
	s := NewState(2)
	assert.Equal(t, Idle, s.Phase)
	assert.False(t, s.Observe(0), "equal to the initial best is no improvement")
	assert.Equal(t, 1, s.Tolerance)
	assert.True(t, s.Observe(0.1))
	assert.Equal(t, 2, s.Tolerance)
	assert.False(t, s.Observe(0.1))
	assert.False(t, s.Observe(0.05))
	assert.True(t, s.Exhausted())
	assert.Equal(t, "evaluating", Evaluating.String())
}
