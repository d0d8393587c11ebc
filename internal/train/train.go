// Package train drives the optimisation of a scoring module over the axiom
// streams of an ontology, with periodic validation and early stopping.
package train

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"
	"go.uber.org/zap"

	"github.com/cnclabs/ontoem/internal/evaluate"
	"github.com/cnclabs/ontoem/internal/negative"
	"github.com/cnclabs/ontoem/internal/nn"
	"github.com/cnclabs/ontoem/internal/stream"
	"github.com/cnclabs/ontoem/internal/tracking"
	"github.com/cnclabs/ontoem/pkg/gci"
)

// ErrNoPrimaryStream is returned when the training axioms have no row of
// the primary normal form.
var ErrNoPrimaryStream = errors.Errorf("train: no %s axioms to train on", gci.Primary)

// Config holds the schedule of a run.
type Config struct {
	Epochs        int
	EvaluateEvery int
	Tolerance     int
	// Progress shows a progress bar over epochs.
	Progress bool
}

// DefaultConfig returns the schedule of the ppi experiments.
func DefaultConfig() Config {
	return Config{
		Epochs:        4000,
		EvaluateEvery: 50,
		Tolerance:     5,
	}
}

// Checkpointer persists the module whenever validation improves.
type Checkpointer interface {
	Save(m nn.Module) error
}

// Trainer wires a module to its optimizer, negative sampler, evaluator
// and sinks.
type Trainer struct {
	Module     nn.Module
	Optimizer  nn.Optimizer
	Sampler    *negative.Sampler
	Evaluator  evaluate.Evaluator
	Checkpoint Checkpointer
	Tracker    tracking.Tracker
	Logger     *zap.Logger

	Config
}

// Train runs epochs until the budget is spent or validation stops
// improving. The returned state is valid even when err is not nil.
func (t *Trainer) Train(set *stream.Set) (*State, error) {
	state := NewState(t.Tolerance)
	if set.Primary == nil {
		state.Phase = Stopped
		return state, ErrNoPrimaryStream
	}
	if t.Logger == nil {
		t.Logger = zap.NewNop()
	}
	if t.Tracker == nil {
		t.Tracker = tracking.Nop{}
	}

	t.Logger.Info("training",
		zap.Int("batches", set.Primary.NumBatches()),
		zap.String("rows", humanize.Comma(int64(set.Total()))))
	for tag, w := range set.Weights() {
		t.Logger.Info("stream",
			zap.String("tag", string(tag)),
			zap.String("size", humanize.Comma(int64(set.Sizes[tag]))),
			zap.Float64("weight", w))
	}

	var err error
	state.Phase = Running
	epoch := func(v interface{}) (brk bool) {
		var stop bool
		stop, err = t.epoch(state, set, v.(int))
		return stop || err != nil
	}
	if t.Progress {
		if perr := tqdm.With(iterators.Interval(0, t.Epochs), "Training", epoch); perr != nil && err == nil {
			err = errors.Wrapf(perr, "progress")
		}
	} else {
		for i := 0; i < t.Epochs; i++ {
			if epoch(i) {
				break
			}
		}
	}
	state.Phase = Stopped
	return state, err
}

// epoch runs one pass over the primary stream and, on evaluation epochs,
// validates. It reports whether training should stop.
func (t *Trainer) epoch(state *State, set *stream.Set, i int) (bool, error) {
	state.Epoch = i
	state.Phase = Running
	state.EpochLoss = 0

	for _, batch := range set.Primary.Batches() {
		loss, err := t.step(set, batch)
		if err != nil {
			return true, errors.Wrapf(err, "epoch %d", i)
		}
		state.Steps++
		state.EpochLoss += loss
	}
	if e, ok := t.Module.(nn.EpochEnder); ok {
		e.EndEpoch()
	}

	if t.EvaluateEvery <= 0 || i%t.EvaluateEvery != 0 {
		return false, nil
	}
	return t.validate(state)
}

// step accumulates the loss of one primary batch together with one batch
// of every secondary stream and applies a single optimizer update.
//
// The negative term is added to the positive one rather than contrasted
// with it.
func (t *Trainer) step(set *stream.Set, batch gci.Batch) (float64, error) {
	t.Optimizer.ZeroGrad()

	loss := nn.MeanLoss(t.Module, batch, gci.Primary, false)
	loss += nn.MeanLoss(t.Module, t.Sampler.Corrupt(batch), gci.Primary, true)

	for _, c := range set.Secondary {
		loss += nn.MeanLoss(t.Module, c.Next(), c.Tag(), false)
	}

	loss += t.Module.RegularizationLoss()
	t.Module.BackwardRegularization(1)

	if err := t.Optimizer.Step(); err != nil {
		return loss, err
	}
	return loss, nil
}

func (t *Trainer) validate(state *State) (bool, error) {
	state.Phase = Evaluating
	start := time.Now()

	metrics, err := t.Evaluator.Evaluate(t.Module, evaluate.Valid)
	if err != nil {
		return true, errors.Wrapf(err, "validation at epoch %d", state.Epoch)
	}
	mrr, ok := metrics["valid_mrr"]
	if !ok {
		return true, errors.Errorf("validation at epoch %d reported no valid_mrr", state.Epoch)
	}
	mr := metrics["valid_mr"]

	values := make(map[string]interface{}, len(metrics)+1)
	for k, v := range metrics {
		values[k] = v
	}
	values["train_loss"] = state.EpochLoss
	if err := t.Tracker.Log(state.Epoch, values); err != nil {
		return true, errors.Wrapf(err, "tracking epoch %d", state.Epoch)
	}

	if state.Observe(mrr) {
		if t.Checkpoint != nil {
			if err := t.Checkpoint.Save(t.Module); err != nil {
				return true, errors.Wrapf(err, "checkpoint at epoch %d", state.Epoch)
			}
		}
		state.Checkpoints++
	}

	if state.Exhausted() {
		state.EarlyStopped = true
		t.Logger.Info(fmt.Sprintf("Early stopping at epoch %d", state.Epoch),
			zap.Float64("best_mrr", state.BestMRR))
		return true, nil
	}

	t.Logger.Info("validation",
		zap.Int("epoch", state.Epoch),
		zap.Float64("train_loss", state.EpochLoss),
		zap.Float64("valid_mrr", mrr),
		zap.Float64("valid_mr", mr),
		zap.Int("tolerance", state.Tolerance),
		zap.Duration("took", time.Since(start)))
	state.Phase = Running
	return false, nil
}
