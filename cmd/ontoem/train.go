package main

import (
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cnclabs/ontoem/internal/checkpoint"
	"github.com/cnclabs/ontoem/internal/config"
	"github.com/cnclabs/ontoem/internal/dataset"
	"github.com/cnclabs/ontoem/internal/evaluate"
	"github.com/cnclabs/ontoem/internal/models/box"
	"github.com/cnclabs/ontoem/internal/models/transe"
	"github.com/cnclabs/ontoem/internal/negative"
	"github.com/cnclabs/ontoem/internal/nn"
	"github.com/cnclabs/ontoem/internal/report"
	"github.com/cnclabs/ontoem/internal/stream"
	"github.com/cnclabs/ontoem/internal/tracking"
	"github.com/cnclabs/ontoem/internal/train"
	"github.com/cnclabs/ontoem/pkg/ontology"
)

var trainFlags struct {
	hp config.Hyperparams

	evaluatorName string
	batchSize     int
	epochs        int
	evaluateEvery int
	device        string
	description   string
	noSweep       bool
	onlyTest      bool
	sweepConfig   string

	dataRoot       string
	model          string
	norm           int
	seed           int64
	tolerance      int
	regFactor      float64
	tracker        string
	trackingDB     string
	saveEmbeddings string
	proteinPrefix  string
	workers        int
	progress       bool
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train and test an ontology embedding",
	Long: `Train a scoring module on the EL axioms of a dataset, keeping the checkpoint
with the best validation MRR, then rank the test axioms with it.

Every epoch walks the C ⊑ ∃R.D axioms in batches. Each batch is scored
together with a corrupted copy whose fillers are drawn from the evaluation
classes, and with one batch of each other normal form. The run stops when
validation has not improved for --tolerance evaluations.

Unless --no_sweep is set, dataset_name, embed_dim, module_margin,
loss_margin and learning_rate are read from the --sweep_config file.

Examples:
  ontoem train --no_sweep
  ontoem train --no_sweep --dataset_name ppi_yeast --embed_dim 200 -e 1000
  ontoem train --no_sweep --only_test --embed_dim 200
  ontoem train --sweep_config sweep.yaml --tracker sqlite --tracking_db runs.db`,
	RunE: runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.StringVar(&trainFlags.hp.DatasetName, "dataset_name", "ppi_yeast_slim", "Dataset: ppi_yeast, ppi_yeast_slim or go_subsumption")
	f.StringVar(&trainFlags.evaluatorName, "evaluator_name", "ppi", "Evaluator to use: ppi or subsumption")
	f.IntVar(&trainFlags.hp.EmbedDim, "embed_dim", 50, "Embedding dimension")
	f.IntVar(&trainFlags.batchSize, "batch_size", 300000, "Batch size")
	f.Float64Var(&trainFlags.hp.ModuleMargin, "module_margin", 0.1, "Margin for the module")
	f.Float64Var(&trainFlags.hp.LossMargin, "loss_margin", 0.1, "Margin for the loss function")
	f.Float64Var(&trainFlags.hp.LearningRate, "learning_rate", 0.001, "Learning rate")
	f.IntVarP(&trainFlags.epochs, "epochs", "e", 4000, "Number of epochs")
	f.IntVar(&trainFlags.evaluateEvery, "evaluate_every", 50, "Evaluate every n epochs")
	f.StringVarP(&trainFlags.device, "device", "d", "cpu", "Device to use")
	f.StringVar(&trainFlags.description, "description", "default", "Run description")
	f.BoolVar(&trainFlags.noSweep, "no_sweep", false, "Use the command line hyperparameters instead of the sweep config")
	f.BoolVar(&trainFlags.onlyTest, "only_test", false, "Skip training and test the saved checkpoint")
	f.StringVar(&trainFlags.sweepConfig, "sweep_config", "sweep.yaml", "Sweep assignment read unless --no_sweep")

	f.StringVar(&trainFlags.dataRoot, "data_root", "../use_cases", "Directory holding the datasets")
	f.StringVar(&trainFlags.model, "model", "box", "Scoring module: box or transe")
	f.IntVar(&trainFlags.norm, "norm", 2, "TransE distance: 1 for L1, 2 for L2")
	f.Int64Var(&trainFlags.seed, "seed", 42, "Random seed")
	f.IntVar(&trainFlags.tolerance, "tolerance", 5, "Evaluations without improvement before stopping")
	f.Float64Var(&trainFlags.regFactor, "reg_factor", 0.05, "Weight of the relation norm regularization")
	f.StringVar(&trainFlags.tracker, "tracker", "sqlite", "Experiment tracker: sqlite, log or none")
	f.StringVar(&trainFlags.trackingDB, "tracking_db", "runs.db", "Database of the sqlite tracker")
	f.StringVar(&trainFlags.saveEmbeddings, "save_embeddings", "", "Write class embeddings to this file")
	f.StringVar(&trainFlags.proteinPrefix, "protein_prefix", dataset.DefaultProteinPrefix, "IRI prefix of the evaluation classes of ppi datasets")
	f.IntVar(&trainFlags.workers, "workers", runtime.NumCPU(), "Evaluation workers")
	f.BoolVar(&trainFlags.progress, "progress", true, "Show a progress bar over epochs")
	rootCmd.AddCommand(trainCmd)
}

func validateTrainFlags() error {
	if !strings.EqualFold(trainFlags.device, "cpu") {
		return errors.Errorf("device %q is not supported, only cpu", trainFlags.device)
	}
	if trainFlags.batchSize <= 0 {
		return errors.New("batch_size must be positive")
	}
	if trainFlags.epochs < 0 {
		return errors.New("epochs must not be negative")
	}
	if trainFlags.evaluateEvery <= 0 {
		return errors.New("evaluate_every must be positive")
	}
	if trainFlags.tolerance <= 0 {
		return errors.New("tolerance must be positive")
	}
	return evaluate.Check(trainFlags.evaluatorName)
}

func validateHyperparams(hp config.Hyperparams) error {
	if hp.EmbedDim <= 0 {
		return errors.New("embed_dim must be positive")
	}
	if hp.LearningRate <= 0 {
		return errors.New("learning_rate must be positive")
	}
	return nil
}

// settingPrinter is implemented by modules that print their setting banner.
type settingPrinter interface {
	PrintSetting()
}

func newModule(name string, ds *ontology.Dataset, hp config.Hyperparams, rng *rand.Rand) (nn.Module, error) {
	switch strings.ToLower(name) {
	case "box":
		return box.New(ds.Classes.Len(), ds.Relations.Len(), hp.EmbedDim, hp.ModuleMargin, trainFlags.regFactor, rng), nil
	case "transe":
		te, err := transe.New(ds.Classes.Len(), ds.Relations.Len(), hp.EmbedDim, hp.ModuleMargin, trainFlags.norm, rng)
		if err != nil {
			return nil, err
		}
		return te, nil
	}
	return nil, errors.Errorf("unknown model %q", name)
}

func runTrain(cmd *cobra.Command, args []string) error {
	if err := validateTrainFlags(); err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	provider := config.NewProvider(trainFlags.noSweep, trainFlags.hp, trainFlags.sweepConfig)
	hp, err := provider.Hyperparams()
	if err != nil {
		return err
	}
	if err := validateHyperparams(hp); err != nil {
		return err
	}
	spec, err := dataset.Resolve(hp.DatasetName, trainFlags.dataRoot)
	if err != nil {
		return err
	}

	tracker, err := tracking.Open(trainFlags.tracker, trainFlags.trackingDB, tracking.NewRun(trainFlags.description), logger)
	if err != nil {
		return err
	}
	defer tracker.Close()
	if err := tracker.Config(hp.Map()); err != nil {
		return err
	}
	logger.Info("hyperparameters", hp.Fields()...)

	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println("  Geometric EL embedding")
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println()

	startTime := time.Now()
	rng := rand.New(rand.NewSource(trainFlags.seed))

	fmt.Println("Loading dataset...")
	ds, err := dataset.Load(spec, dataset.Options{ProteinPrefix: trainFlags.proteinPrefix}, logger)
	if err != nil {
		return err
	}
	loadTime := time.Since(startTime)
	fmt.Printf("Dataset loaded in %.2f seconds\n", loadTime.Seconds())
	fmt.Println()

	module, err := newModule(trainFlags.model, ds, hp, rng)
	if err != nil {
		return err
	}
	if p, ok := module.(settingPrinter); ok {
		p.PrintSetting()
		fmt.Println()
	}

	evaluator, err := evaluate.Resolve(trainFlags.evaluatorName, ds, evaluate.Options{Workers: trainFlags.workers})
	if err != nil {
		return err
	}
	ckpt := checkpoint.File{Path: checkpoint.Path(spec.ModelDir(),
		hp.EmbedDim, trainFlags.batchSize, hp.ModuleMargin, hp.LossMargin, hp.LearningRate)}

	var trainTime time.Duration
	step := 0
	if !trainFlags.onlyTest {
		state, err := runTraining(module, ds, evaluator, ckpt, tracker, hp, rng, logger)
		trainTime = time.Since(startTime) - loadTime
		if err != nil {
			return err
		}
		step = state.Epoch + 1
	}

	testStart := time.Now()
	if err := ckpt.Load(module); err != nil {
		return errors.Wrapf(err, "test")
	}
	metrics, err := evaluator.Evaluate(module, evaluate.Test)
	if err != nil {
		return errors.Wrapf(err, "test")
	}
	testTime := time.Since(testStart)

	fmt.Println()
	if err := report.Print(os.Stdout, metrics); err != nil {
		return err
	}
	values := make(map[string]interface{}, len(metrics))
	for k, v := range metrics {
		values[k] = v
	}
	if err := tracker.Log(step, values); err != nil {
		return err
	}

	if trainFlags.saveEmbeddings != "" {
		e, ok := module.(nn.Embedder)
		if !ok {
			return errors.Errorf("model %s has no class embeddings", trainFlags.model)
		}
		if err := nn.SaveEmbeddings(trainFlags.saveEmbeddings, ds.Classes.Keys, e.ClassEmbeddings()); err != nil {
			return err
		}
		fmt.Printf("Saved class embeddings to %s\n", trainFlags.saveEmbeddings)
	}

	totalTime := time.Since(startTime)
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Println("  Timing Summary")
	fmt.Println("═══════════════════════════════════════════════════════")
	fmt.Printf("Loading time:     %.2f seconds\n", loadTime.Seconds())
	fmt.Printf("Training time:    %.2f seconds\n", trainTime.Seconds())
	fmt.Printf("Testing time:     %.2f seconds\n", testTime.Seconds())
	fmt.Printf("Total time:       %.2f seconds\n", totalTime.Seconds())
	return nil
}

func runTraining(module nn.Module, ds *ontology.Dataset, evaluator evaluate.Evaluator, ckpt checkpoint.File,
	tracker tracking.Tracker, hp config.Hyperparams, rng *rand.Rand, logger *zap.Logger) (*train.State, error) {
	set := stream.Build(ds.Train, trainFlags.batchSize, rng)
	sampler, err := negative.New(ds.EvaluationClasses, rng)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset %s", hp.DatasetName)
	}

	fmt.Println("Learning Parameters:")
	fmt.Printf("\tepochs:\t\t\t%d\n", trainFlags.epochs)
	fmt.Printf("\tbatch size:\t\t%d\n", trainFlags.batchSize)
	fmt.Printf("\tlearning rate:\t\t%g\n", hp.LearningRate)
	fmt.Printf("\tevaluate every:\t\t%d\n", trainFlags.evaluateEvery)
	fmt.Printf("\ttolerance:\t\t%d\n", trainFlags.tolerance)
	fmt.Printf("\tnegative pool:\t\t%d\n", sampler.PoolSize())
	fmt.Printf("\tcheckpoint:\t\t%s\n", ckpt.Path)
	fmt.Println()

	trainer := &train.Trainer{
		Module:     module,
		Optimizer:  nn.NewAdam(module.Params(), hp.LearningRate),
		Sampler:    sampler,
		Evaluator:  evaluator,
		Checkpoint: ckpt,
		Tracker:    tracker,
		Logger:     logger,
		Config: train.Config{
			Epochs:        trainFlags.epochs,
			EvaluateEvery: trainFlags.evaluateEvery,
			Tolerance:     trainFlags.tolerance,
			Progress:      trainFlags.progress,
		},
	}
	state, err := trainer.Train(set)
	if err != nil {
		return state, err
	}
	logger.Info("training finished",
		zap.Int("epoch", state.Epoch),
		zap.Int("steps", state.Steps),
		zap.Bool("early_stopped", state.EarlyStopped),
		zap.Float64("best_valid_mrr", state.BestMRR),
		zap.Int("checkpoints", state.Checkpoints))
	return state, nil
}
