package gan

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorgonia.org/gorgonia"

	"github.com/mitchelldurbincs/PathGAN/internal/dataset"
	"github.com/mitchelldurbincs/PathGAN/internal/events"
	"github.com/mitchelldurbincs/PathGAN/internal/nn"
)

const (
	realTarget = 1.0
	fakeTarget = 0.0
)

// TrainerConfig holds run level settings
type TrainerConfig struct {
	Epochs        int
	Generator     nn.AdamConfig
	Discriminator nn.AdamConfig
	// ReuseNoise feeds the generator step the noise drawn for the
	// discriminator step instead of sampling again
	ReuseNoise bool
}

// DefaultTrainerConfig returns 100 epochs with the standard Adam settings
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		Epochs:        100,
		Generator:     nn.DefaultAdamConfig(),
		Discriminator: nn.DefaultAdamConfig(),
		ReuseNoise:    true,
	}
}

// Validate checks the config
func (c TrainerConfig) Validate() error {
	if c.Epochs < 0 {
		return fmt.Errorf("epochs must be non-negative, got %d", c.Epochs)
	}
	if err := c.Generator.Validate(); err != nil {
		return fmt.Errorf("generator optimizer: %w", err)
	}
	if err := c.Discriminator.Validate(); err != nil {
		return fmt.Errorf("discriminator optimizer: %w", err)
	}
	return nil
}

// BatchSource yields one epoch of batches per call
type BatchSource interface {
	Batches() ([]*dataset.Batch, error)
	BatchSize() int
	Len() int
}

// EpochReport carries the losses of the last batch of an epoch
type EpochReport struct {
	Epoch             int
	Batches           int
	DiscriminatorLoss float64
	GeneratorLoss     float64
	Duration          time.Duration
}

// Trainer owns both networks and their optimizers for one run
type Trainer struct {
	gen     *Generator
	disc    *Discriminator
	genOpt  *nn.Adam
	discOpt *nn.Adam

	config    TrainerConfig
	rng       *rand.Rand
	runID     string
	publisher events.Publisher
	machine   *PhaseMachine
	logger    zerolog.Logger
}

// TrainerOption configures optional trainer collaborators
type TrainerOption func(*Trainer)

// WithEventBus publishes lifecycle events to p
func WithEventBus(p events.Publisher) TrainerOption {
	return func(t *Trainer) {
		t.publisher = p
	}
}

// WithRunID overrides the generated run ID
func WithRunID(id string) TrainerOption {
	return func(t *Trainer) {
		t.runID = id
	}
}

// NewTrainer pairs a generator and discriminator built from the same architecture
func NewTrainer(gen *Generator, disc *Discriminator, config TrainerConfig, rng *rand.Rand, logger zerolog.Logger, opts ...TrainerOption) (*Trainer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trainer config: %w", err)
	}
	if !gen.Architecture().Equal(disc.Architecture()) {
		return nil, fmt.Errorf("generator architecture (%s) differs from discriminator (%s)", gen.Architecture(), disc.Architecture())
	}

	t := &Trainer{
		gen:     gen,
		disc:    disc,
		genOpt:  nn.NewAdam(gen.Network(), config.Generator),
		discOpt: nn.NewAdam(disc.Network(), config.Discriminator),
		config:  config,
		rng:     rng,
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = logger.With().Str("component", "trainer").Str("run_id", t.runID).Logger()
	t.machine = NewPhaseMachine(t.runID, t.publisher, t.logger)
	return t, nil
}

// RunID returns the identifier attached to every event of this run
func (t *Trainer) RunID() string {
	return t.runID
}

// Generator returns the trained generator
func (t *Trainer) Generator() *Generator {
	return t.gen
}

// Discriminator returns the trained discriminator
func (t *Trainer) Discriminator() *Discriminator {
	return t.disc
}

// Phase returns the current training phase
func (t *Trainer) Phase() TrainingPhase {
	return t.machine.Current()
}

// History returns the recorded phase transitions
func (t *Trainer) History() []Transition {
	return t.machine.History()
}

// Train runs config.Epochs epochs over src and returns one report per
// completed epoch. Any error leaves the trainer in PhaseFailed.
func (t *Trainer) Train(src BatchSource) ([]EpochReport, error) {
	if t.machine.Current() != PhaseIdle {
		return nil, fmt.Errorf("trainer already ran, phase is %s", t.machine.Current())
	}

	arch := t.gen.Architecture()
	started := time.Now()
	t.publish(events.NewRunStartedEvent(t.runID, t.config.Epochs, src.BatchSize(), src.Len(), arch.PathLength, arch.NoiseDim))
	t.logger.Info().
		Int("epochs", t.config.Epochs).
		Int("batch_size", src.BatchSize()).
		Int("dataset_size", src.Len()).
		Str("architecture", arch.String()).
		Msg("Training started")

	if t.config.Epochs == 0 {
		if err := t.machine.TransitionTo(PhaseDone, "no epochs configured"); err != nil {
			return nil, err
		}
		t.publish(events.NewRunFinishedEvent(t.runID, 0, time.Since(started)))
		return nil, nil
	}

	if err := t.machine.TransitionTo(PhaseEpochLoop, "training started"); err != nil {
		return nil, err
	}
	reports := make([]EpochReport, 0, t.config.Epochs)
	for epoch := 1; epoch <= t.config.Epochs; epoch++ {
		report, batch, err := t.runEpoch(src, epoch)
		if err != nil {
			t.fail(epoch, batch, err)
			return reports, err
		}
		reports = append(reports, report)

		t.logger.Info().
			Int("epoch", epoch).
			Int("epochs", t.config.Epochs).
			Float64("d_loss", report.DiscriminatorLoss).
			Float64("g_loss", report.GeneratorLoss).
			Dur("duration", report.Duration).
			Msg("Epoch completed")
		t.publish(events.NewEpochCompletedEvent(t.runID, epoch, t.config.Epochs, report.Batches,
			report.DiscriminatorLoss, report.GeneratorLoss, report.Duration))
	}

	if err := t.machine.TransitionTo(PhaseDone, "all epochs completed"); err != nil {
		return reports, err
	}
	elapsed := time.Since(started)
	t.publish(events.NewRunFinishedEvent(t.runID, t.config.Epochs, elapsed))
	t.logger.Info().Dur("duration", elapsed).Msg("Training finished")
	return reports, nil
}

// runEpoch returns the report plus the 1-based batch index reached, for
// failure diagnostics
func (t *Trainer) runEpoch(src BatchSource, epoch int) (EpochReport, int, error) {
	start := time.Now()
	batches, err := src.Batches()
	if err != nil {
		return EpochReport{}, 0, fmt.Errorf("building batches for epoch %d: %w", epoch, err)
	}
	if len(batches) == 0 {
		return EpochReport{}, 0, ErrNoBatches
	}
	if err := t.machine.TransitionTo(PhaseBatchLoop, fmt.Sprintf("epoch %d", epoch)); err != nil {
		return EpochReport{}, 0, err
	}

	report := EpochReport{Epoch: epoch, Batches: len(batches)}
	for i, batch := range batches {
		dLoss, gLoss, err := t.TrainBatch(batch)
		if err != nil {
			var div *NumericDivergenceError
			if errors.As(err, &div) {
				div.Epoch = epoch
				div.Batch = i + 1
			}
			return report, i + 1, err
		}
		report.DiscriminatorLoss = dLoss
		report.GeneratorLoss = gLoss
	}

	if err := t.machine.TransitionTo(PhaseEpochLoop, fmt.Sprintf("epoch %d completed", epoch)); err != nil {
		return report, len(batches), err
	}
	report.Duration = time.Since(start)
	return report, len(batches), nil
}

// TrainBatch runs one discriminator step followed by one generator step.
// It must be called from PhaseBatchLoop.
func (t *Trainer) TrainBatch(batch *dataset.Batch) (float64, float64, error) {
	if err := t.machine.TransitionTo(PhaseDiscriminatorStep, "batch"); err != nil {
		return 0, 0, err
	}
	dLoss, noise, err := t.DiscriminatorStep(batch)
	if err != nil {
		return 0, 0, err
	}

	if err := t.machine.TransitionTo(PhaseGeneratorStep, "discriminator updated"); err != nil {
		return 0, 0, err
	}
	if !t.config.ReuseNoise {
		noise = nil
	}
	gLoss, err := t.GeneratorStep(batch, noise)
	if err != nil {
		return 0, 0, err
	}

	if err := t.machine.TransitionTo(PhaseBatchLoop, "generator updated"); err != nil {
		return 0, 0, err
	}
	return dLoss, gLoss, nil
}

// DiscriminatorStep updates only the discriminator: real rows are pushed
// towards 1 and freshly generated rows towards 0. The generator runs on its
// own forward-only graph. With the padding mask enabled, fakes are scored
// under the batch's real mask so both classes share one length distribution.
// The drawn noise is returned so the generator step can reuse it.
func (t *Trainer) DiscriminatorStep(batch *dataset.Batch) (float64, *nn.Matrix, error) {
	arch := t.disc.Architecture()
	mask := t.batchMask(batch)
	if err := t.disc.checkInputs(batch.Moves, batch.Context, mask); err != nil {
		return 0, nil, err
	}

	noise := SampleNoise(t.rng, batch.Size(), arch.NoiseDim)
	fake, err := t.gen.Generate(batch.Context, noise)
	if err != nil {
		return 0, nil, err
	}

	graph := gorgonia.NewGraph()
	params := t.disc.net.Bind(graph, "disc")
	realLogits, err := t.disc.logits(graph, params, "real", nn.Input(graph, "real.sequence", batch.Moves), batch.Context, mask)
	if err != nil {
		return 0, nil, err
	}
	fakeLogits, err := t.disc.logits(graph, params, "fake", nn.Input(graph, "fake.sequence", fake), batch.Context, mask)
	if err != nil {
		return 0, nil, err
	}
	realLoss, err := nn.BCEWithLogits(realLogits, realTarget)
	if err != nil {
		return 0, nil, err
	}
	fakeLoss, err := nn.BCEWithLogits(fakeLogits, fakeTarget)
	if err != nil {
		return 0, nil, err
	}
	cost, err := gorgonia.Add(realLoss, fakeLoss)
	if err != nil {
		return 0, nil, err
	}

	vm, err := nn.Backprop(graph, cost, params)
	if err != nil {
		return 0, nil, err
	}
	defer vm.Close()

	loss, err := nn.Scalar(cost)
	if err != nil {
		return 0, nil, err
	}
	if !nn.IsFinite(loss) {
		return loss, nil, &NumericDivergenceError{Network: "discriminator", Value: loss}
	}
	if err := t.discOpt.Step(params); err != nil {
		return 0, nil, err
	}
	return loss, noise, nil
}

// GeneratorStep updates only the generator so that the already updated
// discriminator scores its output as real. Both networks share one graph but
// only generator parameters are differentiated, which freezes the
// discriminator. A nil noise draws fresh noise.
func (t *Trainer) GeneratorStep(batch *dataset.Batch, noise *nn.Matrix) (float64, error) {
	arch := t.gen.Architecture()
	if noise == nil {
		noise = SampleNoise(t.rng, batch.Size(), arch.NoiseDim)
	}
	mask := t.batchMask(batch)
	if err := t.disc.checkInputs(batch.Moves, batch.Context, mask); err != nil {
		return 0, err
	}

	graph := gorgonia.NewGraph()
	fake, params, err := t.gen.build(graph, batch.Context, noise)
	if err != nil {
		return 0, err
	}
	logits, err := t.disc.logits(graph, t.disc.net.Bind(graph, "disc"), "fake", fake, batch.Context, mask)
	if err != nil {
		return 0, err
	}
	cost, err := nn.BCEWithLogits(logits, realTarget)
	if err != nil {
		return 0, err
	}

	vm, err := nn.Backprop(graph, cost, params)
	if err != nil {
		return 0, err
	}
	defer vm.Close()

	loss, err := nn.Scalar(cost)
	if err != nil {
		return 0, err
	}
	if !nn.IsFinite(loss) {
		return loss, &NumericDivergenceError{Network: "generator", Value: loss}
	}
	if err := t.genOpt.Step(params); err != nil {
		return 0, err
	}
	return loss, nil
}

// batchMask is the mask both real and generated rows are scored under, or
// nil when the architecture has no padding mask
func (t *Trainer) batchMask(batch *dataset.Batch) *nn.Matrix {
	if t.disc.Architecture().UsePaddingMask {
		return batch.Mask
	}
	return nil
}

func (t *Trainer) fail(epoch, batch int, err error) {
	if terr := t.machine.TransitionTo(PhaseFailed, err.Error()); terr != nil {
		t.logger.Error().Err(terr).Msg("Could not record failed phase")
	}
	t.publish(events.NewRunFailedEvent(t.runID, epoch, batch, err))
	t.logger.Error().Err(err).Int("epoch", epoch).Int("batch", batch).Msg("Training failed")
}

func (t *Trainer) publish(e events.Event) {
	if t.publisher != nil {
		t.publisher.Publish(e)
	}
}
