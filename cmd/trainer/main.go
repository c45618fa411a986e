package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mitchelldurbincs/PathGAN/internal/config"
	"github.com/mitchelldurbincs/PathGAN/internal/dataset"
	"github.com/mitchelldurbincs/PathGAN/internal/events"
	"github.com/mitchelldurbincs/PathGAN/internal/events/subscribers"
	"github.com/mitchelldurbincs/PathGAN/internal/gan"
	"github.com/mitchelldurbincs/PathGAN/internal/monitoring"
	"github.com/mitchelldurbincs/PathGAN/internal/persistence"
	"github.com/mitchelldurbincs/PathGAN/internal/runstore"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "Path to config file")
	dataPath := flag.String("data", "", "Path to the recorded episodes (empty to use config default)")
	modelPath := flag.String("model", "", "Where to write the generator artifact (empty to use config default)")
	epochs := flag.Int("epochs", -1, "Number of training epochs (-1 to use config default)")
	batchSize := flag.Int("batch-size", -1, "Batch size (-1 to use config default)")
	seed := flag.Int64("seed", 0, "Random seed (0 to use config default)")
	logLevel := flag.String("log-level", "", "Log level (trace, debug, info, warn, error) (empty to use config default)")
	runStore := flag.String("run-store", "", "Run history backend: none, memory or sqlite (empty to use config default)")
	flag.Parse()

	// Initialize configuration
	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	if err := config.LoadEnvironmentConfig(os.Getenv("APP_ENV")); err != nil {
		log.Fatal().Err(err).Msg("Failed to load environment config")
	}

	// Flags override config values
	if *dataPath != "" {
		config.Set("data.path", *dataPath)
	}
	if *modelPath != "" {
		config.Set("persistence.model_path", *modelPath)
	}
	if *epochs >= 0 {
		config.Set("training.epochs", *epochs)
	}
	if *batchSize > 0 {
		config.Set("training.batch_size", *batchSize)
	}
	if *seed != 0 {
		config.Set("training.seed", *seed)
	}
	if *logLevel != "" {
		config.Set("logging.level", *logLevel)
	}
	if *runStore != "" {
		config.Set("run_store.type", *runStore)
	}

	cfg := config.Get()
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	setupLogging(cfg.Logging.Level, cfg.Logging.Format)

	if path := config.ConfigFilePath(); path != "" {
		log.Info().Str("config_file", path).Msg("Loaded config file")
	}
	monitoring.LogHost(log.Logger)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Training failed")
	}
}

func run(cfg *config.Config) error {
	store, err := dataset.LoadFile(cfg.Data.Path, cfg.StoreOptions(), log.Logger)
	if err != nil {
		return err
	}

	arch := cfg.Model.Architecture(store.MaxLen())
	rng := rand.New(rand.NewSource(cfg.Training.Seed))

	gen, err := gan.NewGenerator(arch, rng)
	if err != nil {
		return fmt.Errorf("building generator: %w", err)
	}
	disc, err := gan.NewDiscriminator(arch, rng)
	if err != nil {
		return fmt.Errorf("building discriminator: %w", err)
	}

	log.Info().
		Str("architecture", arch.String()).
		Int("generator_parameters", gen.Network().ParameterCount()).
		Int("discriminator_parameters", disc.Network().ParameterCount()).
		Msg("Built networks")

	// Run history
	history, err := runstore.NewStore(cfg.RunStore.Type, cfg.RunStore.Path)
	if err != nil {
		return err
	}
	if err := history.Init(context.Background()); err != nil {
		return fmt.Errorf("initializing run store: %w", err)
	}
	defer func() {
		if err := history.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close run store")
		}
	}()

	// Event bus
	bus := events.NewEventBus(log.Logger)
	eventLogger := subscribers.NewLoggerSubscriber("event_logger", log.Logger, zerolog.DebugLevel)
	eventLogger.SetDevMode(os.Getenv("APP_ENV") != "production")
	bus.Subscribe(eventLogger)
	recorder := subscribers.NewRunRecorder("run_recorder", history, log.Logger)
	bus.Subscribe(recorder)
	// Detach before the deferred store close
	defer bus.Unsubscribe(recorder.ID())

	batcher := dataset.NewBatcher(store, cfg.Training.BatchSize, rng)
	trainer, err := gan.NewTrainer(gen, disc, cfg.Training.TrainerConfig(), rng, log.Logger, gan.WithEventBus(bus))
	if err != nil {
		return err
	}

	monitor := monitoring.NewRuntimeMonitor(monitoring.DefaultRuntimeMonitorConfig(), log.Logger)
	monitor.Start()
	defer monitor.Stop()

	if every := cfg.Persistence.CheckpointEvery; every > 0 {
		bus.OnEpochCompleted(func(e *events.EpochCompletedEvent) {
			if e.Epoch%every != 0 || e.Epoch == e.TotalEpochs {
				return
			}
			checkpoint(bus, cfg.Persistence.ModelPath, gen, e.RunID(), e.Epoch)
		})
	}
	bus.OnRunFailed(func(e *events.RunFailedEvent) {
		m := monitor.Sample()
		log.Warn().
			Int("epoch", e.Epoch).
			Int("batch", e.Batch).
			Int("goroutines", m.Goroutines).
			Uint64("heap_bytes", m.HeapBytes).
			Uint64("peak_heap_bytes", m.PeakHeapBytes).
			Msg("Runtime state at failure")
	})

	start := time.Now()
	reports, err := trainer.Train(batcher)
	if err != nil {
		return err
	}

	if err := persistence.Save(cfg.Persistence.ModelPath, gen, persistence.Metadata{
		RunID:   trainer.RunID(),
		SavedAt: time.Now(),
	}); err != nil {
		return err
	}
	bus.Publish(events.NewModelSavedEvent(trainer.RunID(), cfg.Persistence.ModelPath, gen.Network().ParameterCount()))

	ev := log.Info().
		Str("run_id", trainer.RunID()).
		Int("epochs", len(reports)).
		Dur("duration", time.Since(start)).
		Str("model_path", cfg.Persistence.ModelPath)
	if len(reports) > 0 {
		last := reports[len(reports)-1]
		ev = ev.Float64("discriminator_loss", last.DiscriminatorLoss).
			Float64("generator_loss", last.GeneratorLoss)
	}
	ev.Msg("Training complete")
	return nil
}

func setupLogging(level, format string) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// JSON output for production, pretty console output for development
	if os.Getenv("APP_ENV") == "production" || format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}
}

// checkpoint overwrites the artifact mid run. Failures are logged and
// training continues.
func checkpoint(bus *events.EventBus, path string, gen *gan.Generator, runID string, epoch int) {
	err := persistence.Save(path, gen, persistence.Metadata{RunID: runID, SavedAt: time.Now()})
	if err != nil {
		log.Error().Err(err).Int("epoch", epoch).Msg("Checkpoint failed")
		return
	}
	log.Info().Int("epoch", epoch).Str("model_path", path).Msg("Checkpoint saved")
	bus.Publish(events.NewModelSavedEvent(runID, path, gen.Network().ParameterCount()))
}
