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
	"github.com/mitchelldurbincs/PathGAN/internal/gan"
	"github.com/mitchelldurbincs/PathGAN/internal/grid"
	"github.com/mitchelldurbincs/PathGAN/internal/grpc/generatorserver"
	"github.com/mitchelldurbincs/PathGAN/internal/persistence"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "Path to config file")
	modelPath := flag.String("model", "", "Generator artifact to replay (empty to use config default)")
	remote := flag.String("remote", "", "Address of a generator server to use instead of a local artifact")
	output := flag.String("output", "", "Where to write the bot trace (empty to use config default)")
	seed := flag.Int64("seed", 0, "Seed for grid layout and noise (0 to use config default)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error) (empty to use config default)")
	flag.Parse()

	// Initialize configuration
	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	if err := config.LoadEnvironmentConfig(os.Getenv("APP_ENV")); err != nil {
		log.Fatal().Err(err).Msg("Failed to load environment config")
	}

	cfg := config.Get()
	if *modelPath == "" {
		*modelPath = cfg.ReplayModelPath()
	}
	if *remote == "" {
		*remote = cfg.Replay.RemoteAddress
	}
	if *output == "" {
		*output = cfg.Replay.OutputPath
	}
	if *seed == 0 {
		*seed = cfg.Replay.Seed
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	if *logLevel == "" {
		*logLevel = cfg.Logging.Level
	}

	setupLogging(*logLevel)

	rng := rand.New(rand.NewSource(*seed))
	layout, err := grid.NewLayout(grid.LayoutConfig{
		Size:         cfg.Replay.GridSize,
		GreenCells:   cfg.Replay.GreenCells,
		RedCells:     cfg.Replay.RedCells,
		BlockedCells: cfg.Replay.BlockedCells,
	}, rng)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build grid")
	}

	start := dataset.Coord{X: float64(layout.Start().Row), Y: float64(layout.Start().Col)}
	end := dataset.Coord{X: float64(layout.End().Row), Y: float64(layout.End().Col)}

	var path []dataset.Coord
	if *remote != "" {
		path, err = remotePath(*remote, start, end, *seed, time.Duration(cfg.Replay.TimeoutSeconds)*time.Second)
	} else {
		path, err = localPath(cfg, *modelPath, start, end, rng)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate path")
	}

	trace := grid.Walk(layout, path)
	if err := grid.WriteTrace(*output, trace); err != nil {
		log.Fatal().Err(err).Str("path", *output).Msg("Failed to write bot trace")
	}

	log.Info().
		Int64("seed", *seed).
		Int("generated", len(path)).
		Int("moves", len(trace.Moves)).
		Int("skipped", trace.Skipped).
		Int("greens_collected", trace.GreensCollected).
		Int("reds_visited", trace.RedsVisited).
		Bool("reached_end", trace.ReachedEnd).
		Str("output", *output).
		Msg("Replay complete")
}

// localPath generates a path from an artifact on disk
func localPath(cfg *config.Config, modelPath string, start, end dataset.Coord, rng *rand.Rand) ([]dataset.Coord, error) {
	gen, header, err := persistence.Load(modelPath, cfg.Model.Architecture(cfg.Replay.PathLength))
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("model_path", modelPath).
		Str("run_id", header.RunID).
		Time("saved_at", header.SavedAt).
		Msg("Loaded generator")

	scale := cfg.Data.CoordinateScale
	cond, err := gan.ContextMatrix([]dataset.Coord{start.Scaled(scale)}, []dataset.Coord{end.Scaled(scale)})
	if err != nil {
		return nil, err
	}
	paths, err := gen.GeneratePaths(cond, rng)
	if err != nil {
		return nil, err
	}
	return paths[0], nil
}

// remotePath asks a generator server for a path
func remotePath(address string, start, end dataset.Coord, seed int64, timeout time.Duration) ([]dataset.Coord, error) {
	client, conn, err := generatorserver.Dial(address)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	path, err := client.Generate(ctx, start, end, &seed)
	if err != nil {
		return nil, fmt.Errorf("remote generate via %s: %w", address, err)
	}
	log.Info().Str("address", address).Int("path_length", len(path)).Msg("Received remote path")
	return path, nil
}

func setupLogging(level string) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// JSON output for production, pretty console output for development
	if os.Getenv("APP_ENV") == "production" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}
}
