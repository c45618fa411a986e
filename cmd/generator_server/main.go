package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/mitchelldurbincs/PathGAN/internal/config"
	"github.com/mitchelldurbincs/PathGAN/internal/grpc/generatorserver"
	"github.com/mitchelldurbincs/PathGAN/internal/monitoring"
	"github.com/mitchelldurbincs/PathGAN/internal/persistence"
)

func main() {
	// Command line flags
	configPath := flag.String("config", "", "Path to config file")
	port := flag.Int("port", -1, "The server port (-1 to use config default)")
	host := flag.String("host", "", "The server host (empty to use config default)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error) (empty to use config default)")
	modelPath := flag.String("model", "", "Generator artifact to serve (empty to use config default)")
	enableReflection := flag.Bool("enable-reflection", false, "Enable gRPC reflection for debugging")
	flag.Parse()

	// Initialize configuration
	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	if err := config.LoadEnvironmentConfig(os.Getenv("APP_ENV")); err != nil {
		log.Fatal().Err(err).Msg("Failed to load environment config")
	}

	cfg := config.Get()

	// Use config defaults if not overridden by flags
	if *port == -1 {
		*port = cfg.Server.Port
	}
	if *host == "" {
		*host = cfg.Server.Host
	}
	if *logLevel == "" {
		*logLevel = cfg.Server.LogLevel
	}
	if *modelPath == "" {
		*modelPath = cfg.ServerModelPath()
	}
	// For enableReflection, use config if flag not explicitly set to true
	if !*enableReflection {
		*enableReflection = cfg.Server.EnableReflection
	}

	// Setup logging
	setupLogging(*logLevel)
	monitoring.LogHost(log.Logger)

	// Load the generator
	header, err := persistence.ReadHeader(*modelPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *modelPath).Msg("Failed to read model artifact")
	}
	pathLength := cfg.Model.PathLength
	if pathLength == 0 {
		pathLength = header.Architecture.PathLength
	}
	gen, header, err := persistence.Load(*modelPath, cfg.Model.Architecture(pathLength))
	if err != nil {
		log.Fatal().Err(err).Str("path", *modelPath).Msg("Failed to load generator")
	}

	seed := cfg.Server.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	log.Info().
		Int("port", *port).
		Str("host", *host).
		Str("model_path", *modelPath).
		Str("run_id", header.RunID).
		Str("architecture", header.Architecture.String()).
		Msg("Starting gRPC generator server")

	// Create listener
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", *host, *port))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen")
	}

	// Create gRPC server with interceptors
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			loggingInterceptor,
			recoveryInterceptor,
		),
	)

	// Register generator service
	generatorserver.Register(grpcServer, generatorserver.NewServer(
		gen,
		rand.New(rand.NewSource(seed)),
		log.Logger,
		generatorserver.WithCoordinateScale(cfg.Data.CoordinateScale),
	))

	// Register health service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(generatorserver.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// Register reflection service for debugging
	if *enableReflection {
		reflection.Register(grpcServer)
		log.Info().Msg("gRPC reflection enabled")
	}

	// Hot-reload the log level when the config file changes
	if config.ConfigFilePath() != "" {
		config.WatchConfig(func(e fsnotify.Event) {
			level := config.Get().Server.LogLevel
			setLevel(level)
			log.Info().Str("file", e.Name).Str("log_level", level).Msg("Config reloaded")
		})
	}

	monitor := monitoring.NewRuntimeMonitor(monitoring.DefaultRuntimeMonitorConfig(), log.Logger)
	monitor.Start()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

		// Set health status to NOT_SERVING
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus(generatorserver.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		// Give ongoing requests time to complete
		time.Sleep(time.Duration(cfg.Server.GracefulShutdownDelay) * time.Second)

		log.Info().Msg("Gracefully stopping gRPC server")
		grpcServer.GracefulStop()
		monitor.Stop()
		cancel()
	}()

	// Start server
	log.Info().Str("address", lis.Addr().String()).Msg("gRPC server listening")

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("Failed to serve")
		}
	}()

	// Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("Server shutdown complete")
}

func setupLogging(level string) {
	setLevel(level)

	// Check if we're in production
	if os.Getenv("APP_ENV") == "production" {
		// JSON output for production
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Pretty console output for development
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}
}

func setLevel(level string) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)
}

// loggingInterceptor logs all unary RPC calls
func loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()

	resp, err := handler(ctx, req)

	code := codes.OK
	if err != nil {
		if st, ok := status.FromError(err); ok {
			code = st.Code()
		}
	}

	log.Info().
		Str("method", info.FullMethod).
		Str("code", code.String()).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("gRPC call")

	return resp, err
}

// recoveryInterceptor catches panics and returns proper gRPC errors
func recoveryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("method", info.FullMethod).
				Interface("panic", r).
				Msg("Recovered from panic in gRPC handler")
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()

	return handler(ctx, req)
}
