package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mitchelldurbincs/PathGAN/internal/dataset"
	"github.com/mitchelldurbincs/PathGAN/internal/gan"
	"github.com/mitchelldurbincs/PathGAN/internal/nn"
)

// Config holds all configuration for the application
type Config struct {
	Training    TrainingConfig    `mapstructure:"training"`
	Model       ModelConfig       `mapstructure:"model"`
	Data        DataConfig        `mapstructure:"data"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	RunStore    RunStoreConfig    `mapstructure:"run_store"`
	Server      ServerConfig      `mapstructure:"server"`
	Replay      ReplayConfig      `mapstructure:"replay"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// TrainingConfig holds optimizer and loop settings
type TrainingConfig struct {
	Epochs       int     `mapstructure:"epochs"`
	BatchSize    int     `mapstructure:"batch_size"`
	LearningRate float64 `mapstructure:"learning_rate"`
	Beta1        float64 `mapstructure:"beta1"`
	Beta2        float64 `mapstructure:"beta2"`
	Epsilon      float64 `mapstructure:"epsilon"`
	Seed         int64   `mapstructure:"seed"`
	ReuseNoise   bool    `mapstructure:"reuse_noise"`
}

// ModelConfig holds the shared network shape. A zero PathLength binds the
// path length to the dataset's longest episode.
type ModelConfig struct {
	PathLength          int   `mapstructure:"path_length"`
	NoiseDim            int   `mapstructure:"noise_dim"`
	GeneratorHidden     []int `mapstructure:"generator_hidden"`
	DiscriminatorHidden []int `mapstructure:"discriminator_hidden"`
	UsePaddingMask      bool  `mapstructure:"use_padding_mask"`
}

// DataConfig holds dataset loading settings
type DataConfig struct {
	Path            string  `mapstructure:"path"`
	MaxLen          int     `mapstructure:"max_len"`
	AllowTruncate   bool    `mapstructure:"allow_truncate"`
	CoordinateScale float64 `mapstructure:"coordinate_scale"`
}

// PersistenceConfig holds model artifact settings
type PersistenceConfig struct {
	ModelPath string `mapstructure:"model_path"`
	// CheckpointEvery rewrites the artifact every N epochs; 0 saves only at the end
	CheckpointEvery int `mapstructure:"checkpoint_every"`
}

// RunStoreConfig selects the run history backend
type RunStoreConfig struct {
	Type string `mapstructure:"type"`
	Path string `mapstructure:"path"`
}

// ServerConfig holds generator service configuration
type ServerConfig struct {
	Host                  string `mapstructure:"host"`
	Port                  int    `mapstructure:"port"`
	LogLevel              string `mapstructure:"log_level"`
	EnableReflection      bool   `mapstructure:"enable_reflection"`
	GracefulShutdownDelay int    `mapstructure:"graceful_shutdown_delay"`
	ModelPath             string `mapstructure:"model_path"`
	Seed                  int64  `mapstructure:"seed"`
}

// ReplayConfig holds headless replay agent settings
type ReplayConfig struct {
	GridSize       int    `mapstructure:"grid_size"`
	PathLength     int    `mapstructure:"path_length"`
	GreenCells     int    `mapstructure:"green_cells"`
	RedCells       int    `mapstructure:"red_cells"`
	BlockedCells   int    `mapstructure:"blocked_cells"`
	Seed           int64  `mapstructure:"seed"`
	OutputPath     string `mapstructure:"output_path"`
	ModelPath      string `mapstructure:"model_path"`
	RemoteAddress  string `mapstructure:"remote_address"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig holds logging settings shared by all binaries
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var (
	// Global config instance
	cfg *Config
	v   *viper.Viper
)

// setViperDefaults sets all default values using Viper's SetDefault
func setViperDefaults(v *viper.Viper) {
	// Training defaults
	v.SetDefault("training.epochs", 100)
	v.SetDefault("training.batch_size", dataset.DefaultBatchSize)
	v.SetDefault("training.learning_rate", 0.0002)
	v.SetDefault("training.beta1", 0.5)
	v.SetDefault("training.beta2", 0.999)
	v.SetDefault("training.epsilon", 1e-8)
	v.SetDefault("training.seed", 1)
	v.SetDefault("training.reuse_noise", true)

	// Model defaults
	v.SetDefault("model.path_length", 0)
	v.SetDefault("model.noise_dim", 16)
	v.SetDefault("model.generator_hidden", []int{128, 256})
	v.SetDefault("model.discriminator_hidden", []int{256, 128})
	v.SetDefault("model.use_padding_mask", false)

	// Data defaults
	v.SetDefault("data.path", "game_data.json")
	v.SetDefault("data.max_len", 0)
	v.SetDefault("data.allow_truncate", false)
	v.SetDefault("data.coordinate_scale", 1.0)

	// Persistence defaults
	v.SetDefault("persistence.model_path", "path_generator.pgan")
	v.SetDefault("persistence.checkpoint_every", 0)

	// Run store defaults
	v.SetDefault("run_store.type", "none")
	v.SetDefault("run_store.path", "pathgan_runs.db")

	// Generator server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 50061)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.enable_reflection", true)
	v.SetDefault("server.graceful_shutdown_delay", 5)
	v.SetDefault("server.model_path", "")
	v.SetDefault("server.seed", 0)

	// Replay defaults
	v.SetDefault("replay.grid_size", 15)
	v.SetDefault("replay.path_length", 42)
	v.SetDefault("replay.green_cells", 30)
	v.SetDefault("replay.red_cells", 40)
	v.SetDefault("replay.blocked_cells", 20)
	v.SetDefault("replay.seed", 0)
	v.SetDefault("replay.output_path", "bot_trace.json")
	v.SetDefault("replay.model_path", "")
	v.SetDefault("replay.remote_address", "")
	v.SetDefault("replay.timeout_seconds", 5)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Init initializes the configuration
func Init(configPath string) error {
	v = viper.New()

	// Set defaults before loading any config
	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/pathgan")
	}

	v.SetEnvPrefix("PGAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing explicit file falls back to defaults; for the search
		// paths only ConfigFileNotFoundError is ignored.
		if configPath == "" {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}

// Get returns the global config instance
func Get() *Config {
	if cfg == nil {
		if err := Init(""); err != nil {
			panic("failed to initialize config with defaults: " + err.Error())
		}
	}
	return cfg
}

// GetViper returns the viper instance for advanced usage
func GetViper() *viper.Viper {
	if v == nil {
		panic("config not initialized - call Init() first")
	}
	return v
}

// LoadEnvironmentConfig loads environment-specific config overlay
func LoadEnvironmentConfig(env string) error {
	if env == "" {
		return nil
	}

	envFile := fmt.Sprintf("config.%s.yaml", env)

	v.SetConfigFile(envFile)
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error merging environment config %s: %w", envFile, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to decode merged config into struct: %w", err)
	}

	return Validate(cfg)
}

// Set allows runtime config updates
func Set(key string, value interface{}) {
	v.Set(key, value)
	_ = v.Unmarshal(cfg)
}

// GetString gets a string value from config
func GetString(key string) string {
	return v.GetString(key)
}

// GetInt gets an int value from config
func GetInt(key string) int {
	return v.GetInt(key)
}

// ConfigFilePath returns the path of the loaded config file
func ConfigFilePath() string {
	return v.ConfigFileUsed()
}

// WatchConfig enables hot-reloading of config file
func WatchConfig(onChange func(e fsnotify.Event)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		_ = v.Unmarshal(cfg)
		if onChange != nil {
			onChange(e)
		}
	})
	v.WatchConfig()
}

// Architecture builds the shared network descriptor. pathLength overrides
// model.path_length when the caller has already bound it, e.g. to the
// dataset's max_len.
func (m ModelConfig) Architecture(pathLength int) gan.Architecture {
	if pathLength <= 0 {
		pathLength = m.PathLength
	}
	return gan.Architecture{
		PathLength:          pathLength,
		NoiseDim:            m.NoiseDim,
		GeneratorHidden:     append([]int(nil), m.GeneratorHidden...),
		DiscriminatorHidden: append([]int(nil), m.DiscriminatorHidden...),
		UsePaddingMask:      m.UsePaddingMask,
	}
}

// TrainerConfig converts training settings into the trainer's config. Both
// networks share the same optimizer settings.
func (t TrainingConfig) TrainerConfig() gan.TrainerConfig {
	adam := nn.AdamConfig{
		LearningRate: t.LearningRate,
		Beta1:        t.Beta1,
		Beta2:        t.Beta2,
		Epsilon:      t.Epsilon,
	}
	return gan.TrainerConfig{
		Epochs:        t.Epochs,
		Generator:     adam,
		Discriminator: adam,
		ReuseNoise:    t.ReuseNoise,
	}
}

// StoreOptions returns the dataset options. An explicit model.path_length
// acts as max_len when data.max_len is unset.
func (c *Config) StoreOptions() dataset.StoreOptions {
	maxLen := c.Data.MaxLen
	if maxLen == 0 {
		maxLen = c.Model.PathLength
	}
	return dataset.StoreOptions{
		MaxLen:          maxLen,
		AllowTruncate:   c.Data.AllowTruncate,
		CoordinateScale: c.Data.CoordinateScale,
	}
}

// ServerModelPath returns the artifact the generator service loads
func (c *Config) ServerModelPath() string {
	if c.Server.ModelPath != "" {
		return c.Server.ModelPath
	}
	return c.Persistence.ModelPath
}

// ReplayModelPath returns the artifact the replay agent loads locally
func (c *Config) ReplayModelPath() string {
	if c.Replay.ModelPath != "" {
		return c.Replay.ModelPath
	}
	return c.Persistence.ModelPath
}

// Validate validates the configuration values
func Validate(c *Config) error {
	// Validate training settings
	if c.Training.Epochs < 0 {
		return fmt.Errorf("training.epochs must be non-negative")
	}
	if c.Training.BatchSize <= 0 {
		return fmt.Errorf("training.batch_size must be positive")
	}
	if err := c.Training.TrainerConfig().Generator.Validate(); err != nil {
		return fmt.Errorf("training: %w", err)
	}

	// Validate model shape
	if c.Model.PathLength < 0 {
		return fmt.Errorf("model.path_length must be non-negative")
	}
	if c.Model.NoiseDim <= 0 {
		return fmt.Errorf("model.noise_dim must be positive")
	}
	validateWidths := func(widths []int, name string) error {
		if len(widths) == 0 {
			return fmt.Errorf("%s must list at least one layer", name)
		}
		for i, w := range widths {
			if w <= 0 {
				return fmt.Errorf("%s[%d] must be positive", name, i)
			}
		}
		return nil
	}
	if err := validateWidths(c.Model.GeneratorHidden, "model.generator_hidden"); err != nil {
		return err
	}
	if err := validateWidths(c.Model.DiscriminatorHidden, "model.discriminator_hidden"); err != nil {
		return err
	}

	// Validate data settings
	if c.Data.MaxLen < 0 {
		return fmt.Errorf("data.max_len must be non-negative")
	}
	if c.Data.MaxLen > 0 && c.Model.PathLength > 0 && c.Data.MaxLen != c.Model.PathLength {
		return fmt.Errorf("data.max_len (%d) and model.path_length (%d) must agree", c.Data.MaxLen, c.Model.PathLength)
	}
	if c.Data.CoordinateScale <= 0 {
		return fmt.Errorf("data.coordinate_scale must be positive")
	}

	// Validate persistence
	if c.Persistence.CheckpointEvery < 0 {
		return fmt.Errorf("persistence.checkpoint_every must be non-negative")
	}

	// Validate run store
	switch c.RunStore.Type {
	case "none", "memory":
	case "sqlite":
		if c.RunStore.Path == "" {
			return fmt.Errorf("run_store.path is required for sqlite")
		}
	default:
		return fmt.Errorf("run_store.type must be one of none, memory, sqlite")
	}

	// Validate server configuration
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.GracefulShutdownDelay < 0 {
		return fmt.Errorf("server.graceful_shutdown_delay must be non-negative")
	}

	// Validate replay configuration
	if c.Replay.GridSize < 2 {
		return fmt.Errorf("replay.grid_size must be at least 2")
	}
	if c.Replay.PathLength <= 0 {
		return fmt.Errorf("replay.path_length must be positive")
	}
	if c.Replay.GreenCells < 0 || c.Replay.RedCells < 0 || c.Replay.BlockedCells < 0 {
		return fmt.Errorf("replay cell counts must be non-negative")
	}
	free := c.Replay.GridSize*c.Replay.GridSize - 2
	if c.Replay.GreenCells+c.Replay.RedCells+c.Replay.BlockedCells > free {
		return fmt.Errorf("replay cell counts exceed the %d free cells of the grid", free)
	}
	if c.Replay.TimeoutSeconds <= 0 {
		return fmt.Errorf("replay.timeout_seconds must be positive")
	}

	// Validate logging
	for name, level := range map[string]string{"logging.level": c.Logging.Level, "server.log_level": c.Server.LogLevel} {
		if _, err := zerolog.ParseLevel(level); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be console or json")
	}

	return nil
}
