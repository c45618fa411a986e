package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/PathGAN/internal/testutil"
)

func reset() {
	cfg = nil
	v = nil
}

func TestInit(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
training:
  epochs: 5
  batch_size: 8
  learning_rate: 0.001
model:
  noise_dim: 8
  generator_hidden: [32, 64]
data:
  path: episodes.json
  coordinate_scale: 14
run_store:
  type: sqlite
  path: runs.db
server:
  port: 8080
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	reset()
	require.NoError(t, Init(configFile))

	c := Get()
	assert.Equal(t, 5, c.Training.Epochs)
	assert.Equal(t, 8, c.Training.BatchSize)
	assert.Equal(t, 0.001, c.Training.LearningRate)
	assert.Equal(t, 0.5, c.Training.Beta1)
	assert.Equal(t, 8, c.Model.NoiseDim)
	assert.Equal(t, []int{32, 64}, c.Model.GeneratorHidden)
	assert.Equal(t, []int{256, 128}, c.Model.DiscriminatorHidden)
	assert.Equal(t, "episodes.json", c.Data.Path)
	assert.Equal(t, 14.0, c.Data.CoordinateScale)
	assert.Equal(t, "sqlite", c.RunStore.Type)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, configFile, ConfigFilePath())
}

func TestInitWithDefaults(t *testing.T) {
	reset()
	require.NoError(t, Init("/non/existent/path/config.yaml"))

	c := Get()
	assert.Equal(t, 100, c.Training.Epochs)
	assert.Equal(t, 32, c.Training.BatchSize)
	assert.Equal(t, 0.0002, c.Training.LearningRate)
	assert.Equal(t, 0.999, c.Training.Beta2)
	assert.True(t, c.Training.ReuseNoise)
	assert.Equal(t, 0, c.Model.PathLength)
	assert.Equal(t, 16, c.Model.NoiseDim)
	assert.Equal(t, []int{128, 256}, c.Model.GeneratorHidden)
	assert.False(t, c.Model.UsePaddingMask)
	assert.Equal(t, 1.0, c.Data.CoordinateScale)
	assert.Equal(t, "none", c.RunStore.Type)
	assert.Equal(t, 42, c.Replay.PathLength)
	assert.Equal(t, 15, c.Replay.GridSize)
	assert.Equal(t, "path_generator.pgan", c.ServerModelPath())
	assert.Equal(t, "path_generator.pgan", c.ReplayModelPath())
	assert.Equal(t, 0, c.Persistence.CheckpointEvery)
}

func TestEnvironmentVariables(t *testing.T) {
	reset()
	t.Setenv("PGAN_TRAINING_EPOCHS", "7")
	t.Setenv("PGAN_SERVER_PORT", "9090")
	t.Setenv("PGAN_RUN_STORE_TYPE", "memory")

	require.NoError(t, Init(""))

	c := Get()
	assert.Equal(t, 7, c.Training.Epochs)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "memory", c.RunStore.Type)
}

func TestSet(t *testing.T) {
	reset()
	require.NoError(t, Init(""))

	Set("training.epochs", 3)
	Set("replay.seed", 99)

	c := Get()
	assert.Equal(t, 3, c.Training.Epochs)
	assert.Equal(t, int64(99), c.Replay.Seed)
	assert.Equal(t, 3, GetInt("training.epochs"))
	assert.Equal(t, "info", GetString("logging.level"))
}

func TestGetViperPanicsBeforeInit(t *testing.T) {
	reset()
	testutil.AssertPanic(t, func() { GetViper() })

	require.NoError(t, Init(""))
	assert.NotNil(t, GetViper())
}

func TestLoadEnvironmentConfig(t *testing.T) {
	tmpDir := t.TempDir()

	baseConfig := filepath.Join(tmpDir, "config.yaml")
	baseContent := `
training:
  epochs: 20
server:
  port: 50061
`
	require.NoError(t, os.WriteFile(baseConfig, []byte(baseContent), 0644))

	envConfig := filepath.Join(tmpDir, "config.prod.yaml")
	envContent := `
training:
  epochs: 200
server:
  port: 8080
  log_level: "error"
`
	require.NoError(t, os.WriteFile(envConfig, []byte(envContent), 0644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	reset()
	require.NoError(t, Init(baseConfig))
	require.NoError(t, LoadEnvironmentConfig("prod"))

	c := Get()
	assert.Equal(t, 200, c.Training.Epochs)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "error", c.Server.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative epochs", func(c *Config) { c.Training.Epochs = -1 }},
		{"zero batch", func(c *Config) { c.Training.BatchSize = 0 }},
		{"zero learning rate", func(c *Config) { c.Training.LearningRate = 0 }},
		{"beta out of range", func(c *Config) { c.Training.Beta1 = 1 }},
		{"zero noise", func(c *Config) { c.Model.NoiseDim = 0 }},
		{"empty generator", func(c *Config) { c.Model.GeneratorHidden = nil }},
		{"bad discriminator width", func(c *Config) { c.Model.DiscriminatorHidden = []int{256, 0} }},
		{"path length disagrees with max_len", func(c *Config) {
			c.Model.PathLength = 10
			c.Data.MaxLen = 12
		}},
		{"zero coordinate scale", func(c *Config) { c.Data.CoordinateScale = 0 }},
		{"negative checkpoint interval", func(c *Config) { c.Persistence.CheckpointEvery = -2 }},
		{"unknown run store", func(c *Config) { c.RunStore.Type = "postgres" }},
		{"sqlite without path", func(c *Config) {
			c.RunStore.Type = "sqlite"
			c.RunStore.Path = ""
		}},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"tiny grid", func(c *Config) { c.Replay.GridSize = 1 }},
		{"too many cells", func(c *Config) { c.Replay.GreenCells = 500 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reset()
			require.NoError(t, Init(""))
			c := *Get()
			tt.mutate(&c)
			assert.Error(t, Validate(&c))
		})
	}
}

func TestModelArchitecture(t *testing.T) {
	reset()
	require.NoError(t, Init(""))
	c := Get()

	arch := c.Model.Architecture(37)
	require.NoError(t, arch.Validate())
	assert.Equal(t, 37, arch.PathLength)
	assert.Equal(t, 16, arch.NoiseDim)
	assert.Equal(t, []int{256, 128}, arch.DiscriminatorHidden)

	arch.GeneratorHidden[0] = 1
	assert.Equal(t, 128, c.Model.GeneratorHidden[0], "architecture must not alias config slices")

	c.Model.PathLength = 12
	assert.Equal(t, 12, c.Model.Architecture(0).PathLength)
}

func TestStoreOptionsBindPathLength(t *testing.T) {
	reset()
	require.NoError(t, Init(""))
	c := *Get()

	assert.Equal(t, 0, c.StoreOptions().MaxLen)

	c.Model.PathLength = 42
	assert.Equal(t, 42, c.StoreOptions().MaxLen)

	c.Data.MaxLen = 42
	c.Data.AllowTruncate = true
	opts := c.StoreOptions()
	assert.Equal(t, 42, opts.MaxLen)
	assert.True(t, opts.AllowTruncate)
}

func TestTrainerConfig(t *testing.T) {
	reset()
	require.NoError(t, Init(""))

	tc := Get().Training.TrainerConfig()
	require.NoError(t, tc.Validate())
	assert.Equal(t, 100, tc.Epochs)
	assert.Equal(t, tc.Generator, tc.Discriminator)
	assert.Equal(t, 0.5, tc.Generator.Beta1)
}
