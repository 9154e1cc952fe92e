package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/astrokit/lightcurve-go/internal/utils"
)

type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	Server      ServerConfig    `mapstructure:"server"`
	Merge       MergeConfig     `mapstructure:"merge"`
	Estimator   EstimatorConfig `mapstructure:"estimator"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MergeConfig holds the default confidence levels applied when a merge
// request does not override them.
type MergeConfig struct {
	UpperLimitConfidence float64 `mapstructure:"upper_limit_confidence"`
	DetectionThreshold   float64 `mapstructure:"detection_threshold"` // 0 follows upper_limit_confidence
}

// EstimatorConfig tunes the Bayesian interval solver.
type EstimatorConfig struct {
	MassTolerance float64 `mapstructure:"mass_tolerance"`
	MaxIterations int     `mapstructure:"max_iterations"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Normalize environment to lowercase for consistent comparison
	config.Environment = strings.ToLower(config.Environment)

	if c := config.Merge.UpperLimitConfidence; !(c > 0 && c < 1) {
		return nil, utils.NewInvalidArgumentErrorf("merge.upper_limit_confidence must lie in (0,1), got %g", c)
	}
	if c := config.Merge.DetectionThreshold; c != 0 && !(c > 0 && c < 1) {
		return nil, utils.NewInvalidArgumentErrorf("merge.detection_threshold must lie in (0,1) or be 0, got %g", c)
	}
	if config.Estimator.MassTolerance <= 0 {
		return nil, utils.NewInvalidArgumentErrorf("estimator.mass_tolerance must be positive, got %g", config.Estimator.MassTolerance)
	}
	if config.Estimator.MaxIterations <= 0 {
		return nil, utils.NewInvalidArgumentErrorf("estimator.max_iterations must be positive, got %d", config.Estimator.MaxIterations)
	}

	return &config, nil
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Merge defaults: 3-sigma upper limits, detection threshold follows
	// the upper-limit confidence unless set explicitly.
	viper.SetDefault("merge.upper_limit_confidence", 0.997)
	viper.SetDefault("merge.detection_threshold", 0.0)

	// Estimator
	viper.SetDefault("estimator.mass_tolerance", 1e-6)
	viper.SetDefault("estimator.max_iterations", 200)
}
