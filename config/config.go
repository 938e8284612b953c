package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"bullbear/internal/adapters/logger" // Import the logger package for LogLevel
)

// Series sources.
const (
	SourceCSV     = "csv"
	SourceBinance = "binance"
)

// Config holds all application configuration.
type Config struct {
	// Input
	DataFile  string  `yaml:"data_file"`
	Symbol    string  `yaml:"symbol"`    // Derived from DataFile when empty
	Source    string  `yaml:"source"`    // csv or binance
	Threshold float64 `yaml:"threshold"` // Fraction, e.g. 0.20 for the 20% rule

	// Output
	ReportFile   string `yaml:"report_file"`
	SaveCharts   bool   `yaml:"save_charts"`
	ChartDir     string `yaml:"chart_dir"`
	ExportFile   string `yaml:"export_file"` // Empty disables the export
	ExportFormat string `yaml:"export_format"`

	// Database
	DBPath  string `yaml:"db_path"`
	Persist bool   `yaml:"persist"`

	// Logging
	LogLevelName string          `yaml:"log_level"`
	LogLevel     logger.LogLevel `yaml:"-"`

	// Binance API (klines are public, keys are optional)
	APIKey            string  `yaml:"binance_api_key"`
	SecretKey         string  `yaml:"binance_api_secret"`
	IsTestnet         bool    `yaml:"is_testnet"`
	Interval          string  `yaml:"interval"`
	LookbackDays      int     `yaml:"lookback_days"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Threshold sweep
	SweepMin     float64 `yaml:"sweep_min"`
	SweepMax     float64 `yaml:"sweep_max"`
	SweepStep    float64 `yaml:"sweep_step"`
	SweepWorkers int     `yaml:"sweep_workers"` // 0 means GOMAXPROCS
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		DataFile:          "_SE0000744195_2024-07-03.csv",
		Source:            SourceCSV,
		Threshold:         0.20,
		ReportFile:        "market_analysis_results.txt",
		ChartDir:          "charts",
		ExportFormat:      "json",
		DBPath:            "./data/bullbear.db",
		LogLevelName:      "INFO",
		LogLevel:          logger.LevelInfo,
		Interval:          "1d",
		LookbackDays:      3650,
		RequestsPerSecond: 5,
		SweepMin:          0.05,
		SweepMax:          0.50,
		SweepStep:         0.05,
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file,
// the .env file and environment variables, in increasing precedence. An empty
// path falls back to CONFIG_FILE.
func LoadConfig(path string) (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	var err error
	var errs []string // Collect parse errors

	// Input
	cfg.DataFile = getEnv("DATA_FILE", cfg.DataFile)
	cfg.Symbol = getEnv("SYMBOL", cfg.Symbol)
	cfg.Source = strings.ToLower(getEnv("SOURCE", cfg.Source))
	cfg.Threshold, err = getEnvAsFloatRequired("THRESHOLD", cfg.Threshold)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid THRESHOLD: %v", err))
	}

	// Output
	cfg.ReportFile = getEnv("REPORT_FILE", cfg.ReportFile)
	cfg.SaveCharts = getEnvAsBool("SAVE_CHARTS", cfg.SaveCharts)
	cfg.ChartDir = getEnv("CHART_DIR", cfg.ChartDir)
	cfg.ExportFile = getEnv("EXPORT_FILE", cfg.ExportFile)
	cfg.ExportFormat = strings.ToLower(getEnv("EXPORT_FORMAT", cfg.ExportFormat))

	// Database
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.Persist = getEnvAsBool("PERSIST", cfg.Persist)

	// Logging
	cfg.LogLevelName = getEnv("LOG_LEVEL", cfg.LogLevelName)
	cfg.LogLevel = logger.ParseLevel(cfg.LogLevelName) // Use the parser from the logger package

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", cfg.APIKey)
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", cfg.SecretKey)
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", cfg.IsTestnet)
	cfg.Interval = getEnv("INTERVAL", cfg.Interval)
	cfg.LookbackDays, err = getEnvAsIntRequired("LOOKBACK_DAYS", cfg.LookbackDays)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOOKBACK_DAYS: %v", err))
	}
	cfg.RequestsPerSecond, err = getEnvAsFloatRequired("REQUESTS_PER_SECOND", cfg.RequestsPerSecond)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid REQUESTS_PER_SECOND: %v", err))
	}

	// Threshold sweep
	cfg.SweepMin = getEnvAsFloat("SWEEP_MIN", cfg.SweepMin)
	cfg.SweepMax = getEnvAsFloat("SWEEP_MAX", cfg.SweepMax)
	cfg.SweepStep = getEnvAsFloat("SWEEP_STEP", cfg.SweepStep)
	cfg.SweepWorkers = getEnvAsInt("SWEEP_WORKERS", cfg.SweepWorkers)

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and reports every problem at once.
// Callers that change fields after loading (e.g. from flags) call it again.
func (c *Config) Validate() error {
	var errs []string

	if math.IsNaN(c.Threshold) || c.Threshold <= 0 || c.Threshold >= 1 {
		errs = append(errs, "THRESHOLD must be between 0.0 and 1.0 (exclusive)")
	}

	switch c.Source {
	case SourceCSV:
		if c.DataFile == "" {
			errs = append(errs, "DATA_FILE must be set for the csv source")
		}
	case SourceBinance:
		if c.Symbol == "" {
			errs = append(errs, "SYMBOL must be set for the binance source")
		}
		if c.Interval == "" {
			errs = append(errs, "INTERVAL must be set for the binance source")
		}
	default:
		errs = append(errs, fmt.Sprintf("SOURCE must be %q or %q, got %q", SourceCSV, SourceBinance, c.Source))
	}

	if c.ExportFormat != "json" && c.ExportFormat != "msgpack" {
		errs = append(errs, fmt.Sprintf("EXPORT_FORMAT must be json or msgpack, got %q", c.ExportFormat))
	}
	if c.SaveCharts && c.ChartDir == "" {
		errs = append(errs, "CHART_DIR must be set when SAVE_CHARTS is enabled")
	}
	if c.Persist && c.DBPath == "" {
		errs = append(errs, "DB_PATH must be set when PERSIST is enabled")
	}

	if c.LookbackDays <= 0 {
		errs = append(errs, "LOOKBACK_DAYS must be positive")
	}
	if c.RequestsPerSecond <= 0 {
		errs = append(errs, "REQUESTS_PER_SECOND must be positive")
	}

	if math.IsNaN(c.SweepMin) || math.IsNaN(c.SweepMax) ||
		c.SweepMin <= 0 || c.SweepMax >= 1 || c.SweepMin > c.SweepMax {
		errs = append(errs, "SWEEP_MIN and SWEEP_MAX must satisfy 0 < SWEEP_MIN <= SWEEP_MAX < 1")
	}
	if math.IsNaN(c.SweepStep) || c.SweepStep <= 0 {
		errs = append(errs, "SWEEP_STEP must be positive")
	}
	if c.SweepWorkers < 0 {
		errs = append(errs, "SWEEP_WORKERS cannot be negative")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
