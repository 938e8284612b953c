package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bullbear/config"
	"bullbear/internal/adapters/binanceclient"
	"bullbear/internal/adapters/csvloader"
	"bullbear/internal/adapters/logger"
	"bullbear/internal/adapters/sqlite"
	"bullbear/internal/app"
	"bullbear/internal/ports"
)

// rootCmd runs an analysis when no subcommand is given.
var rootCmd = &cobra.Command{
	Use:   "bullbear",
	Short: "Identify bull and bear markets in a price series",
	Long: `bullbear splits a daily closing price series into alternating bull and
bear markets. A market turns once the price has moved a threshold fraction
(20% by default) away from the running peak or trough.

Examples:
  bullbear --file _SE0000744195_2024-07-03.csv
  bullbear analyze --threshold 0.25 --charts --export out/run.json
  bullbear analyze --source binance --symbol BTCUSDT --persist
  bullbear sweep --file prices.csv
  bullbear history --symbol BTCUSDT
  bullbear history --id 0b6c2f0e-4a52-4b7e-9d0c-6d1e0f3a9b11`,
	SilenceUsage: true,
	RunE:         runAnalyze,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Segment the series and write the market report",
	RunE:  runAnalyze,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Count markets over a range of thresholds",
	RunE:  runSweep,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored analysis runs",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(analyzeCmd, sweepCmd, historyCmd)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to a YAML configuration file (overrides CONFIG_FILE)")
	pf.String("file", "", "Semicolon separated CSV with Date and Closingprice columns")
	pf.String("source", "", "Series source: csv or binance")
	pf.String("symbol", "", "Instrument symbol (derived from the file name for csv)")
	pf.Float64("threshold", 0, "Reversal threshold as a fraction, e.g. 0.2")
	pf.String("log-level", "", "DEBUG, INFO, WARN or ERROR")
	pf.String("db", "", "SQLite database path")

	for _, cmd := range []*cobra.Command{rootCmd, analyzeCmd} {
		f := cmd.Flags()
		f.String("report", "", "Market report file")
		f.Bool("charts", false, "Save one PNG chart per market")
		f.String("chart-dir", "", "Directory for chart files")
		f.String("export", "", "Export the run to this file")
		f.String("format", "", "Export format: json or msgpack")
		f.Bool("persist", false, "Store the run in the database")
	}

	sweepCmd.Flags().Float64("min", 0, "Lowest threshold")
	sweepCmd.Flags().Float64("max", 0, "Highest threshold")
	sweepCmd.Flags().Float64("step", 0, "Threshold increment")
	sweepCmd.Flags().Int("workers", 0, "Concurrent evaluations (0 = GOMAXPROCS)")

	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	historyCmd.Flags().String("id", "", "Show a single run in full")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, appLogger := setup(cmd)

	var repo ports.RunRepository
	if cfg.Persist {
		sqliteRepo := openRepository(cfg, appLogger)
		defer closeRepository(sqliteRepo, appLogger)
		repo = sqliteRepo
	}

	svc := newService(ctx, cfg, appLogger, repo)
	run, err := svc.Run(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "Analysis failed")
		return err
	}
	appLogger.Info(ctx, "Application finished gracefully.", map[string]interface{}{"runID": run.ID})
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, appLogger := setup(cmd)
	svc := newService(ctx, cfg, appLogger, nil)
	if _, err := svc.Sweep(ctx); err != nil {
		appLogger.Error(ctx, err, "Threshold sweep failed")
		return err
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, appLogger := setup(cmd)
	repo := openRepository(cfg, appLogger)
	defer closeRepository(repo, appLogger)

	limit, _ := cmd.Flags().GetInt("limit")
	symbol, _ := cmd.Flags().GetString("symbol")
	id, _ := cmd.Flags().GetString("id")

	svc := newService(ctx, cfg, appLogger, repo)
	if id != "" {
		if _, err := svc.ShowRun(ctx, id); err != nil {
			appLogger.Error(ctx, err, "Failed to show run", map[string]interface{}{"runID": id})
			return err
		}
		return nil
	}
	if _, err := svc.History(ctx, symbol, limit); err != nil {
		appLogger.Error(ctx, err, "Failed to list runs")
		return err
	}
	return nil
}

// setup loads the configuration, applies command line overrides and creates
// the logger. Configuration problems are fatal.
func setup(cmd *cobra.Command) (*config.Config, *logger.ZerologLogger) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	applyFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("FATAL: Invalid command line options: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Debug(context.Background(), "Logger initialized", map[string]interface{}{"level": appLogger.Level().String()})
	return cfg, appLogger
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	float := func(name string, dst *float64) {
		if f.Changed(name) {
			*dst, _ = f.GetFloat64(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}

	str("file", &cfg.DataFile)
	str("source", &cfg.Source)
	str("symbol", &cfg.Symbol)
	float("threshold", &cfg.Threshold)
	str("db", &cfg.DBPath)
	if f.Changed("log-level") {
		cfg.LogLevelName, _ = f.GetString("log-level")
		cfg.LogLevel = logger.ParseLevel(cfg.LogLevelName)
	}

	if f.Lookup("report") != nil {
		str("report", &cfg.ReportFile)
		boolean("charts", &cfg.SaveCharts)
		str("chart-dir", &cfg.ChartDir)
		str("export", &cfg.ExportFile)
		str("format", &cfg.ExportFormat)
		boolean("persist", &cfg.Persist)
	}
	if f.Lookup("min") != nil {
		float("min", &cfg.SweepMin)
		float("max", &cfg.SweepMax)
		float("step", &cfg.SweepStep)
		if f.Changed("workers") {
			cfg.SweepWorkers, _ = f.GetInt("workers")
		}
	}
}

// newSource builds the configured series source.
func newSource(ctx context.Context, cfg *config.Config, appLogger *logger.ZerologLogger) ports.SeriesSource {
	if cfg.Source != config.SourceBinance {
		return &csvloader.Source{Path: cfg.DataFile, Symbol: cfg.Symbol, Logger: appLogger.With("csvloader")}
	}

	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:            cfg.APIKey,
		SecretKey:         cfg.SecretKey,
		UseTestnet:        cfg.IsTestnet,
		Logger:            appLogger.With("binance"),
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(ctx, "Binance client initialized")

	end := time.Now().UTC()
	return &binanceclient.SeriesSource{
		Client:   binanceClient,
		Symbol:   cfg.Symbol,
		Interval: cfg.Interval,
		Start:    end.AddDate(0, 0, -cfg.LookbackDays),
		End:      end,
	}
}

func newService(ctx context.Context, cfg *config.Config, appLogger *logger.ZerologLogger, repo ports.RunRepository) *app.AnalysisService {
	svc, err := app.NewAnalysisService(cfg, appLogger.With("app"), newSource(ctx, cfg, appLogger), repo)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize analysis service")
		log.Fatalf("FATAL: Failed to initialize analysis service: %v", err)
	}
	return svc
}

func openRepository(cfg *config.Config, appLogger *logger.ZerologLogger) *sqlite.Repository {
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger.With("sqlite"),
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
	}
	appLogger.Info(context.Background(), "Database repository initialized")
	return repo
}

func closeRepository(repo *sqlite.Repository, appLogger ports.Logger) {
	if err := repo.Close(); err != nil {
		appLogger.Error(context.Background(), err, "Error closing database repository")
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
