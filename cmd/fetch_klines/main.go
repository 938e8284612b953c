package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bullbear/config"
	"bullbear/internal/adapters/binanceclient"
	"bullbear/internal/adapters/csvloader"
	"bullbear/internal/adapters/logger"
)

var (
	configPath string
	symbol     string
	interval   string
	days       int
	out        string
)

var rootCmd = &cobra.Command{
	Use:   "fetch_klines",
	Short: "Download Binance closing prices into a CSV the analyzer can read",
	Args:  cobra.NoArgs,
	Run:   run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	rootCmd.Flags().StringVar(&symbol, "symbol", "", "Symbol to download (defaults to SYMBOL, then BTCUSDT)")
	rootCmd.Flags().StringVar(&interval, "interval", "", "Kline interval (defaults to INTERVAL)")
	rootCmd.Flags().IntVar(&days, "days", 0, "Days of history (defaults to LOOKBACK_DAYS)")
	rootCmd.Flags().StringVar(&out, "out", "", "Output CSV file (defaults to data/<symbol>_<interval>_<from>_to_<to>.csv)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) {
	// 1. Load Configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}
	if symbol == "" {
		symbol = cfg.Symbol
	}
	if symbol == "" {
		symbol = "BTCUSDT"
	}
	if interval == "" {
		interval = cfg.Interval
	}
	if days <= 0 {
		days = cfg.LookbackDays
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": appLogger.Level().String()})

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:            cfg.APIKey,
		SecretKey:         cfg.SecretKey,
		UseTestnet:        cfg.IsTestnet,
		Logger:            appLogger.With("binance"),
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	appLogger.Info(context.Background(), "Binance client initialized")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := binanceClient.Ping(ctx); err != nil {
		appLogger.Error(ctx, err, "Binance API is not reachable")
		log.Fatalf("Binance API is not reachable: %v", err)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	fmt.Printf("Fetching klines for %s %s from %s to %s...\n", symbol, interval, start.Format("2006-01-02"), end.Format("2006-01-02"))
	klines, err := binanceClient.GetKlinesRange(ctx, symbol, interval, start, end)
	if err != nil {
		appLogger.Error(ctx, err, "Error fetching klines")
		log.Fatalf("Error fetching klines: %v", err)
	}
	appLogger.Info(ctx, "Fetched klines", map[string]interface{}{"count": len(klines)})

	filename := out
	if filename == "" {
		filename = fmt.Sprintf("data/%s_%s_%s_to_%s.csv", symbol, interval, start.Format("20060102"), end.Format("20060102"))
	}
	if err := csvloader.WriteFile(filename, binanceclient.Observations(klines)); err != nil {
		appLogger.Error(ctx, err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": filename})
}
