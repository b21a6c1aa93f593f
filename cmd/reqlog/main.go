package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/marcogenualdo/reqlog/internal/config"
	"github.com/marcogenualdo/reqlog/internal/console"
	"github.com/marcogenualdo/reqlog/internal/server"
)

const version = "1.0.0"

type options struct {
	configPath string
	port       int
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to configuration file (optional)")
	flag.StringVar(&opts.configPath, "c", "", "alias for -config option")
	flag.IntVar(&opts.port, "port", 0, "listening port (default 8080)")
	flag.IntVar(&opts.port, "p", 0, "alias for -port option")
	showVersion := flag.Bool("version", false, "show version and exit")
	showHelp := flag.Bool("help", false, "show help and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("reqlog v%s\n", version)
		os.Exit(0)
	}

	if *showHelp {
		fmt.Println("reqlog - prints incoming GET requests to the console")
		fmt.Println("\nUsage:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)
	logger.Info("starting reqlog", "version", version)

	printer := console.NewPrinter(outputWriter(cfg.Console.Output))

	srv, err := server.New(*cfg, printer, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if opts.port != 0 {
		cfg.Server.Port = opts.port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func outputWriter(name string) io.Writer {
	if strings.ToLower(name) == "stdout" {
		return os.Stdout
	}
	return os.Stderr
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	out := outputWriter(cfg.Output)

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}
