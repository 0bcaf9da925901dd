package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/putd/internal/logger"
	"github.com/marmos91/putd/internal/transfer"
	"github.com/marmos91/putd/pkg/config"
	journalCSV "github.com/marmos91/putd/pkg/journal/csv"
	"github.com/marmos91/putd/pkg/server"
)

const usage = `putd - file upload server

Usage:
  putd <command> [flags]

Commands:
  init      Write a default configuration file
  start     Start the server
  journal   Print recent transfers from the csv or badger journal

Run 'putd <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "start":
		err = runStart(os.Args[2:])
	case "journal":
		err = runJournal(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%v", err)
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing config file")
	path := fs.String("config", "", "Write to this path instead of the default location")
	_ = fs.Parse(args)

	if *path != "" {
		if err := config.InitConfigToPath(*path, *force); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", *path)
		return nil
	}

	written, err := config.InitConfig(*force)
	if err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", written)
	return nil
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/putd/config.yaml)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Configure logger
	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		return fmt.Errorf("failed to set log output: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("putd - file upload server")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	metricsResult := config.InitializeMetrics(cfg)

	st, err := config.CreateStore(ctx, &cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Storage close error: %v", err)
		}
	}()

	sink, err := config.CreateJournal(ctx, &cfg.Journal)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Error("Journal close error: %v", err)
		}
	}()

	adapters, err := config.CreateAdapters(cfg, metricsResult.PutMetrics, sink)
	if err != nil {
		return err
	}

	srv := server.New(st)
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return err
		}
	}

	// Log server configuration
	put := cfg.Adapters.Put
	logger.Info("Server configuration:")
	logger.Info("  Port: %d", put.Port)
	if put.MaxConnections > 0 {
		logger.Info("  Max connections: %d", put.MaxConnections)
	} else {
		logger.Info("  Max connections: unlimited")
	}
	logger.Info("  Idle timeout: %v", describeTimeout(put.Timeouts.Idle))
	logger.Info("  Chunk timeout: %v", describeTimeout(put.Timeouts.Chunk))
	logger.Info("  Write timeout: %v", describeTimeout(put.Timeouts.Write))
	logger.Info("  Shutdown timeout: %v", put.ShutdownTimeout)

	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	if healthServer := config.CreateHealthServer(cfg, st, metricsResult.PutMetrics); healthServer != nil {
		go func() {
			if err := healthServer.Start(ctx); err != nil {
				logger.Error("Health server error: %v", err)
			}
		}()
	}

	logger.Info("Server is running on port %d. Press Ctrl+C to stop.", put.Port)

	err = srv.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("Server stopped gracefully")
		return nil
	}
	return err
}

func describeTimeout(d time.Duration) string {
	if d == 0 {
		return "disabled"
	}
	return d.String()
}

func runJournal(args []string) error {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/putd/config.yaml)")
	limit := fs.Int("n", 20, "Number of most recent transfers to print (0 = all)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger.SetLevel("WARN")

	if cfg.Journal.Type == "csv" {
		path, err := config.CSVJournalPath(&cfg.Journal)
		if err != nil {
			return err
		}
		return printCSVJournal(path, *limit)
	}

	ctx := context.Background()
	sink, err := config.OpenBadgerJournal(ctx, &cfg.Journal)
	if err != nil {
		return err
	}
	defer func() { _ = sink.Close() }()

	records, err := sink.List(ctx, *limit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No transfers recorded.")
		return nil
	}

	for _, rec := range records {
		rate := "-"
		if rec.RateBytesPerSecond != nil {
			rate = fmt.Sprintf("%.2f B/s", *rec.RateBytesPerSecond)
		}
		fmt.Printf("%s  %-10s  %-32s  %d/%d bytes  %.4fs  %s  %s\n",
			rec.StartTime.Format(time.RFC3339), rec.Outcome, rec.Filename,
			rec.BytesTransferred, rec.DeclaredSize, rec.DurationSeconds, rate, rec.RemoteAddr)
	}
	return nil
}

// printCSVJournal prints the last limit rows of a CSV journal. The CSV
// journal only holds completed uploads.
func printCSVJournal(path string, limit int) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("No transfers recorded.")
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	rows, err := journalCSV.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}

	if len(rows) == 0 {
		fmt.Println("No transfers recorded.")
		return nil
	}

	for _, row := range rows {
		if len(row) < len(journalCSV.Header) {
			continue
		}
		started := row[0]
		if ts, err := journalCSV.ParseTimestamp(row[0]); err == nil {
			started = ts.Format(time.RFC3339)
		}
		rate := "-"
		if row[5] != "" {
			rate = row[5] + " B/s"
		}
		fmt.Printf("%s  %-10s  %-32s  %s bytes  %ss  %s\n",
			started, transfer.Complete, row[2], row[3], row[4], rate)
	}
	return nil
}
