package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stellarlinkco/mnemo/internal/archive"
	"github.com/stellarlinkco/mnemo/internal/compress"
	"github.com/stellarlinkco/mnemo/internal/config"
	"github.com/stellarlinkco/mnemo/internal/priority"
	"github.com/stellarlinkco/mnemo/internal/scheduler"
	"github.com/stellarlinkco/mnemo/internal/server"
	"github.com/stellarlinkco/mnemo/internal/store"
)

const version = "0.3.0"

// app wires the storage, lifecycle and priority layers from one config.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	memory   *store.MemoryStore
	archives *archive.Store
	archival *archive.Service
	compress *compress.Service
	engine   *priority.Engine
	sink     *server.MemorySink
	sched    *scheduler.Service
}

func newApp(log *zap.Logger) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newAppWithConfig(cfg, log)
}

func newAppWithConfig(cfg *config.Config, log *zap.Logger) (*app, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Data.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	memory := store.NewMemoryStore(cfg.Data.Dir, log)
	archives := archive.NewStore(cfg.Data.ArchivesDir(), log)
	archival := archive.NewService(memory, archives, log)

	var summarizer compress.Summarizer
	if cfg.Summary.BaseURL != "" {
		summarizer = compress.NewHTTPSummarizer(cfg.Summary.APIKey, cfg.Summary.BaseURL, cfg.Summary.Model, 2048, 60*time.Second)
	}
	compressor := compress.NewService(memory, summarizer, cfg.Lifecycle.PreserveRecentDays, cfg.Lifecycle.WarmDays, log)

	engine, err := priority.NewEngine(cfg.Data.FeedbackPath(), log)
	if err != nil {
		return nil, fmt.Errorf("load priority engine: %w", err)
	}
	sink := server.NewMemorySink(log)
	router := priority.NewRouter(sink, log)

	sched := scheduler.NewService(scheduler.Config{
		CompressionSchedule: cfg.Scheduler.CompressionSchedule,
		ArchivalSchedule:    cfg.Scheduler.ArchivalSchedule,
		ThresholdSchedule:   cfg.Scheduler.ThresholdSchedule,
		CompressionPriority: cfg.Scheduler.CompressionPriority,
		ArchivalPriority:    cfg.Scheduler.ArchivalPriority,
		ThresholdPriority:   cfg.Scheduler.ThresholdPriority,
		ArchiveDays:         cfg.Lifecycle.ArchiveDays,
		SizeThresholdMB:     cfg.Lifecycle.SizeThresholdMB,
	}, compressor, archival, memory, archives, router, log)

	return &app{
		cfg:      cfg,
		log:      log,
		memory:   memory,
		archives: archives,
		archival: archival,
		compress: compressor,
		engine:   engine,
		sink:     sink,
		sched:    sched,
	}, nil
}

var rootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "mnemo - agent memory lifecycle daemon",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with the maintenance scheduler",
	RunE:  runServe,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show memory store and archive status",
	RunE:  runStatus,
}

var writeCmd = &cobra.Command{
	Use:   "write <content>",
	Short: "Append an entry to the memory store",
	Args:  cobra.ExactArgs(1),
	RunE:  runWrite,
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search entries in the live store and archives",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Move old entries into monthly archive partitions",
	RunE:  runArchive,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <partition>",
	Short: "Restore an archive partition (e.g. 2026-01) into the live store",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

var compressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Rebuild the compressed read-model",
	RunE:  runCompress,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data directory",
	RunE:  runOnboard,
}

var (
	categoryFlag string
	scopeFlag    string
	daysFlag     int
)

func init() {
	writeCmd.Flags().StringVarP(&categoryFlag, "category", "c", "general", "Entry category")
	searchCmd.Flags().StringVarP(&scopeFlag, "scope", "s", "all", "Search scope: live, archive or all")
	archiveCmd.Flags().IntVarP(&daysFlag, "days", "d", 0, "Archive entries older than this many days (default from config)")
	rootCmd.AddCommand(serveCmd, statusCmd, writeCmd, searchCmd, archiveCmd, restoreCmd, compressCmd, onboardCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	a, err := newApp(log)
	if err != nil {
		return err
	}

	if err := a.sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer a.sched.Stop()

	srv := server.New(a.memory, a.archives, a.archival, a.compress, a.sched, a.engine, a.sink, version, log)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Data dir: %s\n", a.cfg.Data.Dir)

	memStats, err := a.memory.Stats()
	if err != nil {
		return fmt.Errorf("memory stats: %w", err)
	}
	fmt.Printf("Memory: %d entries, %d bytes\n", memStats.EntryCount, memStats.SizeBytes)
	if !memStats.Modified.IsZero() {
		fmt.Printf("Modified: %s\n", memStats.Modified.Format(store.TimestampLayout))
	}

	tiers, err := a.compress.Tiers()
	if err != nil {
		return fmt.Errorf("tier snapshot: %w", err)
	}
	fmt.Printf("Tiers: %d hot / %d warm / %d cold\n", tiers.Hot, tiers.Warm, tiers.Cold)

	arcStats, err := a.archives.Stats()
	if err != nil {
		return fmt.Errorf("archive stats: %w", err)
	}
	if arcStats.TotalPartitions == 0 {
		fmt.Println("Archive: empty")
	} else {
		fmt.Printf("Archive: %d partitions, %d entries, %.2f MB (%s .. %s)\n",
			arcStats.TotalPartitions, arcStats.TotalEntries, arcStats.TotalSizeMB, arcStats.Oldest, arcStats.Newest)
	}

	if cfgSummary := a.cfg.Summary.BaseURL; cfgSummary != "" {
		fmt.Printf("Summarizer: %s\n", cfgSummary)
	} else {
		fmt.Println("Summarizer: key-point extraction (no endpoint configured)")
	}
	return nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	line, err := a.memory.Append(categoryFlag, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Recorded: %s\n", line)
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}

	var results []store.Entry
	if scopeFlag == "live" || scopeFlag == "all" {
		live, err := a.memory.Search(args[0])
		if err != nil {
			return err
		}
		results = append(results, live...)
	}
	if scopeFlag == "archive" || scopeFlag == "all" {
		archived, err := a.archives.Search(args[0], nil, nil)
		if err != nil {
			return err
		}
		results = append(results, archived...)
	}

	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for _, e := range results {
		fmt.Println(store.FormatLine(e))
	}
	fmt.Printf("\n%d matches\n", len(results))
	return nil
}

func runArchive(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}

	days := daysFlag
	if days <= 0 {
		days = a.cfg.Lifecycle.ArchiveDays
	}
	res, err := a.archival.ArchiveOldEntries(days)
	if err != nil {
		return err
	}
	fmt.Printf("Archived %d entries, retained %d\n", res.ArchivedCount, res.RecentCount)
	for _, id := range res.PartitionsCreated {
		fmt.Printf("  -> archives/%s.md\n", id)
	}
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	res, err := a.archival.RestoreFromArchive(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Restored %d entries from %s\n", res.RestoredCount, args[0])
	return nil
}

func runCompress(cmd *cobra.Command, args []string) error {
	a, err := newApp(nil)
	if err != nil {
		return err
	}
	res, err := a.compress.Compress(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Compression %s: %d hot / %d warm / %d cold\n",
		res.Status, res.Tiers.Hot, res.Tiers.Warm, res.Tiers.Cold)
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgPath := config.ConfigPath()

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.SaveConfig(config.DefaultConfig()); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Data.ArchivesDir(), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	fmt.Printf("Data dir ready: %s\n", cfg.Data.Dir)

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Run 'mnemo write \"first memory\"' to record an entry")
	fmt.Println("  2. Run 'mnemo serve' to start the API and scheduler")
	fmt.Printf("  3. Optionally set a summarizer endpoint in %s\n", cfgPath)
	return nil
}
