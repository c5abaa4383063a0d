// Package main is the ragtutorial CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Tornshorts/RAG-Tutorial/internal/cli"
	"github.com/Tornshorts/RAG-Tutorial/internal/config"
	"github.com/Tornshorts/RAG-Tutorial/internal/indexer"
	"github.com/Tornshorts/RAG-Tutorial/internal/search"
	"github.com/Tornshorts/RAG-Tutorial/internal/server"
	"github.com/Tornshorts/RAG-Tutorial/internal/storage"
	"github.com/Tornshorts/RAG-Tutorial/internal/watcher"
	"github.com/Tornshorts/RAG-Tutorial/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ragtutorial/config.yaml"

// loadConfig loads .env and then config from path. When path is the default, a
// config.yaml in the current directory takes precedence; when neither exists the
// built-in defaults are used. Returns the path actually loaded, or "" for defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, "", err
	}
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			cfg, err := config.Default()
			return cfg, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	var err error
	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "server":
		err = runServer(args)
	case "ingest":
		err = runIngest(args)
	case "ask":
		err = runAsk(args)
	case "search":
		err = runSearch(args)
	case "status":
		err = runStatus(args)
	case "reset":
		err = runReset(args)
	case "version", "--version", "-v":
		fmt.Printf("ragtutorial version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`ragtutorial - ask questions about your PDF documents

Usage:
  ragtutorial <command> [flags]

Commands:
  server            Start the HTTP API (and the data directory watcher if enabled)
  ingest [-reset]   Load new chunks from the data directory into the index
  ask <question>    Answer a question from the indexed documents
  search <query>    Hybrid keyword + semantic search over indexed chunks
  status            Show index statistics
  reset             Remove every chunk from the index
  version           Print the version
  help              Show this help

Every command accepts -config <path> (default ` + defaultConfigPath + `, or ./config.yaml).
Environment variables (RAG_*, OLLAMA_HOST) and a .env file override the config file.
`)
}

// commandEnv is the shared setup for commands that touch the index.
type commandEnv struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	debug      bool
}

// setup loads the config and builds the logger. quiet selects the command logger for
// commands that print their result to stdout.
func setup(configPath string, debugFlag, quiet bool) (*commandEnv, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	debug := cfg.Debug || debugFlag
	newLogger := utils.NewLogger
	if quiet {
		newLogger = utils.NewCommandLogger
	}
	logger, err := newLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return &commandEnv{cfg: cfg, configPath: resolved, logger: logger, debug: debug}, nil
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watch := fs.Bool("watch", false, "ingest automatically when files change in the data directory")
	_ = fs.Parse(args)

	env, err := setup(*configPath, *debug, false)
	if err != nil {
		return err
	}
	logger := env.logger
	defer func() { _ = logger.Sync() }()
	cfg := env.cfg
	logger.Info("config loaded",
		zap.String("config_path", env.configPath),
		zap.String("data_dir", cfg.DataDir),
		zap.Bool("debug", env.debug))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lock, err := lockIndex(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	if cfg.Watch.Enabled || *watch {
		w := watcher.NewWatcher(cfg.DataDir, comps.Loader.Accepts,
			func(ctx context.Context) error {
				_, err := comps.Indexer.Ingest(ctx, cfg.DataDir)
				return err
			},
			watcher.WithDebounce(cfg.Watch.Debounce),
			watcher.WithLogger(logger),
		)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Stop()
		logger.Info("Watching data directory", zap.String("dir", cfg.DataDir))
	}

	srv := server.NewServer(comps.Engine, comps.Indexer, cfg, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	reset := fs.Bool("reset", false, "clear the index before ingesting")
	dir := fs.String("dir", "", "directory to ingest (default: data_dir from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	env, err := setup(*configPath, *debug, false)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()
	if *dir == "" {
		*dir = env.cfg.DataDir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	lock, err := lockIndex(env.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()
	comps, err := initializeComponents(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	if *reset {
		if err := comps.Indexer.Reset(ctx); err != nil {
			return err
		}
		fmt.Println("Index cleared")
	}
	res, err := comps.Indexer.Ingest(ctx, *dir)
	if errors.Is(err, indexer.ErrNoDocumentsFound) {
		return fmt.Errorf("no documents found in %s", *dir)
	}
	if err != nil {
		return err
	}
	return cli.WriteIngestResult(os.Stdout, res, format)
}

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))

	question := buildQuery(fs.Args())
	if question == "" {
		fmt.Fprintln(os.Stderr, "Usage: ragtutorial ask [flags] <question>")
		return search.ErrEmptyQuery
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	env, err := setup(*configPath, *debug, true)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	comps, err := initializeComponents(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	answer, err := comps.Engine.Answer(ctx, question)
	if answer != nil {
		if werr := cli.WriteAnswer(os.Stdout, answer, format); werr != nil {
			return werr
		}
	}
	return err
}

func runSearch(args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	limit := fs.Int("limit", 0, "number of results (default: search.keyword_limit)")
	keywordOnly := fs.Bool("keyword", false, "keyword search only")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(args))

	query := buildQuery(fs.Args())
	if query == "" {
		fmt.Fprintln(os.Stderr, "Usage: ragtutorial search [flags] <query>")
		return search.ErrEmptyQuery
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	env, err := setup(*configPath, *debug, true)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()
	if *limit <= 0 {
		*limit = env.cfg.Search.KeywordLimit
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	comps, err := initializeComponents(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	var results []*search.Result
	if *keywordOnly {
		hits, err := comps.Engine.Keyword(ctx, query, *limit)
		if err != nil {
			return err
		}
		results = search.KeywordResults(hits)
	} else {
		results, err = comps.Engine.Search(ctx, search.SearchRequest{Query: query, Limit: *limit})
		if err != nil {
			return err
		}
	}
	return cli.WriteSearchResults(os.Stdout, query, results, format)
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	env, err := setup(*configPath, false, true)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()

	ctx := context.Background()
	store, err := storage.Open(ctx, env.cfg.Storage, env.logger)
	if err != nil {
		return err
	}
	defer store.Close()
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	st := cli.NewStatus(stats, env.cfg.Storage.Backend)
	if env.cfg.Storage.Backend == config.BackendSQLite {
		st.PersistDir = env.cfg.Storage.PersistDir
		if n, err := storage.DiskUsageBytes(env.cfg.Storage.PersistDir); err == nil {
			st.DiskUsageBytes = n
		}
	}
	return cli.WriteStatus(os.Stdout, st, format)
}

func runReset(args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(args)

	env, err := setup(*configPath, false, true)
	if err != nil {
		return err
	}
	defer func() { _ = env.logger.Sync() }()

	lock, err := lockIndex(env.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	ctx := context.Background()
	store, err := storage.Open(ctx, env.cfg.Storage, env.logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Reset(ctx); err != nil {
		return err
	}
	fmt.Println("Index cleared")
	return nil
}

// lockIndex claims the index for commands that write to it, so a CLI ingest or reset
// cannot run against a store a server process is using.
func lockIndex(cfg *config.Config) (*storage.Lock, error) {
	lock, err := storage.AcquireLock(cfg.Storage.PersistDir)
	if errors.Is(err, storage.ErrLocked) {
		return nil, fmt.Errorf("%w: stop the running server or ingest first", err)
	}
	return lock, err
}

// buildQuery joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}
