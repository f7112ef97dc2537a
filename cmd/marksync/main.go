package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mapmarks/engine/internal/api"
	"github.com/mapmarks/engine/internal/cloudsync"
	"github.com/mapmarks/engine/internal/config"
	"github.com/mapmarks/engine/internal/dispatcher"
	"github.com/mapmarks/engine/internal/engine"
	"github.com/mapmarks/engine/internal/geocode"
	"github.com/mapmarks/engine/internal/indexer"
	"github.com/mapmarks/engine/internal/logging"
	"github.com/mapmarks/engine/internal/metrics"
	"github.com/mapmarks/engine/internal/monitor"
	appotel "github.com/mapmarks/engine/internal/otel"
	"github.com/mapmarks/engine/internal/session"
	"github.com/mapmarks/engine/internal/similarity"
	"github.com/mapmarks/engine/internal/storage"
	filestorage "github.com/mapmarks/engine/internal/storage/file"
	pgstorage "github.com/mapmarks/engine/internal/storage/postgres"
	sqlitestorage "github.com/mapmarks/engine/internal/storage/sqlite"
	"github.com/mapmarks/engine/internal/store"
	"github.com/mapmarks/engine/internal/viewport"
)

// app holds the wired session components.
type app struct {
	logger   *slog.Logger
	logMgr   *logging.SlogManager
	otel     *appotel.Provider
	store    *store.Store
	backend  storage.Backend
	events   *dispatcher.Dispatcher
	viewport *viewport.Tracker
	resolver *similarity.Resolver
	engine   *engine.Synchronizer
	cloud    *api.Client
	geocoder *geocode.Client
	syncer   *cloudsync.Syncer
	indexer  *indexer.Manager
	monitor  *monitor.Service
	metrics  *metrics.Manager
	session  *session.Context
}

func main() {
	configDir := os.Getenv("MARKSYNC_CONFIG_DIR")
	if configDir == "" {
		configDir = "."
	}
	if err := config.Load(configDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	a, cleanup, err := buildApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return
	}

	switch strings.ToLower(args[0]) {
	case "query":
		err = a.runQuery(args[1:])
	case "add":
		err = a.runAdd(args[1:])
	case "remove":
		err = a.runRemove(args[1:])
	case "dump":
		err = a.runDump()
	case "sync":
		err = a.runSync(args[1:])
	case "index":
		err = a.runIndex()
	case "healthcheck":
		err = a.runHealthcheck()
	default:
		printUsage()
	}
	if err != nil {
		a.logger.Error("command failed", "command", args[0], "error", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("usage: marksync <command>")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  query [title=S] [memo=S] [from=DATE] [to=DATE] [bounds=swLat,swLon;neLat,neLon] [search=TEXT]")
	fmt.Println("  add <lat,lon> [title] [memo]")
	fmt.Println("  remove <id>")
	fmt.Println("  dump")
	fmt.Println("  sync [push|seed]")
	fmt.Println("  index")
	fmt.Println("  healthcheck")
}

func buildApp() (*app, func(), error) {
	a := &app{session: session.NewContext(viper.GetString("cloud.userId"))}

	// logging: session file, optional graylog, optional otel
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create logs dir: %w", err)
	}
	logFile, err := os.Create(logging.LogFilePath(logsDir, "marksync", a.session.StartedAt()))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create log file: %w", err)
	}

	otelProvider, err := appotel.New(appotel.ConfigFromApp(config.GetOTelConfig(), logFile))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up otel: %w", err)
	}
	a.otel = otelProvider

	a.logMgr = logging.NewSlogManager()
	if viper.GetBool("graylog.enabled") {
		gw, err := logging.NewGraylogWriter(viper.GetString("graylog.address"))
		if err != nil {
			fmt.Fprintln(os.Stderr, "graylog unavailable:", err)
		} else {
			a.logMgr.WithGraylog(gw)
		}
	}
	a.logMgr.Setup(logFile, viper.GetString("logLevel"), otelProvider.LoggerProvider())

	// session context on every record
	a.logger = slog.New(logging.NewContextHandler(
		a.logMgr.Logger().Handler(),
		func() []slog.Attr {
			return []slog.Attr{
				slog.String("sessionStart", a.session.StartedAt().UTC().Format(time.RFC3339)),
				slog.String("userId", a.session.User()),
			}
		},
	))

	a.events, err = dispatcher.New(logging.NewDispatcherLogger(a.logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	a.cloud = api.New(viper.GetString("cloud.serverUrl"), viper.GetString("cloud.apiKey"))
	a.geocoder = geocode.New(viper.GetString("geocode.baseUrl"))

	a.backend, err = buildBackend(a)
	if err != nil {
		return nil, nil, err
	}
	if err := a.backend.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to init storage: %w", err)
	}

	if viper.GetBool("influx.enabled") {
		a.metrics = metrics.NewManager(zerolog.New(logFile).With().Timestamp().Logger(),
			filepath.Join(logsDir, "metrics_backup.gz"))
		if err := a.metrics.Connect(); err != nil {
			a.logger.Warn("metrics unavailable", "error", err)
			a.metrics = nil
		}
	}

	storeDeps := store.Dependencies{
		Persister: a.backend,
		Events:    a.events,
		Logger:    a.logger,
	}
	if a.metrics != nil {
		storeDeps.Metrics = a.metrics
	}
	a.store = store.New(storeDeps)
	a.store.Load(context.Background())
	if a.store.Corrupted() {
		a.logger.Warn("stored markers were corrupted, starting from an empty list")
	}

	a.viewport = viewport.New(viewport.Dependencies{
		Events: a.events,
		Logger: a.logger,
	})

	a.resolver = buildResolver(a)

	engineDeps := engine.Dependencies{
		Store:      a.store,
		Viewport:   a.viewport,
		Dispatcher: a.events,
		Logger:     a.logger,
	}
	if a.resolver != nil {
		engineDeps.Similarity = a.resolver
	}
	if a.metrics != nil {
		engineDeps.Metrics = a.metrics
	}
	a.engine = engine.New(engineDeps)

	a.syncer = cloudsync.New(cloudsync.Dependencies{
		Remote: a.cloud,
		Pusher: a.cloud,
		Store:  a.store,
		Logger: a.logger,
		UserID: a.session.User(),
	})

	a.indexer = buildIndexer(a)

	monitorDeps := monitor.Dependencies{
		Store:      a.store,
		Engine:     a.engine,
		Session:    a.session,
		LogManager: a.logMgr,
		StatusDir:  logsDir,
		Interval:   time.Second,
	}
	if a.indexer != nil {
		monitorDeps.Indexer = a.indexer
	}
	a.monitor = monitor.NewService(monitorDeps)

	cleanup := func() {
		a.monitor.Stop()
		a.engine.Close()
		a.viewport.Close()
		if a.resolver != nil {
			a.resolver.Close()
		}
		a.store.Close()
		a.backend.Close()
		if a.metrics != nil {
			a.metrics.Close()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logMgr.Flush(ctx)
		a.otel.Shutdown(ctx)
		logFile.Close()
	}
	return a, cleanup, nil
}

func buildBackend(a *app) (storage.Backend, error) {
	storageCfg := config.GetStorageConfig()
	simCfg := config.GetSimilarityConfig()

	return storage.NewBackend(storageCfg.Type, storage.Builders{
		File: func() (storage.Backend, error) {
			return filestorage.New(storageCfg.File, a.logMgr), nil
		},
		SQLite: func() (storage.Backend, error) {
			return sqlitestorage.New(storageCfg.SQLite, a.logMgr, a.session.User())
		},
		Postgres: func() (storage.Backend, error) {
			return pgstorage.New(a.logMgr, a.session.User(), simCfg.Model)
		},
	})
}

func buildResolver(a *app) *similarity.Resolver {
	simCfg := config.GetSimilarityConfig()
	if !simCfg.Enabled {
		return nil
	}

	embedder := similarity.NewOpenAIEmbedder(similarity.EmbedderConfig{
		BaseURL: simCfg.BaseURL,
		APIKey:  simCfg.APIKey,
		Model:   simCfg.Model,
		Timeout: simCfg.Timeout,
	})

	var searcher similarity.Searcher
	switch simCfg.Searcher {
	case "postgres":
		if pg, ok := a.backend.(*pgstorage.Backend); ok {
			searcher = pg
		} else {
			a.logger.Warn("postgres searcher requested but storage is not postgres, using cloud")
			searcher = a.cloud
		}
	default:
		searcher = a.cloud
	}

	resolverDeps := similarity.Dependencies{
		Embedder:  embedder,
		Searcher:  searcher,
		Events:    a.events,
		Logger:    a.logger,
		UserScope: a.session.User(),
		Limit:     simCfg.TopK,
		Timeout:   simCfg.Timeout,
	}
	if a.metrics != nil {
		resolverDeps.Metrics = a.metrics
	}
	return similarity.New(resolverDeps)
}

// buildIndexer wires the embedding indexer when similarity is enabled and the
// storage backend can hold vectors.
func buildIndexer(a *app) *indexer.Manager {
	simCfg := config.GetSimilarityConfig()
	if !simCfg.Enabled {
		return nil
	}
	pg, ok := a.backend.(*pgstorage.Backend)
	if !ok {
		a.logger.Debug("embedding indexer disabled, storage has no vector support")
		return nil
	}

	return indexer.NewManager(indexer.Dependencies{
		Store: a.store,
		Embedder: similarity.NewOpenAIEmbedder(similarity.EmbedderConfig{
			BaseURL: simCfg.BaseURL,
			APIKey:  simCfg.APIKey,
			Model:   simCfg.Model,
			Timeout: simCfg.Timeout,
		}),
		Sink:       pg,
		LogManager: a.logMgr,
	})
}
