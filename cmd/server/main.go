package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wdf-server/internal/catalog"
	"wdf-server/internal/games"
	"wdf-server/internal/platform/config"
	"wdf-server/internal/platform/logger"
	"wdf-server/internal/platform/metrics"
	"wdf-server/internal/platform/scheduler"
	"wdf-server/internal/platform/storage"
	"wdf-server/internal/playlist"
	"wdf-server/internal/score"
	"wdf-server/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	shutdownTimeout = 10 * time.Second
	startupTimeout  = 5 * time.Second
)

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	settingsPath := config.GetEnv("SETTINGS_PATH", "")
	redisURL := config.GetEnv("REDIS_URL", "")
	postgresDSN := config.GetEnv("POSTGRES_DSN", "")
	migrate := config.GetEnvBool("MIGRATE_POSTGRES", false)
	noScheduler := config.GetEnvBool("NO_SCHEDULER", false)
	inactivity := config.GetEnvDuration("SESSION_INACTIVITY", 30*time.Second)
	reapInterval := config.GetEnvDuration("SESSION_REAP_INTERVAL", 10*time.Second)

	log := logger.New(logLevel, logFormat)

	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		log.Error("load settings", "error", err)
		os.Exit(1)
	}
	maxPlayers := config.GetEnvInt("MAX_LOBBY_PLAYERS", settings.MaxLobbyPlayers)
	policy, err := session.ParsePolicy(config.GetEnv("LOBBY_POLICY", string(session.PolicyFill)))
	if err != nil {
		log.Error("invalid LOBBY_POLICY", "error", err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelStart()

	met := metrics.New()
	registry := games.NewRegistry(settings.Games)

	var (
		cache    storage.Cache = storage.NewMemoryCache()
		sessions session.Store = session.NewMemoryStore()
	)
	if redisURL != "" {
		client, err := storage.NewRedisClient(startCtx, redisURL)
		if err != nil {
			log.Error("redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		cache = storage.NewRedisCache(client)
		sessions = session.NewRedisStore(client)
	}

	var (
		songs  catalog.Catalog = catalog.NewMemoryCatalog(catalog.FromSettings(settings.Songs), nil)
		scores score.Store     = score.NewMemoryStore()
	)
	if postgresDSN != "" {
		db, err := gorm.Open(postgres.Open(postgresDSN), &gorm.Config{})
		if err != nil {
			log.Error("postgres", "error", err)
			os.Exit(1)
		}
		gormCatalog := catalog.NewGormCatalog(db)
		if migrate {
			if err := db.WithContext(startCtx).AutoMigrate(&catalog.SongRecord{}, &score.Score{}); err != nil {
				log.Error("migrate", "error", err)
				os.Exit(1)
			}
			if err := gormCatalog.Upsert(startCtx, catalog.FromSettings(settings.Songs)); err != nil {
				log.Error("seed songs", "error", err)
				os.Exit(1)
			}
		}
		songs = gormCatalog
		scores = score.NewGormStore(db)
	}

	sched := scheduler.New(log, met)
	factory := playlist.NewFactory(playlist.FactoryConfig{
		Themes:      playlist.ThemesFromSettings(settings.Themes),
		Communities: settings.Communities,
		Durations:   settings.Durations,
		Catalog:     songs,
		Scheduler:   sched,
		Scores:      scores,
		Log:         log,
		Metrics:     met,
	})
	manager := playlist.NewManager(registry, cache, factory, log, met, nil)

	mm := session.NewMatchmaker(sessions, maxPlayers, policy, log, met)
	sessionSvc := session.NewService(sessions, mm, registry, log, nil)

	playlistH := playlist.NewHandler(manager, settings.Durations, log, nil)
	sessionH := session.NewHandler(sessionSvc, log, nil)
	scoreH := score.NewHandler(scores, registry, log, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			if n, err := sessions.Count(r.Context(), session.Filter{}); err == nil {
				met.SetActiveSessions(n)
			}
		}).ServeHTTP(w, r)
	})
	r.Route("/wdf/{version}", func(r chi.Router) {
		r.Get("/playlist", playlistH.GetScreens)
		r.Get("/server-time", playlistH.GetServerTime)
		r.Post("/sessions", sessionH.Connect)
		r.Delete("/sessions", sessionH.Purge)
		r.Route("/sessions/{session_id}", func(r chi.Router) {
			r.Delete("/", sessionH.Delete)
			r.Post("/ping", sessionH.Ping)
			r.Get("/players", sessionH.Players)
		})
		r.Get("/lobbies", sessionH.Lobbies)
		r.Get("/lobbies/{lobby_id}", sessionH.Lobby)
		r.Post("/scores", scoreH.Submit)
	})

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	if !noScheduler {
		reaper := session.NewReaper(sessions, inactivity, reapInterval, log, met)
		go reaper.Run(runCtx)
	}

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	var editions []string
	for _, e := range registry.Available() {
		editions = append(editions, e.Name)
	}

	log.Info("server starting",
		"port", port,
		"log_level", logLevel,
		"redis", redisURL != "",
		"postgres", postgresDSN != "",
		"max_lobby_players", maxPlayers,
		"lobby_policy", string(policy),
		"no_scheduler", noScheduler,
		"editions", editions,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")
	stopRun()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	if err := sched.Stop(ctx); err != nil {
		log.Error("scheduler stop", "error", err)
	}

	log.Info("server stopped")
}
