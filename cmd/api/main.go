package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pnotisdev/pnotis-anime/internal/auth"
	"github.com/pnotisdev/pnotis-anime/internal/handlers"
	"github.com/pnotisdev/pnotis-anime/internal/httpserver"
	"github.com/pnotisdev/pnotis-anime/internal/jikan"
	"github.com/pnotisdev/pnotis-anime/internal/logging"
	"github.com/pnotisdev/pnotis-anime/internal/store"
)

type Config struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	DatabaseURL    string        `envconfig:"DATABASE_URL" required:"true"`
	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	AccessTokenTTL time.Duration `envconfig:"ACCESS_TOKEN_TTL" default:"24h"`
	JikanBaseURL   string        `envconfig:"JIKAN_BASE_URL" default:"https://api.jikan.moe/v4"`
	SearchCacheTTL time.Duration `envconfig:"SEARCH_CACHE_TTL" default:"5m"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
}

func mustLoadEnv() Config {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		panic(err)
	}
	return c
}

func mustDB(dsn string, log *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sqlDB, _ := db.DB()
	if err := sqlDB.PingContext(ctx); err != nil {
		log.Fatal("db ping", zap.Error(err))
	}
	return db
}

func main() {
	cfg := mustLoadEnv()
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	db := mustDB(cfg.DatabaseURL, log)
	st := store.NewPostgres(db)
	if err := st.Migrate(); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	catalog := jikan.New(cfg.JikanBaseURL)
	tokens := auth.TokenService{Secret: []byte(cfg.JWTSecret), TTL: cfg.AccessTokenTTL}
	requireUser := auth.RequireUser(tokens)

	authHandler := handlers.NewAuthHandler(st, tokens, log)
	entriesHandler := handlers.NewEntriesHandler(st, catalog, log)
	catalogHandler := handlers.NewCatalogHandler(st, catalog, log)
	favoritesHandler := handlers.NewFavoritesHandler(st, log)
	discoverHandler := handlers.NewDiscoverHandler(st, log)
	searchHandler := handlers.NewSearchHandler(catalog, cfg.SearchCacheTTL, log)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, log)

	r.Route("/v1", func(r chi.Router) {
		// Public routes
		r.Get("/search", searchHandler.Search)
		r.Get("/discover", discoverHandler.Popular)
		r.Route("/auth", authHandler.Routes)
		r.With(requireUser).Get("/auth/user", authHandler.Whoami)

		// List stays public so profiles are viewable; mutations check ownership.
		r.With(auth.OptionalUser(tokens)).
			Route("/users/{username}", entriesHandler.Routes(requireUser))

		r.Route("/catalog/{id}", catalogHandler.Routes(requireUser))

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Route("/favorites", favoritesHandler.Routes)
		})
	})

	srv := httpserver.New(httpserver.Options{Addr: ":" + cfg.Port, Router: r})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Start(log); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server", zap.Error(err))
	}
}
