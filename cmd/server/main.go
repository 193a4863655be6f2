package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/avdeev/chatline/internal/adapters/http"
	"github.com/avdeev/chatline/internal/adapters/ws"
	"github.com/avdeev/chatline/internal/auth"
	"github.com/avdeev/chatline/internal/cache"
	"github.com/avdeev/chatline/internal/config"
	"github.com/avdeev/chatline/internal/relay"
	"github.com/avdeev/chatline/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	users := store.NewUserRepo(db)
	messages := store.NewMessageRepo(db)

	var sidebarCache *cache.Cache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		sidebarCache = cache.New(client, "chatline:", 5*time.Minute)
		if err := sidebarCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, continuing without cache")
			_ = client.Close()
			sidebarCache = nil
		}
		defer sidebarCache.Close()
	}

	hub := relay.NewHub()
	tokens := auth.NewManager(cfg.Secret, cfg.TokenTTL)
	limiter := ws.NewRateLimiter(120, time.Minute)
	wsCtl := ws.NewController(hub, limiter, cfg.ReadLimit, cfg.PingPeriod)

	api := &router.API{
		Users:    users,
		Messages: messages,
		Hub:      hub,
		Tokens:   tokens,
		Cache:    sidebarCache,
	}

	r := router.SetupRouter(ctx, cfg, api, wsCtl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("chatline server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
