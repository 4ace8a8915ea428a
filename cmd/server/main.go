package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/havenmind/coach-server-go/internal/config"
	"github.com/havenmind/coach-server-go/internal/database"
	"github.com/havenmind/coach-server-go/internal/handler"
	"github.com/havenmind/coach-server-go/internal/jobs"
	"github.com/havenmind/coach-server-go/internal/middleware"
	"github.com/havenmind/coach-server-go/internal/redis"
	"github.com/havenmind/coach-server-go/internal/repository"
	"github.com/havenmind/coach-server-go/internal/service"
	"github.com/havenmind/coach-server-go/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	accountRepo := repository.NewAccountRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	inviteRepo := repository.NewInviteRepository(db.DB)
	memberRepo := repository.NewMembershipRepository(db.DB)
	presenceRepo := repository.NewPresenceRepository(db.DB)
	messageRepo := repository.NewMessageRepository(db.DB)
	intakeRepo := repository.NewIntakeRepository(db.DB)

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	generator := service.NewOpeningService(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	inviteService := service.NewInviteService(
		inviteRepo, sessionRepo, memberRepo,
		cfg.ShareBaseURL, cfg.InviteTTL(), cfg.DefaultMaxParticipants,
	)
	membershipService := service.NewMembershipService(
		db, memberRepo, sessionRepo, inviteRepo, inviteService, broker, cfg.DefaultMaxParticipants,
	)
	presenceService := service.NewPresenceService(presenceRepo, memberRepo)
	lifecycleService := service.NewLifecycleService(
		sessionRepo, memberRepo, messageRepo, accountRepo, intakeRepo,
		presenceService, generator, broker,
		cfg.MinReadyParticipants, cfg.FreeTierMessageLimit,
	)
	messageService := service.NewMessageService(
		messageRepo, memberRepo, sessionRepo, lifecycleService, generator,
	)
	intakeService := service.NewIntakeService(intakeRepo, memberRepo)
	billingService := service.NewBillingService(accountRepo)

	authMiddleware := middleware.NewAuthMiddleware(accountRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	inviteIPLimit := middleware.NewIPRateLimitMiddleware(rateLimiter, 30, time.Minute, "invite")
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	sessionHandler := handler.NewSessionHandler(
		lifecycleService, inviteService, membershipService, presenceService, messageService, intakeService,
	)
	inviteHandler := handler.NewInviteHandler(inviteService, membershipService)
	eventsHandler := handler.NewEventsHandler(broker, membershipService)
	billingHandler := handler.NewBillingHandler(billingService, cfg.StripeWebhookSecret)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	// Invite validation is public so recipients can preview before signing
	// in; it sits behind an IP rate limit instead of auth.
	r.Route("/v1/invites", func(r chi.Router) {
		r.With(inviteIPLimit.Handler).Get("/{code}", inviteHandler.Validate)
		r.With(authMiddleware.Handler, rateLimitMiddleware.Handler).Post("/{code}/join", inviteHandler.Join)
	})

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)
		r.Get("/{sessionID}/events", eventsHandler.ServeHTTP)
		r.Mount("/", sessionHandler.Routes())
	})

	r.Post("/v1/billing/webhook", billingHandler.Webhook)

	cleanupJob := jobs.NewCleanupJob(inviteRepo, presenceRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
