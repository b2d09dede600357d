package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-gin/internal/auth"
	"crm-gin/internal/bot"
	"crm-gin/internal/cache"
	"crm-gin/internal/channel"
	"crm-gin/internal/config"
	"crm-gin/internal/database"
	"crm-gin/internal/handlers"
	"crm-gin/internal/integrations/gocardless"
	"crm-gin/internal/integrations/graph"
	"crm-gin/internal/integrations/slack"
	"crm-gin/internal/llm"
	"crm-gin/internal/mail"
	"crm-gin/internal/metrics"
	"crm-gin/internal/middleware"
	"crm-gin/internal/models"
	"crm-gin/internal/realtime"
	"crm-gin/internal/repositories"
	"crm-gin/internal/services"
	"crm-gin/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	// =========================================================================
	// Configuration and logger
	// =========================================================================
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Service: cfg.App.Name,
		Env:     cfg.App.Env,
	})
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.Int("port", cfg.App.Port),
	)

	// =========================================================================
	// Database
	// =========================================================================
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if cfg.App.IsDevelopment() || cfg.Database.Driver == config.DriverSQLite {
		if err := database.AutoMigrate(db); err != nil {
			log.Warn("auto migrate failed", zap.Error(err))
		} else {
			log.Info("database auto migration completed")
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("failed to get sql db", zap.Error(err))
	}

	store := repositories.NewStore(db)
	clock := cache.SystemClock
	loc := cfg.Assistant.Location()

	// =========================================================================
	// Caches
	// =========================================================================
	tenantCache := cache.MustNew[*models.Tenant](cfg.Cache.SettingsCapacity, cfg.Cache.SettingsTTL, clock)
	conversationCache := cache.MustNew[*models.TelegramConversation](cfg.Cache.ConversationCapacity, cfg.Cache.ConversationTTL, clock)

	// =========================================================================
	// Outbound clients
	// =========================================================================
	var publisher realtime.Publisher
	if cfg.Centrifugo.URL != "" && cfg.Centrifugo.APIKey != "" {
		publisher = realtime.NewCentrifugoClient(cfg.Centrifugo.URL, cfg.Centrifugo.APIKey, logger.Component(log, "realtime"))
		log.Info("centrifugo publisher initialized", zap.String("url", cfg.Centrifugo.URL))
	} else {
		publisher = realtime.NewNoopPublisher()
		log.Warn("centrifugo not configured, using noop publisher")
	}

	slackClient := slack.New()
	graphClient := graph.New(cfg.Microsoft.LoginBaseURL, cfg.Microsoft.GraphBaseURL)
	gocardlessClient := gocardless.New("")
	llmProvider := llm.NewProvider(cfg.OpenAI)
	telegram := channel.NewTelegramClient(cfg.Telegram.APIBaseURL, cfg.Telegram.RequestTimeout, logger.Component(log, "telegram"))

	// =========================================================================
	// Services
	// =========================================================================
	settingsService := services.NewSettingsService(store.Tenants, tenantCache, logger.Component(log, "settings"))
	mailer := mail.NewMailer(settingsService, nil, logger.Component(log, "mail"))
	notifier := services.NewNotifier(settingsService, slackClient, publisher, logger.Component(log, "notifier"))

	jwtService := auth.NewJWTService(cfg.JWT)
	authService := services.NewAuthService(store.Users, store.Tenants, jwtService, mailer, cfg.App.PublicURL, clock, logger.Component(log, "auth"))
	userService := services.NewUserService(store.Users, settingsService, mailer, cfg.App.PublicURL, clock, logger.Component(log, "users"))

	clientService := services.NewClientService(store.Clients, logger.Component(log, "clients"))
	invoiceService := services.NewInvoiceService(store, settingsService, mailer, notifier, clock, logger.Component(log, "invoices"))
	quoteService := services.NewQuoteService(store, settingsService, mailer, notifier, clock, logger.Component(log, "quotes"))
	treasuryService := services.NewTreasuryService(store, invoiceService, clock, logger.Component(log, "treasury"))
	workService := services.NewWorkService(store, clock, logger.Component(log, "work"))
	analyticsService := services.NewAnalyticsService(store, clock, loc, logger.Component(log, "analytics"))
	contractService := services.NewContractService(store, settingsService, mailer, "", logger.Component(log, "contracts"))
	calendarService := services.NewCalendarService(settingsService, graphClient, logger.Component(log, "calendar"))
	goCardlessService := services.NewGoCardlessService(store, settingsService, gocardlessClient, notifier, cfg.App.PublicURL, clock, logger.Component(log, "gocardless"))

	testers := services.NewTesterRegistry(services.TesterDeps{
		Mailer:     mailer,
		GoCardless: gocardlessClient,
		Graph:      graphClient,
		Slack:      slackClient,
		LLM:        llmProvider,
	})
	integrationService := services.NewIntegrationService(store, settingsService, testers, "", clock, logger.Component(log, "integrations"))

	// =========================================================================
	// Assistant
	// =========================================================================
	var toolObserver bot.ToolObserver
	if cfg.Metrics.Enabled {
		toolObserver = metrics.ToolObserver{}
	}
	dispatcher := bot.NewDispatcher(bot.Deps{
		Store:                store,
		Clients:              clientService,
		Invoices:             invoiceService,
		Quotes:               quoteService,
		Treasury:             treasuryService,
		Work:                 workService,
		Analytics:            analyticsService,
		Contracts:            contractService,
		Calendar:             calendarService,
		Clock:                clock,
		DefaultEventDuration: time.Duration(cfg.Assistant.DefaultEventMinutes) * time.Minute,
	}, toolObserver, logger.Component(log, "tools"))

	memory := bot.NewConversationMemory(store.Conversations, conversationCache, clock, cfg.Assistant.MaxHistory)
	assistant := bot.NewAssistant(settingsService, llmProvider, dispatcher, memory, clock, loc, logger.Component(log, "assistant"))

	log.Info("assistant initialized", zap.Int("tools", len(dispatcher.Names())))

	// =========================================================================
	// Handlers
	// =========================================================================
	secureCookies := cfg.App.IsProduction()
	authHandler := handlers.NewAuthHandler(authService, secureCookies, log)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceService, clock.Now, loc, log)
	settingsHandler := handlers.NewSettingsHandler(settingsService, integrationService, log)
	treasuryHandler := handlers.NewTreasuryHandler(treasuryService, log)
	goCardlessHandler := handlers.NewGoCardlessHandler(goCardlessService, cfg.App.PublicURL, log)
	userHandler := handlers.NewUserHandler(userService, log)
	healthHandler := handlers.NewHealthHandler(sqlDB, cfg.App.Name)
	telegramHandler := handlers.NewTelegramHandler(
		store.Tenants,
		settingsService,
		invoiceService,
		assistant,
		telegram,
		clock,
		handlers.TelegramConfig{
			RatePerMinute:  cfg.Telegram.RatePerMinute,
			TypingInterval: cfg.Telegram.TypingInterval,
			ReplyTimeout:   cfg.Assistant.ReplyTimeout,
		},
		logger.Component(log, "webhook"),
	)

	// =========================================================================
	// Router
	// =========================================================================
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logging(log))
	if cfg.Metrics.Enabled {
		router.Use(middleware.Metrics())
	}
	router.Use(middleware.CORS(cfg.App.CORSOrigins))
	router.Use(middleware.CSRF(
		"/api/auth/login",
		"/api/auth/refresh",
		"/api/auth/password/",
		"/api/telegram/",
		"/api/gocardless/callback",
	))

	router.GET("/health", healthHandler.Health)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, metrics.Handler())
	}

	authMiddleware := middleware.AuthMiddleware(authService)

	api := router.Group("/api")
	{
		authHandler.RegisterRoutes(api, authMiddleware)
		telegramHandler.RegisterRoutes(api)

		protected := api.Group("")
		protected.Use(authMiddleware)

		goCardlessHandler.RegisterRoutes(api, protected)
		invoiceHandler.RegisterRoutes(protected)
		settingsHandler.RegisterRoutes(protected)
		treasuryHandler.RegisterRoutes(protected)
		userHandler.RegisterRoutes(protected)
	}

	// =========================================================================
	// HTTP server
	// =========================================================================
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Assistant.ReplyTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.Int("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
