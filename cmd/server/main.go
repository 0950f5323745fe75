package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whatsapp-assistant/internal/api"
	"whatsapp-assistant/internal/audit"
	"whatsapp-assistant/internal/bridge"
	"whatsapp-assistant/internal/cache"
	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/conversation"
	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/documents"
	"whatsapp-assistant/internal/intent"
	"whatsapp-assistant/internal/logger"
	"whatsapp-assistant/internal/pending"
	"whatsapp-assistant/internal/senders"
	"whatsapp-assistant/internal/storage"
	"whatsapp-assistant/internal/webhook"
	"whatsapp-assistant/internal/whatsapp"
	"whatsapp-assistant/internal/ws"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}

	objectStore, files := newObjectStorage(ctx, cfg, log)
	idem := newIdempotencyStore(ctx, cfg, log)
	defer idem.Close()

	var completer intent.Completer
	if c, err := intent.NewAnthropicCompleter(intent.AnthropicConfig{
		APIKey:     cfg.AnthropicAPIKey,
		BaseURL:    cfg.AnthropicBaseURL,
		Model:      cfg.AnthropicModel,
		MaxTokens:  cfg.LLMMaxTokens,
		Timeout:    cfg.LLMTimeout,
		MaxRetries: 2,
	}); err != nil {
		log.Warn("ANTHROPIC_API_KEY not set, intent parsing is disabled")
	} else {
		completer = c
	}
	parser, err := intent.NewParser(completer, log)
	if err != nil {
		log.Fatal("Failed to load intent prompts", zap.Error(err))
	}

	hub := ws.NewHub(log)
	go hub.Run(ctx)

	whatsappClient := whatsapp.NewClient(whatsapp.Config{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioWhatsAppFrom,
	}, log)

	senderStore := senders.NewStore(db)
	pendingStore := pending.NewStore(db, cfg.PendingActionTTL)
	auditLogger := audit.NewLogger(db, hub, log)
	generator := documents.NewGenerator(db, objectStore, documents.NewRenderer(cfg.CurrencySymbol), log)

	bridgeOpts := []bridge.Option{
		bridge.WithIdempotency(idem, cfg.IdempotencyTTL),
		bridge.WithCurrency(cfg.CurrencySymbol),
	}
	if whatsappClient.Configured() {
		bridgeOpts = append(bridgeOpts, bridge.WithMediaSender(whatsappClient))
	}
	executor := bridge.New(db, generator, log, bridgeOpts...)

	router := conversation.NewRouter(conversation.Deps{
		Senders:  senderStore,
		Pending:  pendingStore,
		Parser:   parser,
		Executor: executor,
		Audit:    auditLogger,
	}, cfg.CurrencySymbol, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(logger.Recovery(log), logger.GinMiddleware(log), api.CORS())

	webhookHandler := webhook.NewHandler(cfg, router)
	senderHandler := api.NewSenderHandler(senderStore)
	auditHandler := api.NewAuditHandler(auditLogger, pendingStore, hub)
	intentHandler := api.NewIntentHandler(parser)
	documentHandler := api.NewDocumentHandler(generator, files)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Webhook Routes
	r.POST("/webhook/whatsapp", webhookHandler.HandleMessage)
	r.POST("/webhook/whatsapp/status", webhookHandler.HandleStatus)

	// Documents kept in process are served without the admin token so
	// WhatsApp can fetch them as media.
	r.GET("/files/*key", documentHandler.ServeFile)

	// Admin API Routes
	apiGroup := r.Group("/api", api.AdminAuth(cfg.AdminAPIToken))
	{
		apiGroup.GET("/senders", senderHandler.GetMappings)
		apiGroup.POST("/senders", senderHandler.CreateMapping)
		apiGroup.GET("/senders/export", senderHandler.ExportMappings)
		apiGroup.GET("/senders/:id", senderHandler.GetMapping)
		apiGroup.PATCH("/senders/:id", senderHandler.UpdateMapping)
		apiGroup.DELETE("/senders/:id", senderHandler.DeleteMapping)

		apiGroup.GET("/audit", auditHandler.GetLogs)
		apiGroup.GET("/audit/stream", auditHandler.StreamLogs)
		apiGroup.GET("/pending", auditHandler.GetPendingActions)

		apiGroup.POST("/intent/parse", intentHandler.Parse)
		apiGroup.POST("/documents/generate", documentHandler.Generate)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Server starting", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to run server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// newObjectStorage returns the configured store and, for the memory driver,
// the same store again so the API can serve its files.
func newObjectStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.ObjectStorage, *storage.MemoryStorage) {
	if cfg.Storage.Driver == "s3" {
		s3Store, err := storage.NewS3Storage(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to configure object storage", zap.Error(err))
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare storage bucket", zap.Error(err), zap.String("bucket", s3Store.Bucket()))
		}
		return s3Store, nil
	}

	baseURL := cfg.Storage.PublicBaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + cfg.Port
	}
	log.Warn("Using in-memory document storage; files are lost on restart")
	mem := storage.NewMemoryStorage(baseURL)
	return mem, mem
}

func newIdempotencyStore(ctx context.Context, cfg *config.Config, log *zap.Logger) cache.IdempotencyStore {
	if cfg.RedisAddr == "" {
		return cache.NewMemoryStore()
	}
	store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	return store
}
