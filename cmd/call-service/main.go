package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"unilink-backend/internal/config"
	intDatabase "unilink-backend/internal/database"
	callHandler "unilink-backend/internal/handler/http/call"
	notificationHandler "unilink-backend/internal/handler/http/notification"
	pushHandler "unilink-backend/internal/handler/http/push"
	wsHandler "unilink-backend/internal/handler/ws"
	"unilink-backend/internal/middleware"
	"unilink-backend/internal/repository/cassandra"
	"unilink-backend/internal/repository/cockroach"
	redisRepo "unilink-backend/internal/repository/redis"
	"unilink-backend/internal/service/callsession"
	"unilink-backend/internal/service/invite"
	notificationService "unilink-backend/internal/service/notification"
	"unilink-backend/pkg/constants"
	pkgDatabase "unilink-backend/pkg/database"
	"unilink-backend/pkg/env"
	"unilink-backend/pkg/jwt"
	"unilink-backend/pkg/logger"
	"unilink-backend/pkg/metrics"
	"unilink-backend/pkg/push"
	"unilink-backend/pkg/rtc"
	"unilink-backend/pkg/rtctoken"
)

func main() {
	logger.InitDefault()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. JWT manager for request authentication
	jwtManager := jwt.NewJWTManager(cfg.JWTSecret, constants.AccessTokenExpiry)

	// 2. CockroachDB for notifications, channels and conversations
	db := connectCockroach(ctx, cfg.Cockroach)
	defer db.Close()

	notificationRepo := cockroach.NewCallNotificationRepository(db.Pool)
	channelRepo := cockroach.NewChannelRepository(db.Pool)
	conversationRepo := cockroach.NewConversationRepository(db.Pool)

	// 3. Cassandra for the chat message log
	cassandraDB, err := pkgDatabase.NewCassandraDB(cfg.Cassandra)
	if err != nil {
		logger.Fatal("Failed to connect to Cassandra", zap.Error(err))
	}
	defer cassandraDB.Close()
	logger.Info("Connected to Cassandra")

	messageRepo := cassandra.NewMessageRepository(cassandraDB.Session)

	// 4. Redis for pub/sub, push tokens and token revocation
	redisDB, err := intDatabase.NewRedisDB(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisDB.Close()
	go redisDB.StartHealthCheck(ctx, 10*time.Second)
	logger.Info("Connected to Redis")

	stream := redisRepo.NewNotificationStream(redisDB.Client)
	pushTokenRepo := redisRepo.NewPushTokenRepository(redisDB.Client)

	// 5. Push notifications
	pushProvider, err := push.NewProvider()
	if err != nil {
		logger.Fatal("Failed to initialize push provider", zap.Error(err))
	}
	if _, isMock := pushProvider.(*push.MockProvider); isMock && cfg.IsProduction() {
		logger.Fatal("Mock push provider is not allowed in production")
	}
	pushSvc := push.NewService(pushProvider, pushTokenRepo)

	// 6. Metrics
	appMetrics := metrics.NewMetrics("call-service")
	prometheusMiddleware := middleware.NewPrometheusMiddleware(appMetrics)

	// 7. Call orchestration services
	dispatcher := invite.NewDispatcher(
		notificationRepo,
		channelRepo,
		conversationRepo,
		messageRepo,
		stream,
		pushSvc,
		appMetrics,
	)

	tokenIssuer := rtctoken.NewIssuer(cfg.RTCAPIKey, cfg.RTCAPISecret, cfg.RTCTokenTTL)
	rtcClient := rtc.NewSignalClient(cfg.RTCServerURL)

	manager := callsession.NewManager(dispatcher, tokenIssuer, rtcClient, appMetrics)
	notificationSvc := notificationService.NewService(notificationRepo)

	// 8. Handlers
	callHdlr := callHandler.NewHandler(manager)
	notificationHdlr := notificationHandler.NewHandler(notificationSvc)
	pushHdlr := pushHandler.NewHandler(pushSvc)
	notifyWS := wsHandler.NewNotificationHandler(notificationRepo, manager, stream, appMetrics)

	// 9. Router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.SetTrustedProxies(nil)

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORSMiddleware())
	router.Use(prometheusMiddleware.Handler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "call-service",
			"time":    time.Now().UTC(),
		})
	})
	router.GET("/metrics", middleware.MetricsHandler(appMetrics))

	revocationChecker := middleware.NewRedisRevocationChecker(redisDB.Client)
	authed := router.Group("/v1")
	authed.Use(middleware.AuthMiddleware(jwtManager, revocationChecker))
	{
		calls := authed.Group("/calls")
		{
			calls.POST("/direct", callHdlr.InitDirectCall)
			calls.POST("/group", callHdlr.InitGroupCall)
			calls.POST("/join", callHdlr.JoinCall)
			calls.POST("/end", callHdlr.EndCall)
			calls.GET("/session", callHdlr.GetSession)
		}

		notifications := authed.Group("/notifications")
		{
			notifications.GET("", notificationHdlr.List)
			notifications.GET("/unread", notificationHdlr.ListUnread)
			notifications.POST("/:id/read", notificationHdlr.MarkAsRead)
			notifications.POST("/read-all", notificationHdlr.MarkAllAsRead)
			notifications.DELETE("/:id", notificationHdlr.Delete)

			// WebSocket endpoint for incoming-call prompts
			notifications.GET("/ws", notifyWS.ServeWS)
		}

		pushTokens := authed.Group("/push/tokens")
		{
			pushTokens.POST("", pushHdlr.RegisterToken)
			pushTokens.DELETE("", pushHdlr.UnregisterToken)
			pushTokens.DELETE("/all", pushHdlr.UnregisterAllTokens)
		}
	}

	// 10. Serve with graceful shutdown
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Call service starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down call service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}

// connectCockroach dials CockroachDB with exponential backoff
func connectCockroach(ctx context.Context, cfg *pkgDatabase.CockroachConfig) *pkgDatabase.CockroachDB {
	maxRetries := env.GetInt("DB_MAX_RETRIES", 5)
	baseDelay := 1 * time.Second
	maxDelay := 30 * time.Second

	var db *pkgDatabase.CockroachDB
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = pkgDatabase.NewCockroachDB(ctx, cfg)
		if err == nil {
			logger.Info("Connected to CockroachDB", zap.Int("attempt", attempt))
			return db
		}

		delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt-1)))
		if delay > maxDelay {
			delay = maxDelay
		}
		logger.Warn("CockroachDB connection failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			logger.Fatal("Shutdown requested before database connection established")
		case <-time.After(delay):
		}
	}

	logger.Fatal("Failed to connect to CockroachDB",
		zap.Int("attempts", maxRetries),
		zap.Error(err))
	return nil
}
