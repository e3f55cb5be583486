package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"banter/internal/ai"
	"banter/internal/config"
	"banter/internal/handler"
	"banter/internal/ledger"
	"banter/internal/pkg/cache"
	"banter/internal/pkg/mongodb"
	"banter/internal/repository"
	"banter/internal/server/middleware"
	"banter/internal/service"
)

// Server HTTP 服务器
type Server struct {
	cfg    *config.Config
	engine *gin.Engine
	mongo  *mongodb.Client
	redis  *cache.RedisCache
}

// New 创建服务器实例
// MongoDB 与账本客户端是核心依赖，初始化失败直接报错；
// Redis 只承载 typing 状态，连不上时降级运行（typing 接口返回 503）
func New(cfg *config.Config) (*Server, error) {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建 Gin 引擎
	engine := gin.New()

	// 初始化 MongoDB
	mongoClient, err := mongodb.New(&cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	// 创建索引
	if err := mongodb.EnsureIndexes(mongoClient.Database()); err != nil {
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	// 初始化 Redis (可选)
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, typing presence disabled")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	srv := &Server{
		cfg:    cfg,
		engine: engine,
		mongo:  mongoClient,
		redis:  redisCache,
	}

	// 设置路由
	if err := srv.setupRoutes(); err != nil {
		return nil, err
	}

	return srv, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() error {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	healthHandler := handler.NewHealthHandler()
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 仓库层
	db := s.mongo.Database()
	personaRepo := repository.NewPersonaRepo(db)
	convRepo := repository.NewConversationRepo(db)
	msgRepo := repository.NewMessageRepo(db)

	// 开发/测试环境注入种子角色，生产角色由管理后台维护
	if s.cfg.Server.Mode != "release" {
		if err := personaRepo.Seed(context.Background(), repository.SeedPersonas()); err != nil {
			log.Warn().Err(err).Msg("failed to seed personas")
		}
	}

	// 账本客户端
	ledgerClient := ledger.NewClient(&s.cfg.Ledger)

	// AI 客户端
	aiClient, err := ai.NewClient(context.Background(), &s.cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI client: %w", err)
	}

	// 服务层
	exchangeSvc := service.NewExchangeService(
		ledgerClient,
		personaRepo,
		convRepo,
		msgRepo,
		aiClient,
		&s.cfg.Chat,
	)

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		chatHdl := handler.NewChatHandler(exchangeSvc)
		v1.POST("/chat/send", chatHdl.Send)
		v1.GET("/chat/history", chatHdl.History)

		personaHdl := handler.NewPersonaHandler(personaRepo)
		v1.GET("/personas", personaHdl.List)

		creditsHdl := handler.NewCreditsHandler(ledgerClient)
		v1.POST("/credits", creditsHdl.Do)

		// typing 状态存在 Redis（原生按 key 过期，多实例共享）
		if s.redis != nil {
			presenceSvc := service.NewPresenceService(s.redis, s.cfg.Presence.TypingTTL)
			typingHdl := handler.NewTypingHandler(presenceSvc)
			v1.POST("/typing", typingHdl.Signal)
			v1.GET("/typing", typingHdl.Query)
		} else {
			unavailable := func(c *gin.Context) {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"code":    50302,
					"message": "Typing presence unavailable",
				})
			}
			v1.POST("/typing", unavailable)
			v1.GET("/typing", unavailable)
		}
	}

	return nil
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		// 关闭连接
		if s.mongo != nil {
			if err := s.mongo.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to close MongoDB connection")
			}
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close Redis connection")
			}
		}

		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
