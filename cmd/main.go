package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hokensim-backend/internal/config"
	"hokensim-backend/internal/handler"
	"hokensim-backend/internal/service"
	"hokensim-backend/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "設定ファイルのパス")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	chatService := service.NewChatService(cfg)
	chatHandler := handler.NewChatHandler(chatService)

	router := setupRouter(cfg, chatHandler)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("サーバーをポート %d で起動", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("サーバーの起動に失敗: %v", err)
		}
	}()

	// シグナル待ちで優雅に停止する
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーを停止しています...")
	if err := server.Close(); err != nil {
		logger.Errorf("サーバーの停止に失敗: %v", err)
	}
	logger.Info("サーバーを停止しました")
}

func setupRouter(cfg *config.Config, chatHandler *handler.ChatHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("/api")
	{
		// ストリーミングは /api/chat?stream=true で切り替える
		api.POST("/chat", chatHandler.Chat)
		api.POST("/feedback", chatHandler.Feedback)
		api.POST("/test-connection", chatHandler.TestConnection)

		sessions := api.Group("/sessions")
		{
			sessions.POST("", chatHandler.CreateSession)
			sessions.GET("", chatHandler.GetSessionList)
			sessions.DELETE("", chatHandler.ClearAllSessions)
			sessions.GET("/:session_id", chatHandler.GetSession)
			sessions.GET("/:session_id/messages", chatHandler.GetMessages)
			sessions.PUT("/:session_id", chatHandler.UpdateSessionTitle)
			sessions.DELETE("/:session_id", chatHandler.DeleteSession)
		}
	}

	return router
}
