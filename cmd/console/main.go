package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/railworks/railconsole/internal/backend"
	"github.com/railworks/railconsole/internal/config"
	"github.com/railworks/railconsole/internal/console/handler"
	"github.com/railworks/railconsole/internal/console/session"
	"github.com/railworks/railconsole/internal/console/wizard"
	"github.com/railworks/railconsole/internal/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting railconsole",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	rdb := initRedis(cfg.Redis)

	client := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.RequestTimeout, zapLogger)
	drafts := wizard.NewRedisDraftStore(rdb, cfg.Session.TTL)
	sessions := session.NewRedisPersistence(rdb, cfg.Session.TTL)

	handlers := handler.NewHandlers(client, drafts, sessions, cfg, zapLogger)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	api := r.Group("/api")
	{
		// No session needed.
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/signup", h.Auth.Signup)

		authorized := api.Group("")
		authorized.Use(middleware.SessionAuth(cfg.Session.Secret, cfg.Session.CookieName))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.Me)
			authorized.POST("/auth/sync", h.Auth.Sync)
			authorized.GET("/auth/access", h.Auth.Access)

			authorized.GET("/versions", h.Project.Versions)

			projects := authorized.Group("/projects")
			{
				projects.GET("", h.Project.List)
				projects.GET("/sort-options", h.Project.SortOptions)
				projects.POST("", middleware.RequireRoles("ADMIN"), h.Project.Create)
				projects.GET("/:id", h.Project.Detail)

				projects.GET("/:id/straight", h.Rail.Straight)
				projects.GET("/:id/branch", h.Rail.Branch)
				projects.GET("/:id/capacity", h.Rail.Capacity)
				projects.GET("/:id/quantity-file", h.File.QuantityList)

				projects.GET("/:id/materials", h.Material.Summary)
				projects.GET("/:id/materials/history", h.Material.History)
				projects.GET("/:id/materials/history/detail", h.Material.HistoryDetail)
				projects.GET("/:id/materials/search", h.Material.Search)
				projects.POST("/:id/materials/inbound", h.Material.CreateInbound)

				draft := projects.Group("/:id/branch-draft", middleware.RequireRoles("ADMIN"))
				{
					draft.GET("", h.Wizard.Draft)
					draft.PUT("", h.Wizard.UpdateDraft)
					draft.DELETE("", h.Wizard.ResetDraft)
					draft.POST("/fetch-latest", h.Wizard.FetchLatest)
					draft.POST("/bom", h.Wizard.UploadBom)
					draft.POST("/image", h.Wizard.AttachImage)
					draft.DELETE("/image", h.Wizard.ClearImage)
					draft.POST("/register", h.Wizard.Register)
				}
			}

			authorized.PATCH("/branch-rails/:id", middleware.RequireRoles("ADMIN"), h.Rail.UpdateBranch)
			authorized.DELETE("/branch-rails/:id", middleware.RequireRoles("ADMIN"), h.Rail.DeleteBranch)
			authorized.PATCH("/straight-rails/:id", middleware.RequireRoles("ADMIN"), h.Rail.UpdateStraight)
			authorized.DELETE("/straight-rails/:id", middleware.RequireRoles("ADMIN"), h.Rail.DeleteStraight)

			authorized.GET("/straight-types/normal", h.Rail.NormalStraightTypes)
			authorized.GET("/straight-types/loop", h.Rail.LoopStraightTypes)

			authorized.GET("/branch-bom/:typeId", h.Wizard.BranchBom)
			authorized.GET("/bom-template", h.File.BomTemplate)

			authorized.POST("/files", middleware.RequireRoles("ADMIN"), h.File.Upload)
			authorized.DELETE("/files", middleware.RequireRoles("ADMIN"), h.File.Delete)
		}
	}
}
