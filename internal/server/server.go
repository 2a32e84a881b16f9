package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"anoa.com/unimarket/internal/config"
	"anoa.com/unimarket/internal/jobs"
	"anoa.com/unimarket/internal/middleware"
	"anoa.com/unimarket/pkg/logger"
	"anoa.com/unimarket/pkg/metrics"

	categoryHttp "anoa.com/unimarket/internal/modules/category/delivery/http"
	favoriteHttp "anoa.com/unimarket/internal/modules/favorite/delivery/http"
	notiHttp "anoa.com/unimarket/internal/modules/notification/delivery/http"
	productHttp "anoa.com/unimarket/internal/modules/product/delivery/http"
	reputationHttp "anoa.com/unimarket/internal/modules/reputation/delivery/http"
	studentHttp "anoa.com/unimarket/internal/modules/student/delivery/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg       *config.Config
	container *Container
	engine    *gin.Engine
	scheduler *jobs.Scheduler
}

func NewServer(cfg *config.Config, c *Container) (*Server, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	scheduler := jobs.NewScheduler()
	if c.RedisClient != nil {
		if err := scheduler.Register(jobs.NewViewSyncJob(c.Views, cfg.ViewSyncSchedule)); err != nil {
			return nil, err
		}
	}
	if err := scheduler.Register(jobs.NewReputationReconcileJob(c.Reputation, cfg.ReputationReconcileSchedule)); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		container: c,
		scheduler: scheduler,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	c := s.container

	studentHandler := studentHttp.NewStudentHandler(c.Students, c.Reputation)
	categoryHandler := categoryHttp.NewCategoryHandler(c.Categories)
	productHandler := productHttp.NewProductHandler(c.Products)
	favoriteHandler := favoriteHttp.NewFavoriteHandler(c.Favorites)
	reputationHandler := reputationHttp.NewReputationHandler(c.Reputation)
	notificationHandler := notiHttp.NewNotificationHandler(c.Notifications, c.RedisClient, s.cfg.AllowedOrigins)

	router := gin.New()

	setupCORS(router, s.cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(metrics.GinMiddleware())

	router.GET("/healthz", s.healthz)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authMiddleware := middleware.NewAuthMiddleware(s.cfg.JWTSecret, s.cfg.JWTIssuer)

	api := router.Group("/api")

	// Public routes; a valid token still unlocks viewer-specific fields
	public := api.Group("")
	public.Use(authMiddleware.OptionalAuth())
	{
		public.GET("/categories", categoryHandler.GetAllCategories)
		public.GET("/categories/:slug", categoryHandler.GetCategoryBySlug)

		public.GET("/products", productHandler.Search)
		public.GET("/products/:product_id", productHandler.GetProduct)

		public.GET("/students/:handle", studentHandler.GetByHandle)
		public.GET("/students/:handle/products", productHandler.ListBySeller)
		public.GET("/students/:handle/reputation", reputationHandler.GetSummary)
		public.GET("/students/:handle/ratings", reputationHandler.ListRatings)
	}

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		// Student routes
		protected.POST("/students", studentHandler.Register)
		protected.GET("/students", studentHandler.List)
		protected.GET("/students/me", studentHandler.GetMe)
		protected.PUT("/students/me", studentHandler.UpdateMe)

		// Product routes
		protected.POST("/products", productHandler.CreateProduct)
		protected.PUT("/products/:product_id", productHandler.UpdateProduct)
		protected.PATCH("/products/:product_id/status", productHandler.UpdateStatus)
		protected.DELETE("/products/:product_id", productHandler.DeleteProduct)
		protected.POST("/products/:product_id/images", productHandler.UploadImages)
		protected.DELETE("/products/:product_id/images/:image_id", productHandler.DeleteImage)

		// Favorite routes
		protected.POST("/products/:product_id/favorite", favoriteHandler.ToggleFavorite)
		protected.GET("/favorites", favoriteHandler.ListFavorites)
		protected.GET("/favorites/summary", favoriteHandler.GetSummary)

		// Reputation routes
		protected.POST("/students/:handle/ratings", reputationHandler.SubmitRating)
		protected.GET("/students/:handle/can-rate", reputationHandler.CanRate)

		// Notification routes
		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.GET("/notifications/ws", notificationHandler.HandleWebSocket)
	}

	return router
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves HTTP and runs the job scheduler until ctx is cancelled, then shuts both down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.L().WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.scheduler.Stop(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.scheduler.Stop(shutdownCtx)
	return err
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := gin.H{"database": "ok"}
	code := http.StatusOK

	if sqlDB, err := s.container.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		status["database"] = "unavailable"
		code = http.StatusServiceUnavailable
	}

	if s.container.RedisClient != nil {
		status["redis"] = "ok"
		if err := s.container.RedisClient.Ping(ctx).Err(); err != nil {
			status["redis"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}

	c.JSON(code, status)
}

func setupCORS(router *gin.Engine, origins []string) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
