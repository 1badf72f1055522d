package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"localmart/api/internal/cache"
	"localmart/api/internal/config"
	"localmart/api/internal/middleware"
	"localmart/api/internal/payment"
	"localmart/api/internal/repository"
	"localmart/api/internal/service"
	"localmart/api/internal/storage"
)

type HandlerSet struct {
	log           zerolog.Logger
	cfg           *config.AppConfig
	db            *pgxpool.Pool
	cache         *redis.Client
	users         *repository.UserRepository
	sessions      *repository.SessionRepository
	authService   *service.AuthService
	accounts      *service.AccountService
	searchService *service.SearchService
	listings      *service.ListingService
	subscriptions *service.SubscriptionService
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, redisClient *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	listingRepo := repository.NewListingRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	statusCache := cache.NewStatusCache(redisClient)
	provider := payment.NewClient(cfg.Payment)

	subscriptionService := service.NewSubscriptionService(
		userRepo, subscriptionRepo, listingRepo, provider, statusCache, cfg.Payment.KeySecret, log)

	return HandlerSet{
		log:           log,
		cfg:           cfg,
		db:            db,
		cache:         redisClient,
		users:         userRepo,
		sessions:      sessionRepo,
		authService:   service.NewAuthService(userRepo, sessionRepo, cfg, log),
		accounts:      service.NewAccountService(userRepo, listingRepo, statusCache, cfg.Subscription.TrialPeriod, log),
		searchService: service.NewSearchService(listingRepo, cfg.Search, log),
		listings:      service.NewListingService(listingRepo, subscriptionService, store, log),
		subscriptions: subscriptionService,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.RegisterAccount)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)

		protected := v1.Group("/auth")
		protected.Use(middleware.Auth(h.cfg, h.users, h.sessions))
		protected.GET("/me", h.Me)

		// Public discovery: search trusts the materialized visibility flag,
		// direct fetches go through the gate.
		v1.GET("/search", h.Search)
		v1.GET("/listings/:id", h.GetListing)

		account := v1.Group("/account")
		account.Use(middleware.Auth(h.cfg, h.users, h.sessions))
		account.GET("/status", h.AccountStatus)
		account.PUT("/role", h.ChangeRole)
		account.GET("/can-become/:kind", h.CanBecome)

		listings := v1.Group("/listings")
		listings.Use(middleware.Auth(h.cfg, h.users, h.sessions), middleware.RequireBusinessRole())
		listings.POST("", h.CreateListing)
		listings.PUT("/:id", h.UpdateListing)
		listings.DELETE("/:id", h.DeleteListing)

		media := v1.Group("/listings")
		media.Use(
			middleware.Auth(h.cfg, h.users, h.sessions),
			middleware.RequireBusinessRole(),
			middleware.RequireActiveSubscription(h.subscriptions),
		)
		media.POST("/:id/images", h.UploadListingImage)

		subscription := v1.Group("/subscription")
		subscription.Use(middleware.Auth(h.cfg, h.users, h.sessions))
		subscription.GET("/status", h.SubscriptionStatus)
		subscription.POST("/create-order", h.CreateOrder)
		subscription.POST("/verify-payment", h.VerifyPayment)
		subscription.POST("/cancel", h.CancelSubscription)
	}
}
