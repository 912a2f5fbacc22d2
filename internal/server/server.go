package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"anoa.com/realmkeeper/internal/config"
	"anoa.com/realmkeeper/internal/middleware"
	"anoa.com/realmkeeper/pkg/metrics"
	"anoa.com/realmkeeper/pkg/storage"

	characterHttp "anoa.com/realmkeeper/internal/modules/character/delivery/http"
	characterRepo "anoa.com/realmkeeper/internal/modules/character/repository"
	characterService "anoa.com/realmkeeper/internal/modules/character/service"

	imageRepo "anoa.com/realmkeeper/internal/modules/image/repository"
	imageService "anoa.com/realmkeeper/internal/modules/image/service"

	permissionHttp "anoa.com/realmkeeper/internal/modules/permission/delivery/http"
	permissionRepo "anoa.com/realmkeeper/internal/modules/permission/repository"
	permissionService "anoa.com/realmkeeper/internal/modules/permission/service"

	ratingHttp "anoa.com/realmkeeper/internal/modules/rating/delivery/http"
	ratingRepo "anoa.com/realmkeeper/internal/modules/rating/repository"
	ratingService "anoa.com/realmkeeper/internal/modules/rating/service"

	realmHttp "anoa.com/realmkeeper/internal/modules/realm/delivery/http"
	realmRepo "anoa.com/realmkeeper/internal/modules/realm/repository"
	realmService "anoa.com/realmkeeper/internal/modules/realm/service"

	realtimeHttp "anoa.com/realmkeeper/internal/modules/realtime/delivery/http"
	realtime "anoa.com/realmkeeper/internal/modules/realtime/service"

	searchService "anoa.com/realmkeeper/internal/modules/search/service"

	traitHttp "anoa.com/realmkeeper/internal/modules/trait/delivery/http"
	traitRepo "anoa.com/realmkeeper/internal/modules/trait/repository"
	traitService "anoa.com/realmkeeper/internal/modules/trait/service"

	userHttp "anoa.com/realmkeeper/internal/modules/user/delivery/http"
	userRepo "anoa.com/realmkeeper/internal/modules/user/repository"
	userService "anoa.com/realmkeeper/internal/modules/user/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Server struct {
	cfg         *config.Config
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
	bus         *realtime.Bus
	scheduler   *imageService.Scheduler
}

func newImageService(cfg *config.Config, db *gorm.DB) (imageService.ImageService, error) {
	var imageStorage storage.ImageStorage
	if cfg.CloudinaryURL != "" {
		s, err := storage.NewCloudinaryStorage(cfg.CloudinaryURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cloudinary storage: %w", err)
		}
		imageStorage = s
	} else {
		slog.Warn("CLOUDINARY_URL not set, image uploads are disabled")
	}
	return imageService.NewImageService(imageRepo.NewImageRepository(db), imageStorage, cfg.CloudinaryUploadFolder, cfg.OrphanMaxAge), nil
}

func newScheduler(cfg *config.Config, images imageService.ImageService) (*imageService.Scheduler, error) {
	scheduler := imageService.NewScheduler()
	if err := scheduler.Register(imageService.OrphanCleanupJob(images, cfg.OrphanCleanupSchedule)); err != nil {
		return nil, fmt.Errorf("failed to schedule orphan cleanup: %w", err)
	}
	return scheduler, nil
}

// RunJob runs one maintenance job to completion without starting the server.
func RunJob(ctx context.Context, cfg *config.Config, db *gorm.DB, name string) error {
	images, err := newImageService(cfg, db)
	if err != nil {
		return err
	}
	scheduler, err := newScheduler(cfg, images)
	if err != nil {
		return err
	}
	return scheduler.RunByName(ctx, name)
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	imageSvc, err := newImageService(cfg, db)
	if err != nil {
		return nil, err
	}

	bus := realtime.NewBus(redisClient, cfg.EventBufferSize)
	index := searchService.NewCharacterIndex(cfg.MeiliSearchHost, cfg.MeiliMasterKey)

	usersRepository := userRepo.NewUserRepository(db)
	authSvc := userService.NewAuthService(usersRepository, cfg.JWTSecret, cfg.JWTTTL)
	authHandler := userHttp.NewAuthHandler(authSvc)

	realmsRepository := realmRepo.NewRealmRepository(db)
	realmSvc := realmService.NewRealmService(realmsRepository, imageSvc, bus, redisClient, cfg.RateLimitJoin)
	realmHandler := realmHttp.NewRealmHandler(realmSvc)

	traitsRepository := traitRepo.NewTraitRepository(db)
	traitSvc := traitService.NewTraitService(traitsRepository, realmSvc, bus)
	traitHandler := traitHttp.NewTraitHandler(traitSvc)

	charactersRepository := characterRepo.NewCharacterRepository(db)
	permissionsRepository := permissionRepo.NewPermissionRepository(db)
	evaluator := permissionService.NewEvaluator(charactersRepository, realmsRepository, permissionsRepository)

	permissionSvc := permissionService.NewPermissionService(permissionsRepository, charactersRepository, realmsRepository, evaluator, bus)
	permissionHandler := permissionHttp.NewPermissionHandler(permissionSvc)

	characterSvc := characterService.NewCharacterService(charactersRepository, realmSvc, evaluator, imageSvc, index, bus)
	characterHandler := characterHttp.NewCharacterHandler(characterSvc)

	ratingSvc := ratingService.NewRatingService(ratingRepo.NewRatingRepository(db), traitsRepository, evaluator, bus)
	ratingHandler := ratingHttp.NewRatingHandler(ratingSvc)

	eventsHandler := realtimeHttp.NewEventsHandler(bus, realmSvc, cfg.EventHeartbeat, originChecker(cfg.AllowedOrigins))

	scheduler, err := newScheduler(cfg, imageSvc)
	if err != nil {
		return nil, err
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	setupCORS(router, cfg.AllowedOrigins)

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	router.Use(metrics.Middleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)

	api := router.Group("/api")

	// Public routes (no auth required)
	if cfg.IsDevelopment() {
		api.POST("/auth/dev-login", authHandler.DevLogin)
	}

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		protected.GET("/users/me", authHandler.Me)

		// Realm routes
		protected.POST("/realms", realmHandler.CreateRealm)
		protected.GET("/realms", realmHandler.ListMyRealms)
		protected.GET("/realms/:realm_id", realmHandler.GetRealm)
		protected.PUT("/realms/:realm_id", realmHandler.UpdateRealm)
		protected.DELETE("/realms/:realm_id", realmHandler.DeleteRealm)
		protected.PUT("/realms/:realm_id/icon", realmHandler.SetIcon)
		protected.DELETE("/realms/:realm_id/icon", realmHandler.RemoveIcon)
		protected.POST("/realms/:realm_id/join", realmHandler.Join)
		protected.POST("/realms/:realm_id/leave", realmHandler.Leave)
		protected.POST("/realms/:realm_id/transfer", realmHandler.TransferOwnership)
		protected.GET("/realms/:realm_id/members", realmHandler.ListMembers)
		protected.PUT("/realms/:realm_id/members/:user_id", realmHandler.UpdateMemberRole)
		protected.DELETE("/realms/:realm_id/members/:user_id", realmHandler.KickMember)

		// Realm events
		protected.GET("/realms/:realm_id/events", eventsHandler.Stream)
		protected.GET("/realms/:realm_id/events/ws", eventsHandler.WebSocket)

		// Trait routes
		protected.GET("/realms/:realm_id/traits", traitHandler.ListTraits)
		protected.POST("/realms/:realm_id/traits", traitHandler.CreateTrait)
		protected.PUT("/traits/:trait_id", traitHandler.UpdateTrait)
		protected.DELETE("/traits/:trait_id", traitHandler.DeleteTrait)

		// Character routes
		protected.GET("/realms/:realm_id/characters", characterHandler.ListCharacters)
		protected.POST("/realms/:realm_id/characters", characterHandler.CreateCharacter)
		protected.GET("/realms/:realm_id/characters/search", characterHandler.SearchCharacters)
		protected.GET("/characters/:character_id", characterHandler.GetCharacter)
		protected.PUT("/characters/:character_id", characterHandler.UpdateCharacter)
		protected.DELETE("/characters/:character_id", characterHandler.DeleteCharacter)
		protected.PUT("/characters/:character_id/image", characterHandler.SetImage)
		protected.DELETE("/characters/:character_id/image", characterHandler.RemoveImage)

		// Rating routes
		protected.GET("/characters/:character_id/ratings", ratingHandler.ListRatings)
		protected.PUT("/characters/:character_id/ratings/:trait_id", ratingHandler.UpsertRating)
		protected.DELETE("/characters/:character_id/ratings/:trait_id", ratingHandler.DeleteRating)

		// Permission routes
		protected.GET("/characters/:character_id/permissions", permissionHandler.ListPermissions)
		protected.POST("/characters/:character_id/permissions", permissionHandler.GrantPermission)
		protected.DELETE("/characters/:character_id/permissions/:user_id/:scope", permissionHandler.RevokePermission)
		protected.GET("/characters/:character_id/access", permissionHandler.GetAccess)
	}

	return &Server{
		cfg:         cfg,
		engine:      router,
		db:          db,
		redisClient: redisClient,
		bus:         bus,
		scheduler:   scheduler,
	}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then drains background workers.
func (s *Server) Run(ctx context.Context, addr string) error {
	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	go func() {
		if err := s.bus.Relay(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("realm event relay stopped", "error", err)
		}
	}()

	s.scheduler.Start()
	defer s.scheduler.Stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// Open event streams would otherwise hold Shutdown until its deadline.
	s.bus.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	slog.Info("http server stopped")
	return nil
}

func setupCORS(router *gin.Engine, origins []string) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}

func originChecker(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}
