package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/seletivo/admissions-api/api/swagger"
	"github.com/seletivo/admissions-api/internal/handler"
	"github.com/seletivo/admissions-api/internal/middleware"
	"github.com/seletivo/admissions-api/internal/models"
	"github.com/seletivo/admissions-api/internal/repository"
	"github.com/seletivo/admissions-api/internal/service"
	"github.com/seletivo/admissions-api/pkg/cache"
	"github.com/seletivo/admissions-api/pkg/config"
	"github.com/seletivo/admissions-api/pkg/database"
	"github.com/seletivo/admissions-api/pkg/export"
	"github.com/seletivo/admissions-api/pkg/jobs"
	"github.com/seletivo/admissions-api/pkg/logger"
	corsmiddleware "github.com/seletivo/admissions-api/pkg/middleware/cors"
	reqidmiddleware "github.com/seletivo/admissions-api/pkg/middleware/requestid"
	"github.com/seletivo/admissions-api/pkg/storage"
)

// @title Admissions API
// @version 1.0.0
// @description Multi-round admissions seat-allocation engine: rounds, call lists, interest confirmation, eligibility reviews and seat grants.
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	txm := database.NewTxManager(db)

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}
	store := cache.NewStore(redisClient)

	files, err := storage.NewArtifactStore(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	candidateRepo := repository.NewCandidateRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	seatRepo := repository.NewSeatRepository(db)
	roundRepo := repository.NewRoundRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	callListRepo := repository.NewCallListRepository(db)
	interestRepo := repository.NewInterestRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	outcomeRepo := repository.NewOutcomeRepository(db)
	grantRepo := repository.NewGrantRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	metricsSvc := service.NewMetricsService()

	accountSvc := service.NewAccountService(userRepo, candidateRepo, validate, logr, service.AccountConfig{
		JWTSecret:          cfg.JWT.Secret,
		TokenExpiry:        cfg.JWT.Expiration,
		TempPasswordLength: cfg.Selection.TempPasswordLength,
	})
	profileSvc := service.NewProfileService(candidateRepo)
	catalogSvc := service.NewCatalogService(catalogRepo, validate, logr)
	categorySvc := service.NewCategoryService(categoryRepo, validate, logr)
	vacancySvc := service.NewVacancyService(seatRepo, categoryRepo, logr)
	registrationSvc := service.NewRegistrationService(registrationRepo, categoryRepo, validate, logr)
	scoreSvc := service.NewScoreService(scoreRepo, registrationRepo, validate, logr)
	rankingSvc := service.NewRankingService(scoreRepo, cfg.Selection.RankingReferenceDate, logr)
	roundSvc := service.NewRoundService(roundRepo, outcomeRepo, callListRepo, validate, store, cfg.Cache.RankedListTTL, cfg.Selection.MaxMultiplier, logr)
	callListSvc := service.NewCallListService(txm, callListRepo, registrationRepo, seatRepo, roundRepo, interestRepo, rankingSvc, accountSvc, candidateRepo, logr)
	interestSvc := service.NewInterestService(txm, interestRepo, reviewRepo, registrationRepo, roundRepo, profileSvc, logr)
	reviewSvc := service.NewReviewService(txm, reviewRepo, categoryRepo, registrationRepo, roundRepo, logr)
	statusSvc := service.NewStatusService(registrationRepo, grantRepo, callListRepo, interestRepo, reviewRepo, roundRepo, store, cfg.Cache.StatusTTL, logr)
	closerSvc := service.NewCloserService(txm, roundRepo, callListRepo, registrationRepo, interestRepo, reviewRepo, categoryRepo, seatRepo, vacancySvc, outcomeRepo, grantRepo, store, metricsSvc, logr)
	exportSvc := service.NewExportService(callListRepo, files, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	closeQueue := jobs.NewQueue("round-lifecycle", func(ctx context.Context, job jobs.Job) error {
		if job.RoundID == "" {
			return fmt.Errorf("job %s carries no round id", job.ID)
		}
		switch job.Type {
		case jobs.TypeRoundClose:
			return closerSvc.CloseRound(ctx, job.RoundID)
		case jobs.TypeRoundReopen:
			return closerSvc.ReopenRound(ctx, job.RoundID)
		default:
			return fmt.Errorf("unknown job type %q", job.Type)
		}
	}, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		BufferSize: cfg.Jobs.BufferSize,
		MaxRetries: cfg.Jobs.MaxRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	closeQueue.Start(rootCtx)
	defer closeQueue.Stop()

	go cleanupExports(rootCtx, exportSvc, cfg.Exports.SignedURLTTL, logr)

	authHandler := handler.NewAuthHandler(accountSvc)
	categoryHandler := handler.NewCategoryHandler(categorySvc)
	seatHandler := handler.NewSeatHandler(vacancySvc)
	roundHandler := handler.NewRoundHandler(roundSvc, closerSvc, closeQueue)
	catalogHandler := handler.NewCatalogHandler(catalogSvc)
	registrationHandler := handler.NewRegistrationHandler(registrationSvc, statusSvc, roundSvc)
	scoreHandler := handler.NewScoreHandler(scoreSvc)
	callListHandler := handler.NewCallListHandler(callListSvc, exportSvc)
	interestHandler := handler.NewInterestHandler(interestSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.POST("/auth/login", authHandler.Login)
	r.GET("/exports/:token", exportHandler.Download)

	authed := r.Group("", middleware.JWT(accountSvc))
	{
		authed.GET("/auth/me", authHandler.Me)

		authed.GET("/editions", catalogHandler.ListEditions)
		authed.GET("/courses", catalogHandler.ListCourses)
		authed.GET("/categories", categoryHandler.List)
		authed.GET("/categories/:id/review-types", categoryHandler.ReviewTypes)
		authed.GET("/categories/edges", categoryHandler.Edges)

		authed.GET("/rounds/:id", roundHandler.Get)
		authed.GET("/editions/:id/rounds", roundHandler.ListByEdition)
		authed.GET("/rounds/:id/outcomes", roundHandler.Outcomes)
		authed.GET("/rounds/:id/ranked", roundHandler.RankedList)
		authed.GET("/rounds/:id/call-lists", callListHandler.ListByRound)
		authed.GET("/call-lists/:id/entries", callListHandler.Entries)

		authed.GET("/registrations/:id", registrationHandler.Get)
		authed.GET("/candidates/:id/registrations", registrationHandler.ListByCandidate)
		authed.GET("/registrations/:id/rounds/:roundID/status", registrationHandler.Status)
		authed.GET("/registrations/:id/rounds/:roundID/outcome", registrationHandler.Outcome)
	}

	admin := authed.Group("", middleware.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/editions", catalogHandler.CreateEdition)
		admin.POST("/courses", catalogHandler.CreateCourse)
		admin.POST("/categories", categoryHandler.Create)
		admin.PUT("/categories/:id/review-types", categoryHandler.SetReviewTypes)
		admin.POST("/categories/edges", categoryHandler.AddEdge)

		admin.POST("/seats", seatHandler.Create)

		admin.POST("/rounds", roundHandler.Create)
		admin.POST("/rounds/:id/publish", roundHandler.Publish)
		admin.POST("/rounds/:id/close", roundHandler.Close)
		admin.POST("/rounds/:id/reopen", roundHandler.Reopen)
		admin.POST("/rounds/:id/call-lists", callListHandler.Build)
		admin.GET("/rounds/:id/call-lists/export", callListHandler.Export)

		admin.POST("/registrations", registrationHandler.Create)
		admin.POST("/scores/import", scoreHandler.Import)
	}

	reviewer := authed.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleReviewer))
	{
		reviewer.PUT("/rounds/:id/registrations/:regID/review", reviewHandler.RecordSubReview)
		reviewer.POST("/rounds/:id/registrations/:regID/review/appeal", reviewHandler.RecordAppeal)
		reviewer.GET("/rounds/:id/registrations/:regID/review", reviewHandler.Get)
	}

	candidate := authed.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleCandidate))
	{
		candidate.POST("/rounds/:id/registrations/:regID/interest", interestHandler.Confirm)
		candidate.DELETE("/rounds/:id/registrations/:regID/interest", interestHandler.Cancel)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

// cleanupExports prunes expired export artifacts until ctx is cancelled.
func cleanupExports(ctx context.Context, exports *service.ExportService, ttl time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(ttl)
			if err != nil {
				logr.Sugar().Warnw("export cleanup failed", "error", err)
				continue
			}
			if len(removed) > 0 {
				logr.Sugar().Infow("expired exports removed", "count", len(removed))
			}
		}
	}
}
