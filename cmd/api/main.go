package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ujmp/editorial-api/api/swagger"
	"github.com/ujmp/editorial-api/internal/handler"
	"github.com/ujmp/editorial-api/internal/middleware"
	"github.com/ujmp/editorial-api/internal/models"
	"github.com/ujmp/editorial-api/internal/repository"
	"github.com/ujmp/editorial-api/internal/service"
	"github.com/ujmp/editorial-api/pkg/cache"
	"github.com/ujmp/editorial-api/pkg/certpdf"
	"github.com/ujmp/editorial-api/pkg/config"
	"github.com/ujmp/editorial-api/pkg/database"
	"github.com/ujmp/editorial-api/pkg/jobs"
	"github.com/ujmp/editorial-api/pkg/logger"
	corsmiddleware "github.com/ujmp/editorial-api/pkg/middleware/cors"
	reqidmiddleware "github.com/ujmp/editorial-api/pkg/middleware/requestid"
)

// @title Editorial API
// @version 1.0.0
// @description Journal submission, peer review, APC billing and certificate issuance
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// Redis only backs the journal cache; the API serves without it.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, journal cache disabled", "error", err)
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	articleRepo := repository.NewArticleRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	journalRepo := repository.NewJournalRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	metricsSvc := service.NewMetricsService()
	dispatcher := service.NewDispatcher(logr)

	authSvc := service.NewAuthService(userRepo, auditRepo, nil, logr, service.AuthConfig{
		Secret:             cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "editorial-api",
	})

	journalSvc := service.NewJournalService(journalRepo, redisClient, cfg.Journals.CacheTTL, logr)

	workflowSvc := service.NewWorkflowService(articleRepo, versionRepo, reviewRepo, invoiceRepo, journalRepo, auditRepo, dispatcher, logr).
		WithMetrics(metricsSvc)

	articleSvc := service.NewArticleService(articleRepo, versionRepo, reviewRepo, auditRepo, journalRepo, journalRepo, nil, logr)

	paymentSvc := service.NewPaymentService(invoiceRepo, paymentRepo, articleRepo, auditRepo, dispatcher, service.PaymentConfig{
		PaymeSecret:     cfg.Payments.PaymeSecret,
		ClickSecret:     cfg.Payments.ClickSecret,
		RedirectBaseURL: cfg.Payments.RedirectBaseURL,
	}, nil, logr)

	certificateSvc := service.NewCertificateService(certificateRepo, articleRepo, journalRepo, auditRepo, dispatcher, certpdf.NewRenderer(), service.CertificateConfig{
		IssuerName:          cfg.Certificates.IssuerName,
		VerificationBaseURL: cfg.Certificates.VerificationBaseURL,
	}, logr).
		WithMetrics(metricsSvc)

	notificationSvc := service.NewNotificationService(articleRepo, userRepo, service.NewLogSender(logr), logr)

	dispatcher.Register("notifications", jobs.QueueConfig{
		Workers:    cfg.Notifications.WorkerConcurrency,
		MaxRetries: cfg.Notifications.WorkerRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, notificationSvc.HandleEvent,
		models.EventArticleSubmitted,
		models.EventArticleRejected,
		models.EventRevisionRequested,
		models.EventArticleAccepted,
		models.EventArticlePublished,
		models.EventPaymentConfirmed,
		models.EventCertificateReady,
	)

	dispatcher.Register("certificates", jobs.QueueConfig{
		Workers:    cfg.Certificates.WorkerConcurrency,
		MaxRetries: cfg.Certificates.WorkerRetries,
		Logger:     logr,
	}, func(ctx context.Context, event models.DomainEvent) error {
		_, err := certificateSvc.IssueForArticle(ctx, event.ArticleID)
		return err
	}, models.EventArticlePublished)

	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, authSvc, handler.Handlers{
		Auth:         handler.NewAuthHandler(authSvc),
		Articles:     handler.NewArticleHandler(articleSvc, workflowSvc),
		Invoices:     handler.NewInvoiceHandler(paymentSvc),
		Webhooks:     handler.NewWebhookHandler(paymentSvc, metricsSvc),
		Certificates: handler.NewCertificateHandler(certificateSvc),
		Journals:     handler.NewJournalHandler(journalSvc),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
