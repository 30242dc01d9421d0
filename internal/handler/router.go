package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ujmp/editorial-api/internal/middleware"
	"github.com/ujmp/editorial-api/internal/models"
	"github.com/ujmp/editorial-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth         *AuthHandler
	Articles     *ArticleHandler
	Invoices     *InvoiceHandler
	Webhooks     *WebhookHandler
	Certificates *CertificateHandler
	Journals     *JournalHandler
}

// RegisterRoutes mounts all API routes under the given prefix. Webhooks and
// certificate verification stay public; everything else sits behind JWT.
func RegisterRoutes(r *gin.Engine, prefix string, auth *service.AuthService, h Handlers) {
	api := r.Group(prefix)

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)

	api.GET("/journals", h.Journals.List)
	api.GET("/journals/:id", h.Journals.Get)

	api.POST("/webhooks/payments/:provider", h.Webhooks.Payment)
	api.GET("/certificates/:certificateId/verify", h.Certificates.Verify)

	protected := api.Group("", middleware.JWT(auth))

	protected.POST("/auth/logout", h.Auth.Logout)

	authorOnly := middleware.RequireRoles(models.RoleAuthor)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	billing := middleware.RequireRoles(models.RoleAuthor, models.RoleAdmin)

	articles := protected.Group("/articles")
	{
		articles.POST("", authorOnly, h.Articles.Create)
		articles.GET("", h.Articles.List)
		articles.GET("/:id", h.Articles.Get)
		articles.PUT("/:id", authorOnly, h.Articles.Update)
		articles.POST("/:id/manuscript", authorOnly, h.Articles.UploadManuscript)
		articles.POST("/:id/revisions", authorOnly, h.Articles.SubmitRevision)
		articles.GET("/:id/versions", h.Articles.Versions)
		articles.GET("/:id/timeline", h.Articles.Timeline)
		articles.GET("/:id/allowed-actions", h.Articles.AllowedActions)
		articles.POST("/:id/actions", billing, h.Articles.Action)
		articles.GET("/:id/invoice", billing, h.Invoices.GetForArticle)
		articles.POST("/:id/certificate", adminOnly, h.Certificates.Issue)
	}

	invoices := protected.Group("/invoices", billing)
	{
		invoices.GET("", h.Invoices.List)
		invoices.GET("/:id", h.Invoices.Get)
		invoices.POST("/:id/pay", h.Invoices.Initiate)
		invoices.POST("/:id/mark-paid", adminOnly, h.Invoices.MarkPaid)
	}

	certificates := protected.Group("/certificates")
	{
		certificates.GET("/:certificateId/pdf", h.Certificates.Download)
		certificates.POST("/:certificateId/revoke", adminOnly, h.Certificates.Revoke)
	}
}
