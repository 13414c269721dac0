package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suPer8Hu/postcraft/internal/common"
	"github.com/suPer8Hu/postcraft/internal/httpapi/handlers"
	"github.com/suPer8Hu/postcraft/internal/httpapi/middleware"
)

type Options struct {
	CORSOrigins []string
	// Gatherer backs GET /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// MaxMultipartMB bounds the in-memory part of multipart uploads.
	MaxMultipartMB int
}

func NewRouter(h *handlers.Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	if opts.MaxMultipartMB > 0 {
		r.MaxMultipartMemory = int64(opts.MaxMultipartMB) << 20
	}
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", middleware.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Disposition", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")

	// auth
	v1.POST("/auth/register", h.Register)
	v1.POST("/auth/login", h.Login)
	v1.POST("/auth/refresh", h.Refresh)

	authed := v1.Group("/")
	authed.Use(middleware.AuthRequired(h.Auth))
	authed.GET("/auth/me", h.Me)
	authed.POST("/auth/logout", h.Logout)

	// prompts and tags
	authed.GET("/prompts", h.ListPrompts)
	authed.POST("/prompts", h.CreatePrompt)
	authed.GET("/prompts/:id", h.GetPrompt)
	authed.PUT("/prompts/:id", h.UpdatePrompt)
	authed.DELETE("/prompts/:id", h.DeletePrompt)
	authed.GET("/tags", h.ListTags)

	// templates
	authed.GET("/templates", h.ListTemplates)
	authed.POST("/templates", h.CreateTemplate)
	authed.GET("/templates/tags", h.TemplateTags)
	authed.GET("/templates/:id", h.GetTemplate)
	authed.PUT("/templates/:id", h.UpdateTemplate)
	authed.DELETE("/templates/:id", h.DeleteTemplate)

	// persona
	authed.GET("/customer-info/categories", h.PersonaCategories)
	authed.POST("/customer-info/initialize", h.InitializePersona)
	authed.GET("/customer-info", h.ListPersona)
	authed.GET("/customer-info/:category", h.GetPersona)
	authed.PUT("/customer-info/:category", h.ReplacePersona)

	// model configs
	authed.GET("/models/providers/list", h.ProviderCatalogue)
	authed.GET("/models", h.ListModelConfigs)
	authed.POST("/models", h.CreateModelConfig)
	authed.GET("/models/:id", h.GetModelConfig)
	authed.PUT("/models/:id", h.UpdateModelConfig)
	authed.DELETE("/models/:id", h.DeleteModelConfig)

	// credentials
	authed.GET("/credentials", h.ListCredentials)
	authed.POST("/credentials", h.SetCredential)
	authed.POST("/credentials/validate", h.ValidateCredential)
	authed.GET("/credentials/:key", h.GetCredential)
	authed.PUT("/credentials/:key", h.SetCredential)
	authed.DELETE("/credentials/:key", h.DeleteCredential)

	// generation
	authed.POST("/generate/text", h.GenerateText)
	authed.POST("/generate/text/async", h.GenerateTextAsync)
	authed.GET("/generate/jobs/:job_id", h.GetJob)
	authed.POST("/generate/image", h.GenerateImage)
	authed.POST("/generate/image/reference", h.UploadReferenceImage)
	authed.POST("/ocr/process", h.ProcessOCR)
	authed.GET("/ocr/providers", h.OCRProviders)

	// posts
	authed.GET("/posts", h.ListPosts)
	authed.POST("/posts", h.CreatePost)
	authed.GET("/posts/export/csv", h.ExportPostsCSV)
	authed.POST("/posts/bulk/archive", h.BulkArchivePosts)
	authed.POST("/posts/bulk/restore", h.BulkRestorePosts)
	authed.GET("/posts/:id", h.GetPost)
	authed.PUT("/posts/:id", h.UpdatePost)
	authed.DELETE("/posts/:id", h.DeletePost)
	authed.POST("/posts/:id/publish", h.PublishPost)
	authed.POST("/posts/:id/archive", h.ArchivePost)
	authed.POST("/posts/:id/restore", h.RestorePost)
	authed.POST("/posts/:id/media", h.UploadPostMedia)
	authed.DELETE("/posts/:id/media", h.RemovePostMedia)

	// import
	authed.POST("/import", h.Import)
	authed.POST("/import/files", h.ImportFiles)

	return r
}
