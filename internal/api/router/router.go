package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tripkit/image-search/config"
	"github.com/tripkit/image-search/internal/api/handlers"
	"github.com/tripkit/image-search/internal/api/middleware"
	"github.com/tripkit/image-search/internal/db"
	"github.com/tripkit/image-search/internal/search"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func Setup(
	cfg *config.Config,
	repository db.Repository,
	searchService search.Searcher,
) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()

	// Tracing first so the contextual logger can pick up span ids.
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}

	r.Use(middleware.ContextualLogger("api"))
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())

	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics())
	}

	searchHandler := handlers.NewSearchHandler(searchService)
	healthHandler := handlers.NewHealthHandler(repository)

	r.GET("/health", healthHandler.Check)

	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Endpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	{
		images := api.Group("/images")
		{
			images.POST("/search", searchHandler.Search)
		}
	}

	return r
}
