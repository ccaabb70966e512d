package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cuongbtq/phantom-risk/internal/api/handler"
)

// SetupRouter configures the status server routes. The runs group is only
// mounted when a run registry is configured.
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	status := handler.NewStatusHandler(deps)
	r.GET("/health", status.Health)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/progress", status.Progress)

		if deps.Runs != nil {
			runHandler := handler.NewRunHandler(deps)
			runs := v1.Group("/runs")
			{
				runs.GET("", runHandler.ListRuns)
				runs.GET("/:run_id", runHandler.GetRun)
			}
		}
	}

	return r
}
