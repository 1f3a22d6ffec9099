package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vic-labs/collectivo/internal/config"
	"github.com/vic-labs/collectivo/internal/handler"
	"github.com/vic-labs/collectivo/internal/logger"
	"github.com/vic-labs/collectivo/internal/logic"
	"go.uber.org/zap"
)

// Services 路由依赖的业务逻辑
type Services struct {
	Campaigns *logic.CampaignLogic
	Proposals *logic.ProposalLogic
	// Gatherer 为空时不注册 metrics 路由
	Gatherer prometheus.Gatherer
}

func Setup(svc Services, cfg *config.Config) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(requestLogger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "collectivo",
		})
	})

	if cfg.Metrics.Enabled && svc.Gatherer != nil {
		path := cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.HandlerFor(svc.Gatherer, promhttp.HandlerOpts{})))
	}

	// API版本组
	v1 := r.Group("/api/v1")
	{
		campaignHandler := handler.NewCampaignHandler(svc.Campaigns, svc.Proposals)
		proposalHandler := handler.NewProposalHandler(svc.Proposals)

		campaigns := v1.Group("/campaigns")
		{
			campaigns.GET("", campaignHandler.GetCampaigns)
			campaigns.POST("", campaignHandler.CreateCampaign)
			campaigns.GET("/:id", campaignHandler.GetCampaign)
			campaigns.DELETE("/:id", campaignHandler.DeleteCampaign)
			campaigns.GET("/:id/balance/:address", campaignHandler.GetBalance)
			campaigns.GET("/:id/contributors", campaignHandler.GetContributors)
			campaigns.POST("/:id/contributions", campaignHandler.Contribute)
			campaigns.POST("/:id/withdrawals", campaignHandler.Withdraw)
			campaigns.PUT("/:id/nft-status", campaignHandler.SetNftStatus)
			campaigns.GET("/:id/proposals", proposalHandler.GetProposals)
			campaigns.POST("/:id/proposals", proposalHandler.CreateProposal)
		}

		proposals := v1.Group("/proposals")
		{
			proposals.GET("/:id", proposalHandler.GetProposal)
			proposals.POST("/:id/votes", proposalHandler.CastVote)
			proposals.DELETE("/:id", proposalHandler.DeleteProposal)
		}
	}

	return r
}

// requestLogger 使用 zap 记录请求日志
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := logger.With(
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
		switch {
		case c.Writer.Status() >= 500:
			log.Error("Request failed")
		case c.Writer.Status() >= 400:
			log.Warn("Request rejected")
		default:
			log.Debug("Request handled")
		}
	}
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
