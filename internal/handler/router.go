package handler

import (
	"minegame/internal/config"
	"minegame/internal/infrastructure/chain"
	"minegame/pkg/signer"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, nonceReader chain.NonceReader, claimSigner *signer.ClaimSigner) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg, nonceReader, claimSigner)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 挖矿相关
		mine := api.Group("/mine")
		{
			mine.POST("/execute", h.Mine)
			mine.GET("/attempts", h.ListAttempts)
		}

		// 会话节点相关
		session := api.Group("/session")
		{
			session.POST("/nodes", h.GenerateNodes)
			session.GET("/nodes", h.ListNodes)
		}

		// 玩家账本相关
		player := api.Group("/player")
		{
			player.POST("/touch", h.TouchPlayer)
			player.GET("/resources", h.GetPlayerResources)
			player.GET("/events", h.ListLedgerEvents)
		}

		// 风控复核
		anticheat := api.Group("/anticheat")
		{
			anticheat.GET("/flags", h.ListSuspicionFlags)
		}

		// 兑换相关
		claim := api.Group("/claim")
		{
			claim.POST("/request", h.ClaimTokens)
			claim.POST("/confirm", h.ConfirmClaim)
			claim.GET("/detail", h.GetClaim)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
