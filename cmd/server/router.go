package main

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/handler"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/metrics"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/middleware"
)

type routerDeps struct {
	users    handler.UserService
	ledger   handler.AccountService
	tokens   middleware.TokenVerifier
	limiter  *middleware.IPRateLimiter
	metrics  *metrics.Collectors
	registry prometheus.Gatherer
	logger   *zap.Logger
}

func newRouter(d routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.AccessLog(d.logger, d.metrics))

	uh := handler.NewUserHandler(d.users, d.logger)
	ah := handler.NewAccountHandler(d.ledger, d.logger)
	authed := middleware.Auth(d.tokens)
	limited := middleware.RateLimit(d.limiter)

	r.GET("/health", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))

	r.POST("/signup", limited, uh.Signup)
	r.POST("/signin", limited, uh.Signin)
	r.GET("/bulk", uh.Bulk)
	r.PUT("/update", authed, uh.Update)

	r.GET("/balance", authed, ah.Balance)
	r.POST("/transfer", authed, ah.Transfer)
	return r
}
