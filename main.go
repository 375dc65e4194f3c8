package main

import (
	"log"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"impactledger/internal/config"
	"impactledger/internal/db"
	"impactledger/internal/http/handlers"
	appmw "impactledger/internal/http/middleware"
	"impactledger/internal/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	if err := logger.Init("info", "json"); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}

	db.StartReconciliationWorker(sqlDB, cfg)
	db.StartCoverageSnapshotWorker(sqlDB, cfg)

	if err := db.EnsureBootstrapAdmin(sqlDB, cfg); err != nil {
		logger.Fatal("failed to ensure bootstrap admin", zap.Error(err))
	}

	handlers.InitPrometheusMetrics()

	r := router.New()

	handler := handlers.RequestLogger(appmw.RequestID(r.Handler))

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	r.POST("/login", handlers.LoginSubmit(sqlDB))
	r.POST("/logout", handlers.Logout())

	session := appmw.SessionAuth(sqlDB, cfg)
	r.POST("/admin/users", session(handlers.CreateUser(sqlDB)))
	r.DELETE("/admin/users/{id}", session(handlers.DeleteUser(sqlDB, cfg)))
	r.POST("/settings/password", session(handlers.ChangePasswordSelf(sqlDB, cfg)))
	r.POST("/apikeys", session(handlers.CreateAPIKey(sqlDB)))
	r.DELETE("/apikeys/{id}", session(handlers.DeleteAPIKey(sqlDB)))
	r.PUT("/apikeys/{id}/active", session(handlers.SetActiveAPIKey(sqlDB)))

	auth := appmw.BearerAuth(sqlDB)

	r.POST("/initiatives", auth(handlers.CreateInitiative(sqlDB)))
	r.GET("/initiatives", auth(handlers.ListInitiatives(sqlDB)))
	r.GET("/initiatives/{id}/donors", auth(handlers.ListDonors(sqlDB)))

	r.POST("/donors", auth(handlers.CreateDonor(sqlDB)))
	r.DELETE("/donors/{id}", auth(handlers.DeleteDonor(sqlDB)))

	r.POST("/kpis", auth(handlers.CreateKpi(sqlDB)))
	r.GET("/kpis/{id}", auth(handlers.GetKpi(sqlDB)))
	r.POST("/kpis/{id}/updates", auth(handlers.CreateKpiUpdate(sqlDB)))
	r.PUT("/updates/{id}", auth(handlers.UpdateKpiUpdate(sqlDB)))
	r.DELETE("/updates/{id}", auth(handlers.DeleteKpiUpdate(sqlDB)))

	r.POST("/evidence", auth(handlers.CreateEvidence(sqlDB)))
	r.DELETE("/evidence/{id}", auth(handlers.DeleteEvidence(sqlDB)))
	r.GET("/kpis/{id}/coverage", auth(handlers.KpiCoverage(sqlDB)))
	r.GET("/kpis/{id}/coverage/history", auth(handlers.KpiCoverageHistory(sqlDB)))

	r.GET("/donor-credits/availability", auth(handlers.CreditAvailability(sqlDB)))
	r.GET("/donor-credits/donor/{donorId}", auth(handlers.ListCreditsForDonor(sqlDB)))
	r.GET("/donor-credits/metric/{kpiId}", auth(handlers.ListCreditsForKpi(sqlDB)))
	r.POST("/donor-credits", auth(handlers.CreateCredit(sqlDB)))
	r.PUT("/donor-credits/{id}", auth(handlers.UpdateCredit(sqlDB)))
	r.DELETE("/donor-credits/{id}", auth(handlers.DeleteCredit(sqlDB)))

	r.GET("/v1/metrics", handlers.TenantMetricsHandler(sqlDB))

	logger.Info("impactledger listening", zap.String("addr", cfg.ListenAddr))
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
