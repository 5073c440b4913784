package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gitlab.com/vitanet-network/settlement_api/actions"
	"gitlab.com/vitanet-network/settlement_api/logger"
)

func (srv *server) ListenToRequests() {
	log.Info().Str("worker", "http_listen_to_requests").Str("action", "start").Msg("HTTP Listen to requests - started")
	defer log.Info().Str("worker", "http_listen_to_requests").Str("action", "stop").Msg("HTTP Listen to requests - stopped")

	a := srv.actions

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.SetLogger())

	r.GET("/ping", actions.Ping)

	if srv.config.Server.Monitoring.Enabled {
		r.GET(srv.config.Server.Monitoring.Path, gin.WrapH(promhttp.Handler()))
	}

	settlements := r.Group("/settlements")
	{
		settlements.GET("/weekly", a.GetWeeklySettlements)
		settlements.GET("/weekly/:week_key/preview", a.PreviewWeeklySettlement)
		settlements.POST("/weekly/:week_key", a.ExecuteWeeklySettlement)
		settlements.GET("/weekly/:week_key/k-factor", a.GetKFactorDetails)
		settlements.GET("/quarterly/:quarter_key/preview", a.PreviewQuarterlySettlement)
		settlements.POST("/quarterly/:quarter_key", a.ExecuteQuarterlySettlement)
	}

	r.GET("/transactions/:period_key", a.GetPeriodTransactions)

	users := r.Group("/users")
	{
		users.GET("/:user_id/pv", a.GetUserPVSummary)
		users.GET("/:user_id/ledger", a.GetUserLedger)
		users.GET("/:user_id/pending-bonuses", a.GetPendingBonuses)
	}

	r.POST("/pending-bonuses/release", a.ReleasePendingBonuses)

	srv.HTTP = &http.Server{
		Addr:    fmt.Sprintf(":%d", srv.config.Server.API.Port),
		Handler: r,
	}
	if err := srv.HTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Str("section", "server").Msg("Unable to start HTTP server")
	}
}
