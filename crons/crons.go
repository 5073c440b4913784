package crons

import (
	"time"

	"github.com/robfig/cron"
	"github.com/rs/zerolog/log"
	"gitlab.com/vitanet-network/settlement_api/config"
	"gitlab.com/vitanet-network/settlement_api/model"
	"gitlab.com/vitanet-network/settlement_api/service"
)

var cronService *cron.Cron

// Start Initiate the crons based on the given configuration file
func Start(crons config.Crons, srv *service.Service) {
	cronService = cron.New()
	for id, schedule := range crons {
		callback := GetCronByID(id, srv)
		// @todo eventually handle the error if the cron can't be created
		_ = cronService.AddFunc(schedule, callback)
	}
	cronService.Start()
}

// GetCronByID get a function to execute based on the id
func GetCronByID(id string, srv *service.Service) func() {
	switch id {
	case "run_weekly_settlement":
		return func() {
			CronRunWeeklySettlement(srv)
		}
	case "run_quarterly_settlement":
		return func() {
			CronRunQuarterlySettlement(srv)
		}
	}
	return (func() {})
}

// CronRunWeeklySettlement finalizes the previous ISO week. Lock contention
// and an already finalized week are both normal here, since any instance of
// the service may win the run.
func CronRunWeeklySettlement(srv *service.Service) {
	weekKey := model.PrevWeekKey(time.Now())
	result := srv.ExecuteWeeklySettlement(weekKey, false)
	log.Info().
		Str("section", "crons").
		Str("action", "run_weekly_settlement").
		Str("week_key", weekKey).
		Bool("success", result.Success).
		Str("error_kind", string(result.ErrorKind)).
		Msg("Weekly settlement cron finished")
}

// CronRunQuarterlySettlement finalizes the previous quarter.
func CronRunQuarterlySettlement(srv *service.Service) {
	quarterKey := model.PrevQuarterKey(time.Now())
	result := srv.ExecuteQuarterlySettlement(quarterKey, false)
	log.Info().
		Str("section", "crons").
		Str("action", "run_quarterly_settlement").
		Str("quarter_key", quarterKey).
		Bool("success", result.Success).
		Str("error_kind", string(result.ErrorKind)).
		Msg("Quarterly settlement cron finished")
}

// Close godoc
func Close() {
	if cronService != nil {
		cronService.Stop()
	}
}
