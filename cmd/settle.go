package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gitlab.com/vitanet-network/settlement_api/cmd/commands"
	"gitlab.com/vitanet-network/settlement_api/config"
	"gitlab.com/vitanet-network/settlement_api/lock"
	"gitlab.com/vitanet-network/settlement_api/net/redis"
	"gitlab.com/vitanet-network/settlement_api/queries"
	"gitlab.com/vitanet-network/settlement_api/service"
)

var (
	settleWeek    string
	settleQuarter string
	settleDryRun  bool
	settleForce   bool
)

func init() {
	settleCmd.Flags().StringVar(&settleWeek, "week", "", "week key to settle (YYYY-Www)")
	settleCmd.Flags().StringVar(&settleQuarter, "quarter", "", "quarter key to settle (YYYY-Qn)")
	settleCmd.Flags().BoolVar(&settleDryRun, "dry-run", false, "compute without persisting")
	settleCmd.Flags().BoolVar(&settleForce, "force", false, "bypass the period lock (operator override)")
	rootCmd.AddCommand(settleCmd)
}

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Run one settlement period from the command line",
	Long:  `Executes or previews a single weekly or quarterly settlement and prints the structured result`,
	Run: func(cmd *cobra.Command, args []string) {
		if (settleWeek == "") == (settleQuarter == "") {
			log.Fatal().Msg("Provide exactly one of --week or --quarter")
		}
		cfg := config.LoadConfig(viper.GetViper())
		commands.Migrate(cfg)

		repo := queries.NewRepo(cfg.DatabaseCluster.Writer, cfg.DatabaseCluster.Reader)
		redisClient := redis.NewClient(cfg.Redis)
		if err := redisClient.Connect(); err != nil {
			log.Fatal().Err(err).Str("section", "settle").Msg("Unable to connect to redis")
		}
		defer redisClient.Disconnect()

		srv := service.NewService(context.Background(), cfg, repo, lock.NewRedisLocker(redisClient))

		var result interface{}
		success := false
		if settleWeek != "" {
			r := srv.ExecuteWeeklyOrPreview(settleWeek, settleDryRun, settleForce)
			result, success = r, r.Success
		} else {
			r := srv.ExecuteQuarterlyOrPreview(settleQuarter, settleDryRun, settleForce)
			result, success = r, r.Success
		}

		out, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(out))
		if !success {
			os.Exit(1)
		}
	},
}
