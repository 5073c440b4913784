package cmd

import (
	"github.com/rs/zerolog/log"

	"gitlab.com/vitanet-network/settlement_api/cmd/commands"
	"gitlab.com/vitanet-network/settlement_api/config"
	"gitlab.com/vitanet-network/settlement_api/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the settlement service and listen for order and activation events",
	Long:  `Connect to the configured message queue, credit PV for activated orders and expose the settlement admin API`,
	Run: func(cmd *cobra.Command, args []string) {
		log.Debug().Msg("Loading server configuration")
		if viper.ConfigFileUsed() != "" {
			log.Debug().Str("section", "init").Str("path", viper.ConfigFileUsed()).Msg("Configuration file loaded")
		}
		cfg := config.LoadConfig(viper.GetViper())
		// Running migrations
		log.Debug().Msg("Running migrations")
		commands.Migrate(cfg)

		log.Debug().Str("section", "init").Msg("Starting new server instance")
		srv := server.NewServer(cfg)
		log.Info().Str("section", "init").Msg("Listening for incoming events")
		srv.Listen()
	},
}
