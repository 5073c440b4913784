package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"gitlab.com/vitanet-network/settlement_api/actions"
	"gitlab.com/vitanet-network/settlement_api/config"
	"gitlab.com/vitanet-network/settlement_api/crons"
	"gitlab.com/vitanet-network/settlement_api/lock"
	"gitlab.com/vitanet-network/settlement_api/net/redis"
	"gitlab.com/vitanet-network/settlement_api/queries"
	"gitlab.com/vitanet-network/settlement_api/service"
)

// Server interface
type Server interface {
	Listen()
}

type server struct {
	config  config.Config
	actions *actions.Actions
	service *service.Service
	redis   *redis.Client
	ctx     context.Context
	close   context.CancelFunc
	HTTP    *http.Server
}

// NewServer constructor
func NewServer(cfg config.Config) Server {
	ctx, close := context.WithCancel(context.Background())

	repo := queries.NewRepo(cfg.DatabaseCluster.Writer, cfg.DatabaseCluster.Reader)

	redisClient := redis.NewClient(cfg.Redis)
	if err := redisClient.Connect(); err != nil {
		log.Fatal().Err(err).Str("section", "server").Msg("Unable to connect to redis")
	}
	locker := lock.NewRedisLocker(redisClient)

	dataService := service.NewService(ctx, cfg, repo, locker)
	userActions := actions.NewActions(cfg, dataService, ctx)

	crons.Start(cfg.Crons, dataService)

	return &server{
		config:  cfg,
		actions: userActions,
		service: dataService,
		redis:   redisClient,
		ctx:     ctx,
		close:   close,
	}
}

// Listen starts the consumers and the HTTP API and blocks until a
// termination signal arrives.
func (srv *server) Listen() {
	srv.service.Start()
	go srv.ListenToRequests()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	log.Info().Str("section", "server").Str("signal", sig.String()).Msg("Shutting down")

	srv.close()
	crons.Close()
	srv.service.Close()
	if srv.HTTP != nil {
		_ = srv.HTTP.Shutdown(context.Background())
	}
	srv.redis.Disconnect()
}
