package service

import (
	"context"

	kafkaGo "github.com/segmentio/kafka-go"
	"gitlab.com/vitanet-network/settlement_api/config"
	"gitlab.com/vitanet-network/settlement_api/data"
	"gitlab.com/vitanet-network/settlement_api/lock"
	"gitlab.com/vitanet-network/settlement_api/net/kafka"
	"gitlab.com/vitanet-network/settlement_api/queries"
	"gitlab.com/vitanet-network/settlement_api/service/settlement"
)

// Service wires the settlement engine, the PV propagator and the pending
// bonus queue to their data sources.
type Service struct {
	ctx      context.Context
	cfg      config.Config
	repo     *queries.Repo
	engine   *settlement.Engine
	maxDepth int

	orderConsumer      *kafka.Consumer
	activationConsumer *kafka.Consumer
}

// NewService constructor
func NewService(ctx context.Context, cfg config.Config, repo *queries.Repo, locker lock.Locker) *Service {
	maxDepth := cfg.Propagation.MaxDepth
	if maxDepth == 0 {
		maxDepth = 64
	}
	return &Service{
		ctx:      ctx,
		cfg:      cfg,
		repo:     repo,
		engine:   settlement.NewEngine(repo, locker, &cfg.Bonus, cfg.Settlement),
		maxDepth: maxDepth,
	}
}

// Start connects the kafka consumers for order and account activations.
func (service *Service) Start() {
	topics := service.cfg.Kafka.Topics
	if topics.OrderActivations != "" {
		service.orderConsumer = kafka.NewConsumer(service.cfg.Kafka, topics.OrderActivations)
		go service.orderConsumer.Listen(service.ctx, func(msg kafkaGo.Message) error {
			event := &data.OrderActivatedEvent{}
			if err := event.FromBinary(msg.Value); err != nil {
				// poison message, commit and move on
				return nil
			}
			return service.HandleOrderActivated(event)
		})
	}
	if topics.UserActivations != "" {
		service.activationConsumer = kafka.NewConsumer(service.cfg.Kafka, topics.UserActivations)
		go service.activationConsumer.Listen(service.ctx, func(msg kafkaGo.Message) error {
			event := &data.UserActivatedEvent{}
			if err := event.FromBinary(msg.Value); err != nil {
				return nil
			}
			return service.ProcessActivation(event.UserID)
		})
	}
}

// Close stops the consumers.
func (service *Service) Close() {
	if service.orderConsumer != nil {
		_ = service.orderConsumer.Close()
	}
	if service.activationConsumer != nil {
		_ = service.activationConsumer.Close()
	}
}

// PreviewWeeklySettlement computes a weekly settlement without persisting.
func (service *Service) PreviewWeeklySettlement(weekKey string) *settlement.WeeklyResult {
	return service.engine.RunWeekly(weekKey, true, false)
}

// ExecuteWeeklySettlement finalizes a weekly settlement.
func (service *Service) ExecuteWeeklySettlement(weekKey string, force bool) *settlement.WeeklyResult {
	return service.engine.RunWeekly(weekKey, false, force)
}

// ExecuteWeeklyOrPreview is the one shot entry used by the settle command.
func (service *Service) ExecuteWeeklyOrPreview(weekKey string, dryRun, force bool) *settlement.WeeklyResult {
	return service.engine.RunWeekly(weekKey, dryRun, force)
}

// ExecuteQuarterlyOrPreview is the one shot entry used by the settle command.
func (service *Service) ExecuteQuarterlyOrPreview(quarterKey string, dryRun, force bool) *settlement.QuarterlyResult {
	return service.engine.RunQuarterly(quarterKey, dryRun, force)
}

// PreviewQuarterlySettlement computes a quarterly settlement without persisting.
func (service *Service) PreviewQuarterlySettlement(quarterKey string) *settlement.QuarterlyResult {
	return service.engine.RunQuarterly(quarterKey, true, false)
}

// ExecuteQuarterlySettlement finalizes a quarterly settlement.
func (service *Service) ExecuteQuarterlySettlement(quarterKey string, force bool) *settlement.QuarterlyResult {
	return service.engine.RunQuarterly(quarterKey, false, force)
}
