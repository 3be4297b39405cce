// Package worker runs the scheduled jobs: the capture sweep that drains
// approved charges into their gateways.
package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"paybridge/internal/config"
	"paybridge/internal/gateway"
	"paybridge/internal/models"
	"paybridge/internal/repository"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	cfg      *config.Config
	charges  *repository.ChargeRepository
	accounts *repository.GatewayAccountRepository
	registry *gateway.Registry
	logger   *zap.Logger
}

func NewScheduler(
	cfg *config.Config,
	charges *repository.ChargeRepository,
	accounts *repository.GatewayAccountRepository,
	registry *gateway.Registry,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		cfg:      cfg,
		charges:  charges,
		accounts: accounts,
		registry: registry,
		logger:   logger,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Worker.CaptureSchedule, func() {
		s.logger.Debug("Running: capture sweep")
		s.CaptureSweep(context.Background())
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		zap.String("capture_schedule", s.cfg.Worker.CaptureSchedule))
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// CaptureSweep submits a batch of capture-approved charges to their
// gateways. Transient failures leave the charge in place for the next
// sweep; definitive failures park it in the error status.
func (s *Scheduler) CaptureSweep(ctx context.Context) {
	charges, err := s.charges.FindReadyForCapture(ctx, s.cfg.Worker.CaptureBatch)
	if err != nil {
		s.logger.Error("capture sweep: loading charges failed", zap.Error(err))
		return
	}

	for i := range charges {
		s.captureOne(ctx, &charges[i])
	}
}

func (s *Scheduler) captureOne(ctx context.Context, charge *models.Charge) {
	logger := s.logger.With(
		zap.String("external_id", charge.ExternalID),
		zap.String("gateway", charge.GatewayName))

	account, err := s.accounts.FindByID(ctx, charge.GatewayAccountID)
	if err != nil || account == nil {
		logger.Error("capture sweep: gateway account lookup failed", zap.Error(err))
		return
	}
	accountCtx, err := gateway.AccountContextFrom(account)
	if err != nil {
		logger.Error("capture sweep: bad account credentials", zap.Error(err))
		return
	}
	provider, err := s.registry.Provider(charge.GatewayName)
	if err != nil {
		logger.Error("capture sweep: no provider", zap.Error(err))
		return
	}

	result := provider.Capture(ctx, accountCtx, gateway.CaptureRequest{
		ExternalID:    charge.ExternalID,
		TransactionID: charge.GatewayTransactionID,
		Amount:        charge.Amount,
		Currency:      charge.Currency,
	})

	switch result.State {
	case gateway.CaptureComplete:
		s.transition(ctx, charge, models.ChargeCaptured, logger)
		if result.Fee != nil {
			if err := s.charges.SetFee(ctx, charge.ID, *result.Fee); err != nil {
				logger.Warn("capture sweep: recording fee failed", zap.Error(err))
			}
		}
	case gateway.CapturePending:
		// The gateway settles asynchronously; its notification finishes
		// the charge.
		s.transition(ctx, charge, models.ChargeCaptureSubmitted, logger)
	case gateway.CaptureFailed:
		message := "capture failed"
		if result.Err != nil {
			if result.Err.Retryable() {
				logger.Warn("capture sweep: transient failure, will retry",
					zap.String("kind", result.Err.Kind.String()),
					zap.String("message", result.Err.Message))
				return
			}
			message = result.Err.Message
		}
		logger.Error("capture sweep: capture failed", zap.String("message", message))
		s.transition(ctx, charge, models.ChargeCaptureError, logger)
	}
}

func (s *Scheduler) transition(ctx context.Context, charge *models.Charge, to models.ChargeStatus, logger *zap.Logger) {
	applied, err := s.charges.TransitionStatus(ctx, charge.ID, charge.Status, to, time.Now())
	if err != nil {
		logger.Error("capture sweep: status transition failed",
			zap.String("to", string(to)), zap.Error(err))
		return
	}
	if !applied {
		logger.Info("capture sweep: charge moved on concurrently",
			zap.String("to", string(to)))
		return
	}
	logger.Info("capture sweep: charge updated", zap.String("to", string(to)))
}
