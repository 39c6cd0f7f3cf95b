// Package scheduler runs the periodic overdue sweep that moves unpaid,
// past-due invoices into the overdue status without waiting for a payment event.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/autotrade/internal/clock"
	invoicedomain "github.com/smallbiznis/autotrade/internal/invoice/domain"
	"github.com/smallbiznis/autotrade/internal/lock"
	"github.com/smallbiznis/autotrade/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const overdueSweepLockKey = "scheduler:overdue_sweep"

var ErrInvalidConfig = errors.New("scheduler: missing dependencies")

type Params struct {
	fx.In

	Log        *zap.Logger
	InvoiceSvc invoicedomain.Service
	Clock      clock.Clock
	Guard      *lock.Guard `optional:"true"`
	Config     Config      `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	invoiceSvc invoicedomain.Service
	guard      *lock.Guard
}

// SweepResult counts what a single overdue sweep looked at.
type SweepResult struct {
	Scanned int
	Updated int
	Failed  int
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.InvoiceSvc == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		invoiceSvc: p.InvoiceSvc,
		guard:      p.Guard,
	}, nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	start := s.clock.Now()
	var res SweepResult
	// the key must outlive the job deadline
	err := s.guard.WithLockTTL(ctx, overdueSweepLockKey, s.lockTTL(), func(ctx context.Context) error {
		var err error
		res, err = s.OverdueSweepJob(ctx)
		return err
	})

	fields := []zap.Field{
		zap.String("job", "overdue_sweep"),
		zap.Int("scanned", res.Scanned),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", s.clock.Now().Sub(start)),
	}
	if err != nil {
		s.log.Warn("scheduler job failed", append(fields, zap.Error(err))...)
		return err
	}
	s.log.Info("scheduler job finished", fields...)
	return nil
}

func (s *Scheduler) lockTTL() time.Duration {
	return s.cfg.JobTimeout + time.Minute
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		_ = s.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// OverdueSweepJob recomputes every past-due invoice that is not yet overdue.
// Rows recomputed to overdue keep matching the listing, so paging stays stable.
func (s *Scheduler) OverdueSweepJob(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	page := pagination.Page{Page: 1, Limit: s.cfg.BatchSize}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		resp, err := s.invoiceSvc.ListOverdue(ctx, page)
		if err != nil {
			return res, err
		}

		for _, inv := range resp.Invoices {
			res.Scanned++
			if inv.Status == invoicedomain.InvoiceStatusOverdue {
				continue
			}
			updated, err := s.invoiceSvc.UpdateStatusFromPayments(ctx, inv.ID)
			if err != nil {
				res.Failed++
				s.log.Warn("overdue recompute failed",
					zap.String("invoice_id", inv.ID.String()),
					zap.Error(err),
				)
				continue
			}
			if updated.Status != inv.Status {
				res.Updated++
			}
		}

		if resp.Pagination.Page >= resp.Pagination.Pages {
			return res, nil
		}
		page.Page++
	}
}
