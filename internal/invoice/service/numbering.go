package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/autotrade/internal/invoice/domain"
	"github.com/smallbiznis/autotrade/internal/invoice/format"
	"github.com/smallbiznis/autotrade/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const numberLockKey = "invoice:number"

func statusLockKey(id snowflake.ID) string {
	return "invoice:status:" + id.String()
}

// GenerateInvoiceNumber previews the number the next invoice would receive.
// It never fails: a lookup error restarts the sequence at 1.
func (s *Service) GenerateInvoiceNumber(ctx context.Context) string {
	return s.nextNumber(ctx, s.db)
}

func (s *Service) nextNumber(ctx context.Context, tx *gorm.DB) string {
	var seq int64 = 1
	latest, err := s.repo.FindLatest(ctx, tx)
	switch {
	case err != nil:
		s.log.Warn("latest invoice lookup failed, restarting sequence", zap.Error(err))
	case latest != nil:
		seq = format.NextSequence(latest.InvoiceNumber)
	}
	return s.formatNumber(seq)
}

func (s *Service) formatNumber(seq int64) string {
	now := s.clock.Now()
	number, err := format.FormatInvoiceNumber(format.DefaultInvoiceNumberTemplate, now, seq)
	if err != nil {
		s.log.Warn("invoice number format failed", zap.Error(err))
		return fmt.Sprintf("INV-%d-%04d", now.Year(), seq)
	}
	return number
}

// sequenceAfter returns a sequence above both the collided number and every
// number already issued under the current prefix.
func (s *Service) sequenceAfter(ctx context.Context, collided string) int64 {
	highest, _ := format.ParseSequence(collided)

	prefix := format.SequencePrefix(format.DefaultInvoiceNumberTemplate, s.clock.Now())
	numbers, err := s.repo.ListNumbersWithPrefix(ctx, s.db, prefix)
	if err != nil {
		s.log.Warn("issued invoice numbers lookup failed", zap.Error(err))
	}
	for _, n := range numbers {
		if seq, ok := format.ParseSequence(n); ok && seq > highest {
			highest = seq
		}
	}
	return highest + 1
}

// insert persists a new invoice. Without a caller supplied number one is
// minted inside the same transaction under the numbering lock. After a
// duplicate the sequence moves past every issued number, so a custom number
// or a failed lookup that reset the sequence cannot block creation.
func (s *Service) insert(ctx context.Context, invoice *domain.Invoice) error {
	if invoice.InvoiceNumber != "" {
		if err := s.repo.Insert(ctx, s.db, invoice); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrNumberExists
			}
			return s.dbErr(err, "insert invoice")
		}
		return nil
	}

	const attempts = 5
	var (
		seq int64
		err error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		err = s.guard.WithLock(ctx, numberLockKey, func(ctx context.Context) error {
			return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				if seq == 0 {
					invoice.InvoiceNumber = s.nextNumber(ctx, tx)
				} else {
					invoice.InvoiceNumber = s.formatNumber(seq)
				}
				return s.repo.Insert(ctx, tx, invoice)
			})
		})
		if err == nil {
			return nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return s.dbErr(err, "insert invoice")
		}
		s.log.Warn("invoice number collision",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Int("attempt", attempt),
		)
		seq = s.sequenceAfter(ctx, invoice.InvoiceNumber)
	}
	return domain.ErrNumberExists
}
