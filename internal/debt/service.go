package debt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/a4s/shopledger/internal/sales"
	"github.com/a4s/shopledger/internal/shared"
)

const idempotencyModule = "debt"

// RepositoryPort abstracts persistence for Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListOpenDebts(ctx context.Context) ([]Debt, error)
	GetDetail(ctx context.Context, saleID int64) (Detail, error)
	ListPaymentEvents(ctx context.Context, limit int) ([]PaymentEvent, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against double submission when the client sends a key.
type IdempotencyPort interface {
	Claim(ctx context.Context, module, key string) error
	Release(ctx context.Context, module, key string) error
}

// MetricsPort receives payment counters.
type MetricsPort interface {
	PaymentRecorded(status string)
}

// Service records and reports customer debt.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	metrics     MetricsPort
	logger      *slog.Logger
	now         func() time.Time
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Now     func() time.Time
	Metrics MetricsPort
	Logger  *slog.Logger
}

// NewService constructs debt service.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, cfg ServiceConfig) *Service {
	svc := &Service{repo: repo, audit: audit, idempotency: idem, metrics: cfg.Metrics, logger: cfg.Logger, now: cfg.Now}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// RecordPayment applies one payment to a sale. The sale row stays locked
// until commit so concurrent payments cannot both pass the balance check.
func (s *Service) RecordPayment(ctx context.Context, in PaymentInput) (PaymentResult, error) {
	if in.SaleID <= 0 {
		return PaymentResult{}, shared.Invalid("sale id is required")
	}
	if in.PaymentMethodID <= 0 {
		return PaymentResult{}, shared.Invalid("payment method is required")
	}
	amount := shared.Round2(in.Amount)
	if !amount.IsPositive() {
		return PaymentResult{}, shared.Invalid("Payment amount must be greater than zero.")
	}

	if in.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.Claim(ctx, idempotencyModule, in.IdempotencyKey); err != nil {
			return PaymentResult{}, err
		}
	}

	at := s.now().Truncate(time.Second)
	var result PaymentResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		balance, err := tx.LockBalance(ctx, in.SaleID)
		if err != nil {
			return err
		}
		if balance.Status != sales.StatusUnresolved && balance.Status != sales.StatusPartial {
			return shared.Invalid("sale is not an open debt")
		}
		method, err := tx.GetPaymentMethod(ctx, in.PaymentMethodID)
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Invalid("invalid payment method")
		}
		if err != nil {
			return err
		}
		if !method.Active {
			return shared.Invalid("payment method %s is inactive", method.Name)
		}
		if method.IsDebt() {
			return shared.Invalid("a debt payment cannot be made with %s", method.Name)
		}
		remaining := balance.Remaining()
		if amount.GreaterThan(remaining) {
			return shared.Invalid("Payment of %s exceeds remaining balance of %s.", shared.FormatPeso(amount), shared.FormatPeso(remaining))
		}

		p := Payment{
			SaleID:          in.SaleID,
			AmountPaid:      amount,
			PaymentMethodID: method.ID,
			ReferenceNo:     strings.TrimSpace(in.ReferenceNo),
			Notes:           strings.TrimSpace(in.Notes),
			PaidByName:      in.Actor.Name,
			PaidAt:          at,
		}
		if !in.Actor.IsSystem() {
			uid := in.Actor.ID
			p.PaidBy = &uid
		}
		id, err := tx.InsertPayment(ctx, p)
		if err != nil {
			return fmt.Errorf("debt: insert payment: %w", err)
		}

		newRemaining := remaining.Sub(amount)
		status := sales.StatusPartial
		var paidAt *time.Time
		if !newRemaining.IsPositive() {
			status = sales.StatusPaid
			paidAt = &at
		}
		if err := tx.UpdateSaleStatus(ctx, in.SaleID, status, paidAt); err != nil {
			return fmt.Errorf("debt: update sale: %w", err)
		}
		result = PaymentResult{PaymentID: id, NewStatus: status, NewRemaining: newRemaining, AmountPaid: amount}
		return nil
	})
	if err != nil {
		if in.IdempotencyKey != "" && s.idempotency != nil {
			if relErr := s.idempotency.Release(ctx, idempotencyModule, in.IdempotencyKey); relErr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", relErr))
			}
		}
		return PaymentResult{}, err
	}

	if s.metrics != nil {
		s.metrics.PaymentRecorded(string(result.NewStatus))
	}
	s.recordAudit(ctx, in.Actor.ID, "DEBT_PAYMENT", in.SaleID, map[string]any{
		"payment_id": result.PaymentID,
		"amount":     result.AmountPaid.StringFixed(2),
		"remaining":  result.NewRemaining.StringFixed(2),
		"status":     result.NewStatus,
	})
	s.logger.Info("debt payment recorded",
		slog.Int64("sale_id", in.SaleID),
		slog.String("amount", result.AmountPaid.StringFixed(2)),
		slog.String("status", string(result.NewStatus)))
	return result, nil
}

// ListOpenDebts returns sales still awaiting payment.
func (s *Service) ListOpenDebts(ctx context.Context) ([]Debt, error) {
	return s.repo.ListOpenDebts(ctx)
}

// GetDebtDetail returns a sale with lines and payments.
func (s *Service) GetDebtDetail(ctx context.Context, saleID int64) (Detail, error) {
	if saleID <= 0 {
		return Detail{}, shared.Invalid("sale id is required")
	}
	return s.repo.GetDetail(ctx, saleID)
}

// ListPaymentEvents returns the newest payments; limit <= 0 uses DefaultEventLimit.
func (s *Service) ListPaymentEvents(ctx context.Context, limit int) ([]PaymentEvent, error) {
	if limit <= 0 || limit > DefaultEventLimit {
		limit = DefaultEventLimit
	}
	return s.repo.ListPaymentEvents(ctx, limit)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, saleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sale",
		EntityID: strconv.FormatInt(saleID, 10),
		Meta:     meta,
		At:       s.now(),
	}); err != nil {
		s.logger.Warn("debt audit", slog.Any("error", err))
	}
}
