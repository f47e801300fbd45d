package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/kendall-kelly/taller-reparaciones/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateQuoteInput is the staff quote upload form.
type CreateQuoteInput struct {
	File          *multipart.FileHeader
	Amount        *float64
	Currency      models.Currency
	InternalNotes string
}

// QuoteService manages quotes and their effect on the parent repair.
type QuoteService struct {
	db             *gorm.DB
	uploads        *UploadService
	journal        StatusJournal
	payments       PaymentGateway
	limits         UploadLimits
	depositPercent float64
}

func NewQuoteService(db *gorm.DB, uploads *UploadService, journal StatusJournal, payments PaymentGateway, limits UploadLimits, depositPercent float64) *QuoteService {
	return &QuoteService{
		db:             db,
		uploads:        uploads,
		journal:        journal,
		payments:       payments,
		limits:         limits,
		depositPercent: depositPercent,
	}
}

// Create attaches a new pending quote to a repair.
func (s *QuoteService) Create(ctx context.Context, actor models.User, repairID uint, in CreateQuoteInput) (*models.Quote, error) {
	var repair models.Repair
	if err := s.db.WithContext(ctx).Select("id").First(&repair, repairID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load repair: %w", err)
	}

	if in.Currency == "" {
		in.Currency = models.CurrencyARS
	}
	verr := &ValidationError{}
	rule := utils.QuoteRule(s.limits.DocumentMB)
	checkFile(verr, "file", in.File, rule, true)
	if in.Amount != nil && *in.Amount < 0 {
		verr.add("amount", "El monto no puede ser negativo.")
	}
	if !in.Currency.Valid() {
		verr.add("currency", "Elegí ARS o USD.")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	stored, err := s.uploads.Store(ctx, in.File, rule)
	if err != nil {
		return nil, err
	}

	quote := models.Quote{
		RepairID:      repairID,
		CreatedByID:   actor.ID,
		FileKey:       stored.Key,
		FileName:      stored.Name,
		Status:        models.QuotePending,
		Amount:        in.Amount,
		Currency:      in.Currency,
		InternalNotes: strings.TrimSpace(in.InternalNotes),
	}
	if err := s.db.WithContext(ctx).Create(&quote).Error; err != nil {
		s.uploads.Discard(ctx, stored)
		return nil, fmt.Errorf("failed to create quote: %w", err)
	}
	return &quote, nil
}

// ListForRepair returns the quotes of a repair, newest first.
func (s *QuoteService) ListForRepair(ctx context.Context, repairID uint) ([]models.Quote, error) {
	var quotes []models.Quote
	err := s.db.WithContext(ctx).
		Preload("CreatedBy").
		Where("repair_id = ?", repairID).
		Order("created_at DESC, id DESC").
		Find(&quotes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	return quotes, nil
}

// Get loads a quote with its repair.
func (s *QuoteService) Get(ctx context.Context, id uint) (*models.Quote, error) {
	var quote models.Quote
	err := s.db.WithContext(ctx).Preload("Repair").First(&quote, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load quote: %w", err)
	}
	return &quote, nil
}

// SetStatus marks every quote in ids with status and applies the implied
// repair status in the same transaction: enviado moves the repair to
// pendiente_pago, aprobado to en_proceso, rechazado leaves it alone. If any
// quote or repair transition is illegal nothing changes.
func (s *QuoteService) SetStatus(ctx context.Context, actor models.User, ids []uint, status models.QuoteStatus) (int, error) {
	if !status.Valid() {
		return 0, &ValidationError{Fields: map[string]string{"status": "Estado de presupuesto inválido."}}
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, ErrNothingSelected
	}

	var (
		events []models.StatusEvent
		sent   []models.Quote
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quotes []models.Quote
		if err := lockForUpdate(tx).Where("id IN ?", ids).Order("id").Find(&quotes).Error; err != nil {
			return err
		}
		if len(quotes) != len(ids) {
			return ErrNotFound
		}

		repairs := map[uint]*models.Repair{}
		now := time.Now()
		for i := range quotes {
			q := &quotes[i]
			if !CanTransitionQuote(q.Status, status) {
				return &TransitionError{From: string(q.Status), To: string(status), Reason: fmt.Sprintf("quote %d", q.ID)}
			}
			// Re-marking a quote leaves its repair where it is.
			if q.Status == status {
				continue
			}

			updates := map[string]interface{}{"status": status}
			if status == models.QuoteSent && q.SentAt == nil {
				updates["sent_at"] = now
				q.SentAt = &now
			}
			if err := tx.Model(q).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update quote %d: %w", q.ID, err)
			}
			q.Status = status

			target, ok := RepairStatusForQuote(status)
			if !ok {
				continue
			}
			repair, loaded := repairs[q.RepairID]
			if !loaded {
				repair = &models.Repair{}
				if err := lockForUpdate(tx).First(repair, q.RepairID).Error; err != nil {
					return fmt.Errorf("failed to load repair %d: %w", q.RepairID, err)
				}
				repairs[q.RepairID] = repair
			}
			event, err := applyTransition(tx, actor, repair, target, models.SourceQuote)
			if err != nil {
				return err
			}
			if event != nil {
				events = append(events, *event)
			}
			if status == models.QuoteSent {
				sent = append(sent, *q)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, e := range events {
		recordEvent(ctx, s.journal, e)
	}
	for _, q := range sent {
		s.attachPaymentLink(ctx, q)
	}
	return len(ids), nil
}

// attachPaymentLink requests a deposit checkout link for a sent quote. The
// quote stays valid without one, so failures are only logged.
func (s *QuoteService) attachPaymentLink(ctx context.Context, q models.Quote) {
	if s.payments == nil || q.Amount == nil || *q.Amount <= 0 || q.PaymentLink != nil {
		return
	}
	deposit := DepositAmount(*q.Amount, s.depositPercent)
	if deposit <= 0 {
		return
	}

	link, err := s.payments.CreateDepositLink(ctx, DepositRequest{
		QuoteID:  q.ID,
		RepairID: q.RepairID,
		Title:    fmt.Sprintf("Seña reparación #%d", q.RepairID),
		Amount:   deposit,
		Currency: q.Currency,
	})
	if err != nil {
		zap.L().Error("failed to create deposit link", zap.Uint("quote_id", q.ID), zap.Error(err))
		return
	}
	if err := s.db.WithContext(ctx).Model(&models.Quote{}).Where("id = ?", q.ID).Update("payment_link", link).Error; err != nil {
		zap.L().Error("failed to save deposit link", zap.Uint("quote_id", q.ID), zap.Error(err))
	}
}
