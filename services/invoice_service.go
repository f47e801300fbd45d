package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/kendall-kelly/taller-reparaciones/utils"
	"gorm.io/gorm"
)

// CreateInvoiceInput is the final invoice form. File and Link are
// alternatives; at least one is required.
type CreateInvoiceInput struct {
	TotalAmount   float64
	Currency      models.Currency
	File          *multipart.FileHeader
	Link          string
	InternalNotes string
}

// InvoiceService manages final invoices.
type InvoiceService struct {
	db      *gorm.DB
	uploads *UploadService
	limits  UploadLimits
}

func NewInvoiceService(db *gorm.DB, uploads *UploadService, limits UploadLimits) *InvoiceService {
	return &InvoiceService{db: db, uploads: uploads, limits: limits}
}

// Create attaches the final invoice to a finalized repair.
func (s *InvoiceService) Create(ctx context.Context, actor models.User, repairID uint, in CreateInvoiceInput) (*models.FinalInvoice, error) {
	var repair models.Repair
	if err := s.db.WithContext(ctx).Preload("FinalInvoice").First(&repair, repairID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load repair: %w", err)
	}
	if repair.Status != models.StatusFinalized {
		return nil, ErrRepairNotFinalized
	}
	if repair.FinalInvoice != nil {
		return nil, ErrInvoiceExists
	}

	in.Link = strings.TrimSpace(in.Link)
	if in.Currency == "" {
		in.Currency = models.CurrencyARS
	}

	verr := &ValidationError{}
	rule := utils.InvoiceRule(s.limits.DocumentMB)
	if in.File == nil && in.Link == "" {
		verr.add("form", "Tenés que cargar un archivo o pegar un link para la factura final.")
	}
	if in.File != nil {
		if err := utils.ValidateFile(in.File, rule); err != nil {
			verr.add("file", err.Error())
		}
	}
	if in.Link != "" && !validLink(in.Link) {
		verr.add("link", "Ingresá un link válido (http o https).")
	}
	if in.TotalAmount < 0 {
		verr.add("total_amount", "El monto no puede ser negativo.")
	}
	if !in.Currency.Valid() {
		verr.add("currency", "Elegí ARS o USD.")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	invoice := models.FinalInvoice{
		RepairID:      repairID,
		TotalAmount:   in.TotalAmount,
		Currency:      in.Currency,
		InternalNotes: strings.TrimSpace(in.InternalNotes),
		CreatedByID:   actor.ID,
	}
	if in.Link != "" {
		invoice.Link = &in.Link
	}

	var stored StoredFile
	if in.File != nil {
		var err error
		stored, err = s.uploads.Store(ctx, in.File, rule)
		if err != nil {
			return nil, err
		}
		invoice.FileKey = &stored.Key
		invoice.FileName = &stored.Name
	}

	if err := s.db.WithContext(ctx).Create(&invoice).Error; err != nil {
		s.uploads.Discard(ctx, stored)
		if isUniqueViolation(err) {
			return nil, ErrInvoiceExists
		}
		return nil, fmt.Errorf("failed to create final invoice: %w", err)
	}
	return &invoice, nil
}

// GetForRepair returns the final invoice of a repair.
func (s *InvoiceService) GetForRepair(ctx context.Context, repairID uint) (*models.FinalInvoice, error) {
	var invoice models.FinalInvoice
	err := s.db.WithContext(ctx).Where("repair_id = ?", repairID).First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load final invoice: %w", err)
	}
	return &invoice, nil
}

func validLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
