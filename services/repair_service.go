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
	"gorm.io/gorm/clause"
)

// CreateRepairInput is the customer's repair request form.
type CreateRepairInput struct {
	CustomerName  string
	Phone         string
	Location      string
	EquipmentType string
	Description   string
	Image         *multipart.FileHeader
	SecondImage   *multipart.FileHeader
	Video         *multipart.FileHeader
}

// RepairFilter narrows the staff repair list.
type RepairFilter struct {
	Status        models.RepairStatus
	EquipmentType string
	Query         string
	// IncludeFinalized keeps finalized repairs in an unfiltered list.
	IncludeFinalized bool
}

// RepairService implements the repair workflow.
type RepairService struct {
	db      *gorm.DB
	uploads *UploadService
	journal StatusJournal
	limits  UploadLimits
}

func NewRepairService(db *gorm.DB, uploads *UploadService, journal StatusJournal, limits UploadLimits) *RepairService {
	return &RepairService{db: db, uploads: uploads, journal: journal, limits: limits}
}

// Create stores the media and inserts a repair owned by owner in status
// recibida, queued after the owner's existing repairs.
func (s *RepairService) Create(ctx context.Context, owner models.User, in CreateRepairInput) (*models.Repair, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Description = strings.TrimSpace(in.Description)
	if in.CustomerName == "" {
		in.CustomerName = owner.Username
	}

	verr := &ValidationError{}
	if len([]rune(in.CustomerName)) > 100 {
		verr.add("customer_name", "Usá como máximo 100 caracteres.")
	}
	switch {
	case in.Phone == "":
		verr.add("phone", "Este campo es obligatorio.")
	case len([]rune(in.Phone)) > 20:
		verr.add("phone", "Usá como máximo 20 caracteres.")
	}
	if !models.ValidLocation(in.Location) {
		verr.add("location", "Seleccioná una opción.")
	}
	if !models.ValidEquipmentType(in.EquipmentType) {
		verr.add("equipment_type", "Seleccioná una opción.")
	}
	if in.Description == "" {
		verr.add("description", "Este campo es obligatorio.")
	}
	checkFile(verr, "image", in.Image, utils.ImageRule(s.limits.ImageMB), true)
	checkFile(verr, "second_image", in.SecondImage, utils.ImageRule(s.limits.ImageMB), false)
	checkFile(verr, "video", in.Video, utils.VideoRule(s.limits.VideoMB), false)
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	var stored []StoredFile
	repair, err := s.storeAndInsert(ctx, owner, in, &stored)
	if err != nil {
		s.uploads.Discard(ctx, stored...)
		return nil, err
	}

	s.record(ctx, models.StatusEvent{
		RepairID: repair.ID, ActorID: owner.ID, To: models.StatusReceived, Source: models.SourceCreate,
	})
	return repair, nil
}

// storeAndInsert uploads the media, appending every stored file to stored,
// then inserts the repair.
func (s *RepairService) storeAndInsert(ctx context.Context, owner models.User, in CreateRepairInput, stored *[]StoredFile) (*models.Repair, error) {
	store := func(fh *multipart.FileHeader, rule utils.FileRule) (*string, error) {
		if fh == nil {
			return nil, nil
		}
		f, err := s.uploads.Store(ctx, fh, rule)
		if err != nil {
			return nil, err
		}
		*stored = append(*stored, f)
		return &f.Key, nil
	}

	imageKey, err := store(in.Image, utils.ImageRule(s.limits.ImageMB))
	if err != nil {
		return nil, err
	}
	secondKey, err := store(in.SecondImage, utils.ImageRule(s.limits.ImageMB))
	if err != nil {
		return nil, err
	}
	videoKey, err := store(in.Video, utils.VideoRule(s.limits.VideoMB))
	if err != nil {
		return nil, err
	}

	repair := models.Repair{
		UserID:         owner.ID,
		CustomerName:   in.CustomerName,
		Phone:          in.Phone,
		Location:       in.Location,
		EquipmentType:  in.EquipmentType,
		Description:    in.Description,
		ImageKey:       *imageKey,
		SecondImageKey: secondKey,
		VideoKey:       videoKey,
		Status:         models.StatusReceived,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Repair{}).Where("user_id = ?", owner.ID).Count(&count).Error; err != nil {
			return err
		}
		repair.Priority = int(count) + 1
		return tx.Create(&repair).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create repair: %w", err)
	}
	return &repair, nil
}

// ListForOwner returns the owner's repairs by priority, newest first within
// the same priority.
func (s *RepairService) ListForOwner(ctx context.Context, ownerID uint) ([]models.Repair, error) {
	var repairs []models.Repair
	err := s.db.WithContext(ctx).
		Preload("Quotes", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC, id DESC") }).
		Preload("FinalInvoice").
		Where("user_id = ?", ownerID).
		Order("priority ASC, created_at DESC, id DESC").
		Find(&repairs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list repairs: %w", err)
	}
	return repairs, nil
}

// List returns repairs for the staff list, newest first.
func (s *RepairService) List(ctx context.Context, filter RepairFilter) ([]models.Repair, error) {
	q := s.db.WithContext(ctx).Preload("User").Order("id DESC")

	switch {
	case filter.Status != "":
		q = q.Where("status = ?", filter.Status)
	case !filter.IncludeFinalized:
		q = q.Where("status <> ?", models.StatusFinalized)
	}
	if filter.EquipmentType != "" {
		q = q.Where("equipment_type = ?", filter.EquipmentType)
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Query)); term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where(
			"LOWER(customer_name) LIKE ? ESCAPE '\\' OR LOWER(phone) LIKE ? ESCAPE '\\' OR LOWER(location) LIKE ? ESCAPE '\\' OR LOWER(equipment_type) LIKE ? ESCAPE '\\'",
			like, like, like, like,
		)
	}

	var repairs []models.Repair
	if err := q.Find(&repairs).Error; err != nil {
		return nil, fmt.Errorf("failed to list repairs: %w", err)
	}
	return repairs, nil
}

// ListFinalized returns finalized repairs, most recently updated first.
func (s *RepairService) ListFinalized(ctx context.Context) ([]models.Repair, error) {
	var repairs []models.Repair
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("FinalInvoice").
		Where("status = ?", models.StatusFinalized).
		Order("updated_at DESC, id DESC").
		Find(&repairs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list finalized repairs: %w", err)
	}
	return repairs, nil
}

// Get loads a repair with its owner, quotes and invoice.
func (s *RepairService) Get(ctx context.Context, id uint) (*models.Repair, error) {
	var repair models.Repair
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Quotes", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC, id DESC") }).
		Preload("Quotes.CreatedBy").
		Preload("FinalInvoice").
		First(&repair, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load repair: %w", err)
	}
	return &repair, nil
}

// GetForUser loads a repair the user may see: staff see all, customers only
// their own.
func (s *RepairService) GetForUser(ctx context.Context, user models.User, id uint) (*models.Repair, error) {
	repair, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAccessRepair(user, *repair) {
		return nil, ErrForbidden
	}
	return repair, nil
}

// CanAccessRepair reports whether user may see repair and its files.
func CanAccessRepair(user models.User, repair models.Repair) bool {
	return user.CanManage() || repair.UserID == user.ID
}

// ChangeStatus moves one repair through the workflow.
func (s *RepairService) ChangeStatus(ctx context.Context, actor models.User, id uint, to models.RepairStatus, source string) (*models.Repair, error) {
	var (
		repair models.Repair
		event  *models.StatusEvent
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&repair, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var err error
		event, err = applyTransition(tx, actor, &repair, to, source)
		return err
	})
	if err != nil {
		return nil, err
	}
	if event != nil {
		s.record(ctx, *event)
	}
	return &repair, nil
}

// BulkChangeStatus moves every repair in ids to status to. Either all of them
// change or none does.
func (s *RepairService) BulkChangeStatus(ctx context.Context, actor models.User, ids []uint, to models.RepairStatus) (int, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, ErrNothingSelected
	}

	var events []models.StatusEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var repairs []models.Repair
		if err := lockForUpdate(tx).Where("id IN ?", ids).Order("id").Find(&repairs).Error; err != nil {
			return err
		}
		if len(repairs) != len(ids) {
			return ErrNotFound
		}
		for i := range repairs {
			event, err := applyTransition(tx, actor, &repairs[i], to, models.SourceBulk)
			if err != nil {
				return err
			}
			if event != nil {
				events = append(events, *event)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, e := range events {
		s.record(ctx, e)
	}
	return len(events), nil
}

// Finalize marks a repair finalizado, the precondition for a final invoice.
func (s *RepairService) Finalize(ctx context.Context, actor models.User, id uint) (*models.Repair, error) {
	return s.ChangeStatus(ctx, actor, id, models.StatusFinalized, models.SourceStaff)
}

// Reopen returns a finalized repair to en_proceso. Superusers only.
func (s *RepairService) Reopen(ctx context.Context, actor models.User, id uint) (*models.Repair, error) {
	if !actor.IsSuperuser {
		return nil, ErrForbidden
	}

	var (
		repair models.Repair
		event  *models.StatusEvent
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&repair, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if repair.Status != models.StatusFinalized {
			return &TransitionError{
				RepairID: repair.ID, From: string(repair.Status), To: string(models.StatusInProgress), Reason: "only finalized repairs can be reopened",
			}
		}
		var err error
		event, err = applyTransition(tx, actor, &repair, models.StatusInProgress, models.SourceReopen)
		return err
	})
	if err != nil {
		return nil, err
	}
	if event != nil {
		s.record(ctx, *event)
	}
	return &repair, nil
}

// Update changes the status and the staff-only fields of a repair in one
// transaction. An empty comment clears it. An illegal transition leaves
// both untouched.
func (s *RepairService) Update(ctx context.Context, actor models.User, id uint, to models.RepairStatus, estimatedDelivery *time.Time, adminComment string) (*models.Repair, error) {
	var (
		repair models.Repair
		event  *models.StatusEvent
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&repair, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var err error
		event, err = applyTransition(tx, actor, &repair, to, models.SourceStaff)
		if err != nil {
			return err
		}
		if err := tx.Model(&repair).Updates(detailUpdates(estimatedDelivery, adminComment)).Error; err != nil {
			return fmt.Errorf("failed to update repair: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if event != nil {
		s.record(ctx, *event)
	}
	return &repair, nil
}

func detailUpdates(estimatedDelivery *time.Time, adminComment string) map[string]interface{} {
	var comment *string
	if c := strings.TrimSpace(adminComment); c != "" {
		comment = &c
	}
	return map[string]interface{}{
		"estimated_delivery": estimatedDelivery,
		"admin_comment":      comment,
	}
}

// PriorityEditable applies the priority rule given how many repairs the
// owner has.
func PriorityEditable(repair models.Repair, ownerRepairs int64) bool {
	return repair.Status.PriorityEditable() && ownerRepairs > 1
}

// CanEditPriority reports whether the owner may currently reorder repair.
func (s *RepairService) CanEditPriority(ctx context.Context, repair models.Repair) (bool, error) {
	if !repair.Status.PriorityEditable() {
		return false, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Repair{}).Where("user_id = ?", repair.UserID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to count repairs: %w", err)
	}
	return PriorityEditable(repair, count), nil
}

// SetPriority lets an owner reorder one of their repairs.
func (s *RepairService) SetPriority(ctx context.Context, owner models.User, id uint, priority int) error {
	if priority < 1 {
		return ErrInvalidPriority
	}

	var repair models.Repair
	err := s.db.WithContext(ctx).First(&repair, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load repair: %w", err)
	}
	if repair.UserID != owner.ID {
		return ErrForbidden
	}

	editable, err := s.CanEditPriority(ctx, repair)
	if err != nil {
		return err
	}
	if !editable {
		return ErrPriorityLocked
	}

	if err := s.db.WithContext(ctx).Model(&repair).Update("priority", priority).Error; err != nil {
		return fmt.Errorf("failed to update priority: %w", err)
	}
	return nil
}

// History returns the status journal of a repair.
func (s *RepairService) History(ctx context.Context, id uint) ([]models.StatusEvent, error) {
	if s.journal == nil {
		return nil, nil
	}
	return s.journal.History(ctx, id)
}

func (s *RepairService) record(ctx context.Context, event models.StatusEvent) {
	recordEvent(ctx, s.journal, event)
}

// applyTransition validates and persists a status change inside tx. It
// returns nil and no error when the repair already has status to.
func applyTransition(tx *gorm.DB, actor models.User, repair *models.Repair, to models.RepairStatus, source string) (*models.StatusEvent, error) {
	if err := checkTransition(actor, repair.ID, repair.Status, to); err != nil {
		return nil, err
	}
	if repair.Status == to {
		return nil, nil
	}

	from := repair.Status
	if err := tx.Model(repair).Update("status", to).Error; err != nil {
		return nil, fmt.Errorf("failed to update repair %d status: %w", repair.ID, err)
	}
	repair.Status = to

	return &models.StatusEvent{
		RepairID:  repair.ID,
		ActorID:   actor.ID,
		From:      from,
		To:        to,
		Source:    source,
		CreatedAt: time.Now(),
	}, nil
}

func recordEvent(ctx context.Context, journal StatusJournal, event models.StatusEvent) {
	if journal == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if err := journal.Record(ctx, event); err != nil {
		zap.L().Error("failed to record status change",
			zap.Uint("repair_id", event.RepairID),
			zap.String("to", string(event.To)),
			zap.Error(err))
	}
}

// lockForUpdate adds SELECT ... FOR UPDATE on databases that support it.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func checkFile(verr *ValidationError, field string, fh *multipart.FileHeader, rule utils.FileRule, required bool) {
	if fh == nil {
		if required {
			verr.add(field, "Este campo es obligatorio.")
		}
		return
	}
	if err := utils.ValidateFile(fh, rule); err != nil {
		verr.add(field, err.Error())
	}
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
