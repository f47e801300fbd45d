package services

import (
	"context"
	"errors"
	"mime/multipart"
	"testing"
	"time"

	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/kendall-kelly/taller-reparaciones/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRepairInput(t *testing.T) CreateRepairInput {
	return CreateRepairInput{
		CustomerName:  "Lucía",
		Phone:         "2944 555-123",
		Location:      "Dina Huapi",
		EquipmentType: "Surf",
		Description:   "Golpe en la punta",
		Image:         testutil.FileHeader(t, "tabla.png", []byte("png-bytes")),
	}
}

func TestRepairCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "lucia", false, false)

	in := validRepairInput(t)
	in.SecondImage = testutil.FileHeader(t, "detalle.jpg", []byte("jpg-bytes"))
	in.Video = testutil.FileHeader(t, "ola.mp4", []byte("mp4-bytes"))

	repair, err := env.repairs.Create(ctx, owner, in)
	require.NoError(t, err)

	assert.Equal(t, models.StatusReceived, repair.Status)
	assert.Equal(t, owner.ID, repair.UserID)
	assert.Equal(t, 1, repair.Priority)
	require.NotNil(t, repair.SecondImageKey)
	require.NotNil(t, repair.VideoKey)
	assert.True(t, env.storage.FileExists(repair.ImageKey))
	assert.True(t, env.storage.FileExists(*repair.SecondImageKey))
	assert.True(t, env.storage.FileExists(*repair.VideoKey))

	second, err := env.repairs.Create(ctx, owner, validRepairInput(t))
	require.NoError(t, err)
	assert.Equal(t, 2, second.Priority, "priority defaults to count of existing repairs + 1")

	history, err := env.repairs.History(ctx, repair.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusReceived, history[0].To)
	assert.Equal(t, models.SourceCreate, history[0].Source)
}

func TestRepairCreateDefaultsCustomerName(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "martin", false, false)

	in := validRepairInput(t)
	in.CustomerName = "  "
	repair, err := env.repairs.Create(context.Background(), owner, in)
	require.NoError(t, err)
	assert.Equal(t, "martin", repair.CustomerName)
}

func TestRepairCreateValidation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*CreateRepairInput)
		wantField string
		wantMsg   string
	}{
		{
			name:      "missing image",
			mutate:    func(in *CreateRepairInput) { in.Image = nil },
			wantField: "image",
		},
		{
			name:      "location not selected",
			mutate:    func(in *CreateRepairInput) { in.Location = "" },
			wantField: "location",
			wantMsg:   "Seleccioná una opción.",
		},
		{
			name:      "unknown equipment type",
			mutate:    func(in *CreateRepairInput) { in.EquipmentType = "Windsurf" },
			wantField: "equipment_type",
			wantMsg:   "Seleccioná una opción.",
		},
		{
			name:      "phone too long",
			mutate:    func(in *CreateRepairInput) { in.Phone = "0123456789012345678901" },
			wantField: "phone",
		},
		{
			name: "video over 150MB",
			mutate: func(in *CreateRepairInput) {
				in.Video = &multipart.FileHeader{Filename: "largo.mp4", Size: 151 * 1024 * 1024}
			},
			wantField: "video",
			wantMsg:   "supera el máximo permitido (150MB)",
		},
		{
			name: "second image wrong format",
			mutate: func(in *CreateRepairInput) {
				in.SecondImage = &multipart.FileHeader{Filename: "notas.txt", Size: 10}
			},
			wantField: "second_image",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			owner := testutil.CreateUser(t, env.db, "ana", false, false)

			in := validRepairInput(t)
			tt.mutate(&in)
			_, err := env.repairs.Create(context.Background(), owner, in)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Contains(t, verr.Fields, tt.wantField)
			if tt.wantMsg != "" {
				assert.Contains(t, verr.Fields[tt.wantField], tt.wantMsg)
			}

			var count int64
			env.db.Model(&models.Repair{}).Count(&count)
			assert.Zero(t, count)
			assert.Empty(t, env.storage.Keys())
		})
	}
}

func TestRepairCreateStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.CreateUser(t, env.db, "ana", false, false)
	env.storage.FailUploads = true

	_, err := env.repairs.Create(context.Background(), owner, validRepairInput(t))
	require.Error(t, err)

	var count int64
	env.db.Model(&models.Repair{}).Count(&count)
	assert.Zero(t, count)
}

func TestRepairListForOwnerOrdering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "ana", false, false)
	other := testutil.CreateUser(t, env.db, "beto", false, false)

	first := testutil.CreateRepair(t, env.db, owner, models.StatusPendingQuote)
	second := testutil.CreateRepair(t, env.db, owner, models.StatusPendingQuote)
	testutil.CreateRepair(t, env.db, other, models.StatusReceived)
	require.NoError(t, env.db.Model(&first).Update("priority", 5).Error)

	repairs, err := env.repairs.ListForOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, repairs, 2)
	assert.Equal(t, second.ID, repairs[0].ID)
	assert.Equal(t, first.ID, repairs[1].ID)
}

func TestRepairListFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "ana", false, false)

	kite := testutil.CreateRepair(t, env.db, owner, models.StatusInProgress)
	surf := testutil.CreateRepair(t, env.db, owner, models.StatusReceived)
	done := testutil.CreateRepair(t, env.db, owner, models.StatusFinalized)
	require.NoError(t, env.db.Model(&surf).Updates(map[string]interface{}{
		"equipment_type": "Surf", "customer_name": "Pedro Gómez", "location": "Circuito Chico",
	}).Error)

	all, err := env.repairs.List(ctx, RepairFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2, "finalized repairs are excluded by default")

	withDone, err := env.repairs.List(ctx, RepairFilter{IncludeFinalized: true})
	require.NoError(t, err)
	assert.Len(t, withDone, 3)

	finalized, err := env.repairs.List(ctx, RepairFilter{Status: models.StatusFinalized})
	require.NoError(t, err)
	require.Len(t, finalized, 1)
	assert.Equal(t, done.ID, finalized[0].ID)

	byType, err := env.repairs.List(ctx, RepairFilter{EquipmentType: "Kite"})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, kite.ID, byType[0].ID)

	search, err := env.repairs.List(ctx, RepairFilter{Query: "circuito"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	assert.Equal(t, surf.ID, search[0].ID)

	none, err := env.repairs.List(ctx, RepairFilter{Query: "100%"})
	require.NoError(t, err)
	assert.Empty(t, none)

	list, err := env.repairs.ListFinalized(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ana", list[0].User.Username)
}

func TestRepairChangeStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "ana", false, false)
	staff := testutil.CreateUser(t, env.db, "taller", true, false)
	repair := testutil.CreateRepair(t, env.db, owner, models.StatusReceived)

	updated, err := env.repairs.ChangeStatus(ctx, staff, repair.ID, models.StatusPendingQuote, models.SourceStaff)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingQuote, updated.Status)

	_, err = env.repairs.ChangeStatus(ctx, staff, repair.ID, models.StatusFinalized, models.SourceStaff)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalTransition))

	reloaded, err := env.repairs.Get(ctx, repair.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingQuote, reloaded.Status, "illegal jump leaves the repair untouched")

	_, err = env.repairs.ChangeStatus(ctx, staff, repair.ID, models.StatusPendingQuote, models.SourceStaff)
	require.NoError(t, err, "setting the current status is a no-op")

	_, err = env.repairs.ChangeStatus(ctx, staff, 9999, models.StatusPendingQuote, models.SourceStaff)
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := env.repairs.History(ctx, repair.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusReceived, history[0].From)
	assert.Equal(t, models.StatusPendingQuote, history[0].To)
	assert.Equal(t, staff.ID, history[0].ActorID)
}

func TestRepairFinalize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "ana", false, false)
	staff := testutil.CreateUser(t, env.db, "taller", true, false)

	ready := testutil.CreateRepair(t, env.db, owner, models.StatusReady)
	received := testutil.CreateRepair(t, env.db, owner, models.StatusReceived)

	done, err := env.repairs.Finalize(ctx, staff, ready.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinalized, done.Status)

	_, err = env.repairs.Finalize(ctx, staff, received.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestRepairBulkChangeStatusIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "ana", false, false)
	staff := testutil.CreateUser(t, env.db, "taller", true, false)

	a := testutil.CreateRepair(t, env.db, owner, models.StatusReceived)
	b := testutil.CreateRepair(t, env.db, owner, models.StatusPendingQuote)
	c := testutil.CreateRepair(t, env.db, owner, models.StatusDelivered)

	_, err := env.repairs.BulkChangeStatus(ctx, staff, []uint{a.ID, b.ID, c.ID}, models.StatusPendingPayment)
	require.ErrorIs(t, err, ErrIllegalTransition)

	for _, r := range []models.Repair{a, b, c} {
		reloaded, err := env.repairs.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r.Status, reloaded.Status, "repair %d must be unchanged", r.ID)
	}

	changed, err := env.repairs.BulkChangeStatus(ctx, staff, []uint{a.ID, b.ID, b.ID}, models.StatusPendingPayment)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	_, err = env.repairs.BulkChangeStatus(ctx, staff, nil, models.StatusPendingPayment)
	assert.ErrorIs(t, err, ErrNothingSelected)

	_, err = env.repairs.BulkChangeStatus(ctx, staff, []uint{a.ID, 4242}, models.StatusInProgress)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepairReopen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "ana", false, false)
	staff := testutil.CreateUser(t, env.db, "taller", true, false)
	super := testutil.CreateUser(t, env.db, "admin", true, true)

	done := testutil.CreateRepair(t, env.db, owner, models.StatusFinalized)
	open := testutil.CreateRepair(t, env.db, owner, models.StatusInProgress)

	_, err := env.repairs.Reopen(ctx, staff, done.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.repairs.ChangeStatus(ctx, staff, done.ID, models.StatusInProgress, models.SourceStaff)
	assert.ErrorIs(t, err, ErrIllegalTransition, "staff cannot leave finalizado through a plain status change")

	reopened, err := env.repairs.Reopen(ctx, super, done.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, reopened.Status)

	_, err = env.repairs.Reopen(ctx, super, open.ID)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	history, err := env.repairs.History(ctx, done.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.SourceReopen, history[0].Source)
}

func TestRepairPriority(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "ana", false, false)
	other := testutil.CreateUser(t, env.db, "beto", false, false)

	only := testutil.CreateRepair(t, env.db, other, models.StatusPendingQuote)
	editable, err := env.repairs.CanEditPriority(ctx, only)
	require.NoError(t, err)
	assert.False(t, editable, "a single repair cannot be reordered")

	quoting := testutil.CreateRepair(t, env.db, owner, models.StatusPendingQuote)
	paying := testutil.CreateRepair(t, env.db, owner, models.StatusPendingPayment)
	working := testutil.CreateRepair(t, env.db, owner, models.StatusInProgress)

	for _, r := range []models.Repair{quoting, paying} {
		editable, err := env.repairs.CanEditPriority(ctx, r)
		require.NoError(t, err)
		assert.True(t, editable)
	}
	editable, err = env.repairs.CanEditPriority(ctx, working)
	require.NoError(t, err)
	assert.False(t, editable)

	require.NoError(t, env.repairs.SetPriority(ctx, owner, paying.ID, 1))
	reloaded, err := env.repairs.Get(ctx, paying.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Priority)

	assert.ErrorIs(t, env.repairs.SetPriority(ctx, owner, working.ID, 1), ErrPriorityLocked)
	assert.ErrorIs(t, env.repairs.SetPriority(ctx, other, quoting.ID, 1), ErrForbidden)
	assert.ErrorIs(t, env.repairs.SetPriority(ctx, owner, quoting.ID, 0), ErrInvalidPriority)
	assert.ErrorIs(t, env.repairs.SetPriority(ctx, other, only.ID, 3), ErrPriorityLocked)
	assert.ErrorIs(t, env.repairs.SetPriority(ctx, owner, 777, 1), ErrNotFound)
}

func TestRepairUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "ana", false, false)
	staff := testutil.CreateUser(t, env.db, "taller", true, false)
	repair := testutil.CreateRepair(t, env.db, owner, models.StatusInProgress)

	eta := time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)
	updated, err := env.repairs.Update(ctx, staff, repair.ID, models.StatusReady, &eta, "  Falta repuesto  ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, updated.Status)

	reloaded, err := env.repairs.Get(ctx, repair.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReady, reloaded.Status)
	require.NotNil(t, reloaded.EstimatedDelivery)
	assert.True(t, eta.Equal(reloaded.EstimatedDelivery.UTC()))
	require.NotNil(t, reloaded.AdminComment)
	assert.Equal(t, "Falta repuesto", *reloaded.AdminComment)

	history, err := env.repairs.History(ctx, repair.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusReady, history[0].To)

	// Same status, details cleared.
	_, err = env.repairs.Update(ctx, staff, repair.ID, models.StatusReady, nil, "")
	require.NoError(t, err)
	reloaded, err = env.repairs.Get(ctx, repair.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.EstimatedDelivery)
	assert.Nil(t, reloaded.AdminComment)

	_, err = env.repairs.Update(ctx, staff, 999, models.StatusReady, nil, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepairUpdateIllegalTransitionKeepsDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "ana", false, false)
	staff := testutil.CreateUser(t, env.db, "taller", true, false)
	repair := testutil.CreateRepair(t, env.db, owner, models.StatusReceived)

	eta := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	_, err := env.repairs.Update(ctx, staff, repair.ID, models.StatusDelivered, &eta, "Listo el viernes")
	require.ErrorIs(t, err, ErrIllegalTransition)

	reloaded, err := env.repairs.Get(ctx, repair.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReceived, reloaded.Status)
	assert.Nil(t, reloaded.EstimatedDelivery)
	assert.Nil(t, reloaded.AdminComment)
}

func TestRepairGetForUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, env.db, "ana", false, false)
	stranger := testutil.CreateUser(t, env.db, "beto", false, false)
	staff := testutil.CreateUser(t, env.db, "taller", true, false)
	repair := testutil.CreateRepair(t, env.db, owner, models.StatusReceived)

	_, err := env.repairs.GetForUser(ctx, owner, repair.ID)
	assert.NoError(t, err)
	_, err = env.repairs.GetForUser(ctx, staff, repair.ID)
	assert.NoError(t, err)
	_, err = env.repairs.GetForUser(ctx, stranger, repair.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}
