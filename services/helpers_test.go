package services

import (
	"context"
	"sync"
	"testing"

	"github.com/kendall-kelly/taller-reparaciones/testutil"
	"gorm.io/gorm"
)

type testEnv struct {
	db       *gorm.DB
	storage  *MockStorage
	uploads  *UploadService
	journal  *GormJournal
	payments *fakeGateway
	repairs  *RepairService
	quotes   *QuoteService
	invoices *InvoiceService
	users    *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewTestDB(t)
	storage := NewMockStorage()
	uploads := NewUploadService(storage)
	journal := NewGormJournal(db)
	payments := &fakeGateway{}

	return &testEnv{
		db:       db,
		storage:  storage,
		uploads:  uploads,
		journal:  journal,
		payments: payments,
		repairs:  NewRepairService(db, uploads, journal, DefaultUploadLimits),
		quotes:   NewQuoteService(db, uploads, journal, payments, DefaultUploadLimits, 50),
		invoices: NewInvoiceService(db, uploads, DefaultUploadLimits),
		users:    NewUserService(db),
	}
}

type fakeGateway struct {
	mu       sync.Mutex
	requests []DepositRequest
	err      error
}

func (g *fakeGateway) CreateDepositLink(ctx context.Context, req DepositRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	g.requests = append(g.requests, req)
	return "https://pagos.example/checkout/" + req.Title, nil
}
