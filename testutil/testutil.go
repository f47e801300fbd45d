package testutil

import (
	"os"
	"testing"

	"github.com/kendall-kelly/taller-reparaciones/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// MustSetTestEnvironment sets GO_ENV to test for the duration of t.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()
	t.Setenv("GO_ENV", "test")
}

// NewTestDB opens a migrated in-memory SQLite database. The pool is limited
// to one connection because every connection to ":memory:" is a separate
// database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: ":memory:"}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to connect to test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db), "Failed to migrate test database")
	return db
}

// CreateUser inserts a user without a usable password.
func CreateUser(t *testing.T, db *gorm.DB, username string, staff, superuser bool) models.User {
	t.Helper()

	user := models.User{
		Username:     username,
		PasswordHash: "!",
		IsStaff:      staff,
		IsSuperuser:  superuser,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// CreateRepair inserts a repair for owner in the given status.
func CreateRepair(t *testing.T, db *gorm.DB, owner models.User, status models.RepairStatus) models.Repair {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.Repair{}).Where("user_id = ?", owner.ID).Count(&count).Error)

	repair := models.Repair{
		UserID:        owner.ID,
		CustomerName:  owner.Username,
		Phone:         "2944123456",
		Location:      "Centro",
		EquipmentType: "Kite",
		Description:   "Costura abierta en el borde de ataque",
		ImageKey:      "reparaciones/2026/01/test_kite.png",
		Status:        status,
		Priority:      int(count) + 1,
	}
	require.NoError(t, db.Create(&repair).Error)
	return repair
}

// CreateQuote inserts a quote for repair.
func CreateQuote(t *testing.T, db *gorm.DB, repair models.Repair, author models.User, status models.QuoteStatus, amount *float64) models.Quote {
	t.Helper()

	quote := models.Quote{
		RepairID:    repair.ID,
		CreatedByID: author.ID,
		FileKey:     "presupuestos/2026/01/test_presupuesto.pdf",
		FileName:    "presupuesto.pdf",
		Status:      status,
		Amount:      amount,
		Currency:    models.CurrencyARS,
	}
	require.NoError(t, db.Create(&quote).Error)
	return quote
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
