package services

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/restaurant-ordering/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	// watchers write from their own goroutines; one connection keeps
	// shared-cache sqlite from reporting table locks
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type event struct {
	TableID uint
	Name    string
	Data    interface{}
}

type recordingEvents struct {
	mu    sync.Mutex
	table []event
	staff []event
}

func (r *recordingEvents) BroadcastToTable(tableID uint, name string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table = append(r.table, event{TableID: tableID, Name: name, Data: data})
}

func (r *recordingEvents) BroadcastToStaff(name string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staff = append(r.staff, event{Name: name, Data: data})
}

func (r *recordingEvents) tableEvents(name string) []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event
	for _, e := range r.table {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func seedTable(t *testing.T, db *gorm.DB, number string) models.Table {
	t.Helper()
	table := models.Table{TableNumber: number, Status: models.TableStatusOccupied}
	require.NoError(t, db.Create(&table).Error)
	return table
}

// seedOrder creates a table with an active session and a pending order.
func seedOrder(t *testing.T, db *gorm.DB, total int64) models.Order {
	t.Helper()
	table := seedTable(t, db, uuid.NewString()[:6])
	session := models.TableSession{TableID: table.ID, SessionKey: uuid.NewString(), Status: models.SessionStatusActive}
	require.NoError(t, db.Create(&session).Error)

	order := models.Order{
		TableID:        table.ID,
		TableSessionID: session.ID,
		Status:         models.OrderStatusPending,
		PaymentStatus:  models.PaymentStatusPending,
		Subtotal:       decimal.NewFromInt(total),
		Total:          decimal.NewFromInt(total),
		Items: []models.OrderItem{{
			MenuItemID: 1,
			Name:       "Nasi Goreng",
			Quantity:   1,
			UnitPrice:  decimal.NewFromInt(total),
			Subtotal:   decimal.NewFromInt(total),
		}},
	}
	require.NoError(t, db.Create(&order).Error)
	return order
}

func testAccounts() []models.BankAccount {
	return []models.BankAccount{{Bank: "BCA", Number: "1234567890", Holder: "PT Resto Nusantara"}}
}
