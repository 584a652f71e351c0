package quota

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apigate-dev/restgateway/internal/config"
	"github.com/apigate-dev/restgateway/internal/db"
	"github.com/apigate-dev/restgateway/internal/models"
	"github.com/apigate-dev/restgateway/internal/store"
	"gorm.io/gorm"
)

func openLedgerDB(t *testing.T, dsn string, maxOpen int) *gorm.DB {
	t.Helper()
	conn, errOpen := db.Open(config.DatabaseConfig{DSN: dsn, MaxOpenConns: maxOpen, MaxIdleConns: maxOpen})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	t.Cleanup(func() {
		if sqlDB, errDB := conn.DB(); errDB == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func seedKey(t *testing.T, conn *gorm.DB, limit int, lastReset string, used int) *models.APIKey {
	t.Helper()
	user := models.User{Email: "ledger@example.com", Password: "hash", Plan: models.PlanFree}
	if errCreate := conn.Create(&user).Error; errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	key := models.APIKey{UserID: user.ID, APIKey: "gw_ledger", DailyLimit: limit, LastResetDate: lastReset, RequestsToday: used}
	if errCreate := conn.Create(&key).Error; errCreate != nil {
		t.Fatalf("create key: %v", errCreate)
	}
	return &key
}

func reloadKey(t *testing.T, conn *gorm.DB, id uint64) models.APIKey {
	t.Helper()
	var key models.APIKey
	if errFind := conn.First(&key, id).Error; errFind != nil {
		t.Fatalf("reload key: %v", errFind)
	}
	return key
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCheckAndConsumeConcurrentNoLostUpdates(t *testing.T) {
	conn := openLedgerDB(t, filepath.Join(t.TempDir(), "ledger.db"), 8)
	const limit, callers = 20, 50
	key := seedKey(t, conn, limit, "", 0)
	ledger := NewLedger(store.New(conn), nil)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	errCh := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, errCheck := ledger.CheckAndConsume(context.Background(), key.ID)
			if errCheck != nil {
				errCh <- errCheck
				return
			}
			if decision.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for errCheck := range errCh {
		t.Fatalf("check failed: %v", errCheck)
	}

	if got := allowed.Load(); got != limit {
		t.Fatalf("expected %d allowed calls, got %d", limit, got)
	}
	if stored := reloadKey(t, conn, key.ID); stored.RequestsToday != limit {
		t.Fatalf("expected stored counter %d, got %d", limit, stored.RequestsToday)
	}
}

func TestCheckAndConsumeConcurrentBelowLimit(t *testing.T) {
	conn := openLedgerDB(t, filepath.Join(t.TempDir(), "ledger.db"), 8)
	const callers = 30
	key := seedKey(t, conn, 100, "", 0)
	ledger := NewLedger(store.New(conn), nil)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, errCheck := ledger.CheckAndConsume(context.Background(), key.ID); errCheck != nil {
				t.Errorf("check failed: %v", errCheck)
			}
		}()
	}
	wg.Wait()

	if stored := reloadKey(t, conn, key.ID); stored.RequestsToday != callers {
		t.Fatalf("expected stored counter %d, got %d", callers, stored.RequestsToday)
	}
}

func TestCheckAndConsumeRolloverRestartsCounter(t *testing.T) {
	conn := openLedgerDB(t, ":memory:", 1)
	now := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	key := seedKey(t, conn, 100, "2026-05-09", 100)
	ledger := NewLedger(store.New(conn), fixedClock(now))

	decision, errCheck := ledger.CheckAndConsume(context.Background(), key.ID)
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if !decision.Allowed || decision.Remaining != 99 || decision.Used != 1 || decision.Limit != 100 {
		t.Fatalf("unexpected decision after rollover: %+v", decision)
	}
	if decision.ResetDate != "2026-05-11" || !decision.ResetAt.Equal(time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected reset: %s %s", decision.ResetDate, decision.ResetAt)
	}
	stored := reloadKey(t, conn, key.ID)
	if stored.LastResetDate != "2026-05-10" || stored.RequestsToday != 1 {
		t.Fatalf("unexpected stored state: %s/%d", stored.LastResetDate, stored.RequestsToday)
	}
}

func TestCheckAndConsumeDenialIsIdempotent(t *testing.T) {
	conn := openLedgerDB(t, ":memory:", 1)
	now := time.Date(2026, 5, 10, 23, 59, 0, 0, time.UTC)
	key := seedKey(t, conn, 3, "2026-05-10", 3)
	ledger := NewLedger(store.New(conn), fixedClock(now))

	for i := 0; i < 5; i++ {
		decision, errCheck := ledger.CheckAndConsume(context.Background(), key.ID)
		if errCheck != nil {
			t.Fatalf("check: %v", errCheck)
		}
		if decision.Allowed || decision.Remaining != 0 || decision.Limit != 3 {
			t.Fatalf("expected denial, got %+v", decision)
		}
	}
	if stored := reloadKey(t, conn, key.ID); stored.RequestsToday != 3 {
		t.Fatalf("denied calls changed the counter to %d", stored.RequestsToday)
	}
}

func TestCheckAndConsumeZeroLimitNeverRollsOver(t *testing.T) {
	conn := openLedgerDB(t, ":memory:", 1)
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	key := seedKey(t, conn, 0, "2026-05-01", 7)
	ledger := NewLedger(store.New(conn), fixedClock(now))

	decision, errCheck := ledger.CheckAndConsume(context.Background(), key.ID)
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if decision.Allowed || decision.Remaining != 0 || decision.Used != 0 {
		t.Fatalf("expected denial with zero usage, got %+v", decision)
	}
	if stored := reloadKey(t, conn, key.ID); stored.LastResetDate != "2026-05-01" {
		t.Fatalf("denied call rolled the key over to %s", stored.LastResetDate)
	}
}

func TestCheckAndConsumeMissingKey(t *testing.T) {
	conn := openLedgerDB(t, ":memory:", 1)
	ledger := NewLedger(store.New(conn), nil)

	if _, errCheck := ledger.CheckAndConsume(context.Background(), 404); !errors.Is(errCheck, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", errCheck)
	}
}

func TestCheckAndConsumeStoreUnavailable(t *testing.T) {
	conn := openLedgerDB(t, ":memory:", 1)
	key := seedKey(t, conn, 10, "", 0)
	ledger := NewLedger(store.New(conn), nil)

	sqlDB, errDB := conn.DB()
	if errDB != nil {
		t.Fatalf("sql db: %v", errDB)
	}
	_ = sqlDB.Close()

	decision, errCheck := ledger.CheckAndConsume(context.Background(), key.ID)
	if !errors.Is(errCheck, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", errCheck)
	}
	if decision.Allowed {
		t.Fatalf("store failure must not allow")
	}
}

func TestPeekHonorsLazyRollover(t *testing.T) {
	conn := openLedgerDB(t, ":memory:", 1)
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	key := seedKey(t, conn, 50, "2026-05-09", 50)
	ledger := NewLedger(store.New(conn), fixedClock(now))

	decision, errPeek := ledger.Peek(context.Background(), key.ID)
	if errPeek != nil {
		t.Fatalf("peek: %v", errPeek)
	}
	if !decision.Allowed || decision.Remaining != 50 || decision.Used != 0 {
		t.Fatalf("unexpected peek: %+v", decision)
	}
	if stored := reloadKey(t, conn, key.ID); stored.RequestsToday != 50 {
		t.Fatalf("peek mutated the counter")
	}
}

func TestSetLimit(t *testing.T) {
	conn := openLedgerDB(t, ":memory:", 1)
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	key := seedKey(t, conn, 5, "2026-05-10", 5)
	ledger := NewLedger(store.New(conn), fixedClock(now))

	if errSet := ledger.SetLimit(context.Background(), key.ID, -1); !errors.Is(errSet, ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", errSet)
	}
	if errSet := ledger.SetLimit(context.Background(), key.ID, 8); errSet != nil {
		t.Fatalf("set limit: %v", errSet)
	}
	decision, errCheck := ledger.CheckAndConsume(context.Background(), key.ID)
	if errCheck != nil {
		t.Fatalf("check: %v", errCheck)
	}
	if !decision.Allowed || decision.Remaining != 2 {
		t.Fatalf("expected raised limit to admit, got %+v", decision)
	}
	if errSet := ledger.SetLimit(context.Background(), 999, 1); !errors.Is(errSet, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", errSet)
	}
}

func TestNextResetAndDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	at := time.Date(2026, 12, 31, 8, 0, 0, 0, loc) // 2026-12-30 23:00 UTC
	if got := Day(at); got != "2026-12-30" {
		t.Fatalf("unexpected day: %s", got)
	}
	if got := NextReset(at); !got.Equal(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected reset: %s", got)
	}
}
