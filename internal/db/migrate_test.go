package db

import (
	"path/filepath"
	"testing"

	"github.com/apigate-dev/restgateway/internal/config"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateSQLiteCreatesGatewayTables(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, table := range []string{"users", "api_keys", "sessions", "usage_logs", "password_reset_tokens"} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("missing table %s", table)
		}
	}
	for _, column := range []string{"daily_limit", "requests_today", "last_reset_date", "expires_at", "last_used_at"} {
		if !conn.Migrator().HasColumn("api_keys", column) {
			t.Fatalf("api_keys missing column %s", column)
		}
	}
}

func TestMigrateSQLiteIsIdempotent(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	for i := 0; i < 2; i++ {
		if errMigrate := Migrate(conn); errMigrate != nil {
			t.Fatalf("migrate pass %d: %v", i+1, errMigrate)
		}
	}
}

func TestOpenSQLiteFileCreatesDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "gateway.db")
	conn, errOpen := Open(config.DatabaseConfig{DSN: dsn, MaxOpenConns: 4})
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}
	sqlDB, _ := conn.DB()
	defer func() { _ = sqlDB.Close() }()

	if !IsSQLite(conn) {
		t.Fatalf("expected sqlite dialect, got %s", DialectName(conn))
	}
	var mode string
	if errScan := conn.Raw("PRAGMA journal_mode").Scan(&mode).Error; errScan != nil {
		t.Fatalf("read journal mode: %v", errScan)
	}
	if mode != "wal" {
		t.Fatalf("expected wal journal mode, got %q", mode)
	}
}

func TestOpenSQLiteMemoryUsesSingleConnection(t *testing.T) {
	conn, errOpen := Open(config.DatabaseConfig{DSN: ":memory:", MaxOpenConns: 10})
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}
	sqlDB, _ := conn.DB()
	defer func() { _ = sqlDB.Close() }()

	if got := sqlDB.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("expected 1 max open connection, got %d", got)
	}
	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	if !conn.Migrator().HasTable("users") {
		t.Fatalf("schema not visible on the memory connection")
	}
}

func TestDetectDialectFromDSN(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/db":       DialectPostgres,
		"host=localhost user=u dbname=gw":        DialectPostgres,
		"data/gateway.db":                        DialectSQLite,
		"file:gateway.db?_pragma=foreign_keys(1)": DialectSQLite,
		"sqlite://var/gateway.db":                DialectSQLite,
	}
	for dsn, want := range cases {
		got, errDetect := detectDialectFromDSN(dsn)
		if errDetect != nil {
			t.Fatalf("detect %q: %v", dsn, errDetect)
		}
		if got != want {
			t.Fatalf("detect %q = %s, want %s", dsn, got, want)
		}
	}
	if _, errDetect := detectDialectFromDSN("mysql://localhost/db"); errDetect == nil {
		t.Fatalf("expected mysql dsn to be rejected")
	}
}

func TestEnsureSQLiteParamsKeepsExisting(t *testing.T) {
	got := ensureSQLiteParams("file:x.db?_pragma=busy_timeout(100)")
	want := "file:x.db?_pragma=busy_timeout(100)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"
	if got != want {
		t.Fatalf("unexpected dsn:\n got %s\nwant %s", got, want)
	}
	mem := ensureSQLiteParams(":memory:")
	if want := ":memory:?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)"; mem != want {
		t.Fatalf("unexpected memory dsn: %s", mem)
	}
}
