package database

import (
	"testing"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/pod-kiosk/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{User: "kiosk", Pass: "pw", Host: "db", Port: "3306", Name: "pods"})
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", dsn, err)
	}
	if parsed.User != "kiosk" || parsed.Passwd != "pw" || parsed.Addr != "db:3306" || parsed.DBName != "pods" {
		t.Fatalf("parsed = %+v", parsed)
	}
	if !parsed.ParseTime || !parsed.ClientFoundRows {
		t.Fatalf("flags: parseTime=%v clientFoundRows=%v", parsed.ParseTime, parsed.ClientFoundRows)
	}
}
