//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestTestDB_Connection(t *testing.T) {
	testDB := GetTestDB(t)

	var db string
	err := testDB.Pool.QueryRow(context.Background(), "SELECT current_database()").Scan(&db)
	if err != nil {
		t.Fatalf("failed to query test database: %v", err)
	}
	if db != "hangar_test" {
		t.Errorf("expected database hangar_test, got %q", db)
	}
}

func TestTestRedis_Config(t *testing.T) {
	cfg := GetTestRedis(t)
	if cfg.Host == "" || cfg.Port == 0 {
		t.Errorf("expected host and port, got %+v", cfg)
	}
}
