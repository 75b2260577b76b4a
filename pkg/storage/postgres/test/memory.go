// Package storagetest opens the listing store on an in-memory sqlite database.
package storagetest

import (
	"testing"

	"listingwatcher/pkg/storage/postgres"

	"gorm.io/driver/sqlite"
)

// NewClient returns a migrated store that lives as long as the test.
func NewClient(t testing.TB) *postgres.PostgresClient {
	t.Helper()

	client, err := postgres.NewClientWithDialector(sqlite.Open("file::memory:?_foreign_keys=on"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// every sqlite connection gets its own :memory: database
	sqlDB, err := client.DB.DB()
	if err != nil {
		t.Fatalf("raw db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := client.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })
	return client
}
