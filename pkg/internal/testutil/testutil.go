// Package testutil wires in-memory collaborators for package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/database"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/feed"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupDatabase points database.C at a migrated in-memory sqlite database
// for the duration of the test. A single connection keeps the memory
// database alive and serializes concurrent callers.
func SetupDatabase(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.Config())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.RunMigration(db))

	prev := database.C
	database.C = db
	t.Cleanup(func() {
		database.C = prev
		_ = sqlDB.Close()
	})
	return db
}

// SetupFeed swaps the process bus for a fresh local one.
func SetupFeed(t testing.TB) *feed.LocalBus {
	t.Helper()

	bus := feed.NewLocalBus()
	prev := feed.B
	feed.B = bus
	t.Cleanup(func() {
		feed.B = prev
		_ = bus.Close()
	})
	return bus
}

// SeedProfiles creates one profile per id named after it.
func SeedProfiles(t testing.TB, db *gorm.DB, ids ...uint) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, db.WithContext(context.Background()).Create(&models.Profile{
			ID:   id,
			Name: fmt.Sprintf("user%d", id),
			Nick: fmt.Sprintf("User %d", id),
		}).Error)
	}
}

// CountQueries counts query and row statements issued through db until
// the returned stop function is called.
func CountQueries(t testing.TB, db *gorm.DB) (count func() int, stop func()) {
	t.Helper()

	var n int
	name := fmt.Sprintf("testutil:count:%p", &n)
	inc := func(*gorm.DB) { n++ }
	require.NoError(t, db.Callback().Query().After("gorm:query").Register(name, inc))
	require.NoError(t, db.Callback().Row().After("gorm:row").Register(name, inc))

	return func() int { return n }, func() {
		_ = db.Callback().Query().Remove(name)
		_ = db.Callback().Row().Remove(name)
	}
}
