// Package dbtest opens isolated in-memory databases for package tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
)

// Open spins up an in-memory SQLite DB named after the test and migrates
// every model. Each test gets its own database.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// one connection keeps the shared in-memory DB alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// UserProfile inserts an active user plus a discoverable profile. The
// mutate hook adjusts the profile before insert.
func UserProfile(t *testing.T, gdb *gorm.DB, id uint64, gender string, mutate func(p *db.Profile)) db.Profile {
	t.Helper()

	require.NoError(t, gdb.Create(&db.User{
		ID:           id,
		Email:        fmt.Sprintf("user%d@strathmore.edu", id),
		PasswordHash: "x",
		Active:       true,
	}).Error)

	p := db.Profile{
		UserID:           id,
		Name:             fmt.Sprintf("User %d", id),
		Age:              21,
		Gender:           gender,
		University:       "Strathmore University",
		Course:           "Computer Science",
		Interests:        []string{"music"},
		IsVisible:        true,
		ProfileCompleted: true,
	}
	if mutate != nil {
		mutate(&p)
	}
	require.NoError(t, gdb.Create(&p).Error)
	return p
}
