package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/db/dbtest"
	"github.com/IdrisKulubi/strath-mobile-sub004/internal/repository"
)

func TestSeedDemoData(t *testing.T) {
	gdb := dbtest.Open(t)
	opts := db.SeedOptions{Users: 20, Seed: 7, PasswordCost: bcrypt.MinCost}

	require.NoError(t, db.SeedDemoData(context.Background(), gdb, repository.NewInteractionRepository(gdb), opts))

	var users, profiles, hidden, paused int64
	require.NoError(t, gdb.Model(&db.User{}).Count(&users).Error)
	require.NoError(t, gdb.Model(&db.Profile{}).Count(&profiles).Error)
	require.NoError(t, gdb.Model(&db.Profile{}).Where("is_visible = ?", false).Count(&hidden).Error)
	require.NoError(t, gdb.Model(&db.Profile{}).Where("discovery_paused = ?", true).Count(&paused).Error)
	assert.Equal(t, int64(20), users)
	assert.Equal(t, int64(20), profiles)
	assert.Equal(t, int64(2), hidden) // 7, 14
	assert.Equal(t, int64(1), paused) // 11

	var u db.User
	require.NoError(t, gdb.First(&u, 1).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(db.DemoPassword)))

	var p db.Profile
	require.NoError(t, gdb.First(&p, "user_id = ?", 3).Error)
	assert.GreaterOrEqual(t, len(p.Interests), 3)
	assert.LessOrEqual(t, len(p.Interests), 5)

	var swipes, blocks int64
	require.NoError(t, gdb.Model(&db.Swipe{}).Count(&swipes).Error)
	require.NoError(t, gdb.Model(&db.Block{}).Count(&blocks).Error)
	assert.Positive(t, swipes)
	assert.LessOrEqual(t, blocks, int64(2)) // seeded by 9 and 18
}

func TestSeedDemoData_ResetsAndIsDeterministic(t *testing.T) {
	gdb := dbtest.Open(t)
	opts := db.SeedOptions{Users: 12, Seed: 42, PasswordCost: bcrypt.MinCost}
	ctx := context.Background()

	require.NoError(t, db.SeedDemoData(ctx, gdb, repository.NewInteractionRepository(gdb), opts))
	var first []db.Profile
	require.NoError(t, gdb.Order("user_id").Find(&first).Error)

	require.NoError(t, db.SeedDemoData(ctx, gdb, repository.NewInteractionRepository(gdb), opts))
	var second []db.Profile
	require.NoError(t, gdb.Order("user_id").Find(&second).Error)

	require.Len(t, second, 12)
	for i := range first {
		assert.Equal(t, first[i].Name, second[i].Name)
		assert.Equal(t, []string(first[i].Interests), []string(second[i].Interests))
	}
}
