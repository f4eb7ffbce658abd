package db

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/logger"
)

// DemoPassword is the password every seeded account shares.
const DemoPassword = "password"

var (
	demoFirstNames = []string{
		"Wanjiru", "Achieng", "Njeri", "Akinyi", "Wambui", "Chebet", "Nyambura", "Atieno",
		"Kamau", "Otieno", "Mwangi", "Kiprop", "Omondi", "Njoroge", "Kibet", "Mutua",
	}
	demoUniversities = []string{"Strathmore University", "University of Nairobi", "Kenyatta University"}
	demoCourses      = []string{"Computer Science", "Law", "Commerce", "Actuarial Science", "Hospitality", "Informatics"}
	demoInterests    = []string{
		"music", "hiking", "chess", "football", "photography", "coding", "art", "reading",
		"travel", "gym", "cooking", "dance", "movies", "gaming", "fashion", "poetry",
	}
)

// InteractionWriter records swipe and block edges; the repository layer
// implements it.
type InteractionWriter interface {
	RecordSwipe(ctx context.Context, swiperID, swipedID uint64, isLike bool) error
	RecordBlock(ctx context.Context, blockerID, blockedID uint64) error
}

// SeedOptions controls the size and shape of the demo dataset.
type SeedOptions struct {
	Users int
	// Seed drives every random choice, so equal seeds give equal datasets.
	Seed int64
	// PasswordCost is the bcrypt cost; 0 means bcrypt.DefaultCost.
	PasswordCost int
}

// SeedDemoData resets the database and populates a small campus.
//
// Behavior:
//  1. Clears drops, analytics events, swipes, blocks, profiles and users.
//  2. Creates opts.Users users, alternating female/male, each with a
//     complete discoverable profile and 3 to 5 interests.
//  3. Every 4th user swipes on two others; every 9th user blocks one.
//  4. Every 7th profile is hidden and every 11th has discovery paused,
//     so the candidate filters have something to exclude.
//
// Compatible with MySQL, Postgres and SQLite.
func SeedDemoData(ctx context.Context, db *gorm.DB, interactions InteractionWriter, opts SeedOptions) error {
	if opts.Users <= 0 {
		opts.Users = 40
	}
	if opts.PasswordCost == 0 {
		opts.PasswordCost = bcrypt.DefaultCost
	}
	r := rand.New(rand.NewSource(opts.Seed))
	log := logger.Named("seed")
	tx := db.WithContext(ctx)

	// --- Fresh start ---
	for _, m := range []any{&WeeklyDrop{}, &AgentAnalyticsEvent{}, &Swipe{}, &Block{}, &Profile{}} {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
			return fmt.Errorf("failed to clear %T: %w", m, err)
		}
	}
	if err := tx.Unscoped().Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&User{}).Error; err != nil {
		return fmt.Errorf("failed to clear users: %w", err)
	}
	log.Info("cleared existing data")

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), opts.PasswordCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// --- Users and profiles ---
	for i := 1; i <= opts.Users; i++ {
		id := uint64(i)
		lastLogin := time.Now().UTC().Add(-time.Duration(r.Intn(500)) * time.Hour)
		user := User{
			ID:           id,
			Email:        fmt.Sprintf("student%d@strathmore.edu", i),
			PasswordHash: string(hash),
			Active:       true,
			LastLoginAt:  &lastLogin,
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user %d: %w", i, err)
		}

		gender, interestedIn := "female", []string{"male"}
		if i%2 == 0 {
			gender, interestedIn = "male", []string{"female"}
		}
		if i%10 == 0 {
			interestedIn = []string{"everyone"}
		}

		profile := Profile{
			UserID:           id,
			Name:             demoFirstNames[r.Intn(len(demoFirstNames))],
			Age:              18 + r.Intn(8),
			Bio:              "Here for good vibes and better conversations.",
			ProfilePhoto:     fmt.Sprintf("https://cdn.example.com/photos/%d.jpg", i),
			Photos:           []string{fmt.Sprintf("https://cdn.example.com/photos/%d-1.jpg", i)},
			Gender:           gender,
			InterestedIn:     interestedIn,
			University:       demoUniversities[r.Intn(len(demoUniversities))],
			Course:           demoCourses[r.Intn(len(demoCourses))],
			YearOfStudy:      1 + r.Intn(4),
			Interests:        pickInterests(r, 3+r.Intn(3)),
			IsVisible:        i%7 != 0,
			ProfileCompleted: true,
			DiscoveryPaused:  i%11 == 0,
			LastActive:       &lastLogin,
		}
		if err := tx.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile %d: %w", i, err)
		}
	}
	log.Info("seeded users", "count", opts.Users)

	// --- Swipes and blocks ---
	swipes, blocks := 0, 0
	for i := 4; i <= opts.Users; i += 4 {
		for n := 0; n < 2; n++ {
			target := uint64(r.Intn(opts.Users) + 1)
			if target == uint64(i) {
				continue
			}
			if err := interactions.RecordSwipe(ctx, uint64(i), target, r.Intn(100) < 70); err != nil {
				return fmt.Errorf("failed to seed swipe: %w", err)
			}
			swipes++
		}
	}
	for i := 9; i <= opts.Users; i += 9 {
		target := uint64(r.Intn(opts.Users) + 1)
		if target == uint64(i) {
			continue
		}
		if err := interactions.RecordBlock(ctx, uint64(i), target); err != nil {
			return fmt.Errorf("failed to seed block: %w", err)
		}
		blocks++
	}
	log.Info("seeded interactions", "swipes", swipes, "blocks", blocks)

	return nil
}

func pickInterests(r *rand.Rand, n int) []string {
	idx := r.Perm(len(demoInterests))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = demoInterests[j]
	}
	return out
}
