package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var seedCities = []struct {
	city, state, country string
}{
	{"Lagos", "Lagos", "Nigeria"},
	{"Abuja", "FCT", "Nigeria"},
	{"Ibadan", "Oyo", "Nigeria"},
	{"Accra", "Greater Accra", "Ghana"},
	{"Nairobi", "Nairobi", "Kenya"},
}

var seedReligions = []string{
	"christianity", "islam_sunni", "islam_shia", "islam_sufi", "",
}

var seedEducation = []string{
	"high_school", "diploma", "bachelors", "masters", "doctorate", "",
}

var seedPlans = []struct {
	plan   string
	status string
}{
	{PlanNone, SubStatusNone},
	{PlanBasic, SubStatusActive},
	{PlanGold, SubStatusActive},
	{PlanPlatinum, SubStatusActive},
}

// SeedTestData resets the database and populates it with demo users,
// profiles across all tiers, and likes with guaranteed mutual pairs.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"user_matches", "user_likes", "daily_activity_counters", "profiles", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	log.Println("Cleared existing data")

	// --- Seed Users (10 male, 10 female) across tiers ---
	lifestyles := []string{"no", "occasionally", "yes"}
	for i := 1; i <= 20; i++ {
		hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		gender := "male"
		if i > 10 {
			gender = "female"
		}

		sub := seedPlans[i%len(seedPlans)]
		var expires *time.Time
		if sub.status == SubStatusActive {
			t := time.Now().AddDate(0, 1, 0)
			expires = &t
		}

		loc := seedCities[i%len(seedCities)]
		user := User{
			Name:                  fmt.Sprintf("user%d", i),
			Email:                 fmt.Sprintf("user%d@example.com", i),
			PasswordHash:          string(hash),
			Gender:                gender,
			Active:                true,
			SubscriptionPlan:      sub.plan,
			SubscriptionStatus:    sub.status,
			SubscriptionExpiresAt: expires,
			Profile: &Profile{
				DobYear:                1980 + r.Intn(25),
				City:                   loc.city,
				State:                  loc.state,
				Country:                loc.country,
				Religion:               seedReligions[i%len(seedReligions)],
				Education:              seedEducation[i%len(seedEducation)],
				MaritalStatus:          "single",
				Smoking:                lifestyles[r.Intn(3)],
				Drinking:               lifestyles[r.Intn(3)],
				WantsChildren:          []string{"no", "maybe", "yes"}[r.Intn(3)],
				InterestsEntertainment: "movies and series",
				InterestsMusic:         []string{"afrobeats", "jazz and soul", "gospel"}[r.Intn(3)],
				PrimaryPhotoURL:        fmt.Sprintf("https://photos.example.com/u%d.jpg", i),
				Phone:                  fmt.Sprintf("+23480000%04d", i),
				WhatsApp:               fmt.Sprintf("+23480000%04d", i),
			},
		}

		if err := db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
	}
	log.Println("Seeded 20 users with profiles.")

	// --- Seed likes, every 3rd pair mutual ---
	var users []User
	if err := db.Order("id").Find(&users).Error; err != nil {
		return err
	}

	counter := 0
	for _, actor := range users {
		for j := 0; j < 6; j++ {
			target := users[r.Intn(len(users))]
			if actor.ID == target.ID || actor.Gender == target.Gender {
				continue
			}

			var existing int64
			db.Model(&UserLike{}).
				Where("user_id = ? AND liked_user_id = ?", actor.ID, target.ID).
				Count(&existing)
			if existing > 0 {
				continue
			}

			like := UserLike{
				UserID:      actor.ID,
				LikedUserID: target.ID,
				Status:      LikeStatusPending,
				LikedAt:     time.Now().Add(-time.Duration(r.Intn(72)) * time.Hour),
			}
			if err := db.Create(&like).Error; err != nil {
				return fmt.Errorf("failed to seed like: %w", err)
			}

			// guarantee a mutual pair every 3rd like
			if counter%3 == 0 {
				reciprocal := UserLike{
					UserID:      target.ID,
					LikedUserID: actor.ID,
					Status:      LikeStatusMatched,
					LikedAt:     time.Now(),
				}
				if err := db.Create(&reciprocal).Error; err == nil {
					db.Model(&UserLike{}).
						Where("user_id = ? AND liked_user_id = ?", actor.ID, target.ID).
						Update("status", LikeStatusMatched)

					lo, hi := actor.ID, target.ID
					if hi < lo {
						lo, hi = hi, lo
					}
					match := UserMatch{
						Ref:       fmt.Sprintf("seed-%d-%d", lo, hi),
						UserAID:   lo,
						UserBID:   hi,
						Status:    MatchStatusActive,
						MatchedAt: time.Now(),
					}
					db.Create(&match)
				}
			}

			counter++
		}
	}
	log.Printf("Seeded %d likes.", counter)

	return nil
}
