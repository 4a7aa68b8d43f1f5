package db

import (
	"time"
)

// Subscription plan / status values stored on users.
const (
	PlanNone     = "none"
	PlanBasic    = "basic"
	PlanGold     = "gold"
	PlanPlatinum = "platinum"

	SubStatusActive  = "active"
	SubStatusExpired = "expired"
	SubStatusNone    = "none"
)

// User table. Subscription fields are the inputs to tier derivation;
// the tier itself is never stored.
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"size:128;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Gender       string `gorm:"size:16;not null"`
	IsAdmin      bool   `gorm:"default:false"`
	Active       bool   `gorm:"default:true"`

	SubscriptionPlan      string     `gorm:"size:16;not null;default:none"`
	SubscriptionStatus    string     `gorm:"size:16;not null;default:none"`
	SubscriptionExpiresAt *time.Time `gorm:""`

	Profile *Profile `gorm:"foreignKey:UserID"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Profile holds the matchable attributes and the owner's stated preferences.
// One row per user; every attribute is optional (empty/zero means not set).
type Profile struct {
	UserID uint64 `gorm:"primaryKey"`

	DobYear       int    `gorm:"default:0"`
	City          string `gorm:"size:64"`
	State         string `gorm:"size:64"`
	Country       string `gorm:"size:64"`
	Religion      string `gorm:"size:48"`
	Education     string `gorm:"size:32"`
	MaritalStatus string `gorm:"size:32"`
	Employment    string `gorm:"size:32"`
	IncomeRange   string `gorm:"size:32"`
	Ethnicity     string `gorm:"size:48"`
	HeightCM      int    `gorm:"default:0"`

	Smoking       string `gorm:"size:16"`
	Drinking      string `gorm:"size:16"`
	WantsChildren string `gorm:"size:16"`

	InterestsEntertainment string `gorm:"size:255"`
	InterestsFood          string `gorm:"size:255"`
	InterestsMusic         string `gorm:"size:255"`
	InterestsSports        string `gorm:"size:255"`

	PrefAgeMin            int    `gorm:"default:0"`
	PrefAgeMax            int    `gorm:"default:0"`
	PrefEducation         string `gorm:"size:32"`
	PrefReligiousPractice string `gorm:"size:48"`
	PrefMaritalStatus     string `gorm:"size:32"`

	PrimaryPhotoURL string `gorm:"size:255"`
	Phone           string `gorm:"size:32"`
	WhatsApp        string `gorm:"size:32"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Like statuses.
const (
	LikeStatusPending = "pending"
	LikeStatusMatched = "matched"
)

// UserLike is one directed like. At most one row per ordered pair; status
// moves pending -> matched when mutuality is detected, never back.
//
// Indexes:
//   - uq_user_liked(user_id, liked_user_id) enforces the single-row rule and
//     backs the O(1) reciprocal lookup.
//   - idx_liked_status_at(liked_user_id, status, liked_at DESC, user_id)
//     serves "who liked me" listings with pagination.
type UserLike struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	UserID      uint64    `gorm:"not null;uniqueIndex:uq_user_liked,priority:1"`
	LikedUserID uint64    `gorm:"not null;uniqueIndex:uq_user_liked,priority:2;index:idx_liked_status_at,priority:1"`
	Status      string    `gorm:"size:16;not null;default:pending;index:idx_liked_status_at,priority:2"`
	LikedAt     time.Time `gorm:"not null;index:idx_liked_status_at,priority:3,sort:desc"`
}

// Match statuses.
const (
	MatchStatusActive    = "active"
	MatchStatusUnmatched = "unmatched"
)

// UserMatch is one mutual match. The pair is stored canonically
// (UserAID < UserBID) so "are these two matched" is a single unique lookup.
type UserMatch struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Ref       string    `gorm:"size:36;uniqueIndex;not null"`
	UserAID   uint64    `gorm:"not null;uniqueIndex:uq_match_pair,priority:1"`
	UserBID   uint64    `gorm:"not null;uniqueIndex:uq_match_pair,priority:2"`
	Status    string    `gorm:"size:16;not null;default:active"`
	MatchedAt time.Time `gorm:"not null"`
}

// DailyActivityCounter is the durable quota ledger: one row per user per
// activity per calendar day, mutated only by atomic increment.
type DailyActivityCounter struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	UserID       uint64 `gorm:"not null;uniqueIndex:uq_user_activity_day,priority:1"`
	ActivityType string `gorm:"size:32;not null;uniqueIndex:uq_user_activity_day,priority:2"`
	ActivityDate string `gorm:"size:10;not null;uniqueIndex:uq_user_activity_day,priority:3"`
	Count        int64  `gorm:"not null;default:0"`
}
