package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amoria/matchcore/internal/db"
)

// UserRepository provides data access for users and the candidate pool.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// WithTx returns a copy bound to the given transaction handle.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// FindUser loads a user with their profile.
func (r *UserRepository) FindUser(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).Preload("Profile").First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// LockForUpdate fetches a user row under a row-level write lock, for the
// like/match critical section. SQLite has no FOR UPDATE; its single-writer
// transactions serialize instead, so the clause is only applied on MySQL.
func (r *UserRepository) LockForUpdate(ctx context.Context, id uint64) (*db.User, error) {
	q := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var u db.User
	if err := q.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// MarkSubscriptionExpired flips a stale active subscription to expired.
// Guarded on the current status so a concurrent renewal is not clobbered.
func (r *UserRepository) MarkSubscriptionExpired(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ? AND subscription_status = ?", id, db.SubStatusActive).
		Update("subscription_status", db.SubStatusExpired).Error
}

// CandidateFilter is the effective filter set for a candidate query.
// Tier gating happens in the matching service before this is built; zero
// values mean "not filtered".
type CandidateFilter struct {
	// basic filters
	AgeMin        int
	AgeMax        int
	Location      string
	MaritalStatus string
	Religion      string

	// gold filters
	Education   string
	Employment  string
	IncomeRange string

	// platinum filters
	HeightMin int
	HeightMax int
	Ethnicity string
	Smoking   string
	Drinking  string
	EliteOnly bool

	// name search
	NameTerm string
}

// candidateQuery builds the shared WHERE clause for the candidate pool:
// excludes the requester, admins, inactive accounts and users without a
// primary photo, and restricts binary users to the opposite declared gender.
func (r *UserRepository) candidateQuery(ctx context.Context, requester *db.User, f CandidateFilter, now time.Time) *gorm.DB {
	q := r.db.WithContext(ctx).
		Model(&db.User{}).
		Joins("JOIN profiles p ON p.user_id = users.id").
		Where("users.id <> ?", requester.ID).
		Where("users.is_admin = ?", false).
		Where("users.active = ?", true).
		Where("p.primary_photo_url <> ''")

	switch requester.Gender {
	case "male":
		q = q.Where("users.gender = ?", "female")
	case "female":
		q = q.Where("users.gender = ?", "male")
	}

	if f.AgeMin > 0 {
		q = q.Where("p.dob_year > 0 AND p.dob_year <= ?", now.Year()-f.AgeMin)
	}
	if f.AgeMax > 0 {
		q = q.Where("p.dob_year >= ?", now.Year()-f.AgeMax)
	}
	if f.Location != "" {
		pattern := "%" + f.Location + "%"
		q = q.Where("(p.city LIKE ? OR p.state LIKE ? OR p.country LIKE ?)", pattern, pattern, pattern)
	}
	if f.MaritalStatus != "" {
		q = q.Where("p.marital_status = ?", f.MaritalStatus)
	}
	if f.Religion != "" {
		q = q.Where("p.religion = ?", f.Religion)
	}

	if f.Education != "" {
		q = q.Where("p.education = ?", f.Education)
	}
	if f.Employment != "" {
		q = q.Where("p.employment = ?", f.Employment)
	}
	if f.IncomeRange != "" {
		q = q.Where("p.income_range = ?", f.IncomeRange)
	}

	if f.HeightMin > 0 {
		q = q.Where("p.height_cm >= ?", f.HeightMin)
	}
	if f.HeightMax > 0 {
		q = q.Where("p.height_cm > 0 AND p.height_cm <= ?", f.HeightMax)
	}
	if f.Ethnicity != "" {
		q = q.Where("p.ethnicity = ?", f.Ethnicity)
	}
	if f.Smoking != "" {
		q = q.Where("p.smoking = ?", f.Smoking)
	}
	if f.Drinking != "" {
		q = q.Where("p.drinking = ?", f.Drinking)
	}
	if f.EliteOnly {
		// same expiry-aware check as tier derivation
		q = q.Where("users.subscription_plan = ?", db.PlanPlatinum).
			Where("users.subscription_status = ?", db.SubStatusActive).
			Where("(users.subscription_expires_at IS NULL OR users.subscription_expires_at > ?)", now)
	}

	if f.NameTerm != "" {
		q = q.Where("users.name LIKE ?", "%"+f.NameTerm+"%")
	}

	return q
}

// FindCandidates fetches the unordered candidate pool, over-fetched so the
// scorer has something to rank and truncate from.
func (r *UserRepository) FindCandidates(
	ctx context.Context,
	requester *db.User,
	f CandidateFilter,
	fetch int,
	now time.Time,
) ([]db.User, error) {
	var users []db.User
	err := r.candidateQuery(ctx, requester, f, now).
		Select("users.*").
		Preload("Profile").
		Limit(fetch).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// CountCandidates returns the total pool size for the same filter set.
func (r *UserRepository) CountCandidates(
	ctx context.Context,
	requester *db.User,
	f CandidateFilter,
	now time.Time,
) (int64, error) {
	var count int64
	err := r.candidateQuery(ctx, requester, f, now).Count(&count).Error
	return count, err
}
