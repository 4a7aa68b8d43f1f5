package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amoria/matchcore/internal/db"
)

// MatchRepository provides data access for mutual matches. Pairs are stored
// in canonical order (lower ID first) so existence checks are one unique
// index lookup.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// WithTx returns a copy bound to the given transaction handle.
func (r *MatchRepository) WithTx(tx *gorm.DB) *MatchRepository {
	return &MatchRepository{db: tx}
}

// CanonicalPair orders two user IDs into storage order.
func CanonicalPair(a, b uint64) (uint64, uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

// ExistsActive reports whether the two users have an active match.
func (r *MatchRepository) ExistsActive(ctx context.Context, a, b uint64) (bool, error) {
	lo, hi := CanonicalPair(a, b)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.UserMatch{}).
		Where("user_a_id = ? AND user_b_id = ? AND status = ?", lo, hi, db.MatchStatusActive).
		Count(&count).Error
	return count > 0, err
}

// Create inserts the match row for a pair. The unique index on
// (user_a_id, user_b_id) rejects a second match for the same pair.
func (r *MatchRepository) Create(ctx context.Context, a, b uint64, at time.Time) (*db.UserMatch, error) {
	lo, hi := CanonicalPair(a, b)
	match := db.UserMatch{
		Ref:       uuid.NewString(),
		UserAID:   lo,
		UserBID:   hi,
		Status:    db.MatchStatusActive,
		MatchedAt: at,
	}
	if err := r.db.WithContext(ctx).Create(&match).Error; err != nil {
		return nil, err
	}
	return &match, nil
}
