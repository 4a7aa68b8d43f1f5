package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/amoria/matchcore/internal/db"
	"github.com/amoria/matchcore/internal/utils/pagination"
)

// LikeRepository provides data access for directed likes.
type LikeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(database *gorm.DB) *LikeRepository {
	return &LikeRepository{db: database}
}

// WithTx returns a copy bound to the given transaction handle.
func (r *LikeRepository) WithTx(tx *gorm.DB) *LikeRepository {
	return &LikeRepository{db: tx}
}

// Exists reports whether actor has a like row for target (any status).
func (r *LikeRepository) Exists(ctx context.Context, userID, likedUserID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.UserLike{}).
		Where("user_id = ? AND liked_user_id = ?", userID, likedUserID).
		Count(&count).Error
	return count > 0, err
}

// Create inserts a new pending like. The unique index on
// (user_id, liked_user_id) is the last-line backstop against duplicates.
func (r *LikeRepository) Create(ctx context.Context, userID, likedUserID uint64, at time.Time) error {
	like := db.UserLike{
		UserID:      userID,
		LikedUserID: likedUserID,
		Status:      db.LikeStatusPending,
		LikedAt:     at,
	}
	return r.db.WithContext(ctx).Create(&like).Error
}

// MarkPairMatched transitions both directions of a mutual like to matched.
// The transition is one-way; rows never revert to pending.
func (r *LikeRepository) MarkPairMatched(ctx context.Context, aID, bID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.UserLike{}).
		Where("(user_id = ? AND liked_user_id = ?) OR (user_id = ? AND liked_user_id = ?)",
			aID, bID, bID, aID).
		Update("status", db.LikeStatusMatched).Error
}

// GetAdmirers returns users who liked the recipient and have not been
// matched yet, newest first.
//
// Behavior:
//   - Only rows where liked_user_id = X and status = pending are returned.
//   - Ordered by liked_at DESC, user_id DESC.
//   - Supports cursor-based pagination via paginationToken.
func (r *LikeRepository) GetAdmirers(
	ctx context.Context,
	recipientID uint64,
	paginationToken *string,
	limit int,
) ([]db.UserLike, *string, error) {
	var likes []db.UserLike

	// decode cursor if provided
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Model(&db.UserLike{}).
		Where("liked_user_id = ? AND status = ?", recipientID, db.LikeStatusPending).
		Order("liked_at DESC, user_id DESC").
		Limit(limit + 1)

	// apply cursor
	if cursor.LikerID > 0 && cursor.LikedUnix > 0 {
		ts := time.UnixMilli(cursor.LikedUnix)
		query = query.Where(
			"(liked_at < ? OR (liked_at = ? AND user_id < ?))",
			ts, ts, cursor.LikerID,
		)
	}

	if err := query.Find(&likes).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(likes) > limit {
		last := likes[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			LikerID:   last.UserID,
			LikedUnix: last.LikedAt.UnixMilli(),
		})
		nextToken = &token
		likes = likes[:limit]
	}

	return likes, nextToken, nil
}

// CountAdmirers returns how many pending likes the recipient has.
// Used in conjunction with the Redis cache (DB is fallback).
func (r *LikeRepository) CountAdmirers(ctx context.Context, recipientID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.UserLike{}).
		Where("liked_user_id = ? AND status = ?", recipientID, db.LikeStatusPending).
		Count(&count).Error
	return count, err
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
