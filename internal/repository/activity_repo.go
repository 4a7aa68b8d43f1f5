package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amoria/matchcore/internal/db"
)

// ActivityRepository is the durable side of the daily quota ledger.
// All mutation goes through Increment; rows are never decremented or deleted
// here (cleanup of old days is an external concern).
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(database *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: database}
}

// Increment atomically bumps the counter for (userID, activityType, date),
// creating the row on the first increment of the day, and returns the
// current count.
//
// The increment happens in the store (`count = count + 1` on conflict), never
// as read-modify-write in the caller, so concurrent requests cannot lose
// updates. The follow-up read may observe later increments; callers only
// rely on it being >= the value this increment produced.
func (r *ActivityRepository) Increment(
	ctx context.Context,
	userID uint64,
	activityType, date string,
) (int64, error) {
	row := db.DailyActivityCounter{
		UserID:       userID,
		ActivityType: activityType,
		ActivityDate: date,
		Count:        1,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"}, {Name: "activity_type"}, {Name: "activity_date"},
			},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count": gorm.Expr("count + 1"),
			}),
		}).
		Create(&row).Error
	if err != nil {
		return 0, err
	}

	return r.GetCount(ctx, userID, activityType, date)
}

// GetCount returns today's durable count for (userID, activityType, date).
// A missing row is zero.
func (r *ActivityRepository) GetCount(
	ctx context.Context,
	userID uint64,
	activityType, date string,
) (int64, error) {
	var row db.DailyActivityCounter
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND activity_type = ? AND activity_date = ?", userID, activityType, date).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return row.Count, nil
}

// GetCounts returns the counts for several activity types at once, for usage
// summaries. Types without a row map to zero.
func (r *ActivityRepository) GetCounts(
	ctx context.Context,
	userID uint64,
	date string,
	activityTypes []string,
) (map[string]int64, error) {
	var rows []db.DailyActivityCounter
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND activity_date = ? AND activity_type IN ?", userID, date, activityTypes).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(activityTypes))
	for _, at := range activityTypes {
		counts[at] = 0
	}
	for _, row := range rows {
		counts[row.ActivityType] = row.Count
	}
	return counts, nil
}
