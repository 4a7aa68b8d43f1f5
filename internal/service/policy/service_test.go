package policy_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/amoria/matchcore/internal/app"
	"github.com/amoria/matchcore/internal/cache"
	"github.com/amoria/matchcore/internal/config"
	"github.com/amoria/matchcore/internal/db"
	"github.com/amoria/matchcore/internal/notify"
	"github.com/amoria/matchcore/internal/service/policy"
	"github.com/amoria/matchcore/internal/tier"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

const today = "2025-03-15"

// setupService spins up an in-memory SQLite DB, applies migrations, starts a
// miniredis, and wires everything into a policy Service with a fixed clock.
//
// Each test gets its own isolated DB + Redis.
func setupService(t *testing.T) (*policy.Service, *gorm.DB, *miniredis.Miniredis) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(&db.User{}, &db.Profile{}, &db.UserLike{}, &db.UserMatch{}, &db.DailyActivityCounter{}))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // discard logs in tests
	appCtx := app.New(gdb, cache.NewRedisCache(cfg), logger, notify.NewLogDispatcher(logger))

	svc := policy.NewService(appCtx, policy.WithClock(func() time.Time { return testNow }))
	return svc, gdb, mr
}

func seedUser(t *testing.T, gdb *gorm.DB, id uint64, plan, subStatus string, expires *time.Time) *db.User {
	t.Helper()
	u := db.User{
		ID:                    id,
		Name:                  fmt.Sprintf("user%d", id),
		Email:                 fmt.Sprintf("u%d@test.com", id),
		PasswordHash:          "x",
		Gender:                "male",
		Active:                true,
		SubscriptionPlan:      plan,
		SubscriptionStatus:    subStatus,
		SubscriptionExpiresAt: expires,
	}
	require.NoError(t, gdb.Create(&u).Error)
	return &u
}

func setCounter(t *testing.T, gdb *gorm.DB, userID uint64, activity string, count int64) {
	t.Helper()
	row := db.DailyActivityCounter{
		UserID:       userID,
		ActivityType: activity,
		ActivityDate: today,
		Count:        count,
	}
	require.NoError(t, gdb.Create(&row).Error)
}

func timePtr(tm time.Time) *time.Time { return &tm }

func TestTierForActiveSubscription(t *testing.T) {
	svc, gdb, _ := setupService(t)

	gold := seedUser(t, gdb, 1, db.PlanGold, db.SubStatusActive, timePtr(testNow.Add(30*24*time.Hour)))
	assert.Equal(t, tier.Gold, svc.TierFor(gold))

	// no expiry on record still counts as active
	platinum := seedUser(t, gdb, 2, db.PlanPlatinum, db.SubStatusActive, nil)
	assert.Equal(t, tier.Platinum, svc.TierFor(platinum))
}

// A stale plan never outranks the subscription status or expiry: anything
// not active-and-unexpired is free.
func TestTierForInactiveOrExpired(t *testing.T) {
	svc, gdb, _ := setupService(t)

	expired := seedUser(t, gdb, 1, db.PlanPlatinum, db.SubStatusExpired, nil)
	assert.Equal(t, tier.Free, svc.TierFor(expired))

	none := seedUser(t, gdb, 2, db.PlanGold, db.SubStatusNone, nil)
	assert.Equal(t, tier.Free, svc.TierFor(none))

	stale := seedUser(t, gdb, 3, db.PlanGold, db.SubStatusActive, timePtr(testNow.Add(-time.Hour)))
	assert.Equal(t, tier.Free, svc.TierFor(stale))

	assert.Equal(t, tier.Free, svc.TierFor(nil))
}

// Reading a stale active subscription triggers a deferred correction to
// expired; the read itself never waits on it.
func TestTierForDeferredExpiryCorrection(t *testing.T) {
	svc, gdb, _ := setupService(t)

	stale := seedUser(t, gdb, 1, db.PlanGold, db.SubStatusActive, timePtr(testNow.Add(-time.Hour)))
	assert.Equal(t, tier.Free, svc.TierFor(stale))

	require.Eventually(t, func() bool {
		var u db.User
		if err := gdb.First(&u, 1).Error; err != nil {
			return false
		}
		return u.SubscriptionStatus == db.SubStatusExpired
	}, 2*time.Second, 25*time.Millisecond, "status should converge to expired")
}

func TestGetTierUnknownUser(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.GetTier(context.Background(), 404)
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestCanViewProfileQuota(t *testing.T) {
	ctx := context.Background()
	svc, gdb, _ := setupService(t)

	free := seedUser(t, gdb, 1, db.PlanNone, db.SubStatusNone, nil)

	dec := svc.CanViewProfile(ctx, free)
	assert.True(t, dec.Allowed)
	assert.Equal(t, int64(0), dec.Used)
	assert.Equal(t, 10, dec.Limit)
	assert.Equal(t, int64(10), dec.Remaining)

	// a user already at the limit is denied, and the check spends nothing
	exhausted := seedUser(t, gdb, 2, db.PlanNone, db.SubStatusNone, nil)
	setCounter(t, gdb, 2, string(tier.ActivityProfileViews), 10)
	dec = svc.CanViewProfile(ctx, exhausted)
	assert.False(t, dec.Allowed)
	assert.Equal(t, int64(10), dec.Used)
	assert.Equal(t, int64(0), dec.Remaining)
}

// An unlimited tier admits no matter how large the counter already is.
func TestCanViewProfileUnlimited(t *testing.T) {
	ctx := context.Background()
	svc, gdb, _ := setupService(t)

	platinum := seedUser(t, gdb, 1, db.PlanPlatinum, db.SubStatusActive, timePtr(testNow.Add(time.Hour)))
	setCounter(t, gdb, 1, string(tier.ActivityProfileViews), 99999)

	dec := svc.CanViewProfile(ctx, platinum)
	assert.True(t, dec.Allowed)
	assert.Equal(t, tier.Unlimited, dec.Limit)
}

// When the durable ledger cannot be read, capped quotas deny rather than
// hand out unmetered actions. Unlimited tiers have nothing to meter and
// stay admitted.
func TestQuotaFailsClosedOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	svc, gdb, _ := setupService(t)

	basic := seedUser(t, gdb, 1, db.PlanBasic, db.SubStatusActive, timePtr(testNow.Add(time.Hour)))
	platinum := seedUser(t, gdb, 2, db.PlanPlatinum, db.SubStatusActive, timePtr(testNow.Add(time.Hour)))

	require.NoError(t, gdb.Migrator().DropTable(&db.DailyActivityCounter{}))

	dec := svc.CanViewProfile(ctx, basic)
	assert.False(t, dec.Allowed)
	assert.Equal(t, 50, dec.Limit)

	msg := svc.CanSendMessage(ctx, basic)
	assert.False(t, msg.Allowed)
	assert.Equal(t, policy.ReasonDailyLimit, msg.Reason)

	dec = svc.CanViewProfile(ctx, platinum)
	assert.True(t, dec.Allowed)
	assert.Equal(t, tier.Unlimited, dec.Limit)
}

// A dead cache is just a miss: quota reads answer from the durable store
// and spending still goes through.
func TestQuotaReadsSurviveCacheOutage(t *testing.T) {
	ctx := context.Background()
	svc, gdb, mr := setupService(t)

	basic := seedUser(t, gdb, 1, db.PlanBasic, db.SubStatusActive, timePtr(testNow.Add(time.Hour)))
	setCounter(t, gdb, 1, string(tier.ActivityProfileViews), 3)

	mr.Close()

	dec := svc.CanViewProfile(ctx, basic)
	assert.True(t, dec.Allowed)
	assert.Equal(t, int64(3), dec.Used)
	assert.Equal(t, int64(47), dec.Remaining)

	dec, err := svc.RecordProfileView(ctx, basic)
	require.NoError(t, err)
	assert.Equal(t, int64(4), dec.Used)
}

func TestRecordProfileView(t *testing.T) {
	ctx := context.Background()
	svc, gdb, _ := setupService(t)

	basic := seedUser(t, gdb, 1, db.PlanBasic, db.SubStatusActive, timePtr(testNow.Add(time.Hour)))

	dec, err := svc.RecordProfileView(ctx, basic)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, int64(1), dec.Used)
	assert.Equal(t, int64(49), dec.Remaining)

	dec, err = svc.RecordProfileView(ctx, basic)
	require.NoError(t, err)
	assert.Equal(t, int64(2), dec.Used)
	assert.Equal(t, int64(48), dec.Remaining)

	// a denied record does not touch the counter
	setCounter(t, gdb, 2, string(tier.ActivityProfileViews), 10)
	free := seedUser(t, gdb, 2, db.PlanNone, db.SubStatusNone, nil)
	dec, err = svc.RecordProfileView(ctx, free)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)

	var row db.DailyActivityCounter
	require.NoError(t, gdb.Where("user_id = ? AND activity_type = ?", 2, "profile_views").First(&row).Error)
	assert.Equal(t, int64(10), row.Count)
}

// Free tier cannot message at all, regardless of usage.
func TestCanSendMessageFreeTier(t *testing.T) {
	ctx := context.Background()
	svc, gdb, _ := setupService(t)

	free := seedUser(t, gdb, 1, db.PlanNone, db.SubStatusNone, nil)

	dec := svc.CanSendMessage(ctx, free)
	assert.False(t, dec.Allowed)
	assert.Equal(t, policy.ReasonFreeTier, dec.Reason)
}

// A same-day tier upgrade keeps the day's spent count: the new limit applies
// against what was already used.
func TestMessageQuotaCarriesOverUpgrade(t *testing.T) {
	ctx := context.Background()
	svc, gdb, _ := setupService(t)

	basic := seedUser(t, gdb, 1, db.PlanBasic, db.SubStatusActive, timePtr(testNow.Add(time.Hour)))
	setCounter(t, gdb, 1, string(tier.ActivityMessagesSent), 30)

	dec := svc.CanSendMessage(ctx, basic)
	assert.False(t, dec.Allowed)
	assert.Equal(t, policy.ReasonDailyLimit, dec.Reason)
	assert.Equal(t, int64(0), dec.Remaining)

	// upgrade to gold: limit 100, 30 already used today
	require.NoError(t, gdb.Model(&db.User{}).Where("id = ?", 1).
		Update("subscription_plan", db.PlanGold).Error)
	var upgraded db.User
	require.NoError(t, gdb.First(&upgraded, 1).Error)

	dec = svc.CanSendMessage(ctx, &upgraded)
	assert.True(t, dec.Allowed)
	assert.Equal(t, int64(30), dec.Used)
	assert.Equal(t, int64(70), dec.Remaining)
}

func TestRecordActivity(t *testing.T) {
	ctx := context.Background()
	svc, gdb, _ := setupService(t)
	seedUser(t, gdb, 1, db.PlanBasic, db.SubStatusActive, timePtr(testNow.Add(time.Hour)))

	// two sequential increments land on count+2
	count, err := svc.RecordActivity(ctx, 1, tier.ActivityLikesSent)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = svc.RecordActivity(ctx, 1, tier.ActivityLikesSent)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// unknown types are rejected before any state change
	_, err = svc.RecordActivity(ctx, 1, tier.Activity("password_resets"))
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCheckFreeUserInteraction(t *testing.T) {
	ctx := context.Background()
	svc, gdb, _ := setupService(t)

	freeA := seedUser(t, gdb, 1, db.PlanNone, db.SubStatusNone, nil)
	freeB := seedUser(t, gdb, 2, db.PlanNone, db.SubStatusNone, nil)
	gold := seedUser(t, gdb, 3, db.PlanGold, db.SubStatusActive, timePtr(testNow.Add(time.Hour)))

	// free -> free is always blocked, even for matched pairs
	match := db.UserMatch{Ref: "m-1-2", UserAID: 1, UserBID: 2, Status: db.MatchStatusActive, MatchedAt: testNow}
	require.NoError(t, gdb.Create(&match).Error)
	dec := svc.CheckFreeUserInteraction(ctx, freeA, freeB)
	assert.True(t, dec.RequiresUpgrade)
	assert.Equal(t, policy.ReasonFreeToFree, dec.Reason)

	// free -> paid is blocked unless matched
	dec = svc.CheckFreeUserInteraction(ctx, freeA, gold)
	assert.True(t, dec.RequiresUpgrade)
	assert.Equal(t, policy.ReasonNeedsUpgrade, dec.Reason)

	match = db.UserMatch{Ref: "m-1-3", UserAID: 1, UserBID: 3, Status: db.MatchStatusActive, MatchedAt: testNow}
	require.NoError(t, gdb.Create(&match).Error)
	dec = svc.CheckFreeUserInteraction(ctx, freeA, gold)
	assert.False(t, dec.RequiresUpgrade)

	// paid senders are never gated here
	dec = svc.CheckFreeUserInteraction(ctx, gold, freeA)
	assert.False(t, dec.RequiresUpgrade)
}

func TestDailyUsageSummary(t *testing.T) {
	ctx := context.Background()
	svc, gdb, _ := setupService(t)

	basic := seedUser(t, gdb, 1, db.PlanBasic, db.SubStatusActive, timePtr(testNow.Add(time.Hour)))
	setCounter(t, gdb, 1, string(tier.ActivityProfileViews), 12)
	setCounter(t, gdb, 1, string(tier.ActivityMessagesSent), 5)

	summary, err := svc.DailyUsageSummary(ctx, basic)
	require.NoError(t, err)
	assert.Equal(t, "basic", summary.Tier)

	byActivity := map[string]policy.UsageItem{}
	for _, item := range summary.Items {
		byActivity[item.Activity] = item
	}

	views := byActivity[string(tier.ActivityProfileViews)]
	assert.Equal(t, int64(12), views.Used)
	assert.Equal(t, 50, views.Limit)
	assert.Equal(t, int64(38), views.Remaining)

	msgs := byActivity[string(tier.ActivityMessagesSent)]
	assert.Equal(t, int64(5), msgs.Used)
	assert.Equal(t, 30, msgs.Limit)

	likes := byActivity[string(tier.ActivityLikesSent)]
	assert.Equal(t, tier.Unlimited, likes.Limit)
}
