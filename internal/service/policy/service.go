package policy

import (
	"context"
	"time"

	"github.com/amoria/matchcore/internal/app"
	"github.com/amoria/matchcore/internal/db"
	svcErr "github.com/amoria/matchcore/internal/errors"
	"github.com/amoria/matchcore/internal/repository"
	"github.com/amoria/matchcore/internal/tier"
)

// Denial reasons surfaced in policy decisions.
const (
	ReasonFreeTier     = "free_tier_restriction"
	ReasonDailyLimit   = "daily_limit_reached"
	ReasonFreeToFree   = "free_to_free_restriction"
	ReasonNeedsUpgrade = "upgrade_required"
)

// Service is the tier policy engine: it derives a user's tier from their
// subscription state and answers admission questions against the daily
// quota ledger.
//
// Quota reads go cache-first with the durable store as the source of truth;
// a failing durable read denies the action (fail closed), while the tier
// derivation itself never fails.
type Service struct {
	appCtx   *app.AppContext
	users    *repository.UserRepository
	activity *repository.ActivityRepository
	matches  *repository.MatchRepository
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a tier policy engine with dependencies from AppContext.
func NewService(appCtx *app.AppContext, opts ...Option) *Service {
	s := &Service{
		appCtx:   appCtx,
		users:    repository.NewUserRepository(appCtx.DB),
		activity: repository.NewActivityRepository(appCtx.DB),
		matches:  repository.NewMatchRepository(appCtx.DB),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TierFor derives the current tier from the user's subscription fields.
// A user whose subscription is not active, or whose expiry has passed, is
// always free regardless of the stored plan.
//
// When a stored "active" status turns out to be past its expiry, a deferred
// best-effort correction flips it to "expired"; the read never waits on it.
func (s *Service) TierFor(u *db.User) tier.Tier {
	if u == nil {
		return tier.Free
	}
	if u.SubscriptionStatus != db.SubStatusActive {
		return tier.Free
	}
	if u.SubscriptionExpiresAt != nil && u.SubscriptionExpiresAt.Before(s.now()) {
		s.deferExpiryCorrection(u.ID)
		return tier.Free
	}
	return tier.FromPlan(u.SubscriptionPlan)
}

func (s *Service) deferExpiryCorrection(userID uint64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.users.MarkSubscriptionExpired(ctx, userID); err != nil {
			s.appCtx.Logger.Warn("subscription expiry correction failed",
				"user_id", userID, "err", err)
		}
	}()
}

// GetTier resolves a user by ID and derives their tier.
func (s *Service) GetTier(ctx context.Context, userID uint64) (tier.Tier, error) {
	u, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return tier.Free, svcErr.Map(err)
	}
	return s.TierFor(u), nil
}

// QuotaDecision is the outcome of a quota admission check.
type QuotaDecision struct {
	Allowed   bool
	Used      int64
	Limit     int
	Remaining int64
}

// MessageDecision is the outcome of a message admission check.
type MessageDecision struct {
	Allowed   bool
	Reason    string
	Used      int64
	Limit     int
	Remaining int64
}

// InteractionDecision reports whether messaging a recipient needs an upgrade.
type InteractionDecision struct {
	RequiresUpgrade bool
	Reason          string
}

// CanViewProfile checks today's profile-view quota without spending it.
func (s *Service) CanViewProfile(ctx context.Context, u *db.User) QuotaDecision {
	limits := tier.LimitsFor(s.TierFor(u))
	return s.quotaCheck(ctx, u.ID, tier.ActivityProfileViews, limits.DailyProfileViews)
}

// RecordProfileView checks the quota and, only if allowed, atomically spends
// one view, returning the updated decision.
func (s *Service) RecordProfileView(ctx context.Context, u *db.User) (QuotaDecision, error) {
	dec := s.CanViewProfile(ctx, u)
	if !dec.Allowed {
		return dec, nil
	}
	count, err := s.recordDurable(ctx, u.ID, tier.ActivityProfileViews)
	if err != nil {
		s.appCtx.Logger.Error("profile view increment failed", "user_id", u.ID, "err", err)
		return QuotaDecision{Limit: dec.Limit}, svcErr.Map(err)
	}
	return s.decisionFor(count, dec.Limit), nil
}

// CanSendMessage checks the message quota. Free tier is unconditionally
// denied; paid tiers follow the same quota pattern as profile views.
func (s *Service) CanSendMessage(ctx context.Context, u *db.User) MessageDecision {
	t := s.TierFor(u)
	if t == tier.Free {
		return MessageDecision{Allowed: false, Reason: ReasonFreeTier}
	}
	limits := tier.LimitsFor(t)
	dec := s.quotaCheck(ctx, u.ID, tier.ActivityMessagesSent, limits.DailyMessages)
	msg := MessageDecision{
		Allowed:   dec.Allowed,
		Used:      dec.Used,
		Limit:     dec.Limit,
		Remaining: dec.Remaining,
	}
	if !dec.Allowed {
		msg.Reason = ReasonDailyLimit
	}
	return msg
}

// RecordActivity atomically increments today's counter for the given
// activity. Unknown activity types are rejected before any state change.
func (s *Service) RecordActivity(ctx context.Context, userID uint64, activity tier.Activity) (int64, error) {
	if !activity.Valid() {
		return 0, svcErr.Map(svcErr.ErrInvalidActivity)
	}
	count, err := s.recordDurable(ctx, userID, activity)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	return count, nil
}

// CheckFreeUserInteraction gates messaging from free senders. Free→free is
// always blocked; free→paid is blocked unless the pair is already matched.
func (s *Service) CheckFreeUserInteraction(ctx context.Context, sender, recipient *db.User) InteractionDecision {
	if s.TierFor(sender) != tier.Free {
		return InteractionDecision{}
	}
	if s.TierFor(recipient) == tier.Free {
		return InteractionDecision{RequiresUpgrade: true, Reason: ReasonFreeToFree}
	}

	matched, err := s.matches.ExistsActive(ctx, sender.ID, recipient.ID)
	if err != nil {
		// fail closed: an unverifiable match does not unlock messaging
		s.appCtx.Logger.Warn("match lookup failed during interaction check",
			"sender", sender.ID, "recipient", recipient.ID, "err", err)
		return InteractionDecision{RequiresUpgrade: true, Reason: ReasonNeedsUpgrade}
	}
	if matched {
		return InteractionDecision{}
	}
	return InteractionDecision{RequiresUpgrade: true, Reason: ReasonNeedsUpgrade}
}

// UsageItem is one activity's usage vs. limit for display.
type UsageItem struct {
	Activity  string
	Used      int64
	Limit     int
	Remaining int64
}

// UsageSummary is the read-only view of today's counters for a user.
type UsageSummary struct {
	Tier  string
	Items []UsageItem
}

// DailyUsageSummary aggregates today's counters against the user's limits.
func (s *Service) DailyUsageSummary(ctx context.Context, u *db.User) (*UsageSummary, error) {
	t := s.TierFor(u)
	limits := tier.LimitsFor(t)

	names := make([]string, 0, len(tier.All()))
	for _, a := range tier.All() {
		names = append(names, string(a))
	}
	counts, err := s.activity.GetCounts(ctx, u.ID, s.today(), names)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	summary := &UsageSummary{Tier: t.String()}
	for _, a := range tier.All() {
		limit := tier.Unlimited
		switch a {
		case tier.ActivityProfileViews:
			limit = limits.DailyProfileViews
		case tier.ActivityMessagesSent:
			limit = limits.DailyMessages
		}
		used := counts[string(a)]
		remaining := int64(tier.Unlimited)
		if limit != tier.Unlimited {
			remaining = max(int64(limit)-used, 0)
		}
		summary.Items = append(summary.Items, UsageItem{
			Activity:  string(a),
			Used:      used,
			Limit:     limit,
			Remaining: remaining,
		})
	}
	return summary, nil
}

// --- internals ---

func (s *Service) today() string {
	return s.now().Format("2006-01-02")
}

// quotaCheck compares today's count to a limit. Unlimited always admits;
// a failed durable read denies (fail closed) and is logged, not raised.
func (s *Service) quotaCheck(ctx context.Context, userID uint64, activity tier.Activity, limit int) QuotaDecision {
	if limit == tier.Unlimited {
		used, _ := s.readCount(ctx, userID, activity)
		return QuotaDecision{Allowed: true, Used: used, Limit: tier.Unlimited, Remaining: tier.Unlimited}
	}

	used, err := s.readCount(ctx, userID, activity)
	if err != nil {
		s.appCtx.Logger.Warn("quota read failed, denying",
			"user_id", userID, "activity", string(activity), "err", err)
		return QuotaDecision{Allowed: false, Limit: limit}
	}
	return s.decisionFor(used, limit)
}

func (s *Service) decisionFor(used int64, limit int) QuotaDecision {
	if limit == tier.Unlimited {
		return QuotaDecision{Allowed: true, Used: used, Limit: tier.Unlimited, Remaining: tier.Unlimited}
	}
	return QuotaDecision{
		Allowed:   used < int64(limit),
		Used:      used,
		Limit:     limit,
		Remaining: max(int64(limit)-used, 0),
	}
}

// readCount is the cache-first counter read: Redis mirror on a hit, durable
// store on a miss, refreshing the mirror on the way out. Cache errors are
// treated as misses.
func (s *Service) readCount(ctx context.Context, userID uint64, activity tier.Activity) (int64, error) {
	key := s.appCtx.RedisCache.KeyForActivity(userID, string(activity), s.today())
	if n, ok := s.appCtx.RedisCache.GetActivityCount(ctx, key); ok {
		return n, nil
	}

	n, err := s.activity.GetCount(ctx, userID, string(activity), s.today())
	if err != nil {
		return 0, err
	}
	if err := s.appCtx.RedisCache.PutActivityCount(ctx, key, n); err != nil {
		s.appCtx.Logger.Debug("counter cache refresh failed", "key", key, "err", err)
	}
	return n, nil
}

// recordDurable increments at the store, then writes the fresh value through
// the cache. The cache is never the increment target.
func (s *Service) recordDurable(ctx context.Context, userID uint64, activity tier.Activity) (int64, error) {
	count, err := s.activity.Increment(ctx, userID, string(activity), s.today())
	if err != nil {
		return 0, err
	}
	key := s.appCtx.RedisCache.KeyForActivity(userID, string(activity), s.today())
	if err := s.appCtx.RedisCache.PutActivityCount(ctx, key, count); err != nil {
		s.appCtx.Logger.Debug("counter cache write-through failed", "key", key, "err", err)
	}
	return count, nil
}
