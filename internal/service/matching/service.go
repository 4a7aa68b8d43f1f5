package matching

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amoria/matchcore/internal/app"
	"github.com/amoria/matchcore/internal/cache"
	"github.com/amoria/matchcore/internal/db"
	svcErr "github.com/amoria/matchcore/internal/errors"
	"github.com/amoria/matchcore/internal/repository"
	"github.com/amoria/matchcore/internal/service/policy"
	"github.com/amoria/matchcore/internal/tier"
)

const (
	// DefaultLimit is the page size when the caller does not pass one.
	DefaultLimit = 20

	maxLikesPerMinute   = 5
	maxBrowsesPerMinute = 10

	// over-fetch factor: gives the scorer a pool to rank and truncate from
	overFetch = 2
)

// Service is the matching facade: candidate retrieval, compatibility
// ranking, like/match coordination and admirer listings, all behind the
// tier policy engine's admission checks.
type Service struct {
	appCtx  *app.AppContext
	policy  *policy.Service
	users   *repository.UserRepository
	likes   *repository.LikeRepository
	matches *repository.MatchRepository
	now     func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPolicy injects a shared tier policy engine instead of constructing one.
func WithPolicy(p *policy.Service) Option {
	return func(s *Service) { s.policy = p }
}

// NewService creates a matching service with dependencies from AppContext.
func NewService(appCtx *app.AppContext, opts ...Option) *Service {
	s := &Service{
		appCtx:  appCtx,
		users:   repository.NewUserRepository(appCtx.DB),
		likes:   repository.NewLikeRepository(appCtx.DB),
		matches: repository.NewMatchRepository(appCtx.DB),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy == nil {
		s.policy = policy.NewService(appCtx)
	}
	return s
}

// TierInfo describes the caller's entitlements alongside a result page.
type TierInfo struct {
	Tier           string
	ViewsUsed      int64
	ViewsLimit     int
	ViewsRemaining int64
	ContactDetails bool
	EliteAccess    bool
}

// MatchEntry is one ranked candidate, formatted for output. Contact fields
// are empty unless the viewer's tier unlocks them.
type MatchEntry struct {
	UserID    uint64
	Name      string
	Age       int
	City      string
	Country   string
	PhotoURL  string
	Score     float64
	Breakdown Breakdown

	Phone    string
	Email    string
	WhatsApp string
}

// MatchList is a page of ranked candidates.
type MatchList struct {
	Matches        []MatchEntry
	TotalPotential int64
	CanMessage     bool
	TierInfo       TierInfo
}

// GetMatches returns the top compatibility-ranked candidates for a user.
//
// Pipeline: browse rate limit -> view quota gate -> tier-gated candidate
// fetch -> score -> sort descending -> truncate -> format. One profile view
// is spent per successful call.
func (s *Service) GetMatches(ctx context.Context, userID uint64, f Filters, limit int) (*MatchList, error) {
	s.appCtx.Logger.Debug("GetMatches called", "user_id", userID, "limit", limit)

	if limit <= 0 {
		limit = DefaultLimit
	}

	user, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	if err := s.browseAdmission(ctx, user); err != nil {
		return nil, err
	}

	return s.buildMatchList(ctx, user, f, "", limit)
}

// SearchByName runs the same pipeline as GetMatches with a name filter, and
// re-ranks primarily by name-match strength (prefix > substring) with the
// compatibility score as a 0.1-weighted tiebreaker.
func (s *Service) SearchByName(ctx context.Context, userID uint64, term string, f Filters, limit int) (*MatchList, error) {
	s.appCtx.Logger.Debug("SearchByName called", "user_id", userID, "term", term)

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, svcErr.InvalidArgument("search term must not be empty")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	user, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	if err := s.browseAdmission(ctx, user); err != nil {
		return nil, err
	}

	return s.buildMatchList(ctx, user, f, term, limit)
}

// browseAdmission applies the per-minute browse window and the daily view
// quota gate. The window is best-effort; the quota is authoritative.
func (s *Service) browseAdmission(ctx context.Context, user *db.User) error {
	key := cache.KeyForMinuteWindow("browse", user.ID, s.now())
	if n, err := s.appCtx.RedisCache.IncrWindow(ctx, key, 2*time.Minute); err != nil {
		s.appCtx.Logger.Warn("browse window unavailable", "user_id", user.ID, "err", err)
	} else if n > maxBrowsesPerMinute {
		return svcErr.Map(svcErr.ErrRateLimited)
	}

	if dec := s.policy.CanViewProfile(ctx, user); !dec.Allowed {
		return svcErr.Map(svcErr.ErrViewLimitReached)
	}
	return nil
}

type scoredCandidate struct {
	user      db.User
	score     float64
	breakdown Breakdown
	nameRank  int
}

func (s *Service) buildMatchList(ctx context.Context, user *db.User, f Filters, nameTerm string, limit int) (*MatchList, error) {
	now := s.now()
	t := s.policy.TierFor(user)
	limits := tier.LimitsFor(t)

	cf := gateFilters(t, f)
	cf.NameTerm = nameTerm

	candidates, err := s.users.FindCandidates(ctx, user, cf, limit*overFetch, now)
	if err != nil {
		s.appCtx.Logger.Error("candidate query failed", "user_id", user.ID, "err", err)
		return nil, svcErr.Map(err)
	}
	total, err := s.users.CountCandidates(ctx, user, cf, now)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	scored := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		sc, breakdown := Score(user.Profile, c.Profile, now)
		scored = append(scored, scoredCandidate{
			user:      c,
			score:     sc,
			breakdown: breakdown,
			nameRank:  nameRank(c.Name, nameTerm),
		})
	}

	if nameTerm != "" {
		sort.SliceStable(scored, func(i, j int) bool {
			if scored[i].nameRank != scored[j].nameRank {
				return scored[i].nameRank > scored[j].nameRank
			}
			return 0.1*scored[i].score > 0.1*scored[j].score
		})
	} else {
		sort.SliceStable(scored, func(i, j int) bool {
			if scored[i].score != scored[j].score {
				return scored[i].score > scored[j].score
			}
			return scored[i].user.ID < scored[j].user.ID
		})
	}

	if len(scored) > limit {
		scored = scored[:limit]
	}

	list := &MatchList{
		TotalPotential: total,
		CanMessage:     s.policy.CanSendMessage(ctx, user).Allowed,
	}
	for _, sc := range scored {
		list.Matches = append(list.Matches, s.formatEntry(sc, limits, now))
	}

	// spend the profile view this page represents
	dec, err := s.policy.RecordProfileView(ctx, user)
	if err != nil {
		s.appCtx.Logger.Warn("profile view record failed", "user_id", user.ID, "err", err)
		dec = s.policy.CanViewProfile(ctx, user)
	}
	list.TierInfo = TierInfo{
		Tier:           t.String(),
		ViewsUsed:      dec.Used,
		ViewsLimit:     dec.Limit,
		ViewsRemaining: dec.Remaining,
		ContactDetails: limits.CanAccessContactDetails,
		EliteAccess:    limits.HasEliteAccess,
	}
	return list, nil
}

// formatEntry shapes a scored candidate for output, masking contact fields
// when the viewer's tier lacks contact access.
func (s *Service) formatEntry(sc scoredCandidate, limits tier.Limits, now time.Time) MatchEntry {
	entry := MatchEntry{
		UserID:    sc.user.ID,
		Name:      sc.user.Name,
		Score:     sc.score,
		Breakdown: sc.breakdown,
	}
	if p := sc.user.Profile; p != nil {
		if p.DobYear > 0 {
			entry.Age = now.Year() - p.DobYear
		}
		entry.City = p.City
		entry.Country = p.Country
		entry.PhotoURL = p.PrimaryPhotoURL
		if limits.CanAccessContactDetails {
			entry.Phone = p.Phone
			entry.WhatsApp = p.WhatsApp
			entry.Email = sc.user.Email
		}
	}
	return entry
}

// nameRank grades how well a name matches the search term:
// prefix match 2, substring match 1, none 0.
func nameRank(name, term string) int {
	if term == "" {
		return 0
	}
	ln, lt := strings.ToLower(name), strings.ToLower(term)
	switch {
	case strings.HasPrefix(ln, lt):
		return 2
	case strings.Contains(ln, lt):
		return 1
	default:
		return 0
	}
}

// Admirer is one user who liked the recipient and has not been matched yet.
type Admirer struct {
	UserID  uint64
	LikedAt int64 // unix millis
}

// AdmirerList is a cursor-paginated page of admirers.
type AdmirerList struct {
	Admirers  []Admirer
	NextToken *string
}

// ListAdmirers returns who liked the given user, newest first, with cursor
// pagination. Free tier cannot browse admirers and gets an upgrade error.
func (s *Service) ListAdmirers(ctx context.Context, userID uint64, paginationToken *string, limit int) (*AdmirerList, error) {
	s.appCtx.Logger.Debug("ListAdmirers called", "user_id", userID)

	if limit <= 0 {
		limit = DefaultLimit
	}

	user, err := s.users.FindUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if s.policy.TierFor(user) == tier.Free {
		return nil, svcErr.Map(svcErr.ErrUpgradeRequired)
	}

	likes, nextToken, err := s.likes.GetAdmirers(ctx, userID, paginationToken, limit)
	if err != nil {
		if strings.Contains(err.Error(), "pagination token") {
			return nil, svcErr.InvalidArgument(err.Error())
		}
		return nil, svcErr.Map(err)
	}

	list := &AdmirerList{NextToken: nextToken}
	for _, l := range likes {
		list.Admirers = append(list.Admirers, Admirer{
			UserID:  l.UserID,
			LikedAt: l.LikedAt.UnixMilli(),
		})
	}
	return list, nil
}

// CountAdmirers returns how many pending likes the user has.
// Cache-first strategy:
//  1. Attempts to read from Redis (admirers:count:userID).
//  2. On cache miss or parse error, falls back to the DB count.
//  3. On DB fetch, updates Redis with a 1h TTL.
func (s *Service) CountAdmirers(ctx context.Context, userID uint64) (int64, error) {
	key := s.appCtx.RedisCache.KeyForAdmirerCount(userID)

	// try cache first
	if cached, _ := s.appCtx.RedisCache.Get(ctx, key); cached != "" {
		if n, err := strconv.ParseInt(cached, 10, 64); err == nil {
			// refresh TTL since this user is active
			_ = s.appCtx.RedisCache.Client.Expire(ctx, key, time.Hour).Err()
			return n, nil
		}
	}

	// fallback: DB
	count, err := s.likes.CountAdmirers(ctx, userID)
	if err != nil {
		return 0, svcErr.Map(err)
	}

	// set + TTL refresh
	_ = s.appCtx.RedisCache.Set(ctx, key, strconv.FormatInt(count, 10), time.Hour)

	return count, nil
}
