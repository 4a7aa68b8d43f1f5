package matching

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/amoria/matchcore/internal/cache"
	"github.com/amoria/matchcore/internal/db"
	svcErr "github.com/amoria/matchcore/internal/errors"
	"github.com/amoria/matchcore/internal/notify"
	"github.com/amoria/matchcore/internal/repository"
	"github.com/amoria/matchcore/internal/tier"
)

// LikeResult is returned to the caller after a successful like.
type LikeResult struct {
	Success      bool
	MatchCreated bool
	CanMessage   bool
}

// Like records actor's like on target and, when target already liked actor,
// creates the match — all inside one transaction over row locks taken in
// fixed order (lower user ID first) so two opposite-direction likes on the
// same pair cannot deadlock and produce exactly one match.
//
// Notification dispatch and the per-minute like counter happen only after a
// successful commit and never fail the operation.
func (s *Service) Like(ctx context.Context, actorID, targetID uint64) (*LikeResult, error) {
	log := s.appCtx.Logger
	log.Debug("Like called", "actor", actorID, "target", targetID)

	if actorID == 0 || targetID == 0 {
		return nil, svcErr.InvalidArgument("user ids must be positive")
	}
	if actorID == targetID {
		return nil, svcErr.Map(svcErr.ErrSelfAction)
	}

	actor, err := s.users.FindUser(ctx, actorID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	// admission: remaining view quota is checked here, not spent
	if dec := s.policy.CanViewProfile(ctx, actor); !dec.Allowed {
		return nil, svcErr.Map(svcErr.ErrViewLimitReached)
	}

	// per-minute brake; read-only here, spent only after success
	likeKey := cache.KeyForMinuteWindow("likes", actorID, s.now())
	if n, werr := s.appCtx.RedisCache.WindowCount(ctx, likeKey); werr != nil {
		// best-effort window, the daily ledger still gates spending
		log.Warn("like window read failed", "actor", actorID, "err", werr)
	} else if n >= maxLikesPerMinute {
		return nil, svcErr.Map(svcErr.ErrRateLimited)
	}

	var (
		matchCreated bool
		match        *db.UserMatch
	)
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		likes := s.likes.WithTx(tx)
		matches := s.matches.WithTx(tx)

		// lock both user rows, lower ID first
		firstID, secondID := repository.CanonicalPair(actorID, targetID)
		for _, id := range []uint64{firstID, secondID} {
			if _, lerr := users.LockForUpdate(ctx, id); lerr != nil {
				if errors.Is(lerr, gorm.ErrRecordNotFound) {
					return svcErr.ErrTargetNotFound
				}
				return lerr
			}
		}

		// re-check conflicts inside the critical section
		liked, lerr := likes.Exists(ctx, actorID, targetID)
		if lerr != nil {
			return lerr
		}
		if liked {
			return svcErr.ErrAlreadyLiked
		}
		matched, lerr := matches.ExistsActive(ctx, actorID, targetID)
		if lerr != nil {
			return lerr
		}
		if matched {
			return svcErr.ErrAlreadyMatched
		}

		if lerr := likes.Create(ctx, actorID, targetID, s.now()); lerr != nil {
			return lerr
		}

		// mutual like -> match, both rows transition to matched
		reciprocal, lerr := likes.Exists(ctx, targetID, actorID)
		if lerr != nil {
			return lerr
		}
		if reciprocal {
			match, lerr = matches.Create(ctx, actorID, targetID, s.now())
			if lerr != nil {
				return lerr
			}
			if lerr := likes.MarkPairMatched(ctx, actorID, targetID); lerr != nil {
				return lerr
			}
			matchCreated = true
		}
		return nil
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}

	s.afterLikeCommit(ctx, actorID, targetID, matchCreated, match, likeKey)

	canMessage := s.policy.CanSendMessage(ctx, actor).Allowed
	return &LikeResult{Success: true, MatchCreated: matchCreated, CanMessage: canMessage}, nil
}

// afterLikeCommit runs the post-commit side effects: notifications, the
// per-minute window spend, and best-effort daily activity bookkeeping.
func (s *Service) afterLikeCommit(
	ctx context.Context,
	actorID, targetID uint64,
	matchCreated bool,
	match *db.UserMatch,
	likeKey string,
) {
	log := s.appCtx.Logger

	if matchCreated {
		payload := map[string]any{"match_ref": match.Ref}
		if err := s.appCtx.Notifier.Notify(ctx, actorID, notify.EventMatchCreated, payload); err != nil {
			log.Warn("match notification failed", "user_id", actorID, "err", err)
		}
		if err := s.appCtx.Notifier.Notify(ctx, targetID, notify.EventMatchCreated, payload); err != nil {
			log.Warn("match notification failed", "user_id", targetID, "err", err)
		}
		if _, err := s.policy.RecordActivity(ctx, actorID, tier.ActivityMatchesCreated); err != nil {
			log.Warn("match activity record failed", "user_id", actorID, "err", err)
		}
	} else {
		payload := map[string]any{"from": actorID}
		if err := s.appCtx.Notifier.Notify(ctx, targetID, notify.EventLikeReceived, payload); err != nil {
			log.Warn("like notification failed", "user_id", targetID, "err", err)
		}
	}

	// drop stale admirer counts for both sides
	_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForAdmirerCount(targetID))
	_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForAdmirerCount(actorID))

	if _, err := s.appCtx.RedisCache.IncrWindow(ctx, likeKey, 2*time.Minute); err != nil {
		log.Warn("like window increment failed", "actor", actorID, "err", err)
	}
	if _, err := s.policy.RecordActivity(ctx, actorID, tier.ActivityLikesSent); err != nil {
		log.Warn("like activity record failed", "actor", actorID, "err", err)
	}
}
