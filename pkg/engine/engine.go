// Package engine orchestrates the growth policies: unfollowing
// non-followers, pruning low-value mutuals, copying followers from target
// accounts, following or liking the likers of top tag posts, and allocating
// exploration budget across tags with the bandit selector. Every decision
// leaves a trace in the ledger.
package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"iggrowth/pkg/apierr"
	"iggrowth/pkg/bandit"
	"iggrowth/pkg/config"
	"iggrowth/pkg/instagram"
	"iggrowth/pkg/ledger"
	"iggrowth/pkg/logger"
	"iggrowth/pkg/metrics"
)

// Engine implements the growth policies for one account session. Like the
// client it drives, an Engine is confined to a single goroutine.
type Engine struct {
	api      APIClient
	ledger   *ledger.Ledger
	selector *bandit.Selector
	relay    ActionRelay
	filter   config.FilterConfig
	log      logger.Logger

	// statsSince floors the action history feeding the bandit; zero means no
	// floor
	statsSince time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithRelay routes mutating actions through the out-of-band bridge
func WithRelay(r ActionRelay) Option {
	return func(e *Engine) { e.relay = r }
}

// WithStatsSince floors the bandit's action history
func WithStatsSince(t time.Time) Option {
	return func(e *Engine) { e.statsSince = t }
}

// New creates an engine over an authenticated client and an open ledger
func New(api APIClient, lg *ledger.Ledger, selector *bandit.Selector, filter config.FilterConfig, log logger.Logger, opts ...Option) *Engine {
	if log == nil {
		log = logger.GetLogger()
	}
	e := &Engine{
		api:      api,
		ledger:   lg,
		selector: selector,
		filter:   filter,
		log:      log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) ourPK() int64 {
	return e.api.Account().PK
}

func (e *Engine) ourUsername() string {
	return e.api.Account().Username
}

// UnfollowUnfollowers unfollows accounts we follow that do not follow us
// back, up to limit, skipping only manually whitelisted pks. A pk whitelisted
// by the pruning scan is deliberately NOT exempt here.
func (e *Engine) UnfollowUnfollowers(limit int) error {
	followers, err := e.platformFollowerSet()
	if err != nil {
		return err
	}
	e.log.InfoWithFields("fetched followers", map[string]interface{}{"count": len(followers)})

	following, err := e.api.Following(e.ourPK())
	if err != nil {
		return err
	}
	e.log.InfoWithFields("fetched following", map[string]interface{}{"count": len(following)})

	manual, err := e.ledger.WhitelistSet(e.ourPK(), ledger.Manual)
	if err != nil {
		return err
	}

	unfollowed := 0
	for _, user := range following {
		if unfollowed >= limit {
			break
		}
		if _, stillFollows := followers[user.PK]; stillFollows {
			continue
		}
		if _, exempt := manual[user.PK]; exempt {
			continue
		}

		e.log.InfoWithFields("unfollowing unfollower", map[string]interface{}{
			"pk": user.PK, "username": user.Username,
		})
		if err := e.unfollow(user); err != nil {
			return err
		}
		unfollowed++
	}

	e.log.InfoWithFields("unfollow-unfollowers finished", map[string]interface{}{"unfollowed": unfollowed})
	return nil
}

// PruneMutualFollowers evaluates mutual follows that have not been considered
// before. Every scanned candidate is whitelisted with the pruning reason so
// it is never reconsidered; candidates whose own follower/following ratio is
// below the threshold are unfollowed as low-value reciprocal relationships.
func (e *Engine) PruneMutualFollowers(limit int) error {
	followers, err := e.platformFollowerSet()
	if err != nil {
		return err
	}
	following, err := e.api.Following(e.ourPK())
	if err != nil {
		return err
	}

	whitelist, err := e.ledger.WhitelistSet(e.ourPK(), ledger.Manual, ledger.ScannedWhenPruning)
	if err != nil {
		return err
	}

	scanned := 0
	for _, user := range following {
		if scanned >= limit {
			break
		}
		if _, mutual := followers[user.PK]; !mutual {
			continue
		}
		if _, seen := whitelist[user.PK]; seen {
			continue
		}
		scanned++

		// whitelist first so the candidate is never reconsidered, whatever
		// the ratio says
		if err := e.ledger.Whitelist(e.ourPK(), user.PK, ledger.ScannedWhenPruning); err != nil {
			return err
		}

		full, err := e.api.GetUser(user.Username)
		if err != nil {
			return err
		}
		e.snapshot(full)

		if full.Ratio() < e.filter.MaxRatio {
			e.log.InfoWithFields("pruning mutual", map[string]interface{}{
				"pk": full.PK, "username": full.Username, "ratio": full.Ratio(),
			})
			if err := e.unfollow(user); err != nil {
				return err
			}
		}
	}

	e.log.InfoWithFields("prune-mutuals finished", map[string]interface{}{"scanned": scanned})
	return nil
}

// CopyFollowers follows up to count of sourceUsername's followers that pass
// the good-user filter
func (e *Engine) CopyFollowers(sourceUsername string, count int) error {
	source, err := e.api.GetUser(sourceUsername)
	if err != nil {
		return err
	}
	e.snapshot(source)

	pager := e.api.Followers(source.PK)
	acted, err := e.runGoodUserFilter(pager.Next, sourceUsername, ledger.FollowUserFollower, count, e.followCandidate)
	e.log.InfoWithFields("copy-followers finished", map[string]interface{}{
		"source": sourceUsername, "followed": acted,
	})
	return err
}

// FollowLikersOfTopPosts follows up to count likers of the tag's top-ranked
// posts, in post-rank order then liker order, that pass the good-user filter
func (e *Engine) FollowLikersOfTopPosts(tag string, count int) error {
	acted, err := e.actOnTagLikers(tag, ledger.FollowTagLiker, count, e.followCandidate)
	e.log.InfoWithFields("follow-tag-likers finished", map[string]interface{}{
		"tag": tag, "followed": acted,
	})
	return err
}

// LikeLikersOfTopPosts triggers a like-recent action for up to count likers
// of the tag's top-ranked posts that pass the good-user filter
func (e *Engine) LikeLikersOfTopPosts(tag string, count int) error {
	acted, err := e.actOnTagLikers(tag, ledger.LikeTagLiker, count, e.likeCandidate)
	e.log.InfoWithFields("like-tag-likers finished", map[string]interface{}{
		"tag": tag, "liked": acted,
	})
	return err
}

// ApplyBanditExploration asks the tag selector to split totalBudget across
// candidate tags, then runs the per-tag operation for each allocation. One
// tag failing must not block the others, so non-fatal per-tag failures are
// logged and the batch continues; fatal classifications abort the remaining
// allocations.
func (e *Engine) ApplyBanditExploration(totalBudget int, actionType ledger.ActionType) error {
	feedTags, err := e.ownFeedTags()
	if err != nil {
		return err
	}

	stats, err := e.ledger.ActionAndLikebackCounts(e.ourPK(), []ledger.ActionType{actionType}, e.statsSince)
	if err != nil {
		return err
	}
	history := make([]bandit.Arm, len(stats))
	for i, s := range stats {
		history[i] = bandit.Arm{Tag: s.Tag, Actions: s.Actions, Likebacks: s.Likebacks}
	}

	arms := bandit.MergeArms(feedTags, history)
	if len(arms) == 0 {
		e.log.Warn("no candidate tags for bandit exploration")
		return nil
	}

	allocations := e.selector.Allocate(totalBudget, arms)
	e.log.InfoWithFields("bandit allocation", map[string]interface{}{
		"tags": len(allocations), "budget": totalBudget,
	})

	for _, alloc := range allocations {
		var opErr error
		switch actionType {
		case ledger.LikeTagLiker:
			opErr = e.LikeLikersOfTopPosts(alloc.Tag, alloc.Count)
		default:
			opErr = e.FollowLikersOfTopPosts(alloc.Tag, alloc.Count)
		}
		if opErr != nil {
			if apierr.IsFatalError(opErr) {
				return fmt.Errorf("aborting exploration at tag %s: %w", alloc.Tag, opErr)
			}
			e.log.ErrorWithFields("tag exploration failed, continuing", map[string]interface{}{
				"tag": alloc.Tag, "error": opErr.Error(),
			})
		}
	}
	return nil
}

// FollowAndWhitelist follows username and manually whitelists them so they
// are never automatically unfollowed
func (e *Engine) FollowAndWhitelist(username string) error {
	user, err := e.api.GetUser(username)
	if err != nil {
		return err
	}
	e.snapshot(user)

	if err := e.followCandidate(instagram.UserSummary{
		PK: user.PK, Username: user.Username, IsPrivate: user.IsPrivate,
	}); err != nil {
		return err
	}
	return e.ledger.Whitelist(e.ourPK(), user.PK, ledger.Manual)
}

// SyncFollowerLog diffs the platform's current follower set against the
// ledger-derived one and appends only the delta events. Re-running is safe:
// an empty delta appends nothing.
func (e *Engine) SyncFollowerLog() error {
	platform, err := e.platformFollowerSet()
	if err != nil {
		return err
	}
	recorded, err := e.ledger.CurrentFollowers(e.ourPK())
	if err != nil {
		return err
	}

	var newlyFollowed, newlyUnfollowed []int64
	for pk := range platform {
		if _, ok := recorded[pk]; !ok {
			newlyFollowed = append(newlyFollowed, pk)
		}
	}
	for pk := range recorded {
		if _, ok := platform[pk]; !ok {
			newlyUnfollowed = append(newlyUnfollowed, pk)
		}
	}

	return e.ledger.RecordFollowerDelta(e.ourPK(), newlyFollowed, newlyUnfollowed)
}

// SyncLikerLog walks the account's own recent feed and records the likers
// not yet seen for each media item
func (e *Engine) SyncLikerLog() error {
	feed := e.api.UserFeed(e.ourPK())
	return feed.Each(func(item instagram.FeedItem) bool {
		likers, err := e.api.Likers(item.Media())
		if err != nil {
			e.log.ErrorWithFields("failed to fetch likers", map[string]interface{}{
				"media_id": item.Media(), "error": err.Error(),
			})
			return !apierr.IsFatalError(err)
		}
		pks := make([]int64, len(likers))
		for i, liker := range likers {
			pks[i] = liker.PK
		}
		if _, err := e.ledger.RecordNewLikers(e.ourPK(), item.Media(), pks); err != nil {
			e.log.ErrorWithFields("failed to record likers", map[string]interface{}{
				"media_id": item.Media(), "error": err.Error(),
			})
			return false
		}
		return true
	})
}

// ownFeedTags collects the hashtags from the account's own recent captions
func (e *Engine) ownFeedTags() ([]string, error) {
	var tags []string
	seen := make(map[string]struct{})

	feed := e.api.UserFeed(e.ourPK())
	err := feed.Each(func(item instagram.FeedItem) bool {
		for _, tag := range bandit.ExtractHashtags(item.CaptionText()) {
			if _, dup := seen[tag]; !dup {
				seen[tag] = struct{}{}
				tags = append(tags, tag)
			}
		}
		return true
	})
	return tags, err
}

// actOnTagLikers flattens the likers of a tag's top posts into a single
// candidate stream and runs the good-user filter over it
func (e *Engine) actOnTagLikers(tag string, actionType ledger.ActionType, count int, act func(instagram.UserSummary) error) (int, error) {
	posts := e.api.TopPostsForTag(tag)

	var buf []instagram.UserSummary
	next := func() (instagram.UserSummary, bool, error) {
		for len(buf) == 0 {
			post, ok, err := posts.Next()
			if err != nil || !ok {
				return instagram.UserSummary{}, false, err
			}
			likers, err := e.api.Likers(post.Media())
			if err != nil {
				return instagram.UserSummary{}, false, err
			}
			buf = likers
		}
		candidate := buf[0]
		buf = buf[1:]
		return candidate, true, nil
	}

	return e.runGoodUserFilter(next, tag, actionType, count, act)
}

// platformFollowerSet drains the followers pager into a pk set
func (e *Engine) platformFollowerSet() (map[int64]struct{}, error) {
	followers, err := e.api.Followers(e.ourPK()).Collect(0)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(followers))
	for _, f := range followers {
		set[f.PK] = struct{}{}
	}
	return set, nil
}

// unfollow routes an unfollow through the relay when configured, otherwise
// issues it in-session
func (e *Engine) unfollow(user instagram.UserSummary) error {
	metrics.ActionsIssued.WithLabelValues("unfollow").Inc()
	if e.relay != nil {
		return e.relay.Unfollow(e.ourUsername(), user.Username)
	}
	return e.api.Unfollow(user.PK)
}

// followCandidate routes a follow through the relay when configured
func (e *Engine) followCandidate(user instagram.UserSummary) error {
	metrics.ActionsIssued.WithLabelValues("follow").Inc()
	if e.relay != nil {
		return e.relay.Follow(e.ourUsername(), user.Username)
	}
	return e.api.Follow(user.PK)
}

// likeCandidate likes the candidate's three most recent posts, through the
// relay when configured
func (e *Engine) likeCandidate(user instagram.UserSummary) error {
	metrics.ActionsIssued.WithLabelValues("like_recent").Inc()
	if e.relay != nil {
		return e.relay.LikeRecent(e.ourUsername(), user.Username)
	}

	feed := e.api.UserFeed(user.PK)
	items, err := feed.Collect(3)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := e.api.Like(item.Media()); err != nil {
			return err
		}
	}
	return nil
}

// snapshot caches a fetched profile in the ledger for later username lookups
func (e *Engine) snapshot(user *instagram.User) {
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := e.ledger.UpsertUserSnapshot(user.PK, user.Username, string(raw)); err != nil {
		e.log.WarnWithFields("failed to cache user snapshot", map[string]interface{}{
			"pk": user.PK, "error": err.Error(),
		})
	}
}
