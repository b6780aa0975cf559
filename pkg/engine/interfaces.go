package engine

import "iggrowth/pkg/instagram"

// APIClient defines the platform operations the engine needs. Implemented by
// *instagram.Client; tests substitute a fake.
type APIClient interface {
	Account() *instagram.User
	GetUser(username string) (*instagram.User, error)
	Followers(pk int64) *instagram.Pager[instagram.UserSummary]
	Following(pk int64) ([]instagram.UserSummary, error)
	Follow(pk int64) error
	Unfollow(pk int64) error
	Like(mediaID int64) error
	TopPostsForTag(tag string) *instagram.Pager[instagram.FeedItem]
	Likers(mediaID int64) ([]instagram.UserSummary, error)
	UserFeed(pk int64) *instagram.Pager[instagram.FeedItem]
	MediaCountForTag(tag string) (int, error)
}

// ActionRelay is the out-of-band action bridge. When configured, mutating
// actions are enqueued there instead of being issued in-session; the bridge
// applies them with its own pacing.
type ActionRelay interface {
	Follow(account, username string) error
	Unfollow(account, username string) error
	LikeRecent(account, username string) error
}
