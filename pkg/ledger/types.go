package ledger

// FollowerAction is a follower log event kind
type FollowerAction string

const (
	Followed   FollowerAction = "followed"
	Unfollowed FollowerAction = "unfollowed"
)

// WhitelistReason records why a pk is exempt from automated unfollowing. The
// reasons are deliberately distinct protections: only Manual exempts a user
// from unfollow-unfollowers, while ScannedWhenPruning only marks a mutual as
// already evaluated by the pruning pass.
type WhitelistReason string

const (
	Manual             WhitelistReason = "manually whitelisted"
	ScannedWhenPruning WhitelistReason = "scanned when pruning mutual followers"
)

// BlacklistReason records why a pk is permanently excluded from evaluation
type BlacklistReason string

const (
	ScannedWhenCopying BlacklistReason = "scanned when copying followers"
)

// ActionType identifies the kind of growth action recorded in the action log.
// The strings are the stable persisted encoding.
type ActionType string

const (
	FollowTagLiker     ActionType = "follow_tag_liker"
	FollowUserFollower ActionType = "follow_user_follower"
	LikeTagLiker       ActionType = "like_tag_liker"
	FollowTopScorer    ActionType = "follow_top_scorer"
)

// TagStat is the per-tag aggregation feeding the bandit's Beta posterior. A
// likeback is counted when the action's target pk appears anywhere in the
// liker log; this is a deliberately loose proxy for reciprocal engagement and
// the bandit prior was calibrated against it.
type TagStat struct {
	Tag       string
	Actions   int64
	Likebacks int64
}
