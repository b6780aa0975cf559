package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iggrowth/pkg/bandit"
	"iggrowth/pkg/config"
	"iggrowth/pkg/instagram"
	"iggrowth/pkg/ledger"
)

// fakeAPI is an in-memory APIClient with canned responses and recorded calls
type fakeAPI struct {
	account   *instagram.User
	users     map[string]*instagram.User
	followers map[int64][]instagram.UserSummary
	following map[int64][]instagram.UserSummary
	topPosts  map[string][]instagram.FeedItem
	likers    map[int64][]instagram.UserSummary
	feeds     map[int64][]instagram.FeedItem

	followed     []int64
	unfollowed   []int64
	liked        []int64
	getUserCalls []string
	likersCalls  []int64
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		account:   &instagram.User{PK: 1, Username: "ourself"},
		users:     map[string]*instagram.User{},
		followers: map[int64][]instagram.UserSummary{},
		following: map[int64][]instagram.UserSummary{},
		topPosts:  map[string][]instagram.FeedItem{},
		likers:    map[int64][]instagram.UserSummary{},
		feeds:     map[int64][]instagram.FeedItem{},
	}
}

func singlePage[T any](items []T) *instagram.Pager[T] {
	return instagram.NewPager(func(cursor string) (instagram.Page[T], error) {
		return instagram.Page[T]{Items: items}, nil
	}, nil)
}

func (f *fakeAPI) Account() *instagram.User { return f.account }

func (f *fakeAPI) GetUser(username string) (*instagram.User, error) {
	f.getUserCalls = append(f.getUserCalls, username)
	user, ok := f.users[username]
	if !ok {
		return nil, fmt.Errorf("no such user %q", username)
	}
	return user, nil
}

func (f *fakeAPI) Followers(pk int64) *instagram.Pager[instagram.UserSummary] {
	return singlePage(f.followers[pk])
}

func (f *fakeAPI) Following(pk int64) ([]instagram.UserSummary, error) {
	return f.following[pk], nil
}

func (f *fakeAPI) Follow(pk int64) error {
	f.followed = append(f.followed, pk)
	return nil
}

func (f *fakeAPI) Unfollow(pk int64) error {
	f.unfollowed = append(f.unfollowed, pk)
	return nil
}

func (f *fakeAPI) Like(mediaID int64) error {
	f.liked = append(f.liked, mediaID)
	return nil
}

func (f *fakeAPI) TopPostsForTag(tag string) *instagram.Pager[instagram.FeedItem] {
	return singlePage(f.topPosts[tag])
}

func (f *fakeAPI) Likers(mediaID int64) ([]instagram.UserSummary, error) {
	f.likersCalls = append(f.likersCalls, mediaID)
	return f.likers[mediaID], nil
}

func (f *fakeAPI) UserFeed(pk int64) *instagram.Pager[instagram.FeedItem] {
	return singlePage(f.feeds[pk])
}

func (f *fakeAPI) MediaCountForTag(tag string) (int, error) { return 0, nil }

// fakeRelay records enqueued bridge actions
type fakeRelay struct {
	calls []string
}

func (r *fakeRelay) Follow(account, username string) error {
	r.calls = append(r.calls, "follow "+account+" "+username)
	return nil
}

func (r *fakeRelay) Unfollow(account, username string) error {
	r.calls = append(r.calls, "unfollow "+account+" "+username)
	return nil
}

func (r *fakeRelay) LikeRecent(account, username string) error {
	r.calls = append(r.calls, "like "+account+" "+username)
	return nil
}

func newTestEngine(t *testing.T, api *fakeAPI, opts ...Option) (*Engine, *ledger.Ledger) {
	t.Helper()
	lg, err := ledger.Open(":memory:", nil)
	require.NoError(t, err)

	selector := bandit.NewSelector(bandit.DefaultPrior(), bandit.WithSeed(1))
	filter := config.FilterConfig{SkipPrivate: false, MaxRatio: 0.5}
	return New(api, lg, selector, filter, nil, opts...), lg
}

func summary(pk int64) instagram.UserSummary {
	return instagram.UserSummary{PK: pk, Username: fmt.Sprintf("u%d", pk)}
}

func TestUnfollowUnfollowers(t *testing.T) {
	api := newFakeAPI()
	api.followers[1] = []instagram.UserSummary{summary(2), summary(3)}
	api.following[1] = []instagram.UserSummary{summary(2), summary(3), summary(4), summary(5), summary(6)}

	e, lg := newTestEngine(t, api)
	require.NoError(t, lg.Whitelist(1, 5, ledger.Manual))
	require.NoError(t, lg.Whitelist(1, 6, ledger.ScannedWhenPruning))

	require.NoError(t, e.UnfollowUnfollowers(100))

	// 4 and 6 do not follow back; 5 is manually exempt; the pruning-scan
	// whitelist does not protect 6
	assert.Equal(t, []int64{4, 6}, api.unfollowed)
	assert.NotContains(t, api.unfollowed, int64(2), "accounts that follow back are never unfollowed")
}

func TestUnfollowUnfollowersRespectsLimit(t *testing.T) {
	api := newFakeAPI()
	api.following[1] = []instagram.UserSummary{summary(4), summary(5), summary(6)}

	e, _ := newTestEngine(t, api)
	require.NoError(t, e.UnfollowUnfollowers(2))
	assert.Equal(t, []int64{4, 5}, api.unfollowed)
}

func TestPruneMutualFollowers(t *testing.T) {
	api := newFakeAPI()
	api.followers[1] = []instagram.UserSummary{summary(2), summary(3), summary(4)}
	api.following[1] = []instagram.UserSummary{summary(2), summary(3), summary(4), summary(9)}
	api.users["u2"] = &instagram.User{PK: 2, Username: "u2", FollowerCount: 101, FollowingCount: 400}
	api.users["u3"] = &instagram.User{PK: 3, Username: "u3", FollowerCount: 101, FollowingCount: 10}

	e, lg := newTestEngine(t, api)
	// 4 was scanned in an earlier run
	require.NoError(t, lg.Whitelist(1, 4, ledger.ScannedWhenPruning))

	require.NoError(t, e.PruneMutualFollowers(100))

	// 2 has ratio 0.2525, below the 0.5 threshold
	assert.Equal(t, []int64{2}, api.unfollowed)

	// both evaluated candidates are whitelisted regardless of the outcome
	for _, pk := range []int64{2, 3} {
		scanned, err := lg.IsWhitelisted(1, pk, ledger.ScannedWhenPruning)
		require.NoError(t, err)
		assert.True(t, scanned, "pk %d must be whitelisted after the scan", pk)
	}

	// 4 was skipped entirely: no profile fetch, 9 is not mutual
	assert.NotContains(t, api.getUserCalls, "u4")
	assert.NotContains(t, api.getUserCalls, "u9")
}

func TestPruneMutualFollowersLimitCountsScanned(t *testing.T) {
	api := newFakeAPI()
	api.followers[1] = []instagram.UserSummary{summary(2), summary(3)}
	api.following[1] = []instagram.UserSummary{summary(2), summary(3)}
	api.users["u2"] = &instagram.User{PK: 2, Username: "u2", FollowerCount: 500, FollowingCount: 100}
	api.users["u3"] = &instagram.User{PK: 3, Username: "u3", FollowerCount: 500, FollowingCount: 100}

	e, lg := newTestEngine(t, api)
	require.NoError(t, e.PruneMutualFollowers(1))

	// the limit bounds scans, not unfollows
	scanned2, err := lg.IsWhitelisted(1, 2, ledger.ScannedWhenPruning)
	require.NoError(t, err)
	scanned3, err := lg.IsWhitelisted(1, 3, ledger.ScannedWhenPruning)
	require.NoError(t, err)
	assert.True(t, scanned2 != scanned3, "exactly one candidate is scanned")
	assert.Empty(t, api.unfollowed, "high-ratio mutuals are kept")
}

func TestCopyFollowers(t *testing.T) {
	api := newFakeAPI()
	api.users["source"] = &instagram.User{PK: 100, Username: "source"}
	api.followers[100] = []instagram.UserSummary{summary(6), summary(7)}
	api.following[1] = []instagram.UserSummary{summary(7)}
	api.users["u6"] = &instagram.User{PK: 6, Username: "u6", FollowerCount: 10, FollowingCount: 30}

	e, lg := newTestEngine(t, api)
	require.NoError(t, e.CopyFollowers("source", 100))

	// 6 passes the filter and is followed; 7 is already followed
	assert.Equal(t, []int64{6}, api.followed)

	blacklisted, err := lg.IsBlacklisted(1, 6)
	require.NoError(t, err)
	assert.True(t, blacklisted, "evaluated candidates are blacklisted")

	blacklisted, err = lg.IsBlacklisted(1, 7)
	require.NoError(t, err)
	assert.False(t, blacklisted, "already-followed candidates drop before the blacklist insert")

	actioned, err := lg.AlreadyActioned(1, ledger.FollowUserFollower)
	require.NoError(t, err)
	assert.Contains(t, actioned, int64(6))
}

func TestCopyFollowersRescanIsIdempotent(t *testing.T) {
	api := newFakeAPI()
	api.users["source"] = &instagram.User{PK: 100, Username: "source"}
	api.followers[100] = []instagram.UserSummary{summary(6)}
	api.users["u6"] = &instagram.User{PK: 6, Username: "u6", FollowerCount: 10, FollowingCount: 30}

	e, lg := newTestEngine(t, api)
	require.NoError(t, e.CopyFollowers("source", 100))
	require.NoError(t, e.CopyFollowers("source", 100))

	// the blacklist memoizes: the second run neither re-follows nor
	// re-fetches the profile
	assert.Equal(t, []int64{6}, api.followed)

	actioned, err := lg.AlreadyActioned(1, ledger.FollowUserFollower)
	require.NoError(t, err)
	assert.Len(t, actioned, 1)
}

func TestFollowLikersOfTopPostsIsLazy(t *testing.T) {
	api := newFakeAPI()
	api.topPosts["cats"] = []instagram.FeedItem{{PK: 500}, {PK: 501}}
	api.likers[500] = []instagram.UserSummary{summary(10)}
	api.likers[501] = []instagram.UserSummary{summary(11)}
	api.users["u10"] = &instagram.User{PK: 10, Username: "u10", FollowerCount: 10, FollowingCount: 30}

	e, lg := newTestEngine(t, api)
	require.NoError(t, e.FollowLikersOfTopPosts("cats", 1))

	assert.Equal(t, []int64{10}, api.followed)
	assert.Equal(t, []int64{500}, api.likersCalls, "the second post's likers are never fetched")

	actioned, err := lg.AlreadyActioned(1, ledger.FollowTagLiker)
	require.NoError(t, err)
	assert.Contains(t, actioned, int64(10))
}

func TestLikeLikersOfTopPostsInSession(t *testing.T) {
	api := newFakeAPI()
	api.topPosts["cats"] = []instagram.FeedItem{{PK: 500}}
	api.likers[500] = []instagram.UserSummary{summary(10)}
	api.users["u10"] = &instagram.User{PK: 10, Username: "u10", FollowerCount: 10, FollowingCount: 30}
	api.feeds[10] = []instagram.FeedItem{{PK: 601}, {PK: 602}, {PK: 603}, {PK: 604}}

	e, _ := newTestEngine(t, api)
	require.NoError(t, e.LikeLikersOfTopPosts("cats", 1))

	// only the three most recent posts are liked
	assert.Equal(t, []int64{601, 602, 603}, api.liked)
}

func TestRelayRoutesMutations(t *testing.T) {
	api := newFakeAPI()
	api.following[1] = []instagram.UserSummary{summary(4)}

	relay := &fakeRelay{}
	e, _ := newTestEngine(t, api, WithRelay(relay))
	require.NoError(t, e.UnfollowUnfollowers(100))

	assert.Equal(t, []string{"unfollow ourself u4"}, relay.calls)
	assert.Empty(t, api.unfollowed, "with a relay nothing is issued in-session")
}

func TestFollowAndWhitelist(t *testing.T) {
	api := newFakeAPI()
	api.users["friend"] = &instagram.User{PK: 9, Username: "friend"}

	e, lg := newTestEngine(t, api)
	require.NoError(t, e.FollowAndWhitelist("friend"))

	assert.Equal(t, []int64{9}, api.followed)
	manual, err := lg.IsWhitelisted(1, 9, ledger.Manual)
	require.NoError(t, err)
	assert.True(t, manual)
}

func TestSyncFollowerLog(t *testing.T) {
	api := newFakeAPI()
	api.followers[1] = []instagram.UserSummary{summary(2), summary(3)}

	e, lg := newTestEngine(t, api)
	// the ledger believes 3 and 4 follow us
	require.NoError(t, lg.RecordFollowerDelta(1, []int64{3, 4}, nil))

	require.NoError(t, e.SyncFollowerLog())

	current, err := lg.CurrentFollowers(1)
	require.NoError(t, err)
	assert.Contains(t, current, int64(2))
	assert.Contains(t, current, int64(3))
	assert.NotContains(t, current, int64(4))

	// re-running appends nothing new
	require.NoError(t, e.SyncFollowerLog())
	again, err := lg.CurrentFollowers(1)
	require.NoError(t, err)
	assert.Equal(t, current, again)
}

func TestSyncLikerLog(t *testing.T) {
	api := newFakeAPI()
	api.feeds[1] = []instagram.FeedItem{{PK: 700}, {PK: 701}}
	api.likers[700] = []instagram.UserSummary{summary(20), summary(21)}
	api.likers[701] = []instagram.UserSummary{summary(20)}

	e, lg := newTestEngine(t, api)
	require.NoError(t, e.SyncLikerLog())

	likers700, err := lg.LikersForMedia(1, 700)
	require.NoError(t, err)
	assert.Len(t, likers700, 2)

	likers701, err := lg.LikersForMedia(1, 701)
	require.NoError(t, err)
	assert.Len(t, likers701, 1)

	// re-running records no duplicates
	require.NoError(t, e.SyncLikerLog())
	likers700, err = lg.LikersForMedia(1, 700)
	require.NoError(t, err)
	assert.Len(t, likers700, 2)
}

func TestApplyBanditExploration(t *testing.T) {
	api := newFakeAPI()
	// our own feed names one tag
	api.feeds[1] = []instagram.FeedItem{{PK: 800, Caption: &instagram.Caption{Text: "post #cats"}}}
	api.topPosts["cats"] = []instagram.FeedItem{{PK: 500}}
	api.likers[500] = []instagram.UserSummary{summary(10)}
	api.users["u10"] = &instagram.User{PK: 10, Username: "u10", FollowerCount: 10, FollowingCount: 30}

	e, lg := newTestEngine(t, api)
	require.NoError(t, e.ApplyBanditExploration(5, ledger.FollowTagLiker))

	assert.Equal(t, []int64{10}, api.followed)

	actioned, err := lg.AlreadyActioned(1, ledger.FollowTagLiker)
	require.NoError(t, err)
	assert.Contains(t, actioned, int64(10))
}

func TestApplyBanditExplorationNoCandidateTags(t *testing.T) {
	api := newFakeAPI()
	e, _ := newTestEngine(t, api)

	require.NoError(t, e.ApplyBanditExploration(5, ledger.FollowTagLiker))
	assert.Empty(t, api.followed)
}
