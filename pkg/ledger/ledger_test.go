package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ourPK int64 = 1000

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:", nil)
	require.NoError(t, err)
	return l
}

func TestBlacklistMembership(t *testing.T) {
	l := openTestLedger(t)

	blacklisted, err := l.IsBlacklisted(ourPK, 5)
	require.NoError(t, err)
	assert.False(t, blacklisted)

	require.NoError(t, l.Blacklist(ourPK, 5, ScannedWhenCopying))

	blacklisted, err = l.IsBlacklisted(ourPK, 5)
	require.NoError(t, err)
	assert.True(t, blacklisted)

	// scoped to the owning account
	blacklisted, err = l.IsBlacklisted(ourPK+1, 5)
	require.NoError(t, err)
	assert.False(t, blacklisted)
}

func TestBlacklistDuplicateInsertTolerated(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.Blacklist(ourPK, 5, ScannedWhenCopying))
	require.NoError(t, l.Blacklist(ourPK, 5, ScannedWhenCopying))

	set, err := l.BlacklistSet(ourPK)
	require.NoError(t, err)
	assert.Contains(t, set, int64(5))
	assert.Len(t, set, 1)
}

func TestWhitelistReasonScoping(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.Whitelist(ourPK, 10, Manual))
	require.NoError(t, l.Whitelist(ourPK, 11, ScannedWhenPruning))

	// the unfollow-unfollowers policy respects manual entries only
	manual, err := l.WhitelistSet(ourPK, Manual)
	require.NoError(t, err)
	assert.Contains(t, manual, int64(10))
	assert.NotContains(t, manual, int64(11))

	both, err := l.WhitelistSet(ourPK, Manual, ScannedWhenPruning)
	require.NoError(t, err)
	assert.Len(t, both, 2)

	scanned, err := l.IsWhitelisted(ourPK, 11, ScannedWhenPruning)
	require.NoError(t, err)
	assert.True(t, scanned)

	scanned, err = l.IsWhitelisted(ourPK, 11, Manual)
	require.NoError(t, err)
	assert.False(t, scanned)
}

func TestCurrentFollowersFoldsHistory(t *testing.T) {
	l := openTestLedger(t)

	// followed, unfollowed, followed again: latest event wins
	require.NoError(t, l.RecordFollowerDelta(ourPK, []int64{7}, nil))
	require.NoError(t, l.RecordFollowerDelta(ourPK, nil, []int64{7}))
	require.NoError(t, l.RecordFollowerDelta(ourPK, []int64{7}, nil))

	require.NoError(t, l.RecordFollowerDelta(ourPK, []int64{8}, nil))
	require.NoError(t, l.RecordFollowerDelta(ourPK, nil, []int64{8}))

	followers, err := l.CurrentFollowers(ourPK)
	require.NoError(t, err)
	assert.Contains(t, followers, int64(7))
	assert.NotContains(t, followers, int64(8))
	assert.Len(t, followers, 1)
}

func TestCurrentFollowersEmptyHistory(t *testing.T) {
	l := openTestLedger(t)

	followers, err := l.CurrentFollowers(ourPK)
	require.NoError(t, err)
	assert.Empty(t, followers)
}

func TestRecordNewLikersReturnsOnlyDelta(t *testing.T) {
	l := openTestLedger(t)

	inserted, err := l.RecordNewLikers(ourPK, 500, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, inserted)

	inserted, err = l.RecordNewLikers(ourPK, 500, []int64{2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, inserted)

	likers, err := l.LikersForMedia(ourPK, 500)
	require.NoError(t, err)
	assert.Len(t, likers, 4)

	// same liker on a different media item is a fresh row
	inserted, err = l.RecordNewLikers(ourPK, 501, []int64{2})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, inserted)
}

func TestActionAndLikebackCounts(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.RecordAction(ourPK, 100, "a", "cats", FollowTagLiker))
	require.NoError(t, l.RecordAction(ourPK, 101, "b", "cats", FollowTagLiker))
	require.NoError(t, l.RecordAction(ourPK, 102, "c", "dogs", FollowTagLiker))
	// different action type, excluded from the query below
	require.NoError(t, l.RecordAction(ourPK, 103, "d", "cats", LikeTagLiker))

	// pk 100 liked some media of ours at some point: counts as a likeback
	// for its action regardless of which media
	_, err := l.RecordNewLikers(ourPK, 999, []int64{100})
	require.NoError(t, err)

	stats, err := l.ActionAndLikebackCounts(ourPK, []ActionType{FollowTagLiker}, time.Time{})
	require.NoError(t, err)
	require.Len(t, stats, 2)

	byTag := make(map[string]TagStat)
	for _, s := range stats {
		byTag[s.Tag] = s
	}
	assert.Equal(t, int64(2), byTag["cats"].Actions)
	assert.Equal(t, int64(1), byTag["cats"].Likebacks)
	assert.Equal(t, int64(1), byTag["dogs"].Actions)
	assert.Equal(t, int64(0), byTag["dogs"].Likebacks)
}

func TestActionAndLikebackCountsSinceFloor(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.RecordAction(ourPK, 100, "a", "cats", FollowTagLiker))

	stats, err := l.ActionAndLikebackCounts(ourPK, []ActionType{FollowTagLiker}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stats, "actions before the floor are excluded")
}

func TestAlreadyActioned(t *testing.T) {
	l := openTestLedger(t)

	require.NoError(t, l.RecordAction(ourPK, 100, "a", "cats", FollowTagLiker))
	require.NoError(t, l.RecordAction(ourPK, 101, "b", "someuser", FollowUserFollower))

	actioned, err := l.AlreadyActioned(ourPK, FollowTagLiker, FollowUserFollower)
	require.NoError(t, err)
	assert.Contains(t, actioned, int64(100))
	assert.Contains(t, actioned, int64(101))

	onlyTag, err := l.AlreadyActioned(ourPK, FollowTagLiker)
	require.NoError(t, err)
	assert.NotContains(t, onlyTag, int64(101))
}

func TestSessionCredentialUpsert(t *testing.T) {
	l := openTestLedger(t)

	cred, err := l.SessionCredentialFor("alice")
	require.NoError(t, err)
	assert.Nil(t, cred)

	require.NoError(t, l.UpsertSessionCredential("alice", 1, "device-1", []byte("blob-1")))
	require.NoError(t, l.UpsertSessionCredential("alice", 1, "device-2", []byte("blob-2")))

	cred, err = l.SessionCredentialFor("alice")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "device-2", cred.DeviceID)
	assert.Equal(t, []byte("blob-2"), cred.CookieBlob)
}

func TestUserSnapshotUpsert(t *testing.T) {
	l := openTestLedger(t)

	name, err := l.UsernameByPK(42)
	require.NoError(t, err)
	assert.Empty(t, name)

	require.NoError(t, l.UpsertUserSnapshot(42, "old_name", `{"pk":42}`))
	require.NoError(t, l.UpsertUserSnapshot(42, "new_name", `{"pk":42}`))

	name, err = l.UsernameByPK(42)
	require.NoError(t, err)
	assert.Equal(t, "new_name", name)
}
