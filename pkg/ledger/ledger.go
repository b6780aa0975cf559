// Package ledger is the append-only persistent record of every decision the
// growth engine makes: blacklist and whitelist memberships, issued actions,
// follower history events and observed likers. Nothing here is ever updated
// or deleted except the session credential upsert; derived facts (current
// followers, likeback rates) are always computed from the full history.
package ledger

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"iggrowth/pkg/logger"
)

// Ledger provides the account-scoped persistence operations. Writes are
// individual auto-committed statements; every write is append-only or
// naturally deduplicatable, so no surrounding transaction is needed.
type Ledger struct {
	db  *gorm.DB
	log logger.Logger
}

// Open opens (and migrates) the ledger database at path. ":memory:" gives an
// ephemeral ledger for tests.
func Open(path string, log logger.Logger) (*Ledger, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	if err := db.AutoMigrate(
		&BlacklistEntry{},
		&WhitelistEntry{},
		&ActionRecord{},
		&FollowerLogEntry{},
		&LikerLogEntry{},
		&SessionCredential{},
		&UserSnapshot{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}

	return &Ledger{db: db, log: log}, nil
}

// IsBlacklisted reports whether pk is permanently excluded from evaluation
func (l *Ledger) IsBlacklisted(ourPK, pk int64) (bool, error) {
	var count int64
	err := l.db.Model(&BlacklistEntry{}).
		Where("our_pk = ? AND blacklisted_pk = ?", ourPK, pk).
		Count(&count).Error
	return count > 0, err
}

// BlacklistSet returns the whole blacklist for an account, loaded once per
// batch operation
func (l *Ledger) BlacklistSet(ourPK int64) (map[int64]struct{}, error) {
	var pks []int64
	err := l.db.Model(&BlacklistEntry{}).
		Where("our_pk = ?", ourPK).
		Pluck("blacklisted_pk", &pks).Error
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(pks))
	for _, pk := range pks {
		set[pk] = struct{}{}
	}
	return set, nil
}

// Blacklist appends pk to the blacklist. Duplicate rows are tolerated; the
// membership check does not care.
func (l *Ledger) Blacklist(ourPK, pk int64, reason BlacklistReason) error {
	l.log.DebugWithFields("adding to blacklist", map[string]interface{}{"pk": pk})
	return l.db.Create(&BlacklistEntry{
		OurPK:         ourPK,
		BlacklistedPK: pk,
		Reason:        string(reason),
	}).Error
}

// WhitelistSet returns the whitelisted pks for the given reasons. Callers
// must pass exactly the reasons their operation respects: unfollow-unfollowers
// checks Manual only.
func (l *Ledger) WhitelistSet(ourPK int64, reasons ...WhitelistReason) (map[int64]struct{}, error) {
	strs := make([]string, len(reasons))
	for i, r := range reasons {
		strs[i] = string(r)
	}
	var pks []int64
	err := l.db.Model(&WhitelistEntry{}).
		Where("our_pk = ? AND reason IN ?", ourPK, strs).
		Pluck("whitelisted_pk", &pks).Error
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(pks))
	for _, pk := range pks {
		set[pk] = struct{}{}
	}
	return set, nil
}

// IsWhitelisted reports whether pk is whitelisted under any of the reasons
func (l *Ledger) IsWhitelisted(ourPK, pk int64, reasons ...WhitelistReason) (bool, error) {
	strs := make([]string, len(reasons))
	for i, r := range reasons {
		strs[i] = string(r)
	}
	var count int64
	err := l.db.Model(&WhitelistEntry{}).
		Where("our_pk = ? AND whitelisted_pk = ? AND reason IN ?", ourPK, pk, strs).
		Count(&count).Error
	return count > 0, err
}

// Whitelist appends pk to the whitelist under the given reason
func (l *Ledger) Whitelist(ourPK, pk int64, reason WhitelistReason) error {
	l.log.DebugWithFields("adding to whitelist", map[string]interface{}{
		"pk": pk, "reason": string(reason),
	})
	return l.db.Create(&WhitelistEntry{
		OurPK:         ourPK,
		WhitelistedPK: pk,
		Reason:        string(reason),
	}).Error
}

// RecordAction appends one growth action to the audit trail
func (l *Ledger) RecordAction(ourPK, targetPK int64, targetUsername, source string, actionType ActionType) error {
	l.log.DebugWithFields("recording action", map[string]interface{}{
		"target_pk": targetPK, "target_username": targetUsername,
		"source": source, "action_type": string(actionType),
	})
	return l.db.Create(&ActionRecord{
		OurPK:          ourPK,
		TargetPK:       targetPK,
		TargetUsername: targetUsername,
		Source:         source,
		ActionType:     string(actionType),
	}).Error
}

// CurrentFollowers reconstructs the current follower set from the event
// history: a pk is a follower iff its latest event by sequence id is a
// follow. The fold is deliberate; the history is the source of truth and no
// mutable current-followers table exists.
func (l *Ledger) CurrentFollowers(ourPK int64) (map[int64]struct{}, error) {
	var entries []FollowerLogEntry
	err := l.db.Where("our_pk = ?", ourPK).
		Order("id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	followers := make(map[int64]struct{})
	for _, e := range entries {
		switch FollowerAction(e.Action) {
		case Followed:
			followers[e.FollowerPK] = struct{}{}
		case Unfollowed:
			delete(followers, e.FollowerPK)
		}
	}
	return followers, nil
}

// RecordFollowerDelta appends follow/unfollow events for the given pks.
// History is never rewritten; re-running a sync only appends the new delta.
func (l *Ledger) RecordFollowerDelta(ourPK int64, newlyFollowed, newlyUnfollowed []int64) error {
	l.log.DebugWithFields("recording follower delta", map[string]interface{}{
		"followed": len(newlyFollowed), "unfollowed": len(newlyUnfollowed),
	})
	for _, pk := range newlyFollowed {
		if err := l.db.Create(&FollowerLogEntry{OurPK: ourPK, FollowerPK: pk, Action: string(Followed)}).Error; err != nil {
			return err
		}
	}
	for _, pk := range newlyUnfollowed {
		if err := l.db.Create(&FollowerLogEntry{OurPK: ourPK, FollowerPK: pk, Action: string(Unfollowed)}).Error; err != nil {
			return err
		}
	}
	return nil
}

// LikersForMedia returns the recorded likers for one media item
func (l *Ledger) LikersForMedia(ourPK, mediaID int64) (map[int64]struct{}, error) {
	var pks []int64
	err := l.db.Model(&LikerLogEntry{}).
		Where("our_pk = ? AND media_id = ?", ourPK, mediaID).
		Pluck("liker_pk", &pks).Error
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(pks))
	for _, pk := range pks {
		set[pk] = struct{}{}
	}
	return set, nil
}

// RecordNewLikers inserts only the likers not already recorded for the media
// item and returns the inserted delta
func (l *Ledger) RecordNewLikers(ourPK, mediaID int64, likerPKs []int64) ([]int64, error) {
	existing, err := l.LikersForMedia(ourPK, mediaID)
	if err != nil {
		return nil, err
	}

	var inserted []int64
	for _, pk := range likerPKs {
		if _, ok := existing[pk]; ok {
			continue
		}
		if err := l.db.Create(&LikerLogEntry{OurPK: ourPK, MediaID: mediaID, LikerPK: pk}).Error; err != nil {
			return inserted, err
		}
		existing[pk] = struct{}{}
		inserted = append(inserted, pk)
	}

	if len(inserted) > 0 {
		l.log.DebugWithFields("recorded new likers", map[string]interface{}{
			"media_id": mediaID, "count": len(inserted),
		})
	}
	return inserted, nil
}

// ActionAndLikebackCounts aggregates the action log by source tag for the
// given action types. A likeback is counted when the action's target pk
// appears anywhere in the account's liker log; this loose proxy is the
// contract the bandit prior was calibrated against, so it stays loose.
// A zero Since applies no time floor.
func (l *Ledger) ActionAndLikebackCounts(ourPK int64, actionTypes []ActionType, since time.Time) ([]TagStat, error) {
	strs := make([]string, len(actionTypes))
	for i, t := range actionTypes {
		strs[i] = string(t)
	}

	q := l.db.Where("our_pk = ? AND action_type IN ?", ourPK, strs)
	if !since.IsZero() {
		q = q.Where("created_at > ?", since)
	}
	var actions []ActionRecord
	if err := q.Find(&actions).Error; err != nil {
		return nil, err
	}

	var likerPKs []int64
	if err := l.db.Model(&LikerLogEntry{}).
		Where("our_pk = ?", ourPK).
		Distinct().
		Pluck("liker_pk", &likerPKs).Error; err != nil {
		return nil, err
	}
	likers := make(map[int64]struct{}, len(likerPKs))
	for _, pk := range likerPKs {
		likers[pk] = struct{}{}
	}

	byTag := make(map[string]*TagStat)
	var order []string
	for _, a := range actions {
		stat, ok := byTag[a.Source]
		if !ok {
			stat = &TagStat{Tag: a.Source}
			byTag[a.Source] = stat
			order = append(order, a.Source)
		}
		stat.Actions++
		if _, liked := likers[a.TargetPK]; liked {
			stat.Likebacks++
		}
	}

	stats := make([]TagStat, 0, len(order))
	for _, tag := range order {
		stats = append(stats, *byTag[tag])
	}
	return stats, nil
}

// AlreadyActioned returns the target pks the account has already followed
// through growth actions of the given types
func (l *Ledger) AlreadyActioned(ourPK int64, actionTypes ...ActionType) (map[int64]struct{}, error) {
	strs := make([]string, len(actionTypes))
	for i, t := range actionTypes {
		strs[i] = string(t)
	}
	var pks []int64
	err := l.db.Model(&ActionRecord{}).
		Where("our_pk = ? AND action_type IN ?", ourPK, strs).
		Pluck("target_pk", &pks).Error
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(pks))
	for _, pk := range pks {
		set[pk] = struct{}{}
	}
	return set, nil
}

// UpsertSessionCredential mirrors the session material into the ledger
func (l *Ledger) UpsertSessionCredential(username string, userPK int64, deviceID string, cookieBlob []byte) error {
	l.log.DebugWithFields("upserting session credential", map[string]interface{}{"username": username})
	return l.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_pk", "device_id", "cookie_blob", "updated_at"}),
	}).Create(&SessionCredential{
		Username:   username,
		UserPK:     userPK,
		DeviceID:   deviceID,
		CookieBlob: cookieBlob,
		UpdatedAt:  time.Now(),
	}).Error
}

// SessionCredentialFor loads the mirrored session material, nil when absent
func (l *Ledger) SessionCredentialFor(username string) (*SessionCredential, error) {
	var cred SessionCredential
	err := l.db.Where("username = ?", username).First(&cred).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

// UpsertUserSnapshot caches the latest profile JSON for a pk
func (l *Ledger) UpsertUserSnapshot(userPK int64, username, rawJSON string) error {
	return l.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_pk"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "json", "updated_at"}),
	}).Create(&UserSnapshot{
		UserPK:    userPK,
		Username:  username,
		JSON:      rawJSON,
		UpdatedAt: time.Now(),
	}).Error
}

// UsernameByPK resolves a cached username for a pk, empty when unknown
func (l *Ledger) UsernameByPK(userPK int64) (string, error) {
	var snap UserSnapshot
	err := l.db.Where("user_pk = ?", userPK).First(&snap).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", err
	}
	return snap.Username, nil
}
