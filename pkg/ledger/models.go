package ledger

import "time"

// BlacklistEntry permanently excludes a candidate from ratio-based
// evaluation. Append-only; membership test only.
type BlacklistEntry struct {
	ID            uint   `gorm:"primarykey"`
	OurPK         int64  `gorm:"index:idx_blacklist_our_pk"`
	BlacklistedPK int64  `gorm:"index:idx_blacklist_pk"`
	Reason        string
	CreatedAt     time.Time
}

// WhitelistEntry permanently exempts a candidate from automated unfollowing,
// scoped by reason. Append-only.
type WhitelistEntry struct {
	ID            uint   `gorm:"primarykey"`
	OurPK         int64  `gorm:"index:idx_whitelist_our_pk"`
	WhitelistedPK int64
	Reason        string
	CreatedAt     time.Time
}

// ActionRecord is the immutable audit trail of growth actions and the basis
// for bandit statistics
type ActionRecord struct {
	ID             uint   `gorm:"primarykey"`
	OurPK          int64  `gorm:"index:idx_action_our_pk"`
	TargetPK       int64
	TargetUsername string
	Source         string
	ActionType     string `gorm:"index:idx_action_type"`
	CreatedAt      time.Time
}

// FollowerLogEntry is one event in the event-sourced follower history. The
// current follower set is always derived from the full history (latest event
// per follower pk wins); it is never materialized into a mutable table.
type FollowerLogEntry struct {
	ID         uint   `gorm:"primarykey"`
	OurPK      int64  `gorm:"index:idx_follower_log_our_pk"`
	FollowerPK int64
	Action     string
	CreatedAt  time.Time
}

// LikerLogEntry records that a pk liked one of the account's media items.
// Set semantics per (our_pk, media_id): only deltas are ever inserted.
type LikerLogEntry struct {
	ID        uint  `gorm:"primarykey"`
	OurPK     int64 `gorm:"index:idx_liker_log_our_pk"`
	MediaID   int64 `gorm:"index:idx_liker_log_media"`
	LikerPK   int64 `gorm:"index:idx_liker_log_liker"`
	CreatedAt time.Time
}

// SessionCredential mirrors the session store's cookie material into the
// ledger, keyed by username and upserted on clean shutdown
type SessionCredential struct {
	Username   string `gorm:"primarykey"`
	UserPK     int64
	DeviceID   string
	CookieBlob []byte
	UpdatedAt  time.Time
}

// UserSnapshot caches the latest profile JSON seen for a pk so usernames can
// be resolved without an API round trip
type UserSnapshot struct {
	UserPK    int64 `gorm:"primarykey"`
	Username  string
	JSON      string
	UpdatedAt time.Time
}
