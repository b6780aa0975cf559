package instagram

import "encoding/json"

// StatusResponse is the envelope every private API response carries. Failures
// usually arrive as HTTP 200 with status "fail" and a human-readable message,
// which is the de facto protocol contract this client classifies on.
type StatusResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	FeedbackMessage string `json:"feedback_message"`
}

// UserSummary is the compact user record returned by follower/liker listings
type UserSummary struct {
	PK        int64  `json:"pk"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	IsPrivate bool   `json:"is_private"`
}

// User is the full user record returned by user search
type User struct {
	PK             int64  `json:"pk"`
	Username       string `json:"username"`
	FullName       string `json:"full_name"`
	IsPrivate      bool   `json:"is_private"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
	MediaCount     int    `json:"media_count"`
	Biography      string `json:"biography"`
}

// Ratio returns the user's follower/following ratio. A ratio below 1 means
// the user follows more people than follow them.
func (u *User) Ratio() float64 {
	if u.FollowingCount == 0 {
		return float64(u.FollowerCount)
	}
	return float64(u.FollowerCount) / float64(u.FollowingCount)
}

// Caption is a media caption
type Caption struct {
	Text string `json:"text"`
}

// FeedItem is a single media item from a tag feed or user feed
type FeedItem struct {
	PK        int64    `json:"pk"`
	ID        string   `json:"id"`
	MediaID   int64    `json:"media_id"`
	LikeCount int      `json:"like_count"`
	Caption   *Caption `json:"caption"`
	User      *UserSummary `json:"user"`
	TakenAt   int64    `json:"taken_at"`
}

// CaptionText returns the caption text, empty for caption-less media
func (f *FeedItem) CaptionText() string {
	if f.Caption == nil {
		return ""
	}
	return f.Caption.Text
}

// Media returns the media identifier, preferring the explicit media_id field
func (f *FeedItem) Media() int64 {
	if f.MediaID != 0 {
		return f.MediaID
	}
	return f.PK
}

// Comment is a single media comment
type Comment struct {
	PK     int64        `json:"pk"`
	Text   string       `json:"text"`
	User   *UserSummary `json:"user"`
	UserID int64        `json:"user_id"`
}

// searchUserResponse wraps the user search result
type searchUserResponse struct {
	StatusResponse
	User User `json:"user"`
}

// userListResponse wraps follower/following/liker listings
type userListResponse struct {
	StatusResponse
	Users     []UserSummary `json:"users"`
	NextMaxID string        `json:"next_max_id"`
}

// tagFeedResponse wraps a tag feed page. RankedItems are the top-ranked posts
// for the tag; Items are the chronological remainder.
type tagFeedResponse struct {
	StatusResponse
	RankedItems []FeedItem `json:"ranked_items"`
	Items       []FeedItem `json:"items"`
	NextMaxID   string     `json:"next_max_id"`
}

// userFeedResponse wraps a user feed page
type userFeedResponse struct {
	StatusResponse
	Items     []FeedItem `json:"items"`
	NextMaxID string     `json:"next_max_id"`
}

// tagSearchResponse wraps a tag search
type tagSearchResponse struct {
	StatusResponse
	Results []TagResult `json:"results"`
}

// TagResult is a single tag search hit
type TagResult struct {
	Name       string `json:"name"`
	MediaCount int    `json:"media_count"`
}

// commentListResponse wraps a comment listing page. The next cursor arrives as
// a JSON blob inside next_max_id rather than a bare token.
type commentListResponse struct {
	StatusResponse
	Comments  []Comment       `json:"comments"`
	NextMaxID json.RawMessage `json:"next_max_id"`
}

// commentCursor is the structure embedded in a comment page's next_max_id
type commentCursor struct {
	ServerCursor string `json:"server_cursor"`
}

// loginResponse wraps a login attempt
type loginResponse struct {
	StatusResponse
	LoggedInUser User `json:"logged_in_user"`
}
