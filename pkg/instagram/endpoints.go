package instagram

import (
	"fmt"
	"net/url"
)

const (
	// BaseURL is the base URL for the private API
	BaseURL = "https://i.instagram.com/api/v1"
)

// withMaxID appends a pagination cursor to a URL when one is present
func withMaxID(base string, maxID string) string {
	if maxID == "" {
		return base
	}
	sep := "?"
	if u, err := url.Parse(base); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return fmt.Sprintf("%s%smax_id=%s", base, sep, url.QueryEscape(maxID))
}

// searchUserURL constructs the URL for searching a user by name
func searchUserURL(base, username string) string {
	params := url.Values{}
	params.Set("q", username)
	return fmt.Sprintf("%s/users/search/?%s", base, params.Encode())
}

// followersURL constructs the URL for a page of a user's followers
func followersURL(base string, pk int64, maxID string) string {
	return withMaxID(fmt.Sprintf("%s/friendships/%d/followers/", base, pk), maxID)
}

// followingURL constructs the URL for the accounts a user follows
func followingURL(base string, pk int64, maxID string) string {
	return withMaxID(fmt.Sprintf("%s/friendships/%d/following/", base, pk), maxID)
}

// followURL constructs the URL for following a user
func followURL(base string, pk int64) string {
	return fmt.Sprintf("%s/friendships/create/%d/", base, pk)
}

// unfollowURL constructs the URL for unfollowing a user
func unfollowURL(base string, pk int64) string {
	return fmt.Sprintf("%s/friendships/destroy/%d/", base, pk)
}

// likeURL constructs the URL for liking a media item
func likeURL(base string, mediaID int64) string {
	return fmt.Sprintf("%s/media/%d/like/", base, mediaID)
}

// tagFeedURL constructs the URL for a page of a tag's feed
func tagFeedURL(base, tag string, maxID string) string {
	return withMaxID(fmt.Sprintf("%s/feed/tag/%s/", base, url.PathEscape(tag)), maxID)
}

// likersURL constructs the URL for a media item's likers
func likersURL(base string, mediaID int64) string {
	return fmt.Sprintf("%s/media/%d/likers/", base, mediaID)
}

// userFeedURL constructs the URL for a page of a user's feed within a window
func userFeedURL(base string, pk int64, minTimestamp, maxTimestamp int64, maxID string) string {
	params := url.Values{}
	params.Set("min_timestamp", fmt.Sprintf("%d", minTimestamp))
	params.Set("max_timestamp", fmt.Sprintf("%d", maxTimestamp))
	return withMaxID(fmt.Sprintf("%s/feed/user/%d/?%s", base, pk, params.Encode()), maxID)
}

// searchTagURL constructs the URL for searching tags
func searchTagURL(base, tag string) string {
	params := url.Values{}
	params.Set("q", tag)
	return fmt.Sprintf("%s/tags/search/?%s", base, params.Encode())
}

// commentsURL constructs the URL for a page of a media item's comments
func commentsURL(base string, mediaID int64, maxID string) string {
	return withMaxID(fmt.Sprintf("%s/media/%d/comments/", base, mediaID), maxID)
}

// loginURL constructs the login URL
func loginURL(base string) string {
	return fmt.Sprintf("%s/accounts/login/", base)
}
