package instagram

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"iggrowth/pkg/apierr"
	"iggrowth/pkg/logger"
	"iggrowth/pkg/retry"
)

// Client is an authenticated session against the platform's private API. The
// session is cookie-affine: one Client must never be shared across
// goroutines, and all calls are issued sequentially through its executor.
type Client struct {
	httpClient *http.Client
	jar        *cookiejar.Jar
	headers    map[string]string
	baseURL    string
	deviceID   string
	exec       *retry.Executor
	logger     logger.Logger

	account *User
}

// NewClient creates a client with a fresh cookie jar and device identity
func NewClient(timeout time.Duration, exec *retry.Executor, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	jar, _ := cookiejar.New(nil)

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		jar: jar,
		headers: map[string]string{
			"User-Agent":      "Instagram 121.0.0.29.119 Android (26/8.0.0; 480dpi; 1080x1920; samsung; SM-G950F; dreamlte; universal8895; en_US)",
			"Accept":          "*/*",
			"Accept-Language": "en-US",
			"X-IG-Capabilities": "3brTvw==",
			"X-IG-Connection-Type": "WIFI",
		},
		baseURL:  BaseURL,
		deviceID: uuid.NewString(),
		exec:     exec,
		logger:   log,
	}
}

// SetBaseURL overrides the API base URL, used by tests and by deployments
// fronted by a proxy
func (c *Client) SetBaseURL(base string) {
	c.baseURL = strings.TrimSuffix(base, "/")
}

// DeviceID returns the device identity used for this session
func (c *Client) DeviceID() string {
	return c.deviceID
}

// Account returns the logged-in account, nil before login/restore
func (c *Client) Account() *User {
	return c.account
}

// sessionCookies is the serialized form of the session's cookie jar
type sessionCookies struct {
	Cookies []*http.Cookie `json:"cookies"`
}

// ExportSession serializes the cookie jar for persistence on clean shutdown
func (c *Client) ExportSession() ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sessionCookies{Cookies: c.jar.Cookies(u)})
}

// RestoreSession restores a previously exported cookie jar and device
// identity, then resolves the account without re-authenticating. Avoiding a
// fresh login matters: login velocity is itself an anti-automation signal.
func (c *Client) RestoreSession(blob []byte, deviceID, username string) error {
	var sc sessionCookies
	if err := json.Unmarshal(blob, &sc); err != nil {
		return fmt.Errorf("failed to decode session cookies: %w", err)
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	c.jar.SetCookies(u, sc.Cookies)
	if deviceID != "" {
		c.deviceID = deviceID
	}

	account, err := c.GetUser(username)
	if err != nil {
		return fmt.Errorf("failed to resolve account after session restore: %w", err)
	}
	c.account = account
	return nil
}

// Login performs a fresh credential login and captures the session cookies
func (c *Client) Login(username, password string) error {
	c.logger.InfoWithFields("logging in", map[string]interface{}{"username": username})

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	form.Set("device_id", c.deviceID)
	form.Set("guid", c.deviceID)
	form.Set("login_attempt_count", "0")

	resp, err := retry.Do(c.exec, func() (*loginResponse, error) {
		var out loginResponse
		if err := c.request(http.MethodPost, loginURL(c.baseURL), form, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return err
	}

	c.account = &resp.LoggedInUser
	if c.account.Username == "" {
		c.account.Username = username
	}
	return nil
}

// GetUser searches for a user by exact name
func (c *Client) GetUser(username string) (*User, error) {
	c.logger.DebugWithFields("getting user info", map[string]interface{}{"username": username})

	return retry.Do(c.exec, func() (*User, error) {
		var out searchUserResponse
		if err := c.request(http.MethodGet, searchUserURL(c.baseURL, username), nil, &out); err != nil {
			return nil, err
		}
		return &out.User, nil
	})
}

// Followers returns a pager over a user's followers
func (c *Client) Followers(pk int64) *Pager[UserSummary] {
	c.logger.DebugWithFields("getting followers", map[string]interface{}{"pk": pk})

	return NewPager(func(cursor string) (Page[UserSummary], error) {
		out, err := retry.Do(c.exec, func() (*userListResponse, error) {
			var resp userListResponse
			if err := c.request(http.MethodGet, followersURL(c.baseURL, pk, cursor), nil, &resp); err != nil {
				return nil, err
			}
			return &resp, nil
		})
		if err != nil {
			return Page[UserSummary]{}, err
		}
		return Page[UserSummary]{Items: out.Users, NextCursor: out.NextMaxID}, nil
	}, c.logger)
}

// Following returns the complete set of accounts a user follows
func (c *Client) Following(pk int64) ([]UserSummary, error) {
	c.logger.DebugWithFields("getting following", map[string]interface{}{"pk": pk})

	pager := NewPager(func(cursor string) (Page[UserSummary], error) {
		out, err := retry.Do(c.exec, func() (*userListResponse, error) {
			var resp userListResponse
			if err := c.request(http.MethodGet, followingURL(c.baseURL, pk, cursor), nil, &resp); err != nil {
				return nil, err
			}
			return &resp, nil
		})
		if err != nil {
			return Page[UserSummary]{}, err
		}
		return Page[UserSummary]{Items: out.Users, NextCursor: out.NextMaxID}, nil
	}, c.logger)
	return pager.Collect(0)
}

// Follow follows a user by pk
func (c *Client) Follow(pk int64) error {
	c.logger.DebugWithFields("following", map[string]interface{}{"pk": pk})
	return c.mutate(followURL(c.baseURL, pk))
}

// Unfollow unfollows a user by pk
func (c *Client) Unfollow(pk int64) error {
	c.logger.DebugWithFields("unfollowing", map[string]interface{}{"pk": pk})
	return c.mutate(unfollowURL(c.baseURL, pk))
}

// Like likes a media item
func (c *Client) Like(mediaID int64) error {
	c.logger.DebugWithFields("liking media", map[string]interface{}{"media_id": mediaID})
	return c.mutate(likeURL(c.baseURL, mediaID))
}

// mutate issues a state-changing POST with the standard signed form
func (c *Client) mutate(u string) error {
	form := url.Values{}
	form.Set("_uuid", c.deviceID)
	if c.account != nil {
		form.Set("_uid", fmt.Sprintf("%d", c.account.PK))
	}

	_, err := retry.Do(c.exec, func() (*StatusResponse, error) {
		var out StatusResponse
		if err := c.request(http.MethodPost, u, form, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	return err
}

// TopPostsForTag returns a pager over the top-ranked posts for a tag. Only
// ranked items are produced; a page without ranked items ends the sequence.
func (c *Client) TopPostsForTag(tag string) *Pager[FeedItem] {
	c.logger.DebugWithFields("getting top posts", map[string]interface{}{"tag": tag})

	return NewPager(func(cursor string) (Page[FeedItem], error) {
		out, err := retry.Do(c.exec, func() (*tagFeedResponse, error) {
			var resp tagFeedResponse
			if err := c.request(http.MethodGet, tagFeedURL(c.baseURL, tag, cursor), nil, &resp); err != nil {
				return nil, err
			}
			return &resp, nil
		})
		if err != nil {
			return Page[FeedItem]{}, err
		}
		if len(out.RankedItems) == 0 {
			return Page[FeedItem]{}, nil
		}
		return Page[FeedItem]{Items: out.RankedItems, NextCursor: out.NextMaxID}, nil
	}, c.logger)
}

// Likers returns the users who liked a media item
func (c *Client) Likers(mediaID int64) ([]UserSummary, error) {
	c.logger.DebugWithFields("getting likers", map[string]interface{}{"media_id": mediaID})

	out, err := retry.Do(c.exec, func() (*userListResponse, error) {
		var resp userListResponse
		if err := c.request(http.MethodGet, likersURL(c.baseURL, mediaID), nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return nil, err
	}
	return out.Users, nil
}

// UserFeed returns a pager over a user's recent feed, windowed to the last
// thirty days
func (c *Client) UserFeed(pk int64) *Pager[FeedItem] {
	c.logger.DebugWithFields("getting user feed", map[string]interface{}{"pk": pk})

	now := time.Now().UTC()
	minTS := now.AddDate(0, 0, -30).Unix()
	maxTS := now.AddDate(0, 0, 1).Unix()

	return NewPager(func(cursor string) (Page[FeedItem], error) {
		out, err := retry.Do(c.exec, func() (*userFeedResponse, error) {
			var resp userFeedResponse
			if err := c.request(http.MethodGet, userFeedURL(c.baseURL, pk, minTS, maxTS, cursor), nil, &resp); err != nil {
				return nil, err
			}
			return &resp, nil
		})
		if err != nil {
			return Page[FeedItem]{}, err
		}
		return Page[FeedItem]{Items: out.Items, NextCursor: out.NextMaxID}, nil
	}, c.logger)
}

// MediaCountForTag returns the media count for an exactly matching tag, zero
// when the tag is unknown
func (c *Client) MediaCountForTag(tag string) (int, error) {
	out, err := retry.Do(c.exec, func() (*tagSearchResponse, error) {
		var resp tagSearchResponse
		if err := c.request(http.MethodGet, searchTagURL(c.baseURL, tag), nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return 0, err
	}
	for _, result := range out.Results {
		if result.Name == tag {
			return result.MediaCount, nil
		}
	}
	return 0, nil
}

// Comments returns a pager over a media item's comments. The next cursor
// arrives embedded in a JSON blob; an undecodable blob ends the sequence.
func (c *Client) Comments(mediaID int64) *Pager[Comment] {
	c.logger.DebugWithFields("getting comments", map[string]interface{}{"media_id": mediaID})

	return NewPager(func(cursor string) (Page[Comment], error) {
		out, err := retry.Do(c.exec, func() (*commentListResponse, error) {
			var resp commentListResponse
			if err := c.request(http.MethodGet, commentsURL(c.baseURL, mediaID, cursor), nil, &resp); err != nil {
				return nil, err
			}
			return &resp, nil
		})
		if err != nil {
			return Page[Comment]{}, err
		}

		next := decodeCommentCursor(out.NextMaxID)
		return Page[Comment]{Items: out.Comments, NextCursor: next}, nil
	}, c.logger)
}

func decodeCommentCursor(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	// next_max_id is sometimes a bare token, sometimes a JSON blob with a
	// server_cursor field
	var token string
	if err := json.Unmarshal(raw, &token); err == nil {
		var cc commentCursor
		if err := json.Unmarshal([]byte(token), &cc); err == nil && cc.ServerCursor != "" {
			return cc.ServerCursor
		}
		return token
	}
	var cc commentCursor
	if err := json.Unmarshal(raw, &cc); err == nil {
		return cc.ServerCursor
	}
	return ""
}

// enveloped is any decoded response carrying the status envelope
type enveloped interface {
	envelope() *StatusResponse
}

func (s *StatusResponse) envelope() *StatusResponse { return s }

// request performs one complete attempt: send, decode, classify. All errors
// it returns are classified *apierr.Error values for the executor.
func (c *Client) request(method, u string, form url.Values, out enveloped) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return apierr.New(apierr.TypeUnrecognized, "failed to create request: %v", err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ClassifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ClassifyTransportError(err)
	}

	c.logger.DebugWithFields("request completed", map[string]interface{}{
		"method":   method,
		"url":      u,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	if err := json.Unmarshal(raw, out); err != nil {
		return ClassifyTransportError(err)
	}

	if clsErr := ClassifyResponse(out.envelope(), string(raw)); clsErr != nil {
		return clsErr
	}
	return nil
}
