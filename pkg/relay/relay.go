// Package relay talks to a push-action automation bridge that applies
// follow/unfollow/like actions out-of-band with its own pacing on a real
// device. The only contract is "enqueue this action", with a profile-switch
// priming step when the addressed account differs from the last one.
package relay

import (
	"fmt"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"iggrowth/pkg/logger"
)

// Verbs understood by the bridge
const (
	verbFollow        = "Follow"
	verbUnfollow      = "Unfollow"
	verbLike3Recent   = "Like3Recent"
	verbSwitchProfile = "SwitchProfile"
)

// settle delays give the device time to finish each queued action before the
// next one arrives
var settleDelays = map[string]time.Duration{
	verbFollow:        5 * time.Second,
	verbUnfollow:      7 * time.Second,
	verbLike3Recent:   10 * time.Second,
	verbSwitchProfile: 12 * time.Second,
}

// Sleeper abstracts the settle delays for tests
type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Client enqueues actions on the bridge. Requests are fire-and-forget: the
// bridge's response body carries no actionable information, only transport
// failures matter, and those are retried by the underlying client.
type Client struct {
	baseURL     string
	http        *retryablehttp.Client
	sleeper     Sleeper
	log         logger.Logger
	lastProfile string
}

// Option configures a Client
type Option func(*Client)

// WithSleeper injects the settle-delay sleeper, used by tests
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleeper = s }
}

// New creates a relay client for the given bridge URL
func New(baseURL string, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	hc := retryablehttp.NewClient()
	hc.RetryMax = 3
	hc.RetryWaitMin = 1 * time.Second
	hc.RetryWaitMax = 10 * time.Second
	hc.Logger = nil

	c := &Client{
		baseURL: baseURL,
		http:    hc,
		sleeper: realSleeper{},
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Follow enqueues a follow of username on behalf of account
func (c *Client) Follow(account, username string) error {
	return c.send(account, verbFollow, username)
}

// Unfollow enqueues an unfollow of username on behalf of account
func (c *Client) Unfollow(account, username string) error {
	return c.send(account, verbUnfollow, username)
}

// LikeRecent enqueues likes on username's three most recent posts on behalf
// of account
func (c *Client) LikeRecent(account, username string) error {
	return c.send(account, verbLike3Recent, username)
}

// send primes the device onto account's profile if needed, then enqueues the
// verb and waits out its settle delay
func (c *Client) send(account, verb, arg string) error {
	if c.lastProfile != account {
		if err := c.enqueue(verbSwitchProfile, account); err != nil {
			return err
		}
		c.lastProfile = account
	}
	return c.enqueue(verb, arg)
}

func (c *Client) enqueue(verb, arg string) error {
	u := fmt.Sprintf("%s&message=%s=:=%s", c.baseURL, verb, url.QueryEscape(arg))

	c.log.DebugWithFields("enqueueing relay action", map[string]interface{}{
		"verb": verb, "arg": arg,
	})

	resp, err := c.http.Get(u)
	if err != nil {
		return fmt.Errorf("relay %s failed: %w", verb, err)
	}
	resp.Body.Close()

	if d, ok := settleDelays[verb]; ok {
		c.sleeper.Sleep(d)
	}
	return nil
}
