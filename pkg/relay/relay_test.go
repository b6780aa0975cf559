package relay

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noSleep struct {
	slept []time.Duration
}

func (n *noSleep) Sleep(d time.Duration) { n.slept = append(n.slept, d) }

// newTestRelay records every message the bridge receives
func newTestRelay(t *testing.T) (*Client, *noSleep, *[]string) {
	t.Helper()

	var messages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		messages = append(messages, r.URL.Query().Get("message"))
	}))
	t.Cleanup(server.Close)

	sleeper := &noSleep{}
	client := New(server.URL+"/?key=k", nil, WithSleeper(sleeper))
	return client, sleeper, &messages
}

func TestFollowPrimesProfileSwitch(t *testing.T) {
	client, _, messages := newTestRelay(t)

	require.NoError(t, client.Follow("myaccount", "target"))
	assert.Equal(t, []string{
		"SwitchProfile=:=myaccount",
		"Follow=:=target",
	}, *messages)
}

func TestSameAccountSwitchesOnlyOnce(t *testing.T) {
	client, _, messages := newTestRelay(t)

	require.NoError(t, client.Follow("myaccount", "a"))
	require.NoError(t, client.Unfollow("myaccount", "b"))
	require.NoError(t, client.LikeRecent("myaccount", "c"))

	assert.Equal(t, []string{
		"SwitchProfile=:=myaccount",
		"Follow=:=a",
		"Unfollow=:=b",
		"Like3Recent=:=c",
	}, *messages)
}

func TestAccountChangeSwitchesAgain(t *testing.T) {
	client, _, messages := newTestRelay(t)

	require.NoError(t, client.Follow("first", "a"))
	require.NoError(t, client.Follow("second", "b"))

	assert.Equal(t, []string{
		"SwitchProfile=:=first",
		"Follow=:=a",
		"SwitchProfile=:=second",
		"Follow=:=b",
	}, *messages)
}

func TestSettleDelaysPerVerb(t *testing.T) {
	client, sleeper, _ := newTestRelay(t)

	require.NoError(t, client.LikeRecent("myaccount", "target"))

	// switch-profile settle, then like settle
	assert.Equal(t, []time.Duration{12 * time.Second, 10 * time.Second}, sleeper.slept)
}

func TestBridgeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := New(server.URL+"/?key=k", nil, WithSleeper(&noSleep{}))
	// keep the test fast
	client.http.RetryMax = 0

	err := client.Follow("myaccount", "target")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SwitchProfile")
}
