package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Obsolete-Robot/openclaw-pipeline/internal/router"
)

func TestNewValidation(t *testing.T) {
	_, err := New("", "xoxb-obs", "C1", 0)
	assert.Error(t, err, "actor token required")
	_, err = New("xoxb-act", "", "C1", 0)
	assert.Error(t, err, "observer token required")
	_, err = New("xoxb-act", "xoxb-obs", "", 0)
	assert.Error(t, err, "channel required")

	b, err := New("xoxb-act", "xoxb-obs", "C1", 0)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, b.timeout)
}

func TestIdentitySelectsClient(t *testing.T) {
	b, err := New("xoxb-act", "xoxb-obs", "C1", time.Second)
	require.NoError(t, err)

	assert.Same(t, b.actor, b.client(router.IdentityActor))
	assert.Same(t, b.observer, b.client(router.IdentityObserver))
	assert.Same(t, b.observer, b.client(router.Identity("unknown")), "unknown identities inform, never provoke")
}

func TestSplitHandle(t *testing.T) {
	channel, ts, isThread := splitHandle("C123:1724.0001")
	assert.True(t, isThread)
	assert.Equal(t, "C123", channel)
	assert.Equal(t, "1724.0001", ts)

	channel, ts, isThread = splitHandle("C123")
	assert.False(t, isThread)
	assert.Equal(t, "C123", channel)
	assert.Empty(t, ts)
}

func TestReactionFor(t *testing.T) {
	assert.Equal(t, "white_check_mark", reactionFor("resolved"))
	assert.Equal(t, "beetle", reactionFor("bug"))
	assert.Equal(t, "sparkles", reactionFor("feature"))
	assert.Equal(t, "clipboard", reactionFor("task"))
	assert.Equal(t, "eyes", reactionFor("eyes"), "unmapped tags pass through")
}
