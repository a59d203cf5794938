// Package board implements the Slack-backed discussion board.
//
// Each issue gets a dedicated thread: a parent message in the project
// channel whose replies carry the issue's lifecycle traffic. The thread
// handle is "<channelID>:<timestamp>" of the parent message.
//
// Two tokens back two sender identities. The actor bot posts messages
// workers are expected to act on; the observer bot posts informational
// broadcasts that must never re-trigger a worker (a worker reacting to
// its own completion message would loop).
package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/Obsolete-Robot/openclaw-pipeline/internal/router"
)

// Slack is a router.Board backed by the Slack Web API.
type Slack struct {
	actor    *slack.Client
	observer *slack.Client
	channel  string // project channel hosting issue threads
	timeout  time.Duration
}

// New creates a Slack board. actorToken and observerToken are the two
// bot tokens; channelID is the project channel that hosts issue threads.
func New(actorToken, observerToken, channelID string, timeout time.Duration) (*Slack, error) {
	if actorToken == "" || observerToken == "" {
		return nil, fmt.Errorf("both actor and observer tokens are required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("board channel is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Slack{
		actor:    slack.New(actorToken),
		observer: slack.New(observerToken),
		channel:  channelID,
		timeout:  timeout,
	}, nil
}

func (s *Slack) client(identity router.Identity) *slack.Client {
	if identity == router.IdentityActor {
		return s.actor
	}
	return s.observer
}

// CreateThread posts the thread parent message and returns its handle.
// The parent always goes out as the observer: opening a thread is
// informational, the assignment message inside it is what provokes work.
func (s *Slack) CreateThread(ctx context.Context, title, body string, tags []string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text := title
	if body != "" {
		text += "\n" + body
	}
	channel, ts, err := s.observer.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	handle := channel + ":" + ts
	for _, tag := range tags {
		// Tags are reactions on the parent message; a failed tag does
		// not fail thread creation.
		_ = s.observer.AddReactionContext(ctx, reactionFor(tag), slack.NewRefToMessage(channel, ts))
	}
	return handle, nil
}

// PostMessage delivers one message as the given identity. destination is
// a thread handle ("channel:ts") or a bare channel ID.
func (s *Slack) PostMessage(ctx context.Context, destination, body string, identity router.Identity) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	channel, threadTS, isThread := splitHandle(destination)
	opts := []slack.MsgOption{slack.MsgOptionText(body, false)}
	if isThread {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	if _, _, err := s.client(identity).PostMessageContext(ctx, channel, opts...); err != nil {
		return fmt.Errorf("failed to post to %s: %w", destination, err)
	}
	return nil
}

// ArchiveThread marks the thread finished: a closing reply plus a lock
// reaction on the parent. Slack has no per-thread archival, so this is
// the convention readers and bots key off.
func (s *Slack) ArchiveThread(ctx context.Context, thread string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	channel, ts, isThread := splitHandle(thread)
	if !isThread {
		return fmt.Errorf("not a thread handle: %s", thread)
	}
	if _, _, err := s.observer.PostMessageContext(ctx, channel,
		slack.MsgOptionText("This thread is archived.", false),
		slack.MsgOptionTS(ts)); err != nil {
		return fmt.Errorf("failed to archive thread: %w", err)
	}
	if err := s.observer.AddReactionContext(ctx, "lock", slack.NewRefToMessage(channel, ts)); err != nil {
		return fmt.Errorf("failed to lock thread: %w", err)
	}
	return nil
}

// ApplyTag attaches a tag to the thread parent as a reaction.
func (s *Slack) ApplyTag(ctx context.Context, thread, tag string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	channel, ts, isThread := splitHandle(thread)
	if !isThread {
		return fmt.Errorf("not a thread handle: %s", thread)
	}
	if err := s.observer.AddReactionContext(ctx, reactionFor(tag), slack.NewRefToMessage(channel, ts)); err != nil {
		return fmt.Errorf("failed to tag thread: %w", err)
	}
	return nil
}

// splitHandle splits "channel:ts" thread handles; a bare channel ID has
// no colon and addresses the channel top level.
func splitHandle(destination string) (channel, ts string, isThread bool) {
	if i := strings.IndexByte(destination, ':'); i >= 0 {
		return destination[:i], destination[i+1:], true
	}
	return destination, "", false
}

// reactionFor maps tags to reaction names.
func reactionFor(tag string) string {
	switch tag {
	case "resolved":
		return "white_check_mark"
	case "bug":
		return "beetle"
	case "feature":
		return "sparkles"
	case "task":
		return "clipboard"
	}
	return tag
}
