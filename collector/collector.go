// Package collector pulls channel history from the Slack Web API and hands
// the core anonymized raw events. Pagination, rate limiting, bot filtering,
// and identity anonymization all happen here, so no real user identity or
// undiluted message ever crosses into storage or reports.
package collector

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/theimaginaryfoundation/engagement-pulse/pulse"
)

// slackAPI is the slice of the Slack client the collector uses; *slack.Client
// satisfies it.
type slackAPI interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
}

const historyPageSize = 200

// Collector implements pulse.ChannelHistory against Slack.
type Collector struct {
	api            slackAPI
	log            logrus.FieldLogger
	rateLimitDelay time.Duration

	// salt keys the per-run author anonymization. A fresh random salt per
	// collector means tokens are stable within a run but not across runs.
	salt []byte

	// channelIDs caches #name -> ID lookups for the collector's lifetime.
	channelIDs map[string]string
}

// Option configures a Collector.
type Option func(*Collector)

// WithRateLimitDelay sets the pause between paginated Slack calls.
func WithRateLimitDelay(d time.Duration) Option {
	return func(c *Collector) { c.rateLimitDelay = d }
}

// WithLogger overrides the default logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Collector) { c.log = log }
}

// withAPI swaps the Slack client; used by tests.
func withAPI(api slackAPI) Option {
	return func(c *Collector) { c.api = api }
}

// New builds a collector for the given bot token.
func New(token string, opts ...Option) (*Collector, error) {
	if token == "" {
		return nil, fmt.Errorf("collector: missing Slack token")
	}

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("collector: generate salt: %w", err)
	}

	c := &Collector{
		api:            slack.New(token),
		log:            logrus.StandardLogger(),
		rateLimitDelay: time.Second,
		salt:           salt,
		channelIDs:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TestConnection verifies the token with auth.test before a run starts.
func (c *Collector) TestConnection(ctx context.Context) error {
	resp, err := c.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("collector: auth test: %w", err)
	}
	c.log.WithField("user", resp.User).Info("connected to Slack")
	return nil
}

// ResolveChannels maps "#name" channel names to IDs, paging through the
// conversations list. Names that cannot be found are logged and omitted.
func (c *Collector) ResolveChannels(ctx context.Context, names []string) (map[string]string, error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.TrimPrefix(n, "#")] = true
	}

	found := make(map[string]string, len(names))
	cursor := ""
	for {
		channels, next, err := c.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Types:           []string{"public_channel", "private_channel"},
			ExcludeArchived: true,
			Limit:           historyPageSize,
			Cursor:          cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("collector: list conversations: %w", err)
		}
		for _, ch := range channels {
			if wanted[ch.Name] {
				found["#"+ch.Name] = ch.ID
				c.channelIDs["#"+ch.Name] = ch.ID
			}
		}
		if next == "" || len(found) == len(wanted) {
			break
		}
		cursor = next
		c.pause(ctx)
	}

	for _, n := range names {
		if _, ok := found[normalizeName(n)]; !ok {
			c.log.WithField("channel", n).Warn("channel not found or not accessible")
		}
	}
	return found, nil
}

func normalizeName(n string) string {
	return "#" + strings.TrimPrefix(n, "#")
}

// CollectEvents implements pulse.ChannelHistory: it resolves the channel,
// pages through its history over [from, to), and emits anonymized message
// and reaction events in timestamp order.
func (c *Collector) CollectEvents(ctx context.Context, channel string, from, to time.Time) ([]pulse.RawEvent, error) {
	id, err := c.channelID(ctx, channel)
	if err != nil {
		return nil, err
	}

	var events []pulse.RawEvent
	cursor := ""
	for {
		resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: id,
			Oldest:    slackTimestamp(from),
			Latest:    slackTimestamp(to),
			Limit:     historyPageSize,
			Cursor:    cursor,
		})
		if err != nil {
			return nil, fmt.Errorf("collector: history %s: %w", channel, err)
		}

		for _, msg := range resp.Messages {
			events = append(events, c.messageEvents(channel, msg)...)
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.ResponseMetaData.NextCursor
		if cursor == "" {
			break
		}
		c.pause(ctx)
	}

	// History pages arrive newest-first; the core expects time order.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	c.log.WithFields(logrus.Fields{"channel": channel, "events": len(events)}).Info("collected channel history")
	return events, nil
}

// messageEvents converts one Slack message (and its reactions) into raw
// events. Bot posts, system subtypes, and empty messages are skipped.
func (c *Collector) messageEvents(channel string, msg slack.Message) []pulse.RawEvent {
	if msg.BotID != "" || msg.SubType != "" || msg.Type != "message" {
		return nil
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	ts, err := parseSlackTimestamp(msg.Timestamp)
	if err != nil {
		return nil
	}

	events := []pulse.RawEvent{{
		ChannelID:   channel,
		Timestamp:   ts,
		Kind:        pulse.KindMessage,
		Body:        text,
		AuthorToken: c.anonymize(msg.User),
	}}

	for _, reaction := range msg.Reactions {
		if len(reaction.Users) > 0 {
			for _, u := range reaction.Users {
				events = append(events, pulse.RawEvent{
					ChannelID:   channel,
					Timestamp:   ts,
					Kind:        pulse.KindReaction,
					Body:        reaction.Name,
					AuthorToken: c.anonymize(u),
				})
			}
			continue
		}
		for i := 0; i < reaction.Count; i++ {
			events = append(events, pulse.RawEvent{
				ChannelID: channel,
				Timestamp: ts,
				Kind:      pulse.KindReaction,
				Body:      reaction.Name,
			})
		}
	}
	return events
}

func (c *Collector) channelID(ctx context.Context, channel string) (string, error) {
	name := normalizeName(channel)
	if id, ok := c.channelIDs[name]; ok {
		return id, nil
	}
	found, err := c.ResolveChannels(ctx, []string{name})
	if err != nil {
		return "", err
	}
	id, ok := found[name]
	if !ok {
		return "", fmt.Errorf("collector: channel %s not found", channel)
	}
	return id, nil
}

// anonymize turns a Slack user ID into an opaque, non-reversible token.
func (c *Collector) anonymize(userID string) string {
	if userID == "" {
		return ""
	}
	mac := hmac.New(sha256.New, c.salt)
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}

func (c *Collector) pause(ctx context.Context) {
	if c.rateLimitDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(c.rateLimitDelay):
	}
}

func slackTimestamp(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

func parseSlackTimestamp(ts string) (time.Time, error) {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil || f <= 0 {
		return time.Time{}, fmt.Errorf("bad slack timestamp %q", ts)
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC(), nil
}
