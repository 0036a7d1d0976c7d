package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/engagement-pulse/pulse"
)

type fakeSlack struct {
	authErr  error
	channels []slack.Channel

	// pages are returned in order by GetConversationHistoryContext.
	pages      []*slack.GetConversationHistoryResponse
	page       int
	historyErr error
}

func (f *fakeSlack) AuthTestContext(context.Context) (*slack.AuthTestResponse, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &slack.AuthTestResponse{User: "pulse-bot"}, nil
}

func (f *fakeSlack) GetConversationsContext(_ context.Context, _ *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	return f.channels, "", nil
}

func (f *fakeSlack) GetConversationHistoryContext(_ context.Context, _ *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	if f.page >= len(f.pages) {
		return &slack.GetConversationHistoryResponse{}, nil
	}
	resp := f.pages[f.page]
	f.page++
	return resp, nil
}

func namedChannel(id, name string) slack.Channel {
	ch := slack.Channel{}
	ch.ID = id
	ch.Name = name
	return ch
}

func message(ts, user, text string) slack.Message {
	m := slack.Message{}
	m.Type = "message"
	m.Timestamp = ts
	m.User = user
	m.Text = text
	return m
}

func newTestCollector(t *testing.T, api slackAPI) *Collector {
	t.Helper()
	c, err := New("xoxb-test", withAPI(api), WithRateLimitDelay(0))
	require.NoError(t, err)
	return c
}

func TestNew_RequiresToken(t *testing.T) {
	t.Parallel()

	_, err := New("")
	require.Error(t, err)
}

func TestTestConnection(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t, &fakeSlack{})
	require.NoError(t, c.TestConnection(context.Background()))

	bad := newTestCollector(t, &fakeSlack{authErr: errors.New("invalid_auth")})
	require.Error(t, bad.TestConnection(context.Background()))
}

func TestResolveChannels(t *testing.T) {
	t.Parallel()

	api := &fakeSlack{channels: []slack.Channel{
		namedChannel("C001", "general"),
		namedChannel("C002", "random"),
	}}
	c := newTestCollector(t, api)

	found, err := c.ResolveChannels(context.Background(), []string{"#general", "random", "#missing"})
	require.NoError(t, err)
	assert.Equal(t, "C001", found["#general"])
	assert.Equal(t, "C002", found["#random"])
	_, ok := found["#missing"]
	assert.False(t, ok)
}

func TestCollectEvents(t *testing.T) {
	t.Parallel()

	// Slack returns newest-first; the collector must reverse into time order.
	newer := message("1767312000.000200", "U2", "shipping went great")
	older := message("1767225600.000100", "U1", "totally exhausted today")
	older.Reactions = []slack.ItemReaction{
		{Name: "tada", Count: 2, Users: []string{"U2", "U3"}},
	}

	api := &fakeSlack{
		channels: []slack.Channel{namedChannel("C001", "general")},
		pages: []*slack.GetConversationHistoryResponse{
			{Messages: []slack.Message{newer, older}},
		},
	}
	c := newTestCollector(t, api)

	from := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	to := from.Add(72 * time.Hour)
	events, err := c.CollectEvents(context.Background(), "#general", from, to)
	require.NoError(t, err)
	require.Len(t, events, 4) // 2 messages + 2 reaction users

	// Time order: the older message (and its reactions) come first.
	assert.Equal(t, pulse.KindMessage, events[len(events)-1].Kind)
	assert.Equal(t, "shipping went great", events[len(events)-1].Body)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp),
			"events out of time order at %d", i)
	}

	kinds := map[pulse.EventKind]int{}
	for _, ev := range events {
		assert.Equal(t, "#general", ev.ChannelID)
		kinds[ev.Kind]++
	}
	assert.Equal(t, 2, kinds[pulse.KindMessage])
	assert.Equal(t, 2, kinds[pulse.KindReaction])
}

func TestCollectEvents_Pagination(t *testing.T) {
	t.Parallel()

	page1 := &slack.GetConversationHistoryResponse{
		Messages: []slack.Message{message("1767312000.000300", "U1", "later message")},
		HasMore:  true,
	}
	page1.ResponseMetaData.NextCursor = "cursor-2"
	page2 := &slack.GetConversationHistoryResponse{
		Messages: []slack.Message{message("1767225600.000100", "U2", "earlier message")},
	}

	api := &fakeSlack{
		channels: []slack.Channel{namedChannel("C001", "general")},
		pages:    []*slack.GetConversationHistoryResponse{page1, page2},
	}
	c := newTestCollector(t, api)

	events, err := c.CollectEvents(context.Background(), "#general",
		time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "earlier message", events[0].Body)
	assert.Equal(t, "later message", events[1].Body)
	assert.Equal(t, 2, api.page)
}

func TestCollectEvents_FiltersBotsAndSubtypes(t *testing.T) {
	t.Parallel()

	human := message("1767225600.000100", "U1", "hello team")

	bot := message("1767225601.000100", "", "automated notice")
	bot.BotID = "B123"

	joined := message("1767225602.000100", "U2", "U2 has joined the channel")
	joined.SubType = "channel_join"

	empty := message("1767225603.000100", "U3", "   ")

	api := &fakeSlack{
		channels: []slack.Channel{namedChannel("C001", "general")},
		pages: []*slack.GetConversationHistoryResponse{
			{Messages: []slack.Message{empty, joined, bot, human}},
		},
	}
	c := newTestCollector(t, api)

	events, err := c.CollectEvents(context.Background(), "#general",
		time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "hello team", events[0].Body)
}

func TestCollectEvents_AnonymizesAuthors(t *testing.T) {
	t.Parallel()

	api := &fakeSlack{
		channels: []slack.Channel{namedChannel("C001", "general")},
		pages: []*slack.GetConversationHistoryResponse{
			{Messages: []slack.Message{
				message("1767225601.000100", "U111AAA", "second"),
				message("1767225600.000100", "U111AAA", "first"),
			}},
		},
	}
	c := newTestCollector(t, api)

	events, err := c.CollectEvents(context.Background(), "#general",
		time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.NotEqual(t, "U111AAA", events[0].AuthorToken)
	assert.NotContains(t, events[0].AuthorToken, "U111AAA")
	assert.Equal(t, events[0].AuthorToken, events[1].AuthorToken, "same user must map to the same token within a run")
	assert.Len(t, events[0].AuthorToken, 16)
}

func TestCollectEvents_UnknownChannel(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t, &fakeSlack{})
	_, err := c.CollectEvents(context.Background(), "#nope", time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
}

func TestParseSlackTimestamp(t *testing.T) {
	t.Parallel()

	ts, err := parseSlackTimestamp("1767225600.000100")
	require.NoError(t, err)
	assert.Equal(t, 2026, ts.Year())

	_, err = parseSlackTimestamp("not-a-number")
	require.Error(t, err)
	_, err = parseSlackTimestamp("0")
	require.Error(t, err)
}
