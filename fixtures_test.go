package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixtureTweet describes one tweet_results.result object.
type fixtureTweet struct {
	ID, UserID, Username, Name string
	Text                       string
	CreatedAt                  string
	ConversationID             string
	ReplyTo                    string
	DisplayType                string
	Views                      string
	Quoted                     *fixtureTweet
	Retweeted                  *fixtureTweet
	// Legacy is merged into the legacy object last.
	Legacy map[string]any
}

func (f fixtureTweet) result() map[string]any {
	conv := f.ConversationID
	if conv == "" {
		conv = f.ID
	}
	created := f.CreatedAt
	if created == "" {
		created = "Wed Oct 26 18:31:20 +0000 2022"
	}
	legacy := map[string]any{
		"id_str":              f.ID,
		"conversation_id_str": conv,
		"created_at":          created,
		"full_text":           f.Text,
		"user_id_str":         f.UserID,
		"favorite_count":      3,
		"reply_count":         1,
		"retweet_count":       2,
		"entities":            map[string]any{"hashtags": []any{}, "user_mentions": []any{}, "urls": []any{}},
	}
	r := map[string]any{
		"__typename": "Tweet",
		"rest_id":    f.ID,
		"core": map[string]any{"user_results": map[string]any{"result": map[string]any{
			"__typename": "User",
			"rest_id":    f.UserID,
			"legacy":     map[string]any{"screen_name": f.Username, "name": f.Name},
		}}},
	}
	if f.ReplyTo != "" {
		legacy["in_reply_to_status_id_str"] = f.ReplyTo
	}
	if f.Quoted != nil {
		legacy["quoted_status_id_str"] = f.Quoted.ID
		r["quoted_status_result"] = map[string]any{"result": f.Quoted.result()}
	}
	if f.Retweeted != nil {
		legacy["retweeted_status_id_str"] = f.Retweeted.ID
		legacy["retweeted_status_result"] = map[string]any{"result": f.Retweeted.result()}
	}
	if f.Views != "" {
		r["views"] = map[string]any{"count": f.Views, "state": "EnabledWithCount"}
	}
	maps.Copy(legacy, f.Legacy)
	r["legacy"] = legacy
	return r
}

func (f fixtureTweet) itemContent() map[string]any {
	display := f.DisplayType
	if display == "" {
		display = "Tweet"
	}
	return map[string]any{
		"itemType":         "TimelineTweet",
		"__typename":       "TimelineTweet",
		"tweetDisplayType": display,
		"tweet_results":    map[string]any{"result": f.result()},
	}
}

func (f fixtureTweet) entry() map[string]any {
	return map[string]any{
		"entryId":   "tweet-" + f.ID,
		"sortIndex": f.ID,
		"content": map[string]any{
			"entryType":   "TimelineTimelineItem",
			"__typename":  "TimelineTimelineItem",
			"itemContent": f.itemContent(),
		},
	}
}

// moduleEntry groups tweets the way conversation threads arrive.
func moduleEntry(id string, tweets ...fixtureTweet) map[string]any {
	items := make([]any, 0, len(tweets))
	for _, t := range tweets {
		items = append(items, map[string]any{
			"entryId": id + "-tweet-" + t.ID,
			"item":    map[string]any{"itemContent": t.itemContent()},
		})
	}
	return map[string]any{
		"entryId": id,
		"content": map[string]any{
			"entryType":  "TimelineTimelineModule",
			"__typename": "TimelineTimelineModule",
			"items":      items,
		},
	}
}

func cursorEntry(kind, value string) map[string]any {
	return map[string]any{
		"entryId": "cursor-" + strings.ToLower(kind) + "-" + value,
		"content": map[string]any{
			"entryType":  "TimelineTimelineCursor",
			"__typename": "TimelineTimelineCursor",
			"value":      value,
			"cursorType": kind,
		},
	}
}

// timelineKind selects where the timeline object is nested in the response.
type timelineKind int

const (
	userTimeline timelineKind = iota
	listTimeline
	searchTimeline
	conversationTimeline
)

func addEntries(entries ...map[string]any) map[string]any {
	list := make([]any, 0, len(entries))
	for _, e := range entries {
		list = append(list, e)
	}
	return map[string]any{"type": "TimelineAddEntries", "entries": list}
}

func timelineBody(t testing.TB, kind timelineKind, instructions ...map[string]any) []byte {
	t.Helper()
	list := make([]any, 0, len(instructions))
	for _, in := range instructions {
		list = append(list, in)
	}
	tl := map[string]any{"instructions": list}

	var data map[string]any
	switch kind {
	case userTimeline:
		data = map[string]any{"user": map[string]any{"result": map[string]any{
			"__typename":  "User",
			"timeline_v2": map[string]any{"timeline": tl},
		}}}
	case listTimeline:
		data = map[string]any{"list": map[string]any{"tweets_timeline": map[string]any{"timeline": tl}}}
	case searchTimeline:
		data = map[string]any{"search_by_raw_query": map[string]any{"search_timeline": map[string]any{"timeline": tl}}}
	case conversationTimeline:
		data = map[string]any{"threaded_conversation_with_injections_v2": tl}
	}
	b, err := json.Marshal(map[string]any{"data": data})
	require.NoError(t, err)
	return b
}

// decodeOne decodes a single-entry page and returns its raw tweet.
func decodeOne(t testing.TB, f fixtureTweet) RawTweet {
	t.Helper()
	page, err := DecodeTimelinePage(timelineBody(t, userTimeline, addEntries(f.entry())))
	require.NoError(t, err)
	require.Len(t, page.Tweets, 1)
	return page.Tweets[0]
}

func normalizeOne(t testing.TB, f fixtureTweet) *Tweet {
	t.Helper()
	tw, err := Normalize(decodeOne(t, f))
	require.NoError(t, err)
	return tw
}

// plainTweets returns n distinct tweets by one author, ids start..start+n-1.
func plainTweets(start, n int) []fixtureTweet {
	out := make([]fixtureTweet, n)
	for i := range out {
		id := fmt.Sprint(start + i)
		out[i] = fixtureTweet{ID: id, UserID: "44196397", Username: "elonmusk", Name: "Elon Musk", Text: "tweet " + id}
	}
	return out
}

func tweetEntries(tweets []fixtureTweet) []map[string]any {
	out := make([]map[string]any, len(tweets))
	for i, f := range tweets {
		out[i] = f.entry()
	}
	return out
}

// fakeTransport serves canned bodies by operation and records every request.
type fakeTransport struct {
	mu      sync.Mutex
	handler func(operation string, variables map[string]any) ([]byte, error)
	calls   []fakeCall
}

type fakeCall struct {
	Operation string
	Variables map[string]any
}

func (f *fakeTransport) Get(_ context.Context, operation, url string) ([]byte, error) {
	vars := variablesFromURL(url)
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{Operation: operation, Variables: vars})
	f.mu.Unlock()
	return f.handler(operation, vars)
}

func (f *fakeTransport) count(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Operation == operation {
			n++
		}
	}
	return n
}

// variablesFromURL decodes the GraphQL variables query parameter.
func variablesFromURL(raw string) map[string]any {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	var vars map[string]any
	if json.Unmarshal([]byte(u.Query().Get("variables")), &vars) != nil {
		return nil
	}
	return vars
}
