package twitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTimelinePage_Paths(t *testing.T) {
	tweets := plainTweets(100, 2)
	for _, tc := range []struct {
		name string
		kind timelineKind
	}{
		{"user timeline", userTimeline},
		{"list timeline", listTimeline},
		{"search timeline", searchTimeline},
		{"conversation", conversationTimeline},
	} {
		t.Run(tc.name, func(t *testing.T) {
			body := timelineBody(t, tc.kind, addEntries(append(tweetEntries(tweets), cursorEntry("Top", "T1"), cursorEntry("Bottom", "B1"))...))
			page, err := DecodeTimelinePage(body)
			require.NoError(t, err)
			require.Len(t, page.Tweets, 2)
			assert.Equal(t, "tweet-100", page.Tweets[0].EntryID)
			assert.Equal(t, "B1", page.Next)
		})
	}
}

func TestDecodeTimelinePage_LegacyUserTimelinePath(t *testing.T) {
	body := []byte(`{"data":{"user":{"result":{"timeline":{"timeline":{"instructions":[
		{"type":"TimelineAddEntries","entries":[
			{"entryId":"cursor-bottom-0","content":{"entryType":"TimelineTimelineCursor","value":"NEXT"}}
		]}]}}}}}}`)
	page, err := DecodeTimelinePage(body)
	require.NoError(t, err)
	assert.Empty(t, page.Tweets)
	assert.Equal(t, "NEXT", page.Next)
}

func TestDecodeTimelinePage_PinAndReplaceEntry(t *testing.T) {
	pinned, latest := plainTweets(1, 2)[0], plainTweets(1, 2)[1]
	body := timelineBody(t, searchTimeline,
		map[string]any{"type": "TimelineClearCache"},
		map[string]any{"type": "TimelinePinEntry", "entry": pinned.entry()},
		addEntries(latest.entry()),
		map[string]any{"type": "TimelineReplaceEntry", "entry": cursorEntry("Bottom", "REPLACED")},
	)
	page, err := DecodeTimelinePage(body)
	require.NoError(t, err)
	require.Len(t, page.Tweets, 2)
	assert.True(t, page.Tweets[0].Pinned)
	assert.False(t, page.Tweets[1].Pinned)
	assert.Equal(t, "REPLACED", page.Next)
}

func TestDecodeTimelinePage_ModulesAndSkippedItems(t *testing.T) {
	a, b := plainTweets(10, 2)[0], plainTweets(10, 2)[1]
	a.DisplayType = "SelfThread"
	tombstone := map[string]any{
		"entryId": "tweet-tomb",
		"content": map[string]any{
			"entryType": "TimelineTimelineItem",
			"itemContent": map[string]any{
				"__typename":    "TimelineTweet",
				"tweet_results": map[string]any{"result": map[string]any{"__typename": "TweetTombstone"}},
			},
		},
	}
	who := map[string]any{
		"entryId": "who-to-follow",
		"content": map[string]any{
			"entryType":   "TimelineTimelineItem",
			"itemContent": map[string]any{"__typename": "TimelineUser"},
		},
	}
	body := timelineBody(t, conversationTimeline, addEntries(tombstone, who, moduleEntry("conversationthread-1", a, b)))

	page, err := DecodeTimelinePage(body)
	require.NoError(t, err)
	require.Len(t, page.Tweets, 2)
	assert.Equal(t, "conversationthread-1-tweet-10", page.Tweets[0].EntryID)
	assert.Equal(t, "SelfThread", page.Tweets[0].DisplayType)
	assert.Empty(t, page.Next)
}

func TestDecodeTimelinePage_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `<html>`, "not valid JSON"},
		{"unknown shape", `{"data":{"viewer":{}}}`, "no timeline instructions"},
		{"upstream error", `{"errors":[{"message":"Rate limit exceeded","code":88}]}`, "Rate limit exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTimelinePage([]byte(tt.body))
			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeTimelinePage_UndecodableItemSurfacesOnNormalize(t *testing.T) {
	body := []byte(`{"data":{"list":{"tweets_timeline":{"timeline":{"instructions":[
		{"type":"TimelineAddEntries","entries":[
			{"entryId":"tweet-1","content":{"entryType":"TimelineTimelineItem","itemContent":["not","an","object"]}}
		]}]}}}}}`)
	page, err := DecodeTimelinePage(body)
	require.NoError(t, err)
	require.Len(t, page.Tweets, 1)

	_, err = Normalize(page.Tweets[0])
	var malformed *MalformedTweetError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "tweet-1", malformed.EntryID)
}
