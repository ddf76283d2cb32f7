package twitter

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/buger/jsonparser"
)

// timelinePaths lists where each GraphQL operation nests its timeline object.
var timelinePaths = [][]string{
	{"data", "user", "result", "timeline_v2", "timeline"},
	{"data", "user", "result", "timeline", "timeline"},
	{"data", "list", "tweets_timeline", "timeline"},
	{"data", "search_by_raw_query", "search_timeline", "timeline"},
	{"data", "threaded_conversation_with_injections_v2"},
}

// RawTweet is one tweet-like timeline entry before normalization.
type RawTweet struct {
	EntryID string
	// DisplayType is the entry's tweetDisplayType, e.g. "Tweet" or "SelfThread".
	DisplayType string
	// Pinned is set for entries delivered through a TimelinePinEntry instruction.
	Pinned bool

	result *tweetResult
	err    error
}

// RawPage is one decoded page of a timeline.
type RawPage struct {
	Tweets []RawTweet
	Next   string
}

// --- Timeline types ---

type timelineObj struct {
	Instructions []timelineInstruction `json:"instructions"`
}

type timelineInstruction struct {
	Type    string          `json:"type"`
	Entries []timelineEntry `json:"entries"`
	Entry   *timelineEntry  `json:"entry"`
}

type timelineEntry struct {
	EntryID   string          `json:"entryId"`
	SortIndex string          `json:"sortIndex"`
	Content   timelineContent `json:"content"`
}

type timelineContent struct {
	EntryType   string          `json:"entryType"`
	TypeName    string          `json:"__typename"`
	ItemContent json.RawMessage `json:"itemContent"`
	Items       []struct {
		EntryID string `json:"entryId"`
		Item    struct {
			ItemContent json.RawMessage `json:"itemContent"`
		} `json:"item"`
	} `json:"items"`
	Value      string `json:"value"`
	CursorType string `json:"cursorType"`
}

type itemContent struct {
	TypeName         string `json:"__typename"`
	TweetDisplayType string `json:"tweetDisplayType"`
	TweetResults     struct {
		Result *tweetResult `json:"result"`
	} `json:"tweet_results"`
}

type userResult struct {
	TypeName string `json:"__typename"`
	ID       string `json:"id"`
	RestID   string `json:"rest_id"`
	Core     struct {
		Name       string `json:"name"`
		ScreenName string `json:"screen_name"`
		CreatedAt  string `json:"created_at"`
	} `json:"core"`
	Legacy struct {
		Name              string   `json:"name"`
		ScreenName        string   `json:"screen_name"`
		FollowersCount    int      `json:"followers_count"`
		FriendsCount      int      `json:"friends_count"`
		StatusesCount     int      `json:"statuses_count"`
		ListedCount       int      `json:"listed_count"`
		CreatedAt         string   `json:"created_at"`
		Verified          bool     `json:"verified"`
		Protected         bool     `json:"protected"`
		Description       string   `json:"description"`
		ProfileImageURL   string   `json:"profile_image_url_https"`
		PinnedTweetIDsStr []string `json:"pinned_tweet_ids_str"`
	} `json:"legacy"`
	Avatar struct {
		ImageURL string `json:"image_url"`
	} `json:"avatar"`
	IsBlueVerified bool `json:"is_blue_verified"`
}

// screenName and displayName cover both the legacy and the newer core user schema.
func (u *userResult) screenName() string {
	if u.Legacy.ScreenName != "" {
		return u.Legacy.ScreenName
	}
	return u.Core.ScreenName
}

func (u *userResult) displayName() string {
	if u.Legacy.Name != "" {
		return u.Legacy.Name
	}
	return u.Core.Name
}

type tweetResult struct {
	TypeName string `json:"__typename"`
	RestID   string `json:"rest_id"`
	Core     struct {
		UserResults struct {
			Result *userResult `json:"result"`
		} `json:"user_results"`
	} `json:"core"`
	Legacy *legacyTweet `json:"legacy"`
	Views  struct {
		Count string `json:"count"`
	} `json:"views"`
	NoteTweet struct {
		NoteTweetResults struct {
			Result struct {
				Text string `json:"text"`
			} `json:"result"`
		} `json:"note_tweet_results"`
	} `json:"note_tweet"`
	QuotedStatusResult struct {
		Result *tweetResult `json:"result"`
	} `json:"quoted_status_result"`
	// Tweet is set on TweetWithVisibilityResults wrappers.
	Tweet *tweetResult `json:"tweet"`
}

type legacyTweet struct {
	IDStr                string `json:"id_str"`
	ConversationIDStr    string `json:"conversation_id_str"`
	CreatedAt            string `json:"created_at"`
	FullText             string `json:"full_text"`
	UserIDStr            string `json:"user_id_str"`
	FavoriteCount        *int   `json:"favorite_count"`
	ReplyCount           *int   `json:"reply_count"`
	RetweetCount         *int   `json:"retweet_count"`
	BookmarkCount        *int   `json:"bookmark_count"`
	QuotedStatusIDStr    string `json:"quoted_status_id_str"`
	InReplyToStatusIDStr string `json:"in_reply_to_status_id_str"`
	RetweetedStatusIDStr string `json:"retweeted_status_id_str"`

	RetweetedStatusResult struct {
		Result *tweetResult `json:"result"`
	} `json:"retweeted_status_result"`

	Entities struct {
		Hashtags     []hashtagEntity `json:"hashtags"`
		UserMentions []mentionEntity `json:"user_mentions"`
		URLs         []urlEntity     `json:"urls"`
		Media        []mediaEntity   `json:"media"`
	} `json:"entities"`
	ExtendedEntities struct {
		Media []mediaEntity `json:"media"`
	} `json:"extended_entities"`
	ExtViews struct {
		Count string `json:"count"`
	} `json:"ext_views"`
	Place *struct {
		ID          string `json:"id"`
		FullName    string `json:"full_name"`
		CountryCode string `json:"country_code"`
	} `json:"place"`
}

type hashtagEntity struct {
	Text    string `json:"text"`
	Indices []int  `json:"indices"`
}

type mentionEntity struct {
	IDStr      string `json:"id_str"`
	ScreenName string `json:"screen_name"`
	Name       string `json:"name"`
	Indices    []int  `json:"indices"`
}

type urlEntity struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
	Indices     []int  `json:"indices"`
}

type mediaEntity struct {
	IDStr                    string  `json:"id_str"`
	MediaURLHTTPS            string  `json:"media_url_https"`
	Type                     string  `json:"type"`
	URL                      string  `json:"url"`
	ExtAltText               *string `json:"ext_alt_text"`
	ExtSensitiveMediaWarning *struct {
		AdultContent    bool `json:"adult_content"`
		GraphicViolence bool `json:"graphic_violence"`
		Other           bool `json:"other"`
	} `json:"ext_sensitive_media_warning"`
	VideoInfo struct {
		Variants []struct {
			Bitrate int    `json:"bitrate"`
			URL     string `json:"url"`
		} `json:"variants"`
	} `json:"video_info"`
}

// DecodeTimelinePage turns one GraphQL timeline response into raw tweets and
// the bottom cursor. Any operation in timelinePaths is accepted.
func DecodeTimelinePage(body []byte) (*RawPage, error) {
	if !json.Valid(body) {
		return nil, &DecodeError{Reason: "response is not valid JSON"}
	}
	for _, path := range timelinePaths {
		obj, dataType, _, err := jsonparser.Get(body, path...)
		if err != nil || dataType != jsonparser.Object {
			continue
		}
		if _, _, _, err := jsonparser.Get(obj, "instructions"); err != nil {
			continue
		}
		var tl timelineObj
		if err := json.Unmarshal(obj, &tl); err != nil {
			return nil, &DecodeError{Reason: "unmarshal " + strings.Join(path, "."), Err: err}
		}
		return extractRawTweets(tl), nil
	}
	if msg, err := jsonparser.GetString(body, "errors", "[0]", "message"); err == nil {
		return nil, &DecodeError{Reason: "upstream error: " + msg}
	}
	return nil, &DecodeError{Reason: "no timeline instructions found"}
}

func extractRawTweets(tl timelineObj) *RawPage {
	page := &RawPage{}

	for _, instruction := range tl.Instructions {
		entries := instruction.Entries
		if instruction.Entry != nil {
			entries = append(entries, *instruction.Entry)
		}
		pinned := instruction.Type == "TimelinePinEntry"

		for _, entry := range entries {
			if isCursorEntry(entry.Content) {
				if entry.Content.CursorType == "Bottom" || strings.HasPrefix(entry.EntryID, "cursor-bottom") {
					page.Next = entry.Content.Value
				}
				continue
			}
			if raw, ok := decodeItem(entry.EntryID, entry.Content.ItemContent); ok {
				raw.Pinned = pinned
				page.Tweets = append(page.Tweets, raw)
			}
			for _, item := range entry.Content.Items {
				if raw, ok := decodeItem(item.EntryID, item.Item.ItemContent); ok {
					page.Tweets = append(page.Tweets, raw)
				}
			}
		}
	}
	return page
}

func isCursorEntry(c timelineContent) bool {
	return c.EntryType == "TimelineTimelineCursor" || c.TypeName == "TimelineTimelineCursor"
}

// decodeItem decodes one itemContent. Non-tweet items and tombstones are
// skipped; items whose shape does not decode are kept with their error so the
// normalizer can report them.
func decodeItem(entryID string, content json.RawMessage) (RawTweet, bool) {
	if len(content) == 0 {
		return RawTweet{}, false
	}
	var item itemContent
	if err := json.Unmarshal(content, &item); err != nil {
		return RawTweet{EntryID: entryID, err: err}, true
	}
	if item.TypeName != "TimelineTweet" {
		return RawTweet{}, false
	}
	r := item.TweetResults.Result
	if r == nil {
		slog.Debug("skip entry without tweet result", slog.String("entry", entryID))
		return RawTweet{}, false
	}
	switch r.TypeName {
	case "TweetTombstone", "TweetUnavailable":
		slog.Debug("skip unavailable tweet", slog.String("entry", entryID), slog.String("typename", r.TypeName))
		return RawTweet{}, false
	}
	return RawTweet{EntryID: entryID, DisplayType: item.TweetDisplayType, result: r}, true
}
