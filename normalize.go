package twitter

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
)

// twitterTimeLayout is the created_at format used throughout the legacy API.
const twitterTimeLayout = "Mon Jan 02 15:04:05 -0700 2006"

// maxEmbedDepth bounds quoted/retweeted nesting. Upstream embeds one level;
// anything deeper is dropped.
const maxEmbedDepth = 1

// Normalize converts one raw timeline entry into a Tweet.
func Normalize(raw RawTweet) (*Tweet, error) {
	if raw.err != nil {
		return nil, &MalformedTweetError{EntryID: raw.EntryID, Field: "itemContent", Err: raw.err}
	}
	if raw.result == nil {
		return nil, &MalformedTweetError{EntryID: raw.EntryID, Field: "tweet_results.result"}
	}
	tw, err := normalizeResult(raw.result, 0)
	if err != nil {
		var mErr *MalformedTweetError
		if errors.As(err, &mErr) && mErr.EntryID == "" {
			mErr.EntryID = raw.EntryID
		}
		return nil, err
	}
	if raw.Pinned {
		tw.IsPin = true
	}
	if raw.DisplayType == "SelfThread" {
		tw.IsSelfThread = true
	}
	return tw, nil
}

func normalizeResult(r *tweetResult, depth int) (*Tweet, error) {
	if r.TypeName == "TweetWithVisibilityResults" && r.Tweet != nil {
		r = r.Tweet
	}
	legacy := r.Legacy
	if legacy == nil {
		return nil, &MalformedTweetError{Field: "legacy"}
	}
	user := r.Core.UserResults.Result
	if user == nil {
		return nil, &MalformedTweetError{Field: "author"}
	}

	id := firstNonEmpty(r.RestID, legacy.IDStr, legacy.ConversationIDStr)
	if id == "" {
		return nil, &MalformedTweetError{Field: "id"}
	}
	userID := firstNonEmpty(legacy.UserIDStr, user.RestID)
	username := user.screenName()
	if userID == "" || username == "" {
		return nil, &MalformedTweetError{Field: "author"}
	}

	media := legacy.ExtendedEntities.Media
	if len(media) == 0 {
		media = legacy.Entities.Media
	}
	photos, videos, sensitive := parseMedia(media)

	tw := &Tweet{
		ID:               id,
		ConversationID:   legacy.ConversationIDStr,
		UserID:           userID,
		Username:         username,
		Name:             user.displayName(),
		PermanentURL:     fmt.Sprintf("https://twitter.com/%s/status/%s", username, id),
		Text:             legacy.FullText,
		Hashtags:         parseHashtags(legacy),
		Mentions:         parseMentions(legacy),
		URLs:             parseURLs(legacy),
		Photos:           photos,
		Videos:           videos,
		SensitiveContent: sensitive,
		Thread:           []*Tweet{},
		Likes:            cloneCount(legacy.FavoriteCount),
		Replies:          cloneCount(legacy.ReplyCount),
		Retweets:         cloneCount(legacy.RetweetCount),
		Bookmarks:        cloneCount(legacy.BookmarkCount),
		IsPin:            slices.Contains(user.Legacy.PinnedTweetIDsStr, id),
	}

	if legacy.CreatedAt != "" {
		if t, err := time.Parse(twitterTimeLayout, legacy.CreatedAt); err == nil {
			tw.TimeParsed = t.UTC()
			tw.Timestamp = t.Unix()
		} else {
			slog.Debug("unparseable created_at", slog.String("tweet", id), slog.Any("error", err))
		}
	}

	if note := r.NoteTweet.NoteTweetResults.Result.Text; note != "" {
		tw.Text = note
	}
	if views, ok := parseViews(r.Views.Count, legacy.ExtViews.Count); ok {
		tw.Views = &views
	}
	if p := legacy.Place; p != nil && p.ID != "" {
		tw.Place = &Place{ID: p.ID, FullName: p.FullName, CountryCode: p.CountryCode}
	}

	if legacy.InReplyToStatusIDStr != "" {
		tw.IsReply = true
		tw.InReplyToStatusID = legacy.InReplyToStatusIDStr
	}

	if legacy.QuotedStatusIDStr != "" {
		tw.IsQuoted = true
		tw.QuotedStatusID = legacy.QuotedStatusIDStr
	}
	if q := r.QuotedStatusResult.Result; q != nil {
		tw.IsQuoted = true
		tw.QuotedStatus = embed(q, depth, id, "quoted")
		if tw.QuotedStatus != nil && tw.QuotedStatusID == "" {
			tw.QuotedStatusID = tw.QuotedStatus.ID
		}
	}

	if legacy.RetweetedStatusIDStr != "" {
		tw.IsRetweet = true
		tw.RetweetedStatusID = legacy.RetweetedStatusIDStr
	}
	if rt := legacy.RetweetedStatusResult.Result; rt != nil {
		tw.IsRetweet = true
		tw.RetweetedStatus = embed(rt, depth, id, "retweeted")
		if tw.RetweetedStatus != nil && tw.RetweetedStatusID == "" {
			tw.RetweetedStatusID = tw.RetweetedStatus.ID
		}
	}

	tw.HTML = reconstructHTML(tw.Text, legacy, tw.Photos, tw.Videos)
	return tw, nil
}

// embed normalizes a nested status. Failures and nesting beyond
// maxEmbedDepth yield nil; the parent keeps its id reference.
func embed(r *tweetResult, depth int, parentID, kind string) *Tweet {
	if depth >= maxEmbedDepth {
		return nil
	}
	nested, err := normalizeResult(r, depth+1)
	if err != nil {
		slog.Debug("skip embedded tweet", slog.String("parent", parentID), slog.String("kind", kind), slog.Any("error", err))
		return nil
	}
	return nested
}

func parseHashtags(l *legacyTweet) []string {
	tags := slices.Clone(l.Entities.Hashtags)
	slices.SortStableFunc(tags, func(a, b hashtagEntity) int {
		return startIndex(a.Indices) - startIndex(b.Indices)
	})
	out := make([]string, 0, len(tags))
	for _, h := range tags {
		if h.Text != "" {
			out = append(out, h.Text)
		}
	}
	return out
}

func parseMentions(l *legacyTweet) []Mention {
	mentions := slices.Clone(l.Entities.UserMentions)
	slices.SortStableFunc(mentions, func(a, b mentionEntity) int {
		return startIndex(a.Indices) - startIndex(b.Indices)
	})
	out := make([]Mention, 0, len(mentions))
	for _, m := range mentions {
		if m.IDStr == "" {
			continue
		}
		out = append(out, Mention{ID: m.IDStr, Username: m.ScreenName, Name: m.Name})
	}
	return out
}

func parseURLs(l *legacyTweet) []string {
	urls := slices.Clone(l.Entities.URLs)
	slices.SortStableFunc(urls, func(a, b urlEntity) int {
		return startIndex(a.Indices) - startIndex(b.Indices)
	})
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u.ExpandedURL != "" {
			out = append(out, u.ExpandedURL)
		}
	}
	return out
}

// startIndex returns the entity's offset in the body; entities without
// indices sort first and keep their relative order.
func startIndex(indices []int) int {
	if len(indices) == 0 {
		return -1
	}
	return indices[0]
}

func parseMedia(media []mediaEntity) (photos []Photo, videos []Video, sensitive bool) {
	photos = []Photo{}
	videos = []Video{}
	for _, m := range media {
		if m.MediaURLHTTPS == "" {
			continue
		}
		if w := m.ExtSensitiveMediaWarning; w != nil && (w.AdultContent || w.GraphicViolence || w.Other) {
			sensitive = true
		}
		switch m.Type {
		case "photo":
			photos = append(photos, Photo{ID: m.IDStr, URL: m.MediaURLHTTPS, AltText: m.ExtAltText})
		case "video", "animated_gif":
			videos = append(videos, parseVideo(m))
		}
	}
	return photos, videos, sensitive
}

func parseVideo(m mediaEntity) Video {
	v := Video{ID: m.IDStr, Preview: m.MediaURLHTTPS}
	maxBitrate := 0
	for _, variant := range m.VideoInfo.Variants {
		if variant.Bitrate > maxBitrate {
			u, _, _ := strings.Cut(variant.URL, "?tag=")
			v.URL = u
			maxBitrate = variant.Bitrate
		}
	}
	return v
}

func parseViews(counts ...string) (int, bool) {
	for _, c := range counts {
		if c == "" {
			continue
		}
		if n, err := strconv.Atoi(c); err == nil {
			return n, true
		}
	}
	return 0, false
}

func cloneCount(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
